// Package adjacency flattens meta-alert graphs into append-only vertex and
// edge rows.
package adjacency

import (
	"alertrank/internal/graph"
	"alertrank/pkg/models"
)

const (
	recordVertex = "vertex"
	recordEdge   = "edge"
)

// Mapper converts graphs into adjacency rows.
type Mapper struct {
	writeVertexRows  bool
	includeAlertData bool
}

// MapperOptions controls mapper output size and fidelity.
type MapperOptions struct {
	WriteVertexRows  bool
	IncludeAlertData bool
}

// NewMapper creates a mapper.
func NewMapper(opts MapperOptions) *Mapper {
	return &Mapper{
		writeVertexRows:  opts.WriteVertexRows,
		includeAlertData: opts.IncludeAlertData,
	}
}

// Map converts one meta-alert into rows: vertices in discovery order, then
// edges in creation order.
func (m *Mapper) Map(g *graph.Graph[*models.Alert]) []*models.AdjacencyRow {
	if g == nil {
		return nil
	}
	rows := make([]*models.AdjacencyRow, 0, g.Len()*2)
	if m.writeVertexRows {
		for _, n := range g.Nodes() {
			row := &models.AdjacencyRow{
				Timestamp:  n.Element.StartTime,
				RecordType: recordVertex,
				GraphKey:   g.Key,
				VertexID:   n.Key,
				Label:      n.Label,
				Weight:     n.Weight,
				Priority:   n.Element.Priority,
			}
			if m.includeAlertData {
				row.Alert = n.Element
			}
			rows = append(rows, row)
		}
	}
	for _, e := range g.Edges() {
		row := &models.AdjacencyRow{
			Timestamp:  e.Target.Element.StartTime,
			RecordType: recordEdge,
			GraphKey:   g.Key,
			VertexID:   e.Source.Key,
			AdjacentID: e.Target.Key,
			Label:      e.Label,
			Weight:     e.Weight,
			Priority:   e.Target.Element.Priority,
		}
		if m.includeAlertData {
			row.Alert = e.Target.Element
		}
		rows = append(rows, row)
	}
	return rows
}

// MapAll concatenates the rows of every graph.
func (m *Mapper) MapAll(graphs []*graph.Graph[*models.Alert]) []*models.AdjacencyRow {
	var rows []*models.AdjacencyRow
	for _, g := range graphs {
		rows = append(rows, m.Map(g)...)
	}
	return rows
}
