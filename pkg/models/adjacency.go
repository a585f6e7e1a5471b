package models

import "time"

// AdjacencyRow is an append-only graph record describing one node or edge of a meta-alert.
type AdjacencyRow struct {
	Timestamp  time.Time `json:"ts"`
	RecordType string    `json:"record_type"` // vertex or edge
	GraphKey   string    `json:"graph_key"`
	VertexID   string    `json:"vertex_id"`
	AdjacentID string    `json:"adjacent_id,omitempty"`
	Label      string    `json:"label,omitempty"`
	Weight     float64   `json:"weight"`
	Priority   int       `json:"priority,omitempty"`
	Alert      *Alert    `json:"alert,omitempty"`
}
