// Package report builds per-meta-alert summaries for triage.
package report

import (
	"sort"
	"strconv"

	"alertrank/internal/graph"
	"alertrank/internal/output/jsonlines"
	"alertrank/pkg/models"
)

// Build summarises every graph. Outlier factors come from the graph tags the
// prioritiser writes; unscored graphs have none.
func Build(graphs []*graph.Graph[*models.Alert]) []*models.MetaAlertSummary {
	out := make([]*models.MetaAlertSummary, 0, len(graphs))
	for _, g := range graphs {
		if g == nil || g.Len() == 0 {
			continue
		}
		s := &models.MetaAlertSummary{
			Key:       g.Key,
			Alerts:    g.Len(),
			Edges:     len(g.Edges()),
			FirstSeen: g.FirstNode().Element.StartTime,
			LastSeen:  g.FirstNode().Element.EndTime,
		}
		names := newSet()
		sources := newSet()
		dests := newSet()
		for _, n := range g.Nodes() {
			a := n.Element
			if a.StartTime.Before(s.FirstSeen) {
				s.FirstSeen = a.StartTime
			}
			if a.EndTime.After(s.LastSeen) {
				s.LastSeen = a.EndTime
			}
			names.add(a.Name)
			sources.add(a.SourceIP)
			dests.add(a.DestIP)
		}
		s.Names = names.items
		s.Sources = sources.items
		s.Destinations = dests.items

		last := g.LastNode().Element
		s.Priority = last.Priority
		if lof, err := strconv.ParseFloat(g.Tags["outlier_factor"], 64); err == nil {
			s.OutlierFactor = lof
		}
		s.Severity = severity(s.Priority, last.Prioritised())
		out = append(out, s)
	}
	return out
}

// Rank orders summaries for triage: highest priority, then highest outlier
// factor, then most alerts, then key.
func Rank(summaries []*models.MetaAlertSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.OutlierFactor != b.OutlierFactor {
			return a.OutlierFactor > b.OutlierFactor
		}
		if a.Alerts != b.Alerts {
			return a.Alerts > b.Alerts
		}
		return a.Key < b.Key
	})
}

func severity(priority int, scored bool) string {
	if !scored {
		return "unscored"
	}
	switch {
	case priority >= 4:
		return "critical"
	case priority == 3:
		return "high"
	case priority == 2:
		return "medium"
	default:
		return "low"
	}
}

type set struct {
	seen  map[string]bool
	items []string
}

func newSet() *set {
	return &set{seen: make(map[string]bool)}
}

func (s *set) add(v string) {
	if v == "" || s.seen[v] {
		return
	}
	s.seen[v] = true
	s.items = append(s.items, v)
}

// WriteJSONLines writes one JSON document per row, replacing the file and
// creating parent directories.
func WriteJSONLines[T any](path string, rows []T) error {
	w, err := jsonlines.New[T](path, jsonlines.Options{Name: "summary"}, nil)
	if err != nil {
		return err
	}
	if err := w.Write(rows); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
