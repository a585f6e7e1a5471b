package models

import "time"

// MetaAlertSummary is a compact per-meta-alert output for SOC triage.
type MetaAlertSummary struct {
	Key           string    `json:"key"`
	Alerts        int       `json:"alerts"`
	Edges         int       `json:"edges"`
	FirstSeen     time.Time `json:"first_seen"`
	LastSeen      time.Time `json:"last_seen"`
	Names         []string  `json:"names"`
	Sources       []string  `json:"sources,omitempty"`
	Destinations  []string  `json:"destinations,omitempty"`
	OutlierFactor float64   `json:"outlier_factor,omitempty"`
	Priority      int       `json:"priority,omitempty"`
	Severity      string    `json:"severity,omitempty"`
}
