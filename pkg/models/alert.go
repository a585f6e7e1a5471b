package models

import (
	"errors"
	"strings"
	"time"
)

// Alert is one intrusion-detection event.
type Alert struct {
	Key        string    `json:"key"`
	Name       string    `json:"name"`
	Category   string    `json:"category,omitempty"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	SourceIP   string    `json:"src_ip"`
	SourcePort string    `json:"src_port,omitempty"`
	DestIP     string    `json:"dest_ip"`
	DestPort   string    `json:"dest_port,omitempty"`
	Count      int       `json:"count"`
	Tags       []Tag     `json:"tags,omitempty"`

	// Priority and Score are written by the prioritiser only. Score is the
	// normalised outlier factor of the enclosing meta-alert, in (0,1].
	Priority int     `json:"priority"`
	Score    float64 `json:"score,omitempty"`
}

// NewAlert builds an alert from the nine logical ingestion fields.
func NewAlert(start, end time.Time, key, name, category, srcIP, srcPort, dstIP, dstPort string) *Alert {
	a := &Alert{
		Key:        key,
		Name:       name,
		Category:   category,
		StartTime:  start,
		EndTime:    end,
		SourceIP:   srcIP,
		SourcePort: srcPort,
		DestIP:     dstIP,
		DestPort:   dstPort,
	}
	a.ApplyDefaults()
	return a
}

// ApplyDefaults fills count and category when the source left them empty.
func (a *Alert) ApplyDefaults() {
	if a.Count <= 0 {
		a.Count = 1
	}
	if strings.TrimSpace(a.Category) == "" {
		a.Category = a.Name
	}
	if a.EndTime.IsZero() || a.EndTime.Before(a.StartTime) {
		a.EndTime = a.StartTime
	}
}

// Prioritised reports whether a priority has been assigned.
func (a *Alert) Prioritised() bool {
	return a != nil && a.Score > 0
}

// ErrMalformedRecord marks an input record that cannot become an Alert.
var ErrMalformedRecord = errors.New("malformed record")
