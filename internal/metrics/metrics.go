package metrics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds the run counters on a private registry so several runs in one
// process (and tests) never collide on the default registerer.
type Metrics struct {
	Registry *prometheus.Registry

	AlertsIngested   *prometheus.CounterVec
	AlertsSkipped    *prometheus.CounterVec
	AlertsEnriched   prometheus.Counter
	MetaAlerts       prometheus.Counter
	AlertsCorrelated prometheus.Counter
	WindowEvictions  prometheus.Counter
	Distances        *prometheus.CounterVec
	Priorities       *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
}

// New creates the run collectors on a fresh registry. Observe methods are
// safe to call on a nil *Metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		AlertsIngested: f.NewCounterVec(prometheus.CounterOpts{
			Name: "alertrank_alerts_ingested_total",
			Help: "Alerts read from the input source",
		}, []string{"source"}),
		AlertsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "alertrank_alerts_skipped_total",
			Help: "Input records dropped as malformed",
		}, []string{"source"}),
		AlertsEnriched: f.NewCounter(prometheus.CounterOpts{
			Name: "alertrank_alerts_enriched_total",
			Help: "Alerts tagged by at least one rule",
		}),
		MetaAlerts: f.NewCounter(prometheus.CounterOpts{
			Name: "alertrank_meta_alerts_total",
			Help: "Meta-alerts produced by correlation",
		}),
		AlertsCorrelated: f.NewCounter(prometheus.CounterOpts{
			Name: "alertrank_alerts_correlated_total",
			Help: "Alerts merged into an existing meta-alert",
		}),
		WindowEvictions: f.NewCounter(prometheus.CounterOpts{
			Name: "alertrank_window_evictions_total",
			Help: "Meta-alerts evicted from the correlation window",
		}),
		Distances: f.NewCounterVec(prometheus.CounterOpts{
			Name: "alertrank_distances_total",
			Help: "Pairwise graph distances by outcome",
		}, []string{"outcome"}),
		Priorities: f.NewCounterVec(prometheus.CounterOpts{
			Name: "alertrank_priorities_total",
			Help: "Alerts assigned to each priority",
		}, []string{"priority"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "alertrank_stage_duration_seconds",
			Help:    "Wall time spent in each pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),
	}
}

// ObserveStage records the time elapsed since start under stage.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// ObserveIngest counts alerts read and skipped per source.
func (m *Metrics) ObserveIngest(source string, ingested, skipped int) {
	if m == nil {
		return
	}
	m.AlertsIngested.WithLabelValues(source).Add(float64(ingested))
	m.AlertsSkipped.WithLabelValues(source).Add(float64(skipped))
}

func (m *Metrics) ObserveEnrich(enriched int) {
	if m == nil {
		return
	}
	m.AlertsEnriched.Add(float64(enriched))
}

// ObserveCorrelation records meta-alert totals of one correlation pass.
func (m *Metrics) ObserveCorrelation(metaAlerts, correlated, evicted int) {
	if m == nil {
		return
	}
	m.MetaAlerts.Add(float64(metaAlerts))
	m.AlertsCorrelated.Add(float64(correlated))
	m.WindowEvictions.Add(float64(evicted))
}

// ObservePrioritisation records distance outcomes and the per-priority alert counts.
func (m *Metrics) ObservePrioritisation(ok, budgetExceeded, unparsable int, byPriority map[int]int) {
	if m == nil {
		return
	}
	m.Distances.WithLabelValues("ok").Add(float64(ok))
	m.Distances.WithLabelValues("budget_exceeded").Add(float64(budgetExceeded))
	m.Distances.WithLabelValues("unparsable").Add(float64(unparsable))
	for p, n := range byPriority {
		m.Priorities.WithLabelValues(strconv.Itoa(p)).Add(float64(n))
	}
}

// Push sends the registry to a Prometheus pushgateway, grouped by run id.
func (m *Metrics) Push(ctx context.Context, url, job, runID string) error {
	if m == nil || url == "" {
		return nil
	}
	p := push.New(url, job).Gatherer(m.Registry)
	if runID != "" {
		p = p.Grouping("run_id", runID)
	}
	if err := p.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
