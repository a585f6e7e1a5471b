// Package correlator groups a time-ordered alert stream into meta-alert graphs
// under a sliding activity window.
package correlator

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"alertrank/internal/graph"
	"alertrank/internal/similarity"
	"alertrank/internal/window"
	"alertrank/pkg/models"
)

// ErrInvalidConfiguration is returned by New for unusable settings.
var ErrInvalidConfiguration = errors.New("invalid correlator configuration")

// MetaAlert is a cluster of correlated alerts.
type MetaAlert = graph.Graph[*models.Alert]

// Config controls correlation behavior.
type Config struct {
	// CorrelationThreshold is the minimum score to merge an alert into an open graph.
	CorrelationThreshold float64
	// TimeThreshold is both the candidate recency horizon and the eviction horizon, in minutes.
	TimeThreshold int
	Weights       similarity.Weights
}

// DefaultConfig returns threshold 0.8, a 30 minute window and unit weights.
func DefaultConfig() Config {
	return Config{
		CorrelationThreshold: 0.8,
		TimeThreshold:        30,
		Weights:              similarity.DefaultWeights(),
	}
}

// Validate checks thresholds and weights.
func (c Config) Validate() error {
	if c.TimeThreshold <= 0 {
		return fmt.Errorf("%w: time threshold must be positive, got %d", ErrInvalidConfiguration, c.TimeThreshold)
	}
	w := c.Weights
	if w.SourceIP < 0 || w.DestIP < 0 || w.DestPort < 0 || w.TimeProximity < 0 {
		return fmt.Errorf("%w: weights must not be negative", ErrInvalidConfiguration)
	}
	if w.Sum() <= 0 {
		return fmt.Errorf("%w: weights sum to zero", ErrInvalidConfiguration)
	}
	return nil
}

func (c Config) horizon() time.Duration {
	return time.Duration(c.TimeThreshold) * time.Minute
}

// Stats summarises one correlation run.
type Stats struct {
	Alerts     int `json:"alerts"`
	MetaAlerts int `json:"meta_alerts"`
	Correlated int `json:"correlated"`
	Evicted    int `json:"evicted"`
	Expired    int `json:"expired"`
	Skipped    int `json:"skipped"`
}

// Result holds every graph formed during a run, in creation order.
type Result struct {
	Graphs []*MetaAlert
	Stats  Stats
}

// Correlator clusters alerts. It holds no state between runs.
type Correlator struct {
	cfg    Config
	scorer *similarity.Scorer
	logger *zap.Logger
}

// New creates a correlator.
func New(cfg Config, logger *zap.Logger) (*Correlator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Correlator{
		cfg:    cfg,
		scorer: similarity.NewScorer(cfg.Weights, cfg.TimeThreshold),
		logger: logger,
	}, nil
}

// Run places every alert, in the given order, into exactly one graph. Alerts
// must already be sorted by start time; they are not reordered.
func (c *Correlator) Run(alerts []*models.Alert) *Result {
	r := &run{
		c:      c,
		window: window.New(c.cfg.horizon(), lastActivity),
	}
	for _, a := range alerts {
		if a == nil {
			continue
		}
		r.stats.Alerts++
		r.place(a)
	}
	r.stats.MetaAlerts = len(r.graphs)

	c.logger.Info("derived meta-alerts",
		zap.Int("alerts", r.stats.Alerts),
		zap.Int("meta_alerts", r.stats.MetaAlerts),
		zap.Int("correlated", r.stats.Correlated),
		zap.Int("evicted", r.stats.Evicted),
	)
	return &Result{Graphs: r.graphs, Stats: r.stats}
}

func lastActivity(g *MetaAlert) time.Time {
	return g.LastNode().Element.EndTime
}

type run struct {
	c      *Correlator
	graphs []*MetaAlert
	window *window.Window[*MetaAlert]
	stats  Stats
}

func (r *run) place(a *models.Alert) {
	if len(r.graphs) == 0 || r.window.Len() == 0 {
		r.open(a)
		return
	}
	best, score := r.bestCandidate(a)
	if best == nil {
		r.open(a)
		return
	}
	r.attach(best, a, score)
}

// bestCandidate scans the window oldest first. Graphs whose last alert started
// outside the recency horizon can never match a later alert and are dropped
// from the window. Among qualifying graphs the first one seen with the highest
// score wins.
func (r *run) bestCandidate(a *models.Alert) (*MetaAlert, float64) {
	earliest := a.StartTime.Add(-r.c.cfg.horizon())

	var best *MetaAlert
	var bestScore float64
	var expired []*MetaAlert
	r.window.Ascend(func(g *MetaAlert) bool {
		last := g.LastNode().Element
		if !last.StartTime.After(earliest) {
			expired = append(expired, g)
			return true
		}
		score := r.c.scorer.Score(last, a)
		if score >= r.c.cfg.CorrelationThreshold && (best == nil || score > bestScore) {
			best = g
			bestScore = score
		}
		return true
	})

	for _, g := range expired {
		r.window.Remove(g)
	}
	r.stats.Expired += len(expired)
	return best, bestScore
}

func (r *run) open(a *models.Alert) {
	node, err := r.newNode(a)
	if err != nil {
		r.skip(a, err)
		return
	}
	g, err := graph.New(strconv.Itoa(len(r.graphs)), node)
	if err != nil {
		r.skip(a, err)
		return
	}
	r.graphs = append(r.graphs, g)
	r.stats.Evicted += r.window.Add(g)
}

func (r *run) attach(g *MetaAlert, a *models.Alert, score float64) {
	node, err := r.newNode(a)
	if err != nil {
		r.skip(a, err)
		return
	}
	if _, err := g.Connect(node, score); err != nil {
		r.skip(a, err)
		return
	}
	r.stats.Correlated++
	r.stats.Evicted += r.window.Add(g)

	if ce := r.c.logger.Check(zap.DebugLevel, "correlated alert"); ce != nil {
		ce.Write(
			zap.String("alert", a.Key),
			zap.String("meta_alert", g.Key),
			zap.Float64("score", score),
			zap.Int("size", g.Len()),
		)
	}
}

func (r *run) newNode(a *models.Alert) (*graph.Node[*models.Alert], error) {
	key := strings.Join(strings.Fields(a.Key), "_")
	if key == "" {
		key = "alert-" + strconv.Itoa(r.stats.Alerts)
	}
	weight := float64(a.Count)
	if weight <= 0 {
		weight = 1
	}
	return graph.NewNode(a, key, a.Name, weight)
}

func (r *run) skip(a *models.Alert, err error) {
	r.stats.Skipped++
	r.c.logger.Warn("skipping alert", zap.String("alert", a.Key), zap.Error(err))
}
