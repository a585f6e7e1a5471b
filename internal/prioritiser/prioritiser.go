// Package prioritiser ranks meta-alerts by how much their structure differs
// from their neighbours and writes the resulting priority onto every alert.
package prioritiser

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"alertrank/internal/ged"
	"alertrank/internal/graph"
	"alertrank/pkg/models"
)

// ErrInvalidConfiguration is returned for an unusable neighbour count.
var ErrInvalidConfiguration = errors.New("invalid prioritiser configuration")

// Config controls outlier scoring.
type Config struct {
	// K is the neighbour count. Zero with a zero KRatio disables scoring.
	K int
	// KRatio derives k as round(n*KRatio) when K is zero.
	KRatio float64
	// MaxCost is the edit-distance acceptance limit passed to the oracle.
	MaxCost float64
	// Workers bounds concurrent distance computations. Zero means GOMAXPROCS.
	Workers int
	Mapping Mapping
}

// Validate checks static settings.
func (c Config) Validate() error {
	if c.K < 0 {
		return fmt.Errorf("%w: k must not be negative, got %d", ErrInvalidConfiguration, c.K)
	}
	if c.KRatio < 0 || c.KRatio >= 1 {
		return fmt.Errorf("%w: k ratio must be in [0,1), got %g", ErrInvalidConfiguration, c.KRatio)
	}
	if c.MaxCost < 0 {
		return fmt.Errorf("%w: max cost must not be negative", ErrInvalidConfiguration)
	}
	switch c.Mapping {
	case "", MappingQuartile, MappingRounded:
	default:
		return fmt.Errorf("%w: unknown priority mapping %q", ErrInvalidConfiguration, c.Mapping)
	}
	return nil
}

// Enabled reports whether scoring runs at all.
func (c Config) Enabled() bool {
	return c.K > 0 || c.KRatio > 0
}

// neighbours resolves k for n meta-alerts.
func (c Config) neighbours(n int) int {
	if c.K > 0 {
		return c.K
	}
	k := int(math.Round(float64(n) * c.KRatio))
	return min(max(k, 1), n-1)
}

// Stats summarises one prioritisation run.
type Stats struct {
	MetaAlerts     int           `json:"meta_alerts"`
	K              int           `json:"k"`
	Pairs          int           `json:"pairs"`
	BudgetExceeded int           `json:"budget_exceeded"`
	Unparsable     int           `json:"unparsable"`
	Approximate    int           `json:"approximate"`
	Alerts         int           `json:"alerts"`
	ByPriority     map[int]int   `json:"by_priority,omitempty"`
	Duration       time.Duration `json:"duration"`
}

// Result carries per-meta-alert scores, indexed like the input graphs.
type Result struct {
	Distances  [][]float64
	Factors    *Factors
	Scores     []float64
	Priorities []int
	Stats      Stats
}

// Prioritiser scores meta-alerts with an injected distance oracle.
type Prioritiser struct {
	cfg    Config
	oracle ged.Oracle
	logger *zap.Logger
}

// New creates a prioritiser.
func New(cfg Config, oracle ged.Oracle, logger *zap.Logger) (*Prioritiser, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if oracle == nil {
		return nil, fmt.Errorf("%w: distance oracle is required", ErrInvalidConfiguration)
	}
	if cfg.MaxCost == 0 {
		cfg.MaxCost = ged.DefaultMaxCost
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Mapping == "" {
		cfg.Mapping = MappingQuartile
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prioritiser{cfg: cfg, oracle: oracle, logger: logger}, nil
}

// Run scores graphs and, only if every stage succeeds, writes the priority of
// each meta-alert onto all of its alerts. With scoring disabled or fewer than
// two graphs it returns an empty result and touches nothing.
func (p *Prioritiser) Run(ctx context.Context, graphs []*graph.Graph[*models.Alert]) (*Result, error) {
	started := time.Now()
	n := len(graphs)
	res := &Result{Stats: Stats{MetaAlerts: n}}
	if !p.cfg.Enabled() || n <= 1 {
		p.logger.Info("prioritisation skipped", zap.Int("meta_alerts", n), zap.Bool("enabled", p.cfg.Enabled()))
		return res, nil
	}

	k := p.cfg.neighbours(n)
	if k >= n {
		return nil, fmt.Errorf("%w: k=%d with only %d meta-alerts", ErrInvalidConfiguration, k, n)
	}
	res.Stats.K = k

	dist, err := p.distances(ctx, graphs, &res.Stats)
	if err != nil {
		return nil, err
	}
	factors, err := OutlierFactors(dist, k)
	if err != nil {
		return nil, err
	}

	res.Distances = dist
	res.Factors = factors
	res.Scores = make([]float64, n)
	res.Priorities = make([]int, n)
	res.Stats.ByPriority = make(map[int]int)
	for i := range graphs {
		res.Scores[i] = factors.Normalised(i)
		res.Priorities[i] = PriorityFor(res.Scores[i], p.cfg.Mapping)
		res.Stats.ByPriority[res.Priorities[i]]++
	}

	for i, g := range graphs {
		g.Tags["priority"] = strconv.Itoa(res.Priorities[i])
		g.Tags["outlier_factor"] = strconv.FormatFloat(factors.LOF[i], 'f', 6, 64)
		for _, node := range g.Nodes() {
			node.Element.Priority = res.Priorities[i]
			node.Element.Score = res.Scores[i]
			res.Stats.Alerts++
		}
	}
	res.Stats.Duration = time.Since(started)

	p.logger.Info("prioritised meta-alerts",
		zap.Int("meta_alerts", n),
		zap.Int("k", k),
		zap.Int("pairs", res.Stats.Pairs),
		zap.Int("alerts", res.Stats.Alerts),
		zap.Float64("max_lof", factors.MaxLOF),
		zap.Duration("elapsed", res.Stats.Duration),
	)
	if res.Stats.BudgetExceeded > 0 || res.Stats.Unparsable > 0 {
		p.logger.Warn("distances capped at maximum",
			zap.Int("budget_exceeded", res.Stats.BudgetExceeded),
			zap.Int("unparsable", res.Stats.Unparsable),
		)
	}
	return res, nil
}

// distances fills the symmetric matrix. Each pair is computed once by one
// goroutine which owns both of its cells.
func (p *Prioritiser) distances(ctx context.Context, graphs []*graph.Graph[*models.Alert], stats *Stats) ([][]float64, error) {
	n := len(graphs)
	canon := make([]*graph.Canonical, n)
	for i, g := range graphs {
		canon[i] = g.Canonicalize()
	}
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}

	var exceeded, unparsable, approximate atomic.Int64
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.cfg.Workers)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if err := egCtx.Err(); err != nil {
				break
			}
			eg.Go(func() error {
				r := p.oracle.Distance(egCtx, canon[i], canon[j], p.cfg.MaxCost)
				switch r.Outcome {
				case ged.OutcomeBudgetExceeded:
					exceeded.Add(1)
				case ged.OutcomeUnparsable:
					unparsable.Add(1)
				}
				if r.Approximate {
					approximate.Add(1)
				}
				d := math.Max(r.Value(), DistanceFloor)
				dist[i][j] = d
				dist[j][i] = d
				return nil
			})
		}
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("distance matrix: %w", err)
	}

	stats.Pairs = n * (n - 1) / 2
	stats.BudgetExceeded = int(exceeded.Load())
	stats.Unparsable = int(unparsable.Load())
	stats.Approximate = int(approximate.Load())
	return dist, nil
}
