// Package pipeline wires ingestion, enrichment, correlation, prioritisation
// and output into one batch run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"alertrank/internal/correlator"
	"alertrank/internal/graph/adjacency"
	"alertrank/internal/metrics"
	"alertrank/internal/prioritiser"
	"alertrank/internal/report"
	"alertrank/internal/rules"
	"alertrank/internal/similarity"
	"alertrank/pkg/models"
)

const defaultWorkers = 8

// Options configures a Pipeline. Only Source and Correlator are required.
type Options struct {
	RunID      string
	SourceName string
	Source     AlertSource
	// Sort stable-sorts alerts by start time before correlation.
	Sort    bool
	Workers int

	Engine      rules.Engine
	Correlator  *correlator.Correlator
	Prioritiser *prioritiser.Prioritiser

	AlertWriter     AlertWriter
	AdjacencyWriter AdjacencyWriter
	Mapper          *adjacency.Mapper
	SummaryPath     string

	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Stats summarises one run.
type Stats struct {
	RunID          string                     `json:"run_id"`
	Ingested       int                        `json:"ingested"`
	Skipped        int                        `json:"skipped"`
	Enriched       int                        `json:"enriched"`
	Correlation    correlator.Stats           `json:"correlation"`
	Prioritisation *prioritiser.Stats         `json:"prioritisation,omitempty"`
	Written        int                        `json:"written"`
	AdjacencyRows  int                        `json:"adjacency_rows"`
	Duration       time.Duration              `json:"duration"`
	Summaries      []*models.MetaAlertSummary `json:"-"`
}

// Pipeline runs one batch from source to sinks.
type Pipeline struct {
	opts   Options
	logger *zap.Logger
}

// New validates options and fills defaults.
func New(opts Options) (*Pipeline, error) {
	if opts.Source == nil {
		return nil, errors.New("pipeline: source is required")
	}
	if opts.Correlator == nil {
		return nil, errors.New("pipeline: correlator is required")
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.SourceName == "" {
		opts.SourceName = "unknown"
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.AdjacencyWriter != nil && opts.Mapper == nil {
		opts.Mapper = adjacency.NewMapper(adjacency.MapperOptions{})
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{opts: opts, logger: logger.With(zap.String("run_id", opts.RunID))}, nil
}

// RunID identifies this run in logs and stored keys.
func (p *Pipeline) RunID() string {
	return p.opts.RunID
}

// Run executes every stage once. Nothing is written if prioritisation fails.
func (p *Pipeline) Run(ctx context.Context) (*Stats, error) {
	started := time.Now()
	stats := &Stats{RunID: p.opts.RunID}
	m := p.opts.Metrics

	stageStart := time.Now()
	alerts, err := p.opts.Source.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read alerts: %w", err)
	}
	stats.Ingested = len(alerts)
	stats.Skipped = p.opts.Source.Skipped()
	m.ObserveIngest(p.opts.SourceName, stats.Ingested, stats.Skipped)
	m.ObserveStage("read", stageStart)
	p.logger.Info("alerts read",
		zap.String("source", p.opts.SourceName),
		zap.Int("alerts", stats.Ingested),
		zap.Int("skipped", stats.Skipped),
	)

	stageStart = time.Now()
	stats.Enriched = p.enrich(ctx, alerts)
	m.ObserveEnrich(stats.Enriched)
	m.ObserveStage("enrich", stageStart)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ordered := alerts
	if p.opts.Sort {
		ordered = make([]*models.Alert, len(alerts))
		copy(ordered, alerts)
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].StartTime.Before(ordered[j].StartTime)
		})
	}

	stageStart = time.Now()
	correlated := p.opts.Correlator.Run(ordered)
	stats.Correlation = correlated.Stats
	m.ObserveCorrelation(correlated.Stats.MetaAlerts, correlated.Stats.Correlated, correlated.Stats.Evicted)
	m.ObserveStage("correlate", stageStart)

	if p.opts.Prioritiser != nil {
		stageStart = time.Now()
		res, err := p.opts.Prioritiser.Run(ctx, correlated.Graphs)
		if err != nil {
			return nil, fmt.Errorf("prioritise: %w", err)
		}
		stats.Prioritisation = &res.Stats
		ok := res.Stats.Pairs - res.Stats.BudgetExceeded - res.Stats.Unparsable
		m.ObservePrioritisation(ok, res.Stats.BudgetExceeded, res.Stats.Unparsable, res.Stats.ByPriority)
		m.ObserveStage("prioritise", stageStart)
	}

	stageStart = time.Now()
	summaries := report.Build(correlated.Graphs)
	report.Rank(summaries)
	stats.Summaries = summaries

	if err := p.write(ctx, alerts, summaries, stats); err != nil {
		return nil, err
	}
	if p.opts.AdjacencyWriter != nil {
		rows := p.opts.Mapper.MapAll(correlated.Graphs)
		if err := p.opts.AdjacencyWriter.WriteRows(rows); err != nil {
			return nil, fmt.Errorf("write adjacency rows: %w", err)
		}
		stats.AdjacencyRows = len(rows)
	}
	m.ObserveStage("write", stageStart)

	stats.Duration = time.Since(started)
	p.logger.Info("run complete",
		zap.Int("alerts", stats.Ingested),
		zap.Int("meta_alerts", stats.Correlation.MetaAlerts),
		zap.Int("written", stats.Written),
		zap.Duration("duration", stats.Duration),
	)
	return stats, nil
}

// enrich normalises every alert and applies rules on a fixed worker pool.
func (p *Pipeline) enrich(ctx context.Context, alerts []*models.Alert) int {
	var enriched atomic.Int64
	work := make(chan *models.Alert, p.opts.Workers*4)

	var wg sync.WaitGroup
	for i := 0; i < p.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for a := range work {
				a.ApplyDefaults()
				similarity.BucketPorts(a)
				if rules.Enrich(p.opts.Engine, a) > 0 {
					enriched.Add(1)
				}
			}
		}()
	}

feed:
	for _, a := range alerts {
		if a == nil {
			continue
		}
		select {
		case work <- a:
		case <-ctx.Done():
			break feed
		}
	}
	close(work)
	wg.Wait()
	return int(enriched.Load())
}

// write emits alerts in input order, then summaries to the writer and file.
func (p *Pipeline) write(ctx context.Context, alerts []*models.Alert, summaries []*models.MetaAlertSummary, stats *Stats) error {
	if w := p.opts.AlertWriter; w != nil {
		if err := w.WriteAlerts(ctx, alerts); err != nil {
			return fmt.Errorf("write alerts: %w", err)
		}
		stats.Written = len(alerts)
		if sw, ok := w.(SummaryWriter); ok {
			if err := sw.WriteSummaries(ctx, summaries); err != nil {
				return fmt.Errorf("write summaries: %w", err)
			}
		}
	}
	if p.opts.SummaryPath != "" {
		if err := report.WriteJSONLines(p.opts.SummaryPath, summaries); err != nil {
			return fmt.Errorf("write summary file: %w", err)
		}
	}
	return nil
}

// Close releases sinks and the source.
func (p *Pipeline) Close() error {
	var errs []error
	if p.opts.AlertWriter != nil {
		if err := p.opts.AlertWriter.Close(); err != nil {
			p.logger.Error("failed to close alert writer", zap.Error(err))
			errs = append(errs, err)
		}
	}
	if p.opts.AdjacencyWriter != nil {
		if err := p.opts.AdjacencyWriter.Close(); err != nil {
			p.logger.Error("failed to close adjacency writer", zap.Error(err))
			errs = append(errs, err)
		}
	}
	if err := p.opts.Source.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
