package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"alertrank/config"
	"alertrank/internal/correlator"
	"alertrank/internal/ged"
	"alertrank/internal/graph/adjacency"
	"alertrank/internal/input/csvfile"
	"alertrank/internal/input/jsonl"
	inputredis "alertrank/internal/input/redis"
	"alertrank/internal/logger"
	"alertrank/internal/metrics"
	"alertrank/internal/output/adjacencyjson"
	"alertrank/internal/output/alertclickhouse"
	"alertrank/internal/output/alertcsv"
	"alertrank/internal/output/alerthttp"
	"alertrank/internal/output/alertjson"
	"alertrank/internal/output/alertredis"
	"alertrank/internal/pipeline"
	"alertrank/internal/prioritiser"
	"alertrank/internal/rules"
	"alertrank/internal/similarity"
)

func newRankCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "rank",
		Short: "Correlate alerts, score meta-alerts and write prioritised alerts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), v, true)
		},
	}
}

func newCorrelateCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "correlate",
		Short: "Correlate alerts into meta-alerts without scoring them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), v, false)
		},
	}
}

// run executes one batch and prints the run statistics as JSON to out. Logs
// go to stderr or the log file, never to out.
func run(parent context.Context, out io.Writer, v *viper.Viper, prioritise bool) error {
	cfg, configPath, err := loadConfig(v)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c := cfg.AlertRank

	log, closeLog, err := logger.New(c.Logging.Enabled, c.Logging.Level, c.Logging.File, c.Logging.Console)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		_ = log.Sync()
		_ = closeLog()
	}()
	if configPath != "" {
		log.Info("config loaded", zap.String("path", configPath))
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	opts := pipeline.Options{
		RunID:      runID,
		SourceName: c.Input.Mode,
		Sort:       c.Input.Sort,
		Workers:    c.Pipeline.Workers,
		Metrics:    metrics.New(),
		Logger:     log,
	}

	if opts.Source, err = buildSource(c.Input, log); err != nil {
		return err
	}
	if opts.Engine, err = buildEngine(c.Rules, log); err != nil {
		opts.Source.Close()
		return err
	}
	if opts.Correlator, err = buildCorrelator(c.Correlation, log); err != nil {
		opts.Source.Close()
		return err
	}
	if prioritise {
		if opts.Prioritiser, err = buildPrioritiser(c.Prioritisation, log); err != nil {
			opts.Source.Close()
			return err
		}
		if opts.AlertWriter, err = buildAlertWriter(c, runID, log); err != nil {
			opts.Source.Close()
			return err
		}
	}
	if c.Output.Adjacency.Path != "" {
		w, err := adjacencyjson.NewWriter(c.Output.Adjacency.Path, log)
		if err != nil {
			opts.Source.Close()
			return fmt.Errorf("create adjacency writer: %w", err)
		}
		opts.AdjacencyWriter = w
		opts.Mapper = adjacency.NewMapper(adjacency.MapperOptions{WriteVertexRows: true, IncludeAlertData: true})
	}
	opts.SummaryPath = c.Output.Summary.Path

	pipe, err := pipeline.New(opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := pipe.Close(); err != nil {
			log.Error("error closing pipeline", zap.Error(err))
		}
	}()

	stats, err := pipe.Run(ctx)
	if err != nil {
		return err
	}

	if c.Metrics.PushgatewayURL != "" {
		pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := opts.Metrics.Push(pushCtx, c.Metrics.PushgatewayURL, c.Metrics.Job, runID); err != nil {
			log.Warn("metrics push failed", zap.Error(err))
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}

func buildSource(in config.InputConfig, log *zap.Logger) (pipeline.AlertSource, error) {
	switch in.Mode {
	case "csv":
		r, err := csvfile.NewReader(csvfile.Config{
			Path:      in.File.Path,
			Delimiter: []rune(in.File.Delimiter)[0],
			Header:    in.File.Header,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("create csv reader: %w", err)
		}
		log.Info("input mode: csv", zap.String("path", in.File.Path))
		return r, nil
	case "jsonl":
		r, err := jsonl.NewReader(in.File.Path, log)
		if err != nil {
			return nil, fmt.Errorf("create jsonl reader: %w", err)
		}
		log.Info("input mode: jsonl", zap.String("path", in.File.Path))
		return r, nil
	case "redis":
		r, err := inputredis.NewConsumer(inputredis.Config{
			Addr:         in.Redis.Addr,
			Password:     in.Redis.Password,
			DB:           in.Redis.DB,
			Key:          in.Redis.Key,
			BlockTimeout: in.Redis.BlockTimeout,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("create redis consumer: %w", err)
		}
		log.Info("input mode: redis", zap.String("addr", in.Redis.Addr), zap.String("key", in.Redis.Key))
		return r, nil
	default:
		return nil, fmt.Errorf("unknown input mode: %s", in.Mode)
	}
}

func buildEngine(rc config.RulesConfig, log *zap.Logger) (rules.Engine, error) {
	if !rc.Enabled {
		return &rules.NoopEngine{}, nil
	}
	if strings.TrimSpace(rc.Path) == "" {
		log.Warn("rules enabled but rules.path is empty; enrichment disabled")
		return &rules.NoopEngine{}, nil
	}
	engine, stats, err := rules.NewSigmaEngine(rc.Path)
	if err != nil {
		return nil, fmt.Errorf("load sigma rules: %w", err)
	}
	log.Info("sigma rules loaded",
		zap.Int("loaded", stats.Loaded),
		zap.Int("skipped_complex", stats.SkippedComplex),
		zap.Int("skipped_datasource", stats.SkippedDatasource),
		zap.Int("skipped_invalid", stats.SkippedInvalid),
		zap.Int("files", stats.TotalFiles),
	)
	if stats.Loaded == 0 {
		log.Warn("no compatible sigma rules loaded; enrichment is effectively disabled")
	}
	return engine, nil
}

func buildCorrelator(cc config.CorrelationConfig, log *zap.Logger) (*correlator.Correlator, error) {
	return correlator.New(correlator.Config{
		CorrelationThreshold: *cc.CorrelationThreshold,
		TimeThreshold:        cc.TimeThreshold,
		Weights: similarity.Weights{
			SourceIP:      *cc.SourceIPWeight,
			DestIP:        *cc.DestIPWeight,
			DestPort:      *cc.DestPortWeight,
			TimeProximity: *cc.TimeProximityWeight,
		},
	}, log.Named("correlator"))
}

// buildPrioritiser requires k or k_ratio: ranking without a neighbour count
// would write every alert unprioritised.
func buildPrioritiser(pc config.PrioritisationConfig, log *zap.Logger) (*prioritiser.Prioritiser, error) {
	if pc.K == 0 && pc.KRatio == 0 {
		return nil, fmt.Errorf("%w: rank needs prioritisation.k or prioritisation.k_ratio (--k, --k-ratio)", prioritiser.ErrInvalidConfiguration)
	}
	oracle, err := ged.NewCache(ged.NewSearcher(pc.MaxSteps), pc.CacheSize)
	if err != nil {
		return nil, err
	}
	return prioritiser.New(prioritiser.Config{
		K:       pc.K,
		KRatio:  pc.KRatio,
		MaxCost: pc.MaxCost,
		Workers: pc.Workers,
		Mapping: prioritiser.Mapping(pc.Mapping),
	}, oracle, log.Named("prioritiser"))
}

func buildAlertWriter(c config.AlertRankConfig, runID string, log *zap.Logger) (pipeline.AlertWriter, error) {
	out := c.Output
	switch out.Mode {
	case "csv":
		w, err := alertcsv.NewWriter(out.File.Path, []rune(c.Input.File.Delimiter)[0])
		if err != nil {
			return nil, fmt.Errorf("create csv writer: %w", err)
		}
		log.Info("output mode: csv", zap.String("path", out.File.Path))
		return w, nil
	case "jsonl":
		w, err := alertjson.NewWriter(out.File.Path, log)
		if err != nil {
			return nil, fmt.Errorf("create jsonl writer: %w", err)
		}
		log.Info("output mode: jsonl", zap.String("path", out.File.Path))
		return w, nil
	case "http":
		w, err := alerthttp.NewWriter(alerthttp.Config{
			URL:     out.HTTP.URL,
			Timeout: out.HTTP.Timeout,
			Headers: out.HTTP.Headers,
		})
		if err != nil {
			return nil, fmt.Errorf("create http writer: %w", err)
		}
		log.Info("output mode: http", zap.String("url", out.HTTP.URL))
		return w, nil
	case "clickhouse":
		w, err := alertclickhouse.NewWriter(alertclickhouse.Config{
			Addr:        out.ClickHouse.Addr,
			Database:    out.ClickHouse.Database,
			Table:       out.ClickHouse.Table,
			Username:    out.ClickHouse.Username,
			Password:    out.ClickHouse.Password,
			DialTimeout: out.ClickHouse.DialTimeout,
			CreateTable: out.ClickHouse.CreateTable,
			RunID:       runID,
		})
		if err != nil {
			return nil, fmt.Errorf("create clickhouse writer: %w", err)
		}
		log.Info("output mode: clickhouse",
			zap.String("addr", out.ClickHouse.Addr),
			zap.String("table", out.ClickHouse.Database+"."+out.ClickHouse.Table),
		)
		return w, nil
	case "redis":
		w, err := newRedisStore(out.Redis, runID)
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		log.Info("output mode: redis", zap.String("addr", out.Redis.Addr), zap.String("prefix", out.Redis.Key))
		return w, nil
	default:
		return nil, fmt.Errorf("unknown output mode: %s", out.Mode)
	}
}

func newRedisStore(rc config.RedisConfig, runID string) (*alertredis.Store, error) {
	return alertredis.NewStore(alertredis.Config{
		Addr:      rc.Addr,
		Password:  rc.Password,
		DB:        rc.DB,
		KeyPrefix: rc.Key,
		RunID:     runID,
		TTL:       rc.TTL,
	})
}
