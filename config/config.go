package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the root configuration.
type Config struct {
	AlertRank AlertRankConfig `yaml:"alertrank"`
}

// AlertRankConfig is the project configuration.
type AlertRankConfig struct {
	Input          InputConfig          `yaml:"input"`
	Pipeline       PipelineConfig       `yaml:"pipeline"`
	Rules          RulesConfig          `yaml:"rules"`
	Correlation    CorrelationConfig    `yaml:"correlation"`
	Prioritisation PrioritisationConfig `yaml:"prioritisation"`
	Output         OutputConfig         `yaml:"output"`
	Metrics        MetricsConfig        `yaml:"metrics"`
	Logging        LoggingConfig        `yaml:"logging"`
}

// InputConfig controls where alerts are read from.
type InputConfig struct {
	Mode  string          `yaml:"mode"` // csv|jsonl|redis
	Sort  bool            `yaml:"sort"`
	File  FileInputConfig `yaml:"file"`
	Redis RedisConfig     `yaml:"redis"`
}

// FileInputConfig controls CSV and JSONL input.
type FileInputConfig struct {
	Path      string `yaml:"path"`
	Delimiter string `yaml:"delimiter"`
	Header    bool   `yaml:"header"`
}

// RedisConfig controls a Redis connection and list or key prefix.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Key          string        `yaml:"key"`
	BlockTimeout time.Duration `yaml:"block_timeout"`
	TTL          time.Duration `yaml:"ttl"`
}

// PipelineConfig controls the ingestion worker pool.
type PipelineConfig struct {
	Workers int `yaml:"workers"`
}

// RulesConfig controls Sigma enrichment.
type RulesConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// CorrelationConfig controls the correlator. Nil means default.
type CorrelationConfig struct {
	CorrelationThreshold *float64 `yaml:"correlation_threshold"`
	TimeThreshold        int      `yaml:"time_threshold"`
	SourceIPWeight       *float64 `yaml:"source_ip_weight"`
	DestIPWeight         *float64 `yaml:"dest_ip_weight"`
	DestPortWeight       *float64 `yaml:"dest_port_weight"`
	TimeProximityWeight  *float64 `yaml:"time_proximity_weight"`
}

// PrioritisationConfig controls outlier scoring.
type PrioritisationConfig struct {
	K         int     `yaml:"k"`
	KRatio    float64 `yaml:"k_ratio"`
	MaxCost   float64 `yaml:"max_cost"`
	MaxSteps  int     `yaml:"max_steps"`
	Workers   int     `yaml:"workers"`
	CacheSize int     `yaml:"cache_size"`
	Mapping   string  `yaml:"mapping"`
}

// OutputConfig controls output sinks.
type OutputConfig struct {
	Mode       string                 `yaml:"mode"` // csv|jsonl|http|clickhouse|redis
	File       FileOutputConfig       `yaml:"file"`
	HTTP       HTTPOutputConfig       `yaml:"http"`
	ClickHouse ClickHouseOutputConfig `yaml:"clickhouse"`
	Redis      RedisConfig            `yaml:"redis"`
	Adjacency  FileOutputConfig       `yaml:"adjacency"`
	Summary    FileOutputConfig       `yaml:"summary"`
}

// ClickHouseOutputConfig config for ClickHouse native-protocol batch inserts.
type ClickHouseOutputConfig struct {
	Addr        string        `yaml:"addr"`
	Database    string        `yaml:"database"`
	Table       string        `yaml:"table"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	CreateTable bool          `yaml:"create_table"`
}

// FileOutputConfig config for local output.
type FileOutputConfig struct {
	Path string `yaml:"path"`
}

// HTTPOutputConfig config for remote output.
type HTTPOutputConfig struct {
	URL     string            `yaml:"url"`
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
}

// MetricsConfig controls the Pushgateway push at the end of a run.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return &cfg, nil
}

func float(v float64) *float64 { return &v }

// ApplyDefaults fills every unset option.
func ApplyDefaults(cfg *Config) {
	c := &cfg.AlertRank

	if c.Input.Mode == "" {
		c.Input.Mode = "csv"
	}
	if c.Input.File.Path == "" {
		c.Input.File.Path = "alerts.csv"
	}
	if c.Input.File.Delimiter == "" {
		c.Input.File.Delimiter = ","
	}
	if c.Input.Redis.Addr == "" {
		c.Input.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Input.Redis.Key == "" {
		c.Input.Redis.Key = "alerts"
	}
	if c.Input.Redis.BlockTimeout == 0 {
		c.Input.Redis.BlockTimeout = time.Second
	}

	if c.Pipeline.Workers <= 0 {
		c.Pipeline.Workers = 8
	}

	if c.Correlation.CorrelationThreshold == nil {
		c.Correlation.CorrelationThreshold = float(0.8)
	}
	if c.Correlation.TimeThreshold <= 0 {
		c.Correlation.TimeThreshold = 30
	}
	for _, w := range []**float64{
		&c.Correlation.SourceIPWeight,
		&c.Correlation.DestIPWeight,
		&c.Correlation.DestPortWeight,
		&c.Correlation.TimeProximityWeight,
	} {
		if *w == nil {
			*w = float(1)
		}
	}

	if c.Prioritisation.MaxCost <= 0 {
		c.Prioritisation.MaxCost = 100
	}
	if c.Prioritisation.MaxSteps <= 0 {
		c.Prioritisation.MaxSteps = 100000
	}
	if c.Prioritisation.CacheSize <= 0 {
		c.Prioritisation.CacheSize = 4096
	}
	if c.Prioritisation.Mapping == "" {
		c.Prioritisation.Mapping = "quartile"
	}

	if c.Output.Mode == "" {
		c.Output.Mode = "csv"
	}
	if c.Output.File.Path == "" {
		c.Output.File.Path = "output/prioritised.csv"
	}
	if c.Output.ClickHouse.Database == "" {
		c.Output.ClickHouse.Database = "alertrank"
	}
	if c.Output.ClickHouse.Table == "" {
		c.Output.ClickHouse.Table = "prioritised_alerts"
	}
	if c.Output.Redis.Addr == "" {
		c.Output.Redis.Addr = c.Input.Redis.Addr
	}
	if c.Output.Redis.Key == "" {
		c.Output.Redis.Key = "alertrank"
	}

	if c.Metrics.Job == "" {
		c.Metrics.Job = "alertrank"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks option ranges after defaults are applied.
func Validate(cfg *Config) error {
	c := &cfg.AlertRank
	var problems []string

	switch c.Input.Mode {
	case "csv", "jsonl", "redis":
	default:
		problems = append(problems, fmt.Sprintf("unknown input mode %q", c.Input.Mode))
	}
	if c.Input.Mode != "redis" && strings.TrimSpace(c.Input.File.Path) == "" {
		problems = append(problems, "input.file.path is empty")
	}
	if len([]rune(c.Input.File.Delimiter)) != 1 {
		problems = append(problems, fmt.Sprintf("input.file.delimiter must be one character, got %q", c.Input.File.Delimiter))
	}

	if c.Correlation.CorrelationThreshold != nil && *c.Correlation.CorrelationThreshold < 0 {
		problems = append(problems, "correlation.correlation_threshold must not be negative")
	}
	sum := 0.0
	for name, w := range map[string]*float64{
		"source_ip_weight":      c.Correlation.SourceIPWeight,
		"dest_ip_weight":        c.Correlation.DestIPWeight,
		"dest_port_weight":      c.Correlation.DestPortWeight,
		"time_proximity_weight": c.Correlation.TimeProximityWeight,
	} {
		if w == nil {
			continue
		}
		if *w < 0 {
			problems = append(problems, fmt.Sprintf("correlation.%s must not be negative", name))
		}
		sum += *w
	}
	if sum <= 0 {
		problems = append(problems, "correlation weights sum to zero")
	}

	p := c.Prioritisation
	if p.K < 0 {
		problems = append(problems, "prioritisation.k must not be negative")
	}
	if p.KRatio < 0 || p.KRatio >= 1 {
		problems = append(problems, "prioritisation.k_ratio must be in [0,1)")
	}
	switch p.Mapping {
	case "quartile", "rounded":
	default:
		problems = append(problems, fmt.Sprintf("unknown prioritisation.mapping %q", p.Mapping))
	}

	switch c.Output.Mode {
	case "csv", "jsonl":
		if strings.TrimSpace(c.Output.File.Path) == "" {
			problems = append(problems, "output.file.path is empty")
		}
	case "http":
		if strings.TrimSpace(c.Output.HTTP.URL) == "" {
			problems = append(problems, "output.http.url is empty")
		}
	case "clickhouse":
		if strings.TrimSpace(c.Output.ClickHouse.Addr) == "" {
			problems = append(problems, "output.clickhouse.addr is empty")
		}
	case "redis":
	default:
		problems = append(problems, fmt.Sprintf("unknown output mode %q", c.Output.Mode))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
