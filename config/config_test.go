package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "alertrank.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfigAndDefaults(t *testing.T) {
	path := writeConfig(t, `
alertrank:
  input:
    mode: jsonl
    file:
      path: in/alerts.jsonl
  correlation:
    correlation_threshold: 0
    dest_port_weight: 0.5
  pipeline:
    workers: 3
  prioritisation:
    k: 12
    workers: 16
  output:
    mode: redis
    redis:
      ttl: 1h
    clickhouse:
      addr: ch:9000
      create_table: true
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	ApplyDefaults(cfg)
	require.NoError(t, Validate(cfg))

	c := cfg.AlertRank
	assert.Equal(t, "jsonl", c.Input.Mode)
	assert.Equal(t, "in/alerts.jsonl", c.Input.File.Path)
	assert.Equal(t, 0.0, *c.Correlation.CorrelationThreshold, "explicit zero survives defaults")
	assert.Equal(t, 0.5, *c.Correlation.DestPortWeight)
	assert.Equal(t, 1.0, *c.Correlation.SourceIPWeight)
	assert.Equal(t, 30, c.Correlation.TimeThreshold)
	assert.Equal(t, 12, c.Prioritisation.K)
	assert.Equal(t, 3, c.Pipeline.Workers)
	assert.Equal(t, 16, c.Prioritisation.Workers)
	assert.Equal(t, "ch:9000", c.Output.ClickHouse.Addr)
	assert.True(t, c.Output.ClickHouse.CreateTable)
	assert.Equal(t, 100.0, c.Prioritisation.MaxCost)
	assert.Equal(t, "quartile", c.Prioritisation.Mapping)
	assert.Equal(t, time.Hour, c.Output.Redis.TTL)
	assert.Equal(t, "127.0.0.1:6379", c.Output.Redis.Addr)
	assert.Equal(t, "info", c.Logging.Level)
}

func TestPipelineWorkersDefault(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	assert.Equal(t, 8, cfg.AlertRank.Pipeline.Workers)
	assert.Zero(t, cfg.AlertRank.Prioritisation.Workers, "distance workers default to GOMAXPROCS later")
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadConfig(writeConfig(t, "alertrank: [unclosed"))
	assert.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*AlertRankConfig){
		"input mode":  func(c *AlertRankConfig) { c.Input.Mode = "kafka" },
		"delimiter":   func(c *AlertRankConfig) { c.Input.File.Delimiter = ";;" },
		"weight":      func(c *AlertRankConfig) { w := -1.0; c.Correlation.DestIPWeight = &w },
		"k":           func(c *AlertRankConfig) { c.Prioritisation.K = -2 },
		"k ratio":     func(c *AlertRankConfig) { c.Prioritisation.KRatio = 1.5 },
		"mapping":     func(c *AlertRankConfig) { c.Prioritisation.Mapping = "linear" },
		"output mode": func(c *AlertRankConfig) { c.Output.Mode = "kafka" },
		"http url":    func(c *AlertRankConfig) { c.Output.Mode = "http" },
		"clickhouse":  func(c *AlertRankConfig) { c.Output.Mode = "clickhouse" },
		"zero weights": func(c *AlertRankConfig) {
			zero := 0.0
			c.Correlation.SourceIPWeight = &zero
			c.Correlation.DestIPWeight = &zero
			c.Correlation.DestPortWeight = &zero
			c.Correlation.TimeProximityWeight = &zero
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := &Config{}
			ApplyDefaults(cfg)
			mutate(&cfg.AlertRank)
			assert.ErrorIs(t, Validate(cfg), ErrInvalidConfig)
		})
	}
}
