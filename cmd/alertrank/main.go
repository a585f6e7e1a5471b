package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"alertrank/config"
)

const defaultConfigName = "alertrank.yml"

func findConfigFile(configArg string) string {
	if configArg != "" {
		if _, err := os.Stat(configArg); err == nil {
			return configArg
		}
		log.Printf("Warning: config file not found at %s, trying default locations", configArg)
	}

	if _, err := os.Stat(defaultConfigName); err == nil {
		return defaultConfigName
	}

	exePath, err := os.Executable()
	if err == nil {
		path := filepath.Join(filepath.Dir(exePath), defaultConfigName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadConfig reads the YAML file if one is found, then applies flag and
// ALERTRANK_* environment overrides, defaults and validation.
func loadConfig(v *viper.Viper) (*config.Config, string, error) {
	cfg := &config.Config{}
	path := findConfigFile(v.GetString("config"))
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, "", err
		}
		cfg = loaded
	}
	applyOverrides(cfg, v)
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func applyOverrides(cfg *config.Config, v *viper.Viper) {
	c := &cfg.AlertRank
	if v.IsSet("k") {
		c.Prioritisation.K = v.GetInt("k")
	}
	if v.IsSet("k-ratio") {
		c.Prioritisation.KRatio = v.GetFloat64("k-ratio")
	}
	if v.IsSet("input") {
		c.Input.File.Path = v.GetString("input")
	}
	if v.IsSet("input-mode") {
		c.Input.Mode = v.GetString("input-mode")
	}
	if v.IsSet("output") {
		c.Output.File.Path = v.GetString("output")
	}
	if v.IsSet("output-mode") {
		c.Output.Mode = v.GetString("output-mode")
	}
	if v.IsSet("correlation-threshold") {
		t := v.GetFloat64("correlation-threshold")
		c.Correlation.CorrelationThreshold = &t
	}
	if v.IsSet("time-threshold") {
		c.Correlation.TimeThreshold = v.GetInt("time-threshold")
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("ALERTRANK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

func newRootCommand(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:           "alertrank",
		Short:         "Correlate IDS alerts into meta-alerts and rank them by anomaly",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "path to alertrank.yml")
	flags.Int("k", 0, "neighbour count for outlier scoring")
	flags.Float64("k-ratio", 0, "derive k as round(meta-alerts * ratio) when k is 0")
	flags.String("input", "", "input file path")
	flags.String("input-mode", "", "input mode: csv|jsonl|redis")
	flags.String("output", "", "output file path")
	flags.String("output-mode", "", "output mode: csv|jsonl|http|clickhouse|redis")
	flags.Float64("correlation-threshold", 0, "minimum similarity to join a meta-alert")
	flags.Int("time-threshold", 0, "correlation window length in minutes")
	_ = v.BindPFlags(flags)

	root.AddCommand(newRankCommand(v), newCorrelateCommand(v), newTopCommand(v))
	return root
}

func main() {
	if err := newRootCommand(newViper()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
