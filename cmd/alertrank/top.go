package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"alertrank/pkg/models"
)

// runReader is the read side of the Redis result store.
type runReader interface {
	LatestRun(ctx context.Context) (string, error)
	TopMetaAlerts(ctx context.Context, runID string, limit int64) ([]models.MetaAlertSummary, error)
}

func newTopCommand(v *viper.Viper) *cobra.Command {
	var runID string
	var limit int64
	cmd := &cobra.Command{
		Use:   "top",
		Short: "Show the most anomalous meta-alerts of a run stored in Redis",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(v)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			store, err := newRedisStore(cfg.AlertRank.Output.Redis, "")
			if err != nil {
				return err
			}
			defer store.Close()
			return printTop(cmd.Context(), cmd.OutOrStdout(), store, runID, limit)
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "run id, defaults to the latest run")
	cmd.Flags().Int64Var(&limit, "limit", 20, "number of meta-alerts to show")
	return cmd
}

func printTop(ctx context.Context, out io.Writer, store runReader, runID string, limit int64) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if runID == "" {
		latest, err := store.LatestRun(ctx)
		if err != nil {
			return err
		}
		if latest == "" {
			return fmt.Errorf("no runs stored")
		}
		runID = latest
	}
	top, err := store.TopMetaAlerts(ctx, runID, limit)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "run %s\n", runID)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tPRIORITY\tSEVERITY\tLOF\tALERTS\tFIRST SEEN\tNAMES")
	for _, s := range top {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%.4f\t%d\t%s\t%v\n",
			s.Key, s.Priority, s.Severity, s.OutlierFactor, s.Alerts,
			s.FirstSeen.Format("2006-01-02 15:04:05"), s.Names)
	}
	return tw.Flush()
}
