package pipeline

import (
	"context"

	"alertrank/pkg/models"
)

// AlertSource reads one batch of alerts.
type AlertSource interface {
	ReadAll(ctx context.Context) ([]*models.Alert, error)
	Skipped() int
	Close() error
}

// AlertWriter writes prioritised alerts.
type AlertWriter interface {
	WriteAlerts(ctx context.Context, alerts []*models.Alert) error
	Close() error
}

// SummaryWriter is implemented by alert writers that also store meta-alert summaries.
type SummaryWriter interface {
	WriteSummaries(ctx context.Context, summaries []*models.MetaAlertSummary) error
}

// AdjacencyWriter writes graph rows.
type AdjacencyWriter interface {
	WriteRows(rows []*models.AdjacencyRow) error
	Close() error
}
