package alertjson

import (
	"context"

	"go.uber.org/zap"

	"alertrank/internal/output/jsonlines"
	"alertrank/pkg/models"
)

// Writer outputs alerts to a JSON lines file.
type Writer struct {
	lines *jsonlines.Writer[*models.Alert]
}

// NewWriter creates a JSONL writer for alerts. An existing file is replaced.
func NewWriter(path string, logger *zap.Logger) (*Writer, error) {
	lines, err := jsonlines.New[*models.Alert](path, jsonlines.Options{Name: "alert"}, logger)
	if err != nil {
		return nil, err
	}
	return &Writer{lines: lines}, nil
}

// WriteAlerts writes a batch of alerts.
func (w *Writer) WriteAlerts(_ context.Context, alerts []*models.Alert) error {
	return w.lines.Write(alerts)
}

// Close flushes and closes the output file.
func (w *Writer) Close() error {
	return w.lines.Close()
}
