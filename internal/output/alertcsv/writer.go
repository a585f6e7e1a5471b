// Package alertcsv writes prioritised alerts in the nine-field CSV layout
// with the priority appended as a tenth column.
package alertcsv

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"alertrank/pkg/models"
)

// Writer outputs alerts to a delimited file.
type Writer struct {
	file *os.File
	csv  *csv.Writer
	mu   sync.Mutex
}

// NewWriter creates a CSV writer. A zero delimiter means comma.
func NewWriter(path string, delimiter rune) (*Writer, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	cw := csv.NewWriter(f)
	if delimiter != 0 {
		cw.Comma = delimiter
	}
	return &Writer{file: f, csv: cw}, nil
}

// Record renders one alert row.
func Record(a *models.Alert) []string {
	return []string{
		strconv.FormatInt(a.StartTime.UnixMilli(), 10),
		strconv.FormatInt(a.EndTime.UnixMilli(), 10),
		a.Key,
		a.Name,
		a.Category,
		a.SourceIP,
		a.SourcePort,
		a.DestIP,
		a.DestPort,
		strconv.Itoa(a.Priority),
	}
}

// WriteAlerts writes a batch of alerts.
func (w *Writer) WriteAlerts(_ context.Context, alerts []*models.Alert) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, a := range alerts {
		if err := w.csv.Write(Record(a)); err != nil {
			return fmt.Errorf("failed to write alert: %w", err)
		}
	}
	w.csv.Flush()
	return w.csv.Error()
}

// Close flushes and closes the output file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	w.csv.Flush()
	flushErr := w.csv.Error()
	closeErr := w.file.Close()
	w.file = nil
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
