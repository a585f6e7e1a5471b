package adjacencyjson

import (
	"go.uber.org/zap"

	"alertrank/internal/output/jsonlines"
	"alertrank/pkg/models"
)

// Writer outputs adjacency rows to a JSON lines file.
type Writer struct {
	lines *jsonlines.Writer[*models.AdjacencyRow]
}

// NewWriter creates a JSONL writer for adjacency rows.
// Rows are appended, so successive runs accumulate in one file.
func NewWriter(path string, logger *zap.Logger) (*Writer, error) {
	lines, err := jsonlines.New[*models.AdjacencyRow](path, jsonlines.Options{Append: true, Name: "adjacency"}, logger)
	if err != nil {
		return nil, err
	}
	return &Writer{lines: lines}, nil
}

// WriteRows writes a batch of adjacency rows.
func (w *Writer) WriteRows(rows []*models.AdjacencyRow) error {
	return w.lines.Write(rows)
}

// Close flushes and closes the output file.
func (w *Writer) Close() error {
	return w.lines.Close()
}
