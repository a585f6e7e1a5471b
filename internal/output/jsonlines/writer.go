// Package jsonlines writes one JSON document per line to a file. The alert,
// adjacency and summary sinks are thin typed wrappers around Writer.
package jsonlines

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Options controls how the file is opened.
type Options struct {
	// Append keeps existing lines so successive runs accumulate in one file.
	Append bool
	// Name labels the sink in log lines and errors, e.g. "alert".
	Name string
}

// Writer encodes values of type T as JSON lines. It is safe for concurrent use.
type Writer[T any] struct {
	mu      sync.Mutex
	name    string
	file    *os.File
	buf     *bufio.Writer
	encoder *json.Encoder
}

// New opens path for writing, creating parent directories.
func New[T any](path string, opts Options, logger *zap.Logger) (*Writer[T], error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if opts.Append {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}

	name := opts.Name
	if name == "" {
		name = "row"
	}
	if logger != nil {
		logger.Info(name+" JSON writer initialized", zap.String("path", path), zap.Bool("append", opts.Append))
	}
	buf := bufio.NewWriter(f)
	return &Writer[T]{
		name:    name,
		file:    f,
		buf:     buf,
		encoder: json.NewEncoder(buf),
	}, nil
}

// Write encodes a batch of values.
func (w *Writer[T]) Write(rows []T) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return fmt.Errorf("%s JSON writer is closed", w.name)
	}
	for _, row := range rows {
		if err := w.encoder.Encode(row); err != nil {
			return fmt.Errorf("failed to encode %s: %w", w.name, err)
		}
	}
	return nil
}

// Close flushes buffered lines and closes the file. Closing twice is a no-op.
func (w *Writer[T]) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	flushErr := w.buf.Flush()
	err := w.file.Close()
	w.file = nil
	if flushErr != nil {
		return fmt.Errorf("failed to flush %s output: %w", w.name, flushErr)
	}
	return err
}
