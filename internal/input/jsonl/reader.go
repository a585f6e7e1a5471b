// Package jsonl reads alerts from newline-delimited JSON files.
package jsonl

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"alertrank/internal/transform/alertjson"
	"alertrank/pkg/models"
)

const maxLine = 4 * 1024 * 1024

// Reader loads every alert from one JSONL file.
type Reader struct {
	path    string
	logger  *zap.Logger
	skipped int
}

// NewReader creates a JSONL reader.
func NewReader(path string, logger *zap.Logger) (*Reader, error) {
	if path == "" {
		return nil, fmt.Errorf("jsonl input path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{path: path, logger: logger}, nil
}

// ReadAll parses the file, skipping blank and malformed lines.
func (r *Reader) ReadAll(ctx context.Context) ([]*models.Alert, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open jsonl input: %w", err)
	}
	defer f.Close()
	return r.decode(ctx, f)
}

func (r *Reader) decode(ctx context.Context, src io.Reader) ([]*models.Alert, error) {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)

	var out []*models.Alert
	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		a, err := alertjson.Parse(data)
		if err != nil {
			r.skipped++
			r.logger.Warn("skipping jsonl line", zap.String("path", r.path), zap.Int("line", line), zap.Error(err))
			continue
		}
		out = append(out, a)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read jsonl input: %w", err)
	}
	return out, nil
}

// Skipped returns how many lines were dropped.
func (r *Reader) Skipped() int {
	return r.skipped
}

// Close is a no-op; the file is closed after ReadAll.
func (r *Reader) Close() error {
	return nil
}
