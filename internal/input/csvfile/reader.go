// Package csvfile reads alerts from delimited text files with the nine
// logical fields start_ms,end_ms,key,name,category,src_ip,src_port,dst_ip,dst_port.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"alertrank/internal/transform/alertjson"
	"alertrank/pkg/models"
)

// Fields is the number of columns in an alert row.
const Fields = 9

// Config configures the reader.
type Config struct {
	Path      string
	Delimiter rune
	Header    bool
}

// Reader loads every alert from one file.
type Reader struct {
	cfg     Config
	logger  *zap.Logger
	skipped int
}

// NewReader creates a CSV reader.
func NewReader(cfg Config, logger *zap.Logger) (*Reader, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("csv input path is required")
	}
	if cfg.Delimiter == 0 {
		cfg.Delimiter = ','
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{cfg: cfg, logger: logger}, nil
}

// ReadAll parses the file. Rows with the wrong field count or unparsable
// times are skipped and counted. I/O errors abort the read.
func (r *Reader) ReadAll(ctx context.Context) ([]*models.Alert, error) {
	f, err := os.Open(r.cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open csv input: %w", err)
	}
	defer f.Close()
	return r.decode(ctx, f)
}

func (r *Reader) decode(ctx context.Context, src io.Reader) ([]*models.Alert, error) {
	cr := csv.NewReader(src)
	cr.Comma = r.cfg.Delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	var out []*models.Alert
	line := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				r.skip(line, err)
				continue
			}
			return nil, fmt.Errorf("read csv input: %w", err)
		}
		if line == 1 && r.cfg.Header {
			continue
		}
		a, err := ParseRecord(record)
		if err != nil {
			r.skip(line, err)
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *Reader) skip(line int, err error) {
	r.skipped++
	r.logger.Warn("skipping csv row", zap.String("path", r.cfg.Path), zap.Int("line", line), zap.Error(err))
}

// Skipped returns how many rows were dropped.
func (r *Reader) Skipped() int {
	return r.skipped
}

// Close is a no-op; the file is closed after ReadAll.
func (r *Reader) Close() error {
	return nil
}

// ParseRecord converts one row. Ports are kept verbatim.
func ParseRecord(record []string) (*models.Alert, error) {
	if len(record) != Fields {
		return nil, fmt.Errorf("%w: %d fields, want %d", models.ErrMalformedRecord, len(record), Fields)
	}
	start, ok := alertjson.ParseTime(record[0])
	if !ok {
		return nil, fmt.Errorf("%w: start time %q", models.ErrMalformedRecord, record[0])
	}
	end, ok := alertjson.ParseTime(record[1])
	if !ok {
		return nil, fmt.Errorf("%w: end time %q", models.ErrMalformedRecord, record[1])
	}
	return models.NewAlert(start, end,
		record[2], record[3], record[4],
		record[5], record[6], record[7], record[8],
	), nil
}
