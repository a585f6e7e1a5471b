package alertclickhouse

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"alertrank/pkg/models"
)

var validIdent = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// Config configures the ClickHouse native-protocol writer.
type Config struct {
	Addr        string
	Database    string
	Table       string
	Username    string
	Password    string
	DialTimeout time.Duration
	// CreateTable issues CREATE TABLE IF NOT EXISTS before the first insert.
	CreateTable bool
	// RunID is stamped on every row so runs can be compared side by side.
	RunID string
}

// batch is the subset of driver.Batch used for inserts.
type batch interface {
	Append(v ...any) error
	Send() error
	Abort() error
}

// conn is the subset of driver.Conn used by the writer.
type conn interface {
	Exec(ctx context.Context, query string, args ...any) error
	prepare(ctx context.Context, query string) (batch, error)
	Close() error
}

type driverConn struct {
	driver.Conn
}

func (c driverConn) prepare(ctx context.Context, query string) (batch, error) {
	return c.PrepareBatch(ctx, query)
}

// Writer inserts prioritised alerts into ClickHouse with one batch per call.
type Writer struct {
	conn        conn
	table       string
	runID       string
	createTable bool
	ready       bool
}

// NewWriter opens a ClickHouse connection. The driver dials lazily.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("clickhouse addr is empty")
	}
	if cfg.Database == "" {
		cfg.Database = "default"
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	c, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: cfg.DialTimeout,
		Compression: &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open clickhouse connection: %w", err)
	}
	w, err := newWriter(driverConn{c}, cfg)
	if err != nil {
		c.Close()
		return nil, err
	}
	return w, nil
}

func newWriter(c conn, cfg Config) (*Writer, error) {
	if cfg.Database == "" {
		cfg.Database = "default"
	}
	if cfg.Table == "" {
		cfg.Table = "prioritised_alerts"
	}
	for _, ident := range []string{cfg.Database, cfg.Table} {
		if !validIdent.MatchString(ident) {
			return nil, fmt.Errorf("invalid clickhouse identifier %q", ident)
		}
	}
	return &Writer{
		conn:        c,
		table:       cfg.Database + "." + cfg.Table,
		runID:       cfg.RunID,
		createTable: cfg.CreateTable,
	}, nil
}

const columns = `run_id, key, name, category, start_time, end_time,
	src_ip, src_port, dest_ip, dest_port, count, priority, score`

func (w *Writer) ensureTable(ctx context.Context) error {
	if !w.createTable || w.ready {
		return nil
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id String,
	key String,
	name String,
	category LowCardinality(String),
	start_time DateTime64(3),
	end_time DateTime64(3),
	src_ip String,
	src_port String,
	dest_ip String,
	dest_port String,
	count UInt32,
	priority UInt8,
	score Float64
) ENGINE = MergeTree ORDER BY (run_id, priority, start_time)`, w.table)
	if err := w.conn.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create clickhouse table: %w", err)
	}
	w.ready = true
	return nil
}

// WriteAlerts inserts a batch of alerts.
func (w *Writer) WriteAlerts(ctx context.Context, alerts []*models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	if err := w.ensureTable(ctx); err != nil {
		return err
	}

	b, err := w.conn.prepare(ctx, fmt.Sprintf("INSERT INTO %s (%s)", w.table, columns))
	if err != nil {
		return fmt.Errorf("failed to prepare alert batch: %w", err)
	}
	for i, a := range alerts {
		if i > 0 && i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				_ = b.Abort()
				return err
			}
		}
		err := b.Append(
			w.runID,
			a.Key,
			a.Name,
			a.Category,
			a.StartTime.UTC(),
			a.EndTime.UTC(),
			a.SourceIP,
			a.SourcePort,
			a.DestIP,
			a.DestPort,
			uint32(max(a.Count, 0)),
			uint8(max(a.Priority, 0)),
			a.Score,
		)
		if err != nil {
			_ = b.Abort()
			return fmt.Errorf("failed to append alert %s: %w", a.Key, err)
		}
	}
	if err := b.Send(); err != nil {
		return fmt.Errorf("failed to send alert batch: %w", err)
	}
	return nil
}

// Close releases the connection.
func (w *Writer) Close() error {
	return w.conn.Close()
}
