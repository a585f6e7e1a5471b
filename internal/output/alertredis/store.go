// Package alertredis persists one ranking run in Redis: alerts and
// meta-alert summaries as JSON hashes plus sorted sets ordered by outlier
// score for triage queries.
package alertredis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"alertrank/pkg/models"
)

// Config configures Redis access.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	RunID     string
	// TTL expires every key of the run. Zero keeps them.
	TTL time.Duration
}

// Store writes and reads the keys of ranking runs.
type Store struct {
	client *redis.Client
	prefix string
	runID  string
	ttl    time.Duration

	// seen holds the hash fields written so far in this run.
	seen    map[string]struct{}
	written int
}

// NewStore constructs a Redis-backed store and checks connectivity.
func NewStore(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return newStore(client, cfg), nil
}

func newStore(client *redis.Client, cfg Config) *Store {
	prefix := strings.TrimSpace(cfg.KeyPrefix)
	if prefix == "" {
		prefix = "alertrank"
	}
	return &Store{client: client, prefix: prefix, runID: cfg.RunID, ttl: cfg.TTL, seen: make(map[string]struct{})}
}

// alertField names the hash field of the next alert. Empty keys become
// alert-<n> and repeated keys get a #<n> suffix, n being the alert's position
// in the run.
func (s *Store) alertField(a *models.Alert) string {
	n := s.written
	s.written++
	field := strings.TrimSpace(a.Key)
	if field == "" {
		field = "alert-" + strconv.Itoa(n)
	}
	if _, dup := s.seen[field]; dup {
		field += "#" + strconv.Itoa(n)
	}
	s.seen[field] = struct{}{}
	return field
}

// WriteAlerts stores each alert under its key and indexes it by score. Alerts
// without a unique key are stored under a derived field so none is overwritten.
func (s *Store) WriteAlerts(ctx context.Context, alerts []*models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	if s.runID == "" {
		return fmt.Errorf("redis store has no run id")
	}
	pipe := s.client.Pipeline()
	for _, a := range alerts {
		blob, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("marshal alert %s: %w", a.Key, err)
		}
		field := s.alertField(a)
		pipe.HSet(ctx, s.alertsKey(s.runID), field, blob)
		pipe.ZAdd(ctx, s.alertIndexKey(s.runID), redis.Z{Score: a.Score, Member: field})
	}
	s.expire(ctx, pipe, s.alertsKey(s.runID), s.alertIndexKey(s.runID))
	pipe.Set(ctx, s.latestKey(), s.runID, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write alerts to redis: %w", err)
	}
	return nil
}

// WriteSummaries stores each meta-alert summary and indexes it by outlier factor.
func (s *Store) WriteSummaries(ctx context.Context, summaries []*models.MetaAlertSummary) error {
	if len(summaries) == 0 {
		return nil
	}
	if s.runID == "" {
		return fmt.Errorf("redis store has no run id")
	}
	pipe := s.client.Pipeline()
	for _, m := range summaries {
		blob, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal meta-alert %s: %w", m.Key, err)
		}
		pipe.HSet(ctx, s.metaKey(s.runID), m.Key, blob)
		pipe.ZAdd(ctx, s.metaIndexKey(s.runID), redis.Z{Score: m.OutlierFactor, Member: m.Key})
	}
	s.expire(ctx, pipe, s.metaKey(s.runID), s.metaIndexKey(s.runID))
	pipe.Set(ctx, s.latestKey(), s.runID, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write meta-alerts to redis: %w", err)
	}
	return nil
}

func (s *Store) expire(ctx context.Context, pipe redis.Pipeliner, keys ...string) {
	if s.ttl <= 0 {
		return
	}
	for _, k := range keys {
		pipe.Expire(ctx, k, s.ttl)
	}
}

// LatestRun returns the run id written last, or "" when none exists.
func (s *Store) LatestRun(ctx context.Context) (string, error) {
	id, err := s.client.Get(ctx, s.latestKey()).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read latest run: %w", err)
	}
	return id, nil
}

// TopMetaAlerts returns up to limit summaries of a run, most anomalous first.
func (s *Store) TopMetaAlerts(ctx context.Context, runID string, limit int64) ([]models.MetaAlertSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	keys, err := s.client.ZRevRange(ctx, s.metaIndexKey(runID), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read meta-alert index: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	blobs, err := s.client.HMGet(ctx, s.metaKey(runID), keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read meta-alerts: %w", err)
	}

	out := make([]models.MetaAlertSummary, 0, len(blobs))
	for i, raw := range blobs {
		blob, ok := raw.(string)
		if !ok {
			continue
		}
		var m models.MetaAlertSummary
		if err := json.Unmarshal([]byte(blob), &m); err != nil {
			return nil, fmt.Errorf("decode meta-alert %s: %w", keys[i], err)
		}
		out = append(out, m)
	}
	return out, nil
}

// Close closes Redis resources.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *Store) runKey(runID string) string {
	return s.prefix + ":run:" + runID
}

func (s *Store) alertsKey(runID string) string {
	return s.runKey(runID) + ":alerts"
}

func (s *Store) alertIndexKey(runID string) string {
	return s.runKey(runID) + ":alerts:by_score"
}

func (s *Store) metaKey(runID string) string {
	return s.runKey(runID) + ":meta_alerts"
}

func (s *Store) metaIndexKey(runID string) string {
	return s.runKey(runID) + ":meta_alerts:by_score"
}

func (s *Store) latestKey() string {
	return s.prefix + ":latest"
}
