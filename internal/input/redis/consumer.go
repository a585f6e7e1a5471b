package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"alertrank/internal/transform/alertjson"
	"alertrank/pkg/models"
)

const drainBatch = 500

// Config configures the Redis consumer.
type Config struct {
	Addr         string
	Password     string
	DB           int
	Key          string
	BlockTimeout time.Duration
}

// Consumer drains JSON alert records from a Redis list.
type Consumer struct {
	client       *redis.Client
	key          string
	blockTimeout time.Duration
	logger       *zap.Logger
	skipped      int
}

// NewConsumer creates a Redis consumer for list-based queues.
func NewConsumer(cfg Config, logger *zap.Logger) (*Consumer, error) {
	if cfg.Key == "" {
		return nil, fmt.Errorf("redis key is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return newConsumer(client, cfg, logger)
}

func newConsumer(client *redis.Client, cfg Config, logger *zap.Logger) (*Consumer, error) {
	if cfg.Key == "" {
		return nil, fmt.Errorf("redis key is required")
	}
	if cfg.BlockTimeout == 0 {
		cfg.BlockTimeout = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		client:       client,
		key:          cfg.Key,
		blockTimeout: cfg.BlockTimeout,
		logger:       logger,
	}, nil
}

// Pop waits up to the block timeout for one message. It returns nil, nil
// when the list stays empty.
func (c *Consumer) Pop(ctx context.Context) ([]byte, error) {
	res, err := c.client.BLPop(ctx, c.blockTimeout, c.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(res) < 2 {
		return nil, nil
	}
	return []byte(res[1]), nil
}

// ReadAll waits for the first record, then drains the list without blocking.
// Malformed records are skipped and counted.
func (c *Consumer) ReadAll(ctx context.Context) ([]*models.Alert, error) {
	first, err := c.Pop(ctx)
	if err != nil {
		return nil, fmt.Errorf("redis pop %s: %w", c.key, err)
	}
	if first == nil {
		return nil, nil
	}

	out := c.appendParsed(nil, first)
	for {
		batch, err := c.client.LPopCount(ctx, c.key, drainBatch).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("redis drain %s: %w", c.key, err)
		}
		for _, msg := range batch {
			out = c.appendParsed(out, []byte(msg))
		}
		if len(batch) < drainBatch {
			break
		}
	}
	return out, nil
}

func (c *Consumer) appendParsed(out []*models.Alert, msg []byte) []*models.Alert {
	a, err := alertjson.Parse(msg)
	if err != nil {
		c.skipped++
		c.logger.Warn("skipping redis record", zap.String("key", c.key), zap.Error(err))
		return out
	}
	return append(out, a)
}

// Skipped returns how many records were dropped.
func (c *Consumer) Skipped() int {
	return c.skipped
}

// Close closes the consumer.
func (c *Consumer) Close() error {
	return c.client.Close()
}
