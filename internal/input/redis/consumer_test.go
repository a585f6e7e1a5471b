package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func TestReadAllDrainsList(t *testing.T) {
	mr, client := setupTestRedis(t)
	c, err := newConsumer(client, Config{Key: "alerts", BlockTimeout: time.Second}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer c.Close()

	for i := 0; i < 1200; i++ {
		_, err := mr.RPush("alerts", fmt.Sprintf(`{"key":"a%d","name":"scan","start_time":%d}`, i, i*1000))
		require.NoError(t, err)
	}
	_, err = mr.RPush("alerts", `{"key":"bad"}`)
	require.NoError(t, err)

	alerts, err := c.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts, 1200)
	assert.Equal(t, "a0", alerts[0].Key)
	assert.Equal(t, "a1199", alerts[1199].Key)
	assert.Equal(t, 1, c.Skipped())
	assert.False(t, mr.Exists("alerts"))
}

func TestNewConsumerRequiresKey(t *testing.T) {
	_, err := NewConsumer(Config{Addr: "127.0.0.1:0"}, nil)
	assert.Error(t, err)
}
