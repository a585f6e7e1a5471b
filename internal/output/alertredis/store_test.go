package alertredis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alertrank/pkg/models"
)

func setupTestRedis(t *testing.T, cfg Config) (*miniredis.Miniredis, *Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := newStore(client, cfg)
	t.Cleanup(func() { s.Close() })
	return mr, s
}

func TestWriteAndQueryRun(t *testing.T) {
	mr, s := setupTestRedis(t, Config{RunID: "r1", TTL: time.Hour})
	ctx := context.Background()

	now := time.Now().UTC()
	a := models.NewAlert(now, now, "a1", "scan", "", "10.0.0.1", "1", "10.0.0.2", "22")
	a.Priority, a.Score = 4, 1
	require.NoError(t, s.WriteAlerts(ctx, []*models.Alert{a}))
	require.NoError(t, s.WriteSummaries(ctx, []*models.MetaAlertSummary{
		{Key: "0", Alerts: 3, OutlierFactor: 1.0, Priority: 1},
		{Key: "1", Alerts: 1, OutlierFactor: 9.5, Priority: 4},
		{Key: "2", Alerts: 2, OutlierFactor: 2.0, Priority: 1},
	}))

	assert.True(t, mr.Exists("alertrank:run:r1:alerts"))
	assert.Equal(t, time.Hour, mr.TTL("alertrank:run:r1:meta_alerts"))
	score, err := mr.ZScore("alertrank:run:r1:alerts:by_score", "a1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r1", latest)

	top, err := s.TopMetaAlerts(ctx, latest, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "1", top[0].Key)
	assert.Equal(t, "2", top[1].Key)
}

func TestEmptyStore(t *testing.T) {
	_, s := setupTestRedis(t, Config{})
	ctx := context.Background()

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Empty(t, latest)

	top, err := s.TopMetaAlerts(ctx, "missing", 0)
	require.NoError(t, err)
	assert.Empty(t, top)

	now := time.Now()
	err = s.WriteAlerts(ctx, []*models.Alert{models.NewAlert(now, now, "a", "n", "", "", "", "", "")})
	assert.Error(t, err, "writes need a run id")
}

func TestAlertsWithoutUniqueKeysAreAllStored(t *testing.T) {
	mr, s := setupTestRedis(t, Config{RunID: "r2"})
	ctx := context.Background()

	now := time.Now().UTC()
	mk := func(key string) *models.Alert {
		return models.NewAlert(now, now, key, "scan", "", "10.0.0.1", "1", "10.0.0.2", "22")
	}
	require.NoError(t, s.WriteAlerts(ctx, []*models.Alert{mk("a1"), mk(""), mk("a1")}))
	require.NoError(t, s.WriteAlerts(ctx, []*models.Alert{mk(""), mk("a1")}))

	fields, err := mr.HKeys("alertrank:run:r2:alerts")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a1", "alert-1", "a1#2", "alert-3", "a1#4"}, fields)

	members, err := mr.ZMembers("alertrank:run:r2:alerts:by_score")
	require.NoError(t, err)
	assert.Len(t, members, 5)
}
