package report

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alertrank/internal/graph"
	"alertrank/pkg/models"
)

func build(t *testing.T, key string, alerts ...*models.Alert) *graph.Graph[*models.Alert] {
	t.Helper()
	var g *graph.Graph[*models.Alert]
	for _, a := range alerts {
		n, err := graph.NewNode(a, a.Key, a.Name, 1)
		require.NoError(t, err)
		if g == nil {
			g, err = graph.New(key, n)
			require.NoError(t, err)
			continue
		}
		_, err = g.Connect(n, 1)
		require.NoError(t, err)
	}
	return g
}

func TestBuildSummaries(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	a1 := models.NewAlert(start, start.Add(time.Minute), "a1", "scan", "", "10.0.0.1", "1", "10.0.0.2", "22")
	a2 := models.NewAlert(start.Add(2*time.Minute), start.Add(10*time.Minute), "a2", "exploit", "", "10.0.0.1", "1", "10.0.0.3", "22")
	a3 := models.NewAlert(start.Add(3*time.Minute), start.Add(4*time.Minute), "a3", "scan", "", "10.0.0.1", "1", "10.0.0.2", "22")
	for _, a := range []*models.Alert{a1, a2, a3} {
		a.Priority, a.Score = 3, 0.6
	}
	g := build(t, "5", a1, a2, a3)
	g.Tags["outlier_factor"] = "1.250000"

	out := Build([]*graph.Graph[*models.Alert]{g, nil})
	require.Len(t, out, 1)
	s := out[0]
	assert.Equal(t, "5", s.Key)
	assert.Equal(t, 3, s.Alerts)
	assert.Equal(t, 2, s.Edges)
	assert.Equal(t, start, s.FirstSeen)
	assert.Equal(t, start.Add(10*time.Minute), s.LastSeen)
	assert.Equal(t, []string{"scan", "exploit"}, s.Names)
	assert.Equal(t, []string{"10.0.0.1"}, s.Sources)
	assert.Equal(t, []string{"10.0.0.2", "10.0.0.3"}, s.Destinations)
	assert.Equal(t, 1.25, s.OutlierFactor)
	assert.Equal(t, "high", s.Severity)
}

func TestUnscoredSeverity(t *testing.T) {
	now := time.Now()
	g := build(t, "0", models.NewAlert(now, now, "a", "n", "", "", "", "", ""))
	out := Build([]*graph.Graph[*models.Alert]{g})
	assert.Equal(t, "unscored", out[0].Severity)
	assert.Zero(t, out[0].OutlierFactor)
}

func TestRank(t *testing.T) {
	in := []*models.MetaAlertSummary{
		{Key: "a", Priority: 1, OutlierFactor: 1},
		{Key: "b", Priority: 4, OutlierFactor: 2},
		{Key: "c", Priority: 4, OutlierFactor: 3},
		{Key: "d", Priority: 1, OutlierFactor: 1, Alerts: 5},
		{Key: "e", Priority: 1, OutlierFactor: 1},
	}
	Rank(in)
	var keys []string
	for _, s := range in {
		keys = append(keys, s.Key)
	}
	assert.Equal(t, []string{"c", "b", "d", "a", "e"}, keys)
}

func TestWriteJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "summaries.jsonl")
	require.NoError(t, WriteJSONLines(path, []*models.MetaAlertSummary{{Key: "0"}, {Key: "1"}}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	lines := 0
	for s := bufio.NewScanner(f); s.Scan(); {
		lines++
	}
	assert.Equal(t, 2, lines)
}
