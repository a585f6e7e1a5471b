package correlator

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"alertrank/internal/similarity"
	"alertrank/pkg/models"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func alertAt(key string, minutes float64, src, dst, dport string) *models.Alert {
	start := base.Add(time.Duration(minutes * float64(time.Minute)))
	return models.NewAlert(start, start, key, "scan", "", src, "40000", dst, dport)
}

func newCorrelator(t *testing.T, cfg Config) *Correlator {
	t.Helper()
	c, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	return c
}

func TestIdenticalAlertsMerge(t *testing.T) {
	c := newCorrelator(t, DefaultConfig())
	res := c.Run([]*models.Alert{
		alertAt("a1", 0, "10.0.0.1", "10.0.0.2", "443"),
		alertAt("a2", 1, "10.0.0.1", "10.0.0.2", "443"),
	})

	require.Len(t, res.Graphs, 1)
	g := res.Graphs[0]
	assert.Equal(t, 2, g.Len())
	require.Len(t, g.Edges(), 1)
	assert.Equal(t, "a1->a2", g.Edges()[0].Key)
	assert.InDelta(t, 1.0, g.Edges()[0].Weight, 1e-9)
	assert.Equal(t, 1, res.Stats.Correlated)
}

func TestUnrelatedAlertsStaySeparate(t *testing.T) {
	c := newCorrelator(t, DefaultConfig())
	res := c.Run([]*models.Alert{
		alertAt("a1", 0, "10.0.0.1", "10.0.0.2", "22"),
		alertAt("a2", 45, "192.168.5.7", "172.16.0.9", "80"),
		alertAt("a3", 90, "8.8.8.8", "1.1.1.1", "53"),
	})

	require.Len(t, res.Graphs, 3)
	for i, g := range res.Graphs {
		assert.Equal(t, 1, g.Len())
		assert.Empty(t, g.Edges())
		assert.Equal(t, fmt.Sprint(i), g.Key)
	}
	assert.Equal(t, 3, res.Stats.MetaAlerts)
	assert.Zero(t, res.Stats.Correlated)
}

func TestHighestScoringGraphWins(t *testing.T) {
	c := newCorrelator(t, DefaultConfig())
	res := c.Run([]*models.Alert{
		alertAt("a1", 0, "10.0.0.1", "10.0.0.2", "80"),
		// Same addresses, other port: 0.75, below threshold.
		alertAt("a2", 1, "10.0.0.1", "10.0.0.2", "443"),
		alertAt("a3", 2, "10.0.0.1", "10.0.0.2", "443"),
	})

	require.Len(t, res.Graphs, 2)
	assert.Equal(t, 1, res.Graphs[0].Len())
	assert.Equal(t, 2, res.Graphs[1].Len())
	assert.Equal(t, "a3", res.Graphs[1].LastNode().Key)
}

func TestTiesGoToTheOldestGraph(t *testing.T) {
	c := newCorrelator(t, DefaultConfig())
	// The first two share little prefix and stay apart; the third scores 1.0
	// against both, once directly and once crossed.
	res := c.Run([]*models.Alert{
		alertAt("a1", 0, "1.0.0.1", "2.0.0.2", "80"),
		alertAt("a2", 1, "4.0.0.4", "1.0.0.1", "80"),
		alertAt("a3", 2, "1.0.0.1", "4.0.0.4", "80"),
	})

	require.Len(t, res.Graphs, 2)
	assert.Equal(t, 2, res.Graphs[0].Len())
	assert.Equal(t, "a3", res.Graphs[0].LastNode().Key)
	assert.Equal(t, 1, res.Graphs[1].Len())
}

func TestThresholdAboveMaximumKeepsAlertsApart(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CorrelationThreshold = 1.01
	c := newCorrelator(t, cfg)
	res := c.Run([]*models.Alert{
		alertAt("a1", 0, "10.0.0.1", "10.0.0.2", "80"),
		alertAt("a2", 1, "10.0.0.1", "10.0.0.2", "80"),
	})
	assert.Len(t, res.Graphs, 2)
}

func TestExpiredGraphsAreNotCandidates(t *testing.T) {
	c := newCorrelator(t, DefaultConfig())
	res := c.Run([]*models.Alert{
		alertAt("a1", 0, "10.0.0.1", "10.0.0.2", "443"),
		alertAt("a2", 40, "10.0.0.1", "10.0.0.2", "443"),
	})

	require.Len(t, res.Graphs, 2)
	assert.Equal(t, 1, res.Stats.Expired)
}

func TestLongRunningAlertEvictsIdleGraphs(t *testing.T) {
	c := newCorrelator(t, DefaultConfig())
	long := alertAt("a3", 25, "8.8.8.8", "1.1.1.1", "53")
	long.EndTime = base.Add(100 * time.Minute)

	res := c.Run([]*models.Alert{
		alertAt("a1", 0, "10.0.0.1", "10.0.0.2", "22"),
		alertAt("a2", 20, "192.168.5.7", "172.16.0.9", "80"),
		long,
	})

	require.Len(t, res.Graphs, 3)
	assert.Equal(t, 2, res.Stats.Evicted)
	assert.Zero(t, res.Stats.Expired)
}

func TestEveryAlertIsPlacedExactlyOnce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	hosts := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "192.168.1.10", "172.16.4.4"}
	ports := []string{"22", "80", "443", "private"}

	var alerts []*models.Alert
	minute := 0.0
	for i := 0; i < 300; i++ {
		minute += rng.Float64() * 5
		alerts = append(alerts, alertAt(
			fmt.Sprintf("a%d", i),
			minute,
			hosts[rng.Intn(len(hosts))],
			hosts[rng.Intn(len(hosts))],
			ports[rng.Intn(len(ports))],
		))
	}

	c := newCorrelator(t, DefaultConfig())
	res := c.Run(alerts)

	seen := make(map[*models.Alert]int)
	for _, g := range res.Graphs {
		assert.Len(t, g.Edges(), g.Len()-1)
		for _, n := range g.Nodes() {
			seen[n.Element]++
		}
	}
	require.Len(t, seen, len(alerts))
	for _, a := range alerts {
		assert.Equal(t, 1, seen[a], a.Key)
	}
	assert.Equal(t, len(alerts), res.Stats.Alerts)
	assert.Equal(t, len(alerts)-len(res.Graphs), res.Stats.Correlated)

	again := c.Run(alerts)
	require.Len(t, again.Graphs, len(res.Graphs))
	for i := range res.Graphs {
		assert.Equal(t, res.Graphs[i].Len(), again.Graphs[i].Len())
		assert.Equal(t, res.Graphs[i].LastNode().Key, again.Graphs[i].LastNode().Key)
	}
}

func TestEmptyInput(t *testing.T) {
	c := newCorrelator(t, DefaultConfig())
	res := c.Run(nil)
	assert.Empty(t, res.Graphs)
	assert.Equal(t, Stats{}, res.Stats)
}

func TestNodeKeysAreSanitised(t *testing.T) {
	c := newCorrelator(t, DefaultConfig())
	spaced := alertAt("port scan 1", 0, "10.0.0.1", "10.0.0.2", "22")
	blank := alertAt("", 60, "10.0.0.1", "10.0.0.2", "22")

	res := c.Run([]*models.Alert{spaced, blank})
	require.Len(t, res.Graphs, 2)
	assert.Equal(t, "port_scan_1", res.Graphs[0].FirstNode().Key)
	assert.Equal(t, "alert-2", res.Graphs[1].FirstNode().Key)
	assert.Zero(t, res.Stats.Skipped)
}

func TestConfigValidation(t *testing.T) {
	cases := map[string]func(*Config){
		"zero time threshold": func(c *Config) { c.TimeThreshold = 0 },
		"negative weight":     func(c *Config) { c.Weights.DestIP = -1 },
		"zero weights":        func(c *Config) { c.Weights = similarity.Weights{} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			_, err := New(cfg, nil)
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}
}
