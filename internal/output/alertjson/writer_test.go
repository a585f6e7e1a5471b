package alertjson

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"alertrank/pkg/models"
)

func TestWriteAlerts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "alerts.jsonl")
	w, err := NewWriter(path, zaptest.NewLogger(t))
	require.NoError(t, err)

	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	a := models.NewAlert(start, start, "a1", "scan", "", "10.0.0.1", "1", "10.0.0.2", "22")
	a.Priority = 4
	a.Score = 1
	require.NoError(t, w.WriteAlerts(context.Background(), []*models.Alert{a, a}))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var lines []models.Alert
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var got models.Alert
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &got))
		lines = append(lines, got)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, 4, lines[0].Priority)
	assert.Equal(t, "10.0.0.2", lines[0].DestIP)
}
