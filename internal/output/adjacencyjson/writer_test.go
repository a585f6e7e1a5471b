package adjacencyjson

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alertrank/pkg/models"
)

func TestWriteRowsAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adjacency.jsonl")
	for i := 0; i < 2; i++ {
		w, err := NewWriter(path, nil)
		require.NoError(t, err)
		require.NoError(t, w.WriteRows([]*models.AdjacencyRow{{RecordType: "edge", GraphKey: "0", VertexID: "a", AdjacentID: "b"}}))
		require.NoError(t, w.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], `"adjacent_id":"b"`)
}
