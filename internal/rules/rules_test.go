package rules

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alertrank/pkg/models"
)

const bruteForceRule = `title: SSH brute force
id: 6c1a4f7e-2b7d-4c55-9d7e-5d1b1f7b0c11
status: experimental
logsource:
  category: ids
detection:
  selection:
    dest_port: '22'
    name|contains: 'brute'
  condition: selection
level: high
tags:
  - attack.credential_access
  - attack.t1110.001
`

const sysmonRule = `title: Windows process
logsource:
  product: windows
  service: sysmon
detection:
  selection:
    EventID: 1
  condition: selection
`

const keywordRule = `title: Scan keyword
logsource:
  category: ids
detection:
  keywords:
    - scan
  condition: keywords
`

func writeRules(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range map[string]string{
		"brute.yml":   bruteForceRule,
		"sysmon.yml":  sysmonRule,
		"keyword.yml": keywordRule,
		"broken.yaml": "title: [",
		"README.md":   "not a rule",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
	}
	return dir
}

func TestSigmaEngineLoadStats(t *testing.T) {
	_, stats, err := NewSigmaEngine(writeRules(t))
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalFiles)
	assert.Equal(t, 1, stats.Loaded)
	assert.Equal(t, 1, stats.SkippedDatasource)
	assert.Equal(t, 1, stats.SkippedComplex)
	assert.Equal(t, 1, stats.SkippedInvalid)
}

func TestEnrichFillsCategoryFromTactic(t *testing.T) {
	engine, _, err := NewSigmaEngine(writeRules(t))
	require.NoError(t, err)

	now := time.Now()
	alert := models.NewAlert(now, now, "a1", "ssh brute force attempt", "", "10.0.0.1", "40000", "10.0.0.2", "22")
	require.Equal(t, 1, Enrich(engine, alert))
	require.Len(t, alert.Tags, 1)
	assert.Equal(t, "high", alert.Tags[0].Severity)
	assert.Equal(t, "T1110/001", alert.Tags[0].Technique)
	assert.Equal(t, "credential-access", alert.Category)

	labelled := models.NewAlert(now, now, "a2", "ssh brute force attempt", "policy", "10.0.0.1", "40000", "10.0.0.2", "22")
	Enrich(engine, labelled)
	assert.Equal(t, "policy", labelled.Category, "explicit categories are kept")

	other := models.NewAlert(now, now, "a3", "ssh brute force attempt", "", "10.0.0.1", "40000", "10.0.0.2", "443")
	assert.Zero(t, Enrich(engine, other))
	assert.Empty(t, other.Tags)
}

func TestNoopEngine(t *testing.T) {
	now := time.Now()
	alert := models.NewAlert(now, now, "a1", "x", "", "", "", "", "")
	assert.Zero(t, Enrich(&NoopEngine{}, alert))
	assert.Zero(t, Enrich(nil, alert))
}

func TestNewSigmaEngineRejectsNonYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rule.txt")
	require.NoError(t, os.WriteFile(path, []byte(bruteForceRule), 0644))
	_, _, err := NewSigmaEngine(path)
	assert.Error(t, err)
}
