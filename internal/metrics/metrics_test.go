package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveCounters(t *testing.T) {
	m := New()
	m.ObserveIngest("csv", 10, 2)
	m.ObserveCorrelation(3, 7, 1)
	m.ObservePrioritisation(2, 1, 0, map[int]int{1: 4, 4: 6})
	m.ObserveStage("correlate", time.Now())

	assert.Equal(t, 10.0, testutil.ToFloat64(m.AlertsIngested.WithLabelValues("csv")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AlertsSkipped.WithLabelValues("csv")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.MetaAlerts))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.AlertsCorrelated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WindowEvictions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Distances.WithLabelValues("budget_exceeded")))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.Priorities.WithLabelValues("4")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StageDuration))
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.ObserveCorrelation(5, 0, 0)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.MetaAlerts))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveIngest("csv", 1, 1)
	m.ObserveStage("read", time.Now())
	require.NoError(t, m.Push(context.Background(), "http://unused", "job", "run"))
}

func TestPushGroupsByRunID(t *testing.T) {
	var path, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		buf := new(strings.Builder)
		_, _ = io.Copy(buf, r.Body)
		body = buf.String()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := New()
	m.ObserveCorrelation(1, 0, 0)
	require.NoError(t, m.Push(context.Background(), srv.URL, "alertrank", "abc"))
	assert.Equal(t, "/metrics/job/alertrank/run_id/abc", path)
	assert.NotEmpty(t, body)
}

func TestPushSkippedWithoutURL(t *testing.T) {
	require.NoError(t, New().Push(context.Background(), "", "alertrank", "abc"))
}

func TestPushReportsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	err := New().Push(context.Background(), srv.URL, "alertrank", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "push metrics")
}
