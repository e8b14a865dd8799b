package metrics_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/serroba/scanlink/internal/metrics"
	"github.com/serroba/scanlink/internal/scan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRecorder struct {
	outcome scan.Outcome
}

func (s stubRecorder) Record(_ context.Context, _ *scan.Event) scan.Outcome {
	return s.outcome
}

func TestInstrumentRecorder(t *testing.T) {
	m := metrics.New()

	recorded := metrics.InstrumentRecorder(stubRecorder{scan.Outcome{Status: scan.StatusRecorded}}, m)
	dropped := metrics.InstrumentRecorder(stubRecorder{scan.Outcome{Status: scan.StatusDropped, Err: errors.New("down")}}, m)

	outcome := recorded.Record(context.Background(), &scan.Event{QRID: "qr-1"})
	assert.Equal(t, scan.StatusRecorded, outcome.Status)

	recorded.Record(context.Background(), &scan.Event{QRID: "qr-1"})

	outcome = dropped.Record(context.Background(), &scan.Event{QRID: "qr-1"})
	require.Error(t, outcome.Err, "outcome passes through unchanged")

	expected := `
# HELP scanlink_scans_total Scan recording attempts by status.
# TYPE scanlink_scans_total counter
scanlink_scans_total{status="dropped"} 1
scanlink_scans_total{status="recorded"} 2
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "scanlink_scans_total"))

	count, err := testutil.GatherAndCount(m.Registry(), "scanlink_scan_record_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetrics_Redirects(t *testing.T) {
	m := metrics.New()

	m.ObserveRedirect("redirected")
	m.ObserveRedirect("redirected")
	m.ObserveRedirect("not_found")
	m.LinkCreated()

	expected := `
# HELP scanlink_redirects_total Scan redirects by outcome.
# TYPE scanlink_redirects_total counter
scanlink_redirects_total{outcome="not_found"} 1
scanlink_redirects_total{outcome="redirected"} 2
# HELP scanlink_links_created_total Links created through the management API.
# TYPE scanlink_links_created_total counter
scanlink_links_created_total 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"scanlink_redirects_total", "scanlink_links_created_total"))
}

func TestMetrics_ConsumerStats(t *testing.T) {
	m := metrics.New()
	m.RegisterConsumerStats("scans.recorded", func() (int64, int64) { return 7, 2 })

	expected := `
# HELP scanlink_consumer_dropped_total Stream messages acked without being persisted.
# TYPE scanlink_consumer_dropped_total counter
scanlink_consumer_dropped_total{topic="scans.recorded"} 2
# HELP scanlink_consumer_handled_total Stream messages persisted by the consumer.
# TYPE scanlink_consumer_handled_total counter
scanlink_consumer_handled_total{topic="scans.recorded"} 7
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"scanlink_consumer_handled_total", "scanlink_consumer_dropped_total"))
}

func TestMetrics_Handler(t *testing.T) {
	m := metrics.New()
	m.ObserveRedirect("redirected")

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `scanlink_redirects_total{outcome="redirected"} 1`)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
