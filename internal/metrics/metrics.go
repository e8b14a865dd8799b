// Package metrics exposes Prometheus counters for redirects and scan recording.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/serroba/scanlink/internal/scan"
)

const namespace = "scanlink"

// Metrics holds the collectors of one registry.
type Metrics struct {
	registry     *prometheus.Registry
	redirects    *prometheus.CounterVec
	scans        *prometheus.CounterVec
	recordTime   prometheus.Histogram
	linksCreated prometheus.Counter
}

// New registers every collector on a fresh registry, together with the Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		redirects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redirects_total",
			Help:      "Scan redirects by outcome.",
		}, []string{"outcome"}),
		scans: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Scan recording attempts by status.",
		}, []string{"status"}),
		recordTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_record_seconds",
			Help:      "Time spent recording one scan.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		linksCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_created_total",
			Help:      "Links created through the management API.",
		}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRedirect counts one redirect request by outcome.
func (m *Metrics) ObserveRedirect(outcome string) {
	m.redirects.WithLabelValues(outcome).Inc()
}

// LinkCreated counts one created link.
func (m *Metrics) LinkCreated() {
	m.linksCreated.Inc()
}

// RegisterConsumerStats exposes the handled and dropped counts of a stream consumer.
func (m *Metrics) RegisterConsumerStats(topic string, stats func() (handled, dropped int64)) {
	labels := prometheus.Labels{"topic": topic}

	m.registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "consumer_handled_total",
			Help:        "Stream messages persisted by the consumer.",
			ConstLabels: labels,
		}, func() float64 {
			handled, _ := stats()

			return float64(handled)
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "consumer_dropped_total",
			Help:        "Stream messages acked without being persisted.",
			ConstLabels: labels,
		}, func() float64 {
			_, dropped := stats()

			return float64(dropped)
		}),
	)
}

// InstrumentRecorder counts every outcome of rec and times each call.
func InstrumentRecorder(rec scan.Recorder, m *Metrics) scan.Recorder {
	return &instrumentedRecorder{next: rec, metrics: m}
}

type instrumentedRecorder struct {
	next    scan.Recorder
	metrics *Metrics
}

func (r *instrumentedRecorder) Record(ctx context.Context, event *scan.Event) scan.Outcome {
	start := time.Now()
	outcome := r.next.Record(ctx, event)

	r.metrics.recordTime.Observe(time.Since(start).Seconds())
	r.metrics.scans.WithLabelValues(string(outcome.Status)).Inc()

	return outcome
}
