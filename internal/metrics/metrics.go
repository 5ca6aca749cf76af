// Package metrics counts what an import run did. Counters live on a private
// registry and can be written once to a node_exporter textfile.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "m3u2tvh"

// Reasons used as the "reason" label.
const (
	ReasonDuplicate = "duplicate"
	ReasonNoNetwork = "no_network"
	ReasonError     = "error"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	Registry *prometheus.Registry

	parsed   prometheus.Counter
	added    prometheus.Counter
	skipped  *prometheus.CounterVec
	failed   *prometheus.CounterVec
	requests *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		parsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channels_parsed_total",
			Help:      "Channels read from the playlist.",
		}),
		added: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channels_added_total",
			Help:      "Channels registered as muxes.",
		}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channels_skipped_total",
			Help:      "Channels not registered, by reason.",
		}, []string{"reason"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channels_failed_total",
			Help:      "Channels whose registration failed, by reason.",
		}, []string{"reason"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Tvheadend API round trips, by endpoint path.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
	m.Registry.MustRegister(m.parsed, m.added, m.skipped, m.failed, m.requests)
	return m
}

func (m *Metrics) Parsed() {
	if m != nil {
		m.parsed.Inc()
	}
}

func (m *Metrics) Added() {
	if m != nil {
		m.added.Inc()
	}
}

func (m *Metrics) Skipped(reason string) {
	if m != nil {
		m.skipped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) Failed(reason string) {
	if m != nil {
		m.failed.WithLabelValues(reason).Inc()
	}
}

// ObserveRequest records the time since start for endpoint.
func (m *Metrics) ObserveRequest(endpoint string, start time.Time) {
	if m != nil {
		m.requests.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}

// WriteFile writes all metrics in Prometheus text format to path, atomically.
func (m *Metrics) WriteFile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
