package observability

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records handshake outcomes for one gatekeeper process. The process
// exits or execs away within seconds, so the registry is flushed to a
// node_exporter textfile instead of being scraped.
type Metrics struct {
	registry  *prometheus.Registry
	handshake *prometheus.CounterVec
	versions  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		handshake: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "svcgate",
				Name:      "handshake_total",
				Help:      "Handshakes by outcome and error kind.",
			},
			[]string{"outcome", "kind", "state"},
		),
		versions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "svcgate",
				Name:      "handshake_version_total",
				Help:      "Protocol versions presented by peers.",
			},
			[]string{"version", "supported"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "svcgate",
				Name:      "handshake_duration_seconds",
				Help:      "Time from connection to handoff or termination.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
	}
	m.registry.MustRegister(m.handshake, m.versions, m.duration)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordVersion counts one presented protocol version.
func (m *Metrics) RecordVersion(version int32, supported bool) {
	if m == nil {
		return
	}
	m.versions.WithLabelValues(strconv.FormatInt(int64(version), 10), strconv.FormatBool(supported)).Inc()
}

// RecordHandshake counts one finished handshake. outcome is "handoff" or
// "terminated"; kind is the error kind label; state is where it ended.
func (m *Metrics) RecordHandshake(outcome, kind, state string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.handshake.WithLabelValues(outcome, kind, state).Inc()
	m.duration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// WriteTextfile atomically writes the registry for the textfile collector.
// An empty path disables the export.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || strings.TrimSpace(path) == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
