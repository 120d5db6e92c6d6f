// Package metrics exposes bridge counters to Prometheus.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	connections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "terrabridge",
			Subsystem: "conn",
			Name:      "accepted_total",
			Help:      "Total accepted client connections.",
		},
	)
	handshakes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "terrabridge",
			Subsystem: "handshake",
			Name:      "total",
			Help:      "Handshake outcomes by role and result.",
		},
		[]string{"role", "result"},
	)
	registrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "terrabridge",
			Subsystem: "registry",
			Name:      "registrations_total",
			Help:      "Registration outcomes by role.",
		},
		[]string{"role", "outcome"},
	)
	occupied = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "terrabridge",
			Subsystem: "registry",
			Name:      "occupied",
			Help:      "Whether a role slot currently holds a connection.",
		},
		[]string{"role"},
	)
	relayedPackets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "terrabridge",
			Subsystem: "relay",
			Name:      "packets_total",
			Help:      "Packets forwarded between paired clients.",
		},
		[]string{"direction", "opcode"},
	)
	relayedBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "terrabridge",
			Subsystem: "relay",
			Name:      "bytes_total",
			Help:      "Frame bytes forwarded between paired clients.",
		},
		[]string{"direction"},
	)
	sessionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "terrabridge",
			Subsystem: "relay",
			Name:      "session_duration_seconds",
			Help:      "Lifetime of relay sessions in seconds.",
			Buckets:   []float64{1, 10, 60, 300, 900, 3600, 4 * 3600},
		},
	)
	terminations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "terrabridge",
			Subsystem: "relay",
			Name:      "terminations_total",
			Help:      "Relay session terminations by error class.",
		},
		[]string{"class"},
	)
)

// RegisterMetrics registers every collector with the default registry. It
// is safe to call repeatedly.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			connections,
			handshakes,
			registrations,
			occupied,
			relayedPackets,
			relayedBytes,
			sessionDuration,
			terminations,
		)
	})
}

func RecordAccepted() {
	RegisterMetrics()
	connections.Inc()
}

func RecordHandshake(role, result string) {
	RegisterMetrics()
	handshakes.WithLabelValues(role, result).Inc()
}

func RecordRegistration(role, outcome string) {
	RegisterMetrics()
	registrations.WithLabelValues(role, outcome).Inc()
}

func SetOccupied(role string, held bool) {
	RegisterMetrics()
	v := 0.0
	if held {
		v = 1
	}
	occupied.WithLabelValues(role).Set(v)
}

func RecordRelayed(direction, opcode string, bytes int) {
	RegisterMetrics()
	relayedPackets.WithLabelValues(direction, opcode).Inc()
	relayedBytes.WithLabelValues(direction).Add(float64(bytes))
}

func RecordTermination(class string, lifetime time.Duration) {
	RegisterMetrics()
	terminations.WithLabelValues(class).Inc()
	sessionDuration.Observe(lifetime.Seconds())
}
