// Package metrics provides Prometheus metrics for the auth core.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "auth_core"

// Metrics holds every counter and histogram the auth core exports.
// Non-goals (spec.md §1) exclude rate limiting and audit logging, not
// observability, so this ambient layer is carried regardless.
type Metrics struct {
	ConnectionsAccepted prometheus.Counter
	ConnectionsActive   prometheus.Gauge

	HandshakeLatency prometheus.Histogram
	HandshakeErrors  *prometheus.CounterVec

	AuthRequests  prometheus.Counter
	AuthSuccesses prometheus.Counter
	AuthFailures  *prometheus.CounterVec

	TokensIssued prometheus.Counter

	RegisterRequests prometheus.Counter
	RegisterFailures *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Default returns a process-wide Metrics instance registered against the
// default Prometheus registry.
func Default() *Metrics {
	once.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// New builds a Metrics instance registered against reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ConnectionsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_accepted_total",
			Help:      "Total TCP connections accepted.",
		}),
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of connections currently in the dispatch loop.",
		}),
		HandshakeLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handshake_latency_seconds",
			Help:      "Time to complete the encrypted session handshake.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		HandshakeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshake_errors_total",
			Help:      "Total handshake failures by reason.",
		}, []string{"reason"}),
		AuthRequests: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_requests_total",
			Help:      "Total AuthRequest messages served.",
		}),
		AuthSuccesses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_successes_total",
			Help:      "Total AuthChallenge messages answered correctly.",
		}),
		AuthFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Total AuthRequest and AuthChallenge failures by reason.",
		}, []string{"reason"}),
		TokensIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Total bearer tokens issued.",
		}),
		RegisterRequests: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "register_requests_total",
			Help:      "Total RegisterRequest messages served.",
		}),
		RegisterFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "register_failures_total",
			Help:      "Total RegisterRequest failures by reason.",
		}, []string{"reason"}),
	}
}
