package rpc

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Failure reasons used as the reason label of CallFailures.
const (
	FailureInvalidRequest = "invalid_request"
	FailureTransport      = "transport"
	FailureProtocol       = "protocol"
	FailureCancelled      = "cancelled"
	FailureClosed         = "closed"
)

// Metrics contains the Prometheus metrics of a Dispatcher
type Metrics struct {
	// Wire metrics
	BatchesSent       prometheus.Counter
	BatchSize         prometheus.Histogram
	RoundTripDuration prometheus.Histogram

	// Call metrics
	Calls        *prometheus.CounterVec
	CallFailures *prometheus.CounterVec
}

// NewMetrics initializes and registers the metrics with the default registry
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(nil)
}

// NewMetricsWithRegistry initializes and registers the metrics with a custom registry
func NewMetricsWithRegistry(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		BatchesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "appchain_rpc_batches_sent_total",
			Help: "The total number of wire round trips made to the node",
		}),
		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "appchain_rpc_batch_size",
			Help:    "The number of calls carried by one round trip",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128},
		}),
		RoundTripDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "appchain_rpc_round_trip_seconds",
			Help:    "The duration of one round trip to the node",
			Buckets: prometheus.DefBuckets,
		}),
		Calls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appchain_rpc_calls_total",
				Help: "The total number of calls by method",
			},
			[]string{"method"},
		),
		CallFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appchain_rpc_call_failures_total",
				Help: "The total number of failed calls by reason",
			},
			[]string{"reason"},
		),
	}
}

func (m *Metrics) countCall(method Method) {
	if m == nil {
		return
	}
	m.Calls.WithLabelValues(method.String()).Inc()
}

func (m *Metrics) countFailures(reason string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.CallFailures.WithLabelValues(reason).Add(float64(n))
}

func (m *Metrics) observeRoundTrip(size int, took time.Duration) {
	if m == nil {
		return
	}
	m.BatchesSent.Inc()
	m.BatchSize.Observe(float64(size))
	m.RoundTripDuration.Observe(took.Seconds())
}
