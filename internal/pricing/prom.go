package pricing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the Prometheus instrument bundle for the aggregator. Register
// against a fresh registry in tests to avoid duplicate-collector panics.
type Metrics struct {
	PoolSize      prometheus.Gauge
	ActiveWorkers prometheus.Gauge
	QueueDepth    prometheus.Gauge

	VendorCalls   *prometheus.CounterVec
	VendorLatency prometheus.Histogram
	QuotesSent    prometheus.Counter
	QueueRejects  prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PoolSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pricing_pool_size",
			Help: "Current target size of the adaptive worker pool.",
		}),
		ActiveWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pricing_pool_active_workers",
			Help: "Workers currently executing a vendor call.",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pricing_pool_queue_depth",
			Help: "Tasks accepted but not yet executing.",
		}),
		VendorCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pricing_vendor_calls_total",
			Help: "Vendor quote calls by vendor and outcome.",
		}, []string{"vendor", "outcome"}),
		VendorLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pricing_vendor_call_duration_seconds",
			Help:    "Wall time of vendor quote calls, failures included.",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 1.5, 2.5},
		}),
		QuotesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "pricing_quotes_streamed_total",
			Help: "Quotes emitted to downstream streams.",
		}),
		QueueRejects: factory.NewCounter(prometheus.CounterOpts{
			Name: "pricing_pool_rejections_total",
			Help: "Tasks rejected because the pool queue was full.",
		}),
	}
}
