package pricing

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// metricsPayload is the JSON shape served on /metrics, consumed by load-test
// dashboards polling once a second. Latencies are milliseconds; errorRate
// and usage figures are percentages.
type metricsPayload struct {
	RPS           float64      `json:"rps"`
	ErrorRate     float64      `json:"errorRate"`
	P50Latency    int64        `json:"p50Latency"`
	P95Latency    int64        `json:"p95Latency"`
	P99Latency    int64        `json:"p99Latency"`
	CPUUsage      float64      `json:"cpuUsage"`
	MemoryUsage   float64      `json:"memoryUsage"`
	LoadAverage   float64      `json:"loadAverage"`
	Timestamp     int64        `json:"timestamp"`
	TotalRequests uint64       `json:"totalRequests"`
	TotalErrors   uint64       `json:"totalErrors"`
	Pool          poolSnapshot `json:"pool"`
}

type poolSnapshot struct {
	Size        int   `json:"size"`
	Active      int   `json:"active"`
	QueueDepth  int   `json:"queueDepth"`
	QueueLimit  int   `json:"queueLimit"`
	MinWorkers  int   `json:"minWorkers"`
	MaxWorkers  int   `json:"maxWorkers"`
	WindowP95Ms int64 `json:"windowP95Ms"`
}

// MetricsHandler builds the observability router: JSON /metrics, plaintext
// /health, and the Prometheus exposition on /prometheus.
func MetricsHandler(traffic *TrafficRecorder, pool *Pool, sys *SystemMetrics, gatherer prometheus.Gatherer, logger zerolog.Logger) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		stats := traffic.Snapshot()
		payload := metricsPayload{
			RPS:           stats.RequestsPerSecond,
			ErrorRate:     stats.ErrorRate,
			P50Latency:    stats.P50LatencyMs,
			P95Latency:    stats.P95LatencyMs,
			P99Latency:    stats.P99LatencyMs,
			CPUUsage:      sys.CPUPercent(),
			MemoryUsage:   sys.HeapPercent(),
			LoadAverage:   sys.LoadAverage(),
			Timestamp:     time.Now().UnixMilli(),
			TotalRequests: stats.TotalRequests,
			TotalErrors:   stats.TotalErrors,
			Pool: poolSnapshot{
				Size:        pool.Size(),
				Active:      pool.Active(),
				QueueDepth:  pool.QueueDepth(),
				QueueLimit:  pool.cfg.QueueCapacity,
				MinWorkers:  pool.cfg.MinWorkers,
				MaxWorkers:  pool.cfg.MaxWorkers,
				WindowP95Ms: pool.latencies.percentile(0.95),
			},
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			logger.Error().Err(err).Msg("encode metrics payload")
		}
	}).Methods(http.MethodGet)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	router.Handle("/prometheus", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return router
}

// NewMetricsServer wraps MetricsHandler in an http.Server with sane
// timeouts. Callers own ListenAndServe and Shutdown.
func NewMetricsServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
