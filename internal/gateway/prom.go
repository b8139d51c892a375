package gateway

import (
	"bufio"
	"errors"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the gateway's Prometheus bundle.
type Metrics struct {
	Requests      *prometheus.CounterVec
	ActiveStreams prometheus.Gauge

	gatherer prometheus.Gatherer
}

func NewMetrics(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		ActiveStreams: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_active_streams",
			Help: "SSE and websocket streams currently open.",
		}),
		gatherer: reg,
	}
}

// statusWriter records the response code while keeping the Flusher and
// Hijacker paths the streaming handlers depend on.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := w.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("response writer does not support hijacking")
}
