package gateway

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dealcart/backend/pb"
)

// Config carries the per-route budgets. Zero fields take the defaults the
// rest of the platform is tuned around.
type Config struct {
	SearchTimeout         time.Duration // whole SSE search request, default 60s
	CheckoutStreamTimeout time.Duration // whole status stream, default 120s
	UpstreamQuoteTimeout  time.Duration // StreamQuotes RPC deadline, default 1.5s
	QuoteWallBudget       time.Duration // /api/quote total budget, default 3s
	StartTimeout          time.Duration // Checkout.Start deadline, default 2s
	HeartbeatInterval     time.Duration // SSE keepalive, default 15s
}

func (c Config) withDefaults() Config {
	if c.SearchTimeout <= 0 {
		c.SearchTimeout = 60 * time.Second
	}
	if c.CheckoutStreamTimeout <= 0 {
		c.CheckoutStreamTimeout = 120 * time.Second
	}
	if c.UpstreamQuoteTimeout <= 0 {
		c.UpstreamQuoteTimeout = 1500 * time.Millisecond
	}
	if c.QuoteWallBudget <= 0 {
		c.QuoteWallBudget = 3 * time.Second
	}
	if c.StartTimeout <= 0 {
		c.StartTimeout = 2 * time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 15 * time.Second
	}
	return c
}

// Server holds the upstream clients and HTTP plumbing. The clients are
// interfaces so tests can swap in fakes without a network.
type Server struct {
	cfg      Config
	pricing  pb.VendorPricingClient
	checkout pb.CheckoutClient
	limiter  *TokenBucket // nil disables rate limiting
	metrics  *Metrics     // nil disables collectors
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

func NewServer(cfg Config, pricing pb.VendorPricingClient, checkout pb.CheckoutClient, limiter *TokenBucket, metrics *Metrics, logger zerolog.Logger) *Server {
	return &Server{
		cfg:      cfg.withDefaults(),
		pricing:  pricing,
		checkout: checkout,
		limiter:  limiter,
		metrics:  metrics,
		logger:   logger.With().Str("component", "gateway").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Router wires the four API routes, the websocket mirror, and the
// cross-cutting middleware in order: request id, logging, CORS, rate limit.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestIDMiddleware, s.loggingMiddleware, s.corsMiddleware, s.rateLimitMiddleware)

	r.HandleFunc("/api/search", s.handleSearch).Methods(http.MethodGet)
	r.HandleFunc("/api/quote", s.handleQuote).Methods(http.MethodGet)
	r.HandleFunc("/api/checkout", s.handleCheckoutStart).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/checkout/{id}/stream", s.handleCheckoutStream).Methods(http.MethodGet)
	r.HandleFunc("/ws/search", s.handleSearchWS).Methods(http.MethodGet)

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	if s.metrics != nil {
		r.Handle("/prometheus",
			promhttp.HandlerFor(s.metrics.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	return r
}

// NewHTTPServer wraps the router for long-lived SSE responses: no write
// timeout, since streams legitimately stay open for minutes.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
}

func nodeStateName(state pb.NodeState) string {
	return strings.TrimPrefix(state.String(), "NODE_STATE_")
}

func checkoutStatusName(status pb.CheckoutStatus) string {
	return strings.TrimPrefix(status.String(), "CHECKOUT_STATUS_")
}

func dollars(m *pb.Money) float64 {
	return float64(m.GetAmountCents()) / 100
}
