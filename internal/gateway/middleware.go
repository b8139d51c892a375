package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/dealcart/backend/internal/grpcutil"
)

// RequestIDHeader is adopted from the client when present and always echoed
// back. The same id travels upstream as gRPC metadata.
const RequestIDHeader = "X-Request-ID"

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requestIDMiddleware adopts or mints the request id, stores it on the
// context for the gRPC client interceptors, and echoes it in the response.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(grpcutil.WithRequestID(r.Context(), id)))
	})
}

// routeLabel returns the mux route template ("/api/checkout/{id}/stream")
// so path variables do not fan out into unbounded metric series.
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)
		if s.metrics != nil {
			s.metrics.Requests.WithLabelValues(routeLabel(r), strconv.Itoa(sw.code)).Inc()
		}
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.code).
			Str("request_id", grpcutil.RequestID(r.Context())).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}

// rateLimitMiddleware rejects with 429 when the bucket is dry. A nil
// limiter disables limiting.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			s.logger.Warn().
				Str("path", r.URL.Path).
				Str("request_id", grpcutil.RequestID(r.Context())).
				Msg("rate limited")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"Rate limit exceeded","retry_after_seconds":1}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware lets browser clients on other origins reach the API; the
// demo UI is served from a different port.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Idempotency-Key, X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
