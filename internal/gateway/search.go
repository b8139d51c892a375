package gateway

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"strings"

	"github.com/dealcart/backend/pb"
)

// searchEvent is one SSE quote frame; price is decimal dollars.
type searchEvent struct {
	Vendor        string  `json:"vendor"`
	VendorID      string  `json:"vendorId"`
	Price         float64 `json:"price"`
	Currency      string  `json:"currency"`
	EstimatedDays int32   `json:"estimatedDays"`
	Timestamp     int64   `json:"timestamp"`
}

func quoteToSearchEvent(q *pb.PriceQuote) searchEvent {
	return searchEvent{
		Vendor:        q.GetVendorName(),
		VendorID:      q.GetVendorId(),
		Price:         dollars(q.GetPrice()),
		Currency:      q.GetPrice().GetCurrencyCode(),
		EstimatedDays: q.GetEstimatedDays(),
		Timestamp:     q.GetTimestampMs(),
	}
}

// ProductIDForQuery maps free text onto the synthetic SKU space so the same
// search always prices the same product.
func ProductIDForQuery(q string) string {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(q))))
	return fmt.Sprintf("sku-%d", h.Sum32()%1000)
}

// handleSearch translates one search into a quote stream: each upstream
// PriceQuote becomes one `quote` SSE event, heartbeats keep the pipe warm,
// and the response ends when the upstream stream does.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	productID := ProductIDForQuery(query)

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.SearchTimeout)
	defer cancel()
	rpcCtx, rpcCancel := context.WithTimeout(ctx, s.cfg.UpstreamQuoteTimeout)
	defer rpcCancel()

	stream, err := s.pricing.StreamQuotes(rpcCtx, &pb.QuoteRequest{ProductId: productID, Quantity: 1})
	if err != nil {
		s.logger.Error().Err(err).Str("product_id", productID).Msg("open quote stream")
		writeError(w, http.StatusInternalServerError, "pricing unavailable")
		return
	}

	sse, err := newSSEStream(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer sse.close()
	sse.startHeartbeat(s.cfg.HeartbeatInterval, ctx.Done())
	if s.metrics != nil {
		s.metrics.ActiveStreams.Inc()
		defer s.metrics.ActiveStreams.Dec()
	}

	count := 0
	for {
		quote, err := stream.Recv()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				// The SSE body already started; ending the response is the
				// client's error signal.
				s.logger.Warn().Err(err).Str("product_id", productID).Msg("quote stream ended early")
			}
			break
		}
		if err := sse.event("quote", quoteToSearchEvent(quote)); err != nil {
			return
		}
		count++
	}
	s.logger.Info().Str("query", query).Str("product_id", productID).Int("quotes", count).Msg("search complete")
}
