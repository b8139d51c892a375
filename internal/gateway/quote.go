package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/dealcart/backend/pb"
)

type quoteListResponse struct {
	ProductID  string        `json:"productId"`
	QuoteCount int           `json:"quoteCount"`
	Quotes     []searchEvent `json:"quotes"`
}

// handleQuote is the non-streaming convenience: collect the whole quote
// stream, then answer with either the cheapest quote (mode=best, the
// default) or the full list (mode=all).
func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("productId")
	if productID == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter productId")
		return
	}
	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = "best"
	}
	if mode != "best" && mode != "all" {
		writeError(w, http.StatusBadRequest, "mode must be best or all")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.QuoteWallBudget)
	defer cancel()
	rpcCtx, rpcCancel := context.WithTimeout(ctx, s.cfg.UpstreamQuoteTimeout)
	defer rpcCancel()

	stream, err := s.pricing.StreamQuotes(rpcCtx, &pb.QuoteRequest{ProductId: productID, Quantity: 1})
	if err != nil {
		s.logger.Error().Err(err).Str("product_id", productID).Msg("open quote stream")
		writeError(w, http.StatusInternalServerError, "pricing unavailable")
		return
	}

	// Non-nil so mode=all serializes zero quotes as [] rather than null.
	quotes := []searchEvent{}
	for {
		quote, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			s.logger.Error().Err(err).Str("product_id", productID).Msg("quote stream failed")
			writeError(w, http.StatusInternalServerError, "quote collection failed")
			return
		}
		quotes = append(quotes, quoteToSearchEvent(quote))
	}

	if mode == "all" {
		writeJSON(w, http.StatusOK, quoteListResponse{
			ProductID:  productID,
			QuoteCount: len(quotes),
			Quotes:     quotes,
		})
		return
	}

	if len(quotes) == 0 {
		writeError(w, http.StatusNotFound, "no quotes available for "+productID)
		return
	}
	best := quotes[0]
	for _, q := range quotes[1:] {
		if q.Price < best.Price {
			best = q
		}
	}
	writeJSON(w, http.StatusOK, best)
}
