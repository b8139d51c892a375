package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/dealcart/backend/pb"
)

// wsMessage is the websocket mirror of the SSE search stream: typed JSON
// frames instead of named events.
type wsMessage struct {
	Type  string       `json:"type"` // quote | complete | error
	Quote *searchEvent `json:"quote,omitempty"`
	Error string       `json:"error,omitempty"`
}

// handleSearchWS serves the same quote fan-out as /api/search over a
// websocket, for clients that want bidirectional transport or cannot use
// EventSource.
func (s *Server) handleSearchWS(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	if s.metrics != nil {
		s.metrics.ActiveStreams.Inc()
		defer s.metrics.ActiveStreams.Dec()
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.SearchTimeout)
	defer cancel()
	rpcCtx, rpcCancel := context.WithTimeout(ctx, s.cfg.UpstreamQuoteTimeout)
	defer rpcCancel()

	productID := ProductIDForQuery(query)
	stream, err := s.pricing.StreamQuotes(rpcCtx, &pb.QuoteRequest{ProductId: productID, Quantity: 1})
	if err != nil {
		conn.WriteJSON(wsMessage{Type: "error", Error: "pricing unavailable"})
		return
	}

	for {
		quote, err := stream.Recv()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Warn().Err(err).Str("product_id", productID).Msg("ws quote stream ended early")
			}
			break
		}
		ev := quoteToSearchEvent(quote)
		if err := conn.WriteJSON(wsMessage{Type: "quote", Quote: &ev}); err != nil {
			return
		}
	}
	conn.WriteJSON(wsMessage{Type: "complete"})
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
