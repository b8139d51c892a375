package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dealcart/backend/pb"
)

type checkoutItemBody struct {
	ProductID string `json:"productId"`
	Quantity  int32  `json:"quantity"`
	UnitPrice *money `json:"unitPrice"`
	VendorID  string `json:"vendorId"`
}

type money struct {
	CurrencyCode string `json:"currencyCode"`
	AmountCents  int64  `json:"amountCents"`
}

type checkoutBody struct {
	CustomerID      string             `json:"customerId"`
	Items           []checkoutItemBody `json:"items"`
	ShippingAddress string             `json:"shippingAddress"`
	PaymentMethodID string             `json:"paymentMethodId"`
}

type checkoutResponse struct {
	CheckoutID  string   `json:"checkoutId"`
	Status      string   `json:"status"`
	Message     string   `json:"message"`
	TotalAmount *float64 `json:"totalAmount,omitempty"`
	Currency    string   `json:"currency,omitempty"`
}

// statusEvent is one SSE frame on the checkout status stream; state is the
// bare enum name (PENDING, RUNNING, ...).
type statusEvent struct {
	NodeID       string `json:"nodeId"`
	State        string `json:"state"`
	Message      string `json:"message"`
	Timestamp    int64  `json:"timestamp"`
	ErrorCode    string `json:"errorCode,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

func (b checkoutBody) toProto(idempotencyKey string) (*pb.CheckoutRequest, error) {
	if b.CustomerID == "" {
		return nil, errors.New("customerId is required")
	}
	if len(b.Items) == 0 {
		return nil, errors.New("at least one item is required")
	}
	req := &pb.CheckoutRequest{
		CustomerId:      b.CustomerID,
		ShippingAddress: b.ShippingAddress,
		PaymentMethodId: b.PaymentMethodID,
		IdempotencyKey:  idempotencyKey,
	}
	for _, item := range b.Items {
		if item.ProductID == "" {
			return nil, errors.New("item productId is required")
		}
		if item.Quantity < 1 {
			return nil, errors.New("item quantity must be at least 1")
		}
		pbItem := &pb.CheckoutItem{
			ProductId: item.ProductID,
			Quantity:  item.Quantity,
			VendorId:  item.VendorID,
		}
		if item.UnitPrice != nil {
			pbItem.UnitPrice = &pb.Money{
				CurrencyCode: item.UnitPrice.CurrencyCode,
				AmountCents:  item.UnitPrice.AmountCents,
			}
		}
		req.Items = append(req.Items, pbItem)
	}
	return req, nil
}

// handleCheckoutStart forwards the checkout to the engine and relays the
// immediate acknowledgement; the workflow itself is followed on the stream
// route.
func (s *Server) handleCheckoutStart(w http.ResponseWriter, r *http.Request) {
	var body checkoutBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	req, err := body.toProto(r.Header.Get("Idempotency-Key"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.StartTimeout)
	defer cancel()

	resp, err := s.checkout.Start(ctx, req)
	if err != nil {
		if status.Code(err) == codes.InvalidArgument {
			writeError(w, http.StatusBadRequest, status.Convert(err).Message())
			return
		}
		s.logger.Error().Err(err).Str("customer_id", body.CustomerID).Msg("checkout start failed")
		writeError(w, http.StatusInternalServerError, "checkout unavailable")
		return
	}

	out := checkoutResponse{
		CheckoutID: resp.GetCheckoutId(),
		Status:     checkoutStatusName(resp.GetStatus()),
		Message:    resp.GetMessage(),
	}
	if total := resp.GetTotalAmount(); total != nil {
		amount := dollars(total)
		out.TotalAmount = &amount
		out.Currency = total.GetCurrencyCode()
	}
	writeJSON(w, http.StatusOK, out)
}

// handleCheckoutStream relays the engine's status stream as `status` SSE
// events. The first Recv happens before the SSE response opens so an
// unknown checkout id can still surface as a proper 404.
func (s *Server) handleCheckoutStream(w http.ResponseWriter, r *http.Request) {
	checkoutID := mux.Vars(r)["id"]

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.CheckoutStreamTimeout)
	defer cancel()

	stream, err := s.checkout.GetStatus(ctx, &pb.CheckoutStatusRequest{CheckoutId: checkoutID})
	if err != nil {
		s.logger.Error().Err(err).Str("checkout_id", checkoutID).Msg("open status stream")
		writeError(w, http.StatusInternalServerError, "checkout unavailable")
		return
	}

	first, err := stream.Recv()
	if err != nil {
		switch {
		case status.Code(err) == codes.NotFound:
			writeError(w, http.StatusNotFound, "unknown checkout id "+checkoutID)
		case errors.Is(err, io.EOF):
			// Terminated order with empty history: an empty, clean stream.
			if sse, sseErr := newSSEStream(w); sseErr == nil {
				sse.close()
			}
		default:
			writeError(w, http.StatusInternalServerError, "status stream failed")
		}
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

	ev := first
	for {
		if err := sse.event("status", nodeStatusToEvent(ev)); err != nil {
			return
		}
		ev, err = stream.Recv()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Warn().Err(err).Str("checkout_id", checkoutID).Msg("status stream ended early")
			}
			return
		}
	}
}

func nodeStatusToEvent(ns *pb.NodeStatus) statusEvent {
	return statusEvent{
		NodeID:       ns.GetNodeId(),
		State:        nodeStateName(ns.GetState()),
		Message:      ns.GetMessage(),
		Timestamp:    ns.GetTimestampMs(),
		ErrorCode:    ns.GetErrorCode(),
		ErrorMessage: ns.GetErrorMessage(),
	}
}
