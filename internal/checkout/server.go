package checkout

import (
	"context"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dealcart/backend/internal/grpcutil"
	"github.com/dealcart/backend/pb"
)

// Server implements pb.CheckoutServer over the order store and workflow
// engine.
type Server struct {
	pb.UnimplementedCheckoutServer

	store  *Store
	engine *Engine
	logger zerolog.Logger
}

func NewServer(store *Store, engine *Engine, logger zerolog.Logger) *Server {
	return &Server{
		store:  store,
		engine: engine,
		logger: logger.With().Str("component", "checkout-server").Logger(),
	}
}

// Start validates the request, allocates an order, kicks the workflow off on
// its own goroutine, and returns immediately with PENDING. A request whose
// idempotency key was seen before is not re-run: the original checkout id
// and its current state are returned instead.
func (s *Server) Start(ctx context.Context, req *pb.CheckoutRequest) (*pb.CheckoutResponse, error) {
	if req.GetCustomerId() == "" {
		return nil, status.Error(codes.InvalidArgument, "customer_id is required")
	}
	if len(req.GetItems()) == 0 {
		return nil, status.Error(codes.InvalidArgument, "at least one item is required")
	}
	for _, item := range req.GetItems() {
		if item.GetProductId() == "" {
			return nil, status.Error(codes.InvalidArgument, "item product_id is required")
		}
		if item.GetQuantity() < 1 {
			return nil, status.Error(codes.InvalidArgument, "item quantity must be at least 1")
		}
	}

	order, replayed := s.store.Create(req)
	log := s.logger.With().
		Str("checkout_id", order.ID).
		Str("customer_id", req.GetCustomerId()).
		Str("request_id", grpcutil.RequestID(ctx)).
		Logger()

	if replayed {
		state, total := order.State()
		log.Info().Str("idempotency_key", req.GetIdempotencyKey()).Msg("checkout replayed")
		resp := &pb.CheckoutResponse{
			CheckoutId: order.ID,
			Status:     state,
			Message:    "checkout already accepted for this idempotency key",
		}
		if total > 0 {
			resp.TotalAmount = &pb.Money{CurrencyCode: "USD", AmountCents: total}
		}
		return resp, nil
	}

	log.Info().Int("items", len(req.GetItems())).Msg("checkout accepted")
	go s.engine.Run(order)

	return &pb.CheckoutResponse{
		CheckoutId: order.ID,
		Status:     pb.CheckoutStatus_CHECKOUT_STATUS_PENDING,
		Message:    "checkout accepted",
	}, nil
}

// GetStatus replays the order's full history and then tails live events
// until the workflow terminates or the client goes away. Replay and
// subscription are atomic, so the caller sees every event exactly once.
func (s *Server) GetStatus(req *pb.CheckoutStatusRequest, stream pb.Checkout_GetStatusServer) error {
	order, ok := s.store.Get(req.GetCheckoutId())
	if !ok {
		return status.Errorf(codes.NotFound, "unknown checkout id %q", req.GetCheckoutId())
	}

	history, tail, cancel := order.Subscribe()
	defer cancel()

	for _, ev := range history {
		if err := stream.Send(ev); err != nil {
			return err
		}
	}
	if tail == nil {
		return nil // already terminated, replay was complete
	}

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, open := <-tail:
			if !open {
				return nil
			}
			if err := stream.Send(ev); err != nil {
				return err
			}
		}
	}
}
