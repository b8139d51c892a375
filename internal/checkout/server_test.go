package checkout

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dealcart/backend/pb"
)

type fakeStatusStream struct {
	grpc.ServerStream
	ctx context.Context

	mu     sync.Mutex
	events []*pb.NodeStatus
}

func (f *fakeStatusStream) Context() context.Context { return f.ctx }

func (f *fakeStatusStream) Send(ev *pb.NodeStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeStatusStream) sent() []*pb.NodeStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*pb.NodeStatus(nil), f.events...)
}

func newTestServer(t *testing.T) (*Server, *Store) {
	t.Helper()
	store := NewStore(0, zerolog.Nop())
	t.Cleanup(store.Close)
	engine := NewEngine(fastConfig(), NewInventoryLedger(), zerolog.Nop())
	return NewServer(store, engine, zerolog.Nop()), store
}

func waitTerminated(t *testing.T, store *Store, id string) *Order {
	t.Helper()
	order, ok := store.Get(id)
	require.True(t, ok)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, done := order.terminatedAt(); done {
			return order
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("workflow did not reach a terminal state")
	return nil
}

func TestStartValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  *pb.CheckoutRequest
	}{
		{"missing customer", &pb.CheckoutRequest{Items: checkoutReq().Items}},
		{"no items", &pb.CheckoutRequest{CustomerId: "c1"}},
		{"zero quantity", &pb.CheckoutRequest{CustomerId: "c1",
			Items: []*pb.CheckoutItem{{ProductId: "sku-a", Quantity: 0}}}},
		{"missing product id", &pb.CheckoutRequest{CustomerId: "c1",
			Items: []*pb.CheckoutItem{{Quantity: 1}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := srv.Start(ctx, tc.req)
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
		})
	}
}

func TestStartReturnsImmediatelyPending(t *testing.T) {
	srv, store := newTestServer(t)

	resp, err := srv.Start(context.Background(), checkoutReq())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.GetCheckoutId(), "checkout-"))
	assert.Equal(t, pb.CheckoutStatus_CHECKOUT_STATUS_PENDING, resp.GetStatus())

	order := waitTerminated(t, store, resp.GetCheckoutId())
	state, total := order.State()
	assert.Equal(t, pb.CheckoutStatus_CHECKOUT_STATUS_COMPLETED, state)
	assert.Equal(t, int64(89900+7192), total)
}

func TestStartIdempotencyKeyDoesNotRerun(t *testing.T) {
	srv, store := newTestServer(t)

	req := checkoutReq()
	req.IdempotencyKey = "key-1"

	first, err := srv.Start(context.Background(), req)
	require.NoError(t, err)
	waitTerminated(t, store, first.GetCheckoutId())

	second, err := srv.Start(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.GetCheckoutId(), second.GetCheckoutId())
	assert.Equal(t, pb.CheckoutStatus_CHECKOUT_STATUS_COMPLETED, second.GetStatus())
	assert.Equal(t, int64(89900+7192), second.GetTotalAmount().GetAmountCents())
	assert.Equal(t, 1, store.Len(), "replay must not create a second order")
}

func TestGetStatusUnknownID(t *testing.T) {
	srv, _ := newTestServer(t)
	stream := &fakeStatusStream{ctx: context.Background()}
	err := srv.GetStatus(&pb.CheckoutStatusRequest{CheckoutId: "checkout-0-0"}, stream)
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestGetStatusReplayAfterTermination(t *testing.T) {
	srv, store := newTestServer(t)

	resp, err := srv.Start(context.Background(), checkoutReq())
	require.NoError(t, err)
	waitTerminated(t, store, resp.GetCheckoutId())

	stream := &fakeStatusStream{ctx: context.Background()}
	err = srv.GetStatus(&pb.CheckoutStatusRequest{CheckoutId: resp.GetCheckoutId()}, stream)
	require.NoError(t, err)

	terminals := nodeTerminals(stream.sent())
	for _, node := range []string{nodeReserve, nodePrice, nodeTax, nodePay, nodeConfirm} {
		assert.Equal(t, pb.NodeState_NODE_STATE_COMPLETED, terminals[node], node)
	}
}

func TestGetStatusLiveTailSeesSameSequence(t *testing.T) {
	srv, store := newTestServer(t)

	resp, err := srv.Start(context.Background(), checkoutReq())
	require.NoError(t, err)

	// Subscribe while the workflow is (probably) still running.
	live := &fakeStatusStream{ctx: context.Background()}
	done := make(chan error, 1)
	go func() {
		done <- srv.GetStatus(&pb.CheckoutStatusRequest{CheckoutId: resp.GetCheckoutId()}, live)
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("status stream did not close after termination")
	}

	waitTerminated(t, store, resp.GetCheckoutId())

	// A late subscriber replaying the full history sees the exact sequence
	// the live tail saw.
	replay := &fakeStatusStream{ctx: context.Background()}
	require.NoError(t, srv.GetStatus(&pb.CheckoutStatusRequest{CheckoutId: resp.GetCheckoutId()}, replay))

	liveEvents, replayEvents := live.sent(), replay.sent()
	require.Equal(t, len(replayEvents), len(liveEvents))
	for i := range liveEvents {
		assert.Equal(t, replayEvents[i].GetNodeId(), liveEvents[i].GetNodeId())
		assert.Equal(t, replayEvents[i].GetState(), liveEvents[i].GetState())
	}
}

func TestGetStatusClientCancellation(t *testing.T) {
	srv, store := newTestServer(t)

	// A running order with no events yet: the stream should block on the
	// tail and unwind when the client context is cancelled.
	order, _ := store.Create(checkoutReq())

	ctx, cancel := context.WithCancel(context.Background())
	stream := &fakeStatusStream{ctx: ctx}
	done := make(chan error, 1)
	go func() {
		done <- srv.GetStatus(&pb.CheckoutStatusRequest{CheckoutId: order.ID}, stream)
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not unwind on cancellation")
	}
}
