package checkout

import (
	"regexp"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealcart/backend/pb"
)

func statusEvent(node string, state pb.NodeState) *pb.NodeStatus {
	return &pb.NodeStatus{NodeId: node, State: state, TimestampMs: time.Now().UnixMilli()}
}

func TestSubscribeReplaysThenTails(t *testing.T) {
	o := newOrder("checkout-1-1", &pb.CheckoutRequest{})
	o.Append(statusEvent("reserve", pb.NodeState_NODE_STATE_PENDING))
	o.Append(statusEvent("reserve", pb.NodeState_NODE_STATE_RUNNING))

	history, tail, cancel := o.Subscribe()
	defer cancel()
	require.Len(t, history, 2)
	require.NotNil(t, tail)

	o.Append(statusEvent("reserve", pb.NodeState_NODE_STATE_COMPLETED))
	ev := <-tail
	assert.Equal(t, pb.NodeState_NODE_STATE_COMPLETED, ev.GetState())
}

func TestTerminateClosesSubscribers(t *testing.T) {
	o := newOrder("checkout-1-2", &pb.CheckoutRequest{})
	_, tail, cancel := o.Subscribe()
	defer cancel()

	o.terminate(pb.CheckoutStatus_CHECKOUT_STATUS_COMPLETED)

	_, open := <-tail
	assert.False(t, open)

	state, _ := o.State()
	assert.Equal(t, pb.CheckoutStatus_CHECKOUT_STATUS_COMPLETED, state)
}

func TestSubscribeAfterTerminateGetsFullHistoryNoTail(t *testing.T) {
	o := newOrder("checkout-1-3", &pb.CheckoutRequest{})
	o.Append(statusEvent("reserve", pb.NodeState_NODE_STATE_COMPLETED))
	o.terminate(pb.CheckoutStatus_CHECKOUT_STATUS_FAILED)

	history, tail, _ := o.Subscribe()
	assert.Len(t, history, 1)
	assert.Nil(t, tail)
}

func TestAppendAfterTerminateIsDropped(t *testing.T) {
	o := newOrder("checkout-1-4", &pb.CheckoutRequest{})
	o.terminate(pb.CheckoutStatus_CHECKOUT_STATUS_FAILED)
	o.Append(statusEvent("late", pb.NodeState_NODE_STATE_COMPLETED))

	history, _, _ := o.Subscribe()
	assert.Empty(t, history)
}

func TestStoreCreateAllocatesUniqueIDs(t *testing.T) {
	s := NewStore(0, zerolog.Nop())
	defer s.Close()

	a, replayed := s.Create(&pb.CheckoutRequest{CustomerId: "c1"})
	require.False(t, replayed)
	b, _ := s.Create(&pb.CheckoutRequest{CustomerId: "c1"})

	assert.NotEqual(t, a.ID, b.ID)
	assert.Regexp(t, regexp.MustCompile(`^checkout-\d+-\d+$`), a.ID)

	got, ok := s.Get(a.ID)
	require.True(t, ok)
	assert.Same(t, a, got)

	_, ok = s.Get("checkout-0-0")
	assert.False(t, ok)
}

func TestStoreIdempotencyKeyReplays(t *testing.T) {
	s := NewStore(0, zerolog.Nop())
	defer s.Close()

	first, replayed := s.Create(&pb.CheckoutRequest{CustomerId: "c1", IdempotencyKey: "key-1"})
	require.False(t, replayed)

	second, replayed := s.Create(&pb.CheckoutRequest{CustomerId: "c1", IdempotencyKey: "key-1"})
	assert.True(t, replayed)
	assert.Same(t, first, second)

	// A different key is a different checkout.
	third, replayed := s.Create(&pb.CheckoutRequest{CustomerId: "c1", IdempotencyKey: "key-2"})
	assert.False(t, replayed)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestStoreEvictsTerminatedAfterTTL(t *testing.T) {
	s := NewStore(time.Minute, zerolog.Nop())
	defer s.Close()

	done, _ := s.Create(&pb.CheckoutRequest{CustomerId: "c1", IdempotencyKey: "key-1"})
	live, _ := s.Create(&pb.CheckoutRequest{CustomerId: "c2"})

	done.terminate(pb.CheckoutStatus_CHECKOUT_STATUS_COMPLETED)
	done.mu.Lock()
	done.finishedAt = time.Now().Add(-2 * time.Minute)
	done.mu.Unlock()

	s.evictExpired(time.Now())

	_, ok := s.Get(done.ID)
	assert.False(t, ok, "terminated order past ttl should be evicted")
	_, ok = s.Get(live.ID)
	assert.True(t, ok, "running order must survive the sweep")

	// The idempotency key was freed with the order.
	fresh, replayed := s.Create(&pb.CheckoutRequest{CustomerId: "c1", IdempotencyKey: "key-1"})
	assert.False(t, replayed)
	assert.NotEqual(t, done.ID, fresh.ID)
}
