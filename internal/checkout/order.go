package checkout

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/dealcart/backend/pb"
)

// subscriberBuffer is generous next to the ~25 events a workflow can emit,
// so a live subscriber is never dropped in practice.
const subscriberBuffer = 256

// Order is the live record of one checkout: the append-only status history
// plus the set of streams tailing it. Append and broadcast share one lock so
// replay-then-subscribe never sees a gap or a duplicate.
type Order struct {
	ID      string
	Request *pb.CheckoutRequest
	Created time.Time

	mu          sync.Mutex
	history     []*pb.NodeStatus
	subscribers map[int]chan *pb.NodeStatus
	nextSubID   int
	state       pb.CheckoutStatus
	totalCents  int64
	txnID       string
	terminated  bool
	finishedAt  time.Time
}

func newOrder(id string, req *pb.CheckoutRequest) *Order {
	return &Order{
		ID:          id,
		Request:     req,
		Created:     time.Now(),
		subscribers: map[int]chan *pb.NodeStatus{},
		state:       pb.CheckoutStatus_CHECKOUT_STATUS_PENDING,
	}
}

// Append records one status event and fans it out to every live subscriber.
// A subscriber whose buffer is full is cut loose rather than allowed to
// stall the workflow.
func (o *Order) Append(st *pb.NodeStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.terminated {
		return
	}
	o.history = append(o.history, st)
	for id, ch := range o.subscribers {
		select {
		case ch <- st:
		default:
			delete(o.subscribers, id)
			close(ch)
		}
	}
}

// Subscribe atomically copies the history so far and registers a tail
// channel. When the order is already terminated the returned channel is nil
// and the history is complete.
func (o *Order) Subscribe() (history []*pb.NodeStatus, tail <-chan *pb.NodeStatus, cancel func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	history = append([]*pb.NodeStatus(nil), o.history...)
	if o.terminated {
		return history, nil, func() {}
	}

	ch := make(chan *pb.NodeStatus, subscriberBuffer)
	id := o.nextSubID
	o.nextSubID++
	o.subscribers[id] = ch

	cancel = func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if _, ok := o.subscribers[id]; ok {
			delete(o.subscribers, id)
			close(ch)
		}
	}
	return history, ch, cancel
}

// terminate moves the order to its final state and closes every subscriber,
// which ends their streams.
func (o *Order) terminate(state pb.CheckoutStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.terminated {
		return
	}
	o.state = state
	o.terminated = true
	o.finishedAt = time.Now()
	for id, ch := range o.subscribers {
		delete(o.subscribers, id)
		close(ch)
	}
}

// State returns the overall state and, once completed, the charged total.
func (o *Order) State() (pb.CheckoutStatus, int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state, o.totalCents
}

func (o *Order) setRunning() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.terminated {
		o.state = pb.CheckoutStatus_CHECKOUT_STATUS_IN_PROGRESS
	}
}

func (o *Order) setTotal(cents int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.totalCents = cents
}

func (o *Order) setTransaction(txnID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.txnID = txnID
}

// Transaction returns the payment transaction id, or "" before payment.
func (o *Order) Transaction() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.txnID
}

func (o *Order) terminatedAt() (time.Time, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.finishedAt, o.terminated
}

// Store holds every order, keyed by checkout id, with an idempotency index
// so a replayed key maps back to its original checkout. A janitor evicts
// terminated orders after the TTL; TTL zero disables eviction.
type Store struct {
	mu     sync.RWMutex
	orders map[string]*Order
	byKey  map[string]string // idempotency key -> checkout id

	seq    atomic.Uint64
	ttl    time.Duration
	logger zerolog.Logger

	stopOnce sync.Once
	stop     chan struct{}
}

func NewStore(ttl time.Duration, logger zerolog.Logger) *Store {
	s := &Store{
		orders: map[string]*Order{},
		byKey:  map[string]string{},
		ttl:    ttl,
		logger: logger.With().Str("component", "order-store").Logger(),
		stop:   make(chan struct{}),
	}
	if ttl > 0 {
		go s.janitor()
	}
	return s
}

// Close stops the janitor.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Create allocates a new order, or returns the existing one when the
// request carries an idempotency key that was seen before.
func (s *Store) Create(req *pb.CheckoutRequest) (order *Order, replayed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key := req.GetIdempotencyKey(); key != "" {
		if id, ok := s.byKey[key]; ok {
			if existing, ok := s.orders[id]; ok {
				return existing, true
			}
		}
	}

	id := fmt.Sprintf("checkout-%d-%d", time.Now().UnixMilli(), s.seq.Add(1))
	order = newOrder(id, req)
	s.orders[id] = order
	if key := req.GetIdempotencyKey(); key != "" {
		s.byKey[key] = id
	}
	return order, false
}

// Get looks an order up by checkout id.
func (s *Store) Get(id string) (*Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	return o, ok
}

// Len returns the number of orders currently held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

func (s *Store) janitor() {
	interval := s.ttl / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.evictExpired(time.Now())
		}
	}
}

// evictExpired drops orders that terminated more than ttl ago, along with
// their idempotency entries: a key replayed after eviction starts fresh.
func (s *Store) evictExpired(now time.Time) {
	cutoff := now.Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, o := range s.orders {
		finished, done := o.terminatedAt()
		if !done || finished.After(cutoff) {
			continue
		}
		delete(s.orders, id)
		if key := o.Request.GetIdempotencyKey(); key != "" && s.byKey[key] == id {
			delete(s.byKey, key)
		}
		evicted++
	}
	if evicted > 0 {
		s.logger.Info().Int("evicted", evicted).Int("remaining", len(s.orders)).Msg("order ttl sweep")
	}
}
