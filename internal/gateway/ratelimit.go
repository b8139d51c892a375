// Package gateway is the edge bridge: it terminates browser HTTP, applies
// rate limiting and request-id propagation, and translates between HTTP/SSE
// and the upstream gRPC services.
package gateway

import (
	"sync"
	"time"
)

// TokenBucket is a process-wide limiter: capacity 2x the sustained rate,
// refilled continuously from elapsed wall time.
type TokenBucket struct {
	mu     sync.Mutex
	tokens float64
	cap    float64
	rate   float64 // tokens per second
	last   time.Time

	now func() time.Time // test hook
}

func NewTokenBucket(qps float64) *TokenBucket {
	b := &TokenBucket{
		cap:  2 * qps,
		rate: qps,
		now:  time.Now,
	}
	b.tokens = b.cap
	b.last = b.now()
	return b
}

// Allow consumes one token if available.
func (b *TokenBucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.rate
		if b.tokens > b.cap {
			b.tokens = b.cap
		}
		b.last = now
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
