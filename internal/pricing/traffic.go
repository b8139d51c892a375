package pricing

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const (
	trafficWindow     = 60 * time.Second
	trafficMaxSamples = 1000
)

// TrafficStats is one point-in-time view of recent upstream traffic.
// ErrorRate is a percentage of the windowed samples.
type TrafficStats struct {
	RequestsPerSecond float64 `json:"requestsPerSecond"`
	ErrorRate         float64 `json:"errorRate"`
	P50LatencyMs      int64   `json:"p50LatencyMs"`
	P95LatencyMs      int64   `json:"p95LatencyMs"`
	P99LatencyMs      int64   `json:"p99LatencyMs"`
	TotalRequests     uint64  `json:"totalRequests"`
	TotalErrors       uint64  `json:"totalErrors"`
	WindowSeconds     int     `json:"windowSeconds"`
}

type trafficSample struct {
	at        time.Time
	latencyMs int64
	success   bool
}

// TrafficRecorder keeps a sliding window of vendor-call samples, bounded by
// both age (60s) and count (1000): whichever bound bites first evicts.
// Lifetime totals are monotonic and survive eviction.
type TrafficRecorder struct {
	mu      sync.Mutex
	samples []trafficSample

	totalRequests atomic.Uint64
	totalErrors   atomic.Uint64

	now func() time.Time // test hook
}

func NewTrafficRecorder() *TrafficRecorder {
	return &TrafficRecorder{now: time.Now}
}

// Record adds one completed (or failed) vendor call.
func (t *TrafficRecorder) Record(latency time.Duration, success bool) {
	t.totalRequests.Add(1)
	if !success {
		t.totalErrors.Add(1)
	}

	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.samples = append(t.samples, trafficSample{
		at:        now,
		latencyMs: latency.Milliseconds(),
		success:   success,
	})
	t.evictLocked(now)
}

func (t *TrafficRecorder) evictLocked(now time.Time) {
	cutoff := now.Add(-trafficWindow)
	i := 0
	for i < len(t.samples) && t.samples[i].at.Before(cutoff) {
		i++
	}
	if over := len(t.samples) - i - trafficMaxSamples; over > 0 {
		i += over
	}
	if i > 0 {
		t.samples = append(t.samples[:0], t.samples[i:]...)
	}
}

// Snapshot computes the windowed stats. Rate is over the full 60s window
// regardless of how much of it has samples, matching an operator's mental
// model of "per second over the last minute".
func (t *TrafficRecorder) Snapshot() TrafficStats {
	now := t.now()
	t.mu.Lock()
	t.evictLocked(now)
	n := len(t.samples)
	latencies := make([]int64, 0, n)
	errors := 0
	for _, s := range t.samples {
		latencies = append(latencies, s.latencyMs)
		if !s.success {
			errors++
		}
	}
	t.mu.Unlock()

	stats := TrafficStats{
		TotalRequests: t.totalRequests.Load(),
		TotalErrors:   t.totalErrors.Load(),
		WindowSeconds: int(trafficWindow / time.Second),
	}
	if n == 0 {
		return stats
	}

	stats.RequestsPerSecond = float64(n) / trafficWindow.Seconds()
	stats.ErrorRate = float64(errors) / float64(n) * 100

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	stats.P50LatencyMs = percentileOf(latencies, 0.50)
	stats.P95LatencyMs = percentileOf(latencies, 0.95)
	stats.P99LatencyMs = percentileOf(latencies, 0.99)
	return stats
}

// percentileOf indexes a sorted slice at ceil(n*q)-1, clamped to bounds.
func percentileOf(sorted []int64, q float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted))*q+0.999999) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
