package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func clockAt(t *time.Time) func() time.Time {
	return func() time.Time { return *t }
}

func TestTrafficSnapshotEmpty(t *testing.T) {
	tr := NewTrafficRecorder()
	stats := tr.Snapshot()
	assert.Zero(t, stats.RequestsPerSecond)
	assert.Zero(t, stats.ErrorRate)
	assert.Zero(t, stats.P95LatencyMs)
	assert.Equal(t, 60, stats.WindowSeconds)
}

func TestTrafficRatesAndPercentiles(t *testing.T) {
	now := time.Now()
	tr := NewTrafficRecorder()
	tr.now = clockAt(&now)

	for i := 1; i <= 100; i++ {
		tr.Record(time.Duration(i)*time.Millisecond, i%10 != 0)
	}

	stats := tr.Snapshot()
	assert.InDelta(t, 100.0/60.0, stats.RequestsPerSecond, 1e-9)
	assert.InDelta(t, 10.0, stats.ErrorRate, 1e-9)
	assert.Equal(t, int64(50), stats.P50LatencyMs)
	assert.Equal(t, int64(95), stats.P95LatencyMs)
	assert.Equal(t, int64(99), stats.P99LatencyMs)
	assert.Equal(t, uint64(100), stats.TotalRequests)
	assert.Equal(t, uint64(10), stats.TotalErrors)
}

func TestTrafficEvictsByAge(t *testing.T) {
	now := time.Now()
	tr := NewTrafficRecorder()
	tr.now = clockAt(&now)

	tr.Record(10*time.Millisecond, true)
	tr.Record(10*time.Millisecond, false)

	now = now.Add(61 * time.Second)
	tr.Record(30*time.Millisecond, true)

	stats := tr.Snapshot()
	assert.InDelta(t, 1.0/60.0, stats.RequestsPerSecond, 1e-9)
	assert.Zero(t, stats.ErrorRate) // the failed sample aged out
	assert.Equal(t, int64(30), stats.P50LatencyMs)
	// Lifetime totals keep everything.
	assert.Equal(t, uint64(3), stats.TotalRequests)
	assert.Equal(t, uint64(1), stats.TotalErrors)
}

func TestTrafficEvictsByCount(t *testing.T) {
	now := time.Now()
	tr := NewTrafficRecorder()
	tr.now = clockAt(&now)

	// 1200 recent samples: only the newest 1000 stay in the window.
	for i := 0; i < 1200; i++ {
		tr.Record(time.Millisecond, i >= 200) // first 200 are errors
	}

	stats := tr.Snapshot()
	assert.InDelta(t, 1000.0/60.0, stats.RequestsPerSecond, 1e-9)
	assert.Zero(t, stats.ErrorRate) // all 200 errors were evicted
	assert.Equal(t, uint64(1200), stats.TotalRequests)
	assert.Equal(t, uint64(200), stats.TotalErrors)
}

func TestPercentileOfSingleSample(t *testing.T) {
	assert.Equal(t, int64(42), percentileOf([]int64{42}, 0.95))
	assert.Equal(t, int64(42), percentileOf([]int64{42}, 0.50))
}
