package pricing

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ErrQueueFull is returned by Submit when the bounded backlog is exhausted.
// Callers treat it as a task failure, never as a reason to buffer.
var ErrQueueFull = errors.New("pricing: worker pool queue full")

// Task is one unit of work. Cancellation is the closure's own business: a
// task that outlives its caller must carry the caller's context.
type Task func()

// PoolConfig tunes the adaptive worker pool. Zero fields take defaults.
type PoolConfig struct {
	MinWorkers    int           // default 8
	MaxWorkers    int           // default 64
	Step          int           // default 8
	QueueCapacity int           // default 2048
	TargetP95     time.Duration // scale up above this, default 250ms
	LowerP95      time.Duration // scale down below this, default 200ms
	LatencyWindow int           // samples kept for p95, default 2000
	Cooldown      time.Duration // min gap between resizes, default 20s
	Tick          time.Duration // controller period, default 5s
	IdleTimeout   time.Duration // idle workers above min retire, default 60s
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.MinWorkers <= 0 {
		c.MinWorkers = 8
	}
	if c.MaxWorkers < c.MinWorkers {
		c.MaxWorkers = 64
	}
	if c.Step <= 0 {
		c.Step = 8
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = 2048
	}
	if c.TargetP95 <= 0 {
		c.TargetP95 = 250 * time.Millisecond
	}
	if c.LowerP95 <= 0 {
		c.LowerP95 = 200 * time.Millisecond
	}
	if c.LatencyWindow <= 0 {
		c.LatencyWindow = 2000
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 20 * time.Second
	}
	if c.Tick <= 0 {
		c.Tick = 5 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 60 * time.Second
	}
	return c
}

// Pool is a worker pool whose size follows observed tail latency: a
// controller wakes every Tick, computes p95 over the latency window, and
// resizes in Step increments within [MinWorkers, MaxWorkers]. Resizes never
// abort running tasks; shrinks are observed by workers between tasks.
type Pool struct {
	cfg    PoolConfig
	logger zerolog.Logger

	queue     chan Task
	latencies *latencyWindow

	mu        sync.Mutex
	size      int // target worker count
	workers   int // live worker count
	lastScale time.Time

	active atomic.Int64

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	metrics *Metrics // optional
}

func NewPool(cfg PoolConfig, logger zerolog.Logger, metrics *Metrics) *Pool {
	cfg = cfg.withDefaults()
	p := &Pool{
		cfg:       cfg,
		logger:    logger.With().Str("component", "adaptive-pool").Logger(),
		queue:     make(chan Task, cfg.QueueCapacity),
		latencies: newLatencyWindow(cfg.LatencyWindow),
		size:      cfg.MinWorkers,
		stopCh:    make(chan struct{}),
		metrics:   metrics,
	}
	p.logger.Info().
		Int("min", cfg.MinWorkers).
		Int("max", cfg.MaxWorkers).
		Int("step", cfg.Step).
		Dur("target_p95", cfg.TargetP95).
		Dur("lower_p95", cfg.LowerP95).
		Int("queue", cfg.QueueCapacity).
		Msg("pool initialized")
	p.spawnUpToTarget()
	return p
}

// Start launches the autoscaling controller.
func (p *Pool) Start() {
	p.wg.Add(1)
	go p.controller()
}

// Stop halts the controller and retires all workers. Queued tasks that have
// not started are discarded.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
}

// Submit enqueues a task, or rejects synchronously when the backlog is full.
func (p *Pool) Submit(task Task) error {
	select {
	case p.queue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// RecordLatency feeds one completed-task latency into the p95 window.
func (p *Pool) RecordLatency(d time.Duration) {
	p.latencies.add(d.Milliseconds())
}

// Size returns the current target pool size.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

// Active returns the number of workers currently executing a task.
func (p *Pool) Active() int {
	return int(p.active.Load())
}

// QueueDepth returns the number of tasks accepted but not yet executing.
func (p *Pool) QueueDepth() int {
	return len(p.queue)
}

func (p *Pool) spawnUpToTarget() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.workers < p.size {
		p.workers++
		p.wg.Add(1)
		go p.worker()
	}
}

// shouldRetire reports whether this worker may exit: always when the pool
// shrank below the live count, on idle timeout only above the floor.
func (p *Pool) shouldRetire(idle bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.workers > p.size || (idle && p.workers > p.cfg.MinWorkers) {
		p.workers--
		return true
	}
	return false
}

func (p *Pool) worker() {
	defer p.wg.Done()
	idle := time.NewTimer(p.cfg.IdleTimeout)
	defer idle.Stop()

	for {
		if p.shouldRetire(false) {
			return
		}
		if !idle.Stop() {
			select {
			case <-idle.C:
			default:
			}
		}
		idle.Reset(p.cfg.IdleTimeout)

		select {
		case <-p.stopCh:
			return
		case task := <-p.queue:
			p.active.Add(1)
			task()
			p.active.Add(-1)
		case <-idle.C:
			if p.shouldRetire(true) {
				return
			}
		}
	}
}

func (p *Pool) controller() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.Tick)
	defer ticker.Stop()
	p.logger.Info().Dur("interval", p.cfg.Tick).Msg("autoscaler controller started")

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.adjust()
		}
	}
}

func (p *Pool) adjust() {
	p95 := p.latencies.percentile(0.95)
	active := p.Active()
	depth := p.QueueDepth()

	p.mu.Lock()
	size := p.size
	p.mu.Unlock()

	p.logger.Info().
		Int64("p95_ms", p95).
		Int("pool_size", size).
		Int("active", active).
		Int("queue_depth", depth).
		Msg("autoscaler snapshot")

	if p.metrics != nil {
		p.metrics.PoolSize.Set(float64(size))
		p.metrics.ActiveWorkers.Set(float64(active))
		p.metrics.QueueDepth.Set(float64(depth))
	}

	if p.latencies.len() == 0 {
		return
	}

	now := time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.lastScale.IsZero() && now.Sub(p.lastScale) < p.cfg.Cooldown {
		return
	}

	switch {
	case p95 > p.cfg.TargetP95.Milliseconds() && p.size < p.cfg.MaxWorkers:
		next := p.size + p.cfg.Step
		if next > p.cfg.MaxWorkers {
			next = p.cfg.MaxWorkers
		}
		p.logger.Info().Int("from", p.size).Int("to", next).Int64("p95_ms", p95).Msg("scale up")
		p.size = next
		p.lastScale = now
		p.mu.Unlock()
		p.spawnUpToTarget()
		p.mu.Lock()
	case p95 < p.cfg.LowerP95.Milliseconds() && p.size > p.cfg.MinWorkers &&
		float64(active) < 0.7*float64(p.size):
		next := p.size - p.cfg.Step
		if next < p.cfg.MinWorkers {
			next = p.cfg.MinWorkers
		}
		p.logger.Info().Int("from", p.size).Int("to", next).Int64("p95_ms", p95).Msg("scale down")
		p.size = next
		p.lastScale = now
	}
}

// latencyWindow is a bounded FIFO of millisecond samples shared between the
// pool workers (writers) and the controller (reader).
type latencyWindow struct {
	mu      sync.Mutex
	samples []int64
	next    int
	filled  int
}

func newLatencyWindow(capacity int) *latencyWindow {
	return &latencyWindow{samples: make([]int64, capacity)}
}

func (w *latencyWindow) add(ms int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples[w.next] = ms
	w.next = (w.next + 1) % len(w.samples)
	if w.filled < len(w.samples) {
		w.filled++
	}
}

func (w *latencyWindow) len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.filled
}

func (w *latencyWindow) percentile(q float64) int64 {
	w.mu.Lock()
	buf := make([]int64, w.filled)
	copy(buf, w.samples[:w.filled])
	w.mu.Unlock()

	if len(buf) == 0 {
		return 0
	}
	sort.Slice(buf, func(i, j int) bool { return buf[i] < buf[j] })
	idx := int(float64(len(buf))*q+0.999999) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(buf) {
		idx = len(buf) - 1
	}
	return buf[idx]
}
