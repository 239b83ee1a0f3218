// Package poller periodically reads INFO and SLOWLOG from Redis and logs
// the reshaped results.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aiox-platform/redis-metrics/internal/metrics"
)

const (
	DefaultInterval      = 10 * time.Second
	DefaultSlowlogMaxLen = 128
)

// ErrNotIdle is returned by Start when the loop has already been started.
var ErrNotIdle = errors.New("poller: already started")

// Commander is the read-only command surface the poller needs.
// *redis.Client satisfies it.
type Commander interface {
	InfoMap(ctx context.Context, sections ...string) *redis.InfoCmd
	Ping(ctx context.Context) *redis.StatusCmd
	SlowLogGet(ctx context.Context, num int64) *redis.SlowLogCmd
}

// Static adapts a fixed client to the per-cycle client func New expects.
func Static(c Commander) func() Commander {
	return func() Commander { return c }
}

type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Options struct {
	Interval      time.Duration
	// SlowlogMaxLen bounds SLOWLOG GET. Zero or less means DefaultSlowlogMaxLen.
	SlowlogMaxLen int64
	// Now is the clock used for the command rate. Defaults to time.Now.
	Now func() time.Time
}

// Poller collects one Snapshot per cycle. Rate state is owned by the single
// loop goroutine; do not share a Poller between concurrent callers of
// FetchMetrics.
type Poller struct {
	client        func() Commander
	logger        *slog.Logger
	interval      time.Duration
	slowlogMaxLen int64
	now           func() time.Time

	prevCommands int64
	lastFetch    time.Time

	mu       sync.Mutex
	state    State
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a poller. client is called once per command group so a pool
// rebuilt behind a handle is picked up on the next cycle.
func New(client func() Commander, logger *slog.Logger, opts Options) *Poller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.SlowlogMaxLen <= 0 {
		opts.SlowlogMaxLen = DefaultSlowlogMaxLen
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Poller{
		client:        client,
		logger:        logger,
		interval:      opts.Interval,
		slowlogMaxLen: opts.SlowlogMaxLen,
		now:           opts.Now,
	}
}

// FetchMetrics issues INFO, INFO stats, INFO cpu and PING and groups the
// results. A failed INFO yields an empty snapshot.
func (p *Poller) FetchMetrics(ctx context.Context) Snapshot {
	raw, err := p.client().InfoMap(ctx).Result()
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to fetch Redis metrics", "event", "Redis Metrics", "error", err)
		return Snapshot{}
	}
	info := flattenInfo(raw)

	return Snapshot{
		Connections: connectionMetrics(info),
		Memory:      memoryMetrics(info),
		Performance: p.performanceMetrics(ctx, info),
		Persistence: persistenceMetrics(info),
		PubSub:      pubsubMetrics(info),
		CPU:         p.cpuInfo(ctx),
		valid:       true,
	}
}

func (p *Poller) performanceMetrics(ctx context.Context, info map[string]string) PerformanceMetrics {
	raw, err := p.client().InfoMap(ctx, "stats").Result()
	if err != nil {
		p.logger.ErrorContext(ctx, "Error retrieving performance metrics", "event", "Redis Metrics", "error", err)
		return PerformanceMetrics{}
	}
	stats := flattenInfo(raw)
	total := intField(stats, "total_commands_processed")

	now := p.now()
	var rate float64
	if !p.lastFetch.IsZero() {
		if elapsed := now.Sub(p.lastFetch).Seconds(); elapsed > 0 {
			rate = float64(total-p.prevCommands) / elapsed
		}
	}
	p.prevCommands = total
	p.lastFetch = now

	ops := intField(stats, "instantaneous_ops_per_sec")
	return PerformanceMetrics{
		Latency:                p.measureLatency(ctx),
		CommandsPerSecond:      ops,
		CacheHitRatio:          CacheHitRatio(intField(info, "keyspace_hits"), intField(info, "keyspace_misses")),
		TotalCommandsProcessed: total,
		InstantaneousOpsPerSec: ops,
		KeyspaceHits:           intField(stats, "keyspace_hits"),
		KeyspaceMisses:         intField(stats, "keyspace_misses"),
		CommandRate:            rate,
		valid:                  true,
	}
}

// measureLatency times a PING in milliseconds, +Inf when it fails.
func (p *Poller) measureLatency(ctx context.Context) Millis {
	start := time.Now()
	if err := p.client().Ping(ctx).Err(); err != nil {
		return Millis(math.Inf(1))
	}
	return Millis(float64(time.Since(start).Microseconds()) / 1000)
}

func (p *Poller) cpuInfo(ctx context.Context) map[string]string {
	raw, err := p.client().InfoMap(ctx, "cpu").Result()
	if err != nil {
		p.logger.ErrorContext(ctx, "Error retrieving cpu metrics", "event", "Redis Metrics", "error", err)
		return map[string]string{}
	}
	return flattenInfo(raw)
}

// LogMetrics logs one snapshot followed by the slow log.
func (p *Poller) LogMetrics(ctx context.Context) {
	start := time.Now()

	snap := p.FetchMetrics(ctx)
	p.logger.InfoContext(ctx, "Redis Metrics", "event", "Redis Metrics", "redis_metrics", snap)
	p.LogSlowLog(ctx)

	result := "ok"
	if snap.Empty() {
		result = "empty"
		metrics.RedisUp.Set(0)
	} else {
		metrics.RedisUp.Set(1)
	}
	metrics.PollCyclesTotal.WithLabelValues(result).Inc()
	metrics.PollDuration.Observe(time.Since(start).Seconds())
}

// Start launches the collection loop. It may be called once.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateIdle {
		return ErrNotIdle
	}
	p.state = StateRunning
	p.stop = make(chan struct{})
	p.done = make(chan struct{})

	go p.run(ctx)
	p.logger.DebugContext(ctx, "Redis metrics loop started", "data", map[string]any{
		"interval":        p.interval.String(),
		"slowlog_max_len": p.slowlogMaxLen,
	})
	return nil
}

// Stop signals the loop and waits for it to exit. The signal is observed
// between cycles, so Stop may wait for the current cycle and sleep.
func (p *Poller) Stop() {
	p.mu.Lock()
	switch p.state {
	case StateIdle:
		p.state = StateStopped
		p.mu.Unlock()
		return
	case StateStopped:
		p.mu.Unlock()
		return
	}
	done := p.done
	p.stopOnce.Do(func() { close(p.stop) })
	p.mu.Unlock()

	<-done

	p.mu.Lock()
	p.state = StateStopped
	p.mu.Unlock()
}

func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case <-p.stop:
			return
		default:
		}

		p.cycle(ctx)
		time.Sleep(p.interval)
	}
}

// cycle runs LogMetrics and keeps a panic from ending the loop.
func (p *Poller) cycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			metrics.PollCyclesTotal.WithLabelValues("panic").Inc()
			p.logger.ErrorContext(ctx, "Error in metric collection loop", "event", "Redis Metrics", "error", fmt.Sprint(r))
		}
	}()
	p.LogMetrics(ctx)
}
