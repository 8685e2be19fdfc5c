package timer

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/habitflow/habitflow-go/pkg/clock"
)

// DefaultTickInterval is the broadcast cadence.
const DefaultTickInterval = time.Second

// BroadcasterConfig configures a Broadcaster.
type BroadcasterConfig struct {
	// Interval between ticks. Defaults to DefaultTickInterval.
	Interval time.Duration

	// Logger receives operational logs. Defaults to slog.Default().
	Logger *slog.Logger

	// OnTick, if set, is called after every tick run by the loop.
	OnTick func(TickResult)
}

// Broadcaster is the single periodic loop that advances rolling timers
// and pushes their snapshots.
type Broadcaster struct {
	registry *Registry
	interval time.Duration
	logger   *slog.Logger
	onTick   func(TickResult)

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool
}

// NewBroadcaster creates a stopped broadcaster for registry.
func NewBroadcaster(registry *Registry, cfg BroadcasterConfig) *Broadcaster {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultTickInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Broadcaster{
		registry: registry,
		interval: cfg.Interval,
		logger:   cfg.Logger,
		onTick:   cfg.OnTick,
	}
}

// Start launches the loop. Calling Start while running is a no-op.
// The ticker exists when Start returns.
func (b *Broadcaster) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running.Load() {
		return
	}
	b.running.Store(true)

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	ticker := b.registry.Clock().NewTicker(b.interval)

	b.wg.Add(1)
	go b.loop(ctx, ticker)
	b.logger.Debug("broadcast loop started", "interval", b.interval)
}

// Stop ends the loop and waits for an in-flight tick to finish.
func (b *Broadcaster) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running.Load() {
		return
	}
	b.cancel()
	b.wg.Wait()
	b.running.Store(false)
	b.logger.Debug("broadcast loop stopped")
}

// Running reports whether the loop is active.
func (b *Broadcaster) Running() bool {
	return b.running.Load()
}

// Tick runs one broadcast step synchronously.
func (b *Broadcaster) Tick() TickResult {
	return b.registry.tick()
}

func (b *Broadcaster) loop(ctx context.Context, ticker clock.Ticker) {
	defer b.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			result, ok := b.safeTick()
			if ok && b.onTick != nil {
				b.onTick(result)
			}
		}
	}
}

// safeTick keeps the loop alive if a subscriber panics during a push.
func (b *Broadcaster) safeTick() (result TickResult, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("broadcast tick panicked", "panic", r)
			ok = false
		}
	}()
	return b.Tick(), true
}
