// Package poll re-runs a loader on a fixed interval while a condition holds,
// such as a scan that has not reached a terminal state.
package poll

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval is used when Config.Interval is zero.
const DefaultInterval = 5 * time.Second

// Config configures a Refresher.
type Config struct {
	Interval time.Duration
	// Load fetches fresh data. A tick is skipped while a previous Load is
	// still running.
	Load func(ctx context.Context) error
	// While is checked before every tick. Returning false stops the
	// refresher. A nil While always continues.
	While func() bool
	// Immediate runs Load once before the first tick.
	Immediate bool
	Logger    *slog.Logger
}

// Refresher polls Load on an interval.
type Refresher struct {
	cfg     Config
	loading atomic.Bool

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	runs    int
	skipped int
}

// New creates a stopped Refresher.
func New(cfg Config) *Refresher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Refresher{cfg: cfg}
}

// Start launches the polling goroutine. It is a no-op if already running.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.run(ctx, r.done)
}

// Stop halts polling and waits for the goroutine to exit.
func (r *Refresher) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Done is closed when the polling goroutine exits, either by Stop, context
// cancellation, or While returning false. It is nil before Start.
func (r *Refresher) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Runs returns how many times Load was invoked.
func (r *Refresher) Runs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs
}

// Skipped returns how many ticks were skipped because a load was in flight.
func (r *Refresher) Skipped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.skipped
}

func (r *Refresher) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	r.cfg.Logger.Debug("poll started", "interval", r.cfg.Interval)

	if r.cfg.Immediate && r.cont() {
		r.tick(ctx)
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.cfg.Logger.Debug("poll stopped")
			return
		case <-ticker.C:
			if !r.cont() {
				r.cfg.Logger.Debug("poll condition no longer holds")
				return
			}
			r.tick(ctx)
		}
	}
}

func (r *Refresher) cont() bool {
	return r.cfg.While == nil || r.cfg.While()
}

// tick starts a load unless one is still running. Loads run in their own
// goroutine so a slow load never delays the ticker.
func (r *Refresher) tick(ctx context.Context) {
	if !r.loading.CompareAndSwap(false, true) {
		r.mu.Lock()
		r.skipped++
		r.mu.Unlock()
		return
	}

	r.mu.Lock()
	r.runs++
	r.mu.Unlock()

	go func() {
		defer r.loading.Store(false)
		start := time.Now()
		if err := r.cfg.Load(ctx); err != nil {
			r.cfg.Logger.Warn("poll load failed", "error", err)
			return
		}
		r.cfg.Logger.Debug("poll load completed", "duration_ms", time.Since(start).Milliseconds())
	}()
}

// Loading reports whether a load is in flight.
func (r *Refresher) Loading() bool {
	return r.loading.Load()
}
