// Package worker implements the long-running background tasks of the
// chunking and batch progress engine.
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"textchunking/internal/application/common/slogger"
)

// DefaultSweepInterval is how often the reaper sweeps the registry.
const DefaultSweepInterval = 60 * time.Second

// Evictor is the slice of the batch lifecycle the reaper needs.
type Evictor interface {
	Cleanup(ctx context.Context) int
}

// Reaper periodically evicts old terminal batches from the registry. It is
// uncoupled from request handling and guards against overlapping sweeps: a
// tick arriving while a sweep is still running is skipped.
type Reaper struct {
	interval time.Duration
	evictor  Evictor

	started  atomic.Bool
	sweeping atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewReaper creates a reaper sweeping at the given interval. An interval of
// zero or less falls back to the default.
func NewReaper(interval time.Duration, evictor Evictor) *Reaper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Reaper{
		interval: interval,
		evictor:  evictor,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called or the context is
// cancelled.
func (r *Reaper) Start(ctx context.Context) {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	slogger.Info(ctx, "Reaper started", slogger.Fields{
		"sweep_interval": r.interval.String(),
	})

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stop:
				return
			case <-ticker.C:
				r.sweep(ctx)
			}
		}
	}()
}

// Stop terminates the sweep loop and waits for it to exit. Idempotent.
func (r *Reaper) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
	if r.started.Load() {
		<-r.done
	}
}

// sweep runs one cleanup pass. Sweeps are expected to be fast relative to
// the interval; if one is somehow still running, the tick is dropped.
func (r *Reaper) sweep(ctx context.Context) {
	if !r.sweeping.CompareAndSwap(false, true) {
		slogger.Warn(ctx, "Reaper sweep skipped: previous sweep still running", nil)
		return
	}
	defer r.sweeping.Store(false)

	evicted := r.evictor.Cleanup(ctx)
	if evicted > 0 {
		slogger.Debug(ctx, "Reaper sweep finished", slogger.Fields{
			"evicted_count": evicted,
		})
	}
}
