package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEvictor counts cleanup calls, optionally blocking to simulate a
// slow sweep.
type countingEvictor struct {
	calls atomic.Int64
	block chan struct{}
}

func (e *countingEvictor) Cleanup(_ context.Context) int {
	e.calls.Add(1)
	if e.block != nil {
		<-e.block
	}
	return 0
}

func TestReaper_SweepsPeriodically(t *testing.T) {
	evictor := &countingEvictor{}
	reaper := NewReaper(10*time.Millisecond, evictor)

	reaper.Start(context.Background())
	defer reaper.Stop()

	require.Eventually(t, func() bool {
		return evictor.calls.Load() >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestReaper_StopTerminatesLoop(t *testing.T) {
	evictor := &countingEvictor{}
	reaper := NewReaper(5*time.Millisecond, evictor)

	reaper.Start(context.Background())
	require.Eventually(t, func() bool {
		return evictor.calls.Load() >= 1
	}, time.Second, time.Millisecond)

	reaper.Stop()
	after := evictor.calls.Load()
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, after, evictor.calls.Load(), "no sweeps after Stop")
}

func TestReaper_StopIsIdempotent(t *testing.T) {
	reaper := NewReaper(time.Minute, &countingEvictor{})
	reaper.Start(context.Background())

	reaper.Stop()
	reaper.Stop()
}

func TestReaper_StopWithoutStart(t *testing.T) {
	reaper := NewReaper(time.Minute, &countingEvictor{})

	// Must return immediately instead of waiting on a loop that never ran.
	done := make(chan struct{})
	go func() {
		reaper.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked without a running reaper")
	}
}

func TestReaper_ContextCancelStopsLoop(t *testing.T) {
	evictor := &countingEvictor{}
	reaper := NewReaper(5*time.Millisecond, evictor)

	ctx, cancel := context.WithCancel(context.Background())
	reaper.Start(ctx)

	require.Eventually(t, func() bool {
		return evictor.calls.Load() >= 1
	}, time.Second, time.Millisecond)

	cancel()
	// Stop still returns cleanly after the context already ended the loop.
	reaper.Stop()
}

func TestReaper_StartIsIdempotent(t *testing.T) {
	evictor := &countingEvictor{}
	reaper := NewReaper(10*time.Millisecond, evictor)

	reaper.Start(context.Background())
	reaper.Start(context.Background())
	defer reaper.Stop()

	require.Eventually(t, func() bool {
		return evictor.calls.Load() >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestReaper_SkipsOverlappingSweep(t *testing.T) {
	evictor := &countingEvictor{block: make(chan struct{})}
	reaper := NewReaper(5*time.Millisecond, evictor)

	reaper.Start(context.Background())

	// The first sweep blocks; later ticks must be dropped, not queued.
	require.Eventually(t, func() bool {
		return evictor.calls.Load() == 1
	}, time.Second, time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int64(1), evictor.calls.Load())

	close(evictor.block)
	reaper.Stop()
}
