package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"textchunking/internal/domain/entity"
	domainerrors "textchunking/internal/domain/errors/domain"
	"textchunking/internal/domain/valueobject"
	"textchunking/internal/port/inbound"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureNotifier records events synchronously for assertions.
type captureNotifier struct {
	mu     sync.Mutex
	events []entity.BatchEvent
}

func (n *captureNotifier) Notify(event entity.BatchEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *captureNotifier) Events() []entity.BatchEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	events := make([]entity.BatchEvent, len(n.events))
	copy(events, n.events)
	return events
}

func (n *captureNotifier) EventTypes() []entity.BatchEventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	types := make([]entity.BatchEventType, 0, len(n.events))
	for _, e := range n.events {
		types = append(types, e.Type)
	}
	return types
}

func (n *captureNotifier) CountType(eventType entity.BatchEventType) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, e := range n.events {
		if e.Type == eventType {
			count++
		}
	}
	return count
}

func newTestLifecycle(t *testing.T, cfg BatchLifecycleConfig) (*BatchLifecycleService, *captureNotifier) {
	t.Helper()
	notifier := &captureNotifier{}
	svc := NewBatchLifecycleService(context.Background(), cfg, NewBatchRegistry(), notifier)
	return svc, notifier
}

func TestBatchLifecycleService_Admit(t *testing.T) {
	svc, notifier := newTestLifecycle(t, BatchLifecycleConfig{})
	ctx := context.Background()

	batchID, err := svc.Admit(ctx, newTestBatch(t, 3).Plan())
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, batchID)

	progress := svc.GetProgress(ctx, batchID)
	require.NotNil(t, progress)
	assert.Equal(t, valueobject.BatchStatusPending, progress.Status())
	assert.Equal(t, 3, progress.TotalChunks())

	assert.Equal(t, []entity.BatchEventType{entity.EventBatchCreated}, notifier.EventTypes())
}

func TestBatchLifecycleService_Admit_CapacityExceeded(t *testing.T) {
	svc, notifier := newTestLifecycle(t, BatchLifecycleConfig{MaxConcurrentBatches: 2})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.Admit(ctx, newTestBatch(t, 1).Plan())
		require.NoError(t, err)
	}

	_, err := svc.Admit(ctx, newTestBatch(t, 1).Plan())
	require.ErrorIs(t, err, domainerrors.ErrCapacityExceeded)
	assert.Equal(t, 2, notifier.CountType(entity.EventBatchCreated))
}

func TestBatchLifecycleService_Admit_FreedByCancel(t *testing.T) {
	svc, _ := newTestLifecycle(t, BatchLifecycleConfig{MaxConcurrentBatches: 1})
	ctx := context.Background()

	batchID, err := svc.Admit(ctx, newTestBatch(t, 1).Plan())
	require.NoError(t, err)

	_, err = svc.Admit(ctx, newTestBatch(t, 1).Plan())
	require.ErrorIs(t, err, domainerrors.ErrCapacityExceeded)

	require.True(t, svc.Cancel(ctx, batchID))

	_, err = svc.Admit(ctx, newTestBatch(t, 1).Plan())
	require.NoError(t, err)
}

func TestBatchLifecycleService_Start(t *testing.T) {
	svc, notifier := newTestLifecycle(t, BatchLifecycleConfig{})
	ctx := context.Background()

	batchID, err := svc.Admit(ctx, newTestBatch(t, 2).Plan())
	require.NoError(t, err)
	require.NoError(t, svc.Start(ctx, batchID))

	progress := svc.GetProgress(ctx, batchID)
	assert.Equal(t, valueobject.BatchStatusProcessing, progress.Status())
	assert.NotNil(t, progress.StartedAt())

	assert.Equal(t, []entity.BatchEventType{
		entity.EventBatchCreated,
		entity.EventBatchStarted,
	}, notifier.EventTypes())
}

func TestBatchLifecycleService_Start_InvalidState(t *testing.T) {
	svc, _ := newTestLifecycle(t, BatchLifecycleConfig{})
	ctx := context.Background()

	batchID, err := svc.Admit(ctx, newTestBatch(t, 1).Plan())
	require.NoError(t, err)
	require.NoError(t, svc.Start(ctx, batchID))

	err = svc.Start(ctx, batchID)
	require.ErrorIs(t, err, domainerrors.ErrInvalidState)
}

func TestBatchLifecycleService_Start_UnknownBatch(t *testing.T) {
	svc, _ := newTestLifecycle(t, BatchLifecycleConfig{})

	err := svc.Start(context.Background(), uuid.New())
	require.ErrorIs(t, err, domainerrors.ErrBatchNotFound)
}

func TestBatchLifecycleService_AllChunksSucceed(t *testing.T) {
	svc, notifier := newTestLifecycle(t, BatchLifecycleConfig{})
	ctx := context.Background()

	plan := newTestBatch(t, 3).Plan()
	batchID, err := svc.Admit(ctx, plan)
	require.NoError(t, err)
	require.NoError(t, svc.Start(ctx, batchID))

	for _, chunk := range plan.Chunks() {
		svc.RecordChunkResult(ctx, batchID, chunk.ID(), inbound.SuccessOutcome("corrected"))
	}

	progress := svc.GetProgress(ctx, batchID)
	assert.Equal(t, valueobject.BatchStatusCompleted, progress.Status())
	assert.Equal(t, 3, progress.ProcessedChunks())
	assert.NotNil(t, progress.FinishedAt())

	assert.Equal(t, []entity.BatchEventType{
		entity.EventBatchCreated,
		entity.EventBatchStarted,
		entity.EventProgressUpdated,
		entity.EventProgressUpdated,
		entity.EventBatchCompleted,
	}, notifier.EventTypes())
}

func TestBatchLifecycleService_PartialFailureFailsBatch(t *testing.T) {
	svc, notifier := newTestLifecycle(t, BatchLifecycleConfig{})
	ctx := context.Background()

	plan := newTestBatch(t, 3).Plan()
	batchID, err := svc.Admit(ctx, plan)
	require.NoError(t, err)
	require.NoError(t, svc.Start(ctx, batchID))

	chunks := plan.Chunks()
	svc.RecordChunkResult(ctx, batchID, chunks[0].ID(), inbound.SuccessOutcome("corrected"))
	svc.RecordChunkResult(ctx, batchID, chunks[1].ID(), inbound.SuccessOutcome("corrected"))
	svc.RecordChunkResult(ctx, batchID, chunks[2].ID(), inbound.FailureOutcome("model refused"))

	progress := svc.GetProgress(ctx, batchID)
	assert.Equal(t, valueobject.BatchStatusFailed, progress.Status())
	assert.Equal(t, 3, progress.ProcessedChunks())
	assert.Equal(t, 1, progress.FailedCount())
	require.NotNil(t, progress.ErrorMessage())
	assert.Equal(t, "1 of 3 chunks failed", *progress.ErrorMessage())

	assert.Equal(t, 1, notifier.CountType(entity.EventBatchCompleted))
}

func TestBatchLifecycleService_DuplicateDeliveryEmitsNoEvent(t *testing.T) {
	svc, notifier := newTestLifecycle(t, BatchLifecycleConfig{})
	ctx := context.Background()

	plan := newTestBatch(t, 2).Plan()
	batchID, err := svc.Admit(ctx, plan)
	require.NoError(t, err)
	require.NoError(t, svc.Start(ctx, batchID))

	chunkID := plan.Chunks()[0].ID()
	svc.RecordChunkResult(ctx, batchID, chunkID, inbound.SuccessOutcome("first"))
	svc.RecordChunkResult(ctx, batchID, chunkID, inbound.SuccessOutcome("second"))

	progress := svc.GetProgress(ctx, batchID)
	assert.Equal(t, 1, progress.ProcessedChunks())
	assert.Equal(t, 1, notifier.CountType(entity.EventProgressUpdated))
}

func TestBatchLifecycleService_UnknownBatchResultIgnored(t *testing.T) {
	svc, notifier := newTestLifecycle(t, BatchLifecycleConfig{})

	// Must not panic, must not emit.
	svc.RecordChunkResult(context.Background(), uuid.New(), uuid.New(), inbound.SuccessOutcome("corrected"))
	assert.Empty(t, notifier.Events())
}

func TestBatchLifecycleService_LateResultAfterCancel(t *testing.T) {
	svc, notifier := newTestLifecycle(t, BatchLifecycleConfig{})
	ctx := context.Background()

	plan := newTestBatch(t, 2).Plan()
	batchID, err := svc.Admit(ctx, plan)
	require.NoError(t, err)
	require.NoError(t, svc.Start(ctx, batchID))
	require.True(t, svc.Cancel(ctx, batchID))

	before := len(notifier.Events())
	svc.RecordChunkResult(ctx, batchID, plan.Chunks()[0].ID(), inbound.SuccessOutcome("late"))

	progress := svc.GetProgress(ctx, batchID)
	assert.Equal(t, valueobject.BatchStatusFailed, progress.Status())
	assert.Equal(t, 1, progress.ProcessedChunks(), "late result is kept for auditing")
	assert.Len(t, notifier.Events(), before, "terminal batch emits no further events")
}

func TestBatchLifecycleService_Timeout(t *testing.T) {
	svc, notifier := newTestLifecycle(t, BatchLifecycleConfig{BatchTimeout: 30 * time.Millisecond})
	ctx := context.Background()

	batchID, err := svc.Admit(ctx, newTestBatch(t, 2).Plan())
	require.NoError(t, err)
	require.NoError(t, svc.Start(ctx, batchID))

	require.Eventually(t, func() bool {
		return svc.GetProgress(ctx, batchID).Status() == valueobject.BatchStatusFailed
	}, time.Second, 5*time.Millisecond)

	progress := svc.GetProgress(ctx, batchID)
	require.NotNil(t, progress.ErrorMessage())
	assert.Contains(t, *progress.ErrorMessage(), "timed out")
	assert.Equal(t, 1, notifier.CountType(entity.EventBatchTimeout))
}

func TestBatchLifecycleService_TimeoutIsNoOpAfterCompletion(t *testing.T) {
	svc, notifier := newTestLifecycle(t, BatchLifecycleConfig{BatchTimeout: 30 * time.Millisecond})
	ctx := context.Background()

	plan := newTestBatch(t, 1).Plan()
	batchID, err := svc.Admit(ctx, plan)
	require.NoError(t, err)
	require.NoError(t, svc.Start(ctx, batchID))

	svc.RecordChunkResult(ctx, batchID, plan.Chunks()[0].ID(), inbound.SuccessOutcome("corrected"))
	require.Equal(t, valueobject.BatchStatusCompleted, svc.GetProgress(ctx, batchID).Status())

	// Let the timer fire against the already-terminal batch.
	time.Sleep(80 * time.Millisecond)

	assert.Equal(t, valueobject.BatchStatusCompleted, svc.GetProgress(ctx, batchID).Status())
	assert.Equal(t, 0, notifier.CountType(entity.EventBatchTimeout))
}

func TestBatchLifecycleService_Cancel(t *testing.T) {
	svc, notifier := newTestLifecycle(t, BatchLifecycleConfig{})
	ctx := context.Background()

	batchID, err := svc.Admit(ctx, newTestBatch(t, 1).Plan())
	require.NoError(t, err)

	assert.True(t, svc.Cancel(ctx, batchID))
	assert.Equal(t, valueobject.BatchStatusFailed, svc.GetProgress(ctx, batchID).Status())
	assert.Equal(t, 1, notifier.CountType(entity.EventBatchCancelled))

	// Cancelling again, or cancelling an unknown batch, reports false.
	assert.False(t, svc.Cancel(ctx, batchID))
	assert.False(t, svc.Cancel(ctx, uuid.New()))
	assert.Equal(t, 1, notifier.CountType(entity.EventBatchCancelled))
}

func TestBatchLifecycleService_Cancel_CompletedBatch(t *testing.T) {
	svc, _ := newTestLifecycle(t, BatchLifecycleConfig{})
	ctx := context.Background()

	plan := newTestBatch(t, 1).Plan()
	batchID, err := svc.Admit(ctx, plan)
	require.NoError(t, err)
	require.NoError(t, svc.Start(ctx, batchID))
	svc.RecordChunkResult(ctx, batchID, plan.Chunks()[0].ID(), inbound.SuccessOutcome("corrected"))

	assert.False(t, svc.Cancel(ctx, batchID))
	assert.Equal(t, valueobject.BatchStatusCompleted, svc.GetProgress(ctx, batchID).Status())
}

func TestBatchLifecycleService_CancelAll(t *testing.T) {
	svc, _ := newTestLifecycle(t, BatchLifecycleConfig{MaxConcurrentBatches: 10})
	ctx := context.Background()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		id, err := svc.Admit(ctx, newTestBatch(t, 1).Plan())
		require.NoError(t, err)
		ids = append(ids, id)
	}
	// One already terminal: not counted.
	require.True(t, svc.Cancel(ctx, ids[0]))

	assert.Equal(t, 2, svc.CancelAll(ctx))
	for _, id := range ids {
		assert.Equal(t, valueobject.BatchStatusFailed, svc.GetProgress(ctx, id).Status())
	}
	assert.Equal(t, 0, svc.CancelAll(ctx))
}

func TestBatchLifecycleService_Cleanup(t *testing.T) {
	svc, _ := newTestLifecycle(t, BatchLifecycleConfig{MaxBatchAge: time.Millisecond})
	ctx := context.Background()

	terminalID, err := svc.Admit(ctx, newTestBatch(t, 1).Plan())
	require.NoError(t, err)
	activeID, err := svc.Admit(ctx, newTestBatch(t, 1).Plan())
	require.NoError(t, err)

	require.True(t, svc.Cancel(ctx, terminalID))
	time.Sleep(10 * time.Millisecond)

	assert.Equal(t, 1, svc.Cleanup(ctx))
	assert.Nil(t, svc.GetProgress(ctx, terminalID))
	assert.NotNil(t, svc.GetProgress(ctx, activeID))

	// Nothing left to evict.
	assert.Equal(t, 0, svc.Cleanup(ctx))
}

func TestBatchLifecycleService_GetProgressReturnsCopy(t *testing.T) {
	svc, _ := newTestLifecycle(t, BatchLifecycleConfig{})
	ctx := context.Background()

	plan := newTestBatch(t, 2).Plan()
	batchID, err := svc.Admit(ctx, plan)
	require.NoError(t, err)

	first := svc.GetProgress(ctx, batchID)
	svc.RecordChunkResult(ctx, batchID, plan.Chunks()[0].ID(), inbound.SuccessOutcome("corrected"))

	assert.Equal(t, 0, first.ProcessedChunks())
	assert.Equal(t, 1, svc.GetProgress(ctx, batchID).ProcessedChunks())
}

func TestBatchLifecycleService_ConcurrentResultDelivery(t *testing.T) {
	svc, notifier := newTestLifecycle(t, BatchLifecycleConfig{})
	ctx := context.Background()

	plan := newTestBatch(t, 20).Plan()
	batchID, err := svc.Admit(ctx, plan)
	require.NoError(t, err)
	require.NoError(t, svc.Start(ctx, batchID))

	var wg sync.WaitGroup
	for _, chunk := range plan.Chunks() {
		wg.Add(2)
		// Each chunk delivered twice from racing goroutines.
		go func(chunkID uuid.UUID) {
			defer wg.Done()
			svc.RecordChunkResult(ctx, batchID, chunkID, inbound.SuccessOutcome("corrected"))
		}(chunk.ID())
		go func(chunkID uuid.UUID) {
			defer wg.Done()
			svc.RecordChunkResult(ctx, batchID, chunkID, inbound.SuccessOutcome("corrected"))
		}(chunk.ID())
	}
	wg.Wait()

	progress := svc.GetProgress(ctx, batchID)
	assert.Equal(t, valueobject.BatchStatusCompleted, progress.Status())
	assert.Equal(t, 20, progress.ProcessedChunks())
	assert.Equal(t, 1, notifier.CountType(entity.EventBatchCompleted),
		"exactly one terminal transition under racing deliveries")
}
