package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"textchunking/internal/application/common"
	"textchunking/internal/application/common/slogger"
	"textchunking/internal/domain/entity"
	domainerrors "textchunking/internal/domain/errors/domain"
	"textchunking/internal/domain/valueobject"
	"textchunking/internal/port/inbound"

	"github.com/google/uuid"
)

// Lifecycle defaults.
const (
	DefaultMaxConcurrentBatches = 5
	DefaultBatchTimeout         = 5 * time.Minute
	DefaultMaxBatchAge          = time.Hour
)

// BatchLifecycleConfig holds the lifecycle service configuration.
type BatchLifecycleConfig struct {
	MaxConcurrentBatches int
	BatchTimeout         time.Duration
	MaxBatchAge          time.Duration
}

// applyDefaults fills unset fields with the documented defaults.
func (c BatchLifecycleConfig) applyDefaults() BatchLifecycleConfig {
	if c.MaxConcurrentBatches <= 0 {
		c.MaxConcurrentBatches = DefaultMaxConcurrentBatches
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = DefaultBatchTimeout
	}
	if c.MaxBatchAge <= 0 {
		c.MaxBatchAge = DefaultMaxBatchAge
	}
	return c
}

// BatchLifecycleService orchestrates admission, state transitions, timeout
// scheduling and eviction on top of the batch registry. It implements
// inbound.BatchLifecycle.
type BatchLifecycleService struct {
	config   BatchLifecycleConfig
	registry *BatchRegistry
	notifier BatchNotifier
	metrics  *lifecycleMetrics
}

// NewBatchLifecycleService creates the lifecycle service.
func NewBatchLifecycleService(
	ctx context.Context,
	config BatchLifecycleConfig,
	registry *BatchRegistry,
	notifier BatchNotifier,
) *BatchLifecycleService {
	return &BatchLifecycleService{
		config:   config.applyDefaults(),
		registry: registry,
		notifier: notifier,
		metrics:  newLifecycleMetrics(ctx),
	}
}

// Admit registers a new pending batch for the plan. Fails fast with
// ErrCapacityExceeded at the concurrency cap; callers poll or wait for a
// notification rather than queue.
func (s *BatchLifecycleService) Admit(ctx context.Context, plan *entity.SplitPlan) (uuid.UUID, error) {
	progress, err := entity.NewBatchProgress(plan)
	if err != nil {
		return uuid.Nil, common.WrapServiceError(common.OpAdmitBatch, err)
	}

	if err := s.registry.InsertWithCap(progress, s.config.MaxConcurrentBatches); err != nil {
		if errors.Is(err, domainerrors.ErrCapacityExceeded) {
			s.metrics.recordRejected(ctx)
			slogger.Warn(ctx, "Batch admission rejected at capacity", slogger.Fields{
				"max_concurrent_batches": s.config.MaxConcurrentBatches,
			})
		}
		return uuid.Nil, common.WrapServiceError(common.OpAdmitBatch, err)
	}

	s.metrics.recordAdmitted(ctx, plan.ChunkCount())
	s.metrics.recordActive(ctx, s.registry.ActiveCount())
	slogger.Info(ctx, "Batch admitted", slogger.Fields{
		"batch_id":     progress.ID().String(),
		"total_chunks": plan.ChunkCount(),
	})

	s.notifier.Notify(entity.NewBatchEvent(entity.EventBatchCreated, progress.Snapshot()))
	return progress.ID(), nil
}

// Start transitions a pending batch to processing and arms the one-shot
// timeout. The timeout is never cancelled early; when it fires against an
// already-terminal batch it is a no-op.
func (s *BatchLifecycleService) Start(ctx context.Context, batchID uuid.UUID) error {
	var snapshot *entity.BatchProgress
	err := s.registry.Mutate(batchID, func(b *entity.BatchProgress) error {
		if err := b.MarkProcessing(); err != nil {
			return fmt.Errorf("%w: %v", domainerrors.ErrInvalidState, err)
		}
		snapshot = b.Snapshot()
		return nil
	})
	if err != nil {
		return common.WrapServiceError(common.OpStartBatch, err)
	}

	slogger.Info(ctx, "Batch started", slogger.Fields{
		"batch_id":      batchID.String(),
		"batch_timeout": s.config.BatchTimeout.String(),
	})
	s.notifier.Notify(entity.NewBatchEvent(entity.EventBatchStarted, snapshot))

	timeout := s.config.BatchTimeout
	time.AfterFunc(timeout, func() {
		s.handleTimeout(context.WithoutCancel(ctx), batchID, timeout)
	})
	return nil
}

// handleTimeout fails the batch iff it is still processing when the timer
// fires. A stale fire against a terminal (or evicted) batch does nothing.
func (s *BatchLifecycleService) handleTimeout(ctx context.Context, batchID uuid.UUID, timeout time.Duration) {
	var snapshot *entity.BatchProgress
	err := s.registry.Mutate(batchID, func(b *entity.BatchProgress) error {
		if b.Status() != valueobject.BatchStatusProcessing {
			return nil
		}
		reason := fmt.Sprintf("batch timed out after %s", timeout)
		if err := b.MarkFailed(reason); err != nil {
			return err
		}
		snapshot = b.Snapshot()
		return nil
	})
	if err != nil || snapshot == nil {
		// Already terminal or evicted before the timer fired.
		return
	}

	s.metrics.recordTimeout(ctx)
	s.metrics.recordTerminal(ctx, snapshot.Status().String(), snapshot.StartedAt())
	s.metrics.recordActive(ctx, s.registry.ActiveCount())
	slogger.Warn(ctx, "Batch failed by timeout", slogger.Fields{
		"batch_id":         batchID.String(),
		"timeout":          timeout.String(),
		"processed_chunks": snapshot.ProcessedChunks(),
		"total_chunks":     snapshot.TotalChunks(),
	})
	s.notifier.Notify(entity.NewBatchEvent(entity.EventBatchTimeout, snapshot))
}

// RecordChunkResult is the single mutation entry point for chunk outcomes.
// Unknown batches are logged and ignored: result delivery may race with
// eviction and must never crash the delivering collaborator. Re-delivery of
// an already accounted chunk id is idempotent.
func (s *BatchLifecycleService) RecordChunkResult(
	ctx context.Context,
	batchID, chunkID uuid.UUID,
	outcome inbound.ChunkOutcome,
) {
	var (
		snapshot      *entity.BatchProgress
		eventType     entity.BatchEventType
		finalized     bool
		newlyRecorded bool
	)

	err := s.registry.Mutate(batchID, func(b *entity.BatchProgress) error {
		wasTerminal := b.IsTerminal()

		var err error
		if outcome.Failed {
			newlyRecorded, err = b.RecordFailure(chunkID, outcome.ErrorMessage)
		} else {
			newlyRecorded, err = b.RecordSuccess(chunkID, outcome.CorrectedText)
		}
		if err != nil {
			return err
		}
		if !newlyRecorded || wasTerminal {
			// Duplicate delivery, or a late result against a terminal batch:
			// the sets are already up to date, status cannot change.
			return nil
		}

		if b.AllChunksAccounted() {
			if err := b.Finalize(); err != nil {
				return err
			}
			finalized = true
			eventType = entity.EventBatchCompleted
		} else {
			b.UpdateEstimatedCompletion(time.Now())
			eventType = entity.EventProgressUpdated
		}
		snapshot = b.Snapshot()
		return nil
	})
	if err != nil {
		// Deliberately not raised: log-and-ignore keeps the delivering
		// collaborator alive when the batch was evicted or the chunk id is
		// foreign.
		slogger.Warn(ctx, "Chunk result ignored", slogger.Fields{
			"batch_id": batchID.String(),
			"chunk_id": chunkID.String(),
			"error":    err.Error(),
		})
		return
	}

	if newlyRecorded {
		s.metrics.recordChunkResult(ctx, outcome.Failed)
	}
	if snapshot == nil {
		return
	}

	if finalized {
		s.metrics.recordTerminal(ctx, snapshot.Status().String(), snapshot.StartedAt())
		s.metrics.recordActive(ctx, s.registry.ActiveCount())
		slogger.Info(ctx, "Batch reached terminal state", slogger.Fields{
			"batch_id":     batchID.String(),
			"status":       snapshot.Status().String(),
			"failed_count": snapshot.FailedCount(),
			"total_chunks": snapshot.TotalChunks(),
		})
	}
	s.notifier.Notify(entity.NewBatchEvent(eventType, snapshot))
}

// GetProgress returns a deep copy of the batch progress, or nil when the
// batch is unknown. Nil is a normal outcome, not a failure.
func (s *BatchLifecycleService) GetProgress(_ context.Context, batchID uuid.UUID) *entity.BatchProgress {
	return s.registry.Snapshot(batchID)
}

// Cancel forces a non-terminal batch into the failed state. Bookkeeping
// only: in-flight external work is not interrupted, and late results for a
// cancelled batch are still accepted into its sets without changing status.
func (s *BatchLifecycleService) Cancel(ctx context.Context, batchID uuid.UUID) bool {
	var snapshot *entity.BatchProgress
	err := s.registry.Mutate(batchID, func(b *entity.BatchProgress) error {
		if b.IsTerminal() {
			return entity.ErrBatchAlreadyFinal
		}
		if err := b.MarkFailed("batch cancelled"); err != nil {
			return err
		}
		snapshot = b.Snapshot()
		return nil
	})
	if err != nil {
		return false
	}

	s.metrics.recordTerminal(ctx, snapshot.Status().String(), snapshot.StartedAt())
	s.metrics.recordActive(ctx, s.registry.ActiveCount())
	slogger.Info(ctx, "Batch cancelled", slogger.Fields{
		"batch_id":         batchID.String(),
		"processed_chunks": snapshot.ProcessedChunks(),
		"total_chunks":     snapshot.TotalChunks(),
	})
	s.notifier.Notify(entity.NewBatchEvent(entity.EventBatchCancelled, snapshot))
	return true
}

// CancelAll cancels every active batch over a snapshot of ids, for shutdown
// draining. Returns the number of batches cancelled.
func (s *BatchLifecycleService) CancelAll(ctx context.Context) int {
	cancelled := 0
	for _, id := range s.registry.IDs() {
		if s.Cancel(ctx, id) {
			cancelled++
		}
	}
	if cancelled > 0 {
		slogger.Info(ctx, "Cancelled all active batches", slogger.Fields{
			"cancelled": cancelled,
		})
	}
	return cancelled
}

// Cleanup evicts terminal batches whose finish time precedes the retention
// window and returns the eviction count. Invoked periodically by the reaper
// and manually at shutdown.
func (s *BatchLifecycleService) Cleanup(ctx context.Context) int {
	cutoff := time.Now().Add(-s.config.MaxBatchAge)
	evicted := s.registry.EvictTerminalOlderThan(cutoff)
	if len(evicted) == 0 {
		return 0
	}

	s.metrics.recordEvicted(ctx, len(evicted))
	slogger.Info(ctx, "Evicted terminal batches", slogger.Fields{
		"evicted_count": len(evicted),
		"max_batch_age": s.config.MaxBatchAge.String(),
		"remaining":     s.registry.Len(),
	})
	return len(evicted)
}
