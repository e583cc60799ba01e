// Package inbound defines the service interfaces exposed to driving
// collaborators (routing, correction workers, schedulers).
package inbound

import (
	"context"

	"textchunking/internal/domain/entity"

	"github.com/google/uuid"
)

// ChunkOutcome is the already-resolved result of one chunk correction,
// delivered by the correction collaborator. It is either a corrected text or
// a pre-formed error message; this core never blocks on provider I/O.
type ChunkOutcome struct {
	CorrectedText string
	ErrorMessage  string
	Failed        bool
}

// SuccessOutcome builds an outcome for a successfully corrected chunk.
func SuccessOutcome(correctedText string) ChunkOutcome {
	return ChunkOutcome{CorrectedText: correctedText}
}

// FailureOutcome builds an outcome for a chunk the collaborator gave up on.
func FailureOutcome(errorMessage string) ChunkOutcome {
	return ChunkOutcome{ErrorMessage: errorMessage, Failed: true}
}

// BatchLifecycle orchestrates admission, state transitions, timeout
// scheduling and eviction of correction batches.
type BatchLifecycle interface {
	// Admit registers a new pending batch for the plan. Fails with
	// ErrCapacityExceeded when the active batch count is at the cap.
	Admit(ctx context.Context, plan *entity.SplitPlan) (uuid.UUID, error)

	// Start transitions a pending batch to processing and arms its timeout.
	Start(ctx context.Context, batchID uuid.UUID) error

	// RecordChunkResult is the single mutation entry point for chunk
	// outcomes. Unknown batch ids are logged and ignored because delivery
	// may race with eviction.
	RecordChunkResult(ctx context.Context, batchID, chunkID uuid.UUID, outcome ChunkOutcome)

	// GetProgress returns a deep copy of the batch progress, or nil when the
	// batch is unknown. A nil return is a normal outcome, not an error.
	GetProgress(ctx context.Context, batchID uuid.UUID) *entity.BatchProgress

	// Cancel forces a non-completed batch into the failed terminal state.
	// Returns false when the batch is unknown or already completed.
	Cancel(ctx context.Context, batchID uuid.UUID) bool

	// CancelAll cancels every active batch over a snapshot of ids and
	// returns how many were cancelled. Used for shutdown draining.
	CancelAll(ctx context.Context) int

	// Cleanup evicts terminal batches older than the retention window and
	// returns the eviction count.
	Cleanup(ctx context.Context) int
}
