package entity

import (
	"errors"
	"fmt"
	"time"

	"textchunking/internal/domain/valueobject"

	"github.com/google/uuid"
)

var (
	ErrNilSplitPlan        = errors.New("batch requires a split plan")
	ErrUnknownChunk        = errors.New("chunk does not belong to this batch")
	ErrBatchNotPending     = errors.New("batch can only be started from pending status")
	ErrBatchAlreadyFinal   = errors.New("batch already reached a terminal state")
	ErrBatchNotFinished    = errors.New("batch has unaccounted chunks")
	ErrBatchNeverProcessed = errors.New("batch was never started")
)

// ChunkResult is one successfully corrected chunk.
type ChunkResult struct {
	ChunkID       uuid.UUID `json:"chunk_id"`
	CorrectedText string    `json:"corrected_text"`
	ReceivedAt    time.Time `json:"received_at"`
}

// ChunkFailure is one chunk the correction collaborator gave up on.
type ChunkFailure struct {
	ChunkID      uuid.UUID `json:"chunk_id"`
	ErrorMessage string    `json:"error_message"`
	ReceivedAt   time.Time `json:"received_at"`
}

// BatchProgress is the mutable aggregate tracking execution of one split
// plan. All mutation goes through the lifecycle service; the registry hands
// out deep copies only.
type BatchProgress struct {
	id                    uuid.UUID
	plan                  *SplitPlan
	chunkIDs              map[uuid.UUID]bool
	totalChunks           int
	completed             map[uuid.UUID]ChunkResult
	failed                map[uuid.UUID]ChunkFailure
	status                valueobject.BatchStatus
	errorMessage          *string
	createdAt             time.Time
	startedAt             *time.Time
	finishedAt            *time.Time
	estimatedCompletionAt *time.Time
	updatedAt             time.Time
}

// NewBatchProgress creates a pending batch for the given plan.
func NewBatchProgress(plan *SplitPlan) (*BatchProgress, error) {
	if plan == nil {
		return nil, ErrNilSplitPlan
	}
	chunkIDs := make(map[uuid.UUID]bool, plan.ChunkCount())
	for _, chunk := range plan.Chunks() {
		chunkIDs[chunk.ID()] = true
	}
	now := time.Now()
	return &BatchProgress{
		id:          uuid.New(),
		plan:        plan,
		chunkIDs:    chunkIDs,
		totalChunks: plan.ChunkCount(),
		completed:   make(map[uuid.UUID]ChunkResult),
		failed:      make(map[uuid.UUID]ChunkFailure),
		status:      valueobject.BatchStatusPending,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// ID returns the batch identifier.
func (b *BatchProgress) ID() uuid.UUID {
	return b.id
}

// Plan returns the split plan this batch tracks. The plan is immutable and
// safe to share.
func (b *BatchProgress) Plan() *SplitPlan {
	return b.plan
}

// Status returns the current batch status.
func (b *BatchProgress) Status() valueobject.BatchStatus {
	return b.status
}

// TotalChunks returns the number of chunks in the plan.
func (b *BatchProgress) TotalChunks() int {
	return b.totalChunks
}

// ProcessedChunks returns the number of chunks accounted for so far.
func (b *BatchProgress) ProcessedChunks() int {
	return len(b.completed) + len(b.failed)
}

// CompletedCount returns the number of successfully corrected chunks.
func (b *BatchProgress) CompletedCount() int {
	return len(b.completed)
}

// FailedCount returns the number of failed chunks.
func (b *BatchProgress) FailedCount() int {
	return len(b.failed)
}

// CompletedResults returns a copy of the received chunk results.
func (b *BatchProgress) CompletedResults() []ChunkResult {
	results := make([]ChunkResult, 0, len(b.completed))
	for _, r := range b.completed {
		results = append(results, r)
	}
	return results
}

// Failures returns a copy of the recorded chunk failures.
func (b *BatchProgress) Failures() []ChunkFailure {
	failures := make([]ChunkFailure, 0, len(b.failed))
	for _, f := range b.failed {
		failures = append(failures, f)
	}
	return failures
}

// HasChunkResult reports whether the chunk id is present in either set.
func (b *BatchProgress) HasChunkResult(chunkID uuid.UUID) bool {
	_, ok := b.completed[chunkID]
	if ok {
		return true
	}
	_, ok = b.failed[chunkID]
	return ok
}

// ErrorMessage returns the batch-level failure reason, if any.
func (b *BatchProgress) ErrorMessage() *string {
	return b.errorMessage
}

// CreatedAt returns the admission timestamp.
func (b *BatchProgress) CreatedAt() time.Time {
	return b.createdAt
}

// StartedAt returns when processing began, nil while pending.
func (b *BatchProgress) StartedAt() *time.Time {
	return b.startedAt
}

// FinishedAt returns when the batch reached a terminal state, nil until then.
func (b *BatchProgress) FinishedAt() *time.Time {
	return b.finishedAt
}

// EstimatedCompletionAt returns the current completion estimate, nil until
// the first chunk result arrives.
func (b *BatchProgress) EstimatedCompletionAt() *time.Time {
	return b.estimatedCompletionAt
}

// UpdatedAt returns the last mutation timestamp.
func (b *BatchProgress) UpdatedAt() time.Time {
	return b.updatedAt
}

// IsTerminal reports whether the batch reached a final state.
func (b *BatchProgress) IsTerminal() bool {
	return b.status.IsTerminal()
}

// MarkProcessing transitions the batch from pending to processing.
func (b *BatchProgress) MarkProcessing() error {
	if b.status != valueobject.BatchStatusPending {
		return fmt.Errorf("%w: status is %s", ErrBatchNotPending, b.status)
	}
	now := time.Now()
	b.status = valueobject.BatchStatusProcessing
	b.startedAt = &now
	b.updatedAt = now
	return nil
}

// OwnsChunk reports whether the chunk id belongs to this batch's plan.
func (b *BatchProgress) OwnsChunk(chunkID uuid.UUID) bool {
	return b.chunkIDs[chunkID]
}

// RecordSuccess records a corrected chunk. Re-delivery of an already
// accounted chunk id is a no-op; the bool reports whether the result was
// newly recorded. Chunk ids outside the plan are rejected so the processed
// count can never exceed the total. Results against a terminal batch are kept
// for auditing but can no longer change status.
func (b *BatchProgress) RecordSuccess(chunkID uuid.UUID, correctedText string) (bool, error) {
	if !b.OwnsChunk(chunkID) {
		return false, fmt.Errorf("%w: %s", ErrUnknownChunk, chunkID)
	}
	if b.HasChunkResult(chunkID) {
		return false, nil
	}
	now := time.Now()
	b.completed[chunkID] = ChunkResult{
		ChunkID:       chunkID,
		CorrectedText: correctedText,
		ReceivedAt:    now,
	}
	b.updatedAt = now
	return true, nil
}

// RecordFailure records a chunk the correction collaborator failed on.
// Idempotent per chunk id, like RecordSuccess.
func (b *BatchProgress) RecordFailure(chunkID uuid.UUID, errorMessage string) (bool, error) {
	if !b.OwnsChunk(chunkID) {
		return false, fmt.Errorf("%w: %s", ErrUnknownChunk, chunkID)
	}
	if b.HasChunkResult(chunkID) {
		return false, nil
	}
	now := time.Now()
	b.failed[chunkID] = ChunkFailure{
		ChunkID:      chunkID,
		ErrorMessage: errorMessage,
		ReceivedAt:   now,
	}
	b.updatedAt = now
	return true, nil
}

// AllChunksAccounted reports whether every chunk has a result or failure.
func (b *BatchProgress) AllChunksAccounted() bool {
	return b.ProcessedChunks() >= b.totalChunks
}

// Finalize moves a fully accounted batch to its terminal state: completed
// when no chunk failed, failed otherwise.
func (b *BatchProgress) Finalize() error {
	if b.status.IsTerminal() {
		return ErrBatchAlreadyFinal
	}
	if !b.AllChunksAccounted() {
		return fmt.Errorf("%w: %d of %d accounted", ErrBatchNotFinished, b.ProcessedChunks(), b.totalChunks)
	}
	now := time.Now()
	if len(b.failed) == 0 {
		b.status = valueobject.BatchStatusCompleted
	} else {
		b.status = valueobject.BatchStatusFailed
		msg := fmt.Sprintf("%d of %d chunks failed", len(b.failed), b.totalChunks)
		b.errorMessage = &msg
	}
	b.finishedAt = &now
	b.updatedAt = now
	return nil
}

// MarkFailed forces the batch into the failed terminal state, recording the
// reason. Used for timeouts and cancellation.
func (b *BatchProgress) MarkFailed(reason string) error {
	if b.status.IsTerminal() {
		return ErrBatchAlreadyFinal
	}
	now := time.Now()
	b.status = valueobject.BatchStatusFailed
	b.errorMessage = &reason
	b.finishedAt = &now
	b.updatedAt = now
	return nil
}

// UpdateEstimatedCompletion recomputes the completion estimate from the
// running average chunk latency observed so far. The first samples are noisy;
// the estimate is informational only.
func (b *BatchProgress) UpdateEstimatedCompletion(now time.Time) {
	if b.startedAt == nil || b.ProcessedChunks() == 0 || b.AllChunksAccounted() {
		return
	}
	elapsed := now.Sub(*b.startedAt)
	avgPerChunk := elapsed / time.Duration(b.ProcessedChunks())
	remaining := b.totalChunks - b.ProcessedChunks()
	estimate := now.Add(avgPerChunk * time.Duration(remaining))
	b.estimatedCompletionAt = &estimate
	b.updatedAt = now
}

// Snapshot returns a deep copy that callers may mutate freely.
func (b *BatchProgress) Snapshot() *BatchProgress {
	completed := make(map[uuid.UUID]ChunkResult, len(b.completed))
	for id, r := range b.completed {
		completed[id] = r
	}
	failed := make(map[uuid.UUID]ChunkFailure, len(b.failed))
	for id, f := range b.failed {
		failed[id] = f
	}
	snapshot := &BatchProgress{
		id:          b.id,
		plan:        b.plan,     // immutable, safe to share
		chunkIDs:    b.chunkIDs, // never mutated after construction
		totalChunks: b.totalChunks,
		completed:   completed,
		failed:      failed,
		status:      b.status,
		createdAt:   b.createdAt,
		updatedAt:   b.updatedAt,
	}
	if b.errorMessage != nil {
		msg := *b.errorMessage
		snapshot.errorMessage = &msg
	}
	if b.startedAt != nil {
		t := *b.startedAt
		snapshot.startedAt = &t
	}
	if b.finishedAt != nil {
		t := *b.finishedAt
		snapshot.finishedAt = &t
	}
	if b.estimatedCompletionAt != nil {
		t := *b.estimatedCompletionAt
		snapshot.estimatedCompletionAt = &t
	}
	return snapshot
}

// Validate ensures the batch progress aggregate is in a consistent state.
func (b *BatchProgress) Validate() error {
	if b.id == uuid.Nil {
		return errors.New("invalid batch ID")
	}
	if b.plan == nil {
		return ErrNilSplitPlan
	}
	if b.totalChunks <= 0 {
		return errors.New("total chunks must be positive")
	}
	if b.ProcessedChunks() > b.totalChunks {
		return errors.New("processed chunks cannot exceed total chunks")
	}
	if _, err := valueobject.NewBatchStatus(b.status.String()); err != nil {
		return err
	}
	if b.status.IsTerminal() && b.finishedAt == nil {
		return errors.New("terminal batch must record a finish time")
	}
	if b.status == valueobject.BatchStatusProcessing && b.startedAt == nil {
		return ErrBatchNeverProcessed
	}
	return nil
}
