// Package service implements the application services coordinating the
// chunking and batch progress engine.
package service

import (
	"fmt"
	"sync"
	"time"

	"textchunking/internal/domain/entity"
	domainerrors "textchunking/internal/domain/errors/domain"

	"github.com/google/uuid"
)

// BatchRegistry is the in-memory arena of batch progress records and the
// single source of truth for batch state. The map is never exposed; reads
// hand out deep copies and every mutation runs under the registry mutex, so
// concurrent result deliveries for the same batch cannot race on progress
// recomputation or terminal-transition detection.
type BatchRegistry struct {
	mu      sync.Mutex
	batches map[uuid.UUID]*entity.BatchProgress
}

// NewBatchRegistry creates an empty registry.
func NewBatchRegistry() *BatchRegistry {
	return &BatchRegistry{
		batches: make(map[uuid.UUID]*entity.BatchProgress),
	}
}

// InsertWithCap inserts a new batch unless the number of active
// (pending/processing) batches already meets maxActive. The capacity check
// and the insert are atomic under the registry mutex.
func (r *BatchRegistry) InsertWithCap(progress *entity.BatchProgress, maxActive int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.batches[progress.ID()]; exists {
		return fmt.Errorf("batch %s already registered", progress.ID())
	}

	active := 0
	for _, b := range r.batches {
		if b.Status().IsActive() {
			active++
		}
	}
	if active >= maxActive {
		return fmt.Errorf("%w: %d active batches at cap %d",
			domainerrors.ErrCapacityExceeded, active, maxActive)
	}

	r.batches[progress.ID()] = progress
	return nil
}

// Mutate runs fn against the live batch record under the registry mutex.
// Returns ErrBatchNotFound when the id is unknown; any error from fn is
// passed through.
func (r *BatchRegistry) Mutate(id uuid.UUID, fn func(*entity.BatchProgress) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	batch, exists := r.batches[id]
	if !exists {
		return fmt.Errorf("%w: %s", domainerrors.ErrBatchNotFound, id)
	}
	return fn(batch)
}

// Snapshot returns a deep copy of the batch, or nil when unknown. Mutating
// the returned value never affects registry state.
func (r *BatchRegistry) Snapshot(id uuid.UUID) *entity.BatchProgress {
	r.mu.Lock()
	defer r.mu.Unlock()

	batch, exists := r.batches[id]
	if !exists {
		return nil
	}
	return batch.Snapshot()
}

// IDs returns a snapshot of all registered batch ids, safe to iterate while
// the registry keeps mutating.
func (r *BatchRegistry) IDs() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]uuid.UUID, 0, len(r.batches))
	for id := range r.batches {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of registered batches.
func (r *BatchRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

// ActiveCount returns the number of pending/processing batches.
func (r *BatchRegistry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	active := 0
	for _, b := range r.batches {
		if b.Status().IsActive() {
			active++
		}
	}
	return active
}

// EvictTerminalOlderThan removes every terminal batch that finished before
// the cutoff and returns the evicted ids. Evicted ids are never reused; ids
// are random UUIDs generated at admission.
func (r *BatchRegistry) EvictTerminalOlderThan(cutoff time.Time) []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []uuid.UUID
	for id, b := range r.batches {
		if !b.IsTerminal() {
			continue
		}
		finishedAt := b.FinishedAt()
		if finishedAt != nil && finishedAt.Before(cutoff) {
			delete(r.batches, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}
