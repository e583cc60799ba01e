package entity

import (
	"time"

	"github.com/google/uuid"
)

// BatchEventType names one batch lifecycle transition.
type BatchEventType string

// Batch lifecycle event types.
const (
	EventBatchCreated    BatchEventType = "batch_created"
	EventBatchStarted    BatchEventType = "batch_started"
	EventProgressUpdated BatchEventType = "progress_updated"
	EventBatchCompleted  BatchEventType = "batch_completed"
	EventBatchTimeout    BatchEventType = "batch_timeout"
	EventBatchCancelled  BatchEventType = "batch_cancelled"
)

// BatchEvent is one lifecycle notification carrying a progress snapshot.
// The snapshot is a deep copy; listeners may inspect it without affecting
// registry state.
type BatchEvent struct {
	MessageID uuid.UUID
	Type      BatchEventType
	BatchID   uuid.UUID
	Progress  *BatchProgress
	Timestamp time.Time
}

// NewBatchEvent builds an event around a progress snapshot.
func NewBatchEvent(eventType BatchEventType, progress *BatchProgress) BatchEvent {
	return BatchEvent{
		MessageID: uuid.New(),
		Type:      eventType,
		BatchID:   progress.ID(),
		Progress:  progress,
		Timestamp: time.Now(),
	}
}
