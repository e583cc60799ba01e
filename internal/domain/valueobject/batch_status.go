package valueobject

import "fmt"

// BatchStatus represents the current status of a correction batch.
type BatchStatus string

// Batch status constants.
const (
	BatchStatusPending    BatchStatus = "pending"
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusFailed     BatchStatus = "failed"
)

// validBatchStatuses contains all valid batch statuses.
var validBatchStatuses = map[BatchStatus]bool{
	BatchStatusPending:    true,
	BatchStatusProcessing: true,
	BatchStatusCompleted:  true,
	BatchStatusFailed:     true,
}

// NewBatchStatus creates a new BatchStatus with validation.
func NewBatchStatus(status string) (BatchStatus, error) {
	s := BatchStatus(status)
	if !validBatchStatuses[s] {
		return "", fmt.Errorf("invalid batch status: %s", status)
	}
	return s, nil
}

// String returns the string representation of the status.
func (s BatchStatus) String() string {
	return string(s)
}

// IsTerminal returns true if this status represents a final state.
func (s BatchStatus) IsTerminal() bool {
	return s == BatchStatusCompleted || s == BatchStatusFailed
}

// IsActive returns true if the batch counts against the admission cap.
func (s BatchStatus) IsActive() bool {
	return s == BatchStatusPending || s == BatchStatusProcessing
}

// CanTransitionTo returns true if the status can transition to the target status.
func (s BatchStatus) CanTransitionTo(target BatchStatus) bool {
	transitions := map[BatchStatus][]BatchStatus{
		BatchStatusPending: {
			BatchStatusProcessing,
			BatchStatusFailed,
		},
		BatchStatusProcessing: {
			BatchStatusCompleted,
			BatchStatusFailed,
		},
		// Terminal states cannot transition
		BatchStatusCompleted: {},
		BatchStatusFailed:    {},
	}

	validTransitions, exists := transitions[s]
	if !exists {
		return false
	}

	for _, validTarget := range validTransitions {
		if target == validTarget {
			return true
		}
	}
	return false
}

// AllBatchStatuses returns all valid batch statuses.
func AllBatchStatuses() []BatchStatus {
	statuses := make([]BatchStatus, 0, len(validBatchStatuses))
	for status := range validBatchStatuses {
		statuses = append(statuses, status)
	}
	return statuses
}
