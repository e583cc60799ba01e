// Package common provides shared application-layer utilities.
package common

import "fmt"

// ServiceError represents a service-level error with operation context.
type ServiceError struct {
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e ServiceError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Cause)
}

// Unwrap returns the underlying error.
func (e ServiceError) Unwrap() error {
	return e.Cause
}

// WrapServiceError wraps an error with service operation context.
func WrapServiceError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return ServiceError{
		Operation: operation,
		Cause:     err,
	}
}

// Common error operations for consistent messaging.
const (
	OpSplitText         = "split text"
	OpAdmitBatch        = "admit batch"
	OpStartBatch        = "start batch"
	OpRecordChunkResult = "record chunk result"
	OpCancelBatch       = "cancel batch"
	OpCleanupBatches    = "clean up batches"
	OpPublishEvent      = "publish batch event"
	OpArchiveEvent      = "archive batch event"
)
