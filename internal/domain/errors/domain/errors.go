// Package domain provides domain-specific error definitions and utilities.
package domain

import "errors"

// Splitting-related errors.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInputTooLarge      = errors.New("input text exceeds maximum size")
	ErrInvalidSplitConfig = errors.New("invalid split configuration")
)

// Batch-related errors.
var (
	ErrBatchNotFound    = errors.New("batch not found")
	ErrCapacityExceeded = errors.New("maximum concurrent batches exceeded")
	ErrInvalidState     = errors.New("invalid batch state for requested transition")
)
