package outbound

import (
	"context"

	"textchunking/internal/domain/entity"
)

// BatchEventHandler consumes batch lifecycle events from the notification
// dispatcher. Handlers must be non-blocking relative to registry mutations;
// the dispatcher delivers events on its own goroutine and a handler error is
// logged, never propagated back into the lifecycle service.
type BatchEventHandler interface {
	// Name identifies the handler in logs.
	Name() string

	// HandleBatchEvent processes one lifecycle event.
	HandleBatchEvent(ctx context.Context, event entity.BatchEvent) error
}
