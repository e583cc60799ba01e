package service

import (
	"context"
	"sync"

	"textchunking/internal/application/common/slogger"
	"textchunking/internal/domain/entity"
	"textchunking/internal/port/outbound"
)

// DefaultEventBufferSize is the dispatcher's channel capacity.
const DefaultEventBufferSize = 256

// BatchNotifier is how the lifecycle service hands events off for fan-out
// without knowing who is listening.
type BatchNotifier interface {
	Notify(event entity.BatchEvent)
}

// NotificationDispatcher fans batch lifecycle events out to registered
// handlers on a dedicated goroutine. Notify never blocks a registry
// mutation: when the buffer is full the event is dropped with a warning.
type NotificationDispatcher struct {
	events   chan entity.BatchEvent
	handlers []outbound.BatchEventHandler

	mu      sync.Mutex
	started bool
	closed  bool
	done    chan struct{}
}

// NewNotificationDispatcher creates a dispatcher with the given buffer size
// and handler set. A bufferSize of zero or less falls back to the default.
func NewNotificationDispatcher(bufferSize int, handlers ...outbound.BatchEventHandler) *NotificationDispatcher {
	if bufferSize <= 0 {
		bufferSize = DefaultEventBufferSize
	}
	return &NotificationDispatcher{
		events:   make(chan entity.BatchEvent, bufferSize),
		handlers: handlers,
		done:     make(chan struct{}),
	}
}

// Start launches the fan-out goroutine. Subsequent calls are no-ops.
func (d *NotificationDispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true

	go func() {
		defer close(d.done)
		for event := range d.events {
			d.fanOut(ctx, event)
		}
	}()
}

// Notify enqueues an event for fan-out. Safe to call from any goroutine;
// never blocks.
func (d *NotificationDispatcher) Notify(event entity.BatchEvent) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		slogger.WarnNoCtx("Event dropped: dispatcher closed", slogger.Fields{
			"event_type": string(event.Type),
			"batch_id":   event.BatchID.String(),
		})
		return
	}

	select {
	case d.events <- event:
		d.mu.Unlock()
	default:
		d.mu.Unlock()
		slogger.WarnNoCtx("Event dropped: dispatcher buffer full", slogger.Fields{
			"event_type": string(event.Type),
			"batch_id":   event.BatchID.String(),
		})
	}
}

// Close stops intake, drains buffered events through the handlers and waits
// for the fan-out goroutine to finish. Idempotent.
func (d *NotificationDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	started := d.started
	close(d.events)
	d.mu.Unlock()

	if started {
		<-d.done
	}
}

func (d *NotificationDispatcher) fanOut(ctx context.Context, event entity.BatchEvent) {
	for _, handler := range d.handlers {
		if err := handler.HandleBatchEvent(ctx, event); err != nil {
			slogger.ErrorWithError(ctx, err, "Batch event handler failed", slogger.Fields{
				"handler":    handler.Name(),
				"event_type": string(event.Type),
				"batch_id":   event.BatchID.String(),
			})
		}
	}
}
