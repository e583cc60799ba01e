// Package messaging provides the NATS JetStream publisher that forwards
// batch lifecycle events to external collaborators.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"textchunking/internal/config"
	"textchunking/internal/domain/entity"

	"github.com/nats-io/nats.go"
)

const (
	// NATS connection timeout.
	natsConnectionTimeoutSeconds = 5

	// Stream configuration.
	streamName    = "CORRECTION"
	subjectPrefix = "correction.batch."
	streamMaxAge  = 24 * time.Hour
)

// ConnectionHealthStatus reports the health of the NATS connection.
type ConnectionHealthStatus struct {
	Connected    bool          `json:"connected"`
	LastError    string        `json:"last_error,omitempty"`
	Uptime       time.Duration `json:"uptime"`
	Reconnects   int           `json:"reconnects"`
	LastPingTime time.Time     `json:"last_ping_time"`
}

// PublishMetrics tracks event publishing metrics.
type PublishMetrics struct {
	PublishedCount    int64         `json:"published_count"`
	FailedCount       int64         `json:"failed_count"`
	AverageLatency    time.Duration `json:"average_latency"`
	LastPublishedTime time.Time     `json:"last_published_time"`
}

// BatchEventMessage is the wire representation of one lifecycle event.
type BatchEventMessage struct {
	MessageID             string     `json:"message_id"`
	EventType             string     `json:"event_type"`
	BatchID               string     `json:"batch_id"`
	Status                string     `json:"status"`
	TotalChunks           int        `json:"total_chunks"`
	ProcessedChunks       int        `json:"processed_chunks"`
	CompletedChunks       int        `json:"completed_chunks"`
	FailedChunks          int        `json:"failed_chunks"`
	ErrorMessage          *string    `json:"error_message,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	StartedAt             *time.Time `json:"started_at,omitempty"`
	FinishedAt            *time.Time `json:"finished_at,omitempty"`
	EstimatedCompletionAt *time.Time `json:"estimated_completion_at,omitempty"`
	Timestamp             time.Time  `json:"timestamp"`
}

// NewBatchEventMessage flattens a lifecycle event into its wire form.
func NewBatchEventMessage(event entity.BatchEvent) BatchEventMessage {
	progress := event.Progress
	return BatchEventMessage{
		MessageID:             event.MessageID.String(),
		EventType:             string(event.Type),
		BatchID:               event.BatchID.String(),
		Status:                progress.Status().String(),
		TotalChunks:           progress.TotalChunks(),
		ProcessedChunks:       progress.ProcessedChunks(),
		CompletedChunks:       progress.CompletedCount(),
		FailedChunks:          progress.FailedCount(),
		ErrorMessage:          progress.ErrorMessage(),
		CreatedAt:             progress.CreatedAt(),
		StartedAt:             progress.StartedAt(),
		FinishedAt:            progress.FinishedAt(),
		EstimatedCompletionAt: progress.EstimatedCompletionAt(),
		Timestamp:             event.Timestamp,
	}
}

// NATSEventPublisher publishes batch lifecycle events to NATS JetStream. It
// implements outbound.BatchEventHandler.
type NATSEventPublisher struct {
	config           config.NATSConfig
	conn             *nats.Conn
	js               nats.JetStreamContext
	connectionHealth ConnectionHealthStatus
	publishMetrics   PublishMetrics
	mutex            sync.RWMutex
	connectedAt      time.Time
	reconnectCount   int
	lastError        error
}

// NewNATSEventPublisher creates a new NATS event publisher.
func NewNATSEventPublisher(cfg config.NATSConfig) (*NATSEventPublisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("NATS URL cannot be empty")
	}
	if !strings.HasPrefix(cfg.URL, "nats://") {
		return nil, errors.New("invalid NATS URL scheme")
	}
	if cfg.MaxReconnects < 0 {
		return nil, errors.New("max reconnects cannot be negative")
	}
	if cfg.ReconnectWait < 0 {
		return nil, errors.New("reconnect wait cannot be negative")
	}

	return &NATSEventPublisher{
		config: cfg,
	}, nil
}

// Name identifies the publisher in dispatcher logs.
func (n *NATSEventPublisher) Name() string {
	return "nats_event_publisher"
}

// Connect establishes the NATS connection and JetStream context.
func (n *NATSEventPublisher) Connect() error {
	opts := []nats.Option{
		nats.MaxReconnects(n.config.MaxReconnects),
		nats.ReconnectWait(n.config.ReconnectWait),
		nats.Timeout(natsConnectionTimeoutSeconds * time.Second),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			n.mutex.Lock()
			n.reconnectCount++
			n.mutex.Unlock()
			n.updateConnectionHealth(true, nil)
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, _ error) {
			n.updateConnectionHealth(false, errors.New("connection lost"))
		}),
	}

	conn, err := nats.Connect(n.config.URL, opts...)
	if err != nil {
		n.updateConnectionHealth(false, err)
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		n.updateConnectionHealth(false, err)
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	n.mutex.Lock()
	n.conn = conn
	n.js = js
	n.mutex.Unlock()
	n.updateConnectionHealth(true, nil)
	return nil
}

// Disconnect closes the NATS connection.
func (n *NATSEventPublisher) Disconnect() error {
	n.mutex.Lock()
	if n.conn != nil {
		n.conn.Close()
		n.conn = nil
		n.js = nil
	}
	n.mutex.Unlock()
	n.updateConnectionHealth(false, nil)
	return nil
}

// EnsureStream creates the JetStream stream if it doesn't exist.
func (n *NATSEventPublisher) EnsureStream() error {
	n.mutex.RLock()
	js := n.js
	n.mutex.RUnlock()
	if js == nil {
		return errors.New("not connected to NATS server")
	}

	streamConfig := &nats.StreamConfig{
		Name:      streamName,
		Subjects:  []string{subjectPrefix + ">"},
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    streamMaxAge,
		Replicas:  1,
	}

	if _, err := js.AddStream(streamConfig); err != nil {
		// Stream may already exist; that is fine.
		if _, infoErr := js.StreamInfo(streamName); infoErr == nil {
			return nil
		}
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// HandleBatchEvent publishes one lifecycle event, subject-keyed by event
// type (e.g. correction.batch.batch_completed).
func (n *NATSEventPublisher) HandleBatchEvent(ctx context.Context, event entity.BatchEvent) error {
	start := time.Now()

	select {
	case <-ctx.Done():
		n.updateMetrics(false, time.Since(start))
		return ctx.Err()
	default:
	}

	n.mutex.RLock()
	js := n.js
	n.mutex.RUnlock()
	if js == nil {
		n.updateMetrics(false, time.Since(start))
		return errors.New("publish failed: not connected to NATS")
	}

	data, err := json.Marshal(NewBatchEventMessage(event))
	if err != nil {
		n.updateMetrics(false, time.Since(start))
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := subjectPrefix + string(event.Type)
	if _, err := js.PublishAsync(subject, data); err != nil {
		n.updateMetrics(false, time.Since(start))
		return fmt.Errorf("failed to publish event: %w", err)
	}

	n.updateMetrics(true, time.Since(start))
	return nil
}

// GetConnectionHealth returns the current connection health status.
func (n *NATSEventPublisher) GetConnectionHealth() ConnectionHealthStatus {
	n.mutex.RLock()
	defer n.mutex.RUnlock()

	status := n.connectionHealth
	if status.Connected {
		status.Uptime = time.Since(n.connectedAt)
	}
	if n.lastError != nil {
		status.LastError = n.lastError.Error()
	}
	status.Reconnects = n.reconnectCount
	return status
}

// GetPublishMetrics returns current publishing metrics.
func (n *NATSEventPublisher) GetPublishMetrics() PublishMetrics {
	n.mutex.RLock()
	defer n.mutex.RUnlock()
	return n.publishMetrics
}

func (n *NATSEventPublisher) updateConnectionHealth(connected bool, err error) {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	n.connectionHealth.Connected = connected
	n.connectionHealth.LastPingTime = time.Now()

	if err != nil {
		n.connectionHealth.LastError = err.Error()
		n.lastError = err
	}

	if connected && n.connectedAt.IsZero() {
		n.connectedAt = time.Now()
	}
}

func (n *NATSEventPublisher) updateMetrics(success bool, latency time.Duration) {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	if !success {
		n.publishMetrics.FailedCount++
		return
	}

	n.publishMetrics.PublishedCount++
	n.publishMetrics.LastPublishedTime = time.Now()

	// Exponential moving average with alpha = 0.1.
	if n.publishMetrics.AverageLatency == 0 {
		n.publishMetrics.AverageLatency = latency
	} else {
		n.publishMetrics.AverageLatency = time.Duration(
			0.9*float64(n.publishMetrics.AverageLatency) + 0.1*float64(latency),
		)
	}
}
