package repository

import (
	"context"
	"fmt"

	"textchunking/internal/domain/entity"

	"github.com/jackc/pgx/v5/pgxpool"
)

const batchEventsTable = "textchunking.batch_events"

// PostgreSQLBatchEventArchive persists an append-only audit trail of batch
// lifecycle events. It implements outbound.BatchEventHandler; the registry
// itself stays in-memory, the archive only records transitions.
type PostgreSQLBatchEventArchive struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLBatchEventArchive creates a new batch event archive.
func NewPostgreSQLBatchEventArchive(pool *pgxpool.Pool) *PostgreSQLBatchEventArchive {
	return &PostgreSQLBatchEventArchive{
		pool: pool,
	}
}

// Name identifies the archive in dispatcher logs.
func (r *PostgreSQLBatchEventArchive) Name() string {
	return "batch_event_archive"
}

// HandleBatchEvent appends one lifecycle event row.
func (r *PostgreSQLBatchEventArchive) HandleBatchEvent(ctx context.Context, event entity.BatchEvent) error {
	query := `
		INSERT INTO ` + batchEventsTable + ` (
			message_id, event_type, batch_id, status,
			total_chunks, processed_chunks, completed_chunks, failed_chunks,
			error_message, occurred_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)`

	progress := event.Progress
	_, err := r.pool.Exec(ctx, query,
		event.MessageID,
		string(event.Type),
		event.BatchID,
		progress.Status().String(),
		progress.TotalChunks(),
		progress.ProcessedChunks(),
		progress.CompletedCount(),
		progress.FailedCount(),
		progress.ErrorMessage(),
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to archive batch event: %w", err)
	}
	return nil
}

// CountEventsForBatch returns how many events were archived for a batch.
func (r *PostgreSQLBatchEventArchive) CountEventsForBatch(ctx context.Context, batchID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM ` + batchEventsTable + ` WHERE batch_id = $1`
	if err := r.pool.QueryRow(ctx, query, batchID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count archived events: %w", err)
	}
	return count, nil
}
