// Package dlq retries best-effort side-work the resolution pipeline
// chooses not to fail a request over: synonym reinforcement (support-count
// bumps), and audit/decision record persistence. These writes are
// deliberately non-blocking in the merge saga and orchestrator (step 6 of
// the merge saga is documented as best-effort), so a failure here must be
// retried out of band instead of surfacing to the caller.
package dlq

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Entry represents a dead letter queue entry for one failed side-work
// operation against one entity.
type Entry struct {
	ID           int64
	EntityID     string
	Operation    string
	ErrorMessage string
	ErrorStack   string
	RetryCount   int
	LastRetryAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Metadata     map[string]interface{}
}

// Queue manages failed side-work retry bookkeeping.
type Queue struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewQueue creates a new DLQ manager over a Postgres or SQLite handle
// (either driver works; the statements use only SQL that both accept).
func NewQueue(db *sql.DB) *Queue {
	return &Queue{
		db:     db,
		logger: slog.Default().With("component", "dlq"),
	}
}

// Enqueue adds a failed side-work operation to the DLQ. If the
// (entityID, operation) pair already exists, bumps its retry count
// instead of duplicating it.
func (q *Queue) Enqueue(ctx context.Context, entityID, operation string, err error, metadata map[string]interface{}) error {
	if metadata == nil {
		metadata = make(map[string]interface{})
	}

	metadataJSON, marshalErr := json.Marshal(metadata)
	if marshalErr != nil {
		return fmt.Errorf("failed to marshal metadata: %w", marshalErr)
	}

	errorMsg := err.Error()
	errorStack := fmt.Sprintf("%+v", err)

	_, dbErr := q.db.ExecContext(ctx, `
		INSERT INTO dead_letter_queue (entity_id, operation, error_message, error_stack, retry_count, metadata)
		VALUES ($1, $2, $3, $4, 0, $5)
		ON CONFLICT (entity_id, operation) DO UPDATE
		SET retry_count = dead_letter_queue.retry_count + 1,
		    error_message = $3,
		    error_stack = $4,
		    updated_at = CURRENT_TIMESTAMP,
		    last_retry_at = CURRENT_TIMESTAMP,
		    metadata = $5
	`, entityID, operation, errorMsg, errorStack, metadataJSON)

	if dbErr != nil {
		return fmt.Errorf("failed to enqueue side-work failure to DLQ: %w", dbErr)
	}

	q.logger.Warn("side-work operation enqueued to DLQ",
		"entity_id", entityID,
		"operation", operation,
		"error", errorMsg,
	)

	return nil
}

// GetPendingRetries returns operations for entityID still under
// maxRetries, oldest first.
func (q *Queue) GetPendingRetries(ctx context.Context, entityID string, maxRetries int) ([]Entry, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, entity_id, operation, error_message, error_stack, retry_count, last_retry_at, created_at, updated_at, metadata
		FROM dead_letter_queue
		WHERE entity_id = $1 AND retry_count < $2
		ORDER BY created_at ASC
	`, entityID, maxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to query DLQ: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows, q.logger)
}

// MarkResolved removes an operation from the DLQ after a successful
// retry.
func (q *Queue) MarkResolved(ctx context.Context, entityID, operation string) error {
	result, err := q.db.ExecContext(ctx, `
		DELETE FROM dead_letter_queue
		WHERE entity_id = $1 AND operation = $2
	`, entityID, operation)
	if err != nil {
		return fmt.Errorf("failed to delete DLQ entry: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows > 0 {
		q.logger.Info("side-work operation resolved and removed from DLQ",
			"entity_id", entityID,
			"operation", operation,
		)
	}

	return nil
}

// Stats summarizes DLQ occupancy across all entities.
type Stats struct {
	TotalEntries     int
	RetryableEntries int
	ExhaustedRetries int
}

// exhaustedRetryThreshold marks an entry as no longer worth auto-retrying;
// it still stays in the table for operator inspection via
// GetRecentFailures.
const exhaustedRetryThreshold = 5

// GetStats returns aggregate DLQ statistics.
func (q *Queue) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats

	err := q.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) as total,
			COUNT(*) FILTER (WHERE retry_count >= $1) as exhausted,
			COUNT(*) FILTER (WHERE retry_count < $1) as retryable
		FROM dead_letter_queue
	`, exhaustedRetryThreshold).Scan(&stats.TotalEntries, &stats.ExhaustedRetries, &stats.RetryableEntries)

	if err != nil {
		return nil, fmt.Errorf("failed to get DLQ stats: %w", err)
	}

	return &stats, nil
}

// GetRecentFailures returns the N most recently updated DLQ entries for
// operator review.
func (q *Queue) GetRecentFailures(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, entity_id, operation, error_message, error_stack, retry_count, last_retry_at, created_at, updated_at, metadata
		FROM dead_letter_queue
		ORDER BY updated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent failures: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows, q.logger)
}

// PurgeOld removes DLQ entries older than olderThan, regardless of retry
// state.
func (q *Queue) PurgeOld(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)

	result, err := q.db.ExecContext(ctx, `
		DELETE FROM dead_letter_queue
		WHERE created_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge old DLQ entries: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows > 0 {
		q.logger.Info("purged old DLQ entries", "count", rows, "older_than", olderThan)
	}

	return int(rows), nil
}

func scanEntries(rows *sql.Rows, logger *slog.Logger) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var metadataJSON []byte
		var lastRetryAt sql.NullTime

		err := rows.Scan(&e.ID, &e.EntityID, &e.Operation, &e.ErrorMessage, &e.ErrorStack,
			&e.RetryCount, &lastRetryAt, &e.CreatedAt, &e.UpdatedAt, &metadataJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to scan DLQ entry: %w", err)
		}

		if lastRetryAt.Valid {
			e.LastRetryAt = &lastRetryAt.Time
		}

		e.Metadata = make(map[string]interface{})
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &e.Metadata); err != nil {
				logger.Warn("failed to unmarshal DLQ metadata", "entry_id", e.ID, "error", err)
			}
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}
