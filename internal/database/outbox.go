package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"carrental/internal/models"
)

func (s *queries) AppendOutbox(ctx context.Context, event *models.OutboxEvent) error {
	if event.Status == "" {
		event.Status = models.OutboxPending
	}
	now := s.now()
	query := `INSERT INTO outbox (event_type, booking_id, payload, status, retry_count, created_at)
              VALUES (?, ?, ?, ?, ?, ?)`
	result, err := s.q.ExecContext(ctx, query,
		event.EventType,
		event.BookingID,
		event.Payload,
		event.Status,
		event.RetryCount,
		formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("failed to append outbox event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	event.ID = id
	event.CreatedAt = now
	return nil
}

func (s *queries) GetPendingOutbox(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	query := `SELECT id, event_type, booking_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at
              FROM outbox
              WHERE status IN (?, ?) AND (next_retry_at IS NULL OR next_retry_at <= ?)
              ORDER BY id ASC LIMIT ?`
	rows, err := s.q.QueryContext(ctx, query, models.OutboxPending, models.OutboxRetry, formatTime(s.now()), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending outbox events: %w", err)
	}
	defer rows.Close()

	var events []models.OutboxEvent
	for rows.Next() {
		var (
			e                  models.OutboxEvent
			created            string
			processed, nextTry sql.NullString
		)
		err := rows.Scan(&e.ID, &e.EventType, &e.BookingID, &e.Payload, &e.Status, &e.RetryCount,
			&e.LastError, &created, &processed, &nextTry)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		if e.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if e.ProcessedAt, err = parseNullTime(processed); err != nil {
			return nil, err
		}
		if e.NextRetryAt, err = parseNullTime(nextTry); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *queries) UpdateOutboxStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var lastError sql.NullString
	if errMsg != "" {
		lastError = sql.NullString{String: errMsg, Valid: true}
	}

	var query string
	var args []any
	switch status {
	case models.OutboxRetry:
		query = `UPDATE outbox SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`
		args = []any{status, lastError, formatNullTime(nextRetryAt), id}
	case models.OutboxCompleted, models.OutboxFailed:
		now := s.now()
		query = `UPDATE outbox SET status = ?, last_error = ?, next_retry_at = NULL, processed_at = ? WHERE id = ?`
		args = []any{status, lastError, formatTime(now), id}
	default:
		query = `UPDATE outbox SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []any{status, lastError, formatNullTime(nextRetryAt), id}
	}

	if _, err := s.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update outbox event %d: %w", id, err)
	}
	return nil
}
