package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	errs "liscraper/pkg/errors"
	"liscraper/pkg/models"
)

const queueColumns = `id, subject_id, priority, status, attempts, last_attempt_at, created_at`

// Enqueue adds a subject to the scraping queue. Duplicate pending items for
// the same subject are collapsed: re-enqueueing bumps priority instead of
// inserting a second row.
func (s *Store) Enqueue(ctx context.Context, subjectID int64, priority int) (*models.QueueItem, error) {
	existing, err := scanQueueItem(s.pool.QueryRow(ctx, `
		SELECT `+queueColumns+` FROM scraping_queue
		WHERE subject_id = $1 AND status = $2`,
		subjectID, models.QueueStatusPending))
	if err == nil {
		if priority > existing.Priority {
			if _, err := s.pool.Exec(ctx, `
				UPDATE scraping_queue SET priority = $2 WHERE id = $1`,
				existing.ID, priority); err != nil {
				return nil, fmt.Errorf("bump queue priority: %w", err)
			}
			existing.Priority = priority
		}
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check pending queue item: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO scraping_queue (subject_id, priority, status)
		VALUES ($1, $2, $3)
		RETURNING `+queueColumns,
		subjectID, priority, models.QueueStatusPending)
	return scanQueueItem(row)
}

// DequeueNext returns the highest-priority pending item, oldest first within
// a priority tier. The read does not mutate the row; the caller transitions
// it with MarkInProgress once work actually starts.
func (s *Store) DequeueNext(ctx context.Context) (*models.QueueItem, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+queueColumns+` FROM scraping_queue
		WHERE status = $1
		ORDER BY priority DESC, created_at ASC
		LIMIT 1`, models.QueueStatusPending)
	item, err := scanQueueItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrQueueEmpty
	}
	return item, err
}

// MarkInProgress transitions an item to in_progress and counts the attempt.
func (s *Store) MarkInProgress(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE scraping_queue
		SET status = $2, attempts = attempts + 1, last_attempt_at = NOW()
		WHERE id = $1`, id, models.QueueStatusInProgress)
	return err
}

// MarkComplete transitions an item to completed.
func (s *Store) MarkComplete(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE scraping_queue SET status = $2 WHERE id = $1`,
		id, models.QueueStatusCompleted)
	return err
}

// MarkFailed transitions an item to failed. Failed items stay in the table
// for inspection and are never retried automatically.
func (s *Store) MarkFailed(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE scraping_queue SET status = $2 WHERE id = $1`,
		id, models.QueueStatusFailed)
	return err
}

// RequeueStale returns in_progress items older than the cutoff to pending.
// Recovers work orphaned by a crash mid-scrape.
func (s *Store) RequeueStale(ctx context.Context, olderThan string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE scraping_queue
		SET status = $1
		WHERE status = $2 AND last_attempt_at < NOW() - $3::interval`,
		models.QueueStatusPending, models.QueueStatusInProgress, olderThan)
	if err != nil {
		return 0, fmt.Errorf("requeue stale items: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Statistics returns per-status counts for the queue.
func (s *Store) Statistics(ctx context.Context) (*models.QueueStatistics, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT status, COUNT(*) FROM scraping_queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("query queue statistics: %w", err)
	}
	defer rows.Close()

	var stats models.QueueStatistics
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan queue statistics: %w", err)
		}
		switch status {
		case models.QueueStatusPending:
			stats.Pending = count
		case models.QueueStatusInProgress:
			stats.InProgress = count
		case models.QueueStatusCompleted:
			stats.Completed = count
		case models.QueueStatusFailed:
			stats.Failed = count
		}
		stats.Total += count
	}
	return &stats, rows.Err()
}

func scanQueueItem(row rowScanner) (*models.QueueItem, error) {
	var item models.QueueItem
	var lastAttempt pgtype.Timestamptz

	err := row.Scan(&item.ID, &item.SubjectID, &item.Priority, &item.Status,
		&item.Attempts, &lastAttempt, &item.CreatedAt)
	if err != nil {
		return nil, err
	}
	if lastAttempt.Valid {
		t := lastAttempt.Time
		item.LastAttemptAt = &t
	}
	return &item, nil
}
