package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"liscraper/pkg/models"
)

// GetUsage returns the usage row for the account on the given UTC day, or
// nil when no row exists.
func (s *Store) GetUsage(ctx context.Context, email string, day time.Time) (*models.UsageRecord, error) {
	var rec models.UsageRecord
	err := s.pool.QueryRow(ctx, `
		SELECT id, account_email, day, scraped_count, is_flagged, created_at, updated_at
		FROM account_usage
		WHERE account_email = $1 AND day = $2`,
		email, day).Scan(&rec.ID, &rec.AccountEmail, &rec.Day, &rec.ScrapedCount,
		&rec.IsFlagged, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query account usage: %w", err)
	}
	return &rec, nil
}

// UpsertUsage increments the account's daily count and optionally sets the
// flagged marker. The flag only ever goes from false to true here; rows are
// the permanent audit trail and the daily reset never touches them.
func (s *Store) UpsertUsage(ctx context.Context, email string, day time.Time, incrementBy int, flagged *bool) error {
	setFlag := false
	if flagged != nil {
		setFlag = *flagged
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO account_usage (account_email, day, scraped_count, is_flagged)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_email, day) DO UPDATE
		SET scraped_count = account_usage.scraped_count + EXCLUDED.scraped_count,
		    is_flagged = account_usage.is_flagged OR EXCLUDED.is_flagged,
		    updated_at = NOW()`,
		email, day, incrementBy, setFlag)
	if err != nil {
		return fmt.Errorf("upsert account usage: %w", err)
	}
	return nil
}

// UsageHistory returns all usage rows for an account, newest day first.
func (s *Store) UsageHistory(ctx context.Context, email string, limit int) ([]models.UsageRecord, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, account_email, day, scraped_count, is_flagged, created_at, updated_at
		FROM account_usage
		WHERE account_email = $1
		ORDER BY day DESC
		LIMIT $2`, email, limit)
	if err != nil {
		return nil, fmt.Errorf("query usage history: %w", err)
	}
	defer rows.Close()

	var records []models.UsageRecord
	for rows.Next() {
		var rec models.UsageRecord
		if err := rows.Scan(&rec.ID, &rec.AccountEmail, &rec.Day, &rec.ScrapedCount,
			&rec.IsFlagged, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan usage history: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
