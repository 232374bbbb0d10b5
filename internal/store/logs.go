package store

import (
	"context"
	"fmt"

	"liscraper/pkg/models"
)

// AppendScrapeLog adds one append-only log row for an attempted subject.
func (s *Store) AppendScrapeLog(ctx context.Context, entry *models.ScrapeLogEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scraping_logs (subject_id, profile_url, account_email, status, error_message, pdf_stored, duration_seconds)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.SubjectID, entry.ProfileURL, entry.AccountEmail, entry.Status,
		entry.ErrorMessage, entry.PDFStored, entry.DurationSeconds)
	if err != nil {
		return fmt.Errorf("append scrape log: %w", err)
	}
	return nil
}

// RecentScrapeLogs returns the newest log rows, most recent first.
func (s *Store) RecentScrapeLogs(ctx context.Context, limit int) ([]models.ScrapeLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, subject_id, profile_url, account_email, status, error_message, pdf_stored, duration_seconds, created_at
		FROM scraping_logs
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query scrape logs: %w", err)
	}
	defer rows.Close()

	var entries []models.ScrapeLogEntry
	for rows.Next() {
		var e models.ScrapeLogEntry
		if err := rows.Scan(&e.ID, &e.SubjectID, &e.ProfileURL, &e.AccountEmail,
			&e.Status, &e.ErrorMessage, &e.PDFStored, &e.DurationSeconds, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan scrape log: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
