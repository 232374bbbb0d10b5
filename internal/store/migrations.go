package store

import (
	"context"
	"fmt"
)

// migrations are executed in order on startup. Each statement is idempotent
// so re-running on boot is safe.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS subjects (
		id              BIGSERIAL PRIMARY KEY,
		name            TEXT NOT NULL DEFAULT '',
		cohort          TEXT NOT NULL DEFAULT '',
		external_id     TEXT NOT NULL UNIQUE,
		profile_url     TEXT NOT NULL DEFAULT '',
		profile_id      TEXT NOT NULL DEFAULT '',
		headline        TEXT NOT NULL DEFAULT '',
		location        TEXT NOT NULL DEFAULT '',
		current_company TEXT NOT NULL DEFAULT '',
		current_title   TEXT NOT NULL DEFAULT '',
		contact_email   TEXT NOT NULL DEFAULT '',
		pdf_url         TEXT NOT NULL DEFAULT '',
		last_scraped_at TIMESTAMPTZ,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS job_history (
		id         BIGSERIAL PRIMARY KEY,
		subject_id BIGINT NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
		company    TEXT NOT NULL DEFAULT '',
		title      TEXT NOT NULL DEFAULT '',
		location   TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL DEFAULT '',
		end_date   TEXT NOT NULL DEFAULT '',
		is_current BOOLEAN NOT NULL DEFAULT FALSE
	)`,

	`CREATE TABLE IF NOT EXISTS education_history (
		id          BIGSERIAL PRIMARY KEY,
		subject_id  BIGINT NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
		institution TEXT NOT NULL DEFAULT '',
		degree      TEXT NOT NULL DEFAULT '',
		field       TEXT NOT NULL DEFAULT '',
		start_year  INT NOT NULL DEFAULT 0,
		end_year    INT NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS scraping_queue (
		id              BIGSERIAL PRIMARY KEY,
		subject_id      BIGINT NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
		priority        INT NOT NULL DEFAULT 0,
		status          TEXT NOT NULL DEFAULT 'pending',
		attempts        INT NOT NULL DEFAULT 0,
		last_attempt_at TIMESTAMPTZ,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_scraping_queue_dequeue
		ON scraping_queue (status, priority DESC, created_at ASC)`,

	`CREATE TABLE IF NOT EXISTS scraping_logs (
		id               BIGSERIAL PRIMARY KEY,
		subject_id       BIGINT NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
		profile_url      TEXT NOT NULL DEFAULT '',
		account_email    TEXT NOT NULL DEFAULT '',
		status           TEXT NOT NULL,
		error_message    TEXT NOT NULL DEFAULT '',
		pdf_stored       BOOLEAN NOT NULL DEFAULT FALSE,
		duration_seconds INT NOT NULL DEFAULT 0,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS account_usage (
		id            BIGSERIAL PRIMARY KEY,
		account_email TEXT NOT NULL,
		day           DATE NOT NULL,
		scraped_count INT NOT NULL DEFAULT 0,
		is_flagged    BOOLEAN NOT NULL DEFAULT FALSE,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (account_email, day)
	)`,
}

// Migrate applies the schema. Safe to call on every startup.
func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("exec migration %d: %w", i, err)
		}
	}
	return nil
}
