package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"liscraper/pkg/models"
)

// ErrSubjectNotFound is returned when a subject lookup matches no row.
var ErrSubjectNotFound = errors.New("subject not found")

const subjectColumns = `id, name, cohort, external_id, profile_url, profile_id,
	headline, location, current_company, current_title, contact_email, pdf_url,
	last_scraped_at, created_at, updated_at`

// CreateSubject inserts a subject row and returns it with generated fields.
func (s *Store) CreateSubject(ctx context.Context, sub *models.Subject) (*models.Subject, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO subjects (name, cohort, external_id, profile_url, profile_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+subjectColumns,
		sub.Name, sub.Cohort, sub.ExternalID, sub.ProfileURL, sub.ProfileID)
	return scanSubject(row)
}

// GetSubject fetches a subject by id.
func (s *Store) GetSubject(ctx context.Context, id int64) (*models.Subject, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+subjectColumns+` FROM subjects WHERE id = $1`, id)
	sub, err := scanSubject(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSubjectNotFound
	}
	return sub, err
}

// GetSubjectByExternalID fetches a subject by its external identifier.
func (s *Store) GetSubjectByExternalID(ctx context.Context, externalID string) (*models.Subject, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+subjectColumns+` FROM subjects WHERE external_id = $1`, externalID)
	sub, err := scanSubject(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSubjectNotFound
	}
	return sub, err
}

// GetSubjectsNeedingUpdate returns subjects whose last scrape is older than
// the threshold (or who were never scraped), oldest first. A non-empty
// cohort restricts the result; limit <= 0 means no cap.
func (s *Store) GetSubjectsNeedingUpdate(ctx context.Context, threshold time.Duration, cohort string, limit int) ([]*models.Subject, error) {
	cutoff := time.Now().UTC().Add(-threshold)

	query := `SELECT ` + subjectColumns + ` FROM subjects
		WHERE (last_scraped_at IS NULL OR last_scraped_at < $1)`
	args := []any{cutoff}

	if cohort != "" {
		args = append(args, cohort)
		query += fmt.Sprintf(" AND cohort = $%d", len(args))
	}
	query += " ORDER BY last_scraped_at ASC NULLS FIRST, id ASC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query subjects needing update: %w", err)
	}
	defer rows.Close()

	var subjects []*models.Subject
	for rows.Next() {
		sub, err := scanSubject(rows)
		if err != nil {
			return nil, err
		}
		subjects = append(subjects, sub)
	}
	return subjects, rows.Err()
}

// ListSubjects returns subjects newest first. A non-empty cohort restricts
// the result; limit <= 0 means no cap.
func (s *Store) ListSubjects(ctx context.Context, cohort string, limit int) ([]*models.Subject, error) {
	query := `SELECT ` + subjectColumns + ` FROM subjects`
	var args []any

	if cohort != "" {
		args = append(args, cohort)
		query += " WHERE cohort = $1"
	}
	query += " ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	defer rows.Close()

	var subjects []*models.Subject
	for rows.Next() {
		sub, err := scanSubject(rows)
		if err != nil {
			return nil, err
		}
		subjects = append(subjects, sub)
	}
	return subjects, rows.Err()
}

// UpdateSubjectFields applies a partial update, touching only the columns
// whose pointers are non-nil. A no-op update returns without hitting the
// database.
func (s *Store) UpdateSubjectFields(ctx context.Context, id int64, upd models.SubjectUpdate) error {
	if upd.IsEmpty() {
		return nil
	}

	var sets []string
	var args []any
	add := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Headline != nil {
		add("headline", *upd.Headline)
	}
	if upd.Location != nil {
		add("location", *upd.Location)
	}
	if upd.CurrentCompany != nil {
		add("current_company", *upd.CurrentCompany)
	}
	if upd.CurrentTitle != nil {
		add("current_title", *upd.CurrentTitle)
	}
	if upd.ContactEmail != nil {
		add("contact_email", *upd.ContactEmail)
	}
	if upd.PDFURL != nil {
		add("pdf_url", *upd.PDFURL)
	}
	if upd.LastScrapedAt != nil {
		add("last_scraped_at", *upd.LastScrapedAt)
	}
	sets = append(sets, "updated_at = NOW()")

	args = append(args, id)
	query := fmt.Sprintf("UPDATE subjects SET %s WHERE id = $%d",
		strings.Join(sets, ", "), len(args))

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update subject %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSubjectNotFound
	}
	return nil
}

// ReplaceJobHistory swaps the subject's employment history atomically.
func (s *Store) ReplaceJobHistory(ctx context.Context, subjectID int64, entries []models.JobEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM job_history WHERE subject_id = $1`, subjectID); err != nil {
		return fmt.Errorf("clear job history: %w", err)
	}
	for _, e := range entries {
		if _, err := tx.Exec(ctx, `
			INSERT INTO job_history (subject_id, company, title, location, start_date, end_date, is_current)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			subjectID, e.Company, e.Title, e.Location, e.StartDate, e.EndDate, e.IsCurrent); err != nil {
			return fmt.Errorf("insert job history: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// ReplaceEducationHistory swaps the subject's education history atomically.
func (s *Store) ReplaceEducationHistory(ctx context.Context, subjectID int64, entries []models.EducationEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM education_history WHERE subject_id = $1`, subjectID); err != nil {
		return fmt.Errorf("clear education history: %w", err)
	}
	for _, e := range entries {
		if _, err := tx.Exec(ctx, `
			INSERT INTO education_history (subject_id, institution, degree, field, start_year, end_year)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			subjectID, e.Institution, e.Degree, e.Field, e.StartYear, e.EndYear); err != nil {
			return fmt.Errorf("insert education history: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// ListJobHistory returns the stored employment history for a subject.
func (s *Store) ListJobHistory(ctx context.Context, subjectID int64) ([]models.JobEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT company, title, location, start_date, end_date, is_current
		FROM job_history WHERE subject_id = $1 ORDER BY id`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("query job history: %w", err)
	}
	defer rows.Close()

	var entries []models.JobEntry
	for rows.Next() {
		var e models.JobEntry
		if err := rows.Scan(&e.Company, &e.Title, &e.Location, &e.StartDate, &e.EndDate, &e.IsCurrent); err != nil {
			return nil, fmt.Errorf("scan job history: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubject(row rowScanner) (*models.Subject, error) {
	var sub models.Subject
	var lastScraped pgtype.Timestamptz

	err := row.Scan(&sub.ID, &sub.Name, &sub.Cohort, &sub.ExternalID, &sub.ProfileURL,
		&sub.ProfileID, &sub.Headline, &sub.Location, &sub.CurrentCompany,
		&sub.CurrentTitle, &sub.ContactEmail, &sub.PDFURL, &lastScraped,
		&sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lastScraped.Valid {
		t := lastScraped.Time
		sub.LastScrapedAt = &t
	}
	return &sub, nil
}
