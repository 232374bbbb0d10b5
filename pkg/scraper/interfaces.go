package scraper

import (
	"context"
	"time"

	"liscraper/pkg/models"
	"liscraper/pkg/storage"
)

// Session is one logged-in browser bound to a single scraper account.
// pkg/linkedin provides the real implementation; tests script fakes.
type Session interface {
	// Login signs the session's account in. Checkpoint and login failures
	// come back as tagged error kinds so the orchestrator can decide
	// whether to flag the account or just rotate past it.
	Login(ctx context.Context) error

	// FetchProfile navigates to the profile and extracts its fields.
	FetchProfile(ctx context.Context, profileURL string) (*models.Profile, error)

	// SnapshotPDF renders the current page to a PDF.
	SnapshotPDF(ctx context.Context) ([]byte, error)

	// AccountEmail identifies the account this session belongs to.
	AccountEmail() string

	Close() error
}

// SessionFactory opens a fresh session for an account. Called once per
// account attempt; the orchestrator closes the session when it rotates.
type SessionFactory func(email, password string) (Session, error)

// Persistence is the slice of the store the orchestrator needs. Implemented
// by internal/store; tests use an in-memory fake mirroring the same
// contract.
type Persistence interface {
	GetSubject(ctx context.Context, id int64) (*models.Subject, error)
	GetSubjectsNeedingUpdate(ctx context.Context, threshold time.Duration, cohort string, limit int) ([]*models.Subject, error)
	UpdateSubjectFields(ctx context.Context, id int64, upd models.SubjectUpdate) error
	ReplaceJobHistory(ctx context.Context, subjectID int64, entries []models.JobEntry) error
	ReplaceEducationHistory(ctx context.Context, subjectID int64, entries []models.EducationEntry) error
	AppendScrapeLog(ctx context.Context, entry *models.ScrapeLogEntry) error

	DequeueNext(ctx context.Context) (*models.QueueItem, error)
	MarkInProgress(ctx context.Context, id int64) error
	MarkComplete(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64) error
}

// PDFStore uploads profile snapshots. Implemented by pkg/storage; nil
// disables snapshots entirely.
type PDFStore interface {
	UploadPDF(ctx context.Context, externalID string, pdf []byte, takenAt time.Time) (*storage.UploadResult, error)
}

// Controller is the between-subjects pause/stop hook. Implemented by
// internal/control; nil means the run can only be interrupted via ctx.
type Controller interface {
	State(ctx context.Context) (paused, stopped bool, err error)
}
