package models

import (
	"fmt"
	"time"
)

// Queue item statuses. An item moves pending -> in_progress -> completed or
// failed; failed items are never re-queued automatically.
const (
	QueueStatusPending    = "pending"
	QueueStatusInProgress = "in_progress"
	QueueStatusCompleted  = "completed"
	QueueStatusFailed     = "failed"
)

// Scrape log statuses. Skipped subjects leave no log row at all, which
// separates "nothing to do" from "tried and failed", so only these two
// values ever reach the status column.
const (
	ScrapeStatusSuccess = "success"
	ScrapeStatusFailed  = "failed"
)

// Subject is one person whose profile is kept up to date by scraping.
type Subject struct {
	ID             int64
	Name           string
	Cohort         string
	ExternalID     string
	ProfileURL     string
	ProfileID      string
	Headline       string
	Location       string
	CurrentCompany string
	CurrentTitle   string
	ContactEmail   string
	PDFURL         string
	LastScrapedAt  *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ResolvedProfileURL returns the full profile URL, building one from the
// profile ID when only the ID is configured. Empty when the subject has no
// profile identifier at all.
func (s *Subject) ResolvedProfileURL() string {
	if s.ProfileURL != "" {
		return s.ProfileURL
	}
	if s.ProfileID != "" {
		return fmt.Sprintf("https://www.linkedin.com/in/%s", s.ProfileID)
	}
	return ""
}

// SubjectUpdate is a partial update of a subject's scraped fields. Nil
// pointers leave the column untouched.
type SubjectUpdate struct {
	Name           *string
	Headline       *string
	Location       *string
	CurrentCompany *string
	CurrentTitle   *string
	ContactEmail   *string
	PDFURL         *string
	LastScrapedAt  *time.Time
}

// IsEmpty reports whether the update would touch no columns.
func (u SubjectUpdate) IsEmpty() bool {
	return u.Name == nil && u.Headline == nil && u.Location == nil &&
		u.CurrentCompany == nil && u.CurrentTitle == nil && u.ContactEmail == nil &&
		u.PDFURL == nil && u.LastScrapedAt == nil
}

// QueueItem is one durable unit of pending scrape work.
type QueueItem struct {
	ID            int64
	SubjectID     int64
	Priority      int
	Status        string
	Attempts      int
	LastAttemptAt *time.Time
	CreatedAt     time.Time
}

// QueueStatistics holds per-status counts for the scraping queue.
type QueueStatistics struct {
	Pending    int64
	InProgress int64
	Completed  int64
	Failed     int64
	Total      int64
}

// UsageRecord is the durable daily usage row for one scraper account. Rows
// are keyed by (account email, UTC day) and are never deleted; they are the
// audit trail the in-memory daily reset deliberately leaves alone.
type UsageRecord struct {
	ID           int64
	AccountEmail string
	Day          time.Time
	ScrapedCount int
	IsFlagged    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ScrapeLogEntry is one append-only log row for an attempted subject.
type ScrapeLogEntry struct {
	ID              int64
	SubjectID       int64
	ProfileURL      string
	AccountEmail    string
	Status          string
	ErrorMessage    string
	PDFStored       bool
	DurationSeconds int
	CreatedAt       time.Time
}

// Profile is the transient result of scraping one profile page. It is never
// persisted as-is; the orchestrator merges it into the subject row and
// replaces the history collections.
type Profile struct {
	Name             string
	Headline         string
	Location         string
	CurrentCompany   string
	CurrentTitle     string
	ContactEmail     string
	JobHistory       []JobEntry
	EducationHistory []EducationEntry
}

// JobEntry is one employment history row.
type JobEntry struct {
	Company   string
	Title     string
	Location  string
	StartDate string
	EndDate   string
	IsCurrent bool
}

// EducationEntry is one education history row.
type EducationEntry struct {
	Institution string
	Degree      string
	Field       string
	StartYear   int
	EndYear     int
}
