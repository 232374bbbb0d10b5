package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a scrape error. The orchestrator branches on kinds rather
// than matching substrings of error text.
type Kind string

const (
	// KindCheckpoint marks a site-side anti-automation interstitial. Never
	// retried on the same account; the account gets flagged and rotated out.
	KindCheckpoint Kind = "checkpoint"
	// KindTransient marks timeouts and generic navigation failures, retried
	// in place up to the configured budget.
	KindTransient Kind = "transient"
	// KindLogin marks a credential rejection. The next account is tried; no
	// flag, no quota charge.
	KindLogin Kind = "login"
	// KindStorage marks an object-storage upload failure. Warning level,
	// never rolls back an already-committed subject update.
	KindStorage Kind = "storage"
	// KindFatal marks errors that end processing of the current subject.
	KindFatal Kind = "fatal"
)

// Error is a classified scrape error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Checkpoint creates a checkpoint-detected error.
func Checkpoint(message string) *Error {
	return New(KindCheckpoint, message)
}

// Transient creates a retryable navigation error.
func Transient(message string, err error) *Error {
	return Wrap(KindTransient, message, err)
}

// Login creates a credential-rejection error.
func Login(message string) *Error {
	return New(KindLogin, message)
}

// KindOf returns the kind of err, or KindFatal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindFatal
}

// IsCheckpoint reports whether err is a checkpoint detection.
func IsCheckpoint(err error) bool {
	return KindOf(err) == KindCheckpoint
}

// IsTransient reports whether err should be retried in place.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}

// IsLogin reports whether err is a credential rejection.
func IsLogin(err error) bool {
	return KindOf(err) == KindLogin
}

// IsRetryable reports whether an error kind folds into the navigation-retry
// budget. Checkpoints are deliberately excluded: retrying through an
// interstitial only amplifies the abuse signal.
func IsRetryable(kind Kind) bool {
	return kind == KindTransient
}

// Sentinel errors surfaced outside the per-subject loop.
var (
	// ErrNoAccountsConfigured is fatal at startup.
	ErrNoAccountsConfigured = errors.New("no scraper accounts configured: set LINKEDIN_EMAIL_1, LINKEDIN_PASSWORD_1, ...")
	// ErrAllAccountsExhausted ends processing of one subject; the batch continues.
	ErrAllAccountsExhausted = errors.New("all accounts exhausted")
	// ErrQueueEmpty ends a queue-based run normally.
	ErrQueueEmpty = errors.New("scraping queue is empty")
)
