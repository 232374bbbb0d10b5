package account

import (
	"context"
	"sync"
	"time"

	"liscraper/pkg/auth"
	"liscraper/pkg/errors"
	"liscraper/pkg/logger"
	"liscraper/pkg/models"
)

// UsageStore persists per-account daily usage so counts and flags survive
// restarts. Rows are keyed by (account email, UTC day).
type UsageStore interface {
	// GetUsage returns the usage row for the account on the given UTC day,
	// or nil when no row exists yet.
	GetUsage(ctx context.Context, email string, day time.Time) (*models.UsageRecord, error)

	// UpsertUsage increments the account's count for the day and optionally
	// sets the flagged marker. A nil flagged leaves the stored value alone.
	UpsertUsage(ctx context.Context, email string, day time.Time, incrementBy int, flagged *bool) error
}

// Manager owns the account pool and hands out accounts in round-robin
// order, skipping members that hit their daily limit or were flagged.
//
// The manager is safe for concurrent use; the scheduler's midnight reset
// runs on a separate goroutine from the scraping loop.
type Manager struct {
	mu       sync.Mutex
	accounts []*Account
	// cursor is the index of the most recently selected account. Selection
	// advances past it first, so consecutive picks walk the pool in order.
	cursor int

	store UsageStore
	log   logger.Logger
	now   func() time.Time
}

// NewManager builds a pool from the credential sequence. Every account
// starts the day with a zero count and the shared daily limit.
func NewManager(creds []auth.Credential, dailyLimit int, store UsageStore) (*Manager, error) {
	if len(creds) == 0 {
		return nil, errors.ErrNoAccountsConfigured
	}

	accounts := make([]*Account, len(creds))
	for i, c := range creds {
		accounts[i] = &Account{
			Email:      c.Email,
			Password:   c.Password,
			DailyLimit: dailyLimit,
		}
	}

	return &Manager{
		accounts: accounts,
		cursor:   len(accounts) - 1, // first selection lands on index 0
		store:    store,
		log:      logger.GetLogger(),
		now:      time.Now,
	}, nil
}

// WithClock overrides the manager's clock. Tests only.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// today returns the current UTC day truncated to midnight.
func (m *Manager) today() time.Time {
	return m.now().UTC().Truncate(24 * time.Hour)
}

// Rehydrate loads today's durable usage rows into the in-memory pool so a
// restart does not grant accounts a fresh budget. Store failures degrade to
// fresh counters with a warning; the scraper can still run.
func (m *Manager) Rehydrate(ctx context.Context) {
	if m.store == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	day := m.today()
	for _, acc := range m.accounts {
		rec, err := m.store.GetUsage(ctx, acc.Email, day)
		if err != nil {
			m.log.WithError(err).WithField("account", acc.Email).
				Warn("Could not load usage history, starting with fresh counters")
			continue
		}
		if rec == nil {
			continue
		}
		acc.UsedToday = rec.ScrapedCount
		acc.Flagged = rec.IsFlagged
	}
}

// GetNextAccount returns the next available account in rotation order and
// stamps its last-used time. Selection alone does not consume budget; usage
// is recorded via IncrementUsage once a scrape actually succeeds.
//
// Returns ErrAllAccountsExhausted when no account can serve another scrape.
func (m *Manager) GetNextAccount() (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.accounts)
	for i := 0; i < n; i++ {
		m.cursor = (m.cursor + 1) % n
		acc := m.accounts[m.cursor]
		if acc.Available() {
			acc.LastUsedAt = m.now()
			return acc, nil
		}
	}

	return nil, errors.ErrAllAccountsExhausted
}

// IncrementUsage records one successful scrape for the account, in memory
// and durably. Called only after a confirmed success so failed attempts do
// not burn budget.
func (m *Manager) IncrementUsage(ctx context.Context, email string) error {
	m.mu.Lock()
	if acc := m.find(email); acc != nil {
		acc.UsedToday++
	}
	m.mu.Unlock()

	if m.store == nil {
		return nil
	}
	if err := m.store.UpsertUsage(ctx, email, m.today(), 1, nil); err != nil {
		m.log.WithError(err).WithField("account", email).
			Warn("Failed to persist usage increment")
		return err
	}
	return nil
}

// MarkExhausted takes the account out of rotation for the rest of the day
// without flagging it. Used when a session dies in a way that is not the
// account's fault but makes it unusable until tomorrow.
func (m *Manager) MarkExhausted(email string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if acc := m.find(email); acc != nil {
		acc.UsedToday = acc.DailyLimit
	}
}

// MarkFlagged removes the account from rotation and records the flag
// durably. Flags are how checkpoint hits are remembered across restarts;
// the durable row is never cleared, only the in-memory copy resets at
// midnight.
func (m *Manager) MarkFlagged(ctx context.Context, email string) error {
	m.mu.Lock()
	if acc := m.find(email); acc != nil {
		acc.Flagged = true
	}
	m.mu.Unlock()

	if m.store == nil {
		return nil
	}
	flagged := true
	if err := m.store.UpsertUsage(ctx, email, m.today(), 0, &flagged); err != nil {
		m.log.WithError(err).WithField("account", email).
			Warn("Failed to persist account flag")
		return err
	}
	return nil
}

// ResetDailyCounters clears in-memory counts and flags for the new day. The
// durable usage rows are left untouched; they are the audit trail of what
// each account did on which day.
func (m *Manager) ResetDailyCounters() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, acc := range m.accounts {
		acc.UsedToday = 0
		acc.Flagged = false
	}

	m.log.WithField("accounts", len(m.accounts)).Info("Daily account counters reset")
}

// TotalAvailableCapacity returns how many more scrapes the pool can serve
// today across all available accounts.
func (m *Manager) TotalAvailableCapacity() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for _, acc := range m.accounts {
		total += acc.Remaining()
	}
	return total
}

// UsageStats returns a snapshot of every pool member, in pool order.
func (m *Manager) UsageStats() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := make([]Snapshot, len(m.accounts))
	for i, acc := range m.accounts {
		stats[i] = Snapshot{
			Email:      acc.Email,
			UsedToday:  acc.UsedToday,
			DailyLimit: acc.DailyLimit,
			Flagged:    acc.Flagged,
			Available:  acc.Available(),
			LastUsedAt: acc.LastUsedAt,
		}
	}
	return stats
}

// Size returns the number of accounts in the pool, available or not.
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts)
}

// find returns the pool member with the given email. Caller holds the lock.
func (m *Manager) find(email string) *Account {
	for _, acc := range m.accounts {
		if acc.Email == email {
			return acc
		}
	}
	return nil
}
