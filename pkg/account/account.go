// Package account manages the pool of scraper accounts: round-robin
// rotation, daily usage limits, and checkpoint flagging.
package account

import (
	"time"
)

// Account is one pool member's in-memory rotation state. Durable usage rows
// live in the UsageStore; this struct is the working copy for the current
// UTC day.
type Account struct {
	Email      string
	Password   string
	UsedToday  int
	DailyLimit int
	Flagged    bool
	LastUsedAt time.Time
}

// Available reports whether the account can serve another scrape today.
func (a *Account) Available() bool {
	return !a.Flagged && a.UsedToday < a.DailyLimit
}

// Remaining returns how many scrapes the account has left today.
func (a *Account) Remaining() int {
	if a.Flagged {
		return 0
	}
	if r := a.DailyLimit - a.UsedToday; r > 0 {
		return r
	}
	return 0
}

// Snapshot is a read-only copy of an account's state for reporting.
type Snapshot struct {
	Email      string
	UsedToday  int
	DailyLimit int
	Flagged    bool
	Available  bool
	LastUsedAt time.Time
}
