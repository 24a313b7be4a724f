package session

import "time"

// Record is one issued session. Times are UTC; Active is cleared on logout,
// revocation, expiry detection, or eviction, never by deletion.
type Record struct {
	ID          string
	AccountID   string
	Fingerprint string
	DeviceName  string
	IP          string
	UserAgent   string

	CreatedAt    time.Time
	ExpiresAt    time.Time
	LastActivity time.Time

	Active bool
}

// Expired reports whether the record's absolute expiry has passed.
func (r *Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// Live reports whether the record is usable at now: active and not expired.
func (r *Record) Live(now time.Time) bool {
	return r.Active && !r.Expired(now)
}
