package authcore

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Account is the per-principal record managed through a CredentialStore.
// Lockout state, password history, and the trusted-device set are first-class
// typed fields; stores decide how to persist them. Accounts are never hard
// deleted, deactivation clears Active.
type Account struct {
	ID       string
	Username string
	Email    string
	// TenantID is empty for system-level accounts.
	TenantID string

	PasswordHash      string
	PasswordChangedAt time.Time
	// PasswordHistory holds previous hashes, oldest first, bounded by the
	// configured history size.
	PasswordHistory []string

	FailedLoginAttempts int
	LockedUntil         *time.Time

	TrustedDevices []TrustedDevice

	MaxConcurrentSessions int
	SessionTimeout        time.Duration

	Active             bool
	LastLogin          *time.Time
	LastLoginIP        string
	LastLoginUserAgent string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TrustedDevice records one device fingerprint seen on a successful login.
type TrustedDevice struct {
	Fingerprint string    `json:"fingerprint"`
	Name        string    `json:"name,omitempty"`
	AddedAt     time.Time `json:"added_at"`
	LastUsedAt  time.Time `json:"last_used_at"`
}

// IsLocked reports whether the account is inside a lockout window at now.
// A past LockedUntil means the account is implicitly unlocked; no write is
// required for that transition.
func (a *Account) IsLocked(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

// LockRemaining returns how long the lockout still holds at now, or zero.
func (a *Account) LockRemaining(now time.Time) time.Duration {
	if !a.IsLocked(now) {
		return 0
	}
	return a.LockedUntil.Sub(now)
}

// IsPasswordExpired reports whether the password is older than maxAge.
// maxAge <= 0 disables expiry. A zero PasswordChangedAt counts as expired.
func (a *Account) IsPasswordExpired(now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return false
	}
	if a.PasswordChangedAt.IsZero() {
		return true
	}
	return now.After(a.PasswordChangedAt.Add(maxAge))
}

// PushPasswordHistory appends hash and evicts the oldest entries beyond max.
// Duplicates are not appended twice.
func (a *Account) PushPasswordHistory(hash string, max int) {
	if max <= 0 || hash == "" {
		return
	}
	for _, h := range a.PasswordHistory {
		if h == hash {
			return
		}
	}
	a.PasswordHistory = append(a.PasswordHistory, hash)
	if len(a.PasswordHistory) > max {
		a.PasswordHistory = a.PasswordHistory[len(a.PasswordHistory)-max:]
	}
}

// TouchTrustedDevice records a login from the given fingerprint, updating the
// existing entry or appending a new one. The set is deduplicated by
// fingerprint and capped at max entries; the least recently used entry is
// evicted when full.
func (a *Account) TouchTrustedDevice(fingerprint, name string, now time.Time, max int) {
	if fingerprint == "" {
		return
	}
	for i := range a.TrustedDevices {
		if a.TrustedDevices[i].Fingerprint == fingerprint {
			a.TrustedDevices[i].LastUsedAt = now
			if name != "" {
				a.TrustedDevices[i].Name = name
			}
			return
		}
	}
	if max > 0 && len(a.TrustedDevices) >= max {
		oldest := 0
		for i := range a.TrustedDevices {
			if a.TrustedDevices[i].LastUsedAt.Before(a.TrustedDevices[oldest].LastUsedAt) {
				oldest = i
			}
		}
		a.TrustedDevices = append(a.TrustedDevices[:oldest], a.TrustedDevices[oldest+1:]...)
	}
	a.TrustedDevices = append(a.TrustedDevices, TrustedDevice{
		Fingerprint: fingerprint,
		Name:        name,
		AddedAt:     now,
		LastUsedAt:  now,
	})
}

// RemoveTrustedDevice drops the entry with the given fingerprint.
func (a *Account) RemoveTrustedDevice(fingerprint string) bool {
	for i := range a.TrustedDevices {
		if a.TrustedDevices[i].Fingerprint == fingerprint {
			a.TrustedDevices = append(a.TrustedDevices[:i], a.TrustedDevices[i+1:]...)
			return true
		}
	}
	return false
}

// RecordLogin stores last-login metadata after a successful authentication.
func (a *Account) RecordLogin(ip, userAgent string, now time.Time) {
	t := now
	a.LastLogin = &t
	a.LastLoginIP = ip
	a.LastLoginUserAgent = userAgent
}

// DeviceFingerprint derives a stable device identifier from observable
// connection attributes. It is a tracking key, not a hardware ID.
func DeviceFingerprint(userAgent, ip string) string {
	sum := sha256.Sum256([]byte(userAgent + ":" + ip))
	return hex.EncodeToString(sum[:])[:32]
}
