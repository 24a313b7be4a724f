package authcore

import (
	"context"
	"time"

	"github.com/smartsec-cloud/authcore/session"
)

// CredentialStore is the account-persistence interface callers must implement
// to integrate authcore with their user database. Save is last-write-wins on
// the whole record; concurrent failure-count updates may lose increments, the
// IP rate limiter is the hard backstop against brute force.
type CredentialStore interface {
	GetByUsername(ctx context.Context, username string) (*Account, error)
	GetByID(ctx context.Context, id string) (*Account, error)
	Create(ctx context.Context, account *Account) error
	Save(ctx context.Context, account *Account) error
}

// SessionStore persists session records. Create must atomically deactivate
// the oldest active sessions of the account when the active count is at or
// above maxActive, then register the new record (eviction, not rejection).
type SessionStore interface {
	Create(ctx context.Context, rec *session.Record, maxActive int) (evicted []string, err error)
	Get(ctx context.Context, sessionID string) (*session.Record, error)
	Touch(ctx context.Context, sessionID string, at time.Time) error
	Deactivate(ctx context.Context, sessionID string) (bool, error)
	DeactivateAll(ctx context.Context, accountID string) (int, error)
	ListActive(ctx context.Context, accountID string) ([]session.Record, error)
}

// OutcomeKind tags a LoginOutcome. Every rejected kind maps to exactly one
// remedial action; InvalidCredentials deliberately covers both unknown-user
// and wrong-password.
type OutcomeKind uint8

const (
	// OutcomeAuthenticated means the login completed and Tokens is populated.
	OutcomeAuthenticated OutcomeKind = iota
	// OutcomeInvalidCredentials is terminal for this attempt.
	OutcomeInvalidCredentials
	// OutcomeRateLimited is retryable after RetryAfter.
	OutcomeRateLimited
	// OutcomeAccountLocked is retryable after LockedFor.
	OutcomeAccountLocked
	// OutcomeAccountDeactivated requires operator action.
	OutcomeAccountDeactivated
	// OutcomePasswordExpired requires a password change before login.
	OutcomePasswordExpired
	// OutcomePasswordCompromised requires a password change before login.
	OutcomePasswordCompromised
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAuthenticated:
		return "authenticated"
	case OutcomeInvalidCredentials:
		return "invalid_credentials"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeAccountLocked:
		return "account_locked"
	case OutcomeAccountDeactivated:
		return "account_deactivated"
	case OutcomePasswordExpired:
		return "password_expired"
	case OutcomePasswordCompromised:
		return "password_compromised"
	}
	return "unknown"
}

// LoginOutcome is the tagged result of Service.Login. Exactly one of the
// kind-specific fields is meaningful, selected by Kind.
type LoginOutcome struct {
	Kind OutcomeKind

	// Tokens is set when Kind == OutcomeAuthenticated.
	Tokens *TokenPair
	// RetryAfter is set when Kind == OutcomeRateLimited.
	RetryAfter time.Duration
	// LockedFor is the remaining lockout when Kind == OutcomeAccountLocked.
	LockedFor time.Duration
}

// TokenPair is the credential material minted for an authenticated session.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int
	SessionID    string
}

// SessionInfo is the caller-safe view of an active session. It never carries
// token material.
type SessionInfo struct {
	SessionID    string
	AccountID    string
	DeviceName   string
	Fingerprint  string
	IP           string
	UserAgent    string
	CreatedAt    time.Time
	LastActivity time.Time
	ExpiresAt    time.Time
}

// RegisterInput is the input for Service.Register.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	TenantID string
}
