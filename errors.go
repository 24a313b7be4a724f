package authcore

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrServiceNotReady is returned when a Service method is called before
	// Build completed or after Close.
	ErrServiceNotReady = errors.New("service not ready")
	// ErrInvalidCredentials covers both unknown-user and wrong-password
	// failures. Callers must not be able to tell the two apart.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountNotFound is returned by CredentialStore implementations when
	// no account matches. The Service maps it to ErrInvalidCredentials before
	// anything user-visible happens.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists is returned by Register when the username or email is
	// already taken.
	ErrAccountExists = errors.New("account already exists")
	// ErrAccountLocked indicates the account is inside a lockout window.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountDeactivated indicates the account was soft-deactivated and
	// requires operator action.
	ErrAccountDeactivated = errors.New("account deactivated")
	// ErrLoginRateLimited indicates the per-IP sliding window is exhausted.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrRefreshRateLimited indicates the per-IP refresh window is exhausted.
	ErrRefreshRateLimited = errors.New("refresh rate limited")
	// ErrPasswordExpired indicates the password exceeded its maximum age and
	// must be changed before login completes.
	ErrPasswordExpired = errors.New("password expired")
	// ErrPasswordCompromised indicates the supplied password appears in the
	// known-breached set.
	ErrPasswordCompromised = errors.New("password compromised")
	// ErrPasswordReuse indicates the new password matches one of the bounded
	// password-history entries.
	ErrPasswordReuse = errors.New("password found in history")
	// ErrUnauthenticated is the single outcome for every session-validation
	// failure: bad signature, expired token, unknown session, inactive
	// session, expired session. The cause is never exposed.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrSessionNotFound is returned by SessionStore implementations for
	// unknown session IDs.
	ErrSessionNotFound = errors.New("session not found")
	// ErrStoreUnavailable wraps backend outages. The Service fails closed on
	// it during security gates.
	ErrStoreUnavailable = errors.New("backing store unavailable")
)

// PolicyError carries the structured remediation feedback produced by the
// password policy when a candidate password is rejected.
type PolicyError struct {
	Score       int
	Issues      []string
	Suggestions []string
}

func (e *PolicyError) Error() string {
	if len(e.Issues) == 0 {
		return "password rejected by policy"
	}
	return "password rejected by policy: " + strings.Join(e.Issues, "; ")
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
