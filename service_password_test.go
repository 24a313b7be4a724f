package authcore

import (
	"context"
	"errors"
	"testing"
	"time"
)

const rotatedPassword = "N3w!SecretXkQ#77"

func TestChangePasswordSuccess(t *testing.T) {
	store := newMockCredentialStore()
	svc := newTestService(t, testConfig(), store)
	acct := seedAccount(t, svc, store, "alice", testPassword)
	tokens := authenticate(t, svc, "alice", testPassword)

	ctx := loginCtx("10.0.0.1", "ua")
	if err := svc.ChangePassword(ctx, tokens.AccessToken, testPassword, rotatedPassword); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	saved := store.get(acct.ID)
	if len(saved.PasswordHistory) != 1 {
		t.Fatalf("expected old hash in history, got %d entries", len(saved.PasswordHistory))
	}
	if !saved.PasswordChangedAt.After(acct.PasswordChangedAt.Add(-time.Second)) {
		t.Fatal("expected PasswordChangedAt to move forward")
	}

	// Old password out, new password in.
	outcome, err := svc.Login(ctx, "alice", testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if outcome.Kind != OutcomeInvalidCredentials {
		t.Fatalf("old password should be rejected, got %s", outcome.Kind)
	}
	outcome, err = svc.Login(ctx, "alice", rotatedPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if outcome.Kind != OutcomeAuthenticated {
		t.Fatalf("new password should authenticate, got %s", outcome.Kind)
	}
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	store := newMockCredentialStore()
	svc := newTestService(t, testConfig(), store)
	seedAccount(t, svc, store, "alice", testPassword)
	tokens := authenticate(t, svc, "alice", testPassword)

	err := svc.ChangePassword(loginCtx("10.0.0.1", "ua"), tokens.AccessToken,
		"Wr0ng!Passphrase", rotatedPassword)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestChangePasswordPolicyRejection(t *testing.T) {
	store := newMockCredentialStore()
	svc := newTestService(t, testConfig(), store)
	seedAccount(t, svc, store, "alice", testPassword)
	tokens := authenticate(t, svc, "alice", testPassword)

	err := svc.ChangePassword(loginCtx("10.0.0.1", "ua"), tokens.AccessToken,
		testPassword, "weak")
	var policyErr *PolicyError
	if !errors.As(err, &policyErr) {
		t.Fatalf("expected PolicyError, got %v", err)
	}
}

func TestChangePasswordRejectsCurrentReuse(t *testing.T) {
	store := newMockCredentialStore()
	svc := newTestService(t, testConfig(), store)
	seedAccount(t, svc, store, "alice", testPassword)
	tokens := authenticate(t, svc, "alice", testPassword)

	err := svc.ChangePassword(loginCtx("10.0.0.1", "ua"), tokens.AccessToken,
		testPassword, testPassword)
	if !errors.Is(err, ErrPasswordReuse) {
		t.Fatalf("expected ErrPasswordReuse, got %v", err)
	}
}

func TestChangePasswordRejectsHistoryReuse(t *testing.T) {
	store := newMockCredentialStore()
	svc := newTestService(t, testConfig(), store)
	seedAccount(t, svc, store, "alice", testPassword)
	tokens := authenticate(t, svc, "alice", testPassword)

	ctx := loginCtx("10.0.0.1", "ua")
	if err := svc.ChangePassword(ctx, tokens.AccessToken, testPassword, rotatedPassword); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	// Rotating back to the original must hit the history check, even though
	// its stored hash carries a different salt.
	err := svc.ChangePassword(ctx, tokens.AccessToken, rotatedPassword, testPassword)
	if !errors.Is(err, ErrPasswordReuse) {
		t.Fatalf("expected ErrPasswordReuse from history, got %v", err)
	}
}

func TestChangePasswordHistoryIsBounded(t *testing.T) {
	cfg := testConfig()
	cfg.Password.HistorySize = 2
	store := newMockCredentialStore()
	svc := newTestService(t, cfg, store)
	acct := seedAccount(t, svc, store, "alice", testPassword)
	tokens := authenticate(t, svc, "alice", testPassword)

	ctx := loginCtx("10.0.0.1", "ua")
	passwords := []string{rotatedPassword, "An0ther!SecretQ#81", "Th1rd!SecretWv#92"}
	current := testPassword
	for _, next := range passwords {
		if err := svc.ChangePassword(ctx, tokens.AccessToken, current, next); err != nil {
			t.Fatalf("rotate to %q: %v", next, err)
		}
		current = next
	}

	saved := store.get(acct.ID)
	if len(saved.PasswordHistory) != 2 {
		t.Fatalf("expected history capped at 2, got %d", len(saved.PasswordHistory))
	}

	// The original password fell out of the bounded history and is usable
	// again.
	if err := svc.ChangePassword(ctx, tokens.AccessToken, current, testPassword); err != nil {
		t.Fatalf("expected evicted password to be accepted, got %v", err)
	}
}

func TestChangePasswordEndsOtherSessions(t *testing.T) {
	cfg := testConfig()
	cfg.Session.DefaultMaxConcurrent = 5
	store := newMockCredentialStore()
	svc := newTestService(t, cfg, store)
	acct := seedAccount(t, svc, store, "alice", testPassword)

	other := authenticate(t, svc, "alice", testPassword)
	time.Sleep(2 * time.Millisecond)
	current := authenticate(t, svc, "alice", testPassword)

	ctx := loginCtx("10.0.0.1", "ua")
	if err := svc.ChangePassword(ctx, current.AccessToken, testPassword, rotatedPassword); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	active, err := svc.sessions.ListActive(context.Background(), acct.ID)
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(active) != 1 || active[0].ID != current.SessionID {
		t.Fatalf("expected only the presented session to survive, got %d", len(active))
	}

	if _, _, err := svc.ValidateSession(ctx, other.AccessToken); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected other session ended, got %v", err)
	}
}

func TestChangeExpiredPasswordFlow(t *testing.T) {
	store := newMockCredentialStore()
	svc := newTestService(t, testConfig(), store)
	acct := seedAccount(t, svc, store, "alice", testPassword)
	acct.PasswordChangedAt = time.Now().Add(-120 * 24 * time.Hour)
	store.put(acct)

	ctx := loginCtx("10.0.0.1", "ua")
	outcome, err := svc.Login(ctx, "alice", testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if outcome.Kind != OutcomePasswordExpired {
		t.Fatalf("expected expired, got %s", outcome.Kind)
	}

	if err := svc.ChangeExpiredPassword(ctx, "alice", testPassword, rotatedPassword); err != nil {
		t.Fatalf("ChangeExpiredPassword failed: %v", err)
	}

	outcome, err = svc.Login(ctx, "alice", rotatedPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if outcome.Kind != OutcomeAuthenticated {
		t.Fatalf("expected authenticated after rotation, got %s", outcome.Kind)
	}
}
