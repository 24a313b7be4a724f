package authcore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLogoutReportsDeadSessionAsUnknown(t *testing.T) {
	store := newMockCredentialStore()
	svc := newTestService(t, testConfig(), store)
	seedAccount(t, svc, store, "alice", testPassword)
	tokens := authenticate(t, svc, "alice", testPassword)

	ctx := loginCtx("10.0.0.1", "ua")
	if err := svc.Logout(ctx, tokens.AccessToken); err != nil {
		t.Fatalf("first logout: %v", err)
	}
	if err := svc.Logout(ctx, tokens.AccessToken); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("second logout: expected ErrSessionNotFound, got %v", err)
	}
}

func TestLogoutRejectsBadToken(t *testing.T) {
	store := newMockCredentialStore()
	svc := newTestService(t, testConfig(), store)

	err := svc.Logout(loginCtx("10.0.0.1", "ua"), "garbage")
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestLogoutAllEndsEverySession(t *testing.T) {
	cfg := testConfig()
	cfg.Session.DefaultMaxConcurrent = 5
	store := newMockCredentialStore()
	svc := newTestService(t, cfg, store)
	acct := seedAccount(t, svc, store, "alice", testPassword)

	var last *TokenPair
	for i := 0; i < 3; i++ {
		last = authenticate(t, svc, "alice", testPassword)
		time.Sleep(2 * time.Millisecond)
	}

	ctx := loginCtx("10.0.0.1", "ua")
	n, err := svc.LogoutAll(ctx, last.AccessToken)
	if err != nil {
		t.Fatalf("LogoutAll failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 sessions ended, got %d", n)
	}

	active, err := svc.sessions.ListActive(context.Background(), acct.ID)
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active sessions, got %d", len(active))
	}

	if _, _, err := svc.ValidateSession(ctx, last.AccessToken); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected the presented session to be ended too, got %v", err)
	}
}

func TestListSessionsOldestFirstWithoutTokens(t *testing.T) {
	cfg := testConfig()
	cfg.Session.DefaultMaxConcurrent = 5
	store := newMockCredentialStore()
	svc := newTestService(t, cfg, store)
	seedAccount(t, svc, store, "alice", testPassword)

	var ids []string
	var last *TokenPair
	for i := 0; i < 3; i++ {
		last = authenticate(t, svc, "alice", testPassword)
		ids = append(ids, last.SessionID)
		time.Sleep(2 * time.Millisecond)
	}

	infos, err := svc.ListSessions(loginCtx("10.0.0.1", "ua"), last.AccessToken)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(infos))
	}
	for i, info := range infos {
		if info.SessionID != ids[i] {
			t.Fatalf("position %d: got %s want %s", i, info.SessionID, ids[i])
		}
	}
}

func TestRevokeAllSessions(t *testing.T) {
	cfg := testConfig()
	cfg.Session.DefaultMaxConcurrent = 5
	store := newMockCredentialStore()
	svc := newTestService(t, cfg, store)
	acct := seedAccount(t, svc, store, "alice", testPassword)

	tokens := authenticate(t, svc, "alice", testPassword)

	n, err := svc.RevokeAllSessions(context.Background(), acct.ID)
	if err != nil {
		t.Fatalf("RevokeAllSessions failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 session revoked, got %d", n)
	}

	_, _, err = svc.ValidateSession(loginCtx("10.0.0.1", "ua"), tokens.AccessToken)
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated after revocation, got %v", err)
	}
}
