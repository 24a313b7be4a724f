package authcore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/smartsec-cloud/authcore/jwt"
	"github.com/smartsec-cloud/authcore/session"
)

// ValidateSession authenticates a request by its access token. It verifies
// the token, loads the referenced session, checks liveness, slides the
// activity timestamp, and confirms the account is still active. Every
// rejection collapses to ErrUnauthenticated; only backend outages surface as
// ErrStoreUnavailable.
func (s *Service) ValidateSession(ctx context.Context, accessToken string) (*Account, *session.Record, error) {
	if s == nil || s.creds == nil {
		return nil, nil, ErrServiceNotReady
	}

	now := time.Now().UTC()

	claims, err := s.tokens.Verify(accessToken, jwt.TypeAccess)
	if err != nil {
		s.metricInc(MetricValidateFailure)
		return nil, nil, ErrUnauthenticated
	}

	rec, err := s.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if isSessionMissing(err) {
			s.metricInc(MetricValidateFailure)
			return nil, nil, ErrUnauthenticated
		}
		return nil, nil, storeErr(err)
	}
	if !rec.Live(now) || rec.AccountID != claims.AccountID {
		s.metricInc(MetricValidateFailure)
		return nil, nil, ErrUnauthenticated
	}

	// Touch is best effort; a lost activity update costs nothing until the
	// absolute expiry, which Touch never extends.
	if err := s.sessions.Touch(ctx, rec.ID, now); err != nil {
		log.Printf("authcore: session touch failed: %v", err)
	} else {
		rec.LastActivity = now
	}

	account, err := s.creds.GetByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			s.metricInc(MetricValidateFailure)
			return nil, nil, ErrUnauthenticated
		}
		return nil, nil, storeErr(err)
	}
	if !account.Active {
		s.metricInc(MetricValidateFailure)
		return nil, nil, ErrUnauthenticated
	}

	s.metricInc(MetricValidateSuccess)
	return account, rec, nil
}

// RefreshAccess exchanges a refresh token for a fresh token pair bound to the
// same session. Both tokens rotate; the session record and its expiry are
// unchanged apart from the activity timestamp. Invalid tokens count toward
// the per-IP refresh window.
func (s *Service) RefreshAccess(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if s == nil || s.creds == nil {
		return nil, ErrServiceNotReady
	}

	now := time.Now().UTC()
	ip := clientIPFromContext(ctx)

	attempts, err := s.limiter.Attempts(ctx, refreshRateKey(ip), s.config.RateLimit.RefreshWindow)
	if err != nil {
		return nil, storeErr(err)
	}
	if attempts >= s.config.RateLimit.RefreshMaxAttempts {
		s.metricInc(MetricRefreshFailure)
		return nil, ErrRefreshRateLimited
	}

	claims, err := s.tokens.Verify(refreshToken, jwt.TypeRefresh)
	if err != nil {
		return nil, s.failRefresh(ctx, ip, "invalid_token")
	}

	rec, err := s.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if isSessionMissing(err) {
			return nil, s.failRefresh(ctx, ip, "unknown_session")
		}
		return nil, storeErr(err)
	}
	if !rec.Live(now) || rec.AccountID != claims.AccountID {
		return nil, s.failRefresh(ctx, ip, "dead_session")
	}

	account, err := s.creds.GetByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, s.failRefresh(ctx, ip, "unknown_account")
		}
		return nil, storeErr(err)
	}
	if !account.Active {
		return nil, s.failRefresh(ctx, ip, "deactivated")
	}
	if account.IsLocked(now) {
		return nil, s.failRefresh(ctx, ip, "locked")
	}

	if err := s.sessions.Touch(ctx, rec.ID, now); err != nil {
		log.Printf("authcore: session touch failed: %v", err)
	}

	access, err := s.tokens.MintAccess(account.ID, account.TenantID, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("mint access token: %w", err)
	}
	refresh, err := s.tokens.MintRefresh(account.ID, account.TenantID, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("mint refresh token: %w", err)
	}

	s.metricInc(MetricRefreshSuccess)
	event := newAuditEvent(AuditTokenRefreshed, true, SeverityLow)
	event.AccountID = account.ID
	event.SessionID = rec.ID
	s.emitAudit(ctx, event)

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int(s.config.JWT.AccessTTL.Seconds()),
		SessionID:    rec.ID,
	}, nil
}

// failRefresh records the failed attempt against the IP window and returns the
// uniform rejection.
func (s *Service) failRefresh(ctx context.Context, ip, reason string) error {
	s.metricInc(MetricRefreshFailure)
	if err := s.limiter.RecordFailure(ctx, refreshRateKey(ip), s.config.RateLimit.RefreshWindow); err != nil {
		log.Printf("authcore: refresh failure record failed: %v", err)
	}

	event := newAuditEvent(AuditLoginFailed, false, SeverityMedium)
	event.Details = map[string]string{"stage": "refresh", "reason": reason}
	s.emitAudit(ctx, event)

	return ErrUnauthenticated
}

func isSessionMissing(err error) bool {
	return errors.Is(err, session.ErrNotFound) || errors.Is(err, ErrSessionNotFound)
}
