package authcore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/smartsec-cloud/authcore/session"
)

// Login runs the full credential-verification pipeline and, on success, opens
// a session and mints a token pair. Rejections are reported through the
// returned LoginOutcome; a non-nil error means the decision could not be made
// (backend outage) and the attempt is denied.
//
// The pipeline order is fixed: IP rate limit, account lookup, active check,
// lockout check, password verification, password age, breach check. The first
// rejection wins and is audited.
func (s *Service) Login(ctx context.Context, username, plaintext string) (*LoginOutcome, error) {
	if s == nil || s.creds == nil {
		return nil, ErrServiceNotReady
	}

	now := time.Now().UTC()
	ip := clientIPFromContext(ctx)
	userAgent := userAgentFromContext(ctx)

	res, err := s.limiter.CheckAndRecord(ctx, loginRateKey(ip),
		s.config.RateLimit.LoginMaxAttempts, s.config.RateLimit.LoginWindow)
	if err != nil {
		return nil, storeErr(err)
	}
	if !res.Allowed {
		s.metricInc(MetricLoginRateLimited)
		event := newAuditEvent(AuditLoginRateLimited, false, SeverityHigh)
		event.Details = map[string]string{
			"username": username,
			"attempts": strconv.Itoa(res.Attempts),
		}
		s.emitAudit(ctx, event)
		return &LoginOutcome{
			Kind:       OutcomeRateLimited,
			RetryAfter: time.Until(res.ResetAt),
		}, nil
	}

	account, err := s.creds.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			s.metricInc(MetricLoginFailure)
			event := newAuditEvent(AuditLoginFailed, false, SeverityMedium)
			event.Details = map[string]string{"username": username, "reason": "unknown_account"}
			s.emitAudit(ctx, event)
			return &LoginOutcome{Kind: OutcomeInvalidCredentials}, nil
		}
		return nil, storeErr(err)
	}

	if !account.Active {
		s.metricInc(MetricLoginDeactivated)
		event := newAuditEvent(AuditLoginBlocked, false, SeverityMedium)
		event.AccountID = account.ID
		event.Details = map[string]string{"reason": "deactivated"}
		s.emitAudit(ctx, event)
		return &LoginOutcome{Kind: OutcomeAccountDeactivated}, nil
	}

	if account.IsLocked(now) {
		s.metricInc(MetricLoginLocked)
		event := newAuditEvent(AuditLoginBlocked, false, SeverityHigh)
		event.AccountID = account.ID
		event.Details = map[string]string{
			"reason":       "locked",
			"locked_until": account.LockedUntil.UTC().Format(time.RFC3339),
		}
		s.emitAudit(ctx, event)
		return &LoginOutcome{
			Kind:      OutcomeAccountLocked,
			LockedFor: account.LockRemaining(now),
		}, nil
	}

	match, err := s.hasher.Verify(plaintext, account.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify credentials for account %s: %w", account.ID, err)
	}
	if !match {
		return s.failLogin(ctx, account, now)
	}

	if account.IsPasswordExpired(now, s.config.Password.MaxAge) {
		event := newAuditEvent(AuditLoginBlocked, false, SeverityMedium)
		event.AccountID = account.ID
		event.Details = map[string]string{"reason": "password_expired"}
		s.emitAudit(ctx, event)
		return &LoginOutcome{Kind: OutcomePasswordExpired}, nil
	}

	if s.policy.IsCompromised(plaintext) {
		s.metricInc(MetricLoginCompromised)
		event := newAuditEvent(AuditLoginBlocked, false, SeverityHigh)
		event.AccountID = account.ID
		event.Details = map[string]string{"reason": "password_compromised"}
		s.emitAudit(ctx, event)
		return &LoginOutcome{Kind: OutcomePasswordCompromised}, nil
	}

	return s.completeLogin(ctx, account, plaintext, ip, userAgent, now)
}

// failLogin applies the lockout transition for one wrong-password attempt. The
// caller already verified the account is active and not locked.
func (s *Service) failLogin(ctx context.Context, account *Account, now time.Time) (*LoginOutcome, error) {
	lockedFor := s.lockout.RecordFailure(account, now)
	account.UpdatedAt = now
	if err := s.creds.Save(ctx, account); err != nil {
		return nil, storeErr(err)
	}

	s.metricInc(MetricLoginFailure)
	event := newAuditEvent(AuditLoginFailed, false, SeverityMedium)
	event.AccountID = account.ID
	event.Details = map[string]string{
		"reason":          "wrong_password",
		"failed_attempts": strconv.Itoa(account.FailedLoginAttempts),
	}
	s.emitAudit(ctx, event)

	lockEvent := newAuditEvent(AuditAccountLocked, false, SeverityHigh)
	lockEvent.AccountID = account.ID
	lockEvent.Details = map[string]string{
		"failed_attempts": strconv.Itoa(account.FailedLoginAttempts),
		"locked_for":      lockedFor.String(),
	}
	s.emitAudit(ctx, lockEvent)

	return &LoginOutcome{Kind: OutcomeInvalidCredentials}, nil
}

func (s *Service) completeLogin(ctx context.Context, account *Account, plaintext, ip, userAgent string, now time.Time) (*LoginOutcome, error) {
	s.lockout.RecordSuccess(account)
	account.RecordLogin(ip, userAgent, now)

	fingerprint := DeviceFingerprint(userAgent, ip)
	account.TouchTrustedDevice(fingerprint, deviceNameFromContext(ctx), now,
		s.config.Session.TrustedDeviceCap)

	if s.config.Password.RehashOnLogin {
		if stale, err := s.hasher.NeedsRehash(account.PasswordHash); err == nil && stale {
			if rehashed, err := s.hasher.Hash(plaintext); err == nil {
				account.PasswordHash = rehashed
			}
		}
	}

	account.UpdatedAt = now
	if err := s.creds.Save(ctx, account); err != nil {
		return nil, storeErr(err)
	}

	timeout := s.sessionTimeoutFor(account)
	rec := &session.Record{
		ID:           uuid.NewString(),
		AccountID:    account.ID,
		Fingerprint:  fingerprint,
		DeviceName:   deviceNameFromContext(ctx),
		IP:           ip,
		UserAgent:    userAgent,
		CreatedAt:    now,
		ExpiresAt:    now.Add(timeout),
		LastActivity: now,
		Active:       true,
	}

	evicted, err := s.sessions.Create(ctx, rec, s.maxSessionsFor(account))
	if err != nil {
		return nil, storeErr(err)
	}
	for _, victim := range evicted {
		s.metricInc(MetricSessionEvicted)
		event := newAuditEvent(AuditSessionEvicted, true, SeverityLow)
		event.AccountID = account.ID
		event.SessionID = victim
		event.Details = map[string]string{"replaced_by": rec.ID}
		s.emitAudit(ctx, event)
	}

	access, err := s.tokens.MintAccess(account.ID, account.TenantID, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("mint access token: %w", err)
	}
	refresh, err := s.tokens.MintRefresh(account.ID, account.TenantID, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("mint refresh token: %w", err)
	}

	s.metricInc(MetricLoginSuccess)
	s.metricInc(MetricSessionCreated)
	event := newAuditEvent(AuditLoginSuccess, true, SeverityLow)
	event.AccountID = account.ID
	event.SessionID = rec.ID
	event.Details = map[string]string{"fingerprint": fingerprint}
	s.emitAudit(ctx, event)

	return &LoginOutcome{
		Kind: OutcomeAuthenticated,
		Tokens: &TokenPair{
			AccessToken:  access,
			RefreshToken: refresh,
			TokenType:    "bearer",
			ExpiresIn:    int(s.config.JWT.AccessTTL.Seconds()),
			SessionID:    rec.ID,
		},
	}, nil
}

// Register creates a new account after the candidate password clears the
// policy. The store decides username and email uniqueness; a conflict surfaces
// as ErrAccountExists.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*Account, error) {
	if s == nil || s.creds == nil {
		return nil, ErrServiceNotReady
	}
	if input.Username == "" || input.Email == "" {
		return nil, errors.New("username and email are required")
	}

	verdict := s.policy.Validate(input.Password)
	if !verdict.Valid {
		return nil, &PolicyError{
			Score:       verdict.Score,
			Issues:      verdict.Issues,
			Suggestions: verdict.Suggestions,
		}
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	account := &Account{
		ID:                uuid.NewString(),
		Username:          input.Username,
		Email:             input.Email,
		TenantID:          input.TenantID,
		PasswordHash:      hash,
		PasswordChangedAt: now,
		Active:            true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.creds.Create(ctx, account); err != nil {
		if errors.Is(err, ErrAccountExists) {
			return nil, ErrAccountExists
		}
		return nil, storeErr(err)
	}

	event := newAuditEvent(AuditAccountCreated, true, SeverityLow)
	event.AccountID = account.ID
	event.Details = map[string]string{"username": account.Username}
	s.emitAudit(ctx, event)

	return account, nil
}

func loginRateKey(ip string) string {
	if ip == "" {
		ip = "unknown"
	}
	return "login:" + ip
}

func refreshRateKey(ip string) string {
	if ip == "" {
		ip = "unknown"
	}
	return "refresh:" + ip
}
