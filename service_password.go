package authcore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// ChangePassword rotates the password of the token's account. The current
// password must verify, the candidate must clear the policy, and the candidate
// must not match the current password or any history entry. Every other
// session of the account is ended; the presented one survives.
func (s *Service) ChangePassword(ctx context.Context, accessToken, current, candidate string) error {
	if s == nil || s.creds == nil {
		return ErrServiceNotReady
	}

	account, rec, err := s.ValidateSession(ctx, accessToken)
	if err != nil {
		return err
	}

	if err := s.applyPasswordChange(ctx, account, current, candidate); err != nil {
		return err
	}

	// Other sessions were opened under the old password; they do not survive
	// the rotation.
	records, err := s.sessions.ListActive(ctx, account.ID)
	if err != nil {
		log.Printf("authcore: session sweep after password change failed: %v", err)
		return nil
	}
	for i := range records {
		if records[i].ID == rec.ID {
			continue
		}
		if _, err := s.sessions.Deactivate(ctx, records[i].ID); err != nil {
			log.Printf("authcore: session sweep after password change failed: %v", err)
		}
	}
	return nil
}

// ChangeExpiredPassword rotates the password of an account whose password has
// aged out. It authenticates by credentials rather than by token, since an
// expired password blocks login. The account must be active and not locked.
func (s *Service) ChangeExpiredPassword(ctx context.Context, username, current, candidate string) error {
	if s == nil || s.creds == nil {
		return ErrServiceNotReady
	}

	now := time.Now().UTC()
	account, err := s.creds.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrInvalidCredentials
		}
		return storeErr(err)
	}
	if !account.Active {
		return ErrAccountDeactivated
	}
	if account.IsLocked(now) {
		return ErrAccountLocked
	}

	return s.applyPasswordChange(ctx, account, current, candidate)
}

func (s *Service) applyPasswordChange(ctx context.Context, account *Account, current, candidate string) error {
	match, err := s.hasher.Verify(current, account.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify credentials for account %s: %w", account.ID, err)
	}
	if !match {
		return ErrInvalidCredentials
	}

	verdict := s.policy.Validate(candidate)
	if !verdict.Valid {
		return &PolicyError{
			Score:       verdict.Score,
			Issues:      verdict.Issues,
			Suggestions: verdict.Suggestions,
		}
	}

	// Reuse is checked by re-verification: the stored hashes are salted, so
	// equal plaintexts never produce equal strings.
	reused, err := s.hasher.Verify(candidate, account.PasswordHash)
	if err != nil {
		return fmt.Errorf("password history check for account %s: %w", account.ID, err)
	}
	if reused {
		return ErrPasswordReuse
	}
	for _, old := range account.PasswordHistory {
		reused, err := s.hasher.Verify(candidate, old)
		if err != nil {
			return fmt.Errorf("password history check for account %s: %w", account.ID, err)
		}
		if reused {
			return ErrPasswordReuse
		}
	}

	hash, err := s.hasher.Hash(candidate)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	account.PushPasswordHistory(account.PasswordHash, s.config.Password.HistorySize)
	account.PasswordHash = hash
	account.PasswordChangedAt = now
	account.UpdatedAt = now
	if err := s.creds.Save(ctx, account); err != nil {
		return storeErr(err)
	}

	s.metricInc(MetricPasswordChanged)
	event := newAuditEvent(AuditPasswordChanged, true, SeverityLow)
	event.AccountID = account.ID
	s.emitAudit(ctx, event)

	return nil
}
