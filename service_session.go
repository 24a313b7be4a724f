package authcore

import (
	"context"
	"strconv"

	"github.com/smartsec-cloud/authcore/jwt"
	"github.com/smartsec-cloud/authcore/session"
)

// Logout ends the session named by the access token. The token must still
// verify; a logout with a dead token is indistinguishable from any other
// authentication failure. A token whose session is already gone or inactive
// yields ErrSessionNotFound so callers can report the token as unknown.
func (s *Service) Logout(ctx context.Context, accessToken string) error {
	if s == nil || s.sessions == nil {
		return ErrServiceNotReady
	}

	claims, err := s.tokens.Verify(accessToken, jwt.TypeAccess)
	if err != nil {
		return ErrUnauthenticated
	}

	wasActive, err := s.sessions.Deactivate(ctx, claims.SessionID)
	if err != nil {
		if isSessionMissing(err) {
			return ErrSessionNotFound
		}
		return storeErr(err)
	}
	if !wasActive {
		return ErrSessionNotFound
	}

	s.metricInc(MetricLogout)
	event := newAuditEvent(AuditLogout, true, SeverityLow)
	event.AccountID = claims.AccountID
	event.SessionID = claims.SessionID
	s.emitAudit(ctx, event)
	return nil
}

// LogoutAll ends every active session of the token's account, including the
// one presented. Returns how many sessions were ended.
func (s *Service) LogoutAll(ctx context.Context, accessToken string) (int, error) {
	if s == nil || s.sessions == nil {
		return 0, ErrServiceNotReady
	}

	claims, err := s.tokens.Verify(accessToken, jwt.TypeAccess)
	if err != nil {
		return 0, ErrUnauthenticated
	}

	n, err := s.sessions.DeactivateAll(ctx, claims.AccountID)
	if err != nil {
		return 0, storeErr(err)
	}

	s.metricInc(MetricLogout)
	event := newAuditEvent(AuditLogoutAll, true, SeverityLow)
	event.AccountID = claims.AccountID
	event.Details = map[string]string{"sessions_ended": strconv.Itoa(n)}
	s.emitAudit(ctx, event)

	return n, nil
}

// ListSessions returns the active sessions of the token's account, oldest
// first, without any token material.
func (s *Service) ListSessions(ctx context.Context, accessToken string) ([]SessionInfo, error) {
	if s == nil || s.sessions == nil {
		return nil, ErrServiceNotReady
	}

	_, rec, err := s.ValidateSession(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	records, err := s.sessions.ListActive(ctx, rec.AccountID)
	if err != nil {
		return nil, storeErr(err)
	}

	out := make([]SessionInfo, 0, len(records))
	for i := range records {
		out = append(out, sessionInfo(&records[i]))
	}
	return out, nil
}

// RevokeAllSessions is the operator-side kill switch: it ends every active
// session of the account without requiring a token. Returns how many sessions
// were ended.
func (s *Service) RevokeAllSessions(ctx context.Context, accountID string) (int, error) {
	if s == nil || s.sessions == nil {
		return 0, ErrServiceNotReady
	}
	if accountID == "" {
		return 0, ErrAccountNotFound
	}

	n, err := s.sessions.DeactivateAll(ctx, accountID)
	if err != nil {
		return 0, storeErr(err)
	}

	event := newAuditEvent(AuditLogoutAll, true, SeverityHigh)
	event.AccountID = accountID
	event.Details = map[string]string{
		"sessions_ended": strconv.Itoa(n),
		"initiator":      "operator",
	}
	s.emitAudit(ctx, event)

	return n, nil
}

func sessionInfo(rec *session.Record) SessionInfo {
	return SessionInfo{
		SessionID:    rec.ID,
		AccountID:    rec.AccountID,
		DeviceName:   rec.DeviceName,
		Fingerprint:  rec.Fingerprint,
		IP:           rec.IP,
		UserAgent:    rec.UserAgent,
		CreatedAt:    rec.CreatedAt,
		LastActivity: rec.LastActivity,
		ExpiresAt:    rec.ExpiresAt,
	}
}
