package authcore

import (
	"context"
	"time"

	"github.com/smartsec-cloud/authcore/internal/rate"
	"github.com/smartsec-cloud/authcore/jwt"
	"github.com/smartsec-cloud/authcore/password"
)

// Service is the authentication engine. It is immutable after Build and safe
// for concurrent use; all mutable state lives in the backing stores.
type Service struct {
	config   Config
	creds    CredentialStore
	sessions SessionStore
	limiter  *rate.Limiter
	hasher   *password.Hasher
	policy   *password.Policy
	lockout  LockoutPolicy
	tokens   *jwt.Manager
	audit    *auditDispatcher
	metrics  *Metrics
}

// Close drains and stops the audit dispatcher. Idempotent.
func (s *Service) Close() {
	if s == nil {
		return
	}
	s.audit.Close()
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (s *Service) AuditDropped() uint64 {
	if s == nil {
		return 0
	}
	return s.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the in-process counters.
func (s *Service) MetricsSnapshot() MetricsSnapshot {
	if s == nil || s.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return s.metrics.Snapshot()
}

// GeneratePassword produces a policy-conforming random password.
func (s *Service) GeneratePassword(length int) (string, error) {
	if s == nil || s.policy == nil {
		return "", ErrServiceNotReady
	}
	return s.policy.GenerateSecure(length)
}

// CheckPassword evaluates a candidate against the policy without touching any
// account state.
func (s *Service) CheckPassword(candidate string) password.Result {
	if s == nil || s.policy == nil {
		return password.Result{}
	}
	return s.policy.Validate(candidate)
}

func (s *Service) metricInc(id MetricID) {
	if s == nil || s.metrics == nil {
		return
	}
	s.metrics.Inc(id)
}

// emitAudit fills in caller context and hands the event to the dispatcher.
func (s *Service) emitAudit(ctx context.Context, event AuditEvent) {
	if s == nil || s.audit == nil {
		return
	}
	if event.IP == "" {
		event.IP = clientIPFromContext(ctx)
	}
	if event.UserAgent == "" {
		event.UserAgent = userAgentFromContext(ctx)
	}
	s.audit.Emit(ctx, event)
}

// maxSessionsFor returns the account's session cap, falling back to the
// configured default.
func (s *Service) maxSessionsFor(a *Account) int {
	if a.MaxConcurrentSessions > 0 {
		return a.MaxConcurrentSessions
	}
	return s.config.Session.DefaultMaxConcurrent
}

// sessionTimeoutFor returns the account's idle timeout, falling back to the
// configured default.
func (s *Service) sessionTimeoutFor(a *Account) time.Duration {
	if a.SessionTimeout > 0 {
		return a.SessionTimeout
	}
	return s.config.Session.DefaultTimeout
}
