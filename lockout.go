package authcore

import "time"

// LockoutPolicy maps an account's consecutive-failure count to a lockout
// duration. The schedule is progressive: the k-th failure locks for
// Durations[k-1], and failures beyond the schedule keep the final (longest)
// duration.
type LockoutPolicy struct {
	Durations []time.Duration
}

// DefaultLockoutPolicy returns the production schedule: 5, 10, 15, 30, 60
// minutes, capped at 60.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		Durations: []time.Duration{
			5 * time.Minute,
			10 * time.Minute,
			15 * time.Minute,
			30 * time.Minute,
			60 * time.Minute,
		},
	}
}

// RecordFailure applies the failure transition: increments the counter and
// sets LockedUntil to now plus the scheduled duration. Returns the duration
// applied.
func (p LockoutPolicy) RecordFailure(a *Account, now time.Time) time.Duration {
	a.FailedLoginAttempts++
	d := p.DurationFor(a.FailedLoginAttempts)
	until := now.Add(d)
	a.LockedUntil = &until
	return d
}

// RecordSuccess applies the success transition: the counter resets and any
// lockout clears, regardless of prior state.
func (p LockoutPolicy) RecordSuccess(a *Account) {
	a.FailedLoginAttempts = 0
	a.LockedUntil = nil
}

// DurationFor returns the lockout duration for the given failure count.
func (p LockoutPolicy) DurationFor(failures int) time.Duration {
	if len(p.Durations) == 0 || failures <= 0 {
		return 0
	}
	if failures > len(p.Durations) {
		failures = len(p.Durations)
	}
	return p.Durations[failures-1]
}
