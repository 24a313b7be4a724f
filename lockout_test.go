package authcore

import (
	"testing"
	"time"
)

func TestLockoutScheduleProgressionAndCap(t *testing.T) {
	p := DefaultLockoutPolicy()
	want := []time.Duration{
		5 * time.Minute, 10 * time.Minute, 15 * time.Minute,
		30 * time.Minute, 60 * time.Minute,
	}
	for i, d := range want {
		if got := p.DurationFor(i + 1); got != d {
			t.Fatalf("failure %d: got %v want %v", i+1, got, d)
		}
	}
	// Beyond the schedule the final duration holds.
	if got := p.DurationFor(6); got != 60*time.Minute {
		t.Fatalf("failure 6: got %v want 60m", got)
	}
	if got := p.DurationFor(100); got != 60*time.Minute {
		t.Fatalf("failure 100: got %v want 60m", got)
	}
	if got := p.DurationFor(0); got != 0 {
		t.Fatalf("failure 0: got %v want 0", got)
	}
}

func TestRecordFailureTransitions(t *testing.T) {
	p := DefaultLockoutPolicy()
	a := &Account{}
	now := time.Now()

	d := p.RecordFailure(a, now)
	if d != 5*time.Minute {
		t.Fatalf("first failure duration %v", d)
	}
	if a.FailedLoginAttempts != 1 || a.LockedUntil == nil {
		t.Fatal("expected counter and lockout set")
	}
	if !a.LockedUntil.Equal(now.Add(5 * time.Minute)) {
		t.Fatalf("LockedUntil %v", a.LockedUntil)
	}

	p.RecordFailure(a, now)
	if a.FailedLoginAttempts != 2 || !a.LockedUntil.Equal(now.Add(10*time.Minute)) {
		t.Fatal("expected second step of the schedule")
	}
}

func TestRecordSuccessClearsState(t *testing.T) {
	p := DefaultLockoutPolicy()
	a := &Account{}
	p.RecordFailure(a, time.Now())
	p.RecordFailure(a, time.Now())

	p.RecordSuccess(a)
	if a.FailedLoginAttempts != 0 || a.LockedUntil != nil {
		t.Fatal("expected full reset on success")
	}
}
