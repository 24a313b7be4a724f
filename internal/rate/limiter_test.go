package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(client), mr
}

func TestCheckAndRecordAllowsUpToLimit(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		res, err := l.CheckAndRecord(ctx, "k", 5, time.Minute)
		if err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("attempt %d should be allowed", i)
		}
		if res.Attempts != i {
			t.Fatalf("attempt %d: counted %d", i, res.Attempts)
		}
	}

	res, err := l.CheckAndRecord(ctx, "k", 5, time.Minute)
	if err != nil {
		t.Fatalf("sixth attempt: %v", err)
	}
	if res.Allowed {
		t.Fatal("sixth attempt must be rejected")
	}
	if res.Remaining != 0 {
		t.Fatalf("remaining = %d", res.Remaining)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		l.CheckAndRecord(ctx, "a", 5, time.Minute)
	}

	res, err := l.CheckAndRecord(ctx, "b", 5, time.Minute)
	if err != nil {
		t.Fatalf("CheckAndRecord failed: %v", err)
	}
	if !res.Allowed || res.Attempts != 1 {
		t.Fatalf("key b should be fresh, got %+v", res)
	}
}

func TestWindowSlides(t *testing.T) {
	l, mr := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		l.CheckAndRecord(ctx, "k", 5, 500*time.Millisecond)
	}
	if res, _ := l.CheckAndRecord(ctx, "k", 5, 500*time.Millisecond); res.Allowed {
		t.Fatal("expected rejection inside the window")
	}

	// Old entries age out of the window; scores are wall-clock timestamps so
	// eviction works without FastForward.
	time.Sleep(600 * time.Millisecond)
	mr.FastForward(time.Second)

	res, err := l.CheckAndRecord(ctx, "k", 5, 500*time.Millisecond)
	if err != nil {
		t.Fatalf("CheckAndRecord failed: %v", err)
	}
	if !res.Allowed {
		t.Fatalf("expected allowance after the window, got %+v", res)
	}
}

func TestRecordFailureCountsTowardWindow(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.RecordFailure(ctx, "k", time.Minute); err != nil {
			t.Fatalf("RecordFailure failed: %v", err)
		}
	}

	n, err := l.Attempts(ctx, "k", time.Minute)
	if err != nil {
		t.Fatalf("Attempts failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}
}

func TestAttemptsDoesNotRecord(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	l.RecordFailure(ctx, "k", time.Minute)
	for i := 0; i < 5; i++ {
		if _, err := l.Attempts(ctx, "k", time.Minute); err != nil {
			t.Fatalf("Attempts failed: %v", err)
		}
	}

	n, _ := l.Attempts(ctx, "k", time.Minute)
	if n != 1 {
		t.Fatalf("expected 1, got %d", n)
	}
}

func TestRedisDownFailsClosed(t *testing.T) {
	l, mr := newTestLimiter(t)
	mr.Close()

	_, err := l.CheckAndRecord(context.Background(), "k", 5, time.Minute)
	if !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
