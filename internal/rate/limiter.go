package rate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps transport failures toward Redis. Callers treat it
// as a denial, never as an allowance.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Result is the outcome of one CheckAndRecord call.
type Result struct {
	// Allowed is true while the prior attempt count was below the limit.
	Allowed bool
	// Attempts counts entries in the window including the one just recorded.
	Attempts int
	// Remaining is how many further attempts the window still admits.
	Remaining int
	// ResetAt is when the window trailing from this attempt ends.
	ResetAt time.Time
}

// Limiter enforces sliding-window attempt limits keyed by caller-chosen
// identity strings.
type Limiter struct {
	redis redis.UniversalClient
}

// New creates a Limiter backed by the given Redis client.
func New(redisClient redis.UniversalClient) *Limiter {
	return &Limiter{redis: redisClient}
}

func limitKey(key string) string {
	return "rl:" + key
}

// CheckAndRecord records the current attempt and reports whether it was
// within budget. The evict+record+count+expire sequence runs as one
// transaction per key.
func (l *Limiter) CheckAndRecord(ctx context.Context, key string, maxAttempts int, window time.Duration) (Result, error) {
	now := time.Now()
	attempts, err := l.record(ctx, limitKey(key), now, window)
	if err != nil {
		return Result{}, err
	}

	remaining := maxAttempts - attempts
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   attempts-1 < maxAttempts,
		Attempts:  attempts,
		Remaining: remaining,
		ResetAt:   now.Add(window),
	}, nil
}

// RecordFailure adds an attempt without evaluating the budget, so failures
// observed after a passing check still count toward the window.
func (l *Limiter) RecordFailure(ctx context.Context, key string, window time.Duration) error {
	_, err := l.record(ctx, limitKey(key), time.Now(), window)
	return err
}

// Attempts reports the current in-window count without recording anything.
func (l *Limiter) Attempts(ctx context.Context, key string, window time.Duration) (int, error) {
	now := time.Now()
	cutoff := strconv.FormatInt(now.Add(-window).UnixMilli(), 10)

	var card *redis.IntCmd
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, limitKey(key), "0", cutoff)
		card = pipe.ZCard(ctx, limitKey(key))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(card.Val()), nil
}

func (l *Limiter) record(ctx context.Context, key string, now time.Time, window time.Duration) (int, error) {
	cutoff := strconv.FormatInt(now.Add(-window).UnixMilli(), 10)

	var card *redis.IntCmd
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "0", cutoff)
		pipe.ZAdd(ctx, key, redis.Z{
			Score: float64(now.UnixMilli()),
			// Unique member: two attempts in the same millisecond must both
			// count.
			Member: uuid.NewString(),
		})
		card = pipe.ZCard(ctx, key)
		pipe.Expire(ctx, key, window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return int(card.Val()), nil
}
