package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned for unknown session IDs.
var ErrNotFound = errors.New("session not found")

// ErrRedisUnavailable wraps transport failures toward Redis.
var ErrRedisUnavailable = errors.New("redis unavailable")

// createScript prunes dead index entries, deactivates the oldest active
// sessions while the account is at or above its limit, writes the new
// session hash, and registers it in the index. Runs atomically so concurrent
// logins for one account cannot overshoot the limit.
const createScript = `
local idx = KEYS[1]
local skey = KEYS[2]
local max = tonumber(ARGV[1])
local sid = ARGV[2]
local score = ARGV[3]
local prefix = ARGV[4]
local ttl = tonumber(ARGV[5])

local members = redis.call("ZRANGE", idx, 0, -1)
local active = {}
for _, m in ipairs(members) do
  if redis.call("HGET", prefix .. m, "active") == "1" then
    active[#active + 1] = m
  else
    redis.call("ZREM", idx, m)
  end
end

local evicted = {}
for i = 1, #active - max + 1 do
  local victim = active[i]
  redis.call("HSET", prefix .. victim, "active", "0")
  redis.call("ZREM", idx, victim)
  evicted[#evicted + 1] = victim
end

for i = 6, #ARGV - 1, 2 do
  redis.call("HSET", skey, ARGV[i], ARGV[i + 1])
end
if ttl > 0 then
  redis.call("PEXPIRE", skey, ttl)
end
redis.call("ZADD", idx, score, sid)
return evicted
`

const touchScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  redis.call("HSET", KEYS[1], "last_activity", ARGV[1])
  return 1
end
return 0
`

const deactivateScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
local was = redis.call("HGET", KEYS[1], "active")
local acct = redis.call("HGET", KEYS[1], "account_id")
redis.call("HSET", KEYS[1], "active", "0")
if acct then
  redis.call("ZREM", ARGV[1] .. acct, ARGV[2])
end
if was == "1" then
  return 1
end
return 0
`

const deactivateAllScript = `
local members = redis.call("ZRANGE", KEYS[1], 0, -1)
local n = 0
for _, m in ipairs(members) do
  local skey = ARGV[1] .. m
  if redis.call("HGET", skey, "active") == "1" then
    redis.call("HSET", skey, "active", "0")
    n = n + 1
  end
end
redis.call("DEL", KEYS[1])
return n
`

var (
	createLua        = redis.NewScript(createScript)
	touchLua         = redis.NewScript(touchScript)
	deactivateLua    = redis.NewScript(deactivateScript)
	deactivateAllLua = redis.NewScript(deactivateAllScript)
)

// Store is a Redis-backed session store.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a Store using prefix as the Redis key namespace.
func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "sess"
	}
	return &Store{redis: redisClient, prefix: prefix}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

func (s *Store) keyPrefix() string {
	return s.prefix + ":"
}

func (s *Store) indexKey(accountID string) string {
	return s.prefix + ":acct:" + accountID
}

func (s *Store) indexPrefix() string {
	return s.prefix + ":acct:"
}

// Create persists rec and enforces the per-account active-session limit.
// Returns the IDs of the sessions it deactivated to make room.
func (s *Store) Create(ctx context.Context, rec *Record, maxActive int) ([]string, error) {
	if rec == nil || rec.ID == "" || rec.AccountID == "" {
		return nil, errors.New("invalid session record")
	}
	if maxActive <= 0 {
		maxActive = 1
	}

	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return nil, errors.New("session already expired")
	}

	args := []interface{}{
		maxActive,
		rec.ID,
		strconv.FormatInt(rec.CreatedAt.UnixNano(), 10),
		s.keyPrefix(),
		ttl.Milliseconds(),
	}
	args = append(args, fieldPairs(rec)...)

	res, err := createLua.Run(ctx, s.redis,
		[]string{s.indexKey(rec.AccountID), s.key(rec.ID)}, args...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	raw, ok := res.([]interface{})
	if !ok {
		return nil, nil
	}
	evicted := make([]string, 0, len(raw))
	for _, v := range raw {
		if id, ok := v.(string); ok {
			evicted = append(evicted, id)
		}
	}
	return evicted, nil
}

// Get retrieves a session by ID. Missing or expired-away keys return
// ErrNotFound.
func (s *Store) Get(ctx context.Context, sessionID string) (*Record, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return decode(sessionID, fields)
}

// Touch updates the last-activity timestamp if the session still exists.
func (s *Store) Touch(ctx context.Context, sessionID string, at time.Time) error {
	err := touchLua.Run(ctx, s.redis, []string{s.key(sessionID)},
		strconv.FormatInt(at.UnixNano(), 10)).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Deactivate clears the active flag and removes the session from its
// account index. Idempotent; reports whether the session was active.
func (s *Store) Deactivate(ctx context.Context, sessionID string) (bool, error) {
	res, err := deactivateLua.Run(ctx, s.redis, []string{s.key(sessionID)},
		s.indexPrefix(), sessionID).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return res == 1, nil
}

// DeactivateAll clears every session of the account and returns how many
// were active.
func (s *Store) DeactivateAll(ctx context.Context, accountID string) (int, error) {
	res, err := deactivateAllLua.Run(ctx, s.redis, []string{s.indexKey(accountID)},
		s.keyPrefix()).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(res), nil
}

// ListActive returns the account's active, unexpired sessions ordered oldest
// first.
func (s *Store) ListActive(ctx context.Context, accountID string) ([]Record, error) {
	ids, err := s.redis.ZRange(ctx, s.indexKey(accountID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	now := time.Now()
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		if rec.Live(now) {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func fieldPairs(rec *Record) []interface{} {
	active := "0"
	if rec.Active {
		active = "1"
	}
	return []interface{}{
		"account_id", rec.AccountID,
		"fingerprint", rec.Fingerprint,
		"device_name", rec.DeviceName,
		"ip", rec.IP,
		"user_agent", rec.UserAgent,
		"created_at", strconv.FormatInt(rec.CreatedAt.UnixNano(), 10),
		"expires_at", strconv.FormatInt(rec.ExpiresAt.UnixNano(), 10),
		"last_activity", strconv.FormatInt(rec.LastActivity.UnixNano(), 10),
		"active", active,
	}
}

func decode(sessionID string, fields map[string]string) (*Record, error) {
	rec := &Record{
		ID:          sessionID,
		AccountID:   fields["account_id"],
		Fingerprint: fields["fingerprint"],
		DeviceName:  fields["device_name"],
		IP:          fields["ip"],
		UserAgent:   fields["user_agent"],
		Active:      fields["active"] == "1",
	}
	if rec.AccountID == "" {
		return nil, fmt.Errorf("session %s: corrupt record", sessionID)
	}

	var err error
	if rec.CreatedAt, err = parseNano(fields["created_at"]); err != nil {
		return nil, fmt.Errorf("session %s: %v", sessionID, err)
	}
	if rec.ExpiresAt, err = parseNano(fields["expires_at"]); err != nil {
		return nil, fmt.Errorf("session %s: %v", sessionID, err)
	}
	if rec.LastActivity, err = parseNano(fields["last_activity"]); err != nil {
		return nil, fmt.Errorf("session %s: %v", sessionID, err)
	}
	return rec, nil
}

func parseNano(v string) (time.Time, error) {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q", v)
	}
	return time.Unix(0, n).UTC(), nil
}
