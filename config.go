package authcore

import (
	"errors"
	"time"
)

// Config groups every tunable of the Service. Construct with DefaultConfig
// and override fields before Build; Build validates the result.
type Config struct {
	JWT       JWTConfig
	Session   SessionConfig
	Password  PasswordConfig
	RateLimit RateLimitConfig
	Lockout   LockoutPolicy
	Audit     AuditConfig
	Metrics   MetricsConfig
}

// JWTConfig controls token minting and verification.
type JWTConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// SigningMethod is "hs256" (default) or "ed25519".
	SigningMethod string
	SigningKey    []byte
	// VerifyKey is the Ed25519 public key; unused for HS256.
	VerifyKey []byte
	Issuer    string
	Audience  string
	Leeway    time.Duration
}

// SessionConfig controls session persistence and per-account defaults used
// when an Account does not carry its own limits.
type SessionConfig struct {
	RedisPrefix          string
	DefaultTimeout       time.Duration
	DefaultMaxConcurrent int
	// TrustedDeviceCap bounds the per-account trusted-device set.
	TrustedDeviceCap int
}

// PasswordConfig controls Argon2id parameters and policy bounds.
type PasswordConfig struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	HistorySize int
	// MaxAge forces a change after this long; zero disables expiry.
	MaxAge time.Duration
	// RehashOnLogin upgrades stored hashes to current parameters after a
	// successful verification.
	RehashOnLogin bool
}

// RateLimitConfig controls the sliding-window limiters keyed by client IP.
type RateLimitConfig struct {
	LoginMaxAttempts   int
	LoginWindow        time.Duration
	RefreshMaxAttempts int
	RefreshWindow      time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled bool
	// BufferSize is the dispatcher channel capacity.
	BufferSize int
	// DropIfFull drops events instead of blocking the request path when the
	// buffer is full. Dropped events are counted, see Service.AuditDropped.
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns production defaults. The JWT signing key is the one
// field with no usable default; Build fails without it.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "hs256",
			Issuer:        "smartsec-cloud",
			Audience:      "smartsec-users",
			Leeway:        30 * time.Second,
		},
		Session: SessionConfig{
			RedisPrefix:          "sess",
			DefaultTimeout:       30 * time.Minute,
			DefaultMaxConcurrent: 5,
			TrustedDeviceCap:     10,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			HistorySize: 5,
			MaxAge:      90 * 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			LoginMaxAttempts:   5,
			LoginWindow:        15 * time.Minute,
			RefreshMaxAttempts: 30,
			RefreshWindow:      time.Minute,
		},
		Lockout: DefaultLockoutPolicy(),
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

func validateConfig(cfg Config) error {
	if cfg.JWT.AccessTTL <= 0 || cfg.JWT.RefreshTTL <= 0 {
		return errors.New("jwt TTLs must be positive")
	}
	if cfg.JWT.RefreshTTL <= cfg.JWT.AccessTTL {
		return errors.New("refresh TTL must exceed access TTL")
	}
	if len(cfg.JWT.SigningKey) == 0 {
		return errors.New("jwt signing key is required")
	}
	if cfg.RateLimit.LoginMaxAttempts <= 0 || cfg.RateLimit.LoginWindow <= 0 {
		return errors.New("login rate limit must be positive")
	}
	if cfg.Session.DefaultTimeout <= 0 {
		return errors.New("session timeout must be positive")
	}
	if cfg.Session.DefaultMaxConcurrent <= 0 {
		return errors.New("max concurrent sessions must be positive")
	}
	if len(cfg.Lockout.Durations) == 0 {
		return errors.New("lockout schedule must not be empty")
	}
	if cfg.Password.HistorySize < 0 {
		return errors.New("password history size must not be negative")
	}
	return nil
}
