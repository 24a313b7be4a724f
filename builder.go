package authcore

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/smartsec-cloud/authcore/internal/rate"
	"github.com/smartsec-cloud/authcore/jwt"
	"github.com/smartsec-cloud/authcore/password"
	"github.com/smartsec-cloud/authcore/session"
)

// Builder assembles a Service. Configure it once, call Build, then discard it;
// a Builder must not be reused.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	creds    CredentialStore
	sessions SessionStore
	sink     AuditSink

	built bool
}

// New returns a Builder preloaded with DefaultConfig.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the Redis client backing the rate limiter and the default
// session store.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore sets the account persistence backend. Required.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.creds = store
	return b
}

// WithSessionStore overrides the default Redis session store.
func (b *Builder) WithSessionStore(store SessionStore) *Builder {
	b.sessions = store
	return b
}

// WithAuditSink sets the destination for audit events. Without one, events go
// to a NoOpSink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration, wires every component, and returns an
// immutable Service.
func (b *Builder) Build() (*Service, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if b.creds == nil {
		return nil, errors.New("credential store required")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	hasher, err := password.NewHasher(password.Params{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		SigningKey:    cloneBytes(cfg.JWT.SigningKey),
		VerifyKey:     cloneBytes(cfg.JWT.VerifyKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	sessions := b.sessions
	if sessions == nil {
		sessions = session.NewStore(b.redis, cfg.Session.RedisPrefix)
	}

	svc := &Service{
		config:   cfg,
		creds:    b.creds,
		sessions: sessions,
		limiter:  rate.New(b.redis),
		hasher:   hasher,
		policy:   password.NewPolicy(),
		lockout:  cfg.Lockout,
		tokens:   tokens,
		audit:    newAuditDispatcher(cfg.Audit, b.sink),
	}
	if cfg.Metrics.Enabled {
		svc.metrics = newMetrics()
	}

	b.built = true
	return svc, nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
