package jwt

import (
	"crypto/ed25519"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the token signature algorithm.
type SigningMethod string

const (
	// MethodHS256 signs with a shared secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 key pair.
	MethodEd25519 SigningMethod = "ed25519"
)

// Token type claim values.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// ErrTokenInvalid is the single verification failure. Bad signature, wrong
// typ, expired, wrong issuer or audience all look identical to callers.
var ErrTokenInvalid = errors.New("invalid token")

// Config holds token issuance parameters.
type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	SigningMethod SigningMethod
	// SigningKey is the HS256 secret, or the Ed25519 private key (seed or
	// full form).
	SigningKey []byte
	// VerifyKey is the Ed25519 public key; ignored for HS256.
	VerifyKey []byte

	Issuer   string
	Audience string
	Leeway   time.Duration
}

// Claims is the payload carried by both token kinds.
type Claims struct {
	AccountID string `json:"uid"`
	SessionID string `json:"sid"`
	TenantID  string `json:"tnt,omitempty"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// Manager mints and verifies tokens for one key configuration.
type Manager struct {
	config    Config
	method    jwt.SigningMethod
	signKey   interface{}
	verifyKey interface{}
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token TTLs must be positive")
	}
	if cfg.RefreshTTL <= cfg.AccessTTL {
		return nil, errors.New("refresh TTL must exceed access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("leeway out of range")
	}

	m := &Manager{config: cfg}
	switch cfg.SigningMethod {
	case MethodHS256, "":
		if len(cfg.SigningKey) < 32 {
			return nil, errors.New("hs256 requires a key of at least 32 bytes")
		}
		m.method = jwt.SigningMethodHS256
		m.signKey = cfg.SigningKey
		m.verifyKey = cfg.SigningKey
	case MethodEd25519:
		priv, err := edPrivateKey(cfg.SigningKey)
		if err != nil {
			return nil, err
		}
		if len(cfg.VerifyKey) != ed25519.PublicKeySize {
			return nil, errors.New("ed25519 requires a 32-byte verify key")
		}
		m.method = jwt.SigningMethodEdDSA
		m.signKey = priv
		m.verifyKey = ed25519.PublicKey(cfg.VerifyKey)
	default:
		return nil, errors.New("unsupported signing method")
	}

	return m, nil
}

// MintAccess creates a short-lived access token for the session.
func (m *Manager) MintAccess(accountID, tenantID, sessionID string) (string, error) {
	return m.mint(accountID, tenantID, sessionID, TypeAccess, m.config.AccessTTL)
}

// MintRefresh creates the longer-lived refresh token for the session.
func (m *Manager) MintRefresh(accountID, tenantID, sessionID string) (string, error) {
	return m.mint(accountID, tenantID, sessionID, TypeRefresh, m.config.RefreshTTL)
}

func (m *Manager) mint(accountID, tenantID, sessionID, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		AccountID: accountID,
		SessionID: sessionID,
		TenantID:  tenantID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	return jwt.NewWithClaims(m.method, claims).SignedString(m.signKey)
}

// Verify parses token, checks signature, expiry, issuer, audience, and the
// typ claim, and returns the claims. wantType is TypeAccess or TypeRefresh.
func (m *Manager) Verify(token, wantType string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(m.config.Leeway),
	}
	if m.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(m.config.Audience))
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return m.verifyKey, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return nil, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.TokenType != wantType || claims.AccountID == "" || claims.SessionID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func edPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	switch len(key) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(key), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(key), nil
	default:
		return nil, errors.New("ed25519 signing key must be 32 or 64 bytes")
	}
}
