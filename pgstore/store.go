package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/smartsec-cloud/authcore"
)

const accountsSchema = `
CREATE TABLE IF NOT EXISTS auth_accounts (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	tenant_id TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	password_changed_at TIMESTAMPTZ NOT NULL,
	password_history TEXT[] NOT NULL DEFAULT '{}',
	failed_login_attempts INT NOT NULL DEFAULT 0,
	locked_until TIMESTAMPTZ,
	trusted_devices JSONB NOT NULL DEFAULT '[]'::jsonb,
	max_concurrent_sessions INT NOT NULL DEFAULT 0,
	session_timeout_seconds BIGINT NOT NULL DEFAULT 0,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	last_login TIMESTAMPTZ,
	last_login_ip TEXT NOT NULL DEFAULT '',
	last_login_user_agent TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS auth_accounts_tenant_idx ON auth_accounts (tenant_id)`

// uniqueViolation is the PostgreSQL error code for duplicate keys.
const uniqueViolation = "23505"

// Store implements authcore.CredentialStore on PostgreSQL.
type Store struct {
	db *sqlx.DB
}

// NewStore wraps db and ensures the account schema exists.
func NewStore(db *sqlx.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}
	s := &Store{db: db}
	if _, err := db.Exec(accountsSchema); err != nil {
		return nil, fmt.Errorf("ensure auth_accounts schema: %w", err)
	}
	return s, nil
}

type accountRow struct {
	ID                    string         `db:"id"`
	Username              string         `db:"username"`
	Email                 string         `db:"email"`
	TenantID              string         `db:"tenant_id"`
	PasswordHash          string         `db:"password_hash"`
	PasswordChangedAt     time.Time      `db:"password_changed_at"`
	PasswordHistory       pq.StringArray `db:"password_history"`
	FailedLoginAttempts   int            `db:"failed_login_attempts"`
	LockedUntil           sql.NullTime   `db:"locked_until"`
	TrustedDevices        []byte         `db:"trusted_devices"`
	MaxConcurrentSessions int            `db:"max_concurrent_sessions"`
	SessionTimeoutSeconds int64          `db:"session_timeout_seconds"`
	Active                bool           `db:"active"`
	LastLogin             sql.NullTime   `db:"last_login"`
	LastLoginIP           string         `db:"last_login_ip"`
	LastLoginUserAgent    string         `db:"last_login_user_agent"`
	CreatedAt             time.Time      `db:"created_at"`
	UpdatedAt             time.Time      `db:"updated_at"`
}

const accountColumns = `id, username, email, tenant_id, password_hash,
	password_changed_at, password_history, failed_login_attempts, locked_until,
	trusted_devices, max_concurrent_sessions, session_timeout_seconds, active,
	last_login, last_login_ip, last_login_user_agent, created_at, updated_at`

// GetByUsername implements authcore.CredentialStore.
func (s *Store) GetByUsername(ctx context.Context, username string) (*authcore.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, authcore.ErrAccountNotFound
	}
	return s.getBy(ctx, "username", username)
}

// GetByID implements authcore.CredentialStore.
func (s *Store) GetByID(ctx context.Context, id string) (*authcore.Account, error) {
	if id == "" {
		return nil, authcore.ErrAccountNotFound
	}
	return s.getBy(ctx, "id", id)
}

func (s *Store) getBy(ctx context.Context, column, value string) (*authcore.Account, error) {
	var row accountRow
	query := fmt.Sprintf(`SELECT %s FROM auth_accounts WHERE %s = $1`, accountColumns, column)
	if err := s.db.GetContext(ctx, &row, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authcore.ErrAccountNotFound
		}
		return nil, fmt.Errorf("query account by %s: %w", column, err)
	}
	return row.toAccount()
}

// Create implements authcore.CredentialStore. Username and email conflicts
// map to authcore.ErrAccountExists.
func (s *Store) Create(ctx context.Context, account *authcore.Account) error {
	row, err := rowFrom(account)
	if err != nil {
		return err
	}

	const query = `
INSERT INTO auth_accounts (id, username, email, tenant_id, password_hash,
	password_changed_at, password_history, failed_login_attempts, locked_until,
	trusted_devices, max_concurrent_sessions, session_timeout_seconds, active,
	last_login, last_login_ip, last_login_user_agent, created_at, updated_at)
VALUES (:id, :username, :email, :tenant_id, :password_hash,
	:password_changed_at, :password_history, :failed_login_attempts, :locked_until,
	:trusted_devices, :max_concurrent_sessions, :session_timeout_seconds, :active,
	:last_login, :last_login_ip, :last_login_user_agent, :created_at, :updated_at)`

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return authcore.ErrAccountExists
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// Save implements authcore.CredentialStore. The whole row is rewritten;
// last write wins.
func (s *Store) Save(ctx context.Context, account *authcore.Account) error {
	row, err := rowFrom(account)
	if err != nil {
		return err
	}

	const query = `
UPDATE auth_accounts SET
	username = :username,
	email = :email,
	tenant_id = :tenant_id,
	password_hash = :password_hash,
	password_changed_at = :password_changed_at,
	password_history = :password_history,
	failed_login_attempts = :failed_login_attempts,
	locked_until = :locked_until,
	trusted_devices = :trusted_devices,
	max_concurrent_sessions = :max_concurrent_sessions,
	session_timeout_seconds = :session_timeout_seconds,
	active = :active,
	last_login = :last_login,
	last_login_ip = :last_login_ip,
	last_login_user_agent = :last_login_user_agent,
	updated_at = :updated_at
WHERE id = :id`

	res, err := s.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return authcore.ErrAccountNotFound
	}
	return nil
}

// Deactivate clears the active flag without removing the row.
func (s *Store) Deactivate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE auth_accounts SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate account: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return authcore.ErrAccountNotFound
	}
	return nil
}

func rowFrom(a *authcore.Account) (*accountRow, error) {
	if a == nil || a.ID == "" || a.Username == "" {
		return nil, errors.New("account id and username are required")
	}

	devices, err := json.Marshal(a.TrustedDevices)
	if err != nil {
		return nil, fmt.Errorf("encode trusted devices: %w", err)
	}
	if a.TrustedDevices == nil {
		devices = []byte("[]")
	}

	row := &accountRow{
		ID:                    a.ID,
		Username:              a.Username,
		Email:                 a.Email,
		TenantID:              a.TenantID,
		PasswordHash:          a.PasswordHash,
		PasswordChangedAt:     a.PasswordChangedAt,
		PasswordHistory:       pq.StringArray(a.PasswordHistory),
		FailedLoginAttempts:   a.FailedLoginAttempts,
		TrustedDevices:        devices,
		MaxConcurrentSessions: a.MaxConcurrentSessions,
		SessionTimeoutSeconds: int64(a.SessionTimeout / time.Second),
		Active:                a.Active,
		LastLoginIP:           a.LastLoginIP,
		LastLoginUserAgent:    a.LastLoginUserAgent,
		CreatedAt:             a.CreatedAt,
		UpdatedAt:             a.UpdatedAt,
	}
	if row.PasswordHistory == nil {
		row.PasswordHistory = pq.StringArray{}
	}
	if a.LockedUntil != nil {
		row.LockedUntil = sql.NullTime{Time: *a.LockedUntil, Valid: true}
	}
	if a.LastLogin != nil {
		row.LastLogin = sql.NullTime{Time: *a.LastLogin, Valid: true}
	}
	return row, nil
}

func (r *accountRow) toAccount() (*authcore.Account, error) {
	a := &authcore.Account{
		ID:                    r.ID,
		Username:              r.Username,
		Email:                 r.Email,
		TenantID:              r.TenantID,
		PasswordHash:          r.PasswordHash,
		PasswordChangedAt:     r.PasswordChangedAt,
		PasswordHistory:       []string(r.PasswordHistory),
		FailedLoginAttempts:   r.FailedLoginAttempts,
		MaxConcurrentSessions: r.MaxConcurrentSessions,
		SessionTimeout:        time.Duration(r.SessionTimeoutSeconds) * time.Second,
		Active:                r.Active,
		LastLoginIP:           r.LastLoginIP,
		LastLoginUserAgent:    r.LastLoginUserAgent,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}
	if r.LockedUntil.Valid {
		t := r.LockedUntil.Time
		a.LockedUntil = &t
	}
	if r.LastLogin.Valid {
		t := r.LastLogin.Time
		a.LastLogin = &t
	}
	if len(r.TrustedDevices) > 0 {
		if err := json.Unmarshal(r.TrustedDevices, &a.TrustedDevices); err != nil {
			return nil, fmt.Errorf("decode trusted devices: %w", err)
		}
	}
	return a, nil
}
