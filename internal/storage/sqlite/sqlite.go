// Package sqlite keeps device-local state in a SQLite file: the account
// registry and the signed-in sessions.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/xenking/inventrak/internal/domain/auth"
)

const insertAccountSQL = `INSERT INTO accounts
	(id, email, name, role, phone, company_name, business_category, password_hash, created_at)
	VALUES (:id, :email, :name, :role, :phone, :company_name, :business_category, :password_hash, :created_at)`

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id                TEXT PRIMARY KEY,
	email             TEXT NOT NULL UNIQUE,
	name              TEXT NOT NULL,
	role              TEXT NOT NULL,
	phone             TEXT NOT NULL DEFAULT '',
	company_name      TEXT NOT NULL DEFAULT '',
	business_category TEXT NOT NULL DEFAULT '',
	password_hash     TEXT NOT NULL,
	created_at        TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	token_hash TEXT PRIMARY KEY,
	user_json  TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
`

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %q: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying sqlite schema: %w", err)
	}
	return db, nil
}

type accountRow struct {
	ID               string    `db:"id"`
	Email            string    `db:"email"`
	Name             string    `db:"name"`
	Role             string    `db:"role"`
	Phone            string    `db:"phone"`
	CompanyName      string    `db:"company_name"`
	BusinessCategory string    `db:"business_category"`
	PasswordHash     string    `db:"password_hash"`
	CreatedAt        time.Time `db:"created_at"`
}

func newAccountRow(acc *auth.Account) accountRow {
	return accountRow{
		ID:               acc.ID,
		Email:            auth.NormalizeEmail(acc.Email),
		Name:             acc.Name,
		Role:             string(acc.Role),
		Phone:            acc.Phone,
		CompanyName:      acc.CompanyName,
		BusinessCategory: string(acc.BusinessCategory),
		PasswordHash:     acc.PasswordHash,
		CreatedAt:        acc.CreatedAt,
	}
}

var _ auth.AccountStore = (*Accounts)(nil)

// Accounts implements auth.AccountStore on SQLite.
type Accounts struct {
	db *sqlx.DB
}

// NewAccounts returns an Accounts store using db.
func NewAccounts(db *sqlx.DB) *Accounts {
	return &Accounts{db: db}
}

// FindByEmail implements auth.AccountStore.
func (a *Accounts) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	const q = `SELECT id, email, name, role, phone, company_name, business_category, password_hash, created_at
		FROM accounts WHERE email = ?`

	var row accountRow
	if err := a.db.GetContext(ctx, &row, q, auth.NormalizeEmail(email)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrAccountNotFound
		}
		return nil, fmt.Errorf("finding account %q: %w", email, err)
	}
	return &auth.Account{
		User: auth.User{
			ID:               row.ID,
			Name:             row.Name,
			Email:            row.Email,
			Role:             auth.Role(row.Role),
			Phone:            row.Phone,
			CompanyName:      row.CompanyName,
			BusinessCategory: auth.BusinessCategory(row.BusinessCategory),
		},
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt,
	}, nil
}

// Create implements auth.AccountStore.
func (a *Accounts) Create(ctx context.Context, acc *auth.Account) error {
	row := newAccountRow(acc)
	if _, err := a.db.NamedExecContext(ctx, insertAccountSQL, row); err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return auth.ErrEmailTaken
		}
		return fmt.Errorf("creating account %q: %w", row.Email, err)
	}
	return nil
}

// Upsert creates or replaces the account with the same email. Provisioning
// tools use it to reset passwords.
func (a *Accounts) Upsert(ctx context.Context, acc *auth.Account) error {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE email = ?`, auth.NormalizeEmail(acc.Email)); err != nil {
		return fmt.Errorf("replacing account %q: %w", acc.Email, err)
	}
	if _, err := tx.NamedExecContext(ctx, insertAccountSQL, newAccountRow(acc)); err != nil {
		return fmt.Errorf("inserting account %q: %w", acc.Email, err)
	}
	return tx.Commit()
}

var _ auth.SessionStore = (*Sessions)(nil)

// Sessions implements auth.SessionStore with one row per signed-in token.
type Sessions struct {
	db *sqlx.DB
}

// NewSessions returns a Sessions store using db.
func NewSessions(db *sqlx.DB) *Sessions {
	return &Sessions{db: db}
}

type sessionRow struct {
	TokenHash string    `db:"token_hash"`
	UserJSON  string    `db:"user_json"`
	CreatedAt time.Time `db:"created_at"`
}

// Save implements auth.SessionStore.
func (s *Sessions) Save(ctx context.Context, sess *auth.Session) error {
	const q = `INSERT INTO sessions (token_hash, user_json, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(token_hash) DO UPDATE SET
			user_json = excluded.user_json,
			created_at = excluded.created_at`

	user, err := json.Marshal(sess.User)
	if err != nil {
		return fmt.Errorf("marshaling session user: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, q, sess.TokenHash, string(user), sess.CreatedAt); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// Load implements auth.SessionStore.
func (s *Sessions) Load(ctx context.Context, tokenHash string) (*auth.Session, error) {
	const q = `SELECT token_hash, user_json, created_at FROM sessions WHERE token_hash = ?`

	var row sessionRow
	if err := s.db.GetContext(ctx, &row, q, tokenHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNoSession
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}

	sess := &auth.Session{TokenHash: row.TokenHash, CreatedAt: row.CreatedAt}
	if err := json.Unmarshal([]byte(row.UserJSON), &sess.User); err != nil {
		return nil, fmt.Errorf("unmarshaling session user: %w", err)
	}
	return sess, nil
}

// Clear implements auth.SessionStore.
func (s *Sessions) Clear(ctx context.Context, tokenHash string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = ?`, tokenHash); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}
