// Package auth holds users, roles and the authenticator that signs them in.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrAccountNotFound    = errors.New("account not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrNoSession          = errors.New("no such session")
)

// NetworkError reports that the authentication backend could not be reached
// or did not answer in time.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: auth backend unavailable: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// FormError reports an invalid signup or login field.
type FormError struct {
	Field  string
	Reason string
}

func (e *FormError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// BusinessCategory is the kind of store the account runs. Values outside the
// predefined set are kept as free text.
type BusinessCategory string

const (
	CategoryKirana   BusinessCategory = "kirana"
	CategoryBoutique BusinessCategory = "boutique"
	CategoryPharmacy BusinessCategory = "pharmacy"
	CategoryHardware BusinessCategory = "hardware"
	CategoryOther    BusinessCategory = "other"
)

// User is a signed-in person.
type User struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Email            string           `json:"email"`
	Role             Role             `json:"role"`
	Phone            string           `json:"phone,omitempty"`
	CompanyName      string           `json:"company_name,omitempty"`
	BusinessCategory BusinessCategory `json:"business_category,omitempty"`
}

// Account is a stored user with its password hash.
type Account struct {
	User
	PasswordHash string
	CreatedAt    time.Time
}

// AccountStore persists accounts keyed by normalized email.
type AccountStore interface {
	// FindByEmail returns ErrAccountNotFound when there is no such account.
	FindByEmail(ctx context.Context, email string) (*Account, error)
	// Create returns ErrEmailTaken when the email is already registered.
	Create(ctx context.Context, acc *Account) error
}

// Session is one signed-in user, keyed by the HMAC of its bearer token.
type Session struct {
	TokenHash string    `json:"token_hash"`
	User      User      `json:"user"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionStore keeps the signed-in sessions by token hash.
type SessionStore interface {
	Save(ctx context.Context, s *Session) error
	// Load returns ErrNoSession when no session has tokenHash.
	Load(ctx context.Context, tokenHash string) (*Session, error)
	// Clear removes the session with tokenHash. Unknown hashes are ignored.
	Clear(ctx context.Context, tokenHash string) error
}
