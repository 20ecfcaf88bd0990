package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/mail"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MinPasswordLength is the shortest password Signup accepts.
const MinPasswordLength = 6

// Config controls an Authenticator.
type Config struct {
	// Pepper keys the HMAC used for password and token hashes.
	Pepper []byte
	// Latency delays Login and Signup, the way a remote identity backend would.
	Latency time.Duration
	Now     func() time.Time
}

// SignupForm is the data collected when a store owner registers.
type SignupForm struct {
	Name             string
	Email            string
	Password         string
	Phone            string
	CompanyName      string
	BusinessCategory BusinessCategory
	// OtherCategory replaces BusinessCategory when it is CategoryOther.
	OtherCategory string
}

// Grant is the result of a successful sign-in. Token is only ever returned
// here; the session keeps its hash.
type Grant struct {
	Token string
	User  User
}

// Authenticator signs users in and out. Login and Signup may block: they
// honour ctx and report backend trouble as *NetworkError.
type Authenticator struct {
	accounts AccountStore
	sessions SessionStore
	pepper   []byte
	latency  time.Duration
	now      func() time.Time
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(accounts AccountStore, sessions SessionStore, cfg Config) *Authenticator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Authenticator{
		accounts: accounts,
		sessions: sessions,
		pepper:   cfg.Pepper,
		latency:  cfg.Latency,
		now:      cfg.Now,
	}
}

// HashPassword returns the hex HMAC-SHA256 of password under the pepper.
func (a *Authenticator) HashPassword(password string) string {
	return a.mac(password)
}

// NewAccount builds an Account for u with a hashed password. It is used by
// tools that provision accounts without signing in.
func (a *Authenticator) NewAccount(u User, password string) *Account {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	u.Email = NormalizeEmail(u.Email)
	return &Account{
		User:         u,
		PasswordHash: a.HashPassword(password),
		CreatedAt:    a.now().UTC(),
	}
}

// Login checks the credentials against the account store and signs the user
// in. A wrong password, an unknown email or a role that does not match the
// account all yield ErrInvalidCredentials.
func (a *Authenticator) Login(ctx context.Context, email, password string, role Role) (*Grant, error) {
	if err := a.wait(ctx, "login"); err != nil {
		return nil, err
	}

	acc, err := a.accounts.FindByEmail(ctx, NormalizeEmail(email))
	switch {
	case errors.Is(err, ErrAccountNotFound):
		return nil, ErrInvalidCredentials
	case err != nil:
		return nil, &NetworkError{Op: "login", Err: err}
	}

	want, err := hex.DecodeString(acc.PasswordHash)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	got, _ := hex.DecodeString(a.mac(password))
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return nil, ErrInvalidCredentials
	}
	if acc.Role != role {
		return nil, ErrInvalidCredentials
	}

	return a.signIn(ctx, "login", acc.User)
}

// Signup registers a new store owner and signs them in. New accounts are
// always admins.
func (a *Authenticator) Signup(ctx context.Context, form SignupForm) (*Grant, error) {
	if err := form.validate(); err != nil {
		return nil, err
	}
	if err := a.wait(ctx, "signup"); err != nil {
		return nil, err
	}

	category := form.BusinessCategory
	if category == CategoryOther && strings.TrimSpace(form.OtherCategory) != "" {
		category = BusinessCategory(strings.TrimSpace(form.OtherCategory))
	}
	acc := a.NewAccount(User{
		Name:             strings.TrimSpace(form.Name),
		Email:            form.Email,
		Role:             RoleAdmin,
		Phone:            strings.TrimSpace(form.Phone),
		CompanyName:      strings.TrimSpace(form.CompanyName),
		BusinessCategory: category,
	}, form.Password)

	if err := a.accounts.Create(ctx, acc); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, err
		}
		return nil, &NetworkError{Op: "signup", Err: err}
	}

	return a.signIn(ctx, "signup", acc.User)
}

// Logout ends the session of token. Other signed-in users are unaffected.
func (a *Authenticator) Logout(ctx context.Context, token string) error {
	if token == "" {
		return ErrUnauthorized
	}
	if err := a.sessions.Clear(ctx, a.mac(token)); err != nil {
		return errors.Wrap(err, "clear session")
	}
	return nil
}

// Current returns the user signed in with token, or ErrNoSession.
func (a *Authenticator) Current(ctx context.Context, token string) (*User, error) {
	s, err := a.sessions.Load(ctx, a.mac(token))
	if err != nil {
		return nil, err
	}
	return &s.User, nil
}

// Verify resolves a bearer token to its signed-in user. Unknown tokens yield
// ErrUnauthorized.
func (a *Authenticator) Verify(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	s, err := a.sessions.Load(ctx, a.mac(token))
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return nil, ErrUnauthorized
		}
		return nil, errors.Wrap(err, "load session")
	}
	return &s.User, nil
}

func (a *Authenticator) signIn(ctx context.Context, op string, u User) (*Grant, error) {
	var raw [32]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return nil, errors.Wrap(err, "generate token")
	}
	token := hex.EncodeToString(raw[:])

	s := &Session{
		TokenHash: a.mac(token),
		User:      u,
		CreatedAt: a.now().UTC(),
	}
	if err := a.sessions.Save(ctx, s); err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}

	zctx.From(ctx).Info("Signed in",
		zap.String("user", u.ID),
		zap.String("role", string(u.Role)),
	)
	return &Grant{Token: token, User: u}, nil
}

func (a *Authenticator) wait(ctx context.Context, op string) error {
	if a.latency <= 0 {
		if err := ctx.Err(); err != nil {
			return &NetworkError{Op: op, Err: err}
		}
		return nil
	}
	t := time.NewTimer(a.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return &NetworkError{Op: op, Err: ctx.Err()}
	case <-t.C:
		return nil
	}
}

func (a *Authenticator) mac(s string) string {
	m := hmac.New(sha256.New, a.pepper)
	m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (f SignupForm) validate() error {
	switch {
	case strings.TrimSpace(f.Name) == "":
		return &FormError{Field: "name", Reason: "is required"}
	case strings.TrimSpace(f.Email) == "":
		return &FormError{Field: "email", Reason: "is required"}
	case len(f.Password) < MinPasswordLength:
		return &FormError{Field: "password", Reason: "is too short"}
	}
	if _, err := mail.ParseAddress(f.Email); err != nil {
		return &FormError{Field: "email", Reason: "is not a valid address"}
	}
	return nil
}
