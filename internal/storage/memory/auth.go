package memory

import (
	"context"
	"sync"

	"github.com/xenking/inventrak/internal/domain/auth"
)

var (
	_ auth.AccountStore = (*Accounts)(nil)
	_ auth.SessionStore = (*Sessions)(nil)
)

// Accounts is an auth.AccountStore held in memory.
type Accounts struct {
	mu      sync.RWMutex
	byEmail map[string]auth.Account
}

// NewAccounts returns an empty account store.
func NewAccounts() *Accounts {
	return &Accounts{byEmail: make(map[string]auth.Account)}
}

// FindByEmail implements auth.AccountStore.
func (a *Accounts) FindByEmail(_ context.Context, email string) (*auth.Account, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	acc, ok := a.byEmail[auth.NormalizeEmail(email)]
	if !ok {
		return nil, auth.ErrAccountNotFound
	}
	return &acc, nil
}

// Create implements auth.AccountStore.
func (a *Accounts) Create(_ context.Context, acc *auth.Account) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	email := auth.NormalizeEmail(acc.Email)
	if _, ok := a.byEmail[email]; ok {
		return auth.ErrEmailTaken
	}
	stored := *acc
	stored.Email = email
	a.byEmail[email] = stored
	return nil
}

// Sessions is an auth.SessionStore held in memory.
type Sessions struct {
	mu     sync.Mutex
	byHash map[string]auth.Session
}

// NewSessions returns an empty session store.
func NewSessions() *Sessions {
	return &Sessions{byHash: make(map[string]auth.Session)}
}

// Save implements auth.SessionStore.
func (s *Sessions) Save(_ context.Context, sess *auth.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byHash[sess.TokenHash] = *sess
	return nil
}

// Load implements auth.SessionStore.
func (s *Sessions) Load(_ context.Context, tokenHash string) (*auth.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byHash[tokenHash]
	if !ok {
		return nil, auth.ErrNoSession
	}
	return &sess, nil
}

// Clear implements auth.SessionStore.
func (s *Sessions) Clear(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byHash, tokenHash)
	return nil
}
