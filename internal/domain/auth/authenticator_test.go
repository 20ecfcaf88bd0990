package auth

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type mockAccounts struct {
	byEmail map[string]*Account
	err     error
}

func newMockAccounts() *mockAccounts {
	return &mockAccounts{byEmail: make(map[string]*Account)}
}

func (m *mockAccounts) FindByEmail(_ context.Context, email string) (*Account, error) {
	if m.err != nil {
		return nil, m.err
	}
	acc, ok := m.byEmail[email]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return acc, nil
}

func (m *mockAccounts) Create(_ context.Context, acc *Account) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.byEmail[acc.Email]; ok {
		return ErrEmailTaken
	}
	m.byEmail[acc.Email] = acc
	return nil
}

type mockSessions struct {
	byHash map[string]*Session
	last   *Session
	err    error
}

func (m *mockSessions) Save(_ context.Context, s *Session) error {
	if m.err != nil {
		return m.err
	}
	m.byHash[s.TokenHash] = s
	m.last = s
	return nil
}

func (m *mockSessions) Load(_ context.Context, tokenHash string) (*Session, error) {
	if m.err != nil {
		return nil, m.err
	}
	s, ok := m.byHash[tokenHash]
	if !ok {
		return nil, ErrNoSession
	}
	return s, nil
}

func (m *mockSessions) Clear(_ context.Context, tokenHash string) error {
	delete(m.byHash, tokenHash)
	return m.err
}

// --- Helpers ---

func newTestAuthenticator(cfg Config) (*Authenticator, *mockAccounts, *mockSessions) {
	if cfg.Pepper == nil {
		cfg.Pepper = []byte("test-pepper")
	}
	accounts := newMockAccounts()
	sessions := &mockSessions{byHash: make(map[string]*Session)}
	return NewAuthenticator(accounts, sessions, cfg), accounts, sessions
}

func validForm() SignupForm {
	return SignupForm{
		Name:             "Meera",
		Email:            "Meera@Example.com",
		Password:         "secret123",
		CompanyName:      "Meera Stores",
		BusinessCategory: CategoryKirana,
	}
}

// --- Tests ---

func TestRole_Tabs(t *testing.T) {
	assert.Equal(t, []Tab{TabPOS}, RoleCashier.Tabs())
	assert.Len(t, RoleAdmin.Tabs(), 6)
	assert.Nil(t, Role("owner").Tabs())

	assert.True(t, RoleAdmin.Allows(TabReports))
	assert.True(t, RoleCashier.Allows(TabPOS))
	assert.False(t, RoleCashier.Allows(TabInventory))
	assert.False(t, Role("").Allows(TabPOS))
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Cashier ")
	require.NoError(t, err)
	assert.Equal(t, RoleCashier, r)

	_, err = ParseRole("manager")
	require.ErrorIs(t, err, ErrUnknownRole)
}

func TestAuthenticator_Signup(t *testing.T) {
	ctx := context.Background()
	a, accounts, sessions := newTestAuthenticator(Config{})

	g, err := a.Signup(ctx, validForm())
	require.NoError(t, err)
	assert.NotEmpty(t, g.Token)
	assert.Equal(t, RoleAdmin, g.User.Role)
	assert.Equal(t, "meera@example.com", g.User.Email)
	assert.NotEmpty(t, g.User.ID)

	acc := accounts.byEmail["meera@example.com"]
	require.NotNil(t, acc)
	assert.NotEqual(t, "secret123", acc.PasswordHash)
	assert.Equal(t, a.HashPassword("secret123"), acc.PasswordHash)

	require.NotNil(t, sessions.last)
	assert.NotEqual(t, g.Token, sessions.last.TokenHash)

	u, err := a.Current(ctx, g.Token)
	require.NoError(t, err)
	assert.Equal(t, g.User, *u)
}

func TestAuthenticator_Signup_OtherCategory(t *testing.T) {
	a, _, _ := newTestAuthenticator(Config{})
	form := validForm()
	form.BusinessCategory = CategoryOther
	form.OtherCategory = " Stationery "

	g, err := a.Signup(context.Background(), form)
	require.NoError(t, err)
	assert.Equal(t, BusinessCategory("Stationery"), g.User.BusinessCategory)
}

func TestAuthenticator_Signup_Validation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(f *SignupForm)
		wantField string
	}{
		{name: "missing name", mutate: func(f *SignupForm) { f.Name = " " }, wantField: "name"},
		{name: "missing email", mutate: func(f *SignupForm) { f.Email = "" }, wantField: "email"},
		{name: "bad email", mutate: func(f *SignupForm) { f.Email = "not-an-email" }, wantField: "email"},
		{name: "short password", mutate: func(f *SignupForm) { f.Password = "abc" }, wantField: "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, accounts, _ := newTestAuthenticator(Config{})
			form := validForm()
			tt.mutate(&form)

			_, err := a.Signup(context.Background(), form)
			var fErr *FormError
			require.ErrorAs(t, err, &fErr)
			assert.Equal(t, tt.wantField, fErr.Field)
			assert.Empty(t, accounts.byEmail)
		})
	}
}

func TestAuthenticator_Signup_EmailTaken(t *testing.T) {
	ctx := context.Background()
	a, _, _ := newTestAuthenticator(Config{})

	_, err := a.Signup(ctx, validForm())
	require.NoError(t, err)
	_, err = a.Signup(ctx, validForm())
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestAuthenticator_Login(t *testing.T) {
	ctx := context.Background()
	a, accounts, _ := newTestAuthenticator(Config{})
	cashier := a.NewAccount(User{Name: "Ravi", Email: "ravi@example.com", Role: RoleCashier}, "till-pass")
	accounts.byEmail[cashier.Email] = cashier

	tests := []struct {
		name     string
		email    string
		password string
		role     Role
		wantErr  error
	}{
		{name: "ok", email: "RAVI@example.com ", password: "till-pass", role: RoleCashier},
		{name: "wrong password", email: "ravi@example.com", password: "nope", role: RoleCashier, wantErr: ErrInvalidCredentials},
		{name: "unknown email", email: "who@example.com", password: "till-pass", role: RoleCashier, wantErr: ErrInvalidCredentials},
		{name: "role mismatch", email: "ravi@example.com", password: "till-pass", role: RoleAdmin, wantErr: ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := a.Login(ctx, tt.email, tt.password, tt.role)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, cashier.ID, g.User.ID)
			assert.Equal(t, RoleCashier, g.User.Role)
		})
	}
}

func TestAuthenticator_NetworkErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("account store down", func(t *testing.T) {
		a, accounts, _ := newTestAuthenticator(Config{})
		accounts.err = errors.New("connection refused")

		_, err := a.Login(ctx, "a@b.c", "secret123", RoleAdmin)
		var nErr *NetworkError
		require.ErrorAs(t, err, &nErr)
		assert.Equal(t, "login", nErr.Op)

		_, err = a.Signup(ctx, validForm())
		require.ErrorAs(t, err, &nErr)
		assert.Equal(t, "signup", nErr.Op)
	})

	t.Run("session store down", func(t *testing.T) {
		a, _, sessions := newTestAuthenticator(Config{})
		sessions.err = errors.New("disk full")

		_, err := a.Signup(ctx, validForm())
		var nErr *NetworkError
		require.ErrorAs(t, err, &nErr)
	})

	t.Run("deadline shorter than latency", func(t *testing.T) {
		a, _, _ := newTestAuthenticator(Config{Latency: time.Second})
		ctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()

		_, err := a.Login(ctx, "a@b.c", "secret123", RoleAdmin)
		var nErr *NetworkError
		require.ErrorAs(t, err, &nErr)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("cancelled without latency", func(t *testing.T) {
		a, _, _ := newTestAuthenticator(Config{})
		ctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := a.Signup(ctx, validForm())
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestAuthenticator_LatencyIsApplied(t *testing.T) {
	a, _, _ := newTestAuthenticator(Config{Latency: 20 * time.Millisecond})
	start := time.Now()
	_, err := a.Signup(context.Background(), validForm())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestAuthenticator_VerifyAndLogout(t *testing.T) {
	ctx := context.Background()
	a, _, _ := newTestAuthenticator(Config{})

	g, err := a.Signup(ctx, validForm())
	require.NoError(t, err)

	u, err := a.Verify(ctx, g.Token)
	require.NoError(t, err)
	assert.Equal(t, g.User.ID, u.ID)

	_, err = a.Verify(ctx, "forged")
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = a.Verify(ctx, "")
	require.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, a.Logout(ctx, g.Token))
	_, err = a.Verify(ctx, g.Token)
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = a.Current(ctx, g.Token)
	require.ErrorIs(t, err, ErrNoSession)
	require.ErrorIs(t, a.Logout(ctx, ""), ErrUnauthorized)
}

func TestAuthenticator_ConcurrentSignIns(t *testing.T) {
	ctx := context.Background()
	a, accounts, _ := newTestAuthenticator(Config{})

	owner, err := a.Signup(ctx, validForm())
	require.NoError(t, err)

	cashier := a.NewAccount(User{Name: "Till", Email: "till@example.com", Role: RoleCashier}, "till-pass")
	accounts.byEmail[cashier.Email] = cashier
	till, err := a.Login(ctx, "till@example.com", "till-pass", RoleCashier)
	require.NoError(t, err)

	// Both users stay signed in side by side.
	u, err := a.Verify(ctx, owner.Token)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, u.Role)
	u, err = a.Verify(ctx, till.Token)
	require.NoError(t, err)
	assert.Equal(t, RoleCashier, u.Role)

	// A second sign-in of the same user keeps the first token valid.
	again, err := a.Login(ctx, "till@example.com", "till-pass", RoleCashier)
	require.NoError(t, err)
	assert.NotEqual(t, till.Token, again.Token)
	_, err = a.Verify(ctx, till.Token)
	require.NoError(t, err)

	require.NoError(t, a.Logout(ctx, owner.Token))
	_, err = a.Verify(ctx, owner.Token)
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = a.Verify(ctx, till.Token)
	require.NoError(t, err)
	_, err = a.Verify(ctx, again.Token)
	require.NoError(t, err)
}

func TestHashPassword_DependsOnPepper(t *testing.T) {
	a, _, _ := newTestAuthenticator(Config{Pepper: []byte("one")})
	b, _, _ := newTestAuthenticator(Config{Pepper: []byte("two")})
	assert.NotEqual(t, a.HashPassword("same"), b.HashPassword("same"))
	assert.Equal(t, a.HashPassword("same"), a.HashPassword("same"))
}
