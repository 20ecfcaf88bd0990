package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/inventrak/internal/domain/auth"
	"github.com/xenking/inventrak/internal/domain/catalog"
	"github.com/xenking/inventrak/internal/storage/sqlite"
)

func TestLoadCatalog(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("demo", func(t *testing.T) {
		items, err := loadCatalog("", now)
		require.NoError(t, err)
		assert.Len(t, items, 6)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.json")
		require.NoError(t, os.WriteFile(path, []byte(`[
			{"id":"10","name":"Ghee (500ml)","price":"310.50","quantity":12,"threshold":4,"category":"Groceries","code":"G010"}
		]`), 0o600))

		items, err := loadCatalog(path, now)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "Ghee (500ml)", items[0].Name)
		assert.Equal(t, "310.5", items[0].Price.String())
		assert.Equal(t, now, items[0].CreatedAt)
	})

	t.Run("invalid item", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.json")
		require.NoError(t, os.WriteFile(path, []byte(`[{"id":"10","name":"","price":1}]`), 0o600))

		_, err := loadCatalog(path, now)
		var verr *catalog.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "name", verr.Field)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loadCatalog(filepath.Join(t.TempDir(), "nope.json"), now)
		require.ErrorContains(t, err, "read catalog file")
	})
}

func TestSeedAccounts(t *testing.T) {
	ctx := context.Background()
	o := options{
		localDB: filepath.Join(t.TempDir(), "local.db"),
		pepper:  "pepper",
		cashier: account{name: "Asha", email: "Asha@Shop.test", password: "counter1"},
		admin:   account{name: "Ravi", email: "ravi@shop.test", password: "owner123"},
	}
	require.NoError(t, seedAccounts(ctx, o))
	// Seeding twice resets rather than failing on the taken email.
	require.NoError(t, seedAccounts(ctx, o))

	db, err := sqlite.Open(ctx, o.localDB)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	a := auth.NewAuthenticator(sqlite.NewAccounts(db), sqlite.NewSessions(db), auth.Config{Pepper: []byte("pepper")})

	g, err := a.Login(ctx, "asha@shop.test", "counter1", auth.RoleCashier)
	require.NoError(t, err)
	assert.Equal(t, "Asha", g.User.Name)

	g, err = a.Login(ctx, "ravi@shop.test", "owner123", auth.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, g.User.Role)
}

func TestSeedAccounts_Errors(t *testing.T) {
	tests := []struct {
		name    string
		o       options
		wantErr string
	}{
		{
			name:    "no pepper",
			o:       options{cashier: account{email: "c@shop.test", password: "counter1"}},
			wantErr: "auth pepper is required",
		},
		{
			name:    "no cashier password",
			o:       options{pepper: "p", cashier: account{email: "c@shop.test"}},
			wantErr: "cashier password is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.o.localDB = filepath.Join(t.TempDir(), "local.db")
			require.ErrorContains(t, seedAccounts(context.Background(), tt.o), tt.wantErr)
		})
	}
}

func TestProvisioning(t *testing.T) {
	o := options{cashier: account{email: "c@shop.test"}}
	require.Len(t, provisioning(o), 1)

	o.admin.email = "a@shop.test"
	p := provisioning(o)
	require.Len(t, p, 2)
	assert.Equal(t, auth.RoleAdmin, p[1].role)
}
