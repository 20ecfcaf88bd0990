// Command seed-db prepares a store: it migrates and fills the PostgreSQL
// catalog and provisions accounts in the device-local SQLite database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/inventrak/internal/domain/auth"
	"github.com/xenking/inventrak/internal/domain/catalog"
	"github.com/xenking/inventrak/internal/repository"
	"github.com/xenking/inventrak/internal/storage/memory"
	"github.com/xenking/inventrak/internal/storage/sqlite"
)

type itemJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Threshold   int             `json:"threshold"`
	Category    string          `json:"category"`
	Code        string          `json:"code"`
	Description string          `json:"description"`
}

type options struct {
	databaseURL string
	catalogFile string
	localDB     string
	pepper      string
	cashier     account
	admin       account
}

type account struct {
	name     string
	email    string
	password string
}

func main() {
	var o options

	flag.StringVar(&o.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env); empty skips the catalog")
	flag.StringVar(&o.catalogFile, "catalog-file", "", "path to a catalog JSON array; empty uses the built-in demo catalog")
	flag.StringVar(&o.localDB, "local-db", "", "SQLite path for accounts (or INVENTRAK_LOCAL_DB env); empty skips accounts")
	flag.StringVar(&o.pepper, "auth-pepper", "", "HMAC pepper for password hashing (or INVENTRAK_AUTH_PEPPER env)")
	flag.StringVar(&o.cashier.name, "cashier-name", "Counter Cashier", "cashier display name")
	flag.StringVar(&o.cashier.email, "cashier-email", "cashier@inventrak.local", "cashier email")
	flag.StringVar(&o.cashier.password, "cashier-password", "", "cashier password (or INVENTRAK_SEED_CASHIER_PASSWORD env)")
	flag.StringVar(&o.admin.email, "admin-email", "", "also provision an admin with this email")
	flag.StringVar(&o.admin.name, "admin-name", "Store Admin", "admin display name")
	flag.StringVar(&o.admin.password, "admin-password", "", "admin password (or INVENTRAK_SEED_ADMIN_PASSWORD env)")
	flag.Parse()

	o.fromEnv()
	if o.databaseURL == "" && o.localDB == "" {
		slog.Error("nothing to seed: set --database-url and/or --local-db")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, o); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func (o *options) fromEnv() {
	env := func(dst *string, key string) {
		if *dst == "" {
			*dst = os.Getenv(key)
		}
	}
	env(&o.databaseURL, "DATABASE_URL")
	env(&o.localDB, "INVENTRAK_LOCAL_DB")
	env(&o.pepper, "INVENTRAK_AUTH_PEPPER")
	env(&o.cashier.password, "INVENTRAK_SEED_CASHIER_PASSWORD")
	env(&o.admin.password, "INVENTRAK_SEED_ADMIN_PASSWORD")
}

func run(ctx context.Context, o options) error {
	if o.databaseURL != "" {
		if err := seedCatalog(ctx, o.databaseURL, o.catalogFile); err != nil {
			return errors.Wrap(err, "seed catalog")
		}
	}
	if o.localDB != "" {
		if err := seedAccounts(ctx, o); err != nil {
			return errors.Wrap(err, "seed accounts")
		}
	}
	return nil
}

func seedCatalog(ctx context.Context, databaseURL, catalogFile string) error {
	items, err := loadCatalog(catalogFile, time.Now().UTC())
	if err != nil {
		return err
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, repository.PoolConfig{URL: databaseURL, AppName: "seed-db"})
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	slog.Info("upserting catalog", slog.Int("count", len(items)))

	if err := repository.NewCatalogRepository(pool).Upsert(ctx, items); err != nil {
		return errors.Wrap(err, "upsert catalog")
	}
	for _, it := range items {
		slog.Info("upserted item", slog.String("id", it.ID), slog.String("name", it.Name))
	}
	return nil
}

// loadCatalog reads a JSON array of items from path, or returns the demo
// catalog when path is empty.
func loadCatalog(path string, now time.Time) ([]catalog.Item, error) {
	if path == "" {
		slog.Info("using built-in demo catalog")
		return memory.MockItems(), nil
	}

	slog.Info("reading catalog file", slog.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read catalog file")
	}
	var raw []itemJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "parse catalog JSON")
	}

	items := make([]catalog.Item, 0, len(raw))
	for _, r := range raw {
		it := catalog.Item{
			ID:          r.ID,
			Name:        r.Name,
			Price:       r.Price,
			Quantity:    r.Quantity,
			Threshold:   r.Threshold,
			Category:    r.Category,
			Code:        r.Code,
			Description: r.Description,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := it.Validate(); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

func seedAccounts(ctx context.Context, o options) error {
	if o.pepper == "" {
		return errors.New("auth pepper is required: set --auth-pepper or INVENTRAK_AUTH_PEPPER")
	}

	slog.Info("opening local database", slog.String("path", o.localDB))

	db, err := sqlite.Open(ctx, o.localDB)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	accounts := sqlite.NewAccounts(db)
	a := auth.NewAuthenticator(accounts, sqlite.NewSessions(db), auth.Config{Pepper: []byte(o.pepper)})

	for _, p := range provisioning(o) {
		if p.password == "" {
			return errors.Errorf("%s password is required", p.role)
		}
		acc := a.NewAccount(auth.User{Name: p.name, Email: p.email, Role: p.role}, p.password)
		if err := accounts.Upsert(ctx, acc); err != nil {
			return errors.Wrapf(err, "upsert %s", p.role)
		}
		slog.Info("upserted account", slog.String("email", acc.Email), slog.String("role", string(acc.Role)))
	}
	return nil
}

type provision struct {
	account
	role auth.Role
}

// provisioning lists the accounts to create: always the cashier, and an
// admin when an admin email is given.
func provisioning(o options) []provision {
	out := []provision{{account: o.cashier, role: auth.RoleCashier}}
	if o.admin.email != "" {
		out = append(out, provision{account: o.admin, role: auth.RoleAdmin})
	}
	return out
}
