package app

import (
	"context"
	"io"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/inventrak/internal/broker"
	"github.com/xenking/inventrak/internal/domain/auth"
	"github.com/xenking/inventrak/internal/domain/catalog"
	"github.com/xenking/inventrak/internal/domain/pos"
	"github.com/xenking/inventrak/internal/domain/sale"
	"github.com/xenking/inventrak/internal/repository"
	"github.com/xenking/inventrak/internal/storage/memory"
	"github.com/xenking/inventrak/internal/storage/redis"
	"github.com/xenking/inventrak/internal/storage/sqlite"
	"github.com/xenking/inventrak/pkg/health"
)

// backends are the stores selected by configuration.
type backends struct {
	catalog   catalog.Repository
	sales     sale.Log
	sink      sale.Sink
	snapshots pos.SnapshotStore
	accounts  auth.AccountStore
	sessions  auth.SessionStore

	closers []io.Closer
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Close releases backends in reverse order of opening.
func (b *backends) Close(lg *zap.Logger) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil {
			lg.Warn("Close backend", zap.Error(err))
		}
	}
}

// openBackends connects every configured store and registers readiness
// checks for the remote ones. Unconfigured stores fall back to memory.
func openBackends(ctx context.Context, lg *zap.Logger, cfg *Config, hs *health.Health) (_ *backends, rerr error) {
	b := &backends{}
	defer func() {
		if rerr != nil {
			b.Close(lg)
		}
	}()

	if cfg.DatabaseURL != "" {
		pool, err := repository.NewPool(ctx, repository.PoolConfig{
			URL:      cfg.DatabaseURL,
			MaxConns: cfg.DBMaxConns,
			AppName:  "inventrak",
		})
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		b.closers = append(b.closers, closerFunc(func() error { pool.Close(); return nil }))

		if err := repository.RunMigrations(ctx, pool); err != nil {
			return nil, errors.Wrap(err, "run migrations")
		}
		hs.AddReadinessCheck("postgres", 5*time.Second, health.Ping("postgres", pool))

		sales := repository.NewSaleRepository(pool)
		b.catalog = repository.NewCatalogRepository(pool)
		b.sales = sales
		b.sink = sales
		lg.Info("Using PostgreSQL catalog")
	} else {
		items, err := memory.NewCatalog(memory.MockItems()...)
		if err != nil {
			return nil, errors.Wrap(err, "load demo catalog")
		}
		sales := memory.NewSaleLog(items)
		b.catalog = items
		b.sales = sales
		b.sink = sales
		lg.Info("Using built-in demo catalog")
	}

	if len(cfg.Kafka.Brokers) > 0 {
		pub := broker.NewSalePublisher(broker.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		b.closers = append(b.closers, pub)
		b.sink = sale.MultiSink{b.sink, pub}
		lg.Info("Publishing sale events",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}

	if cfg.RedisURL != "" {
		rdb, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, errors.Wrap(err, "connect redis")
		}
		b.closers = append(b.closers, rdb)
		hs.AddReadinessCheck("redis", 2*time.Second, health.Err("redis", rdb.Ping))
		b.snapshots = redis.NewSnapshotStore(rdb, cfg.SnapshotTTL)
	}

	if cfg.LocalDB != "" {
		db, err := sqlite.Open(ctx, cfg.LocalDB)
		if err != nil {
			return nil, errors.Wrap(err, "open local db")
		}
		b.closers = append(b.closers, db)
		hs.AddReadinessCheck("sqlite", 2*time.Second, health.PingContext("sqlite", db))
		b.accounts = sqlite.NewAccounts(db)
		b.sessions = sqlite.NewSessions(db)
	} else {
		b.accounts = memory.NewAccounts()
		b.sessions = memory.NewSessions()
	}

	return b, nil
}
