package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck fails when more than limit goroutines are running.
func GoroutineCountCheck(limit int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > limit {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, limit)
		}
		return nil
	}
}

// Pinger is implemented by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ContextPinger is implemented by *sqlx.DB and *sql.DB.
type ContextPinger interface {
	PingContext(ctx context.Context) error
}

// Ping checks p.
func Ping(name string, p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return errors.Wrapf(p.Ping(ctx), "ping %s", name)
	}
}

// PingContext checks p.
func PingContext(name string, p ContextPinger) CheckFunc {
	return func(ctx context.Context) error {
		return errors.Wrapf(p.PingContext(ctx), "ping %s", name)
	}
}

// Err adapts commands that report their result through Err, like the redis
// client's Ping.
func Err[C interface{ Err() error }](name string, f func(ctx context.Context) C) CheckFunc {
	return func(ctx context.Context) error {
		return errors.Wrapf(f(ctx).Err(), "ping %s", name)
	}
}
