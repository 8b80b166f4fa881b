package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// Goroutines fails when the process runs more than limit goroutines.
func Goroutines(limit int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > limit {
			return errors.Errorf("%d goroutines, limit %d", n, limit)
		}
		return nil
	}
}

// Pinger is implemented by pgxpool.Pool and the redis-backed stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping wraps a Pinger as a check.
func Ping(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}
