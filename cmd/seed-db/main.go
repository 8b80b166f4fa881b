// Command seed-db loads a store fixture (.json or .json.gz) into the store
// server's PostgreSQL database.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/seed"
	"github.com/xenking/kart-storefront/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		fixture     string
		configID    int64
	)
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&fixture, "file", "db/seed/store.json", "fixture file, gzipped when it ends in .gz")
	flag.Int64Var(&configID, "config-id", 1, "id of the tax config row")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(zctx.Base(ctx, lg), databaseURL, fixture, configID); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, databaseURL, fixture string, configID int64) error {
	lg := zctx.From(ctx)

	data, err := seed.ReadFile(fixture)
	if err != nil {
		return err
	}

	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	return seed.Apply(ctx, postgres.NewStore(pool, configID), data)
}
