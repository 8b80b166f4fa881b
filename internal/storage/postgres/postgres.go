// Package postgres implements the store server repositories on PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-storefront/db"
)

// NewPool creates a pgxpool.Pool configured with shopspring/decimal support
// for NUMERIC columns.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse database config")
	}

	cfg.AfterConnect = func(_ context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create connection pool")
	}
	return pool, nil
}

// RunMigrations executes the embedded schema against the pool.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, db.Schema); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	return nil
}

// marshalExtra encodes unknown record fields for a JSONB column.
func marshalExtra(extra map[string]json.RawMessage) (string, error) {
	if len(extra) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(extra)
	if err != nil {
		return "", errors.Wrap(err, "marshal extra fields")
	}
	return string(data), nil
}

func unmarshalExtra(data []byte) (map[string]json.RawMessage, error) {
	var extra map[string]json.RawMessage
	if err := json.Unmarshal(data, &extra); err != nil {
		return nil, errors.Wrap(err, "unmarshal extra fields")
	}
	if len(extra) == 0 {
		return nil, nil
	}
	return extra, nil
}

// Store groups the repositories over one pool so a single value satisfies
// every repository interface the handler needs.
type Store struct {
	*ProductRepository
	*InvoiceRepository
	*ConfigRepository
	*UserRepository
}

// NewStore returns the repositories over pool, with the tax config row
// identified by configID.
func NewStore(pool *pgxpool.Pool, configID int64) *Store {
	return &Store{
		ProductRepository: NewProductRepository(pool),
		InvoiceRepository: NewInvoiceRepository(pool),
		ConfigRepository:  NewConfigRepository(pool, configID),
		UserRepository:    NewUserRepository(pool),
	}
}
