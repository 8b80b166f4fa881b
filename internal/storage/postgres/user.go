package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-storefront/internal/domain/session"
)

var _ session.UserRepository = (*UserRepository)(nil)

// UserRepository provides user lookups backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// FindByDNI returns session.ErrUserNotFound when no row matches.
func (r *UserRepository) FindByDNI(ctx context.Context, dni string) (*session.User, error) {
	var u session.User
	err := r.pool.QueryRow(ctx,
		`SELECT dni, name, password FROM users WHERE dni = $1`, dni,
	).Scan(&u.DNI, &u.Name, &u.Password)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrUserNotFound
		}
		return nil, errors.Wrapf(err, "find user %s", dni)
	}
	return &u, nil
}

// UpsertUser inserts or replaces a user.
func (r *UserRepository) UpsertUser(ctx context.Context, u *session.User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (dni, name, password) VALUES ($1, $2, $3)
		ON CONFLICT (dni) DO UPDATE SET name = EXCLUDED.name, password = EXCLUDED.password`,
		u.DNI, u.Name, u.Password,
	)
	if err != nil {
		return errors.Wrapf(err, "upsert user %s", u.DNI)
	}
	return nil
}
