package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-storefront/internal/domain/product"
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

const productColumns = `id, name, price, image, stock, extra`

// List returns all products ordered by id.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, errors.Wrap(err, "scan products")
	}
	return products, nil
}

// GetByID returns product.ErrNotFound when no row matches.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %d", id)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "scan product %d", id)
	}
	return &p, nil
}

// Update replaces every column of an existing product.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	extra, err := marshalExtra(p.Extra)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE products SET name = $2, price = $3, image = $4, stock = $5, extra = $6 WHERE id = $1`,
		p.ID, p.Name, p.Price, p.Image, p.Stock, extra,
	)
	if err != nil {
		return errors.Wrapf(err, "update product %d", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// UpsertProduct inserts or replaces a product.
func (r *ProductRepository) UpsertProduct(ctx context.Context, p *product.Product) error {
	extra, err := marshalExtra(p.Extra)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO products (`+productColumns+`) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, price = EXCLUDED.price, image = EXCLUDED.image,
			stock = EXCLUDED.stock, extra = EXCLUDED.extra`,
		p.ID, p.Name, p.Price, p.Image, p.Stock, extra,
	)
	if err != nil {
		return errors.Wrapf(err, "upsert product %d", p.ID)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p     product.Product
		extra []byte
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Image, &p.Stock, &extra); err != nil {
		return product.Product{}, err
	}
	var err error
	p.Extra, err = unmarshalExtra(extra)
	return p, err
}
