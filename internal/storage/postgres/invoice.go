package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-storefront/internal/domain/invoice"
)

var (
	_ invoice.Repository       = (*InvoiceRepository)(nil)
	_ invoice.ConfigRepository = (*ConfigRepository)(nil)
)

// InvoiceRepository stores invoice headers and lines.
type InvoiceRepository struct {
	pool *pgxpool.Pool
}

// NewInvoiceRepository returns an InvoiceRepository that uses the given pool.
func NewInvoiceRepository(pool *pgxpool.Pool) *InvoiceRepository {
	return &InvoiceRepository{pool: pool}
}

func (r *InvoiceRepository) CreateHeader(ctx context.Context, h *invoice.Header) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO invoices (number, customer_dni, customer_name, email, address, phone, issued_at, total, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		h.Number, h.CustomerID, h.CustomerName, h.Email, h.Address, h.Phone, h.IssuedAt, h.Total, h.Status.String(),
	)
	if err != nil {
		return errors.Wrapf(err, "create invoice %s", h.Number)
	}
	return nil
}

func (r *InvoiceRepository) CreateLine(ctx context.Context, l *invoice.Line) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO invoice_lines (invoice_number, product_id, quantity, subtotal) VALUES ($1, $2, $3, $4)`,
		l.InvoiceNumber, l.ProductID, l.Quantity, l.Subtotal,
	)
	if err != nil {
		return errors.Wrapf(err, "create line for invoice %s", l.InvoiceNumber)
	}
	return nil
}

// HeadersByNumber returns every header stored under number, oldest first.
func (r *InvoiceRepository) HeadersByNumber(ctx context.Context, number string) ([]invoice.Header, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT number, customer_dni, customer_name, email, address, phone, issued_at, total, status
		FROM invoices WHERE number = $1 ORDER BY id`, number)
	if err != nil {
		return nil, errors.Wrapf(err, "list invoices %s", number)
	}
	headers, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (invoice.Header, error) {
		var (
			h      invoice.Header
			status string
		)
		err := row.Scan(&h.Number, &h.CustomerID, &h.CustomerName, &h.Email, &h.Address, &h.Phone,
			&h.IssuedAt, &h.Total, &status)
		h.Status = invoice.Status(status)
		return h, err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scan invoices %s", number)
	}
	return headers, nil
}

// LinesByNumber returns the lines stored under number in insertion order.
func (r *InvoiceRepository) LinesByNumber(ctx context.Context, number string) ([]invoice.Line, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT invoice_number, product_id, quantity, subtotal FROM invoice_lines
		WHERE invoice_number = $1 ORDER BY id`, number)
	if err != nil {
		return nil, errors.Wrapf(err, "list lines %s", number)
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (invoice.Line, error) {
		var l invoice.Line
		err := row.Scan(&l.InvoiceNumber, &l.ProductID, &l.Quantity, &l.Subtotal)
		return l, err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scan lines %s", number)
	}
	return lines, nil
}

// ConfigRepository reads and overwrites one tax_config row.
type ConfigRepository struct {
	pool *pgxpool.Pool
	id   int64
}

// NewConfigRepository returns a ConfigRepository for the row with the given id.
func NewConfigRepository(pool *pgxpool.Pool, id int64) *ConfigRepository {
	return &ConfigRepository{pool: pool, id: id}
}

func (r *ConfigRepository) GetTaxConfig(ctx context.Context) (*invoice.TaxConfig, error) {
	var (
		c     invoice.TaxConfig
		extra []byte
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, tax_percent, next_sequence, extra FROM tax_config WHERE id = $1`, r.id,
	).Scan(&c.ID, &c.TaxPercent, &c.NextSequence, &extra)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, invoice.ErrConfigNotFound
		}
		return nil, errors.Wrap(err, "get tax config")
	}
	if c.Extra, err = unmarshalExtra(extra); err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateTaxConfig overwrites the row, creating it when absent. There is no
// version check.
func (r *ConfigRepository) UpdateTaxConfig(ctx context.Context, c *invoice.TaxConfig) error {
	extra, err := marshalExtra(c.Extra)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO tax_config (id, tax_percent, next_sequence, extra) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			tax_percent = EXCLUDED.tax_percent, next_sequence = EXCLUDED.next_sequence, extra = EXCLUDED.extra`,
		r.id, c.TaxPercent, c.NextSequence, extra,
	)
	if err != nil {
		return errors.Wrap(err, "update tax config")
	}
	return nil
}
