package product

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase. Stock is
// authoritative on the remote store; every other field is read-only for the
// client.
type Product struct {
	ID    int64
	Name  string
	Price decimal.Decimal
	Image string
	Stock int

	// Extra holds fields of the remote record that the client does not
	// interpret. Full-record updates write them back unchanged.
	Extra map[string]json.RawMessage
}

// InStock reports whether at least one unit is available.
func (p Product) InStock() bool {
	return p.Stock > 0
}

// Repository defines the catalog operations used by the storefront. Update
// replaces the whole record, which is how stock is debited.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id int64) (*Product, error)
	Update(ctx context.Context, p *Product) error
}
