package invoice

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DefaultPrefix is prepended to the sequence number to form invoice numbers.
const DefaultPrefix = "FAC"

// ErrConfigNotFound is returned when the shared TaxConfig record is missing.
var ErrConfigNotFound = errors.New("tax config not found")

// Status is the terminal status an invoice is submitted with.
type Status string

const (
	// StatusPaid marks an invoice settled at checkout; stock is debited.
	StatusPaid Status = "paid"
	// StatusPending marks an invoice to be paid later; stock is untouched.
	StatusPending Status = "pending"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusPaid || s == StatusPending
}

func (s Status) String() string {
	return string(s)
}

// ParseStatus maps user input ("paid", "pending") to a Status.
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", errors.Errorf("unknown invoice status %q", v)
	}
	return s, nil
}

// Number derives the invoice number from the prefix and a sequence value.
func Number(prefix string, seq int64) string {
	return prefix + strconv.FormatInt(seq, 10)
}

// Header is the top-level invoice record.
type Header struct {
	Number       string
	CustomerID   string
	CustomerName string
	Email        string
	Address      string
	Phone        string
	IssuedAt     time.Time
	Total        decimal.Decimal
	Status       Status
}

// Line is the per-product portion of an invoice.
type Line struct {
	InvoiceNumber string
	ProductID     int64
	Quantity      int
	Subtotal      decimal.Decimal
}

// TaxConfig is the single shared remote record holding the tax percentage and
// the next invoice sequence number.
type TaxConfig struct {
	ID           int64
	TaxPercent   decimal.Decimal
	NextSequence int64

	// Extra holds fields of the remote record that the client does not
	// interpret. UpdateTaxConfig writes them back unchanged.
	Extra map[string]json.RawMessage
}

// Repository persists invoice headers and lines. Records are created once and
// never updated by the storefront.
type Repository interface {
	CreateHeader(ctx context.Context, h *Header) error
	CreateLine(ctx context.Context, l *Line) error
}

// ConfigRepository reads and overwrites the shared TaxConfig record. Writes
// are plain overwrites with no version check.
type ConfigRepository interface {
	GetTaxConfig(ctx context.Context) (*TaxConfig, error)
	UpdateTaxConfig(ctx context.Context, cfg *TaxConfig) error
}
