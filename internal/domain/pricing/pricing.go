// Package pricing derives cart totals from line snapshots and a tax rate.
//
// Amounts are carried at full precision. Only Display rounds, to two
// fraction digits; totals sent to the remote store are not rounded.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-storefront/internal/domain/cart"
)

var hundred = decimal.NewFromInt(100)

// Totals holds the computed amounts for a cart.
type Totals struct {
	Subtotal   decimal.Decimal
	TaxPercent decimal.Decimal
	Tax        decimal.Decimal
	Total      decimal.Decimal
}

// Compute returns subtotal = sum(price * quantity) over lines,
// tax = subtotal * taxPercent / 100 and total = subtotal + tax.
func Compute(lines []cart.Line, taxPercent decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Subtotal())
	}
	tax := subtotal.Mul(taxPercent).Div(hundred)

	return Totals{
		Subtotal:   subtotal,
		TaxPercent: taxPercent,
		Tax:        tax,
		Total:      subtotal.Add(tax),
	}
}

// Display returns the totals rounded to two fraction digits.
func (t Totals) Display() Totals {
	return Totals{
		Subtotal:   t.Subtotal.Round(2),
		TaxPercent: t.TaxPercent,
		Tax:        t.Tax.Round(2),
		Total:      t.Total.Round(2),
	}
}
