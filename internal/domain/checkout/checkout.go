package checkout

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-storefront/internal/domain/invoice"
	"github.com/xenking/kart-storefront/internal/domain/pricing"
)

// State is a step of the checkout workflow. The workflow is linear:
//
//	Idle -> Pricing -> CreatingHeader -> CreatingLines -> [DebitingStock] -> AdvancingSequence -> Cleared
//
// Failed is reachable from every step and halts the remaining ones. Nothing
// already written to the remote store is undone.
type State string

const (
	StateIdle              State = "idle"
	StatePricing           State = "pricing"
	StateCreatingHeader    State = "creating_header"
	StateCreatingLines     State = "creating_lines"
	StateDebitingStock     State = "debiting_stock"
	StateAdvancingSequence State = "advancing_sequence"
	StateCleared           State = "cleared"
	StateFailed            State = "failed"
)

// IsTerminal reports whether no further step follows s.
func (s State) IsTerminal() bool {
	return s == StateCleared || s == StateFailed
}

func (s State) String() string {
	return string(s)
}

// Validation errors, returned before any remote call.
var (
	ErrEmptyCart      = errors.New("cart is empty")
	ErrMissingContact = errors.New("email, address and phone are required")
	ErrInvalidStatus  = errors.New("status must be paid or pending")
)

// ErrInsufficientStock is the cause of a StockError when the live stock is
// below the requested quantity.
var ErrInsufficientStock = errors.New("insufficient stock")

// StepError reports the step a checkout failed at.
type StepError struct {
	State State
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("checkout %s: %v", e.State, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// LineError reports an invoice line that could not be written.
type LineError struct {
	ProductID int64
	Err       error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("create invoice line for product %d: %v", e.ProductID, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// StockError reports a cart line whose stock could not be debited.
type StockError struct {
	ProductID   int64
	ProductName string
	Requested   int
	Available   int
	Err         error
}

func (e *StockError) Error() string {
	if errors.Is(e.Err, ErrInsufficientStock) {
		return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
			e.ProductName, e.Requested, e.Available)
	}
	return fmt.Sprintf("update stock for %s: %v", e.ProductName, e.Err)
}

func (e *StockError) Unwrap() error {
	return e.Err
}

// Customer identifies who the invoice is issued to.
type Customer struct {
	ID   string
	Name string
}

// Contact holds the user-entered contact fields of the invoice.
type Contact struct {
	Email   string
	Address string
	Phone   string
}

// Request is the input of a checkout.
type Request struct {
	Customer Customer
	Contact  Contact
	Status   invoice.Status
}

func (r Request) validate() error {
	if !r.Status.Valid() {
		return ErrInvalidStatus
	}
	if r.Contact.Email == "" || r.Contact.Address == "" || r.Contact.Phone == "" {
		return ErrMissingContact
	}
	return nil
}

// Result describes what a checkout did, including partial failures.
type Result struct {
	// ID correlates the log lines and spans of one checkout attempt.
	ID            string
	InvoiceNumber string
	Status        invoice.Status
	Totals        pricing.Totals
	State         State

	LinesWritten int
	LineErrors   []*LineError

	// Debited lists the products whose stock was written back.
	Debited     []int64
	StockErrors []*StockError
}

// Message is the success summary shown to the user.
func (r *Result) Message() string {
	return fmt.Sprintf("Invoice %s created", r.InvoiceNumber)
}

// StockReport lists stock debit problems, one per line, or "" when there
// were none.
func (r *Result) StockReport() string {
	if len(r.StockErrors) == 0 {
		return ""
	}
	msgs := make([]string, len(r.StockErrors))
	for i, e := range r.StockErrors {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}

// Partial reports whether the checkout completed with line or stock errors.
func (r *Result) Partial() bool {
	return len(r.LineErrors) > 0 || len(r.StockErrors) > 0
}
