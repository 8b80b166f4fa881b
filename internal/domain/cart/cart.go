// Package cart implements the storefront cart: an ordered list of product
// snapshots with requested quantities, kept in memory and written back to a
// kv.Store after every mutation.
//
// The in-memory update happens first and the storage write second. A crash in
// between leaves the persisted copy one mutation behind; there is no
// transaction across the two.
package cart

import (
	"context"
	"encoding/json"
	"slices"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/storage/kv"
)

// DefaultKey is the storage key the serialized cart lives under.
const DefaultKey = "cart"

var (
	// ErrLineNotFound is returned when an operation targets a product that
	// is not in the cart.
	ErrLineNotFound = errors.New("product not in cart")
	// ErrOutOfStock is returned when adding a product with no stock.
	ErrOutOfStock = errors.New("product out of stock")
)

// Line is one product in the cart. Price and Stock are captured when the
// product is first added and are not refreshed afterwards.
type Line struct {
	ProductID int64           `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image"`
	Stock     int             `json:"stock"`
	Quantity  int             `json:"quantity"`
}

// Subtotal returns the snapshot unit price times the quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// ClampQuantity bounds qty into [1, stock]. When stock is below 1 the range
// is empty and 0 is returned.
func ClampQuantity(qty, stock int) int {
	if stock < 1 {
		return 0
	}
	return min(max(qty, 1), stock)
}

// Store owns the cart state and its persisted copy.
type Store struct {
	mu    sync.Mutex
	blobs kv.Store
	key   string
	lines []Line
}

// NewStore returns an empty Store persisting to blobs under key. Call Load to
// restore a previously persisted cart.
func NewStore(blobs kv.Store, key string) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{blobs: blobs, key: key}
}

// Load replaces the in-memory cart with the persisted one. A missing or
// unparseable blob yields an empty cart; only storage failures are errors.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.blobs.Get(ctx, s.key)
	if errors.Is(err, kv.ErrNotFound) {
		s.lines = nil
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "read cart")
	}

	var lines []Line
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		zctx.From(ctx).Warn("Discarding unparseable cart", zap.Error(err))
		s.lines = nil
		return nil
	}
	s.lines = normalize(lines)
	return nil
}

// Lines returns a copy of the cart lines in insertion order.
func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.lines)
}

// Len returns the number of distinct products in the cart.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.lines)
}

// Add inserts p with qty clamped to [1, p.Stock], or, when p is already in
// the cart, increases the existing quantity by qty without exceeding the
// stock captured on insertion.
func (s *Store) Add(ctx context.Context, p product.Product, qty int) (Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.index(p.ID); i >= 0 {
		l := &s.lines[i]
		l.Quantity = ClampQuantity(l.Quantity+max(qty, 1), l.Stock)
		return *l, s.persist(ctx)
	}

	if !p.InStock() {
		return Line{}, ErrOutOfStock
	}

	l := Line{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Image:     p.Image,
		Stock:     p.Stock,
		Quantity:  ClampQuantity(qty, p.Stock),
	}
	s.lines = append(s.lines, l)
	return l, s.persist(ctx)
}

// Increment raises the quantity of a line by one. It is a no-op once the
// quantity equals the captured stock.
func (s *Store) Increment(ctx context.Context, productID int64) (Line, error) {
	return s.adjust(ctx, productID, 1)
}

// Decrement lowers the quantity of a line by one. It is a no-op at quantity 1;
// use Remove to drop the line.
func (s *Store) Decrement(ctx context.Context, productID int64) (Line, error) {
	return s.adjust(ctx, productID, -1)
}

func (s *Store) adjust(ctx context.Context, productID int64, delta int) (Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(productID)
	if i < 0 {
		return Line{}, ErrLineNotFound
	}
	l := &s.lines[i]
	if next := l.Quantity + delta; next >= 1 && next <= l.Stock {
		l.Quantity = next
	}
	return *l, s.persist(ctx)
}

// Remove deletes the line for productID. Removing an absent product is a no-op.
func (s *Store) Remove(ctx context.Context, productID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = slices.DeleteFunc(s.lines, func(l Line) bool {
		return l.ProductID == productID
	})
	return s.persist(ctx)
}

// Clear empties the cart and deletes its persisted copy.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = nil
	if err := s.blobs.Delete(ctx, s.key); err != nil {
		return errors.Wrap(err, "delete cart")
	}
	return nil
}

// persist writes the full cart. Callers hold s.mu.
func (s *Store) persist(ctx context.Context) error {
	lines := s.lines
	if lines == nil {
		lines = []Line{}
	}
	raw, err := json.Marshal(lines)
	if err != nil {
		return errors.Wrap(err, "marshal cart")
	}
	if err := s.blobs.Set(ctx, s.key, string(raw)); err != nil {
		return errors.Wrap(err, "write cart")
	}
	return nil
}

func (s *Store) index(productID int64) int {
	return slices.IndexFunc(s.lines, func(l Line) bool {
		return l.ProductID == productID
	})
}

// normalize merges lines sharing a product id, keeping the first snapshot,
// and clamps every quantity into [1, stock]. Lines whose captured stock is
// below 1 are dropped. Blobs written by this package already hold; older or
// hand-edited ones might not.
func normalize(lines []Line) []Line {
	out := make([]Line, 0, len(lines))
	seen := make(map[int64]int, len(lines))
	for _, l := range lines {
		if i, ok := seen[l.ProductID]; ok {
			out[i].Quantity = ClampQuantity(out[i].Quantity+max(l.Quantity, 0), out[i].Stock)
			continue
		}
		l.Quantity = ClampQuantity(l.Quantity, l.Stock)
		if l.Quantity == 0 {
			continue
		}
		seen[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out
}
