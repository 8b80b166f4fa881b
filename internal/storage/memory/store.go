// Package memory is an in-process backend for the store server. It keeps
// every record in maps guarded by one lock and is used when no database is
// configured and in tests.
package memory

import (
	"cmp"
	"context"
	"encoding/json"
	"maps"
	"slices"
	"sync"

	"github.com/xenking/kart-storefront/internal/domain/invoice"
	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/domain/session"
)

var (
	_ product.Repository       = (*Store)(nil)
	_ invoice.Repository       = (*Store)(nil)
	_ invoice.ConfigRepository = (*Store)(nil)
	_ session.UserRepository   = (*Store)(nil)
)

// Store holds products, invoices, the tax config and users.
type Store struct {
	mu       sync.RWMutex
	products map[int64]product.Product
	users    map[string]session.User
	config   *invoice.TaxConfig
	headers  []invoice.Header
	lines    []invoice.Line
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		products: make(map[int64]product.Product),
		users:    make(map[string]session.User),
	}
}

// List returns all products ordered by id.
func (s *Store) List(_ context.Context) ([]product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]product.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, cloneProduct(p))
	}
	slices.SortFunc(out, func(a, b product.Product) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) GetByID(_ context.Context, id int64) (*product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	p = cloneProduct(p)
	return &p, nil
}

// Update replaces an existing product.
func (s *Store) Update(_ context.Context, p *product.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[p.ID]; !ok {
		return product.ErrNotFound
	}
	s.products[p.ID] = cloneProduct(*p)
	return nil
}

// UpsertProduct inserts or replaces a product.
func (s *Store) UpsertProduct(_ context.Context, p *product.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.products[p.ID] = cloneProduct(*p)
	return nil
}

// CreateHeader appends an invoice header. Numbers are not required to be
// unique.
func (s *Store) CreateHeader(_ context.Context, h *invoice.Header) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.headers = append(s.headers, *h)
	return nil
}

func (s *Store) CreateLine(_ context.Context, l *invoice.Line) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = append(s.lines, *l)
	return nil
}

// Headers returns the invoice headers in creation order.
func (s *Store) Headers() []invoice.Header {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.headers)
}

// Lines returns the invoice lines in creation order.
func (s *Store) Lines() []invoice.Line {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.lines)
}

func (s *Store) GetTaxConfig(_ context.Context) (*invoice.TaxConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.config == nil {
		return nil, invoice.ErrConfigNotFound
	}
	c := *s.config
	c.Extra = cloneExtra(c.Extra)
	return &c, nil
}

// UpdateTaxConfig overwrites the tax config, creating it when absent.
func (s *Store) UpdateTaxConfig(_ context.Context, c *invoice.TaxConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := *c
	next.Extra = cloneExtra(c.Extra)
	if next.ID == 0 && s.config != nil {
		next.ID = s.config.ID
	}
	s.config = &next
	return nil
}

func (s *Store) FindByDNI(_ context.Context, dni string) (*session.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[dni]
	if !ok {
		return nil, session.ErrUserNotFound
	}
	return &u, nil
}

// UpsertUser inserts or replaces a user.
func (s *Store) UpsertUser(_ context.Context, u *session.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[u.DNI] = *u
	return nil
}

func cloneProduct(p product.Product) product.Product {
	p.Extra = cloneExtra(p.Extra)
	return p
}

func cloneExtra(m map[string]json.RawMessage) map[string]json.RawMessage {
	if m == nil {
		return nil
	}
	out := maps.Clone(m)
	for k, v := range out {
		out[k] = slices.Clone(v)
	}
	return out
}
