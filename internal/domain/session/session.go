// Package session gates catalog and checkout access on a persisted identity
// marker. It is a convenience guard, not a security boundary: the password
// check is a plaintext comparison against the remote user record.
package session

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/storage/kv"
)

// Storage keys of the identity markers.
const (
	KeyUsername = "username"
	KeyDNI      = "dni"
)

var (
	// ErrMissingCredentials is returned when a login field is empty. No
	// network call is made.
	ErrMissingCredentials = errors.New("dni, username and password are required")
	// ErrInvalidCredentials is returned when the user does not exist or the
	// name or password does not match.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrNoSession is returned when no identity marker is persisted.
	ErrNoSession = errors.New("not logged in")
	// ErrUserNotFound is returned by UserRepository when no user has the DNI.
	ErrUserNotFound = errors.New("user not found")
)

// User is the remote user record.
type User struct {
	DNI      string
	Name     string
	Password string
}

// UserRepository looks up users by national id.
type UserRepository interface {
	FindByDNI(ctx context.Context, dni string) (*User, error)
}

// Identity is the logged-in customer as recorded by the markers.
type Identity struct {
	DNI  string
	Name string
}

// Gate checks credentials and manages the persisted identity markers.
type Gate struct {
	users UserRepository
	store kv.Store
}

// NewGate returns a Gate verifying against users and persisting to store.
func NewGate(users UserRepository, store kv.Store) *Gate {
	return &Gate{users: users, store: store}
}

// Login verifies the credentials and writes the identity markers. On any
// failure nothing is written.
func (g *Gate) Login(ctx context.Context, dni, name, password string) (*Identity, error) {
	if dni == "" || name == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	u, err := g.users.FindByDNI(ctx, dni)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		zctx.From(ctx).Error("Login lookup failed", zap.String("dni", dni), zap.Error(err))
		return nil, errors.Wrap(err, "lookup user")
	}
	if u.Name != name || u.Password != password {
		return nil, ErrInvalidCredentials
	}

	if err := g.store.Set(ctx, KeyUsername, name); err != nil {
		return nil, errors.Wrap(err, "store username")
	}
	if err := g.store.Set(ctx, KeyDNI, dni); err != nil {
		// Do not leave a half-written session behind.
		_ = g.store.Delete(ctx, KeyUsername)
		return nil, errors.Wrap(err, "store dni")
	}

	return &Identity{DNI: dni, Name: name}, nil
}

// Current returns the persisted identity, or ErrNoSession.
func (g *Gate) Current(ctx context.Context) (*Identity, error) {
	name, err := g.store.Get(ctx, KeyUsername)
	if errors.Is(err, kv.ErrNotFound) || (err == nil && name == "") {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, errors.Wrap(err, "read username")
	}

	dni, err := g.store.Get(ctx, KeyDNI)
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		return nil, errors.Wrap(err, "read dni")
	}
	return &Identity{DNI: dni, Name: name}, nil
}

// Logout clears the whole persisted store: identity markers and cart.
func (g *Gate) Logout(ctx context.Context) error {
	if err := g.store.Clear(ctx); err != nil {
		return errors.Wrap(err, "clear session")
	}
	return nil
}
