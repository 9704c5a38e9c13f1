// Package identity resolves user identifiers to display identities.
//
// Bookings may reference users living in the external identity provider or
// only in the local user store. Resolvers are composed with Chain so callers
// never branch on where an identity lives.
package identity

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no resolver knows the id.
var ErrNotFound = errors.New("identity: not found")

// Identity is a resolved display identity.
type Identity struct {
	ID          string
	Email       string
	DisplayName string
}

// Resolver looks up a display identity by opaque user id.
type Resolver interface {
	Resolve(ctx context.Context, id string) (*Identity, error)
}

// Chain tries each resolver in order, returning the first hit. Lookup
// failures other than ErrNotFound fall through to the next resolver so an
// unreachable external provider degrades to the local store.
type Chain []Resolver

func (c Chain) Resolve(ctx context.Context, id string) (*Identity, error) {
	var lastErr error = ErrNotFound
	for _, r := range c {
		ident, err := r.Resolve(ctx, id)
		if err == nil {
			return ident, nil
		}
		if !errors.Is(err, ErrNotFound) {
			lastErr = err
		}
	}
	if errors.Is(lastErr, ErrNotFound) {
		return nil, ErrNotFound
	}
	return nil, lastErr
}
