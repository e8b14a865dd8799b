package qr

import (
	"context"
	"fmt"
)

// Resolver turns a slug into its redirect target.
type Resolver struct {
	repo Repository
}

// NewResolver creates a resolver backed by the given repository.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve looks up slug with an exact, case-sensitive match.
//
// It returns ErrNotFound when nothing matches, ErrDuplicateSlug when more than one
// link matches and an error wrapping ErrStoreUnavailable when the lookup itself fails.
func (r *Resolver) Resolve(ctx context.Context, slug Slug) (*Target, error) {
	links, err := r.repo.FindBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	switch len(links) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return &Target{ID: links[0].ID, Destination: links[0].Destination}, nil
	default:
		return nil, fmt.Errorf("%w: slug %q matched %d links", ErrDuplicateSlug, slug, len(links))
	}
}
