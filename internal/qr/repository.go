package qr

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no link matches the lookup.
	ErrNotFound = errors.New("link not found")
	// ErrSlugTaken is returned when a link is created with a slug that already exists.
	ErrSlugTaken = errors.New("slug already taken")
	// ErrDuplicateSlug signals that more than one link carries the same slug.
	// The unique index makes this impossible; seeing it means the store is corrupt.
	ErrDuplicateSlug = errors.New("slug resolves to more than one link")
	// ErrStoreUnavailable wraps failures of the backing store during resolution.
	ErrStoreUnavailable = errors.New("link store unavailable")
)

// Repository defines the storage operations for links.
type Repository interface {
	// Create inserts a new link. Returns ErrSlugTaken if the slug is in use.
	Create(ctx context.Context, link *Link) error

	// FindBySlug returns every link whose slug equals slug exactly.
	// An unknown slug yields an empty slice and no error.
	FindBySlug(ctx context.Context, slug Slug) ([]*Link, error)

	// GetByID returns ErrNotFound if no link has the given id.
	GetByID(ctx context.Context, id string) (*Link, error)

	// ListByOwner returns the owner's links, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]*Link, error)

	// Update persists the mutable fields (name, destination) of an existing link.
	Update(ctx context.Context, link *Link) error
}
