package qr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// slugAttempts bounds retries when a generated slug collides with an existing one.
const slugAttempts = 3

// SlugGenerator generates random slugs.
type SlugGenerator func() string

// CreateParams are the caller-supplied fields of a new link.
type CreateParams struct {
	OwnerID     string
	Name        string
	Destination string
	Slug        Slug // optional; a random slug is generated when empty
	Style       Style
}

// UpdateParams carries the mutable fields of a link. Nil fields are left unchanged.
type UpdateParams struct {
	Name        *string
	Destination *string
}

// Service creates and edits links.
type Service struct {
	store        Repository
	generateSlug SlugGenerator
	now          func() time.Time
}

// NewService creates a link service that falls back to generator for empty slugs.
func NewService(store Repository, generator SlugGenerator) *Service {
	return &Service{
		store:        store,
		generateSlug: generator,
		now:          time.Now,
	}
}

// Create validates params and stores a new link.
// Validation failures are returned before the store is touched.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Link, error) {
	if err := ValidateDestination(params.Destination); err != nil {
		return nil, err
	}

	if params.OwnerID == "" {
		return nil, ErrEmptyOwner
	}

	custom := params.Slug != ""
	if custom {
		if err := ValidateSlug(params.Slug); err != nil {
			return nil, err
		}
	}

	link := &Link{
		ID:          uuid.NewString(),
		OwnerID:     params.OwnerID,
		Name:        params.Name,
		Destination: params.Destination,
		Slug:        params.Slug,
		Style:       withDefaults(params.Style),
		CreatedAt:   s.now().UTC(),
	}

	if custom {
		if err := s.store.Create(ctx, link); err != nil {
			return nil, err
		}

		return link, nil
	}

	for range slugAttempts {
		link.Slug = Slug(s.generateSlug())

		err := s.store.Create(ctx, link)
		if err == nil {
			return link, nil
		}

		if !errors.Is(err, ErrSlugTaken) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("generate slug: %w after %d attempts", ErrSlugTaken, slugAttempts)
}

// Update changes the name and/or destination of the link with the given id.
// The slug is immutable and cannot be changed here.
func (s *Service) Update(ctx context.Context, id string, params UpdateParams) (*Link, error) {
	if params.Destination != nil {
		if err := ValidateDestination(*params.Destination); err != nil {
			return nil, err
		}
	}

	link, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.Name != nil {
		link.Name = *params.Name
	}

	if params.Destination != nil {
		link.Destination = *params.Destination
	}

	if err = s.store.Update(ctx, link); err != nil {
		return nil, err
	}

	return link, nil
}

// Get returns the link with the given id.
func (s *Service) Get(ctx context.Context, id string) (*Link, error) {
	return s.store.GetByID(ctx, id)
}

// ListByOwner returns the owner's links, newest first.
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]*Link, error) {
	return s.store.ListByOwner(ctx, ownerID)
}

func withDefaults(style Style) Style {
	if style.FgColor == "" {
		style.FgColor = DefaultFgColor
	}

	if style.BgColor == "" {
		style.BgColor = DefaultBgColor
	}

	return style
}
