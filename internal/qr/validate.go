package qr

import (
	"errors"
	"net/url"
	"strings"
)

var (
	ErrEmptyDestination   = errors.New("destination is required")
	ErrInvalidDestination = errors.New("destination must be an absolute URL")
	ErrEmptyOwner         = errors.New("owner is required")
	ErrInvalidSlug        = errors.New("slug must not contain '/', '?', '#' or whitespace")
)

// ValidateDestination checks that dest is a non-empty absolute URL.
// The destination itself is stored exactly as given.
func ValidateDestination(dest string) error {
	if dest == "" {
		return ErrEmptyDestination
	}

	u, err := url.Parse(dest)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return ErrInvalidDestination
	}

	return nil
}

// ValidateSlug rejects slugs that could not round-trip through the /s/{slug} path segment.
func ValidateSlug(slug Slug) error {
	if strings.ContainsAny(string(slug), "/?# \t\r\n") {
		return ErrInvalidSlug
	}

	return nil
}

// IsValidation reports whether err is a caller input error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyDestination) ||
		errors.Is(err, ErrInvalidDestination) ||
		errors.Is(err, ErrEmptyOwner) ||
		errors.Is(err, ErrInvalidSlug)
}
