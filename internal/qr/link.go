package qr

import "time"

// Slug is the public short identifier embedded in /s/{slug}.
type Slug string

// Style holds presentation attributes of the printed code.
// It has no effect on resolution or analytics.
type Style struct {
	FgColor string `json:"fgColor"`
	BgColor string `json:"bgColor"`
}

// Default colors applied when the caller leaves a style attribute empty.
const (
	DefaultFgColor = "#000000"
	DefaultBgColor = "#ffffff"
)

// Link is a dynamic short link: a unique, immutable slug pointing at a mutable destination.
type Link struct {
	ID          string
	OwnerID     string
	Name        string
	Destination string
	Slug        Slug
	Style       Style
	CreatedAt   time.Time
}

// Target is what a successful resolution yields.
type Target struct {
	ID          string
	Destination string
}
