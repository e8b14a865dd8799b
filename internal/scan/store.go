package scan

import "context"

// Store defines the interface for persisting scan events.
type Store interface {
	// Insert appends event. Implementations assign ID, and ScannedAt when it is zero.
	Insert(ctx context.Context, event *Event) error

	// ListByQR returns every scan of the given link.
	ListByQR(ctx context.Context, qrID string) ([]Event, error)
}
