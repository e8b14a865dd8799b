package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/serroba/scanlink/internal/messaging"
	"go.uber.org/zap"
)

// Status describes what happened to a scan handed to a Recorder.
type Status string

const (
	// StatusRecorded means the scan was inserted into the store.
	StatusRecorded Status = "recorded"
	// StatusQueued means the scan was published for asynchronous persistence.
	StatusQueued Status = "queued"
	// StatusDropped means the scan was lost. It is never retried.
	StatusDropped Status = "dropped"
)

// Outcome reports the result of a recording attempt.
// It is informational: callers are free to discard it.
type Outcome struct {
	Status Status
	Err    error
}

// Recorder persists scans on a best-effort, at-most-once basis.
// Record never fails from the caller's point of view; failures surface only in the Outcome.
type Recorder interface {
	Record(ctx context.Context, event *Event) Outcome
}

// DirectRecorder inserts each scan into the store before returning.
type DirectRecorder struct {
	store   Store
	timeout time.Duration
	logger  *zap.Logger
}

// NewDirectRecorder creates a recorder that performs one insert per scan, bounded by timeout.
func NewDirectRecorder(store Store, timeout time.Duration, logger *zap.Logger) *DirectRecorder {
	return &DirectRecorder{
		store:   store,
		timeout: timeout,
		logger:  logger,
	}
}

// Record inserts event once. The insert is detached from ctx cancellation so a client
// that disconnects mid-redirect still gets its scan counted.
func (r *DirectRecorder) Record(ctx context.Context, event *Event) (outcome Outcome) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			outcome = r.dropped(event, fmt.Errorf("scan insert panicked: %v", p))
		}
	}()

	if err := r.store.Insert(ctx, event); err != nil {
		return r.dropped(event, err)
	}

	return Outcome{Status: StatusRecorded}
}

func (r *DirectRecorder) dropped(event *Event, err error) Outcome {
	r.logger.Warn("scan dropped",
		zap.String("qr_id", event.QRID),
		zap.Error(err),
	)

	return Outcome{Status: StatusDropped, Err: err}
}

// StreamRecorder publishes scans to a stream; a consumer persists them later.
type StreamRecorder struct {
	publish messaging.Publish[Event]
	timeout time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewStreamRecorder creates a recorder that queues scans through publish, bounded by timeout.
func NewStreamRecorder(publish messaging.Publish[Event], timeout time.Duration, logger *zap.Logger) *StreamRecorder {
	return &StreamRecorder{
		publish: publish,
		timeout: timeout,
		now:     time.Now,
		logger:  logger,
	}
}

// Record stamps the scan time and publishes event. A failed or timed out publish drops
// the scan.
func (r *StreamRecorder) Record(ctx context.Context, event *Event) Outcome {
	if event.ScannedAt.IsZero() {
		event.ScannedAt = r.now().UTC()
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	if err := r.publish(ctx, event); err != nil {
		r.logger.Warn("scan dropped: publish failed",
			zap.String("qr_id", event.QRID),
			zap.Error(err),
		)

		return Outcome{Status: StatusDropped, Err: err}
	}

	return Outcome{Status: StatusQueued}
}

// PersistHandler returns the consumer handler that stores queued scans.
func PersistHandler(store Store) messaging.Handler[Event] {
	return func(ctx context.Context, event *Event) error {
		event.ID = ""

		return store.Insert(ctx, event)
	}
}

// Compile-time checks.
var (
	_ Recorder = (*DirectRecorder)(nil)
	_ Recorder = (*StreamRecorder)(nil)
)
