package output

import (
	"context"
	"time"
)

// IdempotencyStore is an output port tracking which provider event ids have
// been applied. Reservation must be atomic across concurrent deliveries of
// the same event id: exactly one caller wins TryBegin.
type IdempotencyStore interface {
	// TryBegin reserves processing rights for an event id. Returns true when
	// the reservation was acquired, false when the event was already processed
	// or is being processed by a concurrent delivery.
	TryBegin(ctx context.Context, eventID string) (bool, error)

	// Commit marks the event as processed. Only called after reconciliation
	// succeeded; committing is the linearization point for "applied".
	Commit(ctx context.Context, eventID string) error

	// Release drops an uncommitted reservation so a future redelivery can
	// retry after a transient reconciliation failure.
	Release(ctx context.Context, eventID string) error

	// Prune removes processed entries older than the cutoff. The retention
	// window must exceed the provider's maximum redelivery window; Prune never
	// touches uncommitted reservations newer than the cutoff.
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}
