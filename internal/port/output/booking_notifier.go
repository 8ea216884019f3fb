package output

import (
	"context"

	"github.com/talkspace/payment-gateway/internal/core"
)

// BookingNotifier is an output port (secondary port) for the booking
// confirmation side-effect. Implementations must be idempotent per booking
// reference: redelivering the same outcome must not double-fulfill.
type BookingNotifier interface {
	// PublishOutcome announces a payment outcome for a booking.
	PublishOutcome(ctx context.Context, bookingRef string, status core.PaymentStatus) error
	// Close closes the messaging connection.
	Close() error
}
