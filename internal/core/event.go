package core

import "time"

// PaymentEventKind classifies an inbound provider event
type PaymentEventKind string

const (
	EventKindIntentSucceeded PaymentEventKind = "INTENT_SUCCEEDED"
	EventKindIntentFailed    PaymentEventKind = "INTENT_FAILED"
	EventKindUnknown         PaymentEventKind = "UNKNOWN"
)

// PaymentEvent is a typed, immutable view of a provider webhook event.
// ID is the provider's globally unique event identifier and is the
// idempotency key for the reconciliation pipeline.
type PaymentEvent struct {
	ID          string
	Kind        PaymentEventKind
	IntentID    string
	AmountMinor int64
	Currency    string
	OccurredAt  time.Time
}

// OutcomeStatus maps the event kind to the terminal status it implies.
// Unknown kinds have no outcome and must not reach the reconciler.
func (e PaymentEvent) OutcomeStatus() (PaymentStatus, bool) {
	switch e.Kind {
	case EventKindIntentSucceeded:
		return PaymentStatusSucceeded, true
	case EventKindIntentFailed:
		return PaymentStatusFailed, true
	default:
		return "", false
	}
}
