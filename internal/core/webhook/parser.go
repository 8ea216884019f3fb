package webhook

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/talkspace/payment-gateway/internal/core"
)

// providerEvent mirrors the provider's event envelope. Only the fields the
// pipeline acts on are decoded; the rest of the payload is ignored.
type providerEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object struct {
			ID       string `json:"id"`
			Amount   int64  `json:"amount"`
			Currency string `json:"currency"`
		} `json:"object"`
	} `json:"data"`
}

// Parse decodes an authenticated payload into a typed PaymentEvent.
// Unrecognized event types map to EventKindUnknown and are not an error, so
// the pipeline can acknowledge-and-ignore types it does not act on.
// A recognized type missing required fields is a malformed payload.
func Parse(rawBody []byte) (core.PaymentEvent, error) {
	var raw providerEvent
	if err := json.Unmarshal(rawBody, &raw); err != nil {
		return core.PaymentEvent{}, fmt.Errorf("%w: %v", core.ErrMalformedPayload, err)
	}
	if raw.ID == "" {
		return core.PaymentEvent{}, fmt.Errorf("%w: missing event id", core.ErrMalformedPayload)
	}

	event := core.PaymentEvent{
		ID:          raw.ID,
		Kind:        kindOf(raw.Type),
		IntentID:    raw.Data.Object.ID,
		AmountMinor: raw.Data.Object.Amount,
		Currency:    strings.ToUpper(raw.Data.Object.Currency),
		OccurredAt:  time.Unix(raw.Created, 0),
	}

	if event.Kind != core.EventKindUnknown {
		if event.IntentID == "" {
			return core.PaymentEvent{}, fmt.Errorf("%w: missing payment intent id", core.ErrMalformedPayload)
		}
		if event.AmountMinor <= 0 {
			return core.PaymentEvent{}, fmt.Errorf("%w: missing or invalid amount", core.ErrMalformedPayload)
		}
		if event.Currency == "" {
			return core.PaymentEvent{}, fmt.Errorf("%w: missing currency", core.ErrMalformedPayload)
		}
	}
	return event, nil
}

func kindOf(eventType string) core.PaymentEventKind {
	switch eventType {
	case "payment_intent.succeeded":
		return core.EventKindIntentSucceeded
	case "payment_intent.payment_failed":
		return core.EventKindIntentFailed
	default:
		return core.EventKindUnknown
	}
}
