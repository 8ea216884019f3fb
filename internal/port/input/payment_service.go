package input

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/talkspace/payment-gateway/internal/core"
)

// CheckoutRequest represents a request to open a payment session for a booking.
type CheckoutRequest struct {
	BookingRef  string
	AmountMinor int64
	Currency    string
}

// PaymentView is the read model for a payment record.
type PaymentView struct {
	ID               uuid.UUID
	BookingRef       string
	AmountMinor      int64
	Currency         string
	Status           core.PaymentStatus
	ProviderIntentID string
	CreatedAt        time.Time
}

// CheckoutService is an input port (primary port) for session creation.
type CheckoutService interface {
	// Checkout validates the request, opens a provider session and persists a
	// PENDING payment record carrying the provider intent id.
	Checkout(ctx context.Context, req CheckoutRequest) (*core.SessionHandle, error)

	// GetPayment retrieves a payment record by ID.
	GetPayment(ctx context.Context, id uuid.UUID) (*PaymentView, error)
}

// WebhookOutcome classifies the result of processing one webhook delivery.
// Every outcome is acknowledged with 200 at the boundary; only errors map to
// 4xx/5xx.
type WebhookOutcome string

const (
	// OutcomeProcessed: the event was applied and committed.
	OutcomeProcessed WebhookOutcome = "PROCESSED"
	// OutcomeDuplicate: the event id was already processed; no-op.
	OutcomeDuplicate WebhookOutcome = "DUPLICATE"
	// OutcomeIgnored: the event type is not one the pipeline acts on.
	OutcomeIgnored WebhookOutcome = "IGNORED"
	// OutcomeAnomaly: the event references no known payment record.
	OutcomeAnomaly WebhookOutcome = "ANOMALY"
	// OutcomeConflict: the event contradicts an existing terminal status.
	OutcomeConflict WebhookOutcome = "CONFLICT"
)

// WebhookService is an input port for the webhook intake pipeline.
type WebhookService interface {
	// HandleDelivery authenticates, parses and applies one raw webhook
	// delivery. Authentication and validation failures return an error from
	// the core taxonomy; reconciliation anomalies and conflicts come back as
	// outcomes because provider redelivery cannot resolve them.
	HandleDelivery(ctx context.Context, rawBody []byte, signatureHeader string) (WebhookOutcome, error)
}
