package core

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus represents the status of a payment record
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusSucceeded PaymentStatus = "SUCCEEDED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

// PaymentRecord represents a booking payment domain entity.
// It is created in PENDING state when a checkout session is opened and is
// mutated only by the reconciler.
type PaymentRecord struct {
	ID               uuid.UUID
	BookingRef       string
	AmountMinor      int64
	Currency         string
	Status           PaymentStatus
	ProviderIntentID string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsPending checks if the payment is in pending status
func (p *PaymentRecord) IsPending() bool {
	return p.Status == PaymentStatusPending
}

// IsTerminal checks if the payment is in a terminal state.
// Terminal statuses are one-way: no event may move a record back to
// PENDING or flip it to the opposite terminal state.
func (p *PaymentRecord) IsTerminal() bool {
	return p.Status == PaymentStatusSucceeded || p.Status == PaymentStatusFailed
}

// SessionHandle is returned from checkout-session creation.
// ClientSecret is an opaque credential for the caller's client-side SDK
// and must never be logged.
type SessionHandle struct {
	SessionID        string
	AmountMinor      int64
	Currency         string
	ProviderIntentID string
	ClientSecret     string
	Status           PaymentStatus
}
