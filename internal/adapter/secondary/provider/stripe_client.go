package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/talkspace/payment-gateway/internal/core"
	"github.com/talkspace/payment-gateway/internal/port/output"
)

// metadataBookingRef is the metadata key carrying the booking reference on
// the provider side, so intents remain traceable to bookings from the
// provider dashboard as well.
const metadataBookingRef = "booking_ref"

// StripeClient is a secondary adapter that implements the PaymentProvider
// output port against the Stripe PaymentIntents API.
type StripeClient struct {
	api *client.API
}

// NewStripeClient creates a Stripe-backed payment provider
func NewStripeClient(secretKey string) *StripeClient {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeClient{api: api}
}

// CreateSession opens a payment intent for a booking. The booking reference
// is attached as intent metadata; the returned client secret goes to the
// caller's client-side SDK untouched.
func (c *StripeClient) CreateSession(ctx context.Context, req output.CreateSessionRequest) (*output.ProviderSession, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountMinor),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata(metadataBookingRef, req.BookingRef)

	intent, err := c.api.PaymentIntents.New(params)
	if err != nil {
		return nil, mapStripeError(err)
	}

	return &output.ProviderSession{
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		AmountMinor:  intent.Amount,
		Currency:     strings.ToUpper(string(intent.Currency)),
	}, nil
}

// mapStripeError converts a Stripe API failure into the core taxonomy.
// Server-side and connection failures are transient; card and request errors
// are not.
func mapStripeError(err error) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return &core.ProviderError{
			Code:      "connection_error",
			Message:   fmt.Sprintf("provider unreachable: %v", err),
			Transient: true,
		}
	}

	msg := stripeErr.Msg
	if msg == "" {
		msg = "payment processing error"
	}
	return &core.ProviderError{
		Code:      string(stripeErr.Code),
		Message:   msg,
		Transient: stripeErr.HTTPStatusCode >= http.StatusInternalServerError || stripeErr.Type == stripe.ErrorTypeAPI,
	}
}
