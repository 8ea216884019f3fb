package output

import "context"

// CreateSessionRequest is the outbound request to open a payment intent with
// the provider.
type CreateSessionRequest struct {
	BookingRef  string
	AmountMinor int64
	Currency    string
}

// ProviderSession is the provider's view of a created payment intent.
type ProviderSession struct {
	IntentID     string
	ClientSecret string
	AmountMinor  int64
	Currency     string
}

// PaymentProvider is an output port for the payment provider's API.
// Failures surface as *core.ProviderError so the boundary can distinguish
// provider-side outages from local bugs.
type PaymentProvider interface {
	CreateSession(ctx context.Context, req CreateSessionRequest) (*ProviderSession, error)
}
