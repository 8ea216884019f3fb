package core

import (
	"errors"
	"fmt"
)

// Boundary error taxonomy. The HTTP layer maps these with errors.Is/As;
// business code never inspects error strings.
var (
	// ErrMissingSignature: the signature header was absent or empty.
	ErrMissingSignature = errors.New("missing signature header")
	// ErrMalformedSignature: the header did not parse into timestamp+signature.
	ErrMalformedSignature = errors.New("malformed signature header")
	// ErrInvalidSignature: the recomputed MAC did not match any claimed signature.
	ErrInvalidSignature = errors.New("signature verification failed")
	// ErrSignatureExpired: the embedded timestamp fell outside the tolerance window.
	ErrSignatureExpired = errors.New("signature timestamp outside tolerance")

	// ErrMalformedPayload: the payload failed to decode or a recognized event
	// kind was missing required fields.
	ErrMalformedPayload = errors.New("malformed event payload")

	// ErrRecordNotFound: no payment record matches the lookup key.
	ErrRecordNotFound = errors.New("payment record not found")
	// ErrStatusConflict: an event implies a terminal status different from the
	// record's existing terminal status. Never auto-resolved.
	ErrStatusConflict = errors.New("terminal status conflict")

	// ErrInvalidCheckout: the checkout request failed validation.
	ErrInvalidCheckout = errors.New("invalid checkout request")
)

// ProviderError wraps a failure reported by the payment provider.
// Transient failures are safe for the caller to re-request.
type ProviderError struct {
	Code      string
	Message   string
	Transient bool
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %s: %s", e.Code, e.Message)
}
