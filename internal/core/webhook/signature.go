package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/talkspace/payment-gateway/internal/core"
)

// DefaultTolerance is the maximum accepted age of a signed payload.
const DefaultTolerance = 5 * time.Minute

// SignatureHeader is the parsed form of the provider signature header,
// e.g. "t=1699999999,v1=5257a8...". The header may carry several v1
// signatures during secret rotation; any one matching authenticates.
type SignatureHeader struct {
	Timestamp  time.Time
	Signatures [][]byte
}

// ParseSignatureHeader parses the raw header value into its timestamp and
// signature components. Malformed input is rejected here so the verifier
// only ever sees well-formed values.
func ParseSignatureHeader(value string) (SignatureHeader, error) {
	if strings.TrimSpace(value) == "" {
		return SignatureHeader{}, core.ErrMissingSignature
	}

	var parsed SignatureHeader
	for _, part := range strings.Split(value, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return SignatureHeader{}, fmt.Errorf("%w: %q", core.ErrMalformedSignature, part)
		}
		switch k {
		case "t":
			unix, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return SignatureHeader{}, fmt.Errorf("%w: bad timestamp", core.ErrMalformedSignature)
			}
			parsed.Timestamp = time.Unix(unix, 0)
		case "v1":
			sig, err := hex.DecodeString(v)
			if err != nil {
				return SignatureHeader{}, fmt.Errorf("%w: bad signature encoding", core.ErrMalformedSignature)
			}
			parsed.Signatures = append(parsed.Signatures, sig)
		default:
			// Unknown schemes (e.g. v0) are ignored, matching provider behavior.
		}
	}

	if parsed.Timestamp.IsZero() || len(parsed.Signatures) == 0 {
		return SignatureHeader{}, fmt.Errorf("%w: missing timestamp or signature", core.ErrMalformedSignature)
	}
	return parsed, nil
}

// Verifier authenticates raw webhook payloads against the shared endpoint
// secret. It is a pure function of its inputs plus the injected clock.
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier creates a verifier with the given endpoint secret and
// replay-tolerance window. A non-positive tolerance selects DefaultTolerance.
func NewVerifier(secret []byte, tolerance time.Duration) *Verifier {
	return NewVerifierWithClock(secret, tolerance, time.Now)
}

// NewVerifierWithClock is NewVerifier with an injectable clock for tests.
func NewVerifierWithClock(secret []byte, tolerance time.Duration, now func() time.Time) *Verifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Verifier{secret: secret, tolerance: tolerance, now: now}
}

// Verify authenticates rawBody against the signature header. The body must be
// the bytes exactly as received on the wire; any re-serialization before this
// point invalidates the signature. Returns nil only for authentic, fresh
// payloads.
func (v *Verifier) Verify(rawBody []byte, header string) error {
	parsed, err := ParseSignatureHeader(header)
	if err != nil {
		return err
	}

	age := v.now().Sub(parsed.Timestamp)
	if age > v.tolerance || age < -v.tolerance {
		return core.ErrSignatureExpired
	}

	expected := computeSignature(parsed.Timestamp, rawBody, v.secret)
	for _, sig := range parsed.Signatures {
		if hmac.Equal(expected, sig) {
			return nil
		}
	}
	return core.ErrInvalidSignature
}

// computeSignature computes HMAC-SHA256 over "<unix timestamp>.<raw body>",
// the provider's signed-payload construction. Binding the timestamp into the
// MAC is what makes the tolerance check replay-safe.
func computeSignature(ts time.Time, body, secret []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%d.", ts.Unix())
	mac.Write(body)
	return mac.Sum(nil)
}

// SignPayload produces a valid signature header for the given body and
// timestamp. Used by tests and by local tooling that replays events.
func SignPayload(ts time.Time, body, secret []byte) string {
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(computeSignature(ts, body, secret)))
}
