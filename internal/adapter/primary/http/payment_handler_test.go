package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkspace/payment-gateway/internal/core"
	"github.com/talkspace/payment-gateway/internal/core/service"
	"github.com/talkspace/payment-gateway/internal/core/webhook"
	"github.com/talkspace/payment-gateway/internal/port/output"
	"go.uber.org/zap"
)

var (
	testSecret = []byte("whsec_handler_test")
	testNow    = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

type stubRepo struct {
	mu       sync.Mutex
	byIntent map[string]*core.PaymentRecord
}

func newStubRepo() *stubRepo {
	return &stubRepo{byIntent: make(map[string]*core.PaymentRecord)}
}

func (r *stubRepo) Create(_ context.Context, record *core.PaymentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *record
	r.byIntent[record.ProviderIntentID] = &clone
	return nil
}

func (r *stubRepo) GetByID(_ context.Context, id uuid.UUID) (*core.PaymentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.byIntent {
		if rec.ID == id {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, core.ErrRecordNotFound
}

func (r *stubRepo) GetByIntentID(_ context.Context, intentID string) (*core.PaymentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byIntent[intentID]
	if !ok {
		return nil, core.ErrRecordNotFound
	}
	clone := *rec
	return &clone, nil
}

func (r *stubRepo) Transition(_ context.Context, intentID string, to core.PaymentStatus) (output.Transition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byIntent[intentID]
	if !ok {
		return output.Transition{}, core.ErrRecordNotFound
	}
	if rec.Status == to {
		clone := *rec
		return output.Transition{Record: &clone, Changed: false}, nil
	}
	if rec.IsTerminal() {
		return output.Transition{}, fmt.Errorf("%w: record is %s", core.ErrStatusConflict, rec.Status)
	}
	rec.Status = to
	clone := *rec
	return output.Transition{Record: &clone, Changed: true}, nil
}

type stubIdemStore struct {
	mu      sync.Mutex
	entries map[string]bool
}

func newStubIdemStore() *stubIdemStore {
	return &stubIdemStore{entries: make(map[string]bool)}
}

func (s *stubIdemStore) TryBegin(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[eventID]; ok {
		return false, nil
	}
	s.entries[eventID] = false
	return true, nil
}

func (s *stubIdemStore) Commit(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[eventID] = true
	return nil
}

func (s *stubIdemStore) Release(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, eventID)
	return nil
}

func (s *stubIdemStore) Prune(_ context.Context, _ time.Time) (int64, error) { return 0, nil }

func (s *stubIdemStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

type stubNotifier struct {
	mu        sync.Mutex
	confirmed []string
}

func (n *stubNotifier) PublishOutcome(_ context.Context, bookingRef string, status core.PaymentStatus) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmed = append(n.confirmed, fmt.Sprintf("%s:%s", bookingRef, status))
	return nil
}

func (n *stubNotifier) Close() error { return nil }

func (n *stubNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.confirmed)
}

type stubProvider struct {
	fail error
	seq  int
}

func (p *stubProvider) CreateSession(_ context.Context, req output.CreateSessionRequest) (*output.ProviderSession, error) {
	if p.fail != nil {
		return nil, p.fail
	}
	p.seq++
	return &output.ProviderSession{
		IntentID:     fmt.Sprintf("pi_%d", p.seq),
		ClientSecret: fmt.Sprintf("pi_%d_secret_x", p.seq),
		AmountMinor:  req.AmountMinor,
		Currency:     req.Currency,
	}, nil
}

type gateway struct {
	handler  *PaymentHandler
	repo     *stubRepo
	idem     *stubIdemStore
	notifier *stubNotifier
	provider *stubProvider
	echo     *echo.Echo
}

func newGateway(t *testing.T) *gateway {
	t.Helper()
	repo := newStubRepo()
	idem := newStubIdemStore()
	notifier := &stubNotifier{}
	prov := &stubProvider{}
	logger := zap.NewNop()

	verifier := webhook.NewVerifierWithClock(testSecret, webhook.DefaultTolerance, func() time.Time { return testNow })
	reconciler := service.NewReconciler(repo, notifier, logger).WithRetryPolicy(0, 0)
	checkoutSvc := service.NewCheckoutService(prov, repo, logger)
	webhookSvc := service.NewWebhookService(verifier, idem, reconciler, logger)

	return &gateway{
		handler:  NewPaymentHandler(checkoutSvc, webhookSvc, logger),
		repo:     repo,
		idem:     idem,
		notifier: notifier,
		provider: prov,
		echo:     echo.New(),
	}
}

func (g *gateway) postCheckout(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := g.echo.NewContext(req, rec)
	require.NoError(t, g.handler.Checkout(c))
	return rec
}

func (g *gateway) postWebhook(t *testing.T, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(string(body)))
	if signature != "" {
		req.Header.Set(SignatureHeaderName, signature)
	}
	rec := httptest.NewRecorder()
	c := g.echo.NewContext(req, rec)
	require.NoError(t, g.handler.Webhook(c))
	return rec
}

func intentEvent(eventID, eventType, intentID string, amount int64) []byte {
	return []byte(fmt.Sprintf(
		`{"id":%q,"type":%q,"created":%d,"data":{"object":{"id":%q,"amount":%d,"currency":"usd"}}}`,
		eventID, eventType, testNow.Unix(), intentID, amount))
}

// Scenario: checkout creates a pending record, the succeeded webhook confirms it.
func TestGateway_CheckoutThenWebhookConfirms(t *testing.T) {
	g := newGateway(t)

	rec := g.postCheckout(t, `{"bookingRef":"B1","amount":5000,"currency":"USD"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CheckoutResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "B1", resp.SessionID)
	assert.Equal(t, int64(5000), resp.Amount)
	assert.Equal(t, "USD", resp.Currency)
	assert.NotEmpty(t, resp.PaymentIntentID)
	assert.NotEmpty(t, resp.ClientSecret)
	assert.Equal(t, "PENDING", resp.Status)

	stored, err := g.repo.GetByIntentID(context.Background(), resp.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, core.PaymentStatusPending, stored.Status)

	body := intentEvent("evt_1", "payment_intent.succeeded", resp.PaymentIntentID, 5000)
	whRec := g.postWebhook(t, body, webhook.SignPayload(testNow, body, testSecret))
	assert.Equal(t, http.StatusOK, whRec.Code)
	assert.JSONEq(t, `{"received":true}`, whRec.Body.String())

	stored, err = g.repo.GetByIntentID(context.Background(), resp.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, core.PaymentStatusSucceeded, stored.Status)
	assert.Equal(t, 1, g.notifier.count())
}

// Scenario: the same webhook payload delivered twice is a benign duplicate.
func TestGateway_DuplicateWebhookDelivery(t *testing.T) {
	g := newGateway(t)
	g.postCheckout(t, `{"bookingRef":"B1","amount":5000,"currency":"USD"}`)

	body := intentEvent("evt_1", "payment_intent.succeeded", "pi_1", 5000)
	sig := webhook.SignPayload(testNow, body, testSecret)

	first := g.postWebhook(t, body, sig)
	second := g.postWebhook(t, body, sig)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)

	stored, _ := g.repo.GetByIntentID(context.Background(), "pi_1")
	assert.Equal(t, core.PaymentStatusSucceeded, stored.Status)
	assert.Equal(t, 1, g.notifier.count(), "no duplicate confirmation side-effect")
}

// Scenario: tampered signature yields 400 with no state change.
func TestGateway_TamperedSignature(t *testing.T) {
	g := newGateway(t)
	g.postCheckout(t, `{"bookingRef":"B1","amount":5000,"currency":"USD"}`)

	body := intentEvent("evt_1", "payment_intent.succeeded", "pi_1", 5000)
	sig := webhook.SignPayload(testNow, body, testSecret)
	tampered := append([]byte{}, body...)
	tampered[10] ^= 0x01

	rec := g.postWebhook(t, tampered, sig)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	stored, _ := g.repo.GetByIntentID(context.Background(), "pi_1")
	assert.Equal(t, core.PaymentStatusPending, stored.Status)
	assert.Zero(t, g.idem.size(), "no idempotency record created")
	assert.Zero(t, g.notifier.count())
}

// Scenario: a failed event after a succeeded one is a conflict; the provider
// still gets 200 so it does not retry, and the record keeps its status.
func TestGateway_ConflictingEventAcknowledged(t *testing.T) {
	g := newGateway(t)
	g.postCheckout(t, `{"bookingRef":"B1","amount":5000,"currency":"USD"}`)

	body := intentEvent("evt_1", "payment_intent.succeeded", "pi_1", 5000)
	rec := g.postWebhook(t, body, webhook.SignPayload(testNow, body, testSecret))
	require.Equal(t, http.StatusOK, rec.Code)

	body = intentEvent("evt_2", "payment_intent.payment_failed", "pi_1", 5000)
	rec = g.postWebhook(t, body, webhook.SignPayload(testNow, body, testSecret))
	assert.Equal(t, http.StatusOK, rec.Code)

	stored, _ := g.repo.GetByIntentID(context.Background(), "pi_1")
	assert.Equal(t, core.PaymentStatusSucceeded, stored.Status, "booking remains succeeded")
}

func TestGateway_WebhookRejections(t *testing.T) {
	g := newGateway(t)
	body := intentEvent("evt_1", "payment_intent.succeeded", "pi_1", 5000)

	t.Run("MissingHeader", func(t *testing.T) {
		rec := g.postWebhook(t, body, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("MalformedHeader", func(t *testing.T) {
		rec := g.postWebhook(t, body, "not-a-signature")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("StaleTimestamp", func(t *testing.T) {
		stale := testNow.Add(-time.Hour)
		rec := g.postWebhook(t, body, webhook.SignPayload(stale, body, testSecret))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("MalformedPayload", func(t *testing.T) {
		bad := []byte(`{"id":"evt_x","type":"payment_intent.succeeded","data":{"object":{}}}`)
		rec := g.postWebhook(t, bad, webhook.SignPayload(testNow, bad, testSecret))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGateway_UnknownIntentAcknowledged(t *testing.T) {
	g := newGateway(t)
	body := intentEvent("evt_1", "payment_intent.succeeded", "pi_unknown", 5000)
	rec := g.postWebhook(t, body, webhook.SignPayload(testNow, body, testSecret))
	assert.Equal(t, http.StatusOK, rec.Code, "unknown intents must not trigger provider retries")
}

func TestGateway_Checkout(t *testing.T) {
	t.Run("ValidationFailure", func(t *testing.T) {
		g := newGateway(t)
		rec := g.postCheckout(t, `{"bookingRef":"","amount":5000,"currency":"USD"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("ProviderFailure", func(t *testing.T) {
		g := newGateway(t)
		g.provider.fail = &core.ProviderError{Code: "api_error", Message: "provider down", Transient: true}
		rec := g.postCheckout(t, `{"bookingRef":"B1","amount":5000,"currency":"USD"}`)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestGateway_GetPayment(t *testing.T) {
	g := newGateway(t)
	resp := g.postCheckout(t, `{"bookingRef":"B1","amount":5000,"currency":"USD"}`)
	require.Equal(t, http.StatusOK, resp.Code)

	stored, err := g.repo.GetByIntentID(context.Background(), "pi_1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := g.echo.NewContext(req, rec)
	c.SetPath("/payments/:id")
	c.SetParamNames("id")
	c.SetParamValues(stored.ID.String())
	require.NoError(t, g.handler.GetPayment(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var view PaymentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "B1", view.BookingRef)
	assert.Equal(t, "PENDING", view.Status)
}
