package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/talkspace/payment-gateway/internal/core"
	"github.com/talkspace/payment-gateway/internal/port/input"
	"github.com/talkspace/payment-gateway/internal/port/output"
	"go.uber.org/zap"
)

// CheckoutServiceImpl implements the CheckoutService input port
type CheckoutServiceImpl struct {
	provider output.PaymentProvider
	repo     output.PaymentRepository
	logger   *zap.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	provider output.PaymentProvider,
	repo output.PaymentRepository,
	logger *zap.Logger,
) input.CheckoutService {
	return &CheckoutServiceImpl{
		provider: provider,
		repo:     repo,
		logger:   logger,
	}
}

// Checkout opens a provider payment session for a booking and records it
// locally in PENDING status with the provider intent id attached. The intent
// id is the key later webhook events are correlated by, so it is persisted
// here, never derived from the event alone.
func (s *CheckoutServiceImpl) Checkout(ctx context.Context, req input.CheckoutRequest) (*core.SessionHandle, error) {
	req.BookingRef = strings.TrimSpace(req.BookingRef)
	if req.BookingRef == "" {
		return nil, fmt.Errorf("%w: booking reference is required", core.ErrInvalidCheckout)
	}
	if req.AmountMinor <= 0 {
		return nil, fmt.Errorf("%w: amount must be greater than zero", core.ErrInvalidCheckout)
	}
	if len(req.Currency) != 3 {
		return nil, fmt.Errorf("%w: currency must be a 3-letter code", core.ErrInvalidCheckout)
	}
	currency := strings.ToUpper(req.Currency)

	session, err := s.provider.CreateSession(ctx, output.CreateSessionRequest{
		BookingRef:  req.BookingRef,
		AmountMinor: req.AmountMinor,
		Currency:    currency,
	})
	if err != nil {
		// Surfaced as-is; the boundary distinguishes *core.ProviderError from
		// local failures. No auto-retry here, the caller re-requests.
		return nil, err
	}

	record := &core.PaymentRecord{
		ID:               uuid.New(),
		BookingRef:       req.BookingRef,
		AmountMinor:      session.AmountMinor,
		Currency:         session.Currency,
		Status:           core.PaymentStatusPending,
		ProviderIntentID: session.IntentID,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to persist payment record: %w", err)
	}

	s.logger.Info("checkout session created",
		zap.String("booking_ref", req.BookingRef),
		zap.String("intent_id", session.IntentID),
		zap.Int64("amount_minor", session.AmountMinor),
		zap.String("currency", session.Currency))

	return &core.SessionHandle{
		SessionID:        req.BookingRef,
		AmountMinor:      session.AmountMinor,
		Currency:         session.Currency,
		ProviderIntentID: session.IntentID,
		ClientSecret:     session.ClientSecret,
		Status:           core.PaymentStatusPending,
	}, nil
}

// GetPayment retrieves a payment record by ID
func (s *CheckoutServiceImpl) GetPayment(ctx context.Context, id uuid.UUID) (*input.PaymentView, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &input.PaymentView{
		ID:               record.ID,
		BookingRef:       record.BookingRef,
		AmountMinor:      record.AmountMinor,
		Currency:         record.Currency,
		Status:           record.Status,
		ProviderIntentID: record.ProviderIntentID,
		CreatedAt:        record.CreatedAt,
	}, nil
}
