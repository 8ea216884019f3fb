package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/talkspace/payment-gateway/internal/core"
	"github.com/talkspace/payment-gateway/internal/port/input"
	"go.uber.org/zap"
)

// SignatureHeaderName carries the provider's timestamp+signature for webhook
// deliveries.
const SignatureHeaderName = "Stripe-Signature"

// PaymentHandler is a primary adapter (HTTP handler)
type PaymentHandler struct {
	checkout input.CheckoutService
	webhooks input.WebhookService
	logger   *zap.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(checkout input.CheckoutService, webhooks input.WebhookService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		checkout: checkout,
		webhooks: webhooks,
		logger:   logger,
	}
}

// CheckoutRequest represents the HTTP request to open a payment session
type CheckoutRequest struct {
	BookingRef string `json:"bookingRef"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
}

// CheckoutResponse represents the HTTP response for a created session
type CheckoutResponse struct {
	SessionID       string `json:"sessionId"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	PaymentIntentID string `json:"paymentIntentId"`
	ClientSecret    string `json:"clientSecret"`
	Status          string `json:"status"`
}

// PaymentResponse represents the HTTP response for a payment record
type PaymentResponse struct {
	ID              string `json:"id"`
	BookingRef      string `json:"bookingRef"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	Status          string `json:"status"`
	PaymentIntentID string `json:"paymentIntentId"`
	CreatedAt       string `json:"createdAt"`
}

// Checkout handles POST /checkout
func (h *PaymentHandler) Checkout(c echo.Context) error {
	var req CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid request body",
		})
	}

	handle, err := h.checkout.Checkout(c.Request().Context(), input.CheckoutRequest{
		BookingRef:  req.BookingRef,
		AmountMinor: req.Amount,
		Currency:    req.Currency,
	})
	if err != nil {
		if errors.Is(err, core.ErrInvalidCheckout) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		var provErr *core.ProviderError
		if errors.As(err, &provErr) {
			return c.JSON(http.StatusBadGateway, map[string]string{"error": provErr.Message})
		}
		h.logger.Error("checkout failed", zap.String("booking_ref", req.BookingRef), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to create payment session",
		})
	}

	return c.JSON(http.StatusOK, CheckoutResponse{
		SessionID:       handle.SessionID,
		Amount:          handle.AmountMinor,
		Currency:        handle.Currency,
		PaymentIntentID: handle.ProviderIntentID,
		ClientSecret:    handle.ClientSecret,
		Status:          string(handle.Status),
	})
}

// Webhook handles POST /webhook. The body is read raw and passed to the
// pipeline unmodified; signature verification depends on the exact bytes as
// received.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	rawBody, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Failed to read request body"})
	}
	signature := c.Request().Header.Get(SignatureHeaderName)

	// The provider expects a definitive acknowledgment only after a durable
	// commit. Processing is detached from the client connection so a caller
	// abort mid-pipeline cannot leave a half-applied event behind.
	ctx := context.WithoutCancel(c.Request().Context())

	outcome, err := h.webhooks.HandleDelivery(ctx, rawBody, signature)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrMissingSignature),
			errors.Is(err, core.ErrMalformedSignature),
			errors.Is(err, core.ErrInvalidSignature),
			errors.Is(err, core.ErrSignatureExpired):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Webhook signature verification failed"})
		case errors.Is(err, core.ErrMalformedPayload):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid payload"})
		default:
			// 5xx triggers provider redelivery, which is what we want for
			// transient internal failures. No internal detail leaks.
			h.logger.Error("webhook processing failed", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Webhook processing failed"})
		}
	}

	h.logger.Debug("webhook acknowledged", zap.String("outcome", string(outcome)))
	return c.JSON(http.StatusOK, map[string]bool{"received": true})
}

// GetPayment handles payment retrieval by ID
func (h *PaymentHandler) GetPayment(c echo.Context) error {
	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid payment ID",
		})
	}

	view, err := h.checkout.GetPayment(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, core.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "Payment not found",
			})
		}
		h.logger.Error("failed to retrieve payment", zap.String("id", idStr), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to retrieve payment",
		})
	}

	return c.JSON(http.StatusOK, PaymentResponse{
		ID:              view.ID.String(),
		BookingRef:      view.BookingRef,
		Amount:          view.AmountMinor,
		Currency:        view.Currency,
		Status:          string(view.Status),
		PaymentIntentID: view.ProviderIntentID,
		CreatedAt:       view.CreatedAt.Format(time.RFC3339),
	})
}
