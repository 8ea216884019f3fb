package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/talkspace/payment-gateway/internal/core"
	"github.com/talkspace/payment-gateway/internal/core/webhook"
	"github.com/talkspace/payment-gateway/internal/port/input"
	"github.com/talkspace/payment-gateway/internal/port/output"
	"go.uber.org/zap"
)

// WebhookServiceImpl implements the WebhookService input port: the intake and
// reconciliation pipeline behind POST /webhook.
type WebhookServiceImpl struct {
	verifier   *webhook.Verifier
	idempotent output.IdempotencyStore
	reconciler *Reconciler
	logger     *zap.Logger
}

// NewWebhookService creates the webhook pipeline service.
func NewWebhookService(
	verifier *webhook.Verifier,
	idempotent output.IdempotencyStore,
	reconciler *Reconciler,
	logger *zap.Logger,
) input.WebhookService {
	return &WebhookServiceImpl{
		verifier:   verifier,
		idempotent: idempotent,
		reconciler: reconciler,
		logger:     logger,
	}
}

// HandleDelivery runs one raw delivery through verify, parse, reserve, apply
// and commit. Returned errors belong to the core taxonomy for authentication
// and validation, or are internal failures the boundary maps to 5xx so the
// provider redelivers.
func (s *WebhookServiceImpl) HandleDelivery(ctx context.Context, rawBody []byte, signatureHeader string) (input.WebhookOutcome, error) {
	if err := s.verifier.Verify(rawBody, signatureHeader); err != nil {
		s.logger.Warn("rejected webhook delivery", zap.Error(err))
		return "", err
	}

	event, err := webhook.Parse(rawBody)
	if err != nil {
		s.logger.Warn("rejected webhook payload", zap.Error(err))
		return "", err
	}

	if event.Kind == core.EventKindUnknown {
		// Providers add event types without notice; acknowledge and ignore so
		// they do not retry deliveries we will never act on.
		s.logger.Debug("ignoring unhandled event type", zap.String("event_id", event.ID))
		return input.OutcomeIgnored, nil
	}

	reserved, err := s.idempotent.TryBegin(ctx, event.ID)
	if err != nil {
		return "", fmt.Errorf("failed to reserve event %s: %w", event.ID, err)
	}
	if !reserved {
		s.logger.Info("duplicate event delivery", zap.String("event_id", event.ID))
		return input.OutcomeDuplicate, nil
	}

	result, err := s.reconciler.Apply(ctx, event)
	if err != nil {
		if errors.Is(err, core.ErrStatusConflict) {
			// A terminal status is a one-way gate. The conflict needs operator
			// attention, and redelivery cannot resolve it, so commit the event
			// and acknowledge to stop the retry loop.
			s.logger.Error("terminal status conflict",
				zap.String("event_id", event.ID),
				zap.String("intent_id", event.IntentID),
				zap.String("event_kind", string(event.Kind)))
			if err := s.commit(ctx, event.ID); err != nil {
				return "", err
			}
			return input.OutcomeConflict, nil
		}
		// Transient failure: release the reservation so the provider's
		// redelivery can retry, and let the boundary answer 5xx.
		if relErr := s.idempotent.Release(ctx, event.ID); relErr != nil {
			s.logger.Error("failed to release idempotency reservation",
				zap.String("event_id", event.ID), zap.Error(relErr))
		}
		return "", fmt.Errorf("reconciliation failed for event %s: %w", event.ID, err)
	}

	if err := s.commit(ctx, event.ID); err != nil {
		return "", err
	}

	switch result.Outcome {
	case ApplyNotFound:
		// Redelivery cannot resolve an unknown intent; ack and leave the
		// anomaly to operators.
		return input.OutcomeAnomaly, nil
	case ApplyAlreadyTerminal:
		return input.OutcomeDuplicate, nil
	default:
		s.logger.Info("payment event applied",
			zap.String("event_id", event.ID),
			zap.String("booking_ref", result.BookingRef),
			zap.String("status", string(result.NewStatus)))
		return input.OutcomeProcessed, nil
	}
}

// commit marks the event processed; on failure the reservation is released so
// a redelivery can reprocess and recommit. Reprocessing is safe: the applied
// transition lands on the already-terminal path and the publish is idempotent.
func (s *WebhookServiceImpl) commit(ctx context.Context, eventID string) error {
	if err := s.idempotent.Commit(ctx, eventID); err != nil {
		if relErr := s.idempotent.Release(ctx, eventID); relErr != nil {
			s.logger.Error("failed to release idempotency reservation",
				zap.String("event_id", eventID), zap.Error(relErr))
		}
		return fmt.Errorf("failed to commit event %s: %w", eventID, err)
	}
	return nil
}
