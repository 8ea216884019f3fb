package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/talkspace/payment-gateway/internal/core"
	"github.com/talkspace/payment-gateway/internal/port/output"
	"go.uber.org/zap"
)

// ApplyOutcome classifies the result of applying one event to local state.
type ApplyOutcome string

const (
	// ApplyApplied: the record transitioned to the event's implied status.
	ApplyApplied ApplyOutcome = "APPLIED"
	// ApplyAlreadyTerminal: the record already carried the implied status;
	// indistinguishable in result from a fresh apply.
	ApplyAlreadyTerminal ApplyOutcome = "ALREADY_TERMINAL"
	// ApplyNotFound: the intent id matches no known record.
	ApplyNotFound ApplyOutcome = "NOT_FOUND"
)

// ApplyResult reports what the reconciler did with an event.
type ApplyResult struct {
	Outcome    ApplyOutcome
	BookingID  uuid.UUID
	BookingRef string
	NewStatus  core.PaymentStatus
}

// Reconciler applies payment events to the matching payment record and
// triggers the booking confirmation/failure side-effect.
type Reconciler struct {
	repo     output.PaymentRepository
	notifier output.BookingNotifier
	logger   *zap.Logger

	// A webhook can race the local record commit after session creation.
	// Lookups retry a bounded number of times before declaring an anomaly.
	notFoundRetries int
	retryDelay      time.Duration
}

// NewReconciler creates a reconciler with the default not-found retry policy.
func NewReconciler(repo output.PaymentRepository, notifier output.BookingNotifier, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		repo:            repo,
		notifier:        notifier,
		logger:          logger,
		notFoundRetries: 2,
		retryDelay:      100 * time.Millisecond,
	}
}

// WithRetryPolicy overrides the bounded retry-on-not-found policy.
func (r *Reconciler) WithRetryPolicy(retries int, delay time.Duration) *Reconciler {
	r.notFoundRetries = retries
	r.retryDelay = delay
	return r
}

// Apply transitions the record referenced by the event and publishes the
// booking outcome. The status transition is atomic per record; the publish is
// idempotent per booking, so reprocessing after a crash between the two is
// safe.
func (r *Reconciler) Apply(ctx context.Context, event core.PaymentEvent) (ApplyResult, error) {
	target, ok := event.OutcomeStatus()
	if !ok {
		return ApplyResult{}, fmt.Errorf("event %s has no outcome status", event.ID)
	}

	tr, err := r.transitionWithRetry(ctx, event.IntentID, target)
	if err != nil {
		if errors.Is(err, core.ErrRecordNotFound) {
			r.logger.Warn("event references unknown payment intent",
				zap.String("event_id", event.ID),
				zap.String("intent_id", event.IntentID))
			return ApplyResult{Outcome: ApplyNotFound}, nil
		}
		return ApplyResult{}, err
	}

	result := ApplyResult{
		BookingID:  tr.Record.ID,
		BookingRef: tr.Record.BookingRef,
		NewStatus:  tr.Record.Status,
	}

	// The publish also runs on the already-terminal path: if a previous
	// attempt crashed between the durable transition and the publish, the
	// redelivery lands here and recovers the side-effect. Consumers dedup by
	// booking reference, so republishing is safe.
	if err := r.notifier.PublishOutcome(ctx, tr.Record.BookingRef, tr.Record.Status); err != nil {
		return ApplyResult{}, fmt.Errorf("failed to publish booking outcome: %w", err)
	}

	if tr.Changed {
		result.Outcome = ApplyApplied
	} else {
		result.Outcome = ApplyAlreadyTerminal
	}
	return result, nil
}

func (r *Reconciler) transitionWithRetry(ctx context.Context, intentID string, to core.PaymentStatus) (output.Transition, error) {
	var tr output.Transition
	var err error
	for attempt := 0; ; attempt++ {
		tr, err = r.repo.Transition(ctx, intentID, to)
		if !errors.Is(err, core.ErrRecordNotFound) || attempt >= r.notFoundRetries {
			return tr, err
		}
		select {
		case <-ctx.Done():
			return output.Transition{}, ctx.Err()
		case <-time.After(r.retryDelay):
		}
	}
}
