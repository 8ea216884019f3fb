package output

import (
	"context"

	"github.com/google/uuid"
	"github.com/talkspace/payment-gateway/internal/core"
)

// Transition is the result of an atomic status transition attempt.
// Changed is false on the benign duplicate path: the record was already at
// the requested terminal status and nothing was written.
type Transition struct {
	Record  *core.PaymentRecord
	Changed bool
}

// PaymentRepository is an output port (secondary port) for payment records.
// Secondary adapters (database implementations) implement this.
type PaymentRepository interface {
	// Create persists a new payment record in PENDING status.
	Create(ctx context.Context, record *core.PaymentRecord) error

	// GetByID retrieves a payment record by its identifier.
	GetByID(ctx context.Context, id uuid.UUID) (*core.PaymentRecord, error)

	// GetByIntentID retrieves a payment record by provider payment-intent id.
	GetByIntentID(ctx context.Context, intentID string) (*core.PaymentRecord, error)

	// Transition atomically moves the record matching intentID to the given
	// terminal status. The check-and-set must be atomic per record (row-level
	// lock or compare-and-set). Returns core.ErrRecordNotFound when no record
	// matches, and core.ErrStatusConflict when the record is already at the
	// opposite terminal status.
	Transition(ctx context.Context, intentID string, to core.PaymentStatus) (Transition, error)
}
