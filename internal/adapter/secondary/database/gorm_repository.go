package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/talkspace/payment-gateway/internal/constant/model/db"
	"github.com/talkspace/payment-gateway/internal/core"
	"github.com/talkspace/payment-gateway/internal/port/output"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPaymentRepository is a secondary adapter that implements the
// PaymentRepository output port
type GormPaymentRepository struct {
	gormDB *gorm.DB
}

// NewGormPaymentRepository creates a new GORM payment repository
func NewGormPaymentRepository(gormDB *gorm.DB) output.PaymentRepository {
	return &GormPaymentRepository{gormDB: gormDB}
}

// toCore converts db.PaymentRecord to core.PaymentRecord
func toCore(p *db.PaymentRecord) *core.PaymentRecord {
	return &core.PaymentRecord{
		ID:               p.ID,
		BookingRef:       p.BookingRef,
		AmountMinor:      p.AmountMinor,
		Currency:         p.Currency,
		Status:           core.PaymentStatus(p.Status),
		ProviderIntentID: p.ProviderIntentID,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

// fromCore converts core.PaymentRecord to db.PaymentRecord
func fromCore(p *core.PaymentRecord) *db.PaymentRecord {
	return &db.PaymentRecord{
		ID:               p.ID,
		BookingRef:       p.BookingRef,
		AmountMinor:      p.AmountMinor,
		Currency:         p.Currency,
		Status:           db.PaymentStatus(p.Status),
		ProviderIntentID: p.ProviderIntentID,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

// Create persists a new payment record
func (r *GormPaymentRepository) Create(ctx context.Context, record *core.PaymentRecord) error {
	dbRecord := fromCore(record)
	if err := r.gormDB.WithContext(ctx).Create(dbRecord).Error; err != nil {
		return fmt.Errorf("failed to create payment record: %w", err)
	}
	// Update core entity with timestamps set by GORM hooks
	record.CreatedAt = dbRecord.CreatedAt
	record.UpdatedAt = dbRecord.UpdatedAt
	return nil
}

// GetByID retrieves a payment record by its ID
func (r *GormPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*core.PaymentRecord, error) {
	var dbRecord db.PaymentRecord
	if err := r.gormDB.WithContext(ctx).Where("id = ?", id).First(&dbRecord).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get payment record: %w", err)
	}
	return toCore(&dbRecord), nil
}

// GetByIntentID retrieves a payment record by provider payment-intent id
func (r *GormPaymentRepository) GetByIntentID(ctx context.Context, intentID string) (*core.PaymentRecord, error) {
	var dbRecord db.PaymentRecord
	if err := r.gormDB.WithContext(ctx).Where("provider_intent_id = ?", intentID).First(&dbRecord).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get payment record: %w", err)
	}
	return toCore(&dbRecord), nil
}

// Transition atomically moves a record to a terminal status.
// Uses SELECT FOR UPDATE so concurrent deliveries serialize per record.
func (r *GormPaymentRepository) Transition(ctx context.Context, intentID string, to core.PaymentStatus) (output.Transition, error) {
	var result output.Transition
	err := r.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dbRecord db.PaymentRecord

		// Lock the row and check status using SELECT FOR UPDATE
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("provider_intent_id = ?", intentID).
			First(&dbRecord).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return core.ErrRecordNotFound
			}
			return fmt.Errorf("failed to lock payment record: %w", err)
		}

		// Benign duplicate: already at the requested terminal status
		if dbRecord.Status == db.PaymentStatus(to) {
			result = output.Transition{Record: toCore(&dbRecord), Changed: false}
			return nil
		}

		// Terminal statuses are a one-way gate; a different terminal status
		// is a conflict, never overwritten.
		if dbRecord.IsTerminal() {
			return fmt.Errorf("%w: record %s is %s, event implies %s",
				core.ErrStatusConflict, dbRecord.ID, dbRecord.Status, to)
		}

		dbRecord.Status = db.PaymentStatus(to)
		dbRecord.UpdatedAt = time.Now()
		if err := tx.Save(&dbRecord).Error; err != nil {
			return fmt.Errorf("failed to update payment record: %w", err)
		}

		result = output.Transition{Record: toCore(&dbRecord), Changed: true}
		return nil
	})
	if err != nil {
		return output.Transition{}, err
	}
	return result, nil
}
