package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentStatus represents the status of a payment record in the database
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusSucceeded PaymentStatus = "SUCCEEDED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

// PaymentRecord represents a booking payment in the database.
// provider_intent_id carries a unique index: it is the correlation key
// webhook events are matched against.
type PaymentRecord struct {
	ID               uuid.UUID     `gorm:"type:uuid;primary_key" json:"id"`
	BookingRef       string        `gorm:"type:varchar(255);not null;uniqueIndex" json:"booking_ref"`
	AmountMinor      int64         `gorm:"not null" json:"amount_minor"`
	Currency         string        `gorm:"type:varchar(3);not null" json:"currency"`
	Status           PaymentStatus `gorm:"type:varchar(20);not null" json:"status"`
	ProviderIntentID string        `gorm:"type:varchar(255);not null;uniqueIndex" json:"provider_intent_id"`
	CreatedAt        time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (PaymentRecord) TableName() string {
	return "payment_records"
}

// BeforeCreate is a GORM hook that runs before creating a record
func (p *PaymentRecord) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
	return nil
}

// BeforeUpdate is a GORM hook that runs before updating a record
func (p *PaymentRecord) BeforeUpdate(tx *gorm.DB) error {
	p.UpdatedAt = time.Now()
	return nil
}

// IsTerminal checks if the record is in a terminal state
func (p *PaymentRecord) IsTerminal() bool {
	return p.Status == PaymentStatusSucceeded || p.Status == PaymentStatusFailed
}

// Idempotency entry states. A RESERVED row blocks concurrent deliveries of
// the same event; PROCESSED marks the event as applied.
const (
	IdempotencyStatusReserved  = "RESERVED"
	IdempotencyStatusProcessed = "PROCESSED"
)

// IdempotencyRecord tracks which provider event ids have been applied.
type IdempotencyRecord struct {
	EventID     string     `gorm:"type:varchar(255);primary_key" json:"event_id"`
	Status      string     `gorm:"type:varchar(20);not null" json:"status"`
	ReservedAt  time.Time  `gorm:"not null" json:"reserved_at"`
	ProcessedAt *time.Time `json:"processed_at"`
}

// TableName specifies the table name for GORM
func (IdempotencyRecord) TableName() string {
	return "idempotency_records"
}
