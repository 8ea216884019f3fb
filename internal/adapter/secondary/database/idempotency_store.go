package database

import (
	"context"
	"fmt"
	"time"

	"github.com/talkspace/payment-gateway/internal/constant/model/db"
	"github.com/talkspace/payment-gateway/internal/port/output"
	"gorm.io/gorm"
)

// GormIdempotencyStore is a secondary adapter that implements the
// IdempotencyStore output port on top of the idempotency_records table.
// Atomicity of the reservation comes from the primary-key constraint:
// exactly one concurrent INSERT for an event id can win.
type GormIdempotencyStore struct {
	gormDB *gorm.DB
}

// NewGormIdempotencyStore creates a new GORM idempotency store
func NewGormIdempotencyStore(gormDB *gorm.DB) output.IdempotencyStore {
	return &GormIdempotencyStore{gormDB: gormDB}
}

// TryBegin reserves processing rights for an event id. ON CONFLICT DO NOTHING
// makes the insert race-safe: the delivery that gets RowsAffected=1 owns the
// event, every other concurrent delivery sees 0.
func (s *GormIdempotencyStore) TryBegin(ctx context.Context, eventID string) (bool, error) {
	res := s.gormDB.WithContext(ctx).Exec(
		`INSERT INTO idempotency_records (event_id, status, reserved_at) VALUES (?, ?, ?) ON CONFLICT (event_id) DO NOTHING`,
		eventID, db.IdempotencyStatusReserved, time.Now(),
	)
	if res.Error != nil {
		return false, fmt.Errorf("failed to reserve event: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Commit marks an event as processed
func (s *GormIdempotencyStore) Commit(ctx context.Context, eventID string) error {
	res := s.gormDB.WithContext(ctx).Exec(
		`UPDATE idempotency_records SET status = ?, processed_at = ? WHERE event_id = ?`,
		db.IdempotencyStatusProcessed, time.Now(), eventID,
	)
	if res.Error != nil {
		return fmt.Errorf("failed to commit event: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("no reservation to commit for event %s", eventID)
	}
	return nil
}

// Release drops an uncommitted reservation so a redelivery can retry.
// Processed entries are never released.
func (s *GormIdempotencyStore) Release(ctx context.Context, eventID string) error {
	res := s.gormDB.WithContext(ctx).Exec(
		`DELETE FROM idempotency_records WHERE event_id = ? AND status = ?`,
		eventID, db.IdempotencyStatusReserved,
	)
	if res.Error != nil {
		return fmt.Errorf("failed to release event: %w", res.Error)
	}
	return nil
}

// Prune removes processed entries older than the cutoff. Reservations are
// only removed past the same cutoff, so an in-flight reservation inside the
// retention window is never pruned.
func (s *GormIdempotencyStore) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res := s.gormDB.WithContext(ctx).Exec(
		`DELETE FROM idempotency_records WHERE (status = ? AND processed_at < ?) OR (status = ? AND reserved_at < ?)`,
		db.IdempotencyStatusProcessed, olderThan,
		db.IdempotencyStatusReserved, olderThan,
	)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to prune idempotency records: %w", res.Error)
	}
	return res.RowsAffected, nil
}
