package vatid

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists VAT identity cache rows.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*VatIdentity, error)
	FindByKey(ctx context.Context, key Key) (*VatIdentity, error)

	// FindOrCreate returns the row for key, inserting a pending row when none exists.
	// Concurrent callers with the same key converge on one row.
	FindOrCreate(ctx context.Context, key Key) (*VatIdentity, error)

	// ClaimEnqueue stamps last_enqueued_at = now only if the row is not throttled.
	// It returns false when another caller claimed it within the throttle window.
	ClaimEnqueue(ctx context.Context, id uuid.UUID, now time.Time, throttle time.Duration) (bool, error)

	// ReleaseEnqueue undoes a claim made at claimedAt whose job never reached
	// the queue, restoring previous. A stamp written by a later claim is kept.
	ReleaseEnqueue(ctx context.Context, id uuid.UUID, claimedAt time.Time, previous *time.Time) error

	// SaveValidation writes the fields owned by the background validation job.
	SaveValidation(ctx context.Context, identity *VatIdentity) error

	// FindStaleReferenced lists rows referenced by a seller or buyer that were
	// checked before checkedBefore (or never), oldest first.
	FindStaleReferenced(ctx context.Context, checkedBefore time.Time, limit int) ([]VatIdentity, error)
}
