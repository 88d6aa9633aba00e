// Package vatid links sellers and buyers to the shared VAT identity cache and
// runs background re-validation against the configured provider.
package vatid

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ValidationJob asks for one cache row to be validated with the provider.
type ValidationJob struct {
	IdentityID uuid.UUID
	Country    string
	Identifier string
	EnqueuedAt time.Time
	// Manual is set for user-triggered rechecks.
	Manual bool
}

// JobQueue accepts validation jobs for asynchronous execution.
type JobQueue interface {
	Enqueue(ctx context.Context, job ValidationJob) error
}

// DraftRecomputer refreshes draft invoices whose buyer is linked to an identity.
type DraftRecomputer interface {
	RecomputeForIdentity(ctx context.Context, identityID uuid.UUID) (int, error)
}

// ValidationRecorder receives validation outcomes for metrics.
type ValidationRecorder interface {
	RecordVatValidation(ctx context.Context, outcome string)
	RecordVatEnqueue(ctx context.Context, enqueued bool)
}

// InflightKey is the idempotency-store key guarding one in-flight validation.
func InflightKey(identityID uuid.UUID) string {
	return "vat-validation:" + identityID.String()
}

type noopRecorder struct{}

func (noopRecorder) RecordVatValidation(context.Context, string) {}
func (noopRecorder) RecordVatEnqueue(context.Context, bool)      {}
