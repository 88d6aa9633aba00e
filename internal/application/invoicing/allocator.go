package invoicing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ledgerly/invoicing/internal/domain/invoicing"
	"github.com/ledgerly/invoicing/internal/domain/shared"
)

// DefaultAllocationRetries bounds compare-and-set retries on a sequence row.
const DefaultAllocationRetries = 5

// Allocator hands out gapless invoice numbers.
//
// The counter row is locked by the sequence repository and advanced with a
// compare-and-set, so the increment commits or rolls back with the invoice
// that consumes it. Callers must pass the repositories of the issuing transaction.
type Allocator struct {
	retries  int
	recorder IssuanceRecorder
	logger   *zap.Logger
}

// NewAllocator creates an Allocator. retries < 1 falls back to DefaultAllocationRetries.
func NewAllocator(retries int, recorder IssuanceRecorder, logger *zap.Logger) *Allocator {
	if retries < 1 {
		retries = DefaultAllocationRetries
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Allocator{retries: retries, recorder: recorder, logger: logger}
}

// NextNumber allocates the next number of (sellerID, year of issueDate, prefix).
func (a *Allocator) NextNumber(ctx context.Context, repos TransactionalRepositories, sellerID uuid.UUID, prefix string, issueDate time.Time) (string, error) {
	key := invoicing.NewSequenceKey(sellerID, prefix, issueDate)

	var lastErr error
	for attempt := 1; attempt <= a.retries; attempt++ {
		n, err := repos.Sequences().Increment(ctx, key)
		if err == nil {
			return invoicing.FormatNumber(key, n), nil
		}
		if !errors.Is(err, shared.ErrConcurrencyConflict) {
			return "", fmt.Errorf("allocate invoice number: %w", err)
		}
		lastErr = err
		a.recorder.RecordAllocationConflict(ctx)
		a.logger.Warn("Invoice sequence conflict, retrying",
			zap.String("seller_id", sellerID.String()),
			zap.Int("year", key.Year),
			zap.String("prefix", key.Prefix),
			zap.Int("attempt", attempt))
	}
	return "", fmt.Errorf("allocate invoice number after %d attempts: %w", a.retries, lastErr)
}
