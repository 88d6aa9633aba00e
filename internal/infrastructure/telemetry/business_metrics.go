package telemetry

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/ledgerly/invoicing/internal/domain/shared"
)

// errNoMeter is returned when business metrics are built without a meter
var errNoMeter = errors.New("telemetry: business metrics need a meter")

// QueueDepthProvider reports how many validation jobs are waiting.
type QueueDepthProvider interface {
	QueueLength() int
}

// BusinessMetrics counts issuance outcomes and VAT validation activity.
type BusinessMetrics struct {
	issued      Counter
	issuedMinor Counter
	blocked     Counter
	conflicts   Counter
	validations Counter
	enqueues    Counter

	instruments *Instruments
	mu          sync.Mutex
	observers   []metric.Registration
}

// NewBusinessMetrics registers the invoicing counters on meter.
func NewBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	if meter == nil {
		return nil, errNoMeter
	}
	in := NewInstruments(meter)
	bm := &BusinessMetrics{
		issued:      in.Counter("invoicing_invoices_issued_total", "Invoices issued", "{invoice}"),
		issuedMinor: in.Counter("invoicing_issued_amount_minor_total", "Issued invoice totals in minor units", "{minor_unit}"),
		blocked:     in.Counter("invoicing_issuance_blocked_total", "Issue attempts refused by a policy check", "{attempt}"),
		conflicts:   in.Counter("invoicing_number_allocation_conflicts_total", "Number allocations retried after a conflict", "{conflict}"),
		validations: in.Counter("invoicing_vat_validations_total", "VAT identity validations by outcome", "{validation}"),
		enqueues:    in.Counter("invoicing_vat_enqueue_attempts_total", "Validation enqueue attempts by outcome", "{attempt}"),
		instruments: in,
	}
	if err := in.Err(); err != nil {
		return nil, err
	}
	return bm, nil
}

// RecordInvoiceIssued counts an issued invoice and adds its total.
func (bm *BusinessMetrics) RecordInvoiceIssued(ctx context.Context, sellerID uuid.UUID, currency string, total int64) {
	seller, cur := AttrSellerID.String(sellerID.String()), AttrCurrency.String(currency)
	bm.issued.Inc(ctx, seller, cur)
	bm.issuedMinor.Add(ctx, total, seller, cur)
}

// RecordIssuanceBlocked counts an issue attempt refused with category.
func (bm *BusinessMetrics) RecordIssuanceBlocked(ctx context.Context, category shared.ErrorCategory) {
	bm.blocked.Inc(ctx, AttrBlockCategory.String(string(category)))
}

func (bm *BusinessMetrics) RecordAllocationConflict(ctx context.Context) {
	bm.conflicts.Inc(ctx)
}

// RecordVatValidation counts a validation outcome: a status, or "error".
func (bm *BusinessMetrics) RecordVatValidation(ctx context.Context, outcome string) {
	bm.validations.Inc(ctx, AttrVatOutcome.String(outcome))
}

// RecordVatEnqueue counts whether a resolve produced a validation job.
func (bm *BusinessMetrics) RecordVatEnqueue(ctx context.Context, enqueued bool) {
	outcome := "skipped"
	if enqueued {
		outcome = "enqueued"
	}
	bm.enqueues.Inc(ctx, AttrEnqueueOutcome.String(outcome))
}

// ObserveQueue reports the depth of queue at every collection until Close.
func (bm *BusinessMetrics) ObserveQueue(queue QueueDepthProvider) error {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	reg := bm.instruments.Gauge("invoicing_vat_validation_queue_depth",
		"VAT validation jobs waiting for a worker", "{job}",
		func() int64 { return int64(queue.QueueLength()) })
	if err := bm.instruments.Err(); err != nil {
		return err
	}
	bm.observers = append(bm.observers, reg)
	return nil
}

// Close stops the queue observers.
func (bm *BusinessMetrics) Close() error {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	var errs []error
	for _, reg := range bm.observers {
		errs = append(errs, reg.Unregister())
	}
	bm.observers = nil
	return errors.Join(errs...)
}
