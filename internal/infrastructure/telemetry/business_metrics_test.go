package telemetry

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/ledgerly/invoicing/internal/domain/shared"
)

type queueStub struct{ n atomic.Int64 }

func (q *queueStub) QueueLength() int { return int(q.n.Load()) }

func TestNewBusinessMetrics_NeedsMeter(t *testing.T) {
	_, err := NewBusinessMetrics(nil)
	assert.ErrorIs(t, err, errNoMeter)
}

func TestBusinessMetrics_Issuance(t *testing.T) {
	meter, reader := manualMeter(t)
	ctx := context.Background()
	bm, err := NewBusinessMetrics(meter)
	require.NoError(t, err)

	seller := uuid.New()
	bm.RecordInvoiceIssued(ctx, seller, "EUR", 4758)
	bm.RecordInvoiceIssued(ctx, seller, "EUR", 1000)
	bm.RecordIssuanceBlocked(ctx, shared.CategoryVAT)
	bm.RecordAllocationConflict(ctx)

	assert.Equal(t, int64(2), total(t, reader, "invoicing_invoices_issued_total"))
	assert.Equal(t, int64(5758), total(t, reader, "invoicing_issued_amount_minor_total"))
	assert.Equal(t, int64(1), total(t, reader, "invoicing_issuance_blocked_total"))
	assert.Equal(t, int64(1), total(t, reader, "invoicing_number_allocation_conflicts_total"))
}

func TestBusinessMetrics_VatValidation(t *testing.T) {
	meter, reader := manualMeter(t)
	ctx := context.Background()
	bm, err := NewBusinessMetrics(meter)
	require.NoError(t, err)

	bm.RecordVatValidation(ctx, "valid")
	bm.RecordVatValidation(ctx, "error")
	bm.RecordVatEnqueue(ctx, true)
	bm.RecordVatEnqueue(ctx, false)
	bm.RecordVatEnqueue(ctx, false)

	assert.Equal(t, int64(2), total(t, reader, "invoicing_vat_validations_total"))

	m, ok := reading(t, reader, "invoicing_vat_enqueue_attempts_total")
	require.True(t, ok)
	byOutcome := map[string]int64{}
	for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
		v, _ := dp.Attributes.Value(AttrEnqueueOutcome)
		byOutcome[v.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"enqueued": 1, "skipped": 2}, byOutcome)
}

func TestBusinessMetrics_ObserveQueue(t *testing.T) {
	meter, reader := manualMeter(t)
	bm, err := NewBusinessMetrics(meter)
	require.NoError(t, err)

	q := &queueStub{}
	q.n.Store(5)
	require.NoError(t, bm.ObserveQueue(q))

	m, ok := reading(t, reader, "invoicing_vat_validation_queue_depth")
	require.True(t, ok)
	assert.Equal(t, int64(5), m.Data.(metricdata.Gauge[int64]).DataPoints[0].Value)

	q.n.Store(2)
	m, _ = reading(t, reader, "invoicing_vat_validation_queue_depth")
	assert.Equal(t, int64(2), m.Data.(metricdata.Gauge[int64]).DataPoints[0].Value)

	require.NoError(t, bm.Close())
	assert.NoError(t, bm.Close())
}
