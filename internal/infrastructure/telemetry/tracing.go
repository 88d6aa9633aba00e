package telemetry

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ledgerly/invoicing/internal/domain/shared"
)

// TracerName names the tracer of the application services
const TracerName = "invoicing"

// Span attribute keys shared by the application services.
const (
	SpanAttrSellerID      = "seller_id"
	SpanAttrBuyerID       = "buyer_id"
	SpanAttrInvoiceID     = "invoice_id"
	SpanAttrInvoiceNumber = "invoice_number"
	SpanAttrIdentityID    = "vat_identity_id"
	SpanAttrProvider      = "vat_provider"
	SpanAttrErrorCategory = "error.category"
)

// StartOperation starts an internal span named "{component}.{operation}".
// The span is taken from the global provider at call time, so a provider
// installed after start-up is honoured.
//
//	ctx, span := telemetry.StartOperation(ctx, "invoice", "issue",
//	    telemetry.IDAttr(telemetry.SpanAttrInvoiceID, invoiceID))
//	defer func() { telemetry.EndOperation(span, err) }()
func StartOperation(ctx context.Context, component, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, component+"."+operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...))
}

// EndOperation ends span with the outcome of err.
//
// Categorized refusals (a blocked issuance, a missing invoice) are answers,
// not faults: they carry their category but leave the status unset. Anything
// else is recorded as an exception and marks the span failed.
func EndOperation(span trace.Span, err error) {
	if span == nil {
		return
	}
	defer span.End()
	if err == nil {
		return
	}
	if category, ok := shared.CategoryOf(err); ok && !isFaultCategory(category) {
		span.SetAttributes(attribute.String(SpanAttrErrorCategory, string(category)))
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// isFaultCategory reports categories that mean the service could not answer
func isFaultCategory(c shared.ErrorCategory) bool {
	return c == shared.CategoryProvider || c == shared.CategoryConcurrency
}

// AddEvent annotates span with a named event
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// IDAttr is a string attribute holding id
func IDAttr(key string, id uuid.UUID) attribute.KeyValue {
	return attribute.String(key, id.String())
}

// StringAttr formats v as a string attribute
func StringAttr(key string, v any) attribute.KeyValue {
	if s, ok := v.(fmt.Stringer); ok {
		return attribute.String(key, s.String())
	}
	return attribute.String(key, fmt.Sprint(v))
}
