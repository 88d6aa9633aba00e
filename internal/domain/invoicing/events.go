package invoicing

import (
	"time"

	"github.com/google/uuid"

	"github.com/ledgerly/invoicing/internal/domain/shared"
)

// Event types recorded in the audit trail
const (
	EventTypeInvoiceCreated        = "InvoiceCreated"
	EventTypeInvoiceIssued         = "InvoiceIssued"
	EventTypeInvoicePaid           = "InvoicePaid"
	EventTypeInvoiceVoided         = "InvoiceVoided"
	EventTypeInvoiceDueDateChanged = "InvoiceDueDateChanged"
	EventTypeInvoiceTaxOverridden  = "InvoiceTaxOverridden"
)

// LifecycleEvent is raised by the Invoice aggregate and persisted as an audit entry
// in the same transaction as the change that produced it.
type LifecycleEvent struct {
	shared.EventHeader
	InvoiceID  uuid.UUID `json:"invoice_id"`
	Actor      string    `json:"actor"`
	FromStatus Status    `json:"from_status,omitempty"`
	ToStatus   Status    `json:"to_status,omitempty"`
	Message    string    `json:"message,omitempty"`
}

func newLifecycleEvent(eventType string, inv *Invoice, actor string, from, to Status, message string) *LifecycleEvent {
	return &LifecycleEvent{
		EventHeader: shared.NewEventHeader(eventType, inv.ID, inv.SellerID),
		InvoiceID:       inv.ID,
		Actor:           actor,
		FromStatus:      from,
		ToStatus:        to,
		Message:         message,
	}
}

// InvoiceEvent is an append-only audit trail entry.
type InvoiceEvent struct {
	ID         uuid.UUID
	InvoiceID  uuid.UUID
	SellerID   uuid.UUID
	Actor      string
	EventType  string
	FromStatus Status
	ToStatus   Status
	Message    string
	CreatedAt  time.Time
}

// AuditEntry converts a lifecycle event into its stored form.
func (e *LifecycleEvent) AuditEntry() InvoiceEvent {
	return InvoiceEvent{
		ID:         e.ID,
		InvoiceID:  e.InvoiceID,
		SellerID:   e.Seller,
		Actor:      e.Actor,
		EventType:  e.Type,
		FromStatus: e.FromStatus,
		ToStatus:   e.ToStatus,
		Message:    e.Message,
		CreatedAt:  e.At,
	}
}
