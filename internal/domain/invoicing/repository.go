package invoicing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerly/invoicing/internal/domain/shared"
)

// InvoiceFilter narrows invoice listings.
type InvoiceFilter struct {
	shared.Filter
	Status  Status
	BuyerID *uuid.UUID
}

// InvoiceRepository persists invoices and their items.
// Every write goes through GuardInvoiceWrite and GuardItemWrite against the
// persisted state, and pending lifecycle events are appended to the audit trail
// in the same transaction.
type InvoiceRepository interface {
	FindByID(ctx context.Context, sellerID, id uuid.UUID) (*Invoice, error)
	// FindByIDForUpdate locks the invoice row until the surrounding transaction ends.
	FindByIDForUpdate(ctx context.Context, sellerID, id uuid.UUID) (*Invoice, error)
	FindByPublicID(ctx context.Context, publicID uuid.UUID, shareToken string) (*Invoice, error)
	FindAll(ctx context.Context, sellerID uuid.UUID, filter InvoiceFilter) ([]Invoice, int64, error)
	FindDrafts(ctx context.Context, sellerID uuid.UUID, buyerID *uuid.UUID) ([]Invoice, error)
	// CountIssuedBetween counts non-draft invoices with from <= issue_date < to.
	CountIssuedBetween(ctx context.Context, sellerID uuid.UUID, from, to time.Time) (int64, error)
	Save(ctx context.Context, inv *Invoice) error
}

// InvoiceItemRepository writes single lines. Each write checks the parent status.
type InvoiceItemRepository interface {
	FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]InvoiceItem, error)
	Create(ctx context.Context, item *InvoiceItem) error
	Update(ctx context.Context, item *InvoiceItem) error
	Delete(ctx context.Context, invoiceID, itemID uuid.UUID) error
}

// SequenceRepository advances gapless counters.
type SequenceRepository interface {
	// Increment advances the counter for key by one and returns the new value.
	// It must run inside the issuing transaction.
	Increment(ctx context.Context, key SequenceKey) (int64, error)
	Current(ctx context.Context, key SequenceKey) (int64, error)
}

// EventRepository reads and appends audit entries. Entries are never updated or deleted.
type EventRepository interface {
	Append(ctx context.Context, events ...InvoiceEvent) error
	FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]InvoiceEvent, error)
}
