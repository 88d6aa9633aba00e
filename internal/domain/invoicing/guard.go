package invoicing

import (
	"time"

	"github.com/google/uuid"

	"github.com/ledgerly/invoicing/internal/domain/shared/valueobject"
	"github.com/ledgerly/invoicing/internal/domain/tax"
	"github.com/ledgerly/invoicing/internal/domain/vatid"
)

// InvoiceState is the guarded part of an invoice, as plain values.
type InvoiceState struct {
	Status         Status
	Number         *string
	IssueDate      *time.Time
	DueDate        *time.Time
	Currency       valueobject.Currency
	Subtotal       valueobject.MinorUnits
	VAT            valueobject.MinorUnits
	Total          valueobject.MinorUnits
	SellerDetails  *SellerDetails
	BuyerDetails   *BuyerDetails
	PaymentDetails *PaymentDetails
	BuyerID        uuid.UUID

	Tax                tax.Assignment
	BuyerVatIdentifier string
	BuyerVatStatus     vatid.Status
	DecidedAt          *time.Time
}

// ItemOperation is a kind of write to an invoice line.
type ItemOperation string

const (
	ItemOpAdd    ItemOperation = "add"
	ItemOpModify ItemOperation = "modify"
	ItemOpDelete ItemOperation = "delete"
)

// GuardInvoiceWrite validates a write of next over the persisted prev.
// prev is nil when the invoice is being created, in which case next must be a draft.
// Once prev is not a draft only the status (along the state machine) and the
// due date may change. The tax decision frozen at issuance is part of the record.
func GuardInvoiceWrite(prev *InvoiceState, next InvoiceState) error {
	if prev == nil {
		if next.Status != StatusDraft {
			return ErrInvalidTransition("", next.Status)
		}
		return nil
	}

	if prev.Status != next.Status && !prev.Status.CanTransitionTo(next.Status) {
		return ErrInvalidTransition(prev.Status, next.Status)
	}
	if !prev.Status.IsFrozen() {
		return nil
	}

	switch {
	case !equalStringPtr(prev.Number, next.Number):
		return ErrImmutableField("number")
	case !equalDatePtr(prev.IssueDate, next.IssueDate):
		return ErrImmutableField("issue_date")
	case prev.Currency != next.Currency:
		return ErrImmutableField("currency")
	case prev.Subtotal != next.Subtotal:
		return ErrImmutableField("subtotal")
	case prev.VAT != next.VAT:
		return ErrImmutableField("vat_amount")
	case prev.Total != next.Total:
		return ErrImmutableField("total")
	case !equalSellerDetails(prev.SellerDetails, next.SellerDetails):
		return ErrImmutableField("seller_details")
	case !equalBuyerDetails(prev.BuyerDetails, next.BuyerDetails):
		return ErrImmutableField("buyer_details")
	case !prev.PaymentDetails.Equal(next.PaymentDetails):
		return ErrImmutableField("payment_details")
	case prev.BuyerID != next.BuyerID:
		return ErrImmutableField("buyer_id")
	case prev.Tax.Treatment != next.Tax.Treatment:
		return ErrImmutableField("tax_treatment")
	case !prev.Tax.Rate.Equal(next.Tax.Rate):
		return ErrImmutableField("vat_rate")
	case prev.Tax.Reason != next.Tax.Reason || prev.Tax.ReasonCode != next.Tax.ReasonCode:
		return ErrImmutableField("tax_reason")
	case prev.Tax.TreatmentManual != next.Tax.TreatmentManual || prev.Tax.RateManual != next.Tax.RateManual:
		return ErrImmutableField("tax_override")
	case prev.BuyerVatIdentifier != next.BuyerVatIdentifier:
		return ErrImmutableField("buyer_vat_identifier")
	case prev.BuyerVatStatus != next.BuyerVatStatus:
		return ErrImmutableField("buyer_vat_status")
	case !equalInstantPtr(prev.DecidedAt, next.DecidedAt):
		return ErrImmutableField("decided_at")
	}
	return nil
}

// GuardItemWrite validates a write to a line of an invoice in parentStatus.
func GuardItemWrite(parentStatus Status, op ItemOperation) error {
	if parentStatus.IsFrozen() {
		return ErrItemsFrozen(op)
	}
	return nil
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalDatePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// equalInstantPtr compares at microsecond precision, the resolution PostgreSQL keeps.
func equalInstantPtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Truncate(time.Microsecond).Equal(b.Truncate(time.Microsecond))
}

func equalSellerDetails(a, b *SellerDetails) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalBuyerDetails(a, b *BuyerDetails) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
