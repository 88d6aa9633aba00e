package invoicing

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerly/invoicing/internal/domain/shared"
	"github.com/ledgerly/invoicing/internal/domain/shared/valueobject"
	"github.com/ledgerly/invoicing/internal/domain/tax"
	"github.com/ledgerly/invoicing/internal/domain/vatid"
)

// Invoice is the aggregate root for the invoice lifecycle.
type Invoice struct {
	shared.SellerScopedRoot
	BuyerID  uuid.UUID
	Status   Status
	Currency valueobject.Currency
	Tax      tax.Assignment
	Subtotal valueobject.MinorUnits
	VAT      valueobject.MinorUnits
	Total    valueobject.MinorUnits

	Number    *string
	IssueDate *time.Time
	DueDate   *time.Time

	SellerDetails  *SellerDetails
	BuyerDetails   *BuyerDetails
	PaymentDetails *PaymentDetails

	// Buyer VAT identity as seen when the tax decision was frozen.
	BuyerVatIdentifier string
	BuyerVatStatus     vatid.Status
	DecidedAt          *time.Time

	PublicID   uuid.UUID
	ShareToken string
	Notes      string
	PaidAt     *time.Time
	VoidedAt   *time.Time

	Items []InvoiceItem

	itemsReplaced bool
}

// DraftInput carries the fields of a new draft.
type DraftInput struct {
	BuyerID   uuid.UUID
	Currency  string
	IssueDate *time.Time
	DueDate   *time.Time
	Notes     string
	Items     []ItemInput
}

// NewDraft creates a draft invoice for sellerID.
func NewDraft(sellerID uuid.UUID, in DraftInput, actor string) (*Invoice, error) {
	if in.BuyerID == uuid.Nil {
		return nil, shared.NewFieldError("buyer_id", "INVALID_BUYER", "Buyer is required")
	}
	cur, err := valueobject.ParseCurrency(in.Currency)
	if err != nil {
		return nil, shared.NewFieldError("currency", "INVALID_CURRENCY", err.Error())
	}
	token, err := newShareToken()
	if err != nil {
		return nil, fmt.Errorf("generate share token: %w", err)
	}

	inv := &Invoice{
		SellerScopedRoot: shared.NewSellerScopedRoot(sellerID),
		BuyerID:          in.BuyerID,
		Status:           StatusDraft,
		Currency:         cur,
		IssueDate:        dateOnly(in.IssueDate),
		DueDate:          dateOnly(in.DueDate),
		Notes:            in.Notes,
		PublicID:         uuid.New(),
		ShareToken:       token,
	}
	if err := inv.validateDates(inv.IssueDate, inv.DueDate); err != nil {
		return nil, err
	}
	if err := inv.ReplaceItems(in.Items); err != nil {
		return nil, err
	}

	inv.Raise(newLifecycleEvent(EventTypeInvoiceCreated, inv, actor, "", StatusDraft, "Draft created"))
	return inv, nil
}

// IsDraft reports whether the invoice can still be edited.
func (i *Invoice) IsDraft() bool {
	return i.Status == StatusDraft
}

// NumberValue returns the number or "" when not yet issued.
func (i *Invoice) NumberValue() string {
	if i.Number == nil {
		return ""
	}
	return *i.Number
}

// ReplaceItems swaps all lines for new ones and recomputes totals.
func (i *Invoice) ReplaceItems(inputs []ItemInput) error {
	if !i.IsDraft() {
		return ErrItemsFrozen(ItemOpModify)
	}
	items := make([]InvoiceItem, 0, len(inputs))
	for idx, in := range inputs {
		if err := in.Validate(idx); err != nil {
			return err
		}
		items = append(items, newItem(i.ID, idx+1, in))
	}
	i.Items = items
	i.itemsReplaced = true
	i.RecomputeTotals()
	return nil
}

// ItemsReplaced reports whether items changed since the last save.
func (i *Invoice) ItemsReplaced() bool {
	return i.itemsReplaced
}

// MarkItemsPersisted clears the replaced flag after a save.
func (i *Invoice) MarkItemsPersisted() {
	i.itemsReplaced = false
}

// RecomputeTotals derives subtotal, VAT and total from the lines and the current rate.
func (i *Invoice) RecomputeTotals() {
	lines := make([]valueobject.MinorUnits, 0, len(i.Items))
	for _, it := range i.Items {
		lines = append(lines, it.LineTotal)
	}
	t := valueobject.ComputeTotals(lines, i.Tax.Rate)
	i.Subtotal, i.VAT, i.Total = t.Subtotal, t.VAT, t.Total
}

// UpdateDraft changes the editable header fields of a draft.
func (i *Invoice) UpdateDraft(buyerID uuid.UUID, currency string, issueDate, dueDate *time.Time, notes string) error {
	if !i.IsDraft() {
		return ErrInvoiceFrozen.WithMessage("Invoice %s is %s and can no longer be edited", i.NumberValue(), i.Status)
	}
	if buyerID == uuid.Nil {
		return shared.NewFieldError("buyer_id", "INVALID_BUYER", "Buyer is required")
	}
	cur, err := valueobject.ParseCurrency(currency)
	if err != nil {
		return shared.NewFieldError("currency", "INVALID_CURRENCY", err.Error())
	}
	issueDate, dueDate = dateOnly(issueDate), dateOnly(dueDate)
	if err := i.validateDates(issueDate, dueDate); err != nil {
		return err
	}
	i.BuyerID = buyerID
	i.Currency = cur
	i.IssueDate = issueDate
	i.DueDate = dueDate
	i.Notes = notes
	i.Touch()
	return nil
}

// ApplyTax stores a tax assignment on a draft and recomputes totals.
func (i *Invoice) ApplyTax(a tax.Assignment) error {
	if !i.IsDraft() {
		return ErrInvoiceFrozen.WithMessage("Tax treatment of invoice %s is frozen", i.NumberValue())
	}
	i.Tax = a
	i.RecomputeTotals()
	return nil
}

// RecordTaxOverride adds an audit entry for a manual tax change.
func (i *Invoice) RecordTaxOverride(actor, message string) {
	i.Raise(newLifecycleEvent(EventTypeInvoiceTaxOverridden, i, actor, i.Status, i.Status, message))
}

// IssueParams is everything frozen onto the invoice at issuance.
type IssueParams struct {
	Number             string
	IssueDate          time.Time
	Tax                tax.Assignment
	BuyerVatIdentifier string
	BuyerVatStatus     vatid.Status
	DecidedAt          time.Time
	Seller             SellerDetails
	Buyer              BuyerDetails
	Payment            PaymentDetails
}

// Issue transitions a draft to issued and freezes its legal content.
func (i *Invoice) Issue(p IssueParams, actor string) error {
	if !i.Status.CanTransitionTo(StatusIssued) {
		return ErrInvalidTransition(i.Status, StatusIssued)
	}
	if len(i.Items) == 0 {
		return ErrNoItems
	}
	if p.Number == "" {
		return shared.ErrInvalidInput.WithMessage("Invoice number is required to issue")
	}

	issueDate := *dateOnly(&p.IssueDate)
	decided := p.DecidedAt.UTC()
	number := p.Number
	seller, buyer, payment := p.Seller, p.Buyer, p.Payment

	i.Tax = p.Tax
	i.RecomputeTotals()
	i.Number = &number
	i.IssueDate = &issueDate
	i.BuyerVatIdentifier = p.BuyerVatIdentifier
	i.BuyerVatStatus = p.BuyerVatStatus
	i.DecidedAt = &decided
	i.SellerDetails = &seller
	i.BuyerDetails = &buyer
	i.PaymentDetails = &payment
	i.Status = StatusIssued
	i.Touch()
	i.BumpVersion()

	i.Raise(newLifecycleEvent(EventTypeInvoiceIssued, i, actor, StatusDraft, StatusIssued, "Invoice issued as "+number))
	return nil
}

// MarkPaid transitions an issued invoice to paid.
func (i *Invoice) MarkPaid(actor string, at time.Time) error {
	if !i.Status.CanTransitionTo(StatusPaid) {
		return ErrInvalidTransition(i.Status, StatusPaid)
	}
	t := at.UTC()
	from := i.Status
	i.Status = StatusPaid
	i.PaidAt = &t
	i.Touch()
	i.BumpVersion()
	i.Raise(newLifecycleEvent(EventTypeInvoicePaid, i, actor, from, StatusPaid, "Invoice marked as paid"))
	return nil
}

// Void transitions an issued invoice to voided.
func (i *Invoice) Void(actor, reason string, at time.Time) error {
	if !i.Status.CanTransitionTo(StatusVoided) {
		return ErrInvalidTransition(i.Status, StatusVoided)
	}
	t := at.UTC()
	from := i.Status
	i.Status = StatusVoided
	i.VoidedAt = &t
	i.Touch()
	i.BumpVersion()
	msg := "Invoice voided"
	if reason != "" {
		msg += ": " + reason
	}
	i.Raise(newLifecycleEvent(EventTypeInvoiceVoided, i, actor, from, StatusVoided, msg))
	return nil
}

// SetDueDate changes the due date. It stays editable after issuance.
func (i *Invoice) SetDueDate(due *time.Time, actor string) error {
	due = dateOnly(due)
	if err := i.validateDates(i.IssueDate, due); err != nil {
		return err
	}
	i.DueDate = due
	i.Touch()
	if !i.IsDraft() {
		i.BumpVersion()
		msg := "Due date cleared"
		if due != nil {
			msg = "Due date set to " + due.Format(time.DateOnly)
		}
		i.Raise(newLifecycleEvent(EventTypeInvoiceDueDateChanged, i, actor, i.Status, i.Status, msg))
	}
	return nil
}

// State returns the guarded fields as plain values.
func (i *Invoice) State() InvoiceState {
	return InvoiceState{
		Status:         i.Status,
		Number:         i.Number,
		IssueDate:      i.IssueDate,
		DueDate:        i.DueDate,
		Currency:       i.Currency,
		Subtotal:       i.Subtotal,
		VAT:            i.VAT,
		Total:          i.Total,
		SellerDetails:  i.SellerDetails,
		BuyerDetails:   i.BuyerDetails,
		PaymentDetails: i.PaymentDetails,
		BuyerID:        i.BuyerID,

		Tax:                i.Tax,
		BuyerVatIdentifier: i.BuyerVatIdentifier,
		BuyerVatStatus:     i.BuyerVatStatus,
		DecidedAt:          i.DecidedAt,
	}
}

func (i *Invoice) validateDates(issue, due *time.Time) error {
	if issue != nil && due != nil && due.Before(*issue) {
		return shared.NewFieldError("due_date", "INVALID_DUE_DATE", "Due date cannot be before the issue date")
	}
	return nil
}

// dateOnly truncates to a UTC calendar date.
func dateOnly(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	y, m, d := t.Date()
	out := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &out
}

// Today returns the current UTC calendar date.
func Today(now time.Time) time.Time {
	return *dateOnly(&now)
}

func newShareToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
