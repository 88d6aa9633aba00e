package invoicing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerly/invoicing/internal/domain/invoicing"
	"github.com/ledgerly/invoicing/internal/domain/shared"
	"github.com/ledgerly/invoicing/internal/domain/tax"
)

// ==================== Requests ====================

// ItemRequest is one invoice line as entered by a user. UnitPrice is in major units.
type ItemRequest struct {
	Description string          `json:"description" binding:"required,max=500"`
	Quantity    decimal.Decimal `json:"quantity" binding:"required"`
	UnitPrice   decimal.Decimal `json:"unit_price" binding:"required"`
}

// CreateDraftRequest represents a request to create a draft invoice
type CreateDraftRequest struct {
	BuyerID   uuid.UUID     `json:"buyer_id" binding:"required"`
	Currency  string        `json:"currency" binding:"required,currency_code"`
	IssueDate *string       `json:"issue_date" binding:"omitempty,datetime=2006-01-02"`
	DueDate   *string       `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
	Notes     string        `json:"notes" binding:"max=2000"`
	Items     []ItemRequest `json:"items" binding:"dive"`
}

// UpdateDraftRequest represents a request to update the header of a draft.
// Items are replaced only when present.
type UpdateDraftRequest struct {
	BuyerID   uuid.UUID      `json:"buyer_id" binding:"required"`
	Currency  string         `json:"currency" binding:"required,currency_code"`
	IssueDate *string        `json:"issue_date" binding:"omitempty,datetime=2006-01-02"`
	DueDate   *string        `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
	Notes     string         `json:"notes" binding:"max=2000"`
	Items     *[]ItemRequest `json:"items" binding:"omitempty,dive"`
}

// ReplaceItemsRequest replaces every line of a draft
type ReplaceItemsRequest struct {
	Items []ItemRequest `json:"items" binding:"dive"`
}

// SetTreatmentRequest pins the tax treatment of a draft
type SetTreatmentRequest struct {
	Treatment string `json:"tax_treatment" binding:"required,oneof=DOMESTIC EU_B2C EU_B2B_RC NON_EU"`
}

// SetRateRequest pins the VAT rate of a draft
type SetRateRequest struct {
	Rate decimal.Decimal `json:"vat_rate" binding:"required"`
}

// MarkPaidRequest marks an issued invoice as paid
type MarkPaidRequest struct {
	PaidAt *time.Time `json:"paid_at"`
}

// VoidRequest voids an issued invoice
type VoidRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// UpdateDueDateRequest changes the due date; null clears it
type UpdateDueDateRequest struct {
	DueDate *string `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
}

// ListInvoicesFilter represents query parameters of the invoice listing
type ListInvoicesFilter struct {
	Page     int        `form:"page" binding:"omitempty,min=1"`
	PageSize int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	Status   string     `form:"status" binding:"omitempty,oneof=draft issued paid voided"`
	BuyerID  *uuid.UUID `form:"buyer_id"`
	Search   string     `form:"search" binding:"max=64"`
}

// ToDomain converts the listing filter into a repository filter
func (f ListInvoicesFilter) ToDomain() invoicing.InvoiceFilter {
	base := shared.DefaultFilter()
	if f.Page > 0 {
		base.Page = f.Page
	}
	if f.PageSize > 0 {
		base.PageSize = f.PageSize
	}
	base.Search = f.Search
	return invoicing.InvoiceFilter{
		Filter:  base,
		Status:  invoicing.Status(f.Status),
		BuyerID: f.BuyerID,
	}
}

// ==================== Responses ====================

// InvoiceItemResponse is one line of an invoice
type InvoiceItemResponse struct {
	ID          uuid.UUID       `json:"id"`
	Position    int             `json:"position"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   int64           `json:"unit_price"`
	LineTotal   int64           `json:"line_total"`
}

// InvoiceResponse is the full representation of an invoice
type InvoiceResponse struct {
	ID       uuid.UUID `json:"id"`
	SellerID uuid.UUID `json:"seller_id"`
	BuyerID  uuid.UUID `json:"buyer_id"`
	Status   string    `json:"status"`
	Currency string    `json:"currency"`

	TaxTreatment    string          `json:"tax_treatment"`
	VatRate         decimal.Decimal `json:"vat_rate"`
	TaxReason       string          `json:"tax_reason,omitempty"`
	TaxReasonCode   string          `json:"tax_reason_code,omitempty"`
	TreatmentManual bool            `json:"treatment_manual"`
	RateManual      bool            `json:"rate_manual"`

	Subtotal int64  `json:"subtotal"`
	VAT      int64  `json:"vat"`
	Total    int64  `json:"total"`
	Display  string `json:"total_display"`

	Number    *string `json:"number,omitempty"`
	IssueDate *string `json:"issue_date,omitempty"`
	DueDate   *string `json:"due_date,omitempty"`

	SellerDetails  *invoicing.SellerDetails  `json:"seller_details,omitempty"`
	BuyerDetails   *invoicing.BuyerDetails   `json:"buyer_details,omitempty"`
	PaymentDetails *invoicing.PaymentDetails `json:"payment_details,omitempty"`

	BuyerVatIdentifier string     `json:"buyer_vat_identifier,omitempty"`
	BuyerVatStatus     string     `json:"buyer_vat_status,omitempty"`
	DecidedAt          *time.Time `json:"decided_at,omitempty"`

	PublicID   uuid.UUID  `json:"public_id"`
	ShareToken string     `json:"share_token,omitempty"`
	Notes      string     `json:"notes,omitempty"`
	PaidAt     *time.Time `json:"paid_at,omitempty"`
	VoidedAt   *time.Time `json:"voided_at,omitempty"`

	Items     []InvoiceItemResponse `json:"items"`
	Version   int                   `json:"version"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// InvoiceListItemResponse is the listing representation of an invoice
type InvoiceListItemResponse struct {
	ID        uuid.UUID `json:"id"`
	BuyerID   uuid.UUID `json:"buyer_id"`
	Status    string    `json:"status"`
	Number    *string   `json:"number,omitempty"`
	Currency  string    `json:"currency"`
	Total     int64     `json:"total"`
	IssueDate *string   `json:"issue_date,omitempty"`
	DueDate   *string   `json:"due_date,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DecisionPreviewResponse shows what the engine would decide for a draft right now
type DecisionPreviewResponse struct {
	Treatment         string          `json:"tax_treatment"`
	Rate              decimal.Decimal `json:"vat_rate"`
	Reason            string          `json:"tax_reason,omitempty"`
	ReasonCode        string          `json:"tax_reason_code,omitempty"`
	TreatmentManual   bool            `json:"treatment_manual"`
	RateManual        bool            `json:"rate_manual"`
	BuyerVatStatus    string          `json:"buyer_vat_status,omitempty"`
	PendingValidation bool            `json:"pending_validation"`
	Warning           string          `json:"warning,omitempty"`
	Subtotal          int64           `json:"subtotal"`
	VAT               int64           `json:"vat"`
	Total             int64           `json:"total"`
}

// IssueResponse is the result of an issue call
type IssueResponse struct {
	Number        string          `json:"number"`
	AlreadyIssued bool            `json:"already_issued"`
	Invoice       InvoiceResponse `json:"invoice"`
}

// InvoiceEventResponse is one audit trail entry
type InvoiceEventResponse struct {
	ID         uuid.UUID `json:"id"`
	Actor      string    `json:"actor"`
	EventType  string    `json:"event_type"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status,omitempty"`
	Message    string    `json:"message,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ==================== Conversions ====================

// ToInvoiceResponse converts a domain invoice to its response
func ToInvoiceResponse(inv *invoicing.Invoice) InvoiceResponse {
	items := make([]InvoiceItemResponse, len(inv.Items))
	for i, it := range inv.Items {
		items[i] = InvoiceItemResponse{
			ID:          it.ID,
			Position:    it.Position,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   int64(it.UnitPrice),
			LineTotal:   int64(it.LineTotal),
		}
	}
	return InvoiceResponse{
		ID:                 inv.ID,
		SellerID:           inv.SellerID,
		BuyerID:            inv.BuyerID,
		Status:             string(inv.Status),
		Currency:           inv.Currency.String(),
		TaxTreatment:       string(inv.Tax.Treatment),
		VatRate:            inv.Tax.Rate,
		TaxReason:          inv.Tax.Reason,
		TaxReasonCode:      string(inv.Tax.ReasonCode),
		TreatmentManual:    inv.Tax.TreatmentManual,
		RateManual:         inv.Tax.RateManual,
		Subtotal:           int64(inv.Subtotal),
		VAT:                int64(inv.VAT),
		Total:              int64(inv.Total),
		Display:            inv.Total.String() + " " + inv.Currency.String(),
		Number:             inv.Number,
		IssueDate:          formatDate(inv.IssueDate),
		DueDate:            formatDate(inv.DueDate),
		SellerDetails:      inv.SellerDetails,
		BuyerDetails:       inv.BuyerDetails,
		PaymentDetails:     inv.PaymentDetails,
		BuyerVatIdentifier: inv.BuyerVatIdentifier,
		BuyerVatStatus:     string(inv.BuyerVatStatus),
		DecidedAt:          inv.DecidedAt,
		PublicID:           inv.PublicID,
		ShareToken:         inv.ShareToken,
		Notes:              inv.Notes,
		PaidAt:             inv.PaidAt,
		VoidedAt:           inv.VoidedAt,
		Items:              items,
		Version:            inv.Version,
		CreatedAt:          inv.CreatedAt,
		UpdatedAt:          inv.UpdatedAt,
	}
}

// ToPublicInvoiceResponse hides the share token from shared-link readers
func ToPublicInvoiceResponse(inv *invoicing.Invoice) InvoiceResponse {
	resp := ToInvoiceResponse(inv)
	resp.ShareToken = ""
	return resp
}

// ToInvoiceListItemResponse converts a domain invoice to its listing row
func ToInvoiceListItemResponse(inv *invoicing.Invoice) InvoiceListItemResponse {
	return InvoiceListItemResponse{
		ID:        inv.ID,
		BuyerID:   inv.BuyerID,
		Status:    string(inv.Status),
		Number:    inv.Number,
		Currency:  inv.Currency.String(),
		Total:     int64(inv.Total),
		IssueDate: formatDate(inv.IssueDate),
		DueDate:   formatDate(inv.DueDate),
		CreatedAt: inv.CreatedAt,
	}
}

// ToInvoiceEventResponses converts audit entries
func ToInvoiceEventResponses(events []invoicing.InvoiceEvent) []InvoiceEventResponse {
	out := make([]InvoiceEventResponse, len(events))
	for i, e := range events {
		out[i] = InvoiceEventResponse{
			ID:         e.ID,
			Actor:      e.Actor,
			EventType:  e.EventType,
			FromStatus: string(e.FromStatus),
			ToStatus:   string(e.ToStatus),
			Message:    e.Message,
			CreatedAt:  e.CreatedAt,
		}
	}
	return out
}

func toPreviewResponse(inv *invoicing.Invoice, d tax.Decision, status string) DecisionPreviewResponse {
	resp := DecisionPreviewResponse{
		Treatment:         string(inv.Tax.Treatment),
		Rate:              inv.Tax.Rate,
		Reason:            inv.Tax.Reason,
		ReasonCode:        string(inv.Tax.ReasonCode),
		TreatmentManual:   inv.Tax.TreatmentManual,
		RateManual:        inv.Tax.RateManual,
		BuyerVatStatus:    status,
		PendingValidation: d.PendingValidation,
		Subtotal:          int64(inv.Subtotal),
		VAT:               int64(inv.VAT),
		Total:             int64(inv.Total),
	}
	if d.PendingValidation {
		resp.Warning = "Buyer VAT identifier is awaiting validation; the invoice cannot be issued until it is confirmed."
	}
	return resp
}

func toItemInputs(reqs []ItemRequest) []invoicing.ItemInput {
	out := make([]invoicing.ItemInput, len(reqs))
	for i, r := range reqs {
		out[i] = invoicing.ItemInput{
			Description: r.Description,
			Quantity:    r.Quantity,
			UnitPrice:   r.UnitPrice,
		}
	}
	return out
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.DateOnly)
	return &s
}

// parseDate parses an optional YYYY-MM-DD string
func parseDate(field string, s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, *s)
	if err != nil {
		return nil, shared.NewFieldError(field, "INVALID_DATE", "Date must be formatted as YYYY-MM-DD")
	}
	return &t, nil
}
