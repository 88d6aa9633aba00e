package invoicing

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerly/invoicing/internal/domain/shared"
	"github.com/ledgerly/invoicing/internal/domain/shared/valueobject"
)

// InvoiceItem is one line of an invoice.
type InvoiceItem struct {
	ID          uuid.UUID
	InvoiceID   uuid.UUID
	Position    int
	Description string
	Quantity    decimal.Decimal
	UnitPrice   valueobject.MinorUnits
	LineTotal   valueobject.MinorUnits
}

// ItemInput is a line as entered by a user, with the unit price in major units.
type ItemInput struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// Validate rejects empty descriptions, non-positive quantities and negative prices.
func (in ItemInput) Validate(index int) error {
	prefix := "items[" + strconv.Itoa(index) + "]."
	if strings.TrimSpace(in.Description) == "" {
		return shared.NewFieldError(prefix+"description", "INVALID_ITEM", "Item description cannot be empty")
	}
	if !in.Quantity.IsPositive() {
		return shared.NewFieldError(prefix+"quantity", "INVALID_ITEM", "Item quantity must be positive")
	}
	if in.UnitPrice.IsNegative() {
		return shared.NewFieldError(prefix+"unit_price", "INVALID_ITEM", "Item unit price cannot be negative")
	}
	return nil
}

func newItem(invoiceID uuid.UUID, position int, in ItemInput) InvoiceItem {
	price := valueobject.ToMinorUnits(in.UnitPrice)
	return InvoiceItem{
		ID:          uuid.New(),
		InvoiceID:   invoiceID,
		Position:    position,
		Description: strings.TrimSpace(in.Description),
		Quantity:    in.Quantity,
		UnitPrice:   price,
		LineTotal:   valueobject.LineTotal(in.Quantity, price),
	}
}
