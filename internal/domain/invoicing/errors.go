package invoicing

import (
	"fmt"

	"github.com/ledgerly/invoicing/internal/domain/shared"
)

// Invoicing errors
var (
	ErrNoItems = shared.NewFieldError("items", "NO_ITEMS", "Invoice must have at least one line item")

	ErrInvoiceFrozen = shared.NewCategorizedError(shared.CategoryImmutability, "INVOICE_FROZEN",
		"Invoice can no longer be modified")

	ErrNoBankAccount = shared.NewFieldError("currency", "NO_BANK_ACCOUNT",
		"Seller has no bank accounts; add one before issuing invoices")

	ErrCurrencyWithoutAccount = shared.NewFieldError("currency", "CURRENCY_WITHOUT_ACCOUNT",
		"No active bank account in the invoice currency")

	ErrLegalIdentityIncomplete = shared.NewFieldError("seller", "LEGAL_IDENTITY_INCOMPLETE",
		"Seller legal identity is incomplete")

	ErrMonthlyLimitReached = shared.NewCategorizedError(shared.CategoryLimit, "MONTHLY_INVOICE_LIMIT",
		"Monthly invoice limit reached")

	ErrBuyerNotFound = shared.NewCategorizedError(shared.CategoryNotFound, "BUYER_NOT_FOUND", "Buyer not found")
)

// ErrInvalidTransition reports a lifecycle transition outside the state machine.
func ErrInvalidTransition(from, to Status) *shared.DomainError {
	return shared.NewCategorizedError(shared.CategoryState, "INVALID_STATE_TRANSITION",
		fmt.Sprintf("Cannot transition invoice from %s to %s", from, to))
}

// ErrItemsFrozen reports an item write on a non-draft invoice.
func ErrItemsFrozen(op ItemOperation) *shared.DomainError {
	return shared.NewCategorizedError(shared.CategoryImmutability, "ITEMS_FROZEN",
		fmt.Sprintf("cannot %s items on an issued invoice", op))
}

// ErrImmutableField reports a write to a field that is frozen after issuance.
func ErrImmutableField(field string) *shared.DomainError {
	return shared.ErrImmutable.WithMessage("%s cannot be modified after issuance", field).WithField(field)
}
