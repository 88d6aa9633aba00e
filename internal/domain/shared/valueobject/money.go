package valueobject

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency represents a currency code (ISO 4217)
type Currency string

const (
	EUR Currency = "EUR" // Euro
	USD Currency = "USD" // US Dollar
	GBP Currency = "GBP" // British Pound
	RON Currency = "RON" // Romanian Leu
	PLN Currency = "PLN" // Polish Zloty
	CHF Currency = "CHF" // Swiss Franc
)

// DefaultCurrency is the default currency for the system
const DefaultCurrency = EUR

var hundred = decimal.NewFromInt(100)

// ParseCurrency validates and normalizes a three-letter currency code.
func ParseCurrency(s string) (Currency, error) {
	c := strings.ToUpper(strings.TrimSpace(s))
	if len(c) != 3 {
		return "", fmt.Errorf("currency must be a 3-letter ISO 4217 code, got %q", s)
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("currency must be a 3-letter ISO 4217 code, got %q", s)
		}
	}
	return Currency(c), nil
}

// String returns the currency code
func (c Currency) String() string {
	return string(c)
}

// MinorUnits is an integer amount in the smallest unit of a currency (cents).
type MinorUnits int64

// RoundHalfUp rounds d to an integer with ties going away from zero.
func RoundHalfUp(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

// ToMinorUnits converts a user-entered decimal amount to minor units.
// The amount is rounded half-up at two decimal places before scaling.
func ToMinorUnits(amount decimal.Decimal) MinorUnits {
	return MinorUnits(amount.Round(2).Shift(2).IntPart())
}

// ParseMinorUnits parses a decimal string such as "19.99" into minor units.
func ParseMinorUnits(s string) (MinorUnits, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid amount string: %w", err)
	}
	return ToMinorUnits(d), nil
}

// Decimal returns the amount in major units.
func (m MinorUnits) Decimal() decimal.Decimal {
	return decimal.NewFromInt(int64(m)).Div(hundred)
}

// String formats the amount with two decimals.
func (m MinorUnits) String() string {
	return m.Decimal().StringFixed(2)
}

// LineTotal computes round_half_up(quantity × unitPrice).
func LineTotal(quantity decimal.Decimal, unitPrice MinorUnits) MinorUnits {
	return MinorUnits(RoundHalfUp(quantity.Mul(decimal.NewFromInt(int64(unitPrice)))))
}

// VATAmount computes round_half_up(subtotal × rate / 100). rate is a percentage.
func VATAmount(subtotal MinorUnits, rate decimal.Decimal) MinorUnits {
	return MinorUnits(RoundHalfUp(decimal.NewFromInt(int64(subtotal)).Mul(rate).Div(hundred)))
}

// Totals holds the computed invoice figures, all in minor units.
type Totals struct {
	Subtotal MinorUnits
	VAT      MinorUnits
	Total    MinorUnits
}

// ComputeTotals sums already-rounded line totals and applies the VAT rate once.
func ComputeTotals(lineTotals []MinorUnits, rate decimal.Decimal) Totals {
	var subtotal MinorUnits
	for _, lt := range lineTotals {
		subtotal += lt
	}
	vat := VATAmount(subtotal, rate)
	return Totals{
		Subtotal: subtotal,
		VAT:      vat,
		Total:    subtotal + vat,
	}
}

// ValidateVATRate checks that a percentage rate lies within [0, 100].
func ValidateVATRate(rate decimal.Decimal) error {
	if rate.IsNegative() {
		return errors.New("vat rate cannot be negative")
	}
	if rate.GreaterThan(hundred) {
		return errors.New("vat rate cannot exceed 100")
	}
	return nil
}

// Money is an amount in minor units tagged with its currency.
// It is immutable - all operations return new Money instances
type Money struct {
	amount   MinorUnits
	currency Currency
}

// NewMoney creates a new Money with the specified amount and currency
func NewMoney(amount MinorUnits, currency Currency) (Money, error) {
	if currency == "" {
		return Money{}, errors.New("currency cannot be empty")
	}
	return Money{amount: amount, currency: currency}, nil
}

// Zero returns a zero-value Money in the specified currency
func Zero(currency Currency) Money {
	return Money{currency: currency}
}

// Amount returns the amount in minor units
func (m Money) Amount() MinorUnits {
	return m.amount
}

// Currency returns the currency code
func (m Money) Currency() Currency {
	return m.currency
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.amount == 0
}

// Add returns a new Money with the sum of both amounts
// Returns error if currencies don't match
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot add money with different currencies: %s and %s", m.currency, other.currency)
	}
	return Money{amount: m.amount + other.amount, currency: m.currency}, nil
}

// Equals returns true if both Money values are equal (same amount and currency)
func (m Money) Equals(other Money) bool {
	return m.currency == other.currency && m.amount == other.amount
}

// String returns a string representation of the Money
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount, m.currency)
}
