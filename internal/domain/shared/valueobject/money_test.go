package valueobject

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		in   string
		want MinorUnits
	}{
		{"19.99", 1999},
		{"0.005", 1},
		{"0.004", 0},
		{"10", 1000},
		{"1.125", 113},
		{"-1.125", -113},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ToMinorUnits(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestParseMinorUnits(t *testing.T) {
	t.Run("valid string", func(t *testing.T) {
		m, err := ParseMinorUnits(" 123.45 ")
		require.NoError(t, err)
		assert.Equal(t, MinorUnits(12345), m)
	})

	t.Run("invalid string", func(t *testing.T) {
		_, err := ParseMinorUnits("not-a-number")
		assert.Error(t, err)
	})
}

func TestLineTotal(t *testing.T) {
	t.Run("integer quantity", func(t *testing.T) {
		assert.Equal(t, MinorUnits(3998), LineTotal(decimal.NewFromInt(2), 1999))
	})

	t.Run("fractional quantity rounds half up once", func(t *testing.T) {
		// 1.5 x 333 = 499.5
		assert.Equal(t, MinorUnits(500), LineTotal(decimal.RequireFromString("1.5"), 333))
	})

	t.Run("zero quantity", func(t *testing.T) {
		assert.Equal(t, MinorUnits(0), LineTotal(decimal.Zero, 1999))
	})
}

func TestComputeTotals(t *testing.T) {
	t.Run("reference invoice", func(t *testing.T) {
		line := LineTotal(decimal.NewFromInt(2), ToMinorUnits(decimal.RequireFromString("19.99")))
		totals := ComputeTotals([]MinorUnits{line}, decimal.NewFromInt(19))

		assert.Equal(t, MinorUnits(3998), totals.Subtotal)
		assert.Equal(t, MinorUnits(760), totals.VAT)
		assert.Equal(t, MinorUnits(4758), totals.Total)
	})

	t.Run("vat is computed on the subtotal not per line", func(t *testing.T) {
		// Per-line VAT would be 0 + 0; on the subtotal it is 1.
		totals := ComputeTotals([]MinorUnits{3, 3}, decimal.NewFromInt(10))
		assert.Equal(t, MinorUnits(6), totals.Subtotal)
		assert.Equal(t, MinorUnits(1), totals.VAT)
		assert.Equal(t, MinorUnits(7), totals.Total)
	})

	t.Run("zero rate", func(t *testing.T) {
		totals := ComputeTotals([]MinorUnits{1000, 250}, decimal.Zero)
		assert.Equal(t, MinorUnits(1250), totals.Total)
		assert.Equal(t, MinorUnits(0), totals.VAT)
	})

	t.Run("no lines", func(t *testing.T) {
		assert.Equal(t, Totals{}, ComputeTotals(nil, decimal.NewFromInt(19)))
	})
}

func TestValidateVATRate(t *testing.T) {
	assert.NoError(t, ValidateVATRate(decimal.NewFromInt(19)))
	assert.NoError(t, ValidateVATRate(decimal.Zero))
	assert.Error(t, ValidateVATRate(decimal.NewFromInt(-1)))
	assert.Error(t, ValidateVATRate(decimal.NewFromInt(101)))
}

func TestParseCurrency(t *testing.T) {
	c, err := ParseCurrency(" eur ")
	require.NoError(t, err)
	assert.Equal(t, EUR, c)

	_, err = ParseCurrency("EURO")
	assert.Error(t, err)
	_, err = ParseCurrency("E1R")
	assert.Error(t, err)
}

func TestMoney(t *testing.T) {
	t.Run("add same currency", func(t *testing.T) {
		a, err := NewMoney(1000, EUR)
		require.NoError(t, err)
		b, err := NewMoney(250, EUR)
		require.NoError(t, err)

		sum, err := a.Add(b)
		require.NoError(t, err)
		assert.Equal(t, MinorUnits(1250), sum.Amount())
		assert.Equal(t, "12.50 EUR", sum.String())
	})

	t.Run("add different currency fails", func(t *testing.T) {
		a := Zero(EUR)
		b := Zero(USD)
		_, err := a.Add(b)
		assert.Error(t, err)
	})

	t.Run("empty currency rejected", func(t *testing.T) {
		_, err := NewMoney(1, "")
		assert.Error(t, err)
	})
}
