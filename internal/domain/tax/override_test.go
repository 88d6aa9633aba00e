package tax

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerly/invoicing/internal/domain/vatid"
)

func TestRecompute_NoManualFlags(t *testing.T) {
	e := NewEngine(testEU)
	in := input("DE", "DE1", vatid.StatusValid, PermissionCrossBorderB2B)

	got := e.Recompute(Assignment{}, in)
	assert.Equal(t, TreatmentEUB2BRC, got.Treatment)
	assert.True(t, got.Rate.IsZero())
	assert.Equal(t, ReasonReverseCharge, got.ReasonCode)
}

func TestSetManualTreatment(t *testing.T) {
	e := NewEngine(testEU)
	in := input("DE", "DE1", vatid.StatusValid, PermissionCrossBorderB2B)

	got, err := e.SetManualTreatment(Assignment{}, TreatmentEUB2C, in)
	require.NoError(t, err)
	assert.True(t, got.TreatmentManual)
	assert.Equal(t, TreatmentEUB2C, got.Treatment)
	assert.True(t, got.Rate.Equal(decimal.NewFromInt(19)), "automatic rate follows the manual treatment")

	t.Run("seller rate change recomputes only the automatic rate", func(t *testing.T) {
		in2 := in
		in2.Seller.BaselineRate = decimal.NewFromInt(21)
		next := e.Recompute(got, in2)
		assert.Equal(t, TreatmentEUB2C, next.Treatment)
		assert.True(t, next.Rate.Equal(decimal.NewFromInt(21)))
	})

	t.Run("unknown treatment rejected", func(t *testing.T) {
		_, err := e.SetManualTreatment(Assignment{}, Treatment("ZERO"), in)
		assert.Error(t, err)
	})
}

func TestSetManualRate(t *testing.T) {
	e := NewEngine(testEU)
	in := input("RO", "", "")

	got, err := e.SetManualRate(Assignment{}, decimal.NewFromInt(9), in)
	require.NoError(t, err)
	assert.True(t, got.RateManual)
	assert.Equal(t, TreatmentDomestic, got.Treatment)
	assert.True(t, got.Rate.Equal(decimal.NewFromInt(9)))

	in.Seller.BaselineRate = decimal.NewFromInt(21)
	next := e.Recompute(got, in)
	assert.True(t, next.Rate.Equal(decimal.NewFromInt(9)), "manual rate survives recomputation")

	_, err = e.SetManualRate(Assignment{}, decimal.NewFromInt(-1), in)
	assert.Error(t, err)
}

func TestReset(t *testing.T) {
	e := NewEngine(testEU)
	in := input("DE", "DE1", vatid.StatusValid, PermissionCrossBorderB2B)

	cur, err := e.SetManualTreatment(Assignment{}, TreatmentEUB2C, in)
	require.NoError(t, err)
	cur, err = e.SetManualRate(cur, decimal.NewFromInt(7), in)
	require.NoError(t, err)

	cur = e.ResetTreatment(cur, in)
	assert.False(t, cur.TreatmentManual)
	assert.Equal(t, TreatmentEUB2BRC, cur.Treatment)
	assert.True(t, cur.Rate.Equal(decimal.NewFromInt(7)), "manual rate untouched by treatment reset")

	cur = e.ResetRate(cur, in)
	assert.False(t, cur.RateManual)
	assert.True(t, cur.Rate.IsZero())

	t.Run("reset respects current permissions", func(t *testing.T) {
		noPerm := input("DE", "DE1", vatid.StatusValid)
		manual, err := e.SetManualTreatment(Assignment{}, TreatmentEUB2BRC, noPerm)
		require.NoError(t, err)
		reset := e.ResetTreatment(manual, noPerm)
		assert.Equal(t, TreatmentEUB2C, reset.Treatment)
	})
}

func TestFinalize(t *testing.T) {
	e := NewEngine(testEU)

	t.Run("blocks pending identity", func(t *testing.T) {
		_, err := e.Finalize(Assignment{}, input("DE", "DE1", vatid.StatusPending, PermissionCrossBorderB2B))
		assert.ErrorIs(t, err, ErrVatIdentityUnresolved)
	})

	t.Run("manual reverse charge with invalid identity is forced to B2C", func(t *testing.T) {
		in := input("DE", "DE1", vatid.StatusInvalid, PermissionCrossBorderB2B)
		cur, err := e.SetManualTreatment(Assignment{}, TreatmentEUB2BRC, in)
		require.NoError(t, err)

		got, err := e.Finalize(cur, in)
		require.NoError(t, err)
		assert.Equal(t, TreatmentEUB2C, got.Treatment)
		assert.True(t, got.Rate.Equal(decimal.NewFromInt(19)))
		assert.False(t, got.TreatmentManual)
	})

	t.Run("manual reverse charge without identifier is forced to B2C", func(t *testing.T) {
		in := input("DE", "", "", PermissionCrossBorderB2B)
		cur, err := e.SetManualTreatment(Assignment{}, TreatmentEUB2BRC, in)
		require.NoError(t, err)

		got, err := e.Finalize(cur, in)
		require.NoError(t, err)
		assert.Equal(t, TreatmentEUB2C, got.Treatment)
	})

	t.Run("valid identity keeps reverse charge", func(t *testing.T) {
		in := input("DE", "DE1", vatid.StatusValid, PermissionCrossBorderB2B)
		got, err := e.Finalize(Assignment{}, in)
		require.NoError(t, err)
		assert.Equal(t, TreatmentEUB2BRC, got.Treatment)
		assert.True(t, got.Rate.IsZero())
	})
}
