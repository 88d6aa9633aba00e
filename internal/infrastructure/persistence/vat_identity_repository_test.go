package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerly/invoicing/internal/domain/party"
	"github.com/ledgerly/invoicing/internal/domain/shared"
	"github.com/ledgerly/invoicing/internal/domain/vatid"
	"github.com/ledgerly/invoicing/internal/infrastructure/persistence/persistencetest"
)

func mustKey(t *testing.T, country, identifier string) vatid.Key {
	t.Helper()
	key, ok := vatid.Normalize(country, identifier)
	require.True(t, ok, "normalize %s %s", country, identifier)
	return key
}

func TestGormVatIdentityRepository_FindOrCreateDeduplicates(t *testing.T) {
	db := persistencetest.NewSQLite(t)
	repo := NewGormVatIdentityRepository(db)
	ctx := context.Background()
	key := mustKey(t, "FR", "FR12345678901")

	first, err := repo.FindOrCreate(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, vatid.StatusPending, first.Status)
	assert.Nil(t, first.LastCheckedAt)

	second, err := repo.FindOrCreate(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	byID, err := repo.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, key, byID.Key())

	_, err = repo.FindByKey(ctx, mustKey(t, "DE", "DE123456789"))
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormVatIdentityRepository_ClaimEnqueueThrottles(t *testing.T) {
	db := persistencetest.NewSQLite(t)
	repo := NewGormVatIdentityRepository(db)
	ctx := context.Background()
	throttle := 10 * time.Minute

	identity, err := repo.FindOrCreate(ctx, mustKey(t, "FR", "FR12345678901"))
	require.NoError(t, err)

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	claimed, err := repo.ClaimEnqueue(ctx, identity.ID, now, throttle)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = repo.ClaimEnqueue(ctx, identity.ID, now.Add(5*time.Minute), throttle)
	require.NoError(t, err)
	assert.False(t, claimed, "second claim inside the throttle window")

	claimed, err = repo.ClaimEnqueue(ctx, identity.ID, now.Add(11*time.Minute), throttle)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = repo.ClaimEnqueue(ctx, uuid.New(), now, throttle)
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestGormVatIdentityRepository_ReleaseEnqueue(t *testing.T) {
	db := persistencetest.NewSQLite(t)
	repo := NewGormVatIdentityRepository(db)
	ctx := context.Background()
	throttle := 10 * time.Minute
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	t.Run("failed enqueue does not throttle the next caller", func(t *testing.T) {
		identity, err := repo.FindOrCreate(ctx, mustKey(t, "DE", "DE811907980"))
		require.NoError(t, err)

		claimed, err := repo.ClaimEnqueue(ctx, identity.ID, now, throttle)
		require.NoError(t, err)
		require.True(t, claimed)
		require.NoError(t, repo.ReleaseEnqueue(ctx, identity.ID, now, nil))

		row, err := repo.FindByID(ctx, identity.ID)
		require.NoError(t, err)
		assert.Nil(t, row.LastEnqueuedAt)

		claimed, err = repo.ClaimEnqueue(ctx, identity.ID, now.Add(2*time.Minute), throttle)
		require.NoError(t, err)
		assert.True(t, claimed)
	})

	t.Run("restores the earlier stamp", func(t *testing.T) {
		identity, err := repo.FindOrCreate(ctx, mustKey(t, "AT", "ATU12345678"))
		require.NoError(t, err)
		earlier := now.Add(-time.Hour)

		claimed, err := repo.ClaimEnqueue(ctx, identity.ID, earlier, throttle)
		require.NoError(t, err)
		require.True(t, claimed)
		claimed, err = repo.ClaimEnqueue(ctx, identity.ID, now, throttle)
		require.NoError(t, err)
		require.True(t, claimed)
		require.NoError(t, repo.ReleaseEnqueue(ctx, identity.ID, now, &earlier))

		row, err := repo.FindByID(ctx, identity.ID)
		require.NoError(t, err)
		require.NotNil(t, row.LastEnqueuedAt)
		assert.True(t, earlier.Equal(*row.LastEnqueuedAt))
	})

	t.Run("a later claim is kept", func(t *testing.T) {
		identity, err := repo.FindOrCreate(ctx, mustKey(t, "NL", "NL123456789B01"))
		require.NoError(t, err)
		later := now.Add(15 * time.Minute)

		claimed, err := repo.ClaimEnqueue(ctx, identity.ID, now, throttle)
		require.NoError(t, err)
		require.True(t, claimed)
		claimed, err = repo.ClaimEnqueue(ctx, identity.ID, later, throttle)
		require.NoError(t, err)
		require.True(t, claimed)
		require.NoError(t, repo.ReleaseEnqueue(ctx, identity.ID, now, nil))

		row, err := repo.FindByID(ctx, identity.ID)
		require.NoError(t, err)
		require.NotNil(t, row.LastEnqueuedAt)
		assert.True(t, later.Equal(*row.LastEnqueuedAt))
	})
}

func TestGormVatIdentityRepository_SaveValidation(t *testing.T) {
	db := persistencetest.NewSQLite(t)
	repo := NewGormVatIdentityRepository(db)
	ctx := context.Background()

	identity, err := repo.FindOrCreate(ctx, mustKey(t, "FR", "FR12345678901"))
	require.NoError(t, err)

	name := "Client SARL"
	checked := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	changed := identity.ApplyResult(vatid.ValidationResult{
		Status:      vatid.StatusValid,
		CheckedAt:   checked,
		CompanyName: &name,
	}, "fake")
	require.True(t, changed)
	require.NoError(t, repo.SaveValidation(ctx, identity))

	got, err := repo.FindByID(ctx, identity.ID)
	require.NoError(t, err)
	assert.Equal(t, vatid.StatusValid, got.Status)
	require.NotNil(t, got.LastCheckedAt)
	assert.True(t, checked.Equal(*got.LastCheckedAt))
	require.NotNil(t, got.ResolvedName)
	assert.Equal(t, name, *got.ResolvedName)
	assert.Equal(t, "fake", got.Source)

	missing := vatid.NewVatIdentity(mustKey(t, "DE", "DE123456789"))
	assert.ErrorIs(t, repo.SaveValidation(ctx, missing), shared.ErrNotFound)
}

func TestGormVatIdentityRepository_FindStaleReferenced(t *testing.T) {
	db := persistencetest.NewSQLite(t)
	repo := NewGormVatIdentityRepository(db)
	sellers := NewGormSellerRepository(db)
	buyers := NewGormBuyerRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	never, err := repo.FindOrCreate(ctx, mustKey(t, "FR", "FR12345678901"))
	require.NoError(t, err)
	old, err := repo.FindOrCreate(ctx, mustKey(t, "DE", "DE123456789"))
	require.NoError(t, err)
	fresh, err := repo.FindOrCreate(ctx, mustKey(t, "AT", "ATU12345678"))
	require.NoError(t, err)
	orphan, err := repo.FindOrCreate(ctx, mustKey(t, "NL", "NL123456789B01"))
	require.NoError(t, err)

	for identity, checkedAt := range map[*vatid.VatIdentity]time.Time{
		old:    now.Add(-40 * 24 * time.Hour),
		fresh:  now.Add(-time.Hour),
		orphan: now.Add(-90 * 24 * time.Hour),
	} {
		identity.ApplyResult(vatid.ValidationResult{Status: vatid.StatusValid, CheckedAt: checkedAt}, "fake")
		require.NoError(t, repo.SaveValidation(ctx, identity))
	}

	seller, err := party.NewSeller("DE", decimal.NewFromInt(19), party.LegalIdentity{LegalName: "Muster GmbH"})
	require.NoError(t, err)
	seller.LinkVatIdentity(&old.ID)
	require.NoError(t, sellers.Save(ctx, seller))

	for _, id := range []uuid.UUID{never.ID, fresh.ID} {
		buyer, err := party.NewBuyer(seller.ID, party.BuyerInput{
			Name:    "Client",
			Country: "FR",
			Legal:   party.LegalIdentity{LegalName: "Client SARL"},
		})
		require.NoError(t, err)
		ref := id
		buyer.LinkVatIdentity(&ref)
		require.NoError(t, buyers.Save(ctx, buyer))
	}

	stale, err := repo.FindStaleReferenced(ctx, now.Add(-30*24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, stale, 2)
	assert.Equal(t, never.ID, stale[0].ID, "never-checked rows come first")
	assert.Equal(t, old.ID, stale[1].ID)

	limited, err := repo.FindStaleReferenced(ctx, now.Add(-30*24*time.Hour), 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, never.ID, limited[0].ID)
}
