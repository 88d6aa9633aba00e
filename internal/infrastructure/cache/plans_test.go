package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerly/invoicing/internal/domain/billing"
)

func TestMemoryPlans(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemoryPlans()
	m.now = func() time.Time { return now }

	_, ok, err := m.Get(ctx, billing.PlanPro)
	require.NoError(t, err)
	assert.False(t, ok)

	rows := []billing.PlanFeature{*billing.NewPlanFeatureWithLimit(billing.PlanPro, billing.FeatureMonthlyInvoices, 500, "")}
	require.NoError(t, m.Set(ctx, billing.PlanPro, rows, time.Minute))
	rows[0].Enabled = false

	got, ok, err := m.Get(ctx, billing.PlanPro)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.True(t, got[0].Enabled, "Set keeps its own copy")
	assert.Equal(t, 500, *got[0].Limit)

	got[0].Enabled = false
	again, _, _ := m.Get(ctx, billing.PlanPro)
	assert.True(t, again[0].Enabled, "Get hands out copies")

	require.NoError(t, m.Set(ctx, billing.PlanFree, nil, time.Minute))
	_, ok, _ = m.Get(ctx, billing.PlanFree)
	assert.True(t, ok, "no stored rows is still a hit")

	require.NoError(t, m.Invalidate(ctx, billing.PlanPro))
	_, ok, _ = m.Get(ctx, billing.PlanPro)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, billing.PlanPro, rows, time.Minute))
	now = now.Add(time.Minute)
	_, ok, _ = m.Get(ctx, billing.PlanPro)
	assert.False(t, ok, "expired")

	hits, misses := m.Stats()
	assert.Equal(t, int64(3), hits)
	assert.Equal(t, int64(3), misses)
}
