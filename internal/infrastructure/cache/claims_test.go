package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// frozenClaims returns claims whose clock only moves when the test says so.
func frozenClaims(t *testing.T) (*MemoryClaims, *time.Time) {
	t.Helper()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemoryClaims()
	m.now = func() time.Time { return now }
	t.Cleanup(func() { _ = m.Close() })
	return m, &now
}

func TestMemoryClaims_Lifecycle(t *testing.T) {
	ctx := context.Background()
	m, now := frozenClaims(t)

	won, err := m.Claim(ctx, "vat-validation:1", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, won)

	won, _ = m.Claim(ctx, "vat-validation:1", 10*time.Minute)
	assert.False(t, won, "held claim")
	held, _ := m.Held(ctx, "vat-validation:1")
	assert.True(t, held)

	*now = now.Add(10 * time.Minute)
	held, _ = m.Held(ctx, "vat-validation:1")
	assert.False(t, held, "expired at ttl")
	won, _ = m.Claim(ctx, "vat-validation:1", 10*time.Minute)
	assert.True(t, won, "expired claim is taken again")

	require.NoError(t, m.Release(ctx, "vat-validation:1"))
	won, _ = m.Claim(ctx, "vat-validation:1", time.Minute)
	assert.True(t, won, "released claim is free")

	assert.NoError(t, m.Release(ctx, "never-claimed"))
}

func TestMemoryClaims_Sweep(t *testing.T) {
	ctx := context.Background()
	m, now := frozenClaims(t)

	_, _ = m.Claim(ctx, "short", time.Minute)
	_, _ = m.Claim(ctx, "long", time.Hour)
	assert.Equal(t, 2, m.sweep())

	*now = now.Add(5 * time.Minute)
	assert.Equal(t, 1, m.sweep())
	held, _ := m.Held(ctx, "long")
	assert.True(t, held)
}

func TestMemoryClaims_OneWinnerPerKey(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryClaims()
	defer m.Close()

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if won, err := m.Claim(ctx, "shared", time.Hour); err == nil && won {
				winners.Add(1)
			}
			_, _ = m.Claim(ctx, fmt.Sprintf("own-%d", i), time.Hour)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners.Load())
	assert.Equal(t, 51, m.sweep())
}

func TestMemoryClaims_CloseTwice(t *testing.T) {
	m := NewMemoryClaims()
	assert.NoError(t, m.Close())
	assert.NoError(t, m.Close())
}
