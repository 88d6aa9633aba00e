package shared

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type noteEvent struct {
	EventHeader
	Note string
}

func TestSellerScopedRoot(t *testing.T) {
	seller := uuid.New()
	root := NewSellerScopedRoot(seller)

	assert.Equal(t, 1, root.Version)
	assert.Equal(t, root.CreatedAt, root.UpdatedAt)
	assert.True(t, root.BelongsTo(seller))
	assert.False(t, root.BelongsTo(uuid.New()))

	root.BumpVersion()
	assert.Equal(t, 2, root.Version)
}

func TestBaseAggregateRoot_PendingEvents(t *testing.T) {
	root := NewSellerScopedRoot(uuid.New())
	assert.Empty(t, root.PendingEvents())

	root.Raise(&noteEvent{EventHeader: NewEventHeader("Created", root.ID, root.SellerID), Note: "a"})
	root.Raise(&noteEvent{EventHeader: NewEventHeader("Issued", root.ID, root.SellerID), Note: "b"})

	events := root.PendingEvents()
	if assert.Len(t, events, 2) {
		assert.Equal(t, "Created", events[0].EventType())
		assert.Equal(t, "Issued", events[1].EventType())
		assert.False(t, events[0].OccurredAt().IsZero())
		assert.Equal(t, root.SellerID, events[1].(*noteEvent).Seller)
	}

	root.ClearPendingEvents()
	assert.Empty(t, root.PendingEvents())
}

func TestFilter_Paging(t *testing.T) {
	tests := []struct {
		name       string
		filter     Filter
		wantLimit  int
		wantOffset int
	}{
		{"default", DefaultFilter(), DefaultPageSize, 0},
		{"third page", Filter{Page: 3, PageSize: 10}, 10, 20},
		{"zero size", Filter{Page: 2}, DefaultPageSize, DefaultPageSize},
		{"oversized", Filter{Page: 2, PageSize: 500}, MaxPageSize, MaxPageSize},
		{"page below one", Filter{Page: -4, PageSize: 5}, 5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantLimit, tt.filter.Limit())
			assert.Equal(t, tt.wantOffset, tt.filter.Offset())
		})
	}
}
