package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact raised by an aggregate and stored with it.
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
}

// EventHeader is embedded by concrete events.
type EventHeader struct {
	ID          uuid.UUID `json:"id"`
	Type        string    `json:"type"`
	At          time.Time `json:"occurred_at"`
	AggregateID uuid.UUID `json:"aggregate_id"`
	Seller      uuid.UUID `json:"seller_id"`
}

// NewEventHeader stamps an event of kind raised by aggregateID of sellerID.
func NewEventHeader(kind string, aggregateID, sellerID uuid.UUID) EventHeader {
	return EventHeader{
		ID:          uuid.New(),
		Type:        kind,
		At:          time.Now().UTC(),
		AggregateID: aggregateID,
		Seller:      sellerID,
	}
}

func (h EventHeader) EventType() string     { return h.Type }
func (h EventHeader) OccurredAt() time.Time { return h.At }

// BaseAggregateRoot is an entity with an optimistic lock version and the
// events raised since its last save. Repositories write the pending events
// in the same transaction as the aggregate and then clear them.
type BaseAggregateRoot struct {
	BaseEntity
	Version int
	pending []DomainEvent
}

// NewBaseAggregateRoot starts at version 1 with no pending events.
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: NewBaseEntity(), Version: 1}
}

// BumpVersion marks a state change.
func (a *BaseAggregateRoot) BumpVersion() {
	a.Version++
}

// Raise queues ev until the aggregate is saved.
func (a *BaseAggregateRoot) Raise(ev DomainEvent) {
	a.pending = append(a.pending, ev)
}

// PendingEvents returns queued events in the order raised.
func (a *BaseAggregateRoot) PendingEvents() []DomainEvent {
	return a.pending
}

// ClearPendingEvents drops queued events after they were stored.
func (a *BaseAggregateRoot) ClearPendingEvents() {
	a.pending = nil
}

// SellerScopedRoot is an aggregate owned by one seller, the tenant of every
// buyer and invoice.
type SellerScopedRoot struct {
	BaseAggregateRoot
	SellerID uuid.UUID
}

func NewSellerScopedRoot(sellerID uuid.UUID) SellerScopedRoot {
	return SellerScopedRoot{BaseAggregateRoot: NewBaseAggregateRoot(), SellerID: sellerID}
}

// BelongsTo reports whether sellerID owns the aggregate.
func (s *SellerScopedRoot) BelongsTo(sellerID uuid.UUID) bool {
	return s.SellerID == sellerID
}
