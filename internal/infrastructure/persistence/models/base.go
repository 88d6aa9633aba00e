package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ledgerly/invoicing/internal/domain/shared"
)

// BaseModel holds the identity and timestamp columns every table has.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// Entity is the row's identity as a domain entity
func (m *BaseModel) Entity() shared.BaseEntity {
	return shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

func (m *BaseModel) SetEntity(e shared.BaseEntity) {
	m.ID, m.CreatedAt, m.UpdatedAt = e.ID, e.CreatedAt, e.UpdatedAt
}

// VersionedModel adds the optimistic lock column. Repositories compare it
// in the UPDATE's WHERE clause.
type VersionedModel struct {
	BaseModel
	Version int `gorm:"not null;default:1"`
}

func (m *VersionedModel) SetRoot(a shared.BaseAggregateRoot) {
	m.SetEntity(a.BaseEntity)
	m.Version = a.Version
}

// LoadRoot restores identity and version onto a. Pending events are not
// persisted here; they live in their own table.
func (m *VersionedModel) LoadRoot(a *shared.BaseAggregateRoot) {
	a.BaseEntity = m.Entity()
	a.Version = m.Version
}

// SellerOwnedModel is a versioned row that belongs to one seller.
type SellerOwnedModel struct {
	VersionedModel
	SellerID uuid.UUID `gorm:"type:uuid;not null;index"`
}

func (m *SellerOwnedModel) SetSellerRoot(s shared.SellerScopedRoot) {
	m.SetRoot(s.BaseAggregateRoot)
	m.SellerID = s.SellerID
}

func (m *SellerOwnedModel) LoadSellerRoot(s *shared.SellerScopedRoot) {
	m.LoadRoot(&s.BaseAggregateRoot)
	s.SellerID = m.SellerID
}
