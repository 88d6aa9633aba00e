package models

import (
	"time"

	"github.com/ledgerly/invoicing/internal/domain/shared/valueobject"
	"github.com/ledgerly/invoicing/internal/domain/vatid"
)

// VatIdentityModel is a row of the tenant-shared VAT identity cache.
// (country, identifier) is unique; rows are never deleted.
type VatIdentityModel struct {
	BaseModel
	Country         string     `gorm:"type:varchar(2);not null;uniqueIndex:uq_vat_identities_key,priority:1"`
	Identifier      string     `gorm:"type:varchar(32);not null;uniqueIndex:uq_vat_identities_key,priority:2"`
	Status          string     `gorm:"type:varchar(16);not null;default:'pending'"`
	LastCheckedAt   *time.Time `gorm:"index"`
	LastEnqueuedAt  *time.Time
	StatusChangedAt *time.Time
	ResolvedName    *string `gorm:"type:varchar(255)"`
	ResolvedAddress *string `gorm:"type:text"`
	Source          string  `gorm:"type:varchar(32)"`
	LastError       string  `gorm:"type:text"`
	LastErrorAt     *time.Time
}

// TableName returns the table name for GORM
func (VatIdentityModel) TableName() string {
	return "vat_identities"
}

// ToDomain converts the persistence model to a domain VatIdentity.
func (m *VatIdentityModel) ToDomain() *vatid.VatIdentity {
	return &vatid.VatIdentity{
		BaseEntity:      m.Entity(),
		Country:         valueobject.CountryCode(m.Country),
		Identifier:      m.Identifier,
		Status:          vatid.Status(m.Status),
		LastCheckedAt:   m.LastCheckedAt,
		LastEnqueuedAt:  m.LastEnqueuedAt,
		StatusChangedAt: m.StatusChangedAt,
		ResolvedName:    m.ResolvedName,
		ResolvedAddress: m.ResolvedAddress,
		Source:          m.Source,
		LastError:       m.LastError,
		LastErrorAt:     m.LastErrorAt,
	}
}

// VatIdentityModelFromDomain creates a new persistence model from a domain VatIdentity.
func VatIdentityModelFromDomain(v *vatid.VatIdentity) *VatIdentityModel {
	m := &VatIdentityModel{
		Country:         string(v.Country),
		Identifier:      v.Identifier,
		Status:          string(v.Status),
		LastCheckedAt:   timePtr(v.LastCheckedAt),
		LastEnqueuedAt:  timePtr(v.LastEnqueuedAt),
		StatusChangedAt: timePtr(v.StatusChangedAt),
		ResolvedName:    v.ResolvedName,
		ResolvedAddress: v.ResolvedAddress,
		Source:          v.Source,
		LastError:       v.LastError,
		LastErrorAt:     timePtr(v.LastErrorAt),
	}
	m.SetEntity(v.BaseEntity)
	return m
}
