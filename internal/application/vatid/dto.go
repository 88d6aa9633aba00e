package vatid

import (
	"time"

	"github.com/google/uuid"

	"github.com/ledgerly/invoicing/internal/domain/vatid"
)

// IdentityResponse is the read model of a VAT identity cache row
type IdentityResponse struct {
	ID              uuid.UUID  `json:"id"`
	Country         string     `json:"country"`
	Identifier      string     `json:"identifier"`
	Status          string     `json:"status"`
	LastCheckedAt   *time.Time `json:"last_checked_at,omitempty"`
	LastEnqueuedAt  *time.Time `json:"last_enqueued_at,omitempty"`
	StatusChangedAt *time.Time `json:"status_changed_at,omitempty"`
	ResolvedName    *string    `json:"resolved_name,omitempty"`
	ResolvedAddress *string    `json:"resolved_address,omitempty"`
	Source          string     `json:"source,omitempty"`
	LastError       string     `json:"last_error,omitempty"`
	LastErrorAt     *time.Time `json:"last_error_at,omitempty"`
}

// RecheckResponse reports whether a manual recheck scheduled a validation
type RecheckResponse struct {
	IdentityID uuid.UUID `json:"identity_id"`
	Enqueued   bool      `json:"enqueued"`
}

// ToIdentityResponse converts a cache row to its read model
func ToIdentityResponse(v *vatid.VatIdentity) IdentityResponse {
	return IdentityResponse{
		ID:              v.ID,
		Country:         string(v.Country),
		Identifier:      v.Identifier,
		Status:          v.Status.String(),
		LastCheckedAt:   v.LastCheckedAt,
		LastEnqueuedAt:  v.LastEnqueuedAt,
		StatusChangedAt: v.StatusChangedAt,
		ResolvedName:    v.ResolvedName,
		ResolvedAddress: v.ResolvedAddress,
		Source:          v.Source,
		LastError:       v.LastError,
		LastErrorAt:     v.LastErrorAt,
	}
}
