package handler

import (
	"github.com/gin-gonic/gin"

	vatidapp "github.com/ledgerly/invoicing/internal/application/vatid"
)

// VatIdentityHandler exposes the VAT identity cache
type VatIdentityHandler struct {
	BaseHandler
	resolver *vatidapp.Resolver
}

// NewVatIdentityHandler creates a new VatIdentityHandler
func NewVatIdentityHandler(resolver *vatidapp.Resolver) *VatIdentityHandler {
	return &VatIdentityHandler{resolver: resolver}
}

// GetByID handles GET /vat-identities/:id
func (h *VatIdentityHandler) GetByID(c *gin.Context) {
	identityID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	identity, err := h.resolver.Get(c.Request.Context(), identityID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, vatidapp.ToIdentityResponse(identity))
}

// Recheck handles POST /vat-identities/:id/recheck. The validation runs
// asynchronously; enqueued is false when a job is already in flight.
func (h *VatIdentityHandler) Recheck(c *gin.Context) {
	identityID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	enqueued, err := h.resolver.ManualRecheck(c.Request.Context(), identityID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, vatidapp.RecheckResponse{IdentityID: identityID, Enqueued: enqueued})
}
