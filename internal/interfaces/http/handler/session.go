package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	partyapp "github.com/ledgerly/invoicing/internal/application/party"
	"github.com/ledgerly/invoicing/internal/infrastructure/auth"
)

// TokenIssuer signs seller session tokens
type TokenIssuer interface {
	Issue(sellerID uuid.UUID, actor string) (*auth.IssuedToken, error)
}

// IssueTokenRequest names the actor recorded on events made with the token
type IssueTokenRequest struct {
	Actor string `json:"actor" binding:"omitempty,max=100"`
}

// SessionHandler issues seller session tokens to operators
type SessionHandler struct {
	BaseHandler
	tokens        TokenIssuer
	sellerService *partyapp.SellerService
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(tokens TokenIssuer, sellerService *partyapp.SellerService) *SessionHandler {
	return &SessionHandler{tokens: tokens, sellerService: sellerService}
}

// IssueToken handles POST /admin/sellers/:id/tokens
func (h *SessionHandler) IssueToken(c *gin.Context) {
	sellerID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req IssueTokenRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}
	if _, err := h.sellerService.Get(c.Request.Context(), sellerID); err != nil {
		h.HandleError(c, err)
		return
	}

	actor := req.Actor
	if actor == "" {
		actor = "api"
	}
	token, err := h.tokens.Issue(sellerID, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, token)
}
