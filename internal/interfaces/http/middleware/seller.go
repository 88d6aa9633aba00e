package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ledgerly/invoicing/internal/domain/shared"
	"github.com/ledgerly/invoicing/internal/infrastructure/logger"
	"github.com/ledgerly/invoicing/internal/interfaces/http/dto"
)

// Seller context keys and headers
const (
	// SellerHeader names the acting seller. The seller is the tenant: every
	// scoped route reads and writes only that seller's rows.
	SellerHeader = "X-Seller-ID"
	// ActorHeader optionally names the user behind the request for audit events
	ActorHeader = "X-Actor"

	SellerIDKey   = logger.GinSellerIDKey
	sellerUUIDKey = "seller_uuid"
	actorKey      = "actor"

	defaultActor   = "api"
	maxActorLength = 128
)

// SellerValidator checks that the seller exists
type SellerValidator func(ctx context.Context, sellerID uuid.UUID) error

// SellerTokenVerifier resolves a bearer token to the seller and actor it names
type SellerTokenVerifier func(token string) (sellerID uuid.UUID, actor string, err error)

// SellerContextConfig holds configuration for the seller context middleware
type SellerContextConfig struct {
	// Validator is optional; when set an unknown seller is rejected with 404
	Validator SellerValidator
	// Tokens, when set, requires a bearer token and ignores X-Seller-ID
	Tokens SellerTokenVerifier
	Logger *zap.Logger
}

// SellerContext extracts the acting seller from a bearer token, or from the
// X-Seller-ID header when no token verifier is configured, and binds it to
// the gin context and to the request logger.
func SellerContext(cfg SellerContextConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			sellerID uuid.UUID
			actor    string
		)
		if cfg.Tokens != nil {
			token, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
			if !found || token == "" {
				abortUnauthorized(c, "Bearer token required")
				return
			}
			var err error
			sellerID, actor, err = cfg.Tokens(token)
			if err != nil {
				abortUnauthorized(c, "Invalid or expired token")
				return
			}
		} else {
			raw := strings.TrimSpace(c.GetHeader(SellerHeader))
			if raw == "" {
				abortSeller(c, http.StatusBadRequest, "Seller identification required")
				return
			}
			var err error
			sellerID, err = uuid.Parse(raw)
			if err != nil || sellerID == uuid.Nil {
				abortSeller(c, http.StatusBadRequest, "Invalid seller ID format")
				return
			}
		}
		raw := sellerID.String()

		if cfg.Validator != nil {
			if err := cfg.Validator(c.Request.Context(), sellerID); err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					abortSeller(c, http.StatusNotFound, "Seller not found")
					return
				}
				log := cfg.Logger
				if log == nil {
					log = logger.FromContext(c.Request.Context())
				}
				log.Error("Seller lookup failed", zap.String("seller_id", raw), zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					dto.NewErrorResponse(dto.ErrCodeInternal, "An unexpected error occurred", GetRequestID(c)))
				return
			}
		}

		c.Set(SellerIDKey, sellerID.String())
		c.Set(sellerUUIDKey, sellerID)
		if actor == "" {
			actor = actorFrom(c)
		}
		c.Set(actorKey, truncateActor(actor))

		ctx := c.Request.Context()
		ctx, _ = logger.WithSellerID(ctx, logger.FromContext(ctx), sellerID.String())
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func actorFrom(c *gin.Context) string {
	actor := strings.TrimSpace(c.GetHeader(ActorHeader))
	if actor == "" {
		return defaultActor
	}
	return actor
}

func truncateActor(actor string) string {
	if len(actor) > maxActorLength {
		return actor[:maxActorLength]
	}
	return actor
}

func abortSeller(c *gin.Context, status int, message string) {
	code := dto.ErrCodeMissingSeller
	if status == http.StatusNotFound {
		code = dto.ErrCodeNotFound
	}
	c.AbortWithStatusJSON(status, dto.NewErrorResponse(code, message, GetRequestID(c)))
}

// GetSellerID returns the acting seller set by SellerContext
func GetSellerID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(sellerUUIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// GetActor returns the audit actor of the request
func GetActor(c *gin.Context) string {
	if actor := c.GetString(actorKey); actor != "" {
		return actor
	}
	return defaultActor
}
