package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ledgerly/invoicing/internal/domain/billing"
	"github.com/ledgerly/invoicing/internal/interfaces/http/dto"
)

// ErrCodeFeatureNotAvailable is returned when the seller's plan lacks a feature
const ErrCodeFeatureNotAvailable = "FEATURE_NOT_AVAILABLE"

// FeatureChecker answers whether a seller's plan enables a feature
type FeatureChecker interface {
	SellerHasFeature(ctx context.Context, sellerID uuid.UUID, key billing.FeatureKey) (bool, error)
}

// RequireFeature rejects requests whose seller plan does not enable key.
// It must run after SellerContext. Panics on an unknown key.
func RequireFeature(checker FeatureChecker, key billing.FeatureKey, logger *zap.Logger) gin.HandlerFunc {
	if !key.IsValid() {
		panic(fmt.Sprintf("invalid feature key: %s", key))
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		sellerID, ok := GetSellerID(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(
				dto.ErrCodeMissingSeller, "Seller context required", GetRequestID(c)))
			return
		}

		allowed, err := checker.SellerHasFeature(c.Request.Context(), sellerID, key)
		if err != nil {
			logger.Error("Failed to check feature",
				zap.String("seller_id", sellerID.String()),
				zap.String("feature", string(key)),
				zap.Error(err),
			)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, dto.NewErrorResponse(
				dto.ErrCodeServiceUnavailable, "Failed to verify feature access", GetRequestID(c)))
			return
		}
		if !allowed {
			logger.Info("Feature access denied",
				zap.String("seller_id", sellerID.String()),
				zap.String("feature", string(key)),
			)
			SetErrorCode(c, ErrCodeFeatureNotAvailable)
			c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponse(
				ErrCodeFeatureNotAvailable,
				fmt.Sprintf("Feature %s is not available on the current plan", key),
				GetRequestID(c)))
			return
		}
		c.Next()
	}
}
