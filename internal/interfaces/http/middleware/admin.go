package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/ledgerly/invoicing/internal/interfaces/http/dto"
)

// ErrCodeUnauthorized is returned when a bearer token is missing or wrong
const ErrCodeUnauthorized = "ERR_UNAUTHORIZED"

// AdminToken accepts requests carrying "Authorization: Bearer <token>" where
// token matches tokenHash, a bcrypt hash of the configured admin token.
func AdminToken(tokenHash string) gin.HandlerFunc {
	hash := []byte(tokenHash)
	return func(c *gin.Context) {
		got, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !found || got == "" || len(hash) == 0 ||
			bcrypt.CompareHashAndPassword(hash, []byte(got)) != nil {
			abortUnauthorized(c, "Admin token required")
			return
		}
		c.Next()
	}
}

// HashAdminToken returns the bcrypt hash to configure for token
func HashAdminToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func abortUnauthorized(c *gin.Context, message string) {
	SetErrorCode(c, ErrCodeUnauthorized)
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(
		ErrCodeUnauthorized, message, GetRequestID(c)))
}
