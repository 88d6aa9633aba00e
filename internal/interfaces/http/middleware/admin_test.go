package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestAdminToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	tests := []struct {
		name       string
		hash       string
		header     string
		wantStatus int
	}{
		{name: "valid", hash: string(hash), header: "Bearer s3cret", wantStatus: http.StatusOK},
		{name: "wrong token", hash: string(hash), header: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "missing header", hash: string(hash), wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", hash: string(hash), header: "Basic s3cret", wantStatus: http.StatusUnauthorized},
		{name: "plain text is not a hash", hash: "s3cret", header: "Bearer s3cret", wantStatus: http.StatusUnauthorized},
		{name: "empty configured hash", hash: "", header: "Bearer ", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.PUT("/admin", AdminToken(tt.hash), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPut, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestHashAdminToken(t *testing.T) {
	hash, err := HashAdminToken("rotate-me")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("rotate-me")))
}
