package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ledgerly/invoicing/internal/domain/shared"
	"github.com/ledgerly/invoicing/internal/infrastructure/logger"
	"github.com/ledgerly/invoicing/internal/interfaces/http/dto"
)

func newSellerRouter(cfg SellerContextConfig) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), SellerContext(cfg))
	router.GET("/whoami", func(c *gin.Context) {
		id, ok := GetSellerID(c)
		c.JSON(http.StatusOK, gin.H{
			"ok":         ok,
			"seller_id":  id.String(),
			"actor":      GetActor(c),
			"ctx_seller": logger.GetSellerID(c.Request.Context()),
			"gin_seller": c.GetString(SellerIDKey),
		})
	})
	return router
}

func TestSellerContext(t *testing.T) {
	sellerID := uuid.New()

	t.Run("binds seller to gin and request context", func(t *testing.T) {
		router := newSellerRouter(SellerContextConfig{})
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set(SellerHeader, sellerID.String())
		req.Header.Set(ActorHeader, "alice@example.com")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, true, body["ok"])
		assert.Equal(t, sellerID.String(), body["seller_id"])
		assert.Equal(t, sellerID.String(), body["ctx_seller"])
		assert.Equal(t, sellerID.String(), body["gin_seller"])
		assert.Equal(t, "alice@example.com", body["actor"])
	})

	t.Run("default actor", func(t *testing.T) {
		router := newSellerRouter(SellerContextConfig{})
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set(SellerHeader, sellerID.String())
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Contains(t, w.Body.String(), `"actor":"api"`)
	})

	t.Run("long actor is truncated", func(t *testing.T) {
		router := newSellerRouter(SellerContextConfig{})
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set(SellerHeader, sellerID.String())
		req.Header.Set(ActorHeader, strings.Repeat("a", 300))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Len(t, body["actor"], maxActorLength)
	})

	rejections := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusBadRequest},
		{"malformed header", "seller-1", http.StatusBadRequest},
		{"nil uuid", uuid.Nil.String(), http.StatusBadRequest},
	}
	for _, tt := range rejections {
		t.Run(tt.name, func(t *testing.T) {
			router := newSellerRouter(SellerContextConfig{})
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set(SellerHeader, tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			var resp dto.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, dto.ErrCodeMissingSeller, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.RequestID)
		})
	}
}

func TestSellerContext_Validator(t *testing.T) {
	known := uuid.New()
	validator := func(_ context.Context, id uuid.UUID) error {
		switch id {
		case known:
			return nil
		case uuid.MustParse("00000000-0000-0000-0000-00000000dead"):
			return errors.New("connection refused")
		default:
			return shared.ErrNotFound.WithMessage("Seller %s not found", id)
		}
	}
	router := newSellerRouter(SellerContextConfig{Validator: validator, Logger: zap.NewNop()})

	tests := []struct {
		name   string
		seller string
		status int
		code   string
	}{
		{"known seller", known.String(), http.StatusOK, ""},
		{"unknown seller", uuid.New().String(), http.StatusNotFound, dto.ErrCodeNotFound},
		{"lookup failure", "00000000-0000-0000-0000-00000000dead", http.StatusInternalServerError, dto.ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			req.Header.Set(SellerHeader, tt.seller)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.code != "" {
				assert.Contains(t, w.Body.String(), tt.code)
			}
		})
	}
}

func TestGetSellerID_Unset(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	id, ok := GetSellerID(c)
	assert.False(t, ok)
	assert.Equal(t, uuid.Nil, id)
	assert.Equal(t, defaultActor, GetActor(c))
}

func TestSellerContext_Tokens(t *testing.T) {
	sellerID := uuid.New()
	verify := func(token string) (uuid.UUID, string, error) {
		if token == "good" {
			return sellerID, "api:billing-bot", nil
		}
		return uuid.Nil, "", errors.New("invalid token")
	}
	router := newSellerRouter(SellerContextConfig{Tokens: verify, Logger: zap.NewNop()})

	t.Run("seller and actor come from the token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer good")
		req.Header.Set(SellerHeader, uuid.New().String())
		req.Header.Set(ActorHeader, "spoofed")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, sellerID.String(), body["seller_id"])
		assert.Equal(t, "api:billing-bot", body["actor"])
	})

	for name, header := range map[string]string{
		"missing token": "",
		"bad token":     "Bearer nope",
		"wrong scheme":  "Basic good",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			req.Header.Set(SellerHeader, sellerID.String())
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), ErrCodeUnauthorized)
		})
	}
}
