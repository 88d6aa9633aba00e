package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter(t *testing.T) {
	t.Run("burst then block", func(t *testing.T) {
		limiter := NewRateLimiter(0.001, 3)
		for i := 0; i < 3; i++ {
			assert.True(t, limiter.Allow("seller-a"), "request %d", i+1)
		}
		assert.False(t, limiter.Allow("seller-a"))
	})

	t.Run("separate buckets per key", func(t *testing.T) {
		limiter := NewRateLimiter(0.001, 1)
		assert.True(t, limiter.Allow("seller-a"))
		assert.False(t, limiter.Allow("seller-a"))
		assert.True(t, limiter.Allow("seller-b"))
	})

	t.Run("tokens refill over time", func(t *testing.T) {
		limiter := NewRateLimiter(1, 1)
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		limiter.now = func() time.Time { return now }

		assert.True(t, limiter.Allow("k"))
		assert.False(t, limiter.Allow("k"))
		now = now.Add(1100 * time.Millisecond)
		assert.True(t, limiter.Allow("k"))
	})

	t.Run("evicts idle buckets", func(t *testing.T) {
		limiter := NewRateLimiter(1, 1)
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		limiter.now = func() time.Time { return now }

		limiter.Allow("old")
		now = now.Add(limiter.idleTTL + time.Second)
		limiter.Allow("fresh")

		assert.Equal(t, 1, limiter.Evict())
		assert.Len(t, limiter.buckets, 1)
	})

	t.Run("zero burst is raised to one", func(t *testing.T) {
		assert.Equal(t, 1, NewRateLimiter(1, 0).Burst())
	})

	t.Run("concurrent access", func(t *testing.T) {
		limiter := NewRateLimiter(0.001, 50)
		var wg sync.WaitGroup
		var mu sync.Mutex
		allowed := 0
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if limiter.Allow("shared") {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 50, allowed)
	})
}

func TestRateLimitBySeller(t *testing.T) {
	limiter := NewRateLimiter(0.001, 2)
	router := gin.New()
	router.Use(RequestID(), SellerContext(SellerContextConfig{}), RateLimitBySeller(limiter))
	router.POST("/vat-identities/:id/recheck", func(c *gin.Context) {
		c.Status(http.StatusAccepted)
	})

	call := func(seller uuid.UUID) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/vat-identities/x/recheck", nil)
		req.Header.Set(SellerHeader, seller.String())
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	a, b := uuid.New(), uuid.New()
	assert.Equal(t, http.StatusAccepted, call(a).Code)
	assert.Equal(t, http.StatusAccepted, call(a).Code)

	blocked := call(a)
	require.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, "1", blocked.Header().Get("Retry-After"))
	assert.Contains(t, blocked.Body.String(), ErrCodeRateLimited)

	assert.Equal(t, http.StatusAccepted, call(b).Code)
}

func TestRateLimitBySeller_FallsBackToClientIP(t *testing.T) {
	limiter := NewRateLimiter(0.001, 1)
	router := gin.New()
	router.Use(RateLimitBySeller(limiter))
	router.GET("/public/invoices/:id", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/public/invoices/1", nil)
	req.RemoteAddr = "203.0.113.7:4711"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
