package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/quizcraft/quizcraft-backend/internal/service"
)

func newTestLimiter(t *testing.T, rate int, interval time.Duration) *RateLimiter {
	t.Helper()
	stop := make(chan struct{})
	t.Cleanup(func() { close(stop) })
	return NewRateLimiter(rate, interval, stop)
}

func TestRateLimiterRefills(t *testing.T) {
	rl := newTestLimiter(t, 2, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.allow("k") || !rl.allow("k") {
		t.Fatalf("expected first two requests to pass")
	}
	if rl.allow("k") {
		t.Fatalf("expected third request to be limited")
	}
	if !rl.allow("other") {
		t.Fatalf("expected separate bucket for other key")
	}

	now = now.Add(time.Minute)
	if !rl.allow("k") {
		t.Fatalf("expected refill after one interval")
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := newTestLimiter(t, 1, time.Second)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.allow("k")
	now = now.Add(10 * time.Second)
	rl.cleanup()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.visitors) != 0 {
		t.Fatalf("expected stale visitor to be swept, got %d", len(rl.visitors))
	}
}

func TestRateLimiterKeysByUser(t *testing.T) {
	rl := newTestLimiter(t, 1, time.Hour)
	alice, bob := uuid.New(), uuid.New()

	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		switch c.GetHeader("X-User") {
		case "alice":
			c.Set(ContextKeyClaims, &service.Claims{UserID: alice})
		case "bob":
			c.Set(ContextKeyClaims, &service.Claims{UserID: bob})
		}
		c.Next()
	}, rl.Middleware(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	do := func(user string) int {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("X-User", user)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	if code := do("alice"); code != http.StatusNoContent {
		t.Fatalf("expected alice's first request to pass, got %d", code)
	}
	if code := do("alice"); code != http.StatusTooManyRequests {
		t.Fatalf("expected alice to be limited, got %d", code)
	}
	if code := do("bob"); code != http.StatusNoContent {
		t.Fatalf("expected bob to have his own bucket, got %d", code)
	}
}
