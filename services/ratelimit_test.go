package services

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/voicevibe/backend/models"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	now := time.Now()

	assert.True(t, rl.allow("a", now))
	assert.True(t, rl.allow("a", now))
	assert.False(t, rl.allow("a", now))
	assert.True(t, rl.allow("b", now), "keys have separate buckets")
	assert.True(t, rl.allow("a", now.Add(time.Second)))
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Now()
	rl.allow("old", now.Add(-time.Hour))
	rl.allow("fresh", now)

	assert.Equal(t, 1, rl.Cleanup(now.Add(-limiterIdle)))
	assert.Len(t, rl.limiters, 1)
	assert.Contains(t, rl.limiters, "fresh")
}

func TestRateLimiterHandler(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	request := func(user *models.User) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/evaluate/speech", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		if user != nil {
			req = req.WithContext(WithUser(req.Context(), user))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, request(nil).Code)
	limited := request(nil)
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "1", limited.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"Rate limit exceeded"}`, limited.Body.String())

	// Authenticated requests are keyed by user, not address.
	assert.Equal(t, http.StatusNoContent, request(&models.User{ID: "u1"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, request(&models.User{ID: "u1"}).Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.9:4321"
	assert.Equal(t, "192.168.1.9", clientIP(req))
	req.RemoteAddr = "unix"
	assert.Equal(t, "unix", clientIP(req))
}
