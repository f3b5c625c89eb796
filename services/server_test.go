package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	db, _ := newMockDB(t)
	cfg := &Config{
		JWT:       JWTConfig{Secret: testSecret},
		Tasks:     TasksConfig{Workers: 1, QueueSize: 4},
		RateLimit: RateLimitConfig{EvaluateRPS: 1, EvaluateBurst: 1},
		Media:     MediaConfig{Dir: t.TempDir(), AudioCacheDir: t.TempDir()},
	}
	s := NewServer(cfg, db, nil)
	require.NoError(t, s.InitializeServices())
	return s.SetupRoutes()
}

func TestInitializeServicesRequiresSecret(t *testing.T) {
	db, _ := newMockDB(t)
	s := NewServer(&Config{}, db, nil)
	assert.Error(t, s.InitializeServices())
}

func TestHealthHandler(t *testing.T) {
	h := newTestServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "up", resp.Database)
	assert.Equal(t, "not configured", resp.Redis)
	assert.Zero(t, resp.WebSocketClients)
	assert.EqualValues(t, 0, resp.TTSCache["files"])
}

func TestAPIRoot(t *testing.T) {
	h := newTestServer(t)

	for _, path := range []string{"/api/v1", "/api/v1/"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.JSONEq(t, `{"message":"VoiceVibe API v1","version":"1.0.0"}`, rec.Body.String(), path)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newTestServer(t)

	for _, path := range []string{
		"/api/v1/users/profile",
		"/api/v1/learning/paths",
		"/api/v1/sessions/sessions",
		"/api/v1/gamification/badges",
		"/api/v1/cultural/scenarios",
		"/api/v1/analytics/dashboard",
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}
