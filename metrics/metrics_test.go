package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalPath(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"", "/"},
		{"/", "/"},
		{"/health", "/health"},
		{"/api/v1/sessions/sessions/123/end/", "/api/v1/sessions"},
		{"/api/v1/auth/login", "/api/v1/auth"},
		{"/api/v1", "/api"},
		{"/ws/audio/session/abc", "/ws"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, canonicalPath(tt.raw))
		})
	}
}

func TestInstrumentHandlerCountsRequests(t *testing.T) {
	h := InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/v1/users", "418"))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/profile", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/v1/users", "418"))
	assert.Equal(t, before+1, after)
	assert.Equal(t, float64(0), testutil.ToFloat64(httpInFlight))
}

func TestInstrumentHandlerUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(InstrumentHandler)
	r.Route("/api/v1/sessions", func(r chi.Router) {
		r.Get("/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	})

	label := "/api/v1/sessions/sessions/{id}"
	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", label, "204"))
	for _, id := range []string{"a1", "b2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/sessions/sessions/"+id, nil))
	}
	assert.Equal(t, before+2, testutil.ToFloat64(httpRequests.WithLabelValues("GET", label, "204")))

	unmatched := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/v1/nowhere", "404"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/nowhere/else", nil))
	assert.Equal(t, unmatched+1, testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/v1/nowhere", "404")))
}

func TestRecordHelpers(t *testing.T) {
	RecordLLMCall("transcribe", 20*time.Millisecond, nil)
	RecordLLMCall("transcribe", 0, errors.New("boom"))
	assert.GreaterOrEqual(t, testutil.ToFloat64(llmCalls.WithLabelValues("transcribe", "ok")), float64(1))
	assert.GreaterOrEqual(t, testutil.ToFloat64(llmCalls.WithLabelValues("transcribe", "error")), float64(1))

	RecordTask("session.completed", "succeeded")
	assert.GreaterOrEqual(t, testutil.ToFloat64(taskRuns.WithLabelValues("session.completed", "succeeded")), float64(1))

	RecordCronRun("", 0, true)
	assert.GreaterOrEqual(t, testutil.ToFloat64(cronRuns.WithLabelValues("unknown", "true")), float64(1))

	start := testutil.ToFloat64(wsConnections)
	WebSocketOpened()
	assert.Equal(t, start+1, testutil.ToFloat64(wsConnections))
	WebSocketClosed()
	assert.Equal(t, start, testutil.ToFloat64(wsConnections))
}

func TestHandlerExposesRegistry(t *testing.T) {
	RecordAudioChunk(true)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "voicevibe_websocket_audio_chunks_total")
}
