package services

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voicevibe/backend/models"
	ws "github.com/voicevibe/backend/websocket"
)

func newStreamServer(t *testing.T, h *WebSocketHandler) string {
	t.Helper()
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func readClose(t *testing.T, url string) *websocket.CloseError {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	_, _, err = conn.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	return ce
}

func TestServeAudioStreamCloseCodes(t *testing.T) {
	tests := []struct {
		name     string
		token    bool
		setup    func(mock sqlmock.Sqlmock)
		wantCode int
		wantText string
	}{
		{
			name:     "missing token",
			setup:    func(sqlmock.Sqlmock) {},
			wantCode: ws.CloseUnauthorized,
			wantText: "Authentication failed",
		},
		{
			name:  "inactive user",
			token: true,
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT \* FROM "users"`).WillReturnRows(userRows("u1", false))
			},
			wantCode: ws.CloseUnauthorized,
			wantText: "Authentication failed",
		},
		{
			name:  "unknown session",
			token: true,
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT \* FROM "users"`).WillReturnRows(userRows("u1", true))
				mock.ExpectQuery(`SELECT \* FROM "practice_sessions"`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
			},
			wantCode: ws.CloseNotFound,
			wantText: "Session not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			auth := newTestAuth(repo)
			tt.setup(mock)

			h := NewWebSocketHandler(auth, repo, nil, nil, nil, "")
			url := newStreamServer(t, h) + "/ws/audio/session/s1"
			if tt.token {
				token, err := auth.GenerateAccessToken(&models.User{ID: "u1"})
				require.NoError(t, err)
				url += "?token=" + token
			}

			ce := readClose(t, url)
			assert.Equal(t, tt.wantCode, ce.Code)
			assert.Equal(t, tt.wantText, ce.Text)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
