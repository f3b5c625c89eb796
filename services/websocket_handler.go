package services

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/voicevibe/backend/models"
	"github.com/voicevibe/backend/repository"
	ws "github.com/voicevibe/backend/websocket"
)

// WebSocketHandler serves the live audio stream of a practice session.
type WebSocketHandler struct {
	auth     *AuthService
	repo     *repository.GORMRepository
	sessions *SessionService
	gemini   *GeminiService
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(auth *AuthService, repo *repository.GORMRepository, sessions *SessionService, gemini *GeminiService, hub *ws.Hub, allowedOrigins string) *WebSocketHandler {
	return &WebSocketHandler{
		auth:     auth,
		repo:     repo,
		sessions: sessions,
		gemini:   gemini,
		hub:      hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return CheckOrigin(r, allowedOrigins)
			},
		},
	}
}

func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/audio/session/{id}", h.ServeAudioStream)
}

// CheckOrigin validates the Origin of a WebSocket upgrade against a comma-separated
// allow list. Requests without an Origin come from non-browser clients and pass.
func CheckOrigin(r *http.Request, allowedOriginsStr string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if allowedOriginsStr == "" {
		slog.Warn("WebSocket connection rejected: no allowed origins configured", "origin", origin)
		return false
	}
	for _, allowed := range strings.Split(allowedOriginsStr, ",") {
		allowed = strings.TrimSpace(allowed)
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	slog.Warn("WebSocket connection rejected: origin not allowed", "origin", origin, "allowed_origins", allowedOriginsStr)
	return false
}

// ServeAudioStream upgrades first and reports auth and lookup failures as close codes.
func (h *WebSocketHandler) ServeAudioStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	user, err := h.auth.Authenticate(r)
	if err != nil {
		slog.Warn("WebSocket authentication failed", "error", err)
		ws.Reject(conn, ws.CloseUnauthorized, "Authentication failed")
		return
	}

	ctx := context.Background()
	session, err := h.repo.GetSession(ctx, chi.URLParam(r, "id"), user.ID)
	if err != nil || session == nil {
		if err != nil {
			slog.Error("Failed to load session for stream", "error", err)
		}
		ws.Reject(conn, ws.CloseNotFound, "Session not found")
		return
	}

	if session.SessionStatus != models.SessionStatusInProgress {
		now := time.Now()
		session.SessionStatus = models.SessionStatusInProgress
		if session.StartedAt == nil {
			session.StartedAt = &now
		}
		if err := h.repo.SaveSession(ctx, session); err != nil {
			slog.Error("Failed to start session", "session_id", session.ID, "error", err)
		}
	}

	existing, err := h.repo.ListTranscripts(ctx, session.ID)
	if err != nil {
		slog.Error("Failed to count transcript chunks", "session_id", session.ID, "error", err)
	}
	startChunk := 0
	for _, t := range existing {
		startChunk = max(startChunk, t.ChunkIndex+1)
	}

	client := h.hub.RegisterClient(conn, user.ID, session.ID)
	conv := &audioConversation{
		handler: h,
		client:  client,
		session: session,
		stream:  NewAudioStream(session.ID, client, h.repo, h.gemini, startChunk),
	}
	client.OnText = conv.handleText
	client.OnBinary = conv.handleBinary

	slog.Info("Audio stream connected", "user_id", user.ID, "session_id", session.ID)
	client.SendJSON(map[string]any{
		"type":       "connection_established",
		"session_id": session.ID,
		"message":    "Connected to audio stream",
	})

	go client.WritePump()
	client.ReadPump()
	conv.disconnected()
}

// audioConversation is the per-connection event state.
type audioConversation struct {
	handler *WebSocketHandler
	client  *ws.Client
	session *models.PracticeSession
	stream  *AudioStream
	ended   bool
}

func (c *audioConversation) handleBinary(_ *ws.Client, data []byte) {
	if c.ended {
		return
	}
	c.stream.Append(data)
}

func (c *audioConversation) handleText(_ *ws.Client, data []byte) {
	msg, err := parseStreamMessage(data)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	switch canonicalEvent(msg.Type) {
	case eventStart:
		c.ended = false
		c.stream.Restart()
		c.client.SendJSON(map[string]any{
			"type":        "session.started",
			"session_id":  c.session.ID,
			"chunk_index": c.stream.NextChunk(),
		})
	case eventAudio:
		if c.ended {
			c.sendError("Stream has ended")
			return
		}
		audio, err := decodeStreamAudio(msg)
		if err != nil {
			c.sendError(err.Error())
			return
		}
		c.stream.Append(audio)
	case eventEnd:
		c.end()
	case eventFeedback:
		c.client.SendJSON(c.stream.IntermediateFeedback(context.Background()))
	case eventPing:
		c.client.SendJSON(map[string]any{"type": "pong", "timestamp": time.Now().UTC().Format(time.RFC3339)})
	default:
		c.sendError("Unknown message type: " + msg.Type)
	}
}

func (c *audioConversation) sendError(msg string) {
	c.client.SendJSON(map[string]any{"type": "error", "message": msg})
}

// complete reloads the session and ends it unless something else already did.
func (c *audioConversation) complete(ctx context.Context) (*models.PracticeSession, error) {
	session, err := c.handler.repo.GetSessionByID(ctx, c.session.ID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNotFound
	}
	if err := c.handler.sessions.End(ctx, session); err != nil {
		return session, err
	}
	c.session = session
	return session, nil
}

func (c *audioConversation) end() {
	c.stream.Flush()
	c.ended = true
	ctx := context.Background()
	session, err := c.complete(ctx)
	if err != nil && !errors.Is(err, ErrSessionCompleted) {
		slog.Error("Failed to complete streamed session", "session_id", c.session.ID, "error", err)
		c.sendError("Failed to complete session")
		return
	}
	duration := 0
	if session != nil {
		duration = session.DurationSeconds
	}
	c.client.SendJSON(map[string]any{
		"type":             "stream_completed",
		"session_id":       c.session.ID,
		"total_chunks":     c.stream.TotalChunks(),
		"duration_seconds": duration,
	})
	c.client.Close(websocket.CloseNormalClosure, "Session completed")
}

// disconnected finishes a stream that dropped without session.end.
func (c *audioConversation) disconnected() {
	if c.ended {
		return
	}
	c.stream.Flush()
	ctx := context.Background()
	session, err := c.handler.repo.GetSessionByID(ctx, c.session.ID)
	if err != nil || session == nil || session.SessionStatus != models.SessionStatusInProgress {
		return
	}
	if err := c.handler.sessions.End(ctx, session); err != nil {
		slog.Error("Failed to complete session after disconnect", "session_id", session.ID, "error", err)
		return
	}
	slog.Info("Session completed after disconnect", "session_id", session.ID)
}
