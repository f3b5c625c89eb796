package services

import (
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/voicevibe/backend/models"
	"github.com/voicevibe/backend/repository"
)

type SessionEndpoints struct {
	service *SessionService
	repo    *repository.GORMRepository
}

func NewSessionEndpoints(service *SessionService, repo *repository.GORMRepository) *SessionEndpoints {
	return &SessionEndpoints{service: service, repo: repo}
}

type StartSessionResponse struct {
	Session      *models.PracticeSession `json:"session"`
	WebSocketURL string                  `json:"websocket_url"`
}

func (e *SessionEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/start", e.StartSessionHandler)
		r.Get("/statistics", e.StatisticsHandler)

		r.Get("/sessions", e.ListSessionsHandler)
		r.Post("/sessions", e.CreateSessionHandler)
		r.Get("/sessions/{id}", e.GetSessionHandler)
		r.Patch("/sessions/{id}", e.UpdateSessionHandler)
		r.Delete("/sessions/{id}", e.DeleteSessionHandler)
		r.Post("/sessions/{id}/end", e.EndSessionHandler)
		r.Get("/sessions/{id}/recordings", e.ListRecordingsHandler)
		r.Post("/sessions/{id}/recordings", e.UploadRecordingHandler)
		r.Get("/sessions/{id}/feedback", e.ListFeedbackHandler)
	})
}

// ownSession loads the caller's session named by the id URL parameter, writing 404 otherwise.
func (e *SessionEndpoints) ownSession(w http.ResponseWriter, r *http.Request) *models.PracticeSession {
	user := currentUser(w, r)
	if user == nil {
		return nil
	}
	session, err := e.repo.GetSession(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return nil
	}
	if session == nil {
		writeError(w, http.StatusNotFound, "Session not found")
	}
	return session
}

func (e *SessionEndpoints) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	q := r.URL.Query()
	sessions, err := e.repo.ListSessions(r.Context(), user.ID, repository.SessionFilter{
		Status: q.Get("status"),
		Type:   q.Get("type"),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions, "count": len(sessions)})
}

func (e *SessionEndpoints) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	e.createSession(w, r, false)
}

func (e *SessionEndpoints) StartSessionHandler(w http.ResponseWriter, r *http.Request) {
	e.createSession(w, r, true)
}

func (e *SessionEndpoints) createSession(w http.ResponseWriter, r *http.Request, started bool) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	var req CreateSessionRequest
	if !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	session, err := e.service.Create(r.Context(), user.ID, req, started)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !started {
		writeJSON(w, http.StatusCreated, session)
		return
	}
	writeJSON(w, http.StatusCreated, StartSessionResponse{
		Session:      session,
		WebSocketURL: fmt.Sprintf("/ws/audio/session/%s", session.ID),
	})
}

func (e *SessionEndpoints) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	session, err := e.repo.GetSessionWithDetails(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if session == nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (e *SessionEndpoints) UpdateSessionHandler(w http.ResponseWriter, r *http.Request) {
	session := e.ownSession(w, r)
	if session == nil {
		return
	}
	var patch SessionPatch
	if !decodeJSON(r, &patch) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := patch.apply(session); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := e.repo.SaveSession(r.Context(), session); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (e *SessionEndpoints) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	deleted, err := e.repo.DeleteSession(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *SessionEndpoints) EndSessionHandler(w http.ResponseWriter, r *http.Request) {
	session := e.ownSession(w, r)
	if session == nil {
		return
	}
	if err := e.service.End(r.Context(), session); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (e *SessionEndpoints) ListRecordingsHandler(w http.ResponseWriter, r *http.Request) {
	session := e.ownSession(w, r)
	if session == nil {
		return
	}
	recordings, err := e.repo.ListRecordings(r.Context(), session.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recordings": recordings, "count": len(recordings)})
}

func (e *SessionEndpoints) UploadRecordingHandler(w http.ResponseWriter, r *http.Request) {
	session := e.ownSession(w, r)
	if session == nil {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRecordingBytes+1<<20)
	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()
	if header.Size > maxRecordingBytes {
		writeError(w, http.StatusBadRequest, "Audio file exceeds 25 MB")
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	rec, err := e.service.SaveRecording(r.Context(), session, file, ext)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	slog.Info("Recording uploaded", "session_id", session.ID, "recording_id", rec.ID, "size", rec.FileSize)
	writeJSON(w, http.StatusCreated, rec)
}

func (e *SessionEndpoints) ListFeedbackHandler(w http.ResponseWriter, r *http.Request) {
	session := e.ownSession(w, r)
	if session == nil {
		return
	}
	feedback, err := e.repo.ListFeedback(r.Context(), session.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"feedback": feedback, "count": len(feedback)})
}

func (e *SessionEndpoints) StatisticsHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	stats, err := e.service.Statistics(r.Context(), user.ID, queryInt(r, "days", 30))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
