package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/voicevibe/backend/repository"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrEmailTaken         = errors.New("a user with this email already exists")
	ErrUsernameTaken      = errors.New("a user with this username already exists")

	ErrSessionCompleted = errors.New("session already completed")
	ErrModuleLocked     = errors.New("module is locked")
	ErrMaxAttempts      = errors.New("maximum attempts reached for this module")

	ErrInsufficientPoints   = errors.New("insufficient points")
	ErrOutOfStock           = errors.New("out of stock")
	ErrAlreadyParticipating = errors.New("already participating in this challenge")
	ErrNotParticipating     = errors.New("not participating in this challenge")
	ErrChallengeFull        = errors.New("challenge is full")
	ErrQuestNotStarted      = errors.New("quest not started")
	ErrQuestCompleted       = errors.New("quest already completed")

	ErrAIUnavailable = errors.New("AI service is not configured")
	ErrAIProvider    = errors.New("AI provider request failed")
)

// ValidationError carries a client-facing message for a 400 response.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

var errorStatus = []struct {
	err     error
	status  int
	message string
}{
	{ErrNotFound, http.StatusNotFound, "Not found"},
	{ErrInvalidCredentials, http.StatusUnauthorized, "Invalid credentials"},
	{ErrInvalidToken, http.StatusUnauthorized, "Invalid or expired token"},
	{ErrEmailTaken, http.StatusConflict, "A user with this email already exists"},
	{ErrUsernameTaken, http.StatusConflict, "A user with this username already exists"},
	{ErrSessionCompleted, http.StatusBadRequest, "Session already completed"},
	{ErrModuleLocked, http.StatusForbidden, "Module is locked"},
	{ErrMaxAttempts, http.StatusBadRequest, "Maximum attempts reached for this module"},
	{ErrInsufficientPoints, http.StatusBadRequest, "Insufficient points"},
	{ErrOutOfStock, http.StatusBadRequest, "Out of stock"},
	{ErrAlreadyParticipating, http.StatusBadRequest, "Already participating in this challenge"},
	{ErrNotParticipating, http.StatusBadRequest, "Not participating in this challenge"},
	{ErrChallengeFull, http.StatusBadRequest, "Challenge is full"},
	{ErrQuestNotStarted, http.StatusBadRequest, "Quest not started"},
	{ErrQuestCompleted, http.StatusBadRequest, "Quest already completed"},
	{ErrAIUnavailable, http.StatusServiceUnavailable, "AI service is not configured"},
	{ErrAIProvider, http.StatusBadGateway, "AI provider request failed"},
	{repository.ErrDuplicate, http.StatusConflict, "Record already exists"},
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest
	}
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

// writeServiceError renders err with its mapped status; unexpected errors are logged and hidden.
func writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "error", err)
		writeError(w, status, "Internal server error")
		return
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		writeError(w, status, verr.Message)
		return
	}
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			writeError(w, status, e.message)
			return
		}
	}
	writeError(w, status, err.Error())
}
