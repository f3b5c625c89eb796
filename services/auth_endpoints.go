package services

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/voicevibe/backend/models"
	"github.com/voicevibe/backend/repository"
	"github.com/voicevibe/backend/tasks"
)

type AuthEndpoints struct {
	authService *AuthService
	repo        *repository.GORMRepository
	tasks       Enqueuer
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ProfileUpdateRequest struct {
	FullName *string `json:"full_name"`
	Username *string `json:"username"`
}

func NewAuthEndpoints(authService *AuthService, repo *repository.GORMRepository, queue Enqueuer) *AuthEndpoints {
	return &AuthEndpoints{
		authService: authService,
		repo:        repo,
		tasks:       queue,
	}
}

func (e *AuthEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", e.RegisterHandler)
		r.Post("/login", e.LoginHandler)
		r.Post("/token", e.LoginHandler)
		r.Post("/token/refresh", e.RefreshHandler)
		r.Post("/token/verify", e.VerifyHandler)
		r.Post("/password-reset", e.PasswordResetHandler)
		r.Post("/password-reset-confirm", e.PasswordResetConfirmHandler)

		r.Group(func(r chi.Router) {
			r.Use(e.authService.Middleware)
			r.Post("/logout", e.LogoutHandler)
			r.Get("/profile", e.ProfileHandler)
			r.Patch("/profile", e.UpdateProfileHandler)
		})
	})
}

func (e *AuthEndpoints) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := e.authService.Register(r.Context(), req)
	if err != nil {
		slog.Warn("Registration failed", "error", err, "email", req.Email)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (e *AuthEndpoints) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := e.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		slog.Warn("Login failed", "error", err, "email", req.Email)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *AuthEndpoints) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	access, err := e.authService.RefreshToken(r.Context(), req.Refresh)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access": access})
}

func (e *AuthEndpoints) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	claims, err := e.authService.ParseAccessToken(req.Token)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"valid": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true, "user_id": claims.UserID})
}

func (e *AuthEndpoints) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	if err := e.authService.Logout(r.Context(), user.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

func (e *AuthEndpoints) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	profile, err := e.repo.GetOrCreateProfile(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user, "profile": profile})
}

func (e *AuthEndpoints) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	var req ProfileUpdateRequest
	if !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.FullName != nil {
		user.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Username != nil {
		username := strings.TrimSpace(*req.Username)
		if username == "" {
			user.Username = nil
		} else {
			taken, err := e.repo.GetUserByUsername(r.Context(), username)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			if taken != nil && taken.ID != user.ID {
				writeServiceError(w, ErrUsernameTaken)
				return
			}
			user.Username = &username
		}
	}

	if err := e.repo.UpdateUser(r.Context(), user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			err = ErrUsernameTaken
		}
		writeServiceError(w, err)
		return
	}
	slog.Info("Profile updated", "user_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]*models.User{"user": user})
}

func (e *AuthEndpoints) PasswordResetHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, user, err := e.authService.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		slog.Error("Password reset request failed", "error", err)
	} else if user != nil {
		e.tasks.EnqueueType(r.Context(), tasks.TypePasswordResetEmail, PasswordResetPayload{
			UserID: user.ID,
			Email:  user.Email,
			Token:  token,
		})
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "If an account exists for this email, a password reset link has been sent",
	})
}

func (e *AuthEndpoints) PasswordResetConfirmHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "Token is required")
		return
	}

	if err := e.authService.ConfirmPasswordReset(r.Context(), req.Token, req.NewPassword); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password has been reset"})
}
