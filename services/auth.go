package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/voicevibe/backend/models"
	"github.com/voicevibe/backend/repository"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 8
	resetTokenExpiry  = time.Hour
)

type AuthService struct {
	repo          *repository.GORMRepository
	jwtSecret     []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
}

type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type AuthResponse struct {
	User    *models.User `json:"user"`
	Access  string       `json:"access,omitempty"`
	Refresh string       `json:"refresh,omitempty"`
}

type RegisterRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	FullName        string `json:"full_name"`
	Username        string `json:"username"`
}

func NewAuthService(repo *repository.GORMRepository, cfg JWTConfig) *AuthService {
	s := &AuthService{
		repo:          repo,
		jwtSecret:     []byte(cfg.Secret),
		accessExpiry:  cfg.AccessTTL,
		refreshExpiry: cfg.RefreshTTL,
	}
	if s.accessExpiry <= 0 {
		s.accessExpiry = time.Hour
	}
	if s.refreshExpiry <= 0 {
		s.refreshExpiry = 7 * 24 * time.Hour
	}
	return s
}

// generateSecureToken generates a cryptographically secure random token
func (s *AuthService) generateSecureToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// hashToken creates a SHA256 hash of the token for secure storage
func (s *AuthService) hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func (r RegisterRequest) validate() error {
	if !strings.Contains(r.Email, "@") {
		return invalid("Enter a valid email address")
	}
	if len(r.Password) < minPasswordLength {
		return invalid("Password must be at least %d characters", minPasswordLength)
	}
	if r.PasswordConfirm != "" && r.PasswordConfirm != r.Password {
		return invalid("Password fields didn't match")
	}
	return nil
}

// Register creates the user with its default profile and level, then issues tokens.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)
	if err := req.validate(); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	user := &models.User{
		Email:    req.Email,
		FullName: req.FullName,
		Role:     models.RoleUser,
		IsActive: true,
	}
	if req.Username != "" {
		taken, err := s.repo.GetUserByUsername(ctx, req.Username)
		if err != nil {
			return nil, fmt.Errorf("failed to check existing username: %w", err)
		}
		if taken != nil {
			return nil, ErrUsernameTaken
		}
		user.Username = &req.Username
	}

	if user.Password, err = HashPassword(req.Password); err != nil {
		return nil, err
	}
	if err := s.repo.CreateUserWithDefaults(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	resp, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}
	slog.Info("User registered", "user_id", user.ID, "email", user.Email)
	return resp, nil
}

// Login authenticates user and creates tokens
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	user, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil || !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	resp, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}
	slog.Info("User logged in successfully", "user_id", user.ID, "email", user.Email)
	return resp, nil
}

func (s *AuthService) issueTokens(ctx context.Context, user *models.User) (*AuthResponse, error) {
	access, err := s.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refresh, err := s.generateSecureToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	record := &models.RefreshToken{
		UserID:    user.ID,
		Token:     s.hashToken(refresh),
		ExpiresAt: time.Now().Add(s.refreshExpiry),
	}
	if err := s.repo.CreateRefreshToken(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}
	return &AuthResponse{User: user, Access: access, Refresh: refresh}, nil
}

// RefreshToken generates a new access token using refresh token
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", ErrInvalidToken
	}
	record, err := s.repo.GetRefreshToken(ctx, s.hashToken(refreshToken))
	if err != nil {
		return "", fmt.Errorf("failed to get refresh token: %w", err)
	}
	if record == nil {
		return "", ErrInvalidToken
	}

	user, err := s.repo.GetUserByID(ctx, record.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil || !user.IsActive {
		return "", ErrInvalidToken
	}

	access, err := s.GenerateAccessToken(user)
	if err != nil {
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}
	slog.Info("Access token refreshed", "user_id", user.ID)
	return access, nil
}

// Logout invalidates all tokens for the user
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if err := s.repo.DeleteAllUserTokens(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete user tokens: %w", err)
	}

	slog.Info("User logged out", "user_id", userID)
	return nil
}

// ParseAccessToken validates signature, algorithm and time claims without touching the database.
func (s *AuthService) ParseAccessToken(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyAccessToken verifies and extracts user from access token
func (s *AuthService) VerifyAccessToken(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.ParseAccessToken(token)
	if err != nil {
		return nil, err
	}

	// Get user from database to ensure they still exist
	user, err := s.repo.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil || !user.IsActive {
		return nil, ErrInvalidToken
	}

	return user, nil
}

// GenerateAccessToken creates a short-lived access token
func (s *AuthService) GenerateAccessToken(user *models.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// RequestPasswordReset stores a hashed reset token and returns the raw one.
// An unknown email yields an empty token and no error.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (string, *models.User, error) {
	user, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return "", nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil || !user.IsActive {
		return "", nil, nil
	}
	raw, err := s.generateSecureToken()
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate reset token: %w", err)
	}
	reset := &models.PasswordResetToken{
		UserID:    user.ID,
		Token:     s.hashToken(raw),
		ExpiresAt: time.Now().Add(resetTokenExpiry),
	}
	if err := s.repo.CreatePasswordResetToken(ctx, reset); err != nil {
		return "", nil, fmt.Errorf("failed to store reset token: %w", err)
	}
	slog.Info("Password reset requested", "user_id", user.ID)
	return raw, user, nil
}

func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return invalid("Password must be at least %d characters", minPasswordLength)
	}
	reset, err := s.repo.GetPasswordResetToken(ctx, s.hashToken(token))
	if err != nil {
		return fmt.Errorf("failed to get reset token: %w", err)
	}
	if reset == nil {
		return invalid("Invalid or expired reset token")
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.ResetPassword(ctx, reset, hash); err != nil {
		if errors.Is(err, repository.ErrTokenUsed) {
			return invalid("Invalid or expired reset token")
		}
		return fmt.Errorf("failed to reset password: %w", err)
	}
	slog.Info("Password reset completed", "user_id", reset.UserID)
	return nil
}

// bearerToken extracts the token from the Authorization header. WebSocket upgrades,
// which browsers cannot decorate with headers, may pass it as ?token= instead.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if websocket.IsWebSocketUpgrade(r) {
		return r.URL.Query().Get("token")
	}
	return ""
}

// Authenticate resolves the request's user from its bearer token.
func (s *AuthService) Authenticate(r *http.Request) (*models.User, error) {
	token := bearerToken(r)
	if token == "" {
		return nil, ErrInvalidToken
	}
	return s.VerifyAccessToken(r.Context(), token)
}

// Middleware for bearer-token authentication
func (s *AuthService) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.Authenticate(r)
		if err != nil {
			if !errors.Is(err, ErrInvalidToken) {
				slog.Error("Authentication failed", "error", err)
			}
			writeError(w, http.StatusUnauthorized, "Authentication credentials were not provided or are invalid")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}
