package services

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/voicevibe/backend/cache"
	"github.com/voicevibe/backend/metrics"
	"github.com/voicevibe/backend/repository"
	"github.com/voicevibe/backend/tasks"
	ws "github.com/voicevibe/backend/websocket"
	"gorm.io/gorm"
)

const (
	apiVersion      = "1.0.0"
	shutdownTimeout = 10 * time.Second
	limiterSweep    = time.Minute
)

type routeRegistrar interface {
	RegisterRoutes(r chi.Router)
}

// Server holds all server dependencies
type Server struct {
	config        *Config
	repo          *repository.GORMRepository
	analyticsRepo *repository.AnalyticsRepository
	cache         *cache.Cache

	geminiService     *GeminiService
	elevenLabsService *ElevenLabsService
	audioCache        *AudioCache
	authService       *AuthService
	limiter           *RateLimiter

	queue     *tasks.Queue
	scheduler *tasks.Scheduler
	jobs      *Jobs
	wsHub     *ws.Hub

	authEndpoints    *AuthEndpoints
	websocketHandler *WebSocketHandler
	protected        []routeRegistrar
}

// NewServer creates a server on top of an open database. c may be nil when Redis is not configured.
func NewServer(config *Config, db *gorm.DB, c *cache.Cache) *Server {
	return &Server{
		config:        config,
		repo:          repository.NewGORMRepository(db),
		analyticsRepo: repository.NewAnalyticsRepository(db),
		cache:         c,
	}
}

// InitializeServices builds every service and endpoint group.
func (s *Server) InitializeServices() error {
	if s.config.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}

	s.geminiService = NewGeminiService(s.config.AI)
	s.audioCache = NewAudioCache(s.config.Media.AudioCacheDir)
	s.elevenLabsService = NewElevenLabsService(s.config.AI.ElevenLabsKey, s.audioCache)

	s.queue = tasks.NewQueue(s.config.Tasks.Workers, s.config.Tasks.QueueSize)
	s.scheduler = tasks.NewScheduler()
	s.wsHub = ws.NewHub()
	s.limiter = NewRateLimiter(s.config.RateLimit.EvaluateRPS, s.config.RateLimit.EvaluateBurst)

	var leaderboard *cache.Leaderboard
	if s.cache != nil {
		leaderboard = cache.NewLeaderboard(s.cache)
	} else {
		slog.Warn("Redis not configured, leaderboards read from the database")
	}

	s.authService = NewAuthService(s.repo, s.config.JWT)
	gamification := NewGamificationService(s.repo, leaderboard)
	analytics := NewAnalyticsService(s.analyticsRepo, s.cache)
	sessions := NewSessionService(s.repo, s.queue, s.config.Media.Dir)
	learning := NewLearningService(s.repo, gamification)
	evaluation := NewEvaluationService(s.geminiService, s.repo)
	cultural := NewCulturalService(s.repo, s.cache)

	s.jobs = NewJobs(s.repo, analytics, gamification, s.geminiService, s.config.Server.FrontendURL)
	s.jobs.Register(s.queue)
	if err := s.jobs.Schedule(s.scheduler); err != nil {
		return err
	}

	s.authEndpoints = NewAuthEndpoints(s.authService, s.repo, s.queue)
	s.websocketHandler = NewWebSocketHandler(s.authService, s.repo, sessions, s.geminiService, s.wsHub, s.config.WebSocket.AllowedOrigins)
	s.protected = []routeRegistrar{
		NewUserEndpoints(s.repo),
		NewLearningEndpoints(learning, s.repo),
		NewSessionEndpoints(sessions, s.repo),
		NewEvaluateEndpoints(evaluation, s.geminiService, s.elevenLabsService, s.repo, s.limiter),
		NewGamificationEndpoints(gamification, s.repo),
		NewCulturalEndpoints(cultural, s.repo),
		NewAnalyticsEndpoints(analytics, s.analyticsRepo),
	}

	slog.Info("Services initialized",
		"gemini", s.geminiService.Available(),
		"tts", s.elevenLabsService != nil,
		"redis", s.cache != nil)
	return nil
}

// SetupRoutes configures all HTTP routes
func (s *Server) SetupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(metrics.InstrumentHandler)

	r.Get("/health", s.healthHandler)
	r.Handle("/metrics", metrics.Handler())

	// The stream authenticates itself after the upgrade so failures become close codes.
	s.websocketHandler.RegisterRoutes(r)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.apiV1Handler)
		s.authEndpoints.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(s.authService.Middleware)
			for _, e := range s.protected {
				e.RegisterRoutes(r)
			}
		})
	})

	return r
}

// Start runs the HTTP server and background workers until SIGINT or SIGTERM.
func (s *Server) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.wsHub.Run(ctx)
	s.queue.Start()
	s.scheduler.Start()
	s.limiter.StartCleanup(limiterSweep, ctx.Done())

	port := s.config.Server.Port
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           s.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		slog.Info("Starting server", "port", port, "environment", s.config.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	// Hijacked WebSocket connections are closed by the hub.
	cancel()
	s.scheduler.Stop(shutdownCtx)
	if err := s.queue.Shutdown(shutdownCtx); err != nil {
		slog.Error("Task queue did not drain", "error", err)
	}

	slog.Info("Server exited")
}

type healthResponse struct {
	Status           string         `json:"status"`
	Database         string         `json:"database"`
	Redis            string         `json:"redis"`
	WebSocketClients int            `json:"websocket_clients"`
	TTSCache         map[string]any `json:"tts_cache"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Database: "up", Redis: "not configured"}

	if err := s.repo.Ping(r.Context()); err != nil {
		slog.Error("Database ping failed", "error", err)
		resp.Database = "down"
		resp.Status = "degraded"
	}
	if s.cache != nil {
		if err := s.cache.Ping(r.Context()); err != nil {
			slog.Error("Redis ping failed", "error", err)
			resp.Redis = "down"
			resp.Status = "degraded"
		} else {
			resp.Redis = "up"
		}
	}
	if s.wsHub != nil {
		resp.WebSocketClients = s.wsHub.Count()
	}
	if files, size, err := s.audioCache.Stats(); err == nil {
		resp.TTSCache = map[string]any{"files": files, "bytes": size}
	}

	writeJSON(w, http.StatusOK, resp)
	slog.Debug("Health check", "status", resp.Status, "database", resp.Database, "redis", resp.Redis)
}

func (s *Server) apiV1Handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "VoiceVibe API v1", "version": apiVersion})
}
