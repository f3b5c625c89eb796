package services

import (
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	AI        AIConfig
	JWT       JWTConfig
	WebSocket WebSocketConfig
	Tasks     TasksConfig
	RateLimit RateLimitConfig
	Media     MediaConfig
}

type ServerConfig struct {
	Port        string
	Environment string
	FrontendURL string
}

type LogConfig struct {
	Level string
}

type DatabaseConfig struct {
	URL          string
	Seed         bool
	LogLevel     string
	MaxIdleConns int
	MaxOpenConns int
}

type RedisConfig struct {
	URL string
}

type AIConfig struct {
	GeminiAPIKey    string
	GeminiModel     string
	GeminiLiveModel string
	ElevenLabsKey   string
}

type JWTConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type WebSocketConfig struct {
	AllowedOrigins string
}

type TasksConfig struct {
	Workers   int
	QueueSize int
}

type RateLimitConfig struct {
	EvaluateRPS   float64
	EvaluateBurst int
}

type MediaConfig struct {
	Dir           string
	AudioCacheDir string
}

// LoadConfig loads configuration from environment variables and config files
func LoadConfig() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.environment", "development")
	viper.SetDefault("server.frontend_url", "http://localhost:3000")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("websocket.allowed_origins", "")
	viper.SetDefault("redis.url", "")
	viper.SetDefault("gemini.api_key", "")
	viper.SetDefault("gemini.model", "gemini-2.5-flash")
	viper.SetDefault("gemini.live_model", "gemini-live-2.5-flash-preview")
	viper.SetDefault("elevenlabs.api_key", "")
	viper.SetDefault("jwt.secret", "")
	viper.SetDefault("jwt.access_ttl", "60m")
	viper.SetDefault("jwt.refresh_ttl", "168h")
	viper.SetDefault("database.url", "")
	viper.SetDefault("database.seed", "true")
	viper.SetDefault("database.log_level", "silent")
	viper.SetDefault("database.max_idle_conns", "10")
	viper.SetDefault("database.max_open_conns", "100")
	viper.SetDefault("tasks.workers", "4")
	viper.SetDefault("tasks.queue_size", "256")
	viper.SetDefault("ratelimit.evaluate_rps", "2")
	viper.SetDefault("ratelimit.evaluate_burst", "5")
	viper.SetDefault("media.dir", "./media")
	viper.SetDefault("media.audio_cache_dir", "./media/tts_cache")

	// Map environment variables to config keys
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.environment", "ENVIRONMENT")
	viper.BindEnv("server.frontend_url", "FRONTEND_URL")
	viper.BindEnv("log.level", "LOG_LEVEL")
	viper.BindEnv("websocket.allowed_origins", "WEBSOCKET_ALLOWED_ORIGINS")
	viper.BindEnv("redis.url", "REDIS_URL")
	viper.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	viper.BindEnv("gemini.model", "GEMINI_MODEL")
	viper.BindEnv("gemini.live_model", "GEMINI_LIVE_MODEL")
	viper.BindEnv("elevenlabs.api_key", "ELEVENLABS_API_KEY")
	viper.BindEnv("jwt.secret", "JWT_SECRET")
	viper.BindEnv("jwt.access_ttl", "JWT_ACCESS_TTL")
	viper.BindEnv("jwt.refresh_ttl", "JWT_REFRESH_TTL")
	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("database.seed", "DATABASE_SEED")
	viper.BindEnv("database.log_level", "DATABASE_LOG_LEVEL")
	viper.BindEnv("database.max_idle_conns", "DATABASE_MAX_IDLE_CONNS")
	viper.BindEnv("database.max_open_conns", "DATABASE_MAX_OPEN_CONNS")
	viper.BindEnv("tasks.workers", "TASK_WORKERS")
	viper.BindEnv("tasks.queue_size", "TASK_QUEUE_SIZE")
	viper.BindEnv("ratelimit.evaluate_rps", "RATE_LIMIT_EVALUATE_RPS")
	viper.BindEnv("ratelimit.evaluate_burst", "RATE_LIMIT_EVALUATE_BURST")
	viper.BindEnv("media.dir", "MEDIA_DIR")
	viper.BindEnv("media.audio_cache_dir", "AUDIO_CACHE_DIR")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("Config file not found, using defaults and environment variables")
		} else {
			slog.Error("Error reading config file", "error", err)
		}
	}

	return &Config{
		Server: ServerConfig{
			Port:        viper.GetString("server.port"),
			Environment: viper.GetString("server.environment"),
			FrontendURL: viper.GetString("server.frontend_url"),
		},
		Log: LogConfig{
			Level: viper.GetString("log.level"),
		},
		Database: DatabaseConfig{
			URL:          viper.GetString("database.url"),
			Seed:         viper.GetBool("database.seed"),
			LogLevel:     viper.GetString("database.log_level"),
			MaxIdleConns: viper.GetInt("database.max_idle_conns"),
			MaxOpenConns: viper.GetInt("database.max_open_conns"),
		},
		Redis: RedisConfig{
			URL: viper.GetString("redis.url"),
		},
		AI: AIConfig{
			GeminiAPIKey:    viper.GetString("gemini.api_key"),
			GeminiModel:     viper.GetString("gemini.model"),
			GeminiLiveModel: viper.GetString("gemini.live_model"),
			ElevenLabsKey:   viper.GetString("elevenlabs.api_key"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			AccessTTL:  viper.GetDuration("jwt.access_ttl"),
			RefreshTTL: viper.GetDuration("jwt.refresh_ttl"),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins: viper.GetString("websocket.allowed_origins"),
		},
		Tasks: TasksConfig{
			Workers:   viper.GetInt("tasks.workers"),
			QueueSize: viper.GetInt("tasks.queue_size"),
		},
		RateLimit: RateLimitConfig{
			EvaluateRPS:   viper.GetFloat64("ratelimit.evaluate_rps"),
			EvaluateBurst: viper.GetInt("ratelimit.evaluate_burst"),
		},
		Media: MediaConfig{
			Dir:           viper.GetString("media.dir"),
			AudioCacheDir: viper.GetString("media.audio_cache_dir"),
		},
	}
}
