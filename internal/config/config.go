package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the server.
type Config struct {
	Env       string
	Server    ServerConfig
	WebSocket WebSocketConfig
	Exec      ExecConfig
	Archive   ArchiveConfig
	DBPath    string
	RedisAddr string // empty disables the cross-instance bus
	RedisDB   int
	CORSAllow []string
}

// ServerConfig holds settings for the HTTP server.
type ServerConfig struct {
	Addr        string
	ReadTimeout time.Duration
}

// WebSocketConfig holds settings for client connections.
type WebSocketConfig struct {
	MessagesPerSecond float64
	MessageBurst      int
}

// ExecConfig holds settings for the sandboxed execution service.
type ExecConfig struct {
	URL     string
	Timeout time.Duration
}

// ArchiveConfig holds settings for the documentation archiver.
type ArchiveConfig struct {
	Enabled  bool
	Interval time.Duration
}

// Load reads configuration from the environment, with a best-effort .env load
// first. Missing variables fall back to defaults.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Env: getEnv("APP_ENV", "dev"),
		Server: ServerConfig{
			Addr:        getEnv("HTTP_ADDR", ":8080"),
			ReadTimeout: getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		},
		WebSocket: WebSocketConfig{
			MessagesPerSecond: float64(getEnvInt("WS_MESSAGES_PER_SECOND", 100)),
			MessageBurst:      getEnvInt("WS_MESSAGE_BURST", 200),
		},
		Exec: ExecConfig{
			URL:     getEnv("EXEC_URL", "https://emkc.org/api/v2/piston/execute"),
			Timeout: getEnvDuration("EXEC_TIMEOUT", 15*time.Second),
		},
		Archive: ArchiveConfig{
			Enabled:  getEnvBool("ARCHIVE_ENABLED", false),
			Interval: getEnvDuration("ARCHIVE_INTERVAL", 5*time.Minute),
		},
		DBPath:    getEnv("DB_PATH", "./data/techstroke.db"),
		RedisAddr: getEnv("REDIS_ADDR", ""),
		RedisDB:   getEnvInt("REDIS_DB", 0),
		CORSAllow: getEnvSlice("CORS_ALLOW", "*"),
	}
}

// NewLogger returns a slog.Logger with formatting and level based on env:
// prod gets JSON logs at INFO, everything else text logs at DEBUG.
func NewLogger(env string) *slog.Logger {
	var handler slog.Handler
	if env == "prod" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	return slog.New(handler)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvSlice(key, def string) []string {
	raw := getEnv(key, def)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
