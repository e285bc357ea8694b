package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default. DATABASE_URL is optional: when unset,
// the service runs on the in-memory queue backend, which is intended for
// development and single-session deployments.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Database (empty = in-memory backend)
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// Director webhook transport
	DirectorBaseURL string
	DirectorTimeout time.Duration

	// Delivery workers: fallback wake-up interval when no notify arrives,
	// and the per-queue push rate toward the Director.
	WakeTimeout time.Duration
	RateLimit   int

	// Stale sweep: how often to sweep, and how long a processing item may sit
	// undecided before it expires.
	SweepInterval  time.Duration
	StaleThreshold time.Duration

	// Maximum items returned by the history endpoint.
	HistoryLimit int
}

func Load() *Config {
	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 5)),

		DirectorBaseURL: getEnv("DIRECTOR_WEBHOOK_URL", "http://localhost:8090"),
		DirectorTimeout: getDuration("DIRECTOR_TIMEOUT", 10*time.Second),

		WakeTimeout: getDuration("WAKE_TIMEOUT", 5*time.Second),
		RateLimit:   getInt("RATE_LIMIT_PER_QUEUE", 20),

		SweepInterval:  getDuration("SWEEP_INTERVAL", time.Minute),
		StaleThreshold: getDuration("STALE_THRESHOLD", 30*time.Minute),

		HistoryLimit: getInt("HISTORY_LIMIT", 100),
	}
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
