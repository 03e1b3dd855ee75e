// Package config provides configuration for the kaiwa service.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the service configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// Session quota and lifetime
	MaxDailySessions   int
	MaxSessionDuration time.Duration
	SessionGracePeriod time.Duration

	// Stale session reaper
	StaleSessionThreshold time.Duration
	ReaperInterval        time.Duration

	// Pending summary recovery
	RecoveryInterval     time.Duration
	RecoveryStartupDelay time.Duration
	RecoveryBatchSize    int
	PendingStaleAfter    time.Duration

	// Summarization engine
	SummaryBaseURL string
	SummaryAPIKey  string
	SummaryModel   string
	SummaryTimeout time.Duration

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:              getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:           getEnv("DATABASE_URL", "file:kaiwa.db?cache=shared&mode=rwc"),
		MaxDailySessions:      getEnvInt("MAX_DAILY_SESSIONS", 3),
		MaxSessionDuration:    getEnvDuration("MAX_SESSION_DURATION_MS", 600000),
		SessionGracePeriod:    getEnvDuration("SESSION_GRACE_PERIOD_MS", 60000),
		StaleSessionThreshold: getEnvDuration("STALE_SESSION_THRESHOLD_MS", 1800000),
		ReaperInterval:        getEnvDuration("REAPER_INTERVAL_MS", 300000),
		RecoveryInterval:      getEnvDuration("RECOVERY_INTERVAL_MS", 600000),
		RecoveryStartupDelay:  getEnvDuration("RECOVERY_STARTUP_DELAY_MS", 30000),
		RecoveryBatchSize:     getEnvInt("RECOVERY_BATCH_SIZE", 10),
		PendingStaleAfter:     getEnvDuration("PENDING_STALE_AFTER_MS", 900000),
		SummaryBaseURL:        getEnv("SUMMARY_BASE_URL", "https://api.openai.com/v1"),
		SummaryAPIKey:         getEnv("SUMMARY_API_KEY", ""),
		SummaryModel:          getEnv("SUMMARY_MODEL", "gpt-4o-mini"),
		SummaryTimeout:        getEnvDuration("SUMMARY_TIMEOUT_MS", 30000),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultMs int) time.Duration {
	return time.Duration(getEnvInt(key, defaultMs)) * time.Millisecond
}
