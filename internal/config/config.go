package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the honeypot turn service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	DatabaseURL string
	SessionTTL  time.Duration

	EngagementThreshold float64
	MaxTurns            int
	HighValueMinimum    int
	DefaultPersona      string

	TurnDeadline      time.Duration
	PersistTimeout    time.Duration
	GenerationTimeout time.Duration
	StoreReadRetries  int

	BrainMode    string
	BrainHTTPURL string

	CallbackURL         string
	CallbackAPIKey      string
	CallbackAttempts    int
	CallbackBackoffBase time.Duration
	CallbackBackoffCap  time.Duration
	CallbackTimeout     time.Duration
	HoldingDir          string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "jaal"),
		DatabaseURL:      trimmedEnv("DATABASE_URL"),
		DefaultPersona:   trimmedEnv("DEFAULT_PERSONA"),
		BrainMode:        envOrDefault("BRAIN_ADAPTER_MODE", "auto"),
		BrainHTTPURL:     trimmedEnv("BRAIN_HTTP_URL"),
		CallbackURL:      trimmedEnv("CALLBACK_URL"),
		CallbackAPIKey:   trimmedEnv("CALLBACK_API_KEY"),
		HoldingDir:       envOrDefault("CALLBACK_HOLDING_DIR", "failed_callbacks"),

		ShutdownTimeout:     15 * time.Second,
		SessionTTL:          time.Hour,
		EngagementThreshold: 0.7,
		MaxTurns:            30,
		HighValueMinimum:    3,
		TurnDeadline:        20 * time.Second,
		PersistTimeout:      5 * time.Second,
		GenerationTimeout:   8 * time.Second,
		StoreReadRetries:    2,
		CallbackAttempts:    3,
		CallbackBackoffBase: 2 * time.Second,
		CallbackBackoffCap:  10 * time.Second,
		CallbackTimeout:     10 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionTTL, err = durationFromEnv("SESSION_TTL", cfg.SessionTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.EngagementThreshold, err = floatFromEnv("ENGAGEMENT_THRESHOLD", cfg.EngagementThreshold)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxTurns, err = intFromEnv("MAX_CONVERSATION_TURNS", cfg.MaxTurns)
	if err != nil {
		return Config{}, err
	}
	cfg.HighValueMinimum, err = intFromEnv("HIGH_VALUE_MINIMUM", cfg.HighValueMinimum)
	if err != nil {
		return Config{}, err
	}
	cfg.TurnDeadline, err = durationFromEnv("TURN_DEADLINE", cfg.TurnDeadline)
	if err != nil {
		return Config{}, err
	}
	cfg.PersistTimeout, err = durationFromEnv("PERSIST_TIMEOUT", cfg.PersistTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.GenerationTimeout, err = durationFromEnv("GENERATION_TIMEOUT", cfg.GenerationTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.StoreReadRetries, err = intFromEnv("STORE_READ_RETRIES", cfg.StoreReadRetries)
	if err != nil {
		return Config{}, err
	}
	cfg.CallbackAttempts, err = intFromEnv("CALLBACK_MAX_ATTEMPTS", cfg.CallbackAttempts)
	if err != nil {
		return Config{}, err
	}
	cfg.CallbackBackoffBase, err = durationFromEnv("CALLBACK_BACKOFF_BASE", cfg.CallbackBackoffBase)
	if err != nil {
		return Config{}, err
	}
	cfg.CallbackBackoffCap, err = durationFromEnv("CALLBACK_BACKOFF_CAP", cfg.CallbackBackoffCap)
	if err != nil {
		return Config{}, err
	}
	cfg.CallbackTimeout, err = durationFromEnv("CALLBACK_TIMEOUT", cfg.CallbackTimeout)
	if err != nil {
		return Config{}, err
	}

	if cfg.EngagementThreshold < 0 || cfg.EngagementThreshold > 1 {
		return Config{}, fmt.Errorf("ENGAGEMENT_THRESHOLD must be in [0,1]")
	}
	if cfg.MaxTurns <= 0 {
		return Config{}, fmt.Errorf("MAX_CONVERSATION_TURNS must be positive")
	}
	if cfg.HighValueMinimum <= 0 {
		return Config{}, fmt.Errorf("HIGH_VALUE_MINIMUM must be positive")
	}
	if cfg.SessionTTL < time.Minute {
		return Config{}, fmt.Errorf("SESSION_TTL must be at least 1m")
	}
	if cfg.CallbackAttempts <= 0 {
		return Config{}, fmt.Errorf("CALLBACK_MAX_ATTEMPTS must be positive")
	}
	if cfg.StoreReadRetries < 0 {
		return Config{}, fmt.Errorf("STORE_READ_RETRIES must be >= 0")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}
