package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	DatabaseURL    string
	ClerkSecretKey string
	Port           string
	MetricsUser    string
	MetricsPass    string
	PprofSecret    string

	LogLevel  string
	LogFormat string

	BadgesFile string

	ReconcileSchedule string
	ReconcileTimezone string

	MaxAttempts      int
	RecalculateBelow int
	CacheSize        int
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found")
	}

	cfg := &Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		ClerkSecretKey:    os.Getenv("CLERK_SECRET_KEY"),
		Port:              getEnv("PORT", "3333"),
		MetricsUser:       os.Getenv("METRICS_USER"),
		MetricsPass:       os.Getenv("METRICS_PASS"),
		PprofSecret:       os.Getenv("PPROF_SECRET"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "json"),
		BadgesFile:        os.Getenv("BADGES_FILE"),
		ReconcileSchedule: getEnv("RECONCILE_SCHEDULE", "15 0 * * *"),
		ReconcileTimezone: getEnv("RECONCILE_TIMEZONE", "UTC"),
	}

	var err error
	if cfg.MaxAttempts, err = getEnvInt("STREAK_MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.RecalculateBelow, err = getEnvInt("STREAK_RECALC_BELOW", 10); err != nil {
		return nil, err
	}
	if cfg.CacheSize, err = getEnvInt("STREAK_CACHE_SIZE", 10000); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the settings the API server cannot start without.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is not set")
	}
	if c.ClerkSecretKey == "" {
		return fmt.Errorf("CLERK_SECRET_KEY environment variable is not set")
	}
	return nil
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) NewLogger() (*logrus.Logger, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	log.SetLevel(level)

	switch c.LogFormat {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT %q, want json or text", c.LogFormat)
	}
	return log, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
