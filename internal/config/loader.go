package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Load loads configuration from an optional file path and applies
// environment variable overrides. Validation is deferred so callers can
// layer CLI flag overrides on top before calling Validate.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		fileConfig, err := loadFromFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = fileConfig
	}

	applyEnvironmentOverrides(cfg)

	return cfg, nil
}

// loadFromFile loads configuration from a JSON file, merging it over the
// defaults so an omitted field keeps its default rather than zeroing out.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigFileNotFound
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfigFormat, err)
	}

	return cfg, nil
}

// applyEnvironmentOverrides layers environment variables over whatever was
// loaded from file/defaults. Env always wins, matching the usual Viper
// file-then-env precedence.
func applyEnvironmentOverrides(cfg *Config) {
	if v := os.Getenv("CONVOAPI_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("CONVOAPI_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("CONVOAPI_DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("CONVOAPI_ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("CONVOAPI_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if v := os.Getenv("CONVOAPI_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		cfg.AllowedOrigins = make([]string, 0, len(origins))
		for _, origin := range origins {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	}

	if v := os.Getenv("CONVOAPI_JWT_HS256_SECRET"); v != "" {
		cfg.JWT.HS256Secret = v
	}
	if v := os.Getenv("CONVOAPI_JWT_ISSUER"); v != "" {
		cfg.JWT.Issuer = v
	}
	if v := os.Getenv("CONVOAPI_JWT_JWKS_URL"); v != "" {
		cfg.JWT.JWKSURL = v
	}
	if v := os.Getenv("CONVOAPI_JWT_AUDIENCE"); v != "" {
		cfg.JWT.Audience = v
	}

	if d, ok := parseDurationEnv("CONVOAPI_HARMONIZATION_WINDOW"); ok {
		cfg.Harmonization.Window = d
	}
	if d, ok := parseDurationEnv("CONVOAPI_SCHEDULER_POLL_INTERVAL"); ok {
		cfg.Scheduler.PendingMessagePollInterval = d
	}
	if d, ok := parseDurationEnv("CONVOAPI_REENGAGEMENT_AFTER"); ok {
		cfg.Scheduler.ReEngagementAfter = d
	}
	if d, ok := parseDurationEnv("CONVOAPI_DORMANT_AFTER"); ok {
		cfg.Scheduler.DormantAfter = d
	}
	if d, ok := parseDurationEnv("CONVOAPI_EXTERNAL_TIMEOUT"); ok {
		cfg.ExternalTimeout = d
	}
	if d, ok := parseDurationEnv("CONVOAPI_SHUTDOWN_GRACE_PERIOD"); ok {
		cfg.Shutdown.GracePeriod = d
	}
	if d, ok := parseDurationEnv("CONVOAPI_BREAKER_WINDOW"); ok {
		cfg.LLMRouter.BreakerWindow = d
	}
	if d, ok := parseDurationEnv("CONVOAPI_BREAKER_COOLDOWN"); ok {
		cfg.LLMRouter.BreakerCooldown = d
	}

	if f, ok := parseFloatEnv("CONVOAPI_BREAKER_FAILURE_RATE_THRESHOLD"); ok {
		cfg.LLMRouter.BreakerFailureRateThreshold = f
	}
	if f, ok := parseFloatEnv("CONVOAPI_RATE_LIMIT_WARNING_THRESHOLD"); ok {
		cfg.Dispatcher.RateLimitWarningThreshold = f
	}
}

func parseDurationEnv(name string) (time.Duration, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}

func parseFloatEnv(name string) (float64, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// LoadFromEnvironment creates a configuration from defaults plus environment
// variables only, for containerized deployments with no config file mounted.
// Validation is deferred to allow CLI flag overrides to be applied first.
func LoadFromEnvironment() (*Config, error) {
	cfg := DefaultConfig()
	applyEnvironmentOverrides(cfg)
	return cfg, nil
}
