// Package config provides the typed service configuration for the
// conversational-commerce platform, loaded from an optional JSON file with
// environment-variable overrides layered on top of explicit defaults.
package config

import "time"

// Config holds all configuration for the messaging/commerce API and worker
// processes.
type Config struct {
	HTTPAddr    string `json:"httpAddr"`
	MetricsAddr string `json:"metricsAddr"`
	DatabaseURL string `json:"databaseUrl"`
	Env         string `json:"env"` // "dev" relaxes JWT secret validation
	LogLevel    string `json:"logLevel"`

	JWT JWTConfig `json:"jwt"`

	Harmonization   HarmonizationConfig   `json:"harmonization"`
	Agent           AgentConfig           `json:"agent"`
	Scheduler       SchedulerConfig       `json:"scheduler"`
	LLMRouter       LLMRouterConfig       `json:"llmRouter"`
	Dispatcher      DispatcherConfig      `json:"dispatcher"`
	ExternalTimeout time.Duration         `json:"externalTimeout"`
	Shutdown        ShutdownConfig        `json:"shutdown"`

	AllowedOrigins []string `json:"allowedOrigins"`
}

// JWTConfig configures bearer-token verification. HS256 is the dev-mode
// fallback; an RS256/JWKS pair is used when Issuer and JWKSURL are both set.
type JWTConfig struct {
	HS256Secret string `json:"hs256Secret"`
	Issuer      string `json:"issuer"`
	JWKSURL     string `json:"jwksUrl"`
	Audience    string `json:"audience"`
}

// HarmonizationConfig tunes the inbound burst buffer.
type HarmonizationConfig struct {
	Window time.Duration `json:"window"`
}

// AgentConfig tunes the turn orchestrator.
type AgentConfig struct {
	// ContextWindowMessages bounds how many of the conversation's most
	// recent messages, of any session, are included verbatim in the context
	// pack; older messages are left out, and the prior-session summary
	// covers only messages before the current session started.
	ContextWindowMessages int `json:"contextWindowMessages"`
	// ConfidenceThreshold is the LLM confidence below which a turn's draft
	// response counts as low-confidence and triggers a handoff (step 8).
	ConfidenceThreshold float64 `json:"confidenceThreshold"`
	// MaxLowConfidenceTurns is the number of consecutive low-confidence
	// turns at which the handoff is recorded as repeated_low_confidence and
	// the fallback message replaces the reply (step 8).
	MaxLowConfidenceTurns int `json:"maxLowConfidenceTurns"`
}

// SchedulerConfig tunes the background worker loops.
type SchedulerConfig struct {
	PendingMessagePollInterval time.Duration `json:"pendingMessagePollInterval"`
	ReEngagementAfter          time.Duration `json:"reEngagementAfter"`
	DormantAfter               time.Duration `json:"dormantAfter"`
}

// LLMRouterConfig tunes the provider failover circuit breaker.
type LLMRouterConfig struct {
	BreakerFailureRateThreshold float64       `json:"breakerFailureRateThreshold"`
	BreakerWindow               time.Duration `json:"breakerWindow"`
	BreakerCooldown             time.Duration `json:"breakerCooldown"`
}

// DispatcherConfig tunes outbound send-path guardrails.
type DispatcherConfig struct {
	RateLimitWarningThreshold float64 `json:"rateLimitWarningThreshold"`
}

// ShutdownConfig tunes graceful-drain behavior.
type ShutdownConfig struct {
	GracePeriod time.Duration `json:"gracePeriod"`
}

const devDefaultJWTSecret = "dev-secret-change-in-production"

// Validate checks the invariants the rest of the system assumes hold.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	if c.Harmonization.Window < time.Second || c.Harmonization.Window > 10*time.Second {
		return ErrHarmonizationWindowOutOfRange
	}
	if c.Env != "dev" && (c.JWT.HS256Secret == "" || c.JWT.HS256Secret == devDefaultJWTSecret) && c.JWT.JWKSURL == "" {
		return ErrInsecureJWTSecret
	}
	if (c.JWT.JWKSURL != "") != (c.JWT.Issuer != "") {
		return ErrIncompleteOIDCConfig
	}
	return nil
}

// DefaultConfig returns a configuration with the platform's default values: a
// 3s harmonization window (configurable 1-10s), a 30s scheduler tick, a 50%
// breaker failure-rate threshold, an 80% rate-limit warning threshold, and a
// 2-minute shutdown grace period.
func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:    ":8080",
		MetricsAddr: ":9090",
		Env:         "",
		LogLevel:    "info",
		JWT: JWTConfig{
			HS256Secret: devDefaultJWTSecret,
		},
		Harmonization: HarmonizationConfig{
			Window: 3 * time.Second,
		},
		Agent: AgentConfig{
			ContextWindowMessages: 20,
			ConfidenceThreshold:   0.55,
			MaxLowConfidenceTurns: 3,
		},
		Scheduler: SchedulerConfig{
			PendingMessagePollInterval: 30 * time.Second,
			ReEngagementAfter:          7 * 24 * time.Hour,
			DormantAfter:               14 * 24 * time.Hour,
		},
		LLMRouter: LLMRouterConfig{
			BreakerFailureRateThreshold: 0.5,
			BreakerWindow:               2 * time.Minute,
			BreakerCooldown:             30 * time.Second,
		},
		Dispatcher: DispatcherConfig{
			RateLimitWarningThreshold: 0.8,
		},
		ExternalTimeout: 30 * time.Second,
		Shutdown: ShutdownConfig{
			GracePeriod: 2 * time.Minute,
		},
		AllowedOrigins: []string{},
	}
}
