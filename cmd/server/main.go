package main

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/tulia-commerce/convoapi/internal/agent"
	"github.com/tulia-commerce/convoapi/internal/audit"
	"github.com/tulia-commerce/convoapi/internal/campaign"
	"github.com/tulia-commerce/convoapi/internal/checkout"
	"github.com/tulia-commerce/convoapi/internal/config"
	"github.com/tulia-commerce/convoapi/internal/credcodec"
	"github.com/tulia-commerce/convoapi/internal/db"
	"github.com/tulia-commerce/convoapi/internal/dispatcher"
	"github.com/tulia-commerce/convoapi/internal/ecommerce"
	"github.com/tulia-commerce/convoapi/internal/grounding"
	"github.com/tulia-commerce/convoapi/internal/harmonizer"
	"github.com/tulia-commerce/convoapi/internal/httpapi"
	client "github.com/tulia-commerce/convoapi/internal/httpclient"
	"github.com/tulia-commerce/convoapi/internal/knowledgebase"
	"github.com/tulia-commerce/convoapi/internal/llmrouter"
	"github.com/tulia-commerce/convoapi/internal/payment"
	"github.com/tulia-commerce/convoapi/internal/refctx"
	"github.com/tulia-commerce/convoapi/internal/store"
	"github.com/tulia-commerce/convoapi/internal/telephony"
	"github.com/tulia-commerce/convoapi/internal/tenantctx"
)

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.With().Str("service", "convoapi").Logger()

	if env("CONVOAPI_ENV", "") == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}

	cfg, err := config.LoadFromEnvironment()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()

	credentialKey, err := loadCredentialKey()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load credential encryption key")
	}
	credCodec := credcodec.New(credentialKey)

	tenants := store.NewTenantStore(pool)
	users := store.NewUserStore(pool)
	settings := store.NewSettingsStore(pool)
	conversations := store.NewConversationStore(pool)
	scheduling := store.NewSchedulingStore(pool)
	campaigns := store.NewCampaignStore(pool)
	orders := store.NewOrderStore(pool)
	references := store.NewReferenceStore(pool)
	contexts := store.NewConversationContextStore(pool)
	auditStore := store.NewAuditStore(pool)
	validationLog := store.NewValidationLogStore(pool)

	auditWriter := audit.New(auditStore, log.Logger)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := auditWriter.Stop(stopCtx); err != nil {
			log.Error().Err(err).Msg("audit writer drain timed out")
		}
	}()

	httpClient := client.New(env("CONVOAPI_EXTERNAL_BASE_URL", ""), "external", "", cfg.ExternalTimeout)

	webhookSecret := []byte(env("CONVOAPI_WEBHOOK_SECRET", "dev-webhook-secret-change-in-production"))
	inboundVerifier := telephony.NewSandboxInboundVerifier(webhookSecret, 5*time.Minute, log.Logger)
	sender := telephony.NewSandboxSender(httpClient, log.Logger)

	paymentProvider := payment.NewSandboxProvider(httpClient, webhookSecret, log.Logger)

	catalog := ecommerce.NewSandboxCatalog()
	knowledge := knowledgebase.NewSandboxKnowledgeBase()
	refs := refctx.New(references)

	checkoutMachine := checkout.New(orders, catalog, paymentProvider, paymentProvider, log.Logger)

	disp := dispatcher.New(conversations, scheduling, sender, log.Logger)

	router := llmrouter.New(buildProviderChain(log.Logger), llmrouter.Config{
		BreakerFailureRateThreshold: cfg.LLMRouter.BreakerFailureRateThreshold,
		BreakerWindow:               cfg.LLMRouter.BreakerWindow,
		BreakerCooldown:             cfg.LLMRouter.BreakerCooldown,
	}, log.Logger)

	validator := grounding.New(validationLog, log.Logger)

	orchestrator := agent.New(
		conversations, contexts, tenants, settings, refs, checkoutMachine,
		router, validator, disp, auditWriter, catalog, knowledge,
		cfg.Agent, log.Logger,
	)

	buffer := harmonizer.NewMemoryBuffer()
	harm := harmonizer.New(buffer, cfg.Harmonization.Window, orchestrator.HandleTurn, log.Logger)

	campaignEngine := campaign.New(campaigns, conversations, disp, log.Logger)

	var tokenValidator *tenantctx.TokenValidator
	if cfg.JWT.HS256Secret != "" || cfg.JWT.JWKSURL != "" {
		tokenValidator = tenantctx.NewTokenValidator(tenantctx.JWTConfig{
			HS256Secret: cfg.JWT.HS256Secret,
			Issuer:      cfg.JWT.Issuer,
			JWKSURL:     cfg.JWT.JWKSURL,
			Audience:    cfg.JWT.Audience,
		})
	}
	scopeCache := tenantctx.NewScopeCache()
	origins := httpapi.NewTenantOriginAllowlist(tenants, cfg.AllowedOrigins)

	srv := &httpapi.Server{
		Tenants:          tenants,
		Users:            users,
		Settings:         settings,
		Conversations:    conversations,
		Scheduling:       scheduling,
		CampaignReads:    campaigns,
		Campaigns:        campaignEngine,
		Checkout:         checkoutMachine,
		Dispatcher:       disp,
		Harmonizer:       harm,
		Agent:            orchestrator,
		PaymentVerify:    paymentProvider,
		InboundVerify:    inboundVerifier,
		CredentialCodec:  credCodec,
		TokenValidator:   tokenValidator,
		ScopeCache:       scopeCache,
		Origins:          origins,
		InboundDedup:     &singleflight.Group{},
		RateLimitConfig:  httpapi.DefaultRateLimitConfig,
		WebhookRateLimit: httpapi.DefaultWebhookRateLimit,
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.GracePeriod)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("server stopped")
}

// buildProviderChain assembles the LLM fallback chain: a large/small pair
// of real Anthropic models when ANTHROPIC_API_KEY is set, falling back to
// the deterministic sandbox provider for local development and CI.
func buildProviderChain(log zerolog.Logger) []llmrouter.Provider {
	apiKey := env("ANTHROPIC_API_KEY", "")
	if apiKey == "" {
		log.Warn().Msg("ANTHROPIC_API_KEY not set, falling back to sandbox LLM provider")
		return []llmrouter.Provider{llmrouter.NewSandboxProvider("sandbox", log)}
	}

	largeModel := env("CONVOAPI_ANTHROPIC_LARGE_MODEL", "claude-sonnet-4-5")
	smallModel := env("CONVOAPI_ANTHROPIC_SMALL_MODEL", "claude-3-5-haiku-latest")

	return []llmrouter.Provider{
		llmrouter.NewAnthropicProvider("anthropic_large", apiKey, largeModel, 1024),
		llmrouter.NewAnthropicProvider("anthropic_small", apiKey, smallModel, 512),
	}
}

// errCredentialKeyRequired is returned when CONVOAPI_CREDENTIAL_KEY is
// unset outside dev mode.
var errCredentialKeyRequired = errors.New("CONVOAPI_CREDENTIAL_KEY is required outside dev mode")

// loadCredentialKey reads the 32-byte tenant-credential encryption key
// from CONVOAPI_CREDENTIAL_KEY, base64-standard encoded. Dev mode falls
// back to a key derived from a fixed, clearly-labeled passphrase so a
// fresh checkout can boot without extra setup.
func loadCredentialKey() ([]byte, error) {
	encoded := env("CONVOAPI_CREDENTIAL_KEY", "")
	if encoded == "" {
		if env("CONVOAPI_ENV", "") == "dev" {
			sum := sha256.Sum256([]byte("dev-credential-key-change-in-production"))
			return sum[:], nil
		}
		return nil, errCredentialKeyRequired
	}
	return base64.StdEncoding.DecodeString(encoded)
}
