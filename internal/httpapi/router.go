package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/tulia-commerce/convoapi/internal/agent"
	"github.com/tulia-commerce/convoapi/internal/campaign"
	"github.com/tulia-commerce/convoapi/internal/checkout"
	"github.com/tulia-commerce/convoapi/internal/credcodec"
	"github.com/tulia-commerce/convoapi/internal/dispatcher"
	"github.com/tulia-commerce/convoapi/internal/domain"
	"github.com/tulia-commerce/convoapi/internal/harmonizer"
	"github.com/tulia-commerce/convoapi/internal/payment"
	"github.com/tulia-commerce/convoapi/internal/store"
	"github.com/tulia-commerce/convoapi/internal/telephony"
	"github.com/tulia-commerce/convoapi/internal/tenantctx"
)

// Server holds every dependency the HTTP surface dispatches into.
type Server struct {
	Tenants       *store.TenantStore
	Users         *store.UserStore
	Settings      *store.SettingsStore
	Conversations *store.ConversationStore
	Scheduling    *store.SchedulingStore
	CampaignReads *store.CampaignStore
	Campaigns     *campaign.Engine
	Checkout      *checkout.Machine
	Dispatcher    *dispatcher.Dispatcher
	Harmonizer    *harmonizer.Harmonizer
	Agent         *agent.Orchestrator
	PaymentVerify   payment.CallbackVerifier
	InboundVerify   telephony.InboundVerifier
	CredentialCodec *credcodec.Codec

	// InboundDedup collapses concurrent retried deliveries of the same
	// provider webhook (inbound message or payment callback) into one
	// in-flight processing run.
	InboundDedup *singleflight.Group

	TokenValidator *tenantctx.TokenValidator
	ScopeCache     *tenantctx.ScopeCache
	Origins        *TenantOriginAllowlist

	RateLimitConfig  RateLimitInfo
	WebhookRateLimit RateLimitInfo
}

// DefaultRateLimitConfig is the per-tenant rate limit applied to
// authenticated management endpoints.
var DefaultRateLimitConfig = RateLimitInfo{
	WindowSeconds: 60,
	MaxRequests:   600,
	Burst:         120,
}

// DefaultWebhookRateLimit is the separate, higher per-tenant limit for
// inbound provider webhooks: they are rate-limited per tenant too, since an
// abusive or misconfigured provider integration shouldn't be able to flood
// the harmonizer.
var DefaultWebhookRateLimit = RateLimitInfo{
	WindowSeconds: 60,
	MaxRequests:   1200,
	Burst:         200,
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode json response")
	}
}

type errorResponse struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlationId"`
}

// writeError writes an error response carrying the request's correlation id.
func writeError(w http.ResponseWriter, r *http.Request, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(errorResponse{
		Error:         message,
		CorrelationID: GetCorrelationID(r.Context()),
	})
}

func parseLimit(q string, def, max int) int {
	if q == "" {
		return def
	}
	n, err := strconv.Atoi(q)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// Routes builds the full HTTP router: unauthenticated health/metrics and
// provider webhooks, then tenant-API-key-scoped management endpoints with
// an optional operator JWT layered on top for RBAC-gated routes.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(CorrelationMiddleware)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if s.Origins != nil {
		r.Use(CORSMiddleware(s.Origins))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/v1/info", s.Info)

	// Provider webhooks authenticate via a shared-secret signature, not a
	// tenant API key: the provider doesn't hold one.
	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(s.WebhookRateLimit, webhookRateLimitKey))
		r.Post("/v1/webhooks/twilio/{tenantSlug}", s.InboundMessage)
		r.Post("/v1/webhooks/payments/{tenantSlug}", s.PaymentCallback)
	})

	r.Group(func(r chi.Router) {
		r.Use(tenantctx.APIKeyMiddleware(s.Tenants))
		r.Use(RateLimitMiddleware(s.RateLimitConfig, tenantRateLimitKey))

		if s.TokenValidator != nil {
			r.Use(tenantctx.JWTMiddleware(s.TokenValidator, s.Users, s.ScopeCache))
		}

		r.Group(func(r chi.Router) {
			r.Use(tenantctx.RequireScope(domain.ScopeConversationsView))
			r.Get("/v1/conversations", s.ListConversations)
			r.Get("/v1/conversations/{id}/messages", s.GetConversationMessages)
		})
		r.Group(func(r chi.Router) {
			r.Use(tenantctx.RequireScope(domain.ScopeHandoffPerform))
			r.Post("/v1/conversations/{id}/messages", s.SendManualMessage)
			r.Post("/v1/conversations/{id}/close", s.CloseConversation)
		})

		r.Group(func(r chi.Router) {
			r.Use(tenantctx.RequireScope(domain.ScopeAnalyticsView))
			r.Get("/v1/campaigns/{id}", s.GetCampaign)
		})
		r.Group(func(r chi.Router) {
			r.Use(tenantctx.RequireScope(domain.ScopeOrdersEdit))
			r.Post("/v1/campaigns", s.CreateCampaign)
			r.Post("/v1/campaigns/{id}/launch", s.LaunchCampaign)
			r.Post("/v1/templates", s.CreateTemplate)
			r.Get("/v1/templates", s.ListTemplates)
		})

		r.Group(func(r chi.Router) {
			r.Use(tenantctx.RequireScope(domain.ScopeIntegrationsManage))
			r.Get("/v1/settings", s.GetSettings)
			r.Patch("/v1/settings/feature-flags", s.UpdateFeatureFlags)
			r.Put("/v1/settings/credentials/{slot}", s.UpdateCredential)
		})
	})

	log.Info().Msg("http routes registered")
	return r
}
