package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/tulia-commerce/convoapi/internal/domain"
	"github.com/tulia-commerce/convoapi/internal/tenantctx"
)

// settingsResponse is the API projection of domain.TenantSettings: every
// credential is masked, never round-tripped in cleartext.
type settingsResponse struct {
	StoreURL      string                     `json:"storeUrl"`
	FeatureFlags  domain.FeatureFlags        `json:"featureFlags"`
	Notifications domain.NotificationPreferences `json:"notifications"`
	Branding      domain.Branding            `json:"branding"`
	Credentials   map[string]string          `json:"credentials"`
}

func toSettingsResponse(s *domain.TenantSettings) settingsResponse {
	return settingsResponse{
		StoreURL:      s.StoreURL,
		FeatureFlags:  s.FeatureFlags,
		Notifications: s.Notifications,
		Branding:      s.Branding,
		Credentials: map[string]string{
			"telephony":       s.Credentials.Telephony.Masked(),
			"ecommerce":       s.Credentials.Ecommerce.Masked(),
			"paymentProvider": s.Credentials.PaymentProvider.Masked(),
			"webhookSecret":   s.Credentials.WebhookSecret.Masked(),
		},
	}
}

// GetSettings handles GET /v1/settings.
func (s *Server) GetSettings(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenantctx.TenantID(r.Context())
	settings, err := s.Settings.Get(r.Context(), tenantID)
	if err != nil {
		log.Error().Err(err).Msg("failed to load settings")
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, toSettingsResponse(settings))
}

// UpdateFeatureFlags handles PATCH /v1/settings/feature-flags.
func (s *Server) UpdateFeatureFlags(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenantctx.TenantID(r.Context())

	var flags domain.FeatureFlags
	if err := json.NewDecoder(r.Body).Decode(&flags); err != nil {
		writeError(w, r, http.StatusBadRequest, "malformed request body")
		return
	}

	if err := s.Settings.UpdateFeatureFlags(r.Context(), tenantID, flags); err != nil {
		log.Error().Err(err).Msg("failed to update feature flags")
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updateCredentialRequest struct {
	Value string `json:"value"`
}

// credentialSlots are the only slot names UpdateCredential accepts,
// matching domain.IntegrationCredentials' fixed (non-LLM-provider) fields.
var credentialSlots = map[string]bool{
	"telephony":       true,
	"ecommerce":       true,
	"paymentProvider": true,
	"webhookSecret":   true,
}

// UpdateCredential handles PUT /v1/settings/credentials/{slot}: the
// plaintext value is encrypted before it ever touches the store.
func (s *Server) UpdateCredential(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenantctx.TenantID(r.Context())
	slot := chi.URLParam(r, "slot")
	if !credentialSlots[slot] {
		writeError(w, r, http.StatusBadRequest, "unknown credential slot")
		return
	}

	var req updateCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Value == "" {
		writeError(w, r, http.StatusBadRequest, "malformed request body")
		return
	}

	ciphertext, err := s.CredentialCodec.Encrypt([]byte(req.Value))
	if err != nil {
		log.Error().Err(err).Msg("failed to encrypt credential")
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	if err := s.Settings.UpdateCredential(r.Context(), tenantID, slot, ciphertext); err != nil {
		log.Error().Err(err).Msg("failed to persist credential")
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
