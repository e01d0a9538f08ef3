package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tulia-commerce/convoapi/internal/domain"
	"github.com/tulia-commerce/convoapi/internal/tenantctx"
)

type targetingPayload struct {
	Tags                 []string `json:"tags"`
	PurchasedWithinHours *int     `json:"purchasedWithinHours"`
	ActiveWithinHours    *int     `json:"activeWithinHours"`
}

func (p targetingPayload) toDomain() domain.TargetingCriteria {
	var tc domain.TargetingCriteria
	tc.Tags = p.Tags
	if p.PurchasedWithinHours != nil {
		d := time.Duration(*p.PurchasedWithinHours) * time.Hour
		tc.PurchasedWithin = &d
	}
	if p.ActiveWithinHours != nil {
		d := time.Duration(*p.ActiveWithinHours) * time.Hour
		tc.ActiveWithin = &d
	}
	return tc
}

type createCampaignRequest struct {
	Name               string           `json:"name"`
	Targeting          targetingPayload `json:"targeting"`
	VariantTemplateIDs []uuid.UUID      `json:"variantTemplateIds"`
	ScheduledAt        *string          `json:"scheduledAt"`
}

// CreateCampaign handles POST /v1/campaigns: validates variant count
// against the tenant's subscription tier and persists a draft campaign.
func (s *Server) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenantctx.TenantID(r.Context())
	tenant, err := s.Tenants.GetByID(r.Context(), tenantID)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "tenant not found")
		return
	}

	var req createCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "malformed request body")
		return
	}

	var scheduledAt *time.Time
	if req.ScheduledAt != nil {
		parsed, err := time.Parse(time.RFC3339, *req.ScheduledAt)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid scheduledAt")
			return
		}
		scheduledAt = &parsed
	}

	campaign, err := s.Campaigns.Create(r.Context(), tenant, req.Name, req.Targeting.toDomain(), req.VariantTemplateIDs, scheduledAt)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, campaign)
}

// GetCampaign handles GET /v1/campaigns/{id}.
func (s *Server) GetCampaign(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenantctx.TenantID(r.Context())
	campaignID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid campaign id")
		return
	}

	campaign, err := s.CampaignReads.Get(r.Context(), tenantID, campaignID)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "campaign not found")
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

// LaunchCampaign handles POST /v1/campaigns/{id}/launch: shuffles and
// dispatches to the matched audience immediately.
func (s *Server) LaunchCampaign(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenantctx.TenantID(r.Context())
	tenant, err := s.Tenants.GetByID(r.Context(), tenantID)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "tenant not found")
		return
	}
	campaignID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid campaign id")
		return
	}

	summary, err := s.Campaigns.Execute(r.Context(), tenant, campaignID)
	if err != nil {
		log.Error().Err(err).Str("campaignId", campaignID.String()).Msg("campaign execution failed")
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type createTemplateRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// CreateTemplate handles POST /v1/templates.
func (s *Server) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenantctx.TenantID(r.Context())

	var req createTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Name == "" || req.Content == "" {
		writeError(w, r, http.StatusBadRequest, "name and content are required")
		return
	}

	tmpl, err := s.Scheduling.CreateTemplate(r.Context(), domain.MessageTemplate{
		ID:       uuid.New(),
		TenantID: tenantID,
		Name:     req.Name,
		Content:  req.Content,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to create template")
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, tmpl)
}

// ListTemplates handles GET /v1/templates.
func (s *Server) ListTemplates(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenantctx.TenantID(r.Context())
	templates, err := s.Scheduling.ListTemplates(r.Context(), tenantID)
	if err != nil {
		log.Error().Err(err).Msg("failed to list templates")
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, templates)
}
