package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tulia-commerce/convoapi/internal/dispatcher"
	"github.com/tulia-commerce/convoapi/internal/domain"
	"github.com/tulia-commerce/convoapi/internal/tenantctx"
)

// listConversationsResponse mirrors the {count, next, previous, results}
// envelope this API uses for every paginated listing.
type listConversationsResponse struct {
	Count   int                   `json:"count"`
	Next    string                `json:"next"`
	Results []domain.Conversation `json:"results"`
}

// ListConversations handles GET /v1/conversations?cursor=&limit=.
func (s *Server) ListConversations(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenantctx.TenantID(r.Context())
	limit := parseLimit(r.URL.Query().Get("limit"), 25, 100)
	cursor := r.URL.Query().Get("cursor")

	conversations, next, err := s.Conversations.ListByTenant(r.Context(), tenantID, cursor, limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to list conversations")
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, listConversationsResponse{
		Count:   len(conversations),
		Next:    next,
		Results: conversations,
	})
}

// GetConversationMessages handles GET /v1/conversations/{id}/messages?limit=.
func (s *Server) GetConversationMessages(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenantctx.TenantID(r.Context())
	conversationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid conversation id")
		return
	}
	limit := parseLimit(r.URL.Query().Get("limit"), 50, 200)

	messages, err := s.Conversations.ListRecentMessages(r.Context(), tenantID, conversationID, limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to list conversation messages")
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

type sendManualMessageRequest struct {
	Content string `json:"content"`
}

// SendManualMessage handles POST /v1/conversations/{id}/messages: a human
// operator sends a message through the same consent/rate-limit/quiet-hours
// contract every automated send goes through.
func (s *Server) SendManualMessage(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenantctx.TenantID(r.Context())
	conversationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid conversation id")
		return
	}

	var req sendManualMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
		writeError(w, r, http.StatusBadRequest, "content is required")
		return
	}

	conv, err := s.Conversations.GetByID(r.Context(), tenantID, conversationID)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "conversation not found")
		return
	}
	tenant, err := s.Tenants.GetByID(r.Context(), tenantID)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "tenant not found")
		return
	}
	customer, err := s.Conversations.GetCustomer(r.Context(), tenantID, conv.CustomerID)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "customer not found")
		return
	}

	result, err := s.Dispatcher.Send(r.Context(), tenant, customer, dispatcher.Request{
		TenantID:       tenantID,
		ConversationID: conversationID,
		CustomerID:     conv.CustomerID,
		ToPhone:        customer.PhoneE164,
		Type:           domain.MessageManualOutbound,
		Content:        req.Content,
	}, time.Now())
	if err != nil {
		log.Error().Err(err).Msg("manual send failed")
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CloseConversation handles POST /v1/conversations/{id}/close: ends any
// in-flight checkout session and marks the conversation closed.
func (s *Server) CloseConversation(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenantctx.TenantID(r.Context())
	conversationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid conversation id")
		return
	}

	if _, err := s.Checkout.Close(r.Context(), tenantID, conversationID); err != nil {
		log.Warn().Err(err).Msg("checkout close failed, continuing to close conversation")
	}
	if err := s.Conversations.UpdateStatus(r.Context(), tenantID, conversationID, domain.ConversationClosed); err != nil {
		log.Error().Err(err).Msg("failed to close conversation")
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
