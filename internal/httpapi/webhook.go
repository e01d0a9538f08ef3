package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tulia-commerce/convoapi/internal/harmonizer"
)

// twilioInboundPayload mirrors the shape of an inbound WhatsApp webhook:
// a provider message id, the sender's phone number, and the text body.
// Real deployments swap the field names for whatever the telephony
// provider actually posts; the harmonizer and agent only ever see the
// normalized BufferedMessage built from it below.
type twilioInboundPayload struct {
	MessageSid string `json:"MessageSid"`
	From       string `json:"From"`
	Body       string `json:"Body"`
}

// InboundMessage handles an inbound provider webhook: resolve the tenant
// by URL slug, verify the provider signature, get-or-create the
// customer/conversation, persist the inbound message, and hand it to the
// harmonizer for buffering into one agent turn.
func (s *Server) InboundMessage(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "tenantSlug")
	tenant, err := s.Tenants.GetBySlug(r.Context(), slug)
	if err != nil || tenant == nil {
		writeError(w, r, http.StatusNotFound, "unknown tenant")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "could not read request body")
		return
	}

	timestampMs := r.Header.Get("X-Webhook-Timestamp")
	signature := r.Header.Get("X-Webhook-Signature")
	if s.InboundVerify != nil && !s.InboundVerify.VerifyInbound(slug, timestampMs, signature) {
		log.Warn().Str("tenantSlug", slug).Msg("dropping inbound webhook: signature did not verify")
		writeError(w, r, http.StatusUnauthorized, "invalid signature")
		return
	}

	var payload twilioInboundPayload
	if err := json.Unmarshal(body, &payload); err != nil || payload.From == "" {
		writeError(w, r, http.StatusBadRequest, "malformed payload")
		return
	}

	ctx := r.Context()

	// Providers retry a webhook delivery that times out, so the same
	// provider message id can arrive concurrently more than once. Collapse
	// those into a single in-flight processing run, ahead of (and cheaper
	// than) the harmonizer's own per-conversation lock.
	process := func() (interface{}, error) {
		return nil, s.processInboundMessage(ctx, tenant.ID, payload)
	}
	if payload.MessageSid != "" && s.InboundDedup != nil {
		_, err, _ = s.InboundDedup.Do(tenant.ID.String()+":"+payload.MessageSid, process)
	} else {
		_, err = process()
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to process inbound message")
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// processInboundMessage resolves the customer/conversation, persists the
// inbound message, and hands it to the harmonizer. Pulled out of
// InboundMessage so it can run behind the singleflight dedup key without
// duplicating the success path.
func (s *Server) processInboundMessage(ctx context.Context, tenantID uuid.UUID, payload twilioInboundPayload) error {
	customer, err := s.Conversations.GetOrCreateCustomer(ctx, tenantID, payload.From)
	if err != nil {
		return err
	}
	conv, err := s.Conversations.GetOrCreateOpenConversation(ctx, tenantID, customer.ID)
	if err != nil {
		return err
	}

	now := time.Now()
	msg, err := s.Conversations.RecordInbound(ctx, conv, payload.Body, payload.MessageSid, now)
	if err != nil {
		return err
	}

	buffered := harmonizer.BufferedMessage{
		MessageID:         msg.ID,
		ProviderMessageID: payload.MessageSid,
		Content:           payload.Body,
		ArrivedAt:         now,
	}
	if err := s.Harmonizer.Handle(ctx, conv.ID, buffered, false); err != nil {
		log.Error().Err(err).Msg("harmonizer rejected inbound message")
	}
	return nil
}

// paymentCallbackPayload is the body a payment provider posts back after
// attempting to collect funds for one checkout session.
type paymentCallbackPayload struct {
	ConversationID   uuid.UUID `json:"conversationId"`
	PaymentRequestID uuid.UUID `json:"paymentRequestId"`
	Succeeded        bool      `json:"succeeded"`
	ProviderRef      string    `json:"providerRef"`
}

// PaymentCallback handles an inbound payment-provider webhook and applies
// it through checkout.Machine, which re-verifies the signature itself
// before touching any state.
func (s *Server) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "tenantSlug")
	tenant, err := s.Tenants.GetBySlug(r.Context(), slug)
	if err != nil || tenant == nil {
		writeError(w, r, http.StatusNotFound, "unknown tenant")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "could not read request body")
		return
	}
	signature := r.Header.Get("X-Webhook-Signature")

	var payload paymentCallbackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, r, http.StatusBadRequest, "malformed payload")
		return
	}

	// Same retry-collapse rationale as InboundMessage: a payment provider
	// can redeliver the same callback while the first delivery is still
	// being applied.
	dedupKey := tenant.ID.String() + ":" + payload.PaymentRequestID.String()
	process := func() (interface{}, error) {
		return s.Checkout.HandlePaymentCallback(r.Context(), tenant.ID, payload.ConversationID, payload.PaymentRequestID, body, signature, payload.Succeeded, payload.ProviderRef)
	}
	if s.InboundDedup != nil {
		_, err = s.InboundDedup.Do(dedupKey, process)
	} else {
		_, err = process()
	}
	if err != nil {
		log.Warn().Err(err).Str("tenantSlug", slug).Msg("payment callback rejected")
		writeError(w, r, http.StatusUnprocessableEntity, "callback rejected")
		return
	}

	w.WriteHeader(http.StatusOK)
}
