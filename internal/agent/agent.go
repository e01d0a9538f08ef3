// Package agent implements the turn orchestrator: the single place a
// harmonized batch of inbound messages becomes one customer-facing reply,
// tying together language resolution, context assembly, reference
// resolution, intent inference, checkout transitions, LLM completion,
// grounding, handoff, and dispatch.
package agent

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tulia-commerce/convoapi/internal/agent/tools"
	"github.com/tulia-commerce/convoapi/internal/audit"
	"github.com/tulia-commerce/convoapi/internal/checkout"
	"github.com/tulia-commerce/convoapi/internal/config"
	"github.com/tulia-commerce/convoapi/internal/dispatcher"
	"github.com/tulia-commerce/convoapi/internal/domain"
	"github.com/tulia-commerce/convoapi/internal/ecommerce"
	"github.com/tulia-commerce/convoapi/internal/grounding"
	"github.com/tulia-commerce/convoapi/internal/harmonizer"
	"github.com/tulia-commerce/convoapi/internal/knowledgebase"
	"github.com/tulia-commerce/convoapi/internal/llmrouter"
	"github.com/tulia-commerce/convoapi/internal/metrics"
	"github.com/tulia-commerce/convoapi/internal/refctx"
	"github.com/tulia-commerce/convoapi/internal/store"
)

// defaultPaymentProvider is the label passed to checkout.Machine's payment
// initiation step. IntegrationCredentials.PaymentProvider only carries an
// opaque encrypted credential, never a provider name, and only one
// PaymentInitiator implementation exists, so there is nothing tenant
// configuration could select between yet; this stays a literal until a
// second provider is onboarded.
const defaultPaymentProvider = "default"

// Orchestrator turns one harmonized batch of inbound messages into a
// dispatched reply. It is wired as a harmonizer.DrainFunc: the
// harmonizer's own per-conversation lock already serializes calls for a
// given conversation, so HandleTurn needs no locking of its own.
type Orchestrator struct {
	conversations *store.ConversationStore
	contexts      *store.ConversationContextStore
	tenants       *store.TenantStore
	settings      *store.SettingsStore
	references    *refctx.Manager
	checkoutM     *checkout.Machine
	router        *llmrouter.Router
	validator     *grounding.Validator
	dispatcher    *dispatcher.Dispatcher
	audit         *audit.Writer
	tools         *tools.Registry
	catalog       *ecommerce.SandboxCatalog
	knowledge     *knowledgebase.SandboxKnowledgeBase
	cfg           config.AgentConfig
	log           zerolog.Logger
}

// New builds an Orchestrator and registers the standard tool set against
// its own registry.
func New(
	conversations *store.ConversationStore,
	contexts *store.ConversationContextStore,
	tenants *store.TenantStore,
	settings *store.SettingsStore,
	references *refctx.Manager,
	checkoutM *checkout.Machine,
	router *llmrouter.Router,
	validator *grounding.Validator,
	disp *dispatcher.Dispatcher,
	auditWriter *audit.Writer,
	catalog *ecommerce.SandboxCatalog,
	knowledge *knowledgebase.SandboxKnowledgeBase,
	cfg config.AgentConfig,
	log zerolog.Logger,
) *Orchestrator {
	registry := tools.NewRegistry()
	tools.RegisterAll(registry)

	return &Orchestrator{
		conversations: conversations,
		contexts:      contexts,
		tenants:       tenants,
		settings:      settings,
		references:    references,
		checkoutM:     checkoutM,
		router:        router,
		validator:     validator,
		dispatcher:    disp,
		audit:         auditWriter,
		tools:         registry,
		catalog:       catalog,
		knowledge:     knowledge,
		cfg:           cfg,
		log:           log,
	}
}

// HandleTurn is a harmonizer.DrainFunc: it receives one conversation's
// harmonized inbound batch and carries it through every step from
// language resolution to dispatch. It never returns an error — there is no
// caller left to hand one to by the time the harmonizer invokes it — so
// every failure is logged and, where the customer would otherwise be left
// hanging, turned into a handoff.
func (o *Orchestrator) HandleTurn(ctx context.Context, conversationID uuid.UUID, messages []harmonizer.BufferedMessage) {
	start := time.Now()
	log := o.log.With().Str("conversationId", conversationID.String()).Logger()

	if len(messages) == 0 {
		return
	}
	input := harmonizer.CombinedContent(messages)

	// Step 1 is satisfied by the harmonizer's own per-conversation lock,
	// already held for the duration of this call.
	conv, err := o.conversations.GetByConversationID(ctx, conversationID)
	if err != nil {
		log.Error().Err(err).Msg("agent: failed to load conversation")
		return
	}

	tenant, err := o.tenants.GetByID(ctx, conv.TenantID)
	if err != nil {
		log.Error().Err(err).Msg("agent: failed to load tenant")
		return
	}
	tenantSettings, err := o.settings.Get(ctx, conv.TenantID)
	if err != nil {
		log.Error().Err(err).Msg("agent: failed to load tenant settings")
		return
	}
	customer, err := o.conversations.GetCustomer(ctx, conv.TenantID, conv.CustomerID)
	if err != nil {
		log.Error().Err(err).Msg("agent: failed to load customer")
		return
	}

	cc, err := o.contexts.GetOrCreate(ctx, conversationID)
	if err != nil {
		log.Error().Err(err).Msg("agent: failed to load conversation context")
		return
	}

	// Step 2: language detection/lock.
	language, lockChanged := resolveLanguage(cc.LockedLanguage, input)
	if lockChanged {
		cc.LockedLanguage = language
	}

	toolCtx := &tools.ToolContext{
		Logger:         &log,
		TenantID:       conv.TenantID,
		ConversationID: conversationID,
		Catalog:        o.catalog,
		Knowledge:      o.knowledge,
		Orders:         &checkoutOrderAdapter{machine: o.checkoutM},
		References:     &referenceResolverAdapter{manager: o.references, now: start},
	}

	// Step 3: context pack assembly. No SemanticRetriever ships with this
	// platform, so retrieval always runs through the registered tools.
	pack, err := o.buildContextPack(ctx, toolCtx, conv, cc, input, o.cfg.ContextWindowMessages, nil, log)
	if err != nil {
		log.Error().Err(err).Msg("agent: failed to assemble context pack")
		o.recordHandoff(ctx, conv.TenantID, conversationID, handoffChainExhausted, log)
		return
	}

	// Step 4: reference resolution, best-effort; a miss just leaves the
	// phrase for the LLM to interpret directly.
	var resolvedRef *domain.ReferenceItem
	if refResult, err := o.references.Resolve(ctx, conversationID, input, start); err == nil && refResult.Outcome == refctx.OutcomeResolved {
		resolvedRef = refResult.Item
	}

	// Step 5: intent inference.
	decision := inferIntent(input, cc.CheckoutState == domain.CheckoutProductSelected)

	var (
		replyText  string
		confidence = 1.0
		tokensUsed int
		provider   string
	)

	switch decision {
	case HandlerSelect, HandlerQuantity, HandlerPay:
		replyText, err = o.handleCheckoutTurn(ctx, conv, cc, decision, input, resolvedRef, log)
		if err != nil {
			log.Warn().Err(err).Str("handler", string(decision)).Msg("agent: checkout transition failed, falling back to conversational handler")
			decision = HandlerAskGeneric
		}
	}

	if decision == HandlerBrowse || decision == HandlerAskGeneric || replyText == "" {
		req := buildCompletionRequest(tenantSettings.Branding, pack, language, input)
		resp, p, err := o.router.Complete(ctx, req)
		if err != nil {
			log.Warn().Err(err).Msg("agent: llm chain exhausted")
			o.recordHandoff(ctx, conv.TenantID, conversationID, handoffChainExhausted, log)
			o.sendFallback(ctx, tenant, customer, conv, cc, log)
			return
		}
		confidence = resp.Confidence
		tokensUsed = resp.TokensUsed
		provider = p

		// Step 7: grounding validation. Facts come from the catalog matches
		// already surfaced in the context pack.
		facts := factsFromCatalog(pack.CatalogMatches)
		replyText = o.validator.Validate(ctx, conv.TenantID, conversationID, resp.Text, input, facts)
	}

	metrics.AgentTokensUsedTotal.Add(float64(tokensUsed))
	metrics.AgentTurnsTotal.WithLabelValues(string(decision)).Inc()

	// Step 8: handoff check.
	if trigger, reason, streak := shouldHandoff(confidence, cc.LowConfidenceTurns, o.cfg.MaxLowConfidenceTurns, o.cfg.ConfidenceThreshold); trigger {
		cc.LowConfidenceTurns = streak
		o.recordHandoff(ctx, conv.TenantID, conversationID, reason, log)
		if reason == handoffRepeatedLowConf {
			o.sendFallback(ctx, tenant, customer, conv, cc, log)
			o.persistTurn(ctx, cc, input, handoffFallbackMessage, log)
			o.auditTurn(ctx, conv.TenantID, conversationID, decision, provider, start)
			return
		}
	} else {
		cc.LowConfidenceTurns = 0
	}

	// Step 9: dispatch + reference registration.
	if len(pack.CatalogMatches) > 0 && decision == HandlerBrowse {
		if err := o.references.Register(ctx, conversationID, domain.ReferenceListProducts, pack.CatalogMatches, start); err != nil {
			log.Warn().Err(err).Msg("agent: failed to register reference list")
		}
	}

	result, err := o.dispatcher.Send(ctx, tenant, customer, dispatcher.Request{
		TenantID:       conv.TenantID,
		ConversationID: conversationID,
		CustomerID:     customer.ID,
		ToPhone:        customer.PhoneE164,
		Type:           domain.MessageAutomatedTransactional,
		Content:        replyText,
	}, start)
	if err != nil {
		log.Error().Err(err).Msg("agent: dispatch failed")
	} else if result.Outcome != dispatcher.OutcomeSent {
		log.Warn().Str("outcome", string(result.Outcome)).Str("reason", result.FailureReason).Msg("agent: reply not sent")
	}

	// Step 10: turn persistence.
	o.persistTurn(ctx, cc, input, replyText, log)
	o.auditTurn(ctx, conv.TenantID, conversationID, decision, provider, start)
}

// handleCheckoutTurn drives the checkout.Machine transition a select,
// quantity, or pay decision implies and composes the confirmation text
// itself: these replies state only facts the machine just confirmed, so
// they skip the grounding validator entirely.
func (o *Orchestrator) handleCheckoutTurn(ctx context.Context, conv *domain.Conversation, cc *domain.ConversationContext, decision HandlerDecision, input string, ref *domain.ReferenceItem, log zerolog.Logger) (string, error) {
	switch decision {
	case HandlerSelect:
		if ref == nil {
			return "", errReferenceNotResolved
		}
		cs, err := o.checkoutM.SelectProduct(ctx, conv.TenantID, conv.ID, ref.EntityID)
		if err != nil {
			return "", err
		}
		cc.CheckoutState = cs.State
		cc.SelectedVariantID = &ref.EntityID
		return "Got it — " + ref.Label + ". How many would you like?", nil

	case HandlerQuantity:
		qty, ok := parseQuantity(input)
		if !ok {
			return "", errReferenceNotResolved
		}
		cs, err := o.checkoutM.ConfirmQuantity(ctx, conv.TenantID, conv.ID, qty)
		if err != nil {
			return "", err
		}
		cc.CheckoutState = cs.State
		cc.SelectedQuantity = qty
		return "Confirmed. Ready to place the order when you are — just say \"pay\".", nil

	case HandlerPay:
		if _, _, err := o.checkoutM.CreateOrder(ctx, conv.TenantID, conv.ID, conv.CustomerID); err != nil {
			return "", err
		}
		cs, err := o.checkoutM.InitiatePayment(ctx, conv.TenantID, conv.ID, defaultPaymentProvider)
		if err != nil {
			return "", err
		}
		cc.CheckoutState = cs.State
		return "Your order is placed — I've sent a payment link, just tap it to finish up.", nil
	}
	return "", errReferenceNotResolved
}

func (o *Orchestrator) sendFallback(ctx context.Context, tenant *domain.Tenant, customer *domain.Customer, conv *domain.Conversation, cc *domain.ConversationContext, log zerolog.Logger) {
	_, err := o.dispatcher.Send(ctx, tenant, customer, dispatcher.Request{
		TenantID:       conv.TenantID,
		ConversationID: conv.ID,
		CustomerID:     customer.ID,
		ToPhone:        customer.PhoneE164,
		Type:           domain.MessageFallback,
		Content:        handoffFallbackMessage,
	}, time.Now())
	if err != nil {
		log.Error().Err(err).Msg("agent: failed to send handoff fallback message")
	}
}

func (o *Orchestrator) persistTurn(ctx context.Context, cc *domain.ConversationContext, customerInput, botReply string, log zerolog.Logger) {
	cc.LastCustomerMessage = customerInput
	cc.LastBotMessage = botReply
	cc.UpdatedAt = time.Now()
	if err := o.contexts.Save(ctx, cc); err != nil {
		log.Error().Err(err).Msg("agent: failed to persist conversation context")
	}
}

func (o *Orchestrator) auditTurn(ctx context.Context, tenantID, conversationID uuid.UUID, decision HandlerDecision, provider string, start time.Time) {
	metrics.AgentTurnDuration.Observe(time.Since(start).Seconds())
	o.audit.Write(domain.AuditLog{
		ID:         uuid.New(),
		TenantID:   tenantID,
		Action:     "agent.turn",
		TargetType: "conversation",
		TargetID:   conversationID.String(),
		After: map[string]any{
			"handler":  string(decision),
			"provider": provider,
		},
	})
}

func factsFromCatalog(items []domain.ReferenceItem) []grounding.Fact {
	facts := make([]grounding.Fact, 0, len(items)*2)
	for _, item := range items {
		// Fact values use the same form as extracted claims: a price without
		// its "$", and availability as the lowercase phrases a reply may use.
		if price, ok := item.Attributes["price"]; ok && price != "" {
			facts = append(facts, grounding.Fact{Kind: grounding.ClaimPrice, Value: strings.TrimPrefix(price, "$")})
		}
		if avail, ok := item.Attributes["available"]; ok && avail != "" {
			phrases := []string{"out of stock", "unavailable", "sold out"}
			if avail == "true" {
				phrases = []string{"in stock", "available"}
			}
			for _, p := range phrases {
				facts = append(facts, grounding.Fact{Kind: grounding.ClaimAvailability, Value: p})
			}
		}
	}
	return facts
}

func parseQuantity(input string) (int, bool) {
	n := 0
	found := false
	for _, r := range input {
		if r < '0' || r > '9' {
			if found {
				break
			}
			continue
		}
		found = true
		n = n*10 + int(r-'0')
	}
	return n, found
}
