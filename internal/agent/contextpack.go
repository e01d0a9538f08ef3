package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tulia-commerce/convoapi/internal/agent/tools"
	"github.com/tulia-commerce/convoapi/internal/domain"
)

// ContextPack is the assembled input to one turn's intent inference and LLM
// prompt: the conversation's most recent messages, a prior-session summary,
// and catalog/knowledge retrieval for the input.
type ContextPack struct {
	RecentMessages      []domain.Message
	PriorSessionSummary string
	CatalogMatches      []domain.ReferenceItem
	KnowledgePassages   []tools.KnowledgePassage
	RetrievalDegraded   bool // a configured semantic retriever failed and we fell back to fuzzy search
}

// SemanticRetriever is the optional vector-index collaborator a turn may
// consult before falling back to keyword/fuzzy search. No concrete
// implementation ships with this platform — no
// vector-index library appears anywhere in the corpus it's built from — so
// this stays an interface seam a tenant-specific deployment can satisfy;
// with a nil SemanticRetriever buildContextPack goes straight to fuzzy
// retrieval, the same path a failing one falls through to, but without
// marking the pack RetrievalDegraded.
type SemanticRetriever interface {
	SearchSemantic(ctx context.Context, tenantID uuid.UUID, query string, limit int) ([]domain.ReferenceItem, error)
}

const (
	catalogRetrievalLimit   = 5
	knowledgeRetrievalLimit = 3
)

// buildContextPack assembles one turn's context pack: the conversation's
// most recent messages of any session (bounded by windowSize), a prior-session
// summary, and catalog/knowledge retrieval for the input. Retrieval always
// runs through the registered catalog_search/knowledge_search tools so the
// orchestrator and any future LLM-driven tool call share one retrieval
// path; semantic retrieval failure is absorbed here, never surfaced as a
// turn failure.
func (o *Orchestrator) buildContextPack(ctx context.Context, tc *tools.ToolContext, conv *domain.Conversation, cc *domain.ConversationContext, input string, windowSize int, semantic SemanticRetriever, log zerolog.Logger) (ContextPack, error) {
	var pack ContextPack

	messages, err := o.conversations.ListRecentMessages(ctx, conv.TenantID, conv.ID, windowSize)
	if err != nil {
		return ContextPack{}, err
	}
	pack.RecentMessages = messages

	priorCount, err := o.conversations.CountMessagesBeforeSession(ctx, conv.TenantID, conv.ID, conv.CurrentSessionStart)
	if err != nil {
		return ContextPack{}, err
	}
	pack.PriorSessionSummary = summarizePriorSessions(priorCount, cc)

	if semantic != nil {
		items, err := semantic.SearchSemantic(ctx, conv.TenantID, input, catalogRetrievalLimit)
		if err != nil {
			pack.RetrievalDegraded = true
			log.Warn().Err(err).Str("conversationId", conv.ID.String()).Msg("semantic retrieval failed, falling back to keyword search")
		} else {
			pack.CatalogMatches = items
		}
	}

	if pack.CatalogMatches == nil {
		items, err := o.tools.Call(ctx, tc, tools.CallRequest{Name: "catalog_search", Arguments: mustJSON(map[string]any{"query": input, "limit": catalogRetrievalLimit})})
		if err != nil {
			return ContextPack{}, err
		}
		pack.CatalogMatches = extractReferenceItems(items)
	}

	passages, err := o.tools.Call(ctx, tc, tools.CallRequest{Name: "knowledge_search", Arguments: mustJSON(map[string]any{"query": input, "limit": knowledgeRetrievalLimit})})
	if err != nil {
		return ContextPack{}, err
	}
	pack.KnowledgePassages = extractKnowledgePassages(passages)

	return pack, nil
}

// summarizePriorSessions produces a short rollup of everything before the
// conversation's current session, without a separate LLM summarization
// pass on every turn: the persistence model keeps no standalone
// session-summary text, only the last customer/bot exchange and a count of
// earlier messages, so the summary is built from those (see DESIGN.md).
func summarizePriorSessions(priorMessageCount int, cc *domain.ConversationContext) string {
	if priorMessageCount == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d prior message(s) across earlier sessions.", priorMessageCount)
	if cc.LastCustomerMessage != "" {
		fmt.Fprintf(&b, " Customer last said: %q.", truncate(cc.LastCustomerMessage, 200))
	}
	if cc.LastBotMessage != "" {
		fmt.Fprintf(&b, " We last replied: %q.", truncate(cc.LastBotMessage, 200))
	}
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func mustJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		// Every caller passes a literal map of strings/ints; a marshal
		// failure here means a programming error, not a runtime condition.
		panic("agent: failed to marshal tool arguments: " + err.Error())
	}
	return raw
}

func extractReferenceItems(result any) []domain.ReferenceItem {
	cr, ok := result.(tools.CallResult)
	if !ok || len(cr.Content) == 0 {
		return nil
	}
	var body struct {
		Items []domain.ReferenceItem `json:"items"`
	}
	if err := json.Unmarshal([]byte(cr.Content[0].Text), &body); err != nil {
		return nil
	}
	return body.Items
}

func extractKnowledgePassages(result any) []tools.KnowledgePassage {
	cr, ok := result.(tools.CallResult)
	if !ok || len(cr.Content) == 0 {
		return nil
	}
	var body struct {
		Passages []tools.KnowledgePassage `json:"passages"`
	}
	if err := json.Unmarshal([]byte(cr.Content[0].Text), &body); err != nil {
		return nil
	}
	return body.Passages
}
