package agent

import (
	"fmt"
	"strings"

	"github.com/tulia-commerce/convoapi/internal/domain"
	"github.com/tulia-commerce/convoapi/internal/llmrouter"
)

// buildSystemPrompt composes the system prompt the LLM router sends for a
// non-checkout turn: the tenant's branded persona, the explicit
// capability allow/deny list, and the assembled context pack.
func buildSystemPrompt(branding domain.Branding, pack ContextPack, language string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are the WhatsApp shopping assistant for %s.\n", nonEmpty(branding.BusinessName, "this business"))
	fmt.Fprintf(&b, "Reply in language code %q, matching the customer.\n", language)

	if len(branding.AllowedCapabilities) > 0 {
		fmt.Fprintf(&b, "You may help with: %s.\n", strings.Join(branding.AllowedCapabilities, ", "))
	}
	if len(branding.DisallowedCapabilities) > 0 {
		fmt.Fprintf(&b, "You must never: %s.\n", strings.Join(branding.DisallowedCapabilities, ", "))
	}

	b.WriteString("Only state a price or availability figure if it appears below; otherwise say you'll check.\n")
	b.WriteString("Keep replies short: at most a few sentences, at most 5 list items.\n")

	if pack.PriorSessionSummary != "" {
		fmt.Fprintf(&b, "\nConversation history: %s\n", pack.PriorSessionSummary)
	}

	if len(pack.CatalogMatches) > 0 {
		b.WriteString("\nMatching catalog items:\n")
		for _, item := range pack.CatalogMatches {
			fmt.Fprintf(&b, "- %s (price: %s, available: %s)\n", item.Label, item.Attributes["price"], item.Attributes["available"])
		}
	}
	if pack.RetrievalDegraded {
		b.WriteString("(catalog retrieval fell back to keyword search this turn)\n")
	}

	if len(pack.KnowledgePassages) > 0 {
		b.WriteString("\nRelevant policy/FAQ content:\n")
		for _, p := range pack.KnowledgePassages {
			fmt.Fprintf(&b, "- %s: %s\n", p.Title, p.Text)
		}
	}

	return b.String()
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// complexityScore estimates how much context a turn carries: more retrieved
// context and a longer recent-message window both raise the estimate. It is
// carried on CompletionRequest.ComplexityScore; llmrouter.Router does not
// read it and walks the same chain for every turn.
func complexityScore(pack ContextPack) float64 {
	score := 0.1 * float64(len(pack.RecentMessages))
	score += 0.15 * float64(len(pack.CatalogMatches))
	score += 0.15 * float64(len(pack.KnowledgePassages))
	if score > 1 {
		return 1
	}
	return score
}

func buildCompletionRequest(branding domain.Branding, pack ContextPack, language, input string) llmrouter.CompletionRequest {
	return llmrouter.CompletionRequest{
		SystemPrompt:    buildSystemPrompt(branding, pack, language),
		UserContent:     input,
		ComplexityScore: complexityScore(pack),
	}
}
