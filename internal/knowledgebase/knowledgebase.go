// Package knowledgebase defines the narrow policy/FAQ retrieval capability
// the agent's knowledge_search tool depends on: claims
// about hours, shipping, returns, and store policy must be grounded against
// tenant knowledge-base content, not recalled from the model's own
// training). It ships one deterministic fixture implementation, mirroring
// internal/ecommerce's sandbox catalog — not a real document store or
// vector index.
package knowledgebase

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/tulia-commerce/convoapi/internal/agent/tools"
)

type entry struct {
	title string
	text  string
	terms []string
}

// SandboxKnowledgeBase is a fixed, in-memory FAQ/policy fixture shared
// across every tenant. A production deployment swaps this for a
// tenant-scoped document store, optionally fronted by semantic retrieval
// (optional semantic retrieval against a vector
// index); no vector index library appears anywhere in the corpus this
// platform is built from, so that path stays an unimplemented interface
// seam (see SemanticRetriever in internal/agent) rather than a fabricated
// dependency.
type SandboxKnowledgeBase struct {
	entries []entry
}

// NewSandboxKnowledgeBase builds a SandboxKnowledgeBase seeded with a small
// set of store-policy passages.
func NewSandboxKnowledgeBase() *SandboxKnowledgeBase {
	return &SandboxKnowledgeBase{entries: []entry{
		{
			title: "Shipping",
			text:  "Orders ship within 2 business days. Standard delivery takes 3-5 business days; express delivery takes 1-2 business days.",
			terms: []string{"shipping", "delivery", "deliver", "ship"},
		},
		{
			title: "Returns",
			text:  "Unopened items can be returned within 30 days of delivery for a full refund. Opened consumable items are not eligible for return.",
			terms: []string{"return", "refund", "exchange"},
		},
		{
			title: "Store hours",
			text:  "Our support team replies to messages daily between 9am and 6pm in the store's local timezone.",
			terms: []string{"hours", "open", "close", "support"},
		},
		{
			title: "Payment methods",
			text:  "We accept all major cards and local mobile money wallets through our payment provider.",
			terms: []string{"payment", "pay", "card", "mobile money"},
		},
	}}
}

// SearchKnowledge satisfies the knowledge_search tool's KnowledgeSearcher
// contract with a case-insensitive substring match over each passage's
// index terms.
func (k *SandboxKnowledgeBase) SearchKnowledge(_ context.Context, _ uuid.UUID, query string, limit int) ([]tools.KnowledgePassage, error) {
	query = strings.ToLower(strings.TrimSpace(query))

	var matches []entry
	for _, e := range k.entries {
		for _, term := range e.terms {
			if query == "" || strings.Contains(query, term) {
				matches = append(matches, e)
				break
			}
		}
	}
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	out := make([]tools.KnowledgePassage, 0, len(matches))
	for _, e := range matches {
		out = append(out, tools.KnowledgePassage{Title: e.title, Text: e.text})
	}
	return out, nil
}
