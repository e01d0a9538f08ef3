package tools

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tulia-commerce/convoapi/internal/domain"
)

// CatalogSearcher backs the catalog_search tool.
type CatalogSearcher interface {
	SearchCatalog(ctx context.Context, tenantID uuid.UUID, query string, limit int) ([]domain.ReferenceItem, error)
}

// KnowledgeSearcher backs the knowledge_search tool, returning short
// passages the grounding validator can cite back against.
type KnowledgeSearcher interface {
	SearchKnowledge(ctx context.Context, tenantID uuid.UUID, query string, limit int) ([]KnowledgePassage, error)
}

// KnowledgePassage is one retrievable snippet of tenant knowledge-base
// content (policies, FAQ, business hours copy).
type KnowledgePassage struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// OrderCreator backs the order_create tool; totals are computed inside the
// implementation from catalog prices, never taken from tool arguments.
type OrderCreator interface {
	CreateOrder(ctx context.Context, tenantID, conversationID, customerID uuid.UUID, productVariantID uuid.UUID, quantity int) (*domain.Order, error)
}

// ReferenceResolver backs the reference_resolve tool, turning a deictic
// phrase ("the second one", "that") into a concrete catalog entity using
// the conversation's live ReferenceContext.
type ReferenceResolver interface {
	ResolveReference(ctx context.Context, conversationID uuid.UUID, phrase string) (*domain.ReferenceItem, error)
}

// ToolContext carries the tenant/conversation scope and service
// dependencies a handler needs; it is rebuilt once per agent turn.
type ToolContext struct {
	Logger         *zerolog.Logger
	TenantID       uuid.UUID
	ConversationID uuid.UUID

	Catalog    CatalogSearcher
	Knowledge  KnowledgeSearcher
	Orders     OrderCreator
	References ReferenceResolver
}
