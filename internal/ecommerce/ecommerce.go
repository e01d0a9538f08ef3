// Package ecommerce defines the narrow catalog-read capability contract
// this calls out as an external collaborator ("admin/CRUD
// endpoints for catalog" and "the specific LLM or telephony SDKs" are out
// of scope; only read access the checkout machine and the agent's
// catalog_search tool need is modeled here). It ships one deterministic
// fixture implementation suitable for tests and local development,
// mirroring internal/telephony's SandboxSender — not a real storefront
// platform client.
package ecommerce

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tulia-commerce/convoapi/internal/checkout"
	"github.com/tulia-commerce/convoapi/internal/domain"
)

// Catalog is the capability contract both checkout.Catalog and the agent's
// catalog_search tool depend on; SandboxCatalog satisfies both structurally.
type Catalog interface {
	VariantInfo(ctx context.Context, tenantID, variantID uuid.UUID) (checkout.VariantInfo, error)
	SearchCatalog(ctx context.Context, tenantID uuid.UUID, query string, limit int) ([]domain.ReferenceItem, error)
}

type fixtureVariant struct {
	id          uuid.UUID
	label       string
	price       decimal.Decimal
	stock       int
	searchTerms []string
}

// SandboxCatalog is a fixed, in-memory product-variant fixture shared
// across every tenant. Production deployments swap this for an adapter
// that calls out through the tenant's configured Ecommerce credential
// (internal/domain.IntegrationCredentials.Ecommerce); no such platform SDK
// is in scope here.
type SandboxCatalog struct {
	byID    map[uuid.UUID]fixtureVariant
	ordered []fixtureVariant
}

// NewSandboxCatalog builds a SandboxCatalog seeded with a small, stable
// product line so catalog_search and checkout demos are reproducible
// without a real e-commerce backend.
func NewSandboxCatalog() *SandboxCatalog {
	seed := []fixtureVariant{
		{label: "Espresso Blend — 250g bag", price: decimal.NewFromFloat(12.50), stock: 40, searchTerms: []string{"espresso", "coffee", "blend", "250g"}},
		{label: "Espresso Blend — 1kg bag", price: decimal.NewFromFloat(38.00), stock: 15, searchTerms: []string{"espresso", "coffee", "blend", "1kg", "bulk"}},
		{label: "Single-Origin Filter Roast — 250g bag", price: decimal.NewFromFloat(14.00), stock: 25, searchTerms: []string{"filter", "single origin", "coffee", "250g"}},
		{label: "Cold Brew Concentrate — 1L bottle", price: decimal.NewFromFloat(9.75), stock: 0, searchTerms: []string{"cold brew", "concentrate", "bottle"}},
		{label: "Reusable Steel Tumbler", price: decimal.NewFromFloat(22.00), stock: 60, searchTerms: []string{"tumbler", "cup", "merch", "steel"}},
	}

	c := &SandboxCatalog{byID: make(map[uuid.UUID]fixtureVariant, len(seed))}
	for _, v := range seed {
		v.id = uuid.NewSHA1(uuid.NameSpaceOID, []byte(v.label))
		c.byID[v.id] = v
		c.ordered = append(c.ordered, v)
	}
	return c
}

// VariantInfo satisfies checkout.Catalog.
func (c *SandboxCatalog) VariantInfo(_ context.Context, _ uuid.UUID, variantID uuid.UUID) (checkout.VariantInfo, error) {
	v, ok := c.byID[variantID]
	if !ok {
		return checkout.VariantInfo{}, fmt.Errorf("ecommerce: variant %s not found", variantID)
	}
	return checkout.VariantInfo{Price: v.price, AvailableStock: v.stock}, nil
}

// SearchCatalog satisfies the catalog_search tool's CatalogSearcher
// contract: a case-insensitive substring match over each variant's search
// terms, the "fuzzy-match products" baseline this requires
// even when semantic retrieval isn't configured.
func (c *SandboxCatalog) SearchCatalog(_ context.Context, _ uuid.UUID, query string, limit int) ([]domain.ReferenceItem, error) {
	query = strings.ToLower(strings.TrimSpace(query))

	var matches []fixtureVariant
	for _, v := range c.ordered {
		for _, term := range v.searchTerms {
			if query == "" || strings.Contains(term, query) || strings.Contains(query, term) {
				matches = append(matches, v)
				break
			}
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].label < matches[j].label })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	items := make([]domain.ReferenceItem, 0, len(matches))
	for i, v := range matches {
		items = append(items, domain.ReferenceItem{
			Index:      i + 1,
			EntityID:   v.id,
			EntityKind: "product_variant",
			Label:      v.label,
			Attributes: map[string]string{
				"price":     "$" + v.price.StringFixed(2),
				"available": fmt.Sprintf("%t", v.stock > 0),
			},
		})
	}
	return items, nil
}
