package tools

import (
	"context"
	"encoding/json"
)

type catalogSearchParams struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func handleCatalogSearch(ctx context.Context, tc *ToolContext, raw json.RawMessage) (any, error) {
	var p catalogSearchParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.Query == "" {
		return nil, NewToolError(ErrCodeInvalidParams, "query is required", nil)
	}
	if p.Limit <= 0 {
		p.Limit = 5
	}

	items, err := tc.Catalog.SearchCatalog(ctx, tc.TenantID, p.Query, p.Limit)
	if err != nil {
		return nil, NewToolError(ErrCodeInternal, "catalog search failed: "+err.Error(), nil)
	}
	return map[string]any{"items": items}, nil
}
