package tools

import (
	"context"
	"encoding/json"
)

type knowledgeSearchParams struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func handleKnowledgeSearch(ctx context.Context, tc *ToolContext, raw json.RawMessage) (any, error) {
	var p knowledgeSearchParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.Query == "" {
		return nil, NewToolError(ErrCodeInvalidParams, "query is required", nil)
	}
	if p.Limit <= 0 {
		p.Limit = 3
	}

	passages, err := tc.Knowledge.SearchKnowledge(ctx, tc.TenantID, p.Query, p.Limit)
	if err != nil {
		return nil, NewToolError(ErrCodeInternal, "knowledge search failed: "+err.Error(), nil)
	}
	return map[string]any{"passages": passages}, nil
}
