package tools

import (
	"context"
	"encoding/json"
)

type referenceResolveParams struct {
	Phrase string `json:"phrase"`
}

func handleReferenceResolve(ctx context.Context, tc *ToolContext, raw json.RawMessage) (any, error) {
	var p referenceResolveParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.Phrase == "" {
		return nil, NewToolError(ErrCodeInvalidParams, "phrase is required", nil)
	}

	item, err := tc.References.ResolveReference(ctx, tc.ConversationID, p.Phrase)
	if err != nil {
		return nil, NewToolError(ErrCodeNotFound, "could not resolve reference: "+err.Error(), nil)
	}
	return map[string]any{"item": item}, nil
}
