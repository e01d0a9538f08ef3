package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/tulia-commerce/convoapi/internal/domain"
)

type stubCatalog struct {
	items []domain.ReferenceItem
}

func (s *stubCatalog) SearchCatalog(ctx context.Context, tenantID uuid.UUID, query string, limit int) ([]domain.ReferenceItem, error) {
	return s.items, nil
}

func TestRegistryRegisterAndCall(t *testing.T) {
	r := NewRegistry()
	RegisterAll(r)

	descriptors := r.List()
	if len(descriptors) != 4 {
		t.Fatalf("expected 4 registered tools, got %d", len(descriptors))
	}

	tc := &ToolContext{
		TenantID: uuid.New(),
		Catalog:  &stubCatalog{items: []domain.ReferenceItem{{Index: 1, Label: "Widget"}}},
	}

	args, _ := json.Marshal(catalogSearchParams{Query: "widget", Limit: 5})
	result, err := r.Call(context.Background(), tc, CallRequest{Name: "catalog_search", Arguments: args})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}

	callResult, ok := result.(CallResult)
	if !ok {
		t.Fatalf("expected CallResult, got %T", result)
	}
	if len(callResult.Content) != 1 || callResult.Content[0].Type != "text" {
		t.Fatalf("expected one text content block, got %+v", callResult.Content)
	}
}

func TestRegistryCallUnknownTool(t *testing.T) {
	r := NewRegistry()
	_, err := r.Call(context.Background(), &ToolContext{}, CallRequest{Name: "does_not_exist"})
	if err == nil {
		t.Fatal("expected error for unknown tool")
	}
	toolErr, ok := err.(*ToolError)
	if !ok {
		t.Fatalf("expected *ToolError, got %T", err)
	}
	if toolErr.Code != ErrCodeMethodNotFound {
		t.Errorf("expected ErrCodeMethodNotFound, got %s", toolErr.Code)
	}
}

func TestRegistryRejectsDuplicateRegistration(t *testing.T) {
	r := NewRegistry()
	def := ToolDefinition{Name: "dup", InputSchema: map[string]any{}}
	if err := r.Register(def, func(context.Context, *ToolContext, json.RawMessage) (any, error) { return nil, nil }); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	if err := r.Register(def, func(context.Context, *ToolContext, json.RawMessage) (any, error) { return nil, nil }); err == nil {
		t.Fatal("expected error registering duplicate tool name")
	}
}
