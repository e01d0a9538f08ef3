package tools

// JSON Schema fragments for each tool's InputSchema. Kept as plain
// map[string]any literals so they serialize directly into the provider
// function-calling payload without a schema-generation dependency.

func catalogSearchSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Free-text product or service query, e.g. 'red running shoes size 9'.",
			},
			"limit": map[string]any{
				"type":        "integer",
				"description": "Maximum results to return.",
				"default":     5,
			},
		},
		"required": []string{"query"},
	}
}

func knowledgeSearchSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Question about store policy, hours, or FAQ content.",
			},
			"limit": map[string]any{
				"type":        "integer",
				"description": "Maximum passages to return.",
				"default":     3,
			},
		},
		"required": []string{"query"},
	}
}

func orderCreateSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"productVariantId": map[string]any{
				"type":        "string",
				"description": "UUID of the product variant to order, from a prior catalog_search or reference_resolve result.",
			},
			"quantity": map[string]any{
				"type":        "integer",
				"description": "Quantity requested; must be a positive integer.",
			},
			"customerId": map[string]any{
				"type":        "string",
				"description": "UUID of the customer placing the order.",
			},
		},
		"required": []string{"productVariantId", "quantity", "customerId"},
	}
}

func referenceResolveSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"phrase": map[string]any{
				"type":        "string",
				"description": "The customer's deictic phrase, e.g. '1', 'the first one', 'that blue one'.",
			},
		},
		"required": []string{"phrase"},
	}
}
