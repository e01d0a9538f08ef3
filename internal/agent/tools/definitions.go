package tools

// RegisterAll wires every built-in tool into r. Called once per process at
// startup; the resulting Registry is shared read-only across agent turns.
func RegisterAll(r *Registry) {
	r.MustRegister(ToolDefinition{
		Name:        "catalog_search",
		Description: "Search the tenant's product or service catalog by free-text query. Always prefer this over recalling catalog contents from memory.",
		InputSchema: catalogSearchSchema(),
	}, handleCatalogSearch)

	r.MustRegister(ToolDefinition{
		Name:        "knowledge_search",
		Description: "Search the tenant's policy/FAQ knowledge base. Use this before answering any question about hours, shipping, returns, or store policy.",
		InputSchema: knowledgeSearchSchema(),
	}, handleKnowledgeSearch)

	r.MustRegister(ToolDefinition{
		Name:        "order_create",
		Description: "Create a draft order for a specific product variant and quantity. The total is computed server-side from the current catalog price; do not state a price unless this tool or catalog_search returned one.",
		InputSchema: orderCreateSchema(),
	}, handleOrderCreate)

	r.MustRegister(ToolDefinition{
		Name:        "reference_resolve",
		Description: "Resolve a customer's deictic reference ('1', 'the second one', 'that') against the most recently shown list.",
		InputSchema: referenceResolveSchema(),
	}, handleReferenceResolve)
}
