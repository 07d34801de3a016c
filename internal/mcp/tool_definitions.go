package mcp

// getToolDefinitions returns the JSON-schema definitions for all 16
// icm_memory_*/icm_memoir_* tools (spec.md §6), grounded on the teacher's
// getToolDefinitions (internal/mcp/server.go) — same Tool/InputSchema/
// Property shape, same min/max-pointer convention for bounded numeric
// fields.
func (s *Server) getToolDefinitions() []Tool {
	min1 := float64(1)
	max20 := float64(20)
	min0 := float64(0)
	max1 := float64(1)

	return []Tool{
		{
			Name:        "icm_memory_store",
			Description: "Store a new memory under a topic, with optional importance and keywords",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"topic":       {Type: "string", Description: "Topic partition this memory belongs to"},
					"content":     {Type: "string", Description: "The memory's summary text"},
					"importance":  {Type: "string", Description: "Decay resistance level", Enum: []string{"critical", "high", "medium", "low"}, Default: "medium"},
					"keywords":    {Type: "array", Description: "Keywords for retrieval and consolidation", Items: &Property{Type: "string"}},
					"raw_excerpt": {Type: "string", Description: "Optional verbatim source excerpt"},
				},
				Required: []string{"topic", "content"},
			},
		},
		{
			Name:        "icm_memory_recall",
			Description: "Hybrid keyword+vector recall over stored memories, reinforcing what it returns",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"query":      {Type: "string", Description: "Recall query text"},
					"topic":      {Type: "string", Description: "Restrict results to one topic"},
					"keyword":    {Type: "string", Description: "Restrict results to memories carrying this keyword"},
					"limit":      {Type: "integer", Description: "Maximum results", Default: 5, Minimum: &min1, Maximum: &max20},
					"min_weight": {Type: "number", Description: "Minimum current weight", Default: 0, Minimum: &min0, Maximum: &max1},
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        "icm_memory_forget",
			Description: "Delete a memory by id",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{"id": {Type: "string", Description: "Memory id"}},
				Required:   []string{"id"},
			},
		},
		{
			Name:        "icm_memory_consolidate",
			Description: "Merge every memory under a topic into one, unioning keywords and taking the max importance",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"topic":          {Type: "string", Description: "Topic to consolidate"},
					"keep_originals": {Type: "boolean", Description: "Keep the original memories instead of deleting them", Default: false},
				},
				Required: []string{"topic"},
			},
		},
		{
			Name:        "icm_memory_list_topics",
			Description: "List every topic and how many memories it holds",
			InputSchema: InputSchema{Type: "object"},
		},
		{
			Name:        "icm_memory_stats",
			Description: "Report corpus-wide aggregates: memory count, topic count, average weight, oldest/newest",
			InputSchema: InputSchema{Type: "object"},
		},
		{
			Name:        "icm_memory_embed_all",
			Description: "Backfill embeddings for every memory that does not yet have one",
			InputSchema: InputSchema{Type: "object"},
		},
		{
			Name:        "icm_memoir_create",
			Description: "Create a new named memoir (a knowledge-graph container)",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"name":        {Type: "string", Description: "Memoir name, must be unique"},
					"description": {Type: "string", Description: "Optional description"},
				},
				Required: []string{"name"},
			},
		},
		{
			Name:        "icm_memoir_list",
			Description: "List every memoir",
			InputSchema: InputSchema{Type: "object"},
		},
		{
			Name:        "icm_memoir_show",
			Description: "Show a memoir and every concept it contains",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{"name": {Type: "string", Description: "Memoir name"}},
				Required:   []string{"name"},
			},
		},
		{
			Name:        "icm_memoir_add_concept",
			Description: "Add a new concept to a memoir",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"memoir":     {Type: "string", Description: "Memoir name"},
					"name":       {Type: "string", Description: "Concept name, unique within the memoir"},
					"definition": {Type: "string", Description: "Free-text definition"},
					"labels":     {Type: "array", Description: "Optional classification labels", Items: &Property{Type: "string"}},
				},
				Required: []string{"memoir", "name", "definition"},
			},
		},
		{
			Name:        "icm_memoir_refine",
			Description: "Overwrite a concept's definition",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"memoir":     {Type: "string", Description: "Memoir name"},
					"concept":    {Type: "string", Description: "Concept name"},
					"definition": {Type: "string", Description: "New definition text"},
				},
				Required: []string{"memoir", "concept", "definition"},
			},
		},
		{
			Name:        "icm_memoir_search",
			Description: "Search one memoir's concepts by substring query and/or label",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"memoir": {Type: "string", Description: "Memoir name"},
					"query":  {Type: "string", Description: "Substring to match against name/definition"},
					"label":  {Type: "string", Description: "Restrict to concepts carrying this label"},
				},
				Required: []string{"memoir"},
			},
		},
		{
			Name:        "icm_memoir_search_all",
			Description: "Search concepts across every memoir by substring query",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{"query": {Type: "string", Description: "Substring to match against name/definition"}},
				Required:   []string{"query"},
			},
		},
		{
			Name:        "icm_memoir_link",
			Description: "Create a typed directed relation between two concepts, creating them if absent",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"memoir": {Type: "string", Description: "Memoir name"},
					"from":   {Type: "string", Description: "Source concept name"},
					"to":     {Type: "string", Description: "Target concept name"},
					"kind": {
						Type: "string", Description: "Relation kind",
						Enum: []string{
							"part_of", "depends_on", "related_to", "contradicts", "refines",
							"alternative_to", "caused_by", "instance_of", "superseded_by",
						},
					},
				},
				Required: []string{"memoir", "from", "to", "kind"},
			},
		},
		{
			Name:        "icm_memoir_inspect",
			Description: "Run a bounded, deterministic breadth-first traversal from a concept",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"memoir":  {Type: "string", Description: "Memoir name"},
					"concept": {Type: "string", Description: "Root concept name"},
					"depth":   {Type: "integer", Description: "Traversal depth, capped at 5", Default: 1, Minimum: &min1},
				},
				Required: []string{"memoir", "concept"},
			},
		},
	}
}
