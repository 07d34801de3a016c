package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/icm-memory/icm/internal/graph"
	"github.com/icm-memory/icm/internal/icmerr"
	"github.com/icm-memory/icm/internal/lifecycle"
	"github.com/icm-memory/icm/internal/retrieval"
	"github.com/icm-memory/icm/internal/store"
)

// This file implements each icm_memory_*/icm_memoir_* tool handler. Each
// unmarshals its own params struct from types.go, validates what the store/
// graph/retrieval layer won't already catch, and returns a plain
// JSON-serializable value — the Formatter renders it for the tools/call
// response, matching the teacher's handleXxx return-interface{} convention
// in internal/mcp/server.go.

func (s *Server) handleMemoryStore(argsJSON []byte) (interface{}, error) {
	var p MemoryStoreParams
	if err := json.Unmarshal(argsJSON, &p); err != nil {
		return nil, icmerr.Wrap(icmerr.InvalidInput, "parse icm_memory_store params", err)
	}
	if p.Topic == "" || p.Content == "" {
		return nil, icmerr.New(icmerr.InvalidInput, "topic and content are required")
	}

	importance := store.Importance(p.Importance)
	if importance == "" {
		importance = store.Medium
	}

	m := &store.Memory{
		Topic:      p.Topic,
		Summary:    p.Content,
		RawExcerpt: p.RawExcerpt,
		Keywords:   p.Keywords,
		Importance: importance,
		Source:     store.SourceAgentSession,
	}
	if s.embedder != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if vec, err := s.embedder.Embed(ctx, p.Content); err != nil {
			s.log.Warn("store: embedding failed, storing without vector", "error", err)
		} else {
			m.Embedding = vec
		}
	}

	if err := s.store.PutMemory(m); err != nil {
		return nil, err
	}
	return map[string]string{"id": m.ID}, nil
}

func (s *Server) handleMemoryRecall(ctx context.Context, argsJSON []byte) (interface{}, error) {
	var p MemoryRecallParams
	if err := json.Unmarshal(argsJSON, &p); err != nil {
		return nil, icmerr.Wrap(icmerr.InvalidInput, "parse icm_memory_recall params", err)
	}

	results, _, err := s.engine.Recall(ctx, retrieval.Options{
		Query:     p.Query,
		Topic:     p.Topic,
		Keyword:   p.Keyword,
		Limit:     p.Limit,
		MinWeight: p.MinWeight,
		Reinforce: true,
	})
	if err != nil {
		return nil, err
	}

	out := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		out = append(out, map[string]interface{}{
			"id":      r.Memory.ID,
			"topic":   r.Memory.Topic,
			"summary": r.Memory.Summary,
			"score":   r.Score,
			"weight":  r.Memory.Weight,
		})
	}
	return out, nil
}

func (s *Server) handleMemoryForget(ctx context.Context, argsJSON []byte) (interface{}, error) {
	var p MemoryForgetParams
	if err := json.Unmarshal(argsJSON, &p); err != nil {
		return nil, icmerr.Wrap(icmerr.InvalidInput, "parse icm_memory_forget params", err)
	}
	if p.ID == "" {
		return nil, icmerr.New(icmerr.InvalidInput, "id is required")
	}
	if err := s.engine.Forget(ctx, p.ID); err != nil {
		return nil, err
	}
	return map[string]bool{"deleted": true}, nil
}

func (s *Server) handleMemoryConsolidate(argsJSON []byte) (interface{}, error) {
	var p MemoryConsolidateParams
	if err := json.Unmarshal(argsJSON, &p); err != nil {
		return nil, icmerr.Wrap(icmerr.InvalidInput, "parse icm_memory_consolidate params", err)
	}
	if p.Topic == "" {
		return nil, icmerr.New(icmerr.InvalidInput, "topic is required")
	}

	result, err := s.lifecycle.Consolidate(lifecycle.ConsolidateOptions{
		Topic: p.Topic, KeepOriginals: p.KeepOriginals,
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"new_id":         result.ResultID,
		"absorbed_count": len(result.MergedIDs),
	}, nil
}

func (s *Server) handleMemoryListTopics() (interface{}, error) {
	counts, err := s.store.ListTopicsWithCounts()
	if err != nil {
		return nil, err
	}
	out := make([]map[string]interface{}, 0, len(counts))
	for _, tc := range counts {
		out = append(out, map[string]interface{}{"topic": tc.Topic, "count": tc.Count})
	}
	return out, nil
}

func (s *Server) handleMemoryStats() (interface{}, error) {
	stats, err := s.store.Stats()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"total_memories": stats.TotalMemories,
		"total_topics":   stats.TotalTopics,
		"avg_weight":     stats.AvgWeight,
		"oldest":         stats.Oldest,
		"newest":         stats.Newest,
	}, nil
}

func (s *Server) handleMemoryEmbedAll(ctx context.Context) (interface{}, error) {
	if !s.engine.HasEmbedder() {
		return nil, icmerr.New(icmerr.Unavailable, "no embedder configured")
	}
	embedded, skipped, err := s.engine.EmbedAll(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]int{"embedded": embedded, "skipped": skipped}, nil
}

func (s *Server) handleMemoirCreate(argsJSON []byte) (interface{}, error) {
	var p MemoirCreateParams
	if err := json.Unmarshal(argsJSON, &p); err != nil {
		return nil, icmerr.Wrap(icmerr.InvalidInput, "parse icm_memoir_create params", err)
	}
	if p.Name == "" {
		return nil, icmerr.New(icmerr.InvalidInput, "name is required")
	}
	m, err := s.graph.CreateMemoir(p.Name, p.Description)
	if err != nil {
		return nil, err
	}
	return memoirView(m), nil
}

func (s *Server) handleMemoirList() (interface{}, error) {
	memoirs, err := s.graph.ListMemoirs()
	if err != nil {
		return nil, err
	}
	out := make([]map[string]interface{}, 0, len(memoirs))
	for _, m := range memoirs {
		out = append(out, memoirView(m))
	}
	return out, nil
}

func (s *Server) handleMemoirShow(argsJSON []byte) (interface{}, error) {
	var p MemoirShowParams
	if err := json.Unmarshal(argsJSON, &p); err != nil {
		return nil, icmerr.Wrap(icmerr.InvalidInput, "parse icm_memoir_show params", err)
	}
	if p.Name == "" {
		return nil, icmerr.New(icmerr.InvalidInput, "name is required")
	}
	m, concepts, err := s.graph.ShowMemoir(p.Name)
	if err != nil {
		return nil, err
	}
	out := memoirView(m)
	out["concepts"] = conceptViews(concepts)
	return out, nil
}

func (s *Server) handleMemoirAddConcept(argsJSON []byte) (interface{}, error) {
	var p MemoirAddConceptParams
	if err := json.Unmarshal(argsJSON, &p); err != nil {
		return nil, icmerr.Wrap(icmerr.InvalidInput, "parse icm_memoir_add_concept params", err)
	}
	memoir, err := s.store.GetMemoirByName(p.Memoir)
	if err != nil {
		return nil, err
	}
	c, err := s.graph.AddConcept(graph.AddConceptOptions{
		MemoirID: memoir.ID, Name: p.Name, Definition: p.Definition, Labels: p.Labels,
	})
	if err != nil {
		return nil, err
	}
	return conceptView(c), nil
}

func (s *Server) handleMemoirRefine(argsJSON []byte) (interface{}, error) {
	var p MemoirRefineParams
	if err := json.Unmarshal(argsJSON, &p); err != nil {
		return nil, icmerr.Wrap(icmerr.InvalidInput, "parse icm_memoir_refine params", err)
	}
	memoir, err := s.store.GetMemoirByName(p.Memoir)
	if err != nil {
		return nil, err
	}
	c, err := s.graph.RefineConcept(memoir.ID, p.Concept, p.Definition)
	if err != nil {
		return nil, err
	}
	return conceptView(c), nil
}

func (s *Server) handleMemoirSearch(argsJSON []byte) (interface{}, error) {
	var p MemoirSearchParams
	if err := json.Unmarshal(argsJSON, &p); err != nil {
		return nil, icmerr.Wrap(icmerr.InvalidInput, "parse icm_memoir_search params", err)
	}
	memoir, err := s.store.GetMemoirByName(p.Memoir)
	if err != nil {
		return nil, err
	}
	hits, err := s.graph.SearchConcepts(memoir.ID, p.Query, p.Label)
	if err != nil {
		return nil, err
	}
	return conceptViews(hits), nil
}

func (s *Server) handleMemoirSearchAll(argsJSON []byte) (interface{}, error) {
	var p MemoirSearchAllParams
	if err := json.Unmarshal(argsJSON, &p); err != nil {
		return nil, icmerr.Wrap(icmerr.InvalidInput, "parse icm_memoir_search_all params", err)
	}
	hits, err := s.graph.SearchConceptsAll(p.Query)
	if err != nil {
		return nil, err
	}
	return conceptViews(hits), nil
}

func (s *Server) handleMemoirLink(argsJSON []byte) (interface{}, error) {
	var p MemoirLinkParams
	if err := json.Unmarshal(argsJSON, &p); err != nil {
		return nil, icmerr.Wrap(icmerr.InvalidInput, "parse icm_memoir_link params", err)
	}
	memoir, err := s.store.GetMemoirByName(p.Memoir)
	if err != nil {
		return nil, err
	}
	rel, err := s.graph.Link(graph.LinkOptions{
		MemoirID: memoir.ID, FromName: p.From, ToName: p.To, Kind: store.RelationKind(p.Kind),
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"id": rel.ID, "from": p.From, "to": p.To, "kind": string(rel.Kind), "confidence": rel.Confidence,
	}, nil
}

func (s *Server) handleMemoirInspect(argsJSON []byte) (interface{}, error) {
	var p MemoirInspectParams
	if err := json.Unmarshal(argsJSON, &p); err != nil {
		return nil, icmerr.Wrap(icmerr.InvalidInput, "parse icm_memoir_inspect params", err)
	}
	memoir, err := s.store.GetMemoirByName(p.Memoir)
	if err != nil {
		return nil, err
	}
	root, err := s.graph.FindConceptByName(memoir.ID, p.Concept)
	if err != nil {
		return nil, err
	}
	result, err := s.graph.Neighborhood(graph.NeighborhoodOptions{RootID: root.ID, Depth: p.Depth})
	if err != nil {
		return nil, err
	}

	layers := make([][]map[string]interface{}, result.MaxDepth+1)
	layers[0] = []map[string]interface{}{{"id": root.ID, "name": root.Name}}
	for _, e := range result.Edges {
		to, err := s.store.GetConcept(e.Relation.ToID)
		if err != nil {
			continue
		}
		layers[e.Depth] = append(layers[e.Depth], map[string]interface{}{
			"id": to.ID, "name": to.Name, "via": string(e.Relation.Kind),
		})
	}
	return map[string]interface{}{"root": root.Name, "max_depth": result.MaxDepth, "layers": layers}, nil
}

func memoirView(m *store.Memoir) map[string]interface{} {
	return map[string]interface{}{
		"id": m.ID, "name": m.Name, "description": m.Description,
	}
}

func conceptView(c *store.Concept) map[string]interface{} {
	return map[string]interface{}{
		"id": c.ID, "name": c.Name, "definition": c.Summary, "labels": c.Labels,
	}
}

func conceptViews(cs []*store.Concept) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(cs))
	for _, c := range cs {
		out = append(out, conceptView(c))
	}
	return out
}
