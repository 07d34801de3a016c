package graph

import (
	"github.com/icm-memory/icm/internal/icmerr"
	"github.com/icm-memory/icm/internal/store"
)

// NeighborhoodOptions configures Service.Neighborhood.
type NeighborhoodOptions struct {
	RootID        string
	Depth         int // 0 means the default of 1
	IncludeKinds  []store.RelationKind
	MinConfidence float64
}

const (
	defaultNeighborhoodDepth = 1
	maxNeighborhoodDepth     = 5
)

// NeighborhoodEdge is one traversed edge, annotated with the depth at
// which it was discovered.
type NeighborhoodEdge struct {
	Relation *store.Relation
	Depth    int
}

// NeighborhoodResult is the outcome of a bounded BFS from RootID.
type NeighborhoodResult struct {
	RootID     string
	MaxDepth   int
	Nodes      []string // concept ids, including the root, visited order
	Edges      []NeighborhoodEdge
	TotalNodes int
}

// Neighborhood runs a bounded, deterministic breadth-first traversal from
// RootID out to Depth hops (default 1, capped at 5). At each node, outgoing
// relations are visited sorted by (kind, to-concept-name) — the order
// spec.md requires for reproducible results — and a visited-set guards
// against cycles. Grounded on the depth-default/depth-cap/type-filter
// contract in internal/relationships/service_test.go's MapGraph tests.
func (s *Service) Neighborhood(opts NeighborhoodOptions) (*NeighborhoodResult, error) {
	if opts.RootID == "" {
		return nil, icmerr.New(icmerr.InvalidInput, "root concept id must not be empty")
	}
	if _, err := s.store.GetConcept(opts.RootID); err != nil {
		return nil, err
	}

	depth := opts.Depth
	if depth <= 0 {
		depth = defaultNeighborhoodDepth
	}
	if depth > maxNeighborhoodDepth {
		depth = maxNeighborhoodDepth
	}

	includeKind := func(k store.RelationKind) bool {
		if len(opts.IncludeKinds) == 0 {
			return true
		}
		for _, want := range opts.IncludeKinds {
			if want == k {
				return true
			}
		}
		return false
	}

	result := &NeighborhoodResult{RootID: opts.RootID, MaxDepth: depth}
	visited := map[string]bool{opts.RootID: true}
	result.Nodes = append(result.Nodes, opts.RootID)

	frontier := []string{opts.RootID}
	for d := 1; d <= depth && len(frontier) > 0; d++ {
		var next []string
		for _, nodeID := range frontier {
			rels, err := s.orderedRelations(nodeID)
			if err != nil {
				return nil, err
			}
			for _, r := range rels {
				if !includeKind(r.Kind) {
					continue
				}
				if r.Confidence < opts.MinConfidence {
					continue
				}
				result.Edges = append(result.Edges, NeighborhoodEdge{Relation: r, Depth: d})
				if !visited[r.ToID] {
					visited[r.ToID] = true
					result.Nodes = append(result.Nodes, r.ToID)
					next = append(next, r.ToID)
				}
			}
		}
		frontier = next
	}

	result.TotalNodes = len(result.Nodes)
	return result, nil
}

// orderedRelations returns a concept's outgoing relations already sorted
// by (kind, target concept name) — store.RelationsFrom guarantees this
// ordering, giving the BFS its deterministic fan-out order without a
// re-sort here.
func (s *Service) orderedRelations(conceptID string) ([]*store.Relation, error) {
	return s.store.RelationsFrom(conceptID)
}
