package graph

import (
	"path/filepath"
	"testing"

	"github.com/icm-memory/icm/internal/icmerr"
	"github.com/icm-memory/icm/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "icm.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.InitSchema(4); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewService(s), s
}

func TestLinkCreatesConceptsAndClampsConfidence(t *testing.T) {
	svc, _ := newTestService(t)

	memoir, err := svc.EnsureMemoir("go-internals", "")
	if err != nil {
		t.Fatalf("EnsureMemoir: %v", err)
	}

	rel, err := svc.Link(LinkOptions{
		MemoirID: memoir.ID, FromName: "goroutine", ToName: "scheduler",
		Kind: store.RelationDependsOn, Confidence: 1.5,
	})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if rel.Confidence != 1.0 {
		t.Errorf("expected confidence capped at 1.0, got %v", rel.Confidence)
	}

	rel2, err := svc.Link(LinkOptions{
		MemoirID: memoir.ID, FromName: "goroutine", ToName: "channel",
		Kind: store.RelationRelatedTo, Confidence: -1,
	})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if rel2.Confidence != 0.5 {
		t.Errorf("expected default confidence 0.5, got %v", rel2.Confidence)
	}
}

func TestLinkInvalidKind(t *testing.T) {
	svc, _ := newTestService(t)
	memoir, _ := svc.EnsureMemoir("m", "")
	_, err := svc.Link(LinkOptions{MemoirID: memoir.ID, FromName: "a", ToName: "b", Kind: "bogus"})
	if !icmerr.Is(err, icmerr.InvalidInput) {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}

func TestNeighborhoodDepthDefaultAndCap(t *testing.T) {
	svc, _ := newTestService(t)
	memoir, _ := svc.EnsureMemoir("chain", "")

	a, err := svc.upsertConcept(memoir.ID, "a")
	if err != nil {
		t.Fatalf("upsertConcept a: %v", err)
	}
	if _, err := svc.Link(LinkOptions{MemoirID: memoir.ID, FromName: "a", ToName: "b", Kind: store.RelationPartOf}); err != nil {
		t.Fatalf("Link a-b: %v", err)
	}
	if _, err := svc.Link(LinkOptions{MemoirID: memoir.ID, FromName: "b", ToName: "c", Kind: store.RelationPartOf}); err != nil {
		t.Fatalf("Link b-c: %v", err)
	}

	result, err := svc.Neighborhood(NeighborhoodOptions{RootID: a.ID})
	if err != nil {
		t.Fatalf("Neighborhood: %v", err)
	}
	if result.MaxDepth != 1 {
		t.Errorf("expected default depth 1, got %d", result.MaxDepth)
	}
	if result.TotalNodes != 2 {
		t.Errorf("expected 2 nodes at depth 1 (a, b), got %d", result.TotalNodes)
	}

	result, err = svc.Neighborhood(NeighborhoodOptions{RootID: a.ID, Depth: 10})
	if err != nil {
		t.Fatalf("Neighborhood: %v", err)
	}
	if result.MaxDepth != maxNeighborhoodDepth {
		t.Errorf("expected capped depth %d, got %d", maxNeighborhoodDepth, result.MaxDepth)
	}
	if result.TotalNodes != 3 {
		t.Errorf("expected 3 nodes (a, b, c), got %d", result.TotalNodes)
	}
}

func TestNeighborhoodCycleGuard(t *testing.T) {
	svc, _ := newTestService(t)
	memoir, _ := svc.EnsureMemoir("cycle", "")

	a, _ := svc.upsertConcept(memoir.ID, "a")
	if _, err := svc.Link(LinkOptions{MemoirID: memoir.ID, FromName: "a", ToName: "b", Kind: store.RelationRelatedTo}); err != nil {
		t.Fatalf("Link a-b: %v", err)
	}
	if _, err := svc.Link(LinkOptions{MemoirID: memoir.ID, FromName: "b", ToName: "a", Kind: store.RelationRelatedTo}); err != nil {
		t.Fatalf("Link b-a: %v", err)
	}

	result, err := svc.Neighborhood(NeighborhoodOptions{RootID: a.ID, Depth: 5})
	if err != nil {
		t.Fatalf("Neighborhood: %v", err)
	}
	if result.TotalNodes != 2 {
		t.Errorf("expected cycle guard to cap nodes at 2, got %d", result.TotalNodes)
	}
}

func TestCreateMemoirRejectsDuplicateName(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.CreateMemoir("arch", ""); err != nil {
		t.Fatalf("CreateMemoir: %v", err)
	}
	if _, err := svc.CreateMemoir("arch", ""); !icmerr.Is(err, icmerr.Conflict) {
		t.Fatalf("expected Conflict on duplicate memoir name, got %v", err)
	}
}

func TestAddConceptRejectsDuplicateAndSupportsLabelSearch(t *testing.T) {
	svc, _ := newTestService(t)
	memoir, _ := svc.CreateMemoir("arch", "")

	c, err := svc.AddConcept(AddConceptOptions{
		MemoirID: memoir.ID, Name: "api", Definition: "the HTTP surface", Labels: []string{"layer"},
	})
	if err != nil {
		t.Fatalf("AddConcept: %v", err)
	}
	if _, err := svc.AddConcept(AddConceptOptions{MemoirID: memoir.ID, Name: "api", Definition: "dup"}); !icmerr.Is(err, icmerr.Conflict) {
		t.Fatalf("expected Conflict on duplicate concept name, got %v", err)
	}

	refined, err := svc.RefineConcept(memoir.ID, "api", "the versioned HTTP surface")
	if err != nil {
		t.Fatalf("RefineConcept: %v", err)
	}
	if refined.Summary != "the versioned HTTP surface" {
		t.Errorf("expected refined definition to persist, got %q", refined.Summary)
	}

	hits, err := svc.SearchConcepts(memoir.ID, "", "layer")
	if err != nil {
		t.Fatalf("SearchConcepts: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != c.ID {
		t.Fatalf("expected label search to find api concept, got %d hits", len(hits))
	}

	allHits, err := svc.SearchConceptsAll("versioned")
	if err != nil {
		t.Fatalf("SearchConceptsAll: %v", err)
	}
	if len(allHits) != 1 {
		t.Fatalf("expected cross-memoir search to find 1 concept, got %d", len(allHits))
	}
}

func TestLinkRejectsSelfLoop(t *testing.T) {
	svc, _ := newTestService(t)
	memoir, _ := svc.EnsureMemoir("m", "")
	if _, err := svc.Link(LinkOptions{MemoirID: memoir.ID, FromName: "a", ToName: "a", Kind: store.RelationRelatedTo}); !icmerr.Is(err, icmerr.InvalidInput) {
		t.Fatalf("expected InvalidInput for self-loop, got %v", err)
	}
}
