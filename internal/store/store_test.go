package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "icm.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.InitSchema(8); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenBackendRejectsUnsupported(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "icm.db")
	if _, err := OpenBackend("turso", dbPath); err == nil {
		t.Fatal("expected error for unsupported turso backend")
	}
	s, err := OpenBackend("sqlite", dbPath)
	if err != nil {
		t.Fatalf("OpenBackend sqlite: %v", err)
	}
	s.Close()
}

func TestOpenCreatesFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sub", "icm.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestInitSchemaSetsVersion(t *testing.T) {
	s := newTestStore(t)

	version, err := s.schemaVersion()
	if err != nil {
		t.Fatalf("schemaVersion: %v", err)
	}
	if version != SchemaVersion {
		t.Errorf("expected schema version %d, got %d", SchemaVersion, version)
	}

	dim, err := s.EmbeddingDimension()
	if err != nil {
		t.Fatalf("EmbeddingDimension: %v", err)
	}
	if dim != 8 {
		t.Errorf("expected embedding dimension 8, got %d", dim)
	}
}

func TestMemoryCRUD(t *testing.T) {
	s := newTestStore(t)

	m := &Memory{
		Topic:      "go-concurrency",
		Summary:    "channels are typed conduits",
		Keywords:   []string{"channel", "goroutine"},
		Importance: High,
		Source:     SourceManual,
		Embedding:  []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8},
	}

	if err := s.PutMemory(m); err != nil {
		t.Fatalf("PutMemory: %v", err)
	}
	if m.ID == "" {
		t.Fatal("expected PutMemory to assign an id")
	}

	got, err := s.GetMemory(m.ID)
	if err != nil {
		t.Fatalf("GetMemory: %v", err)
	}
	if got.Summary != m.Summary {
		t.Errorf("summary = %q, want %q", got.Summary, m.Summary)
	}
	if got.Weight != WInit {
		t.Errorf("weight = %v, want %v", got.Weight, WInit)
	}
	if len(got.Embedding) != 8 {
		t.Fatalf("embedding length = %d, want 8", len(got.Embedding))
	}
	if got.Embedding[3] != 0.4 {
		t.Errorf("embedding[3] = %v, want 0.4", got.Embedding[3])
	}

	newWeight := 0.75
	if err := s.UpdateMemory(m.ID, &MemoryUpdate{Weight: &newWeight}); err != nil {
		t.Fatalf("UpdateMemory: %v", err)
	}
	got, err = s.GetMemory(m.ID)
	if err != nil {
		t.Fatalf("GetMemory after update: %v", err)
	}
	if got.Weight != newWeight {
		t.Errorf("weight after update = %v, want %v", got.Weight, newWeight)
	}

	if err := s.DeleteMemory(m.ID); err != nil {
		t.Fatalf("DeleteMemory: %v", err)
	}
	if _, err := s.GetMemory(m.ID); err == nil {
		t.Fatal("expected NotFound after delete")
	}
}

func TestUpdateMemoryNotFound(t *testing.T) {
	s := newTestStore(t)
	w := 0.5
	err := s.UpdateMemory("missing-id", &MemoryUpdate{Weight: &w})
	if err == nil {
		t.Fatal("expected error for missing memory")
	}
}

func TestIterateByTopicOrdersNewestFirst(t *testing.T) {
	s := newTestStore(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		created := base.Add(time.Duration(i) * time.Hour)
		m := &Memory{
			Topic: "loop", Summary: "iteration", Importance: Medium, Source: SourceManual,
			CreatedAt: created,
		}
		if err := s.PutMemory(m); err != nil {
			t.Fatalf("PutMemory: %v", err)
		}
		ids = append(ids, m.ID)
	}

	got, err := s.IterateByTopic("loop")
	if err != nil {
		t.Fatalf("IterateByTopic: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 memories, got %d", len(got))
	}
	want := []string{ids[2], ids[1], ids[0]} // newest created_at first
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("expected newest-first order %v, got %v", want, []string{got[0].ID, got[1].ID, got[2].ID})
		}
	}
}

func TestMemoirConceptRelationGraph(t *testing.T) {
	s := newTestStore(t)

	memoir := &Memoir{Name: "distributed-systems"}
	if err := s.PutMemoir(memoir); err != nil {
		t.Fatalf("PutMemoir: %v", err)
	}

	if err := s.PutMemoir(&Memoir{Name: "distributed-systems"}); err == nil {
		t.Fatal("expected Conflict on duplicate memoir name")
	}

	a := &Concept{MemoirID: memoir.ID, Name: "raft"}
	b := &Concept{MemoirID: memoir.ID, Name: "paxos"}
	if err := s.PutConcept(a); err != nil {
		t.Fatalf("PutConcept a: %v", err)
	}
	if err := s.PutConcept(b); err != nil {
		t.Fatalf("PutConcept b: %v", err)
	}

	if err := s.PutConcept(&Concept{MemoirID: "nonexistent", Name: "x"}); err == nil {
		t.Fatal("expected DanglingReference for nonexistent memoir")
	}

	rel := &Relation{MemoirID: memoir.ID, FromID: a.ID, ToID: b.ID, Kind: RelationAlternativeTo}
	if err := s.PutRelation(rel); err != nil {
		t.Fatalf("PutRelation: %v", err)
	}

	if err := s.PutRelation(&Relation{MemoirID: memoir.ID, FromID: a.ID, ToID: "nonexistent", Kind: RelationAlternativeTo}); err == nil {
		t.Fatal("expected DanglingReference for nonexistent target concept")
	}

	out, err := s.RelationsFrom(a.ID)
	if err != nil {
		t.Fatalf("RelationsFrom: %v", err)
	}
	if len(out) != 1 || out[0].ToID != b.ID {
		t.Fatalf("expected one relation to %s, got %+v", b.ID, out)
	}
}

func TestRelationsFromOrdersByKindThenTargetName(t *testing.T) {
	s := newTestStore(t)

	memoir := &Memoir{Name: "ordering"}
	if err := s.PutMemoir(memoir); err != nil {
		t.Fatalf("PutMemoir: %v", err)
	}

	root := &Concept{MemoirID: memoir.ID, Name: "root"}
	if err := s.PutConcept(root); err != nil {
		t.Fatalf("PutConcept root: %v", err)
	}

	// Created in this order so their ULIDs sort zeta, mid, alpha — the
	// opposite of their names — to prove ordering follows target name,
	// not to_id.
	zeta := &Concept{MemoirID: memoir.ID, Name: "zeta"}
	mid := &Concept{MemoirID: memoir.ID, Name: "mid"}
	alpha := &Concept{MemoirID: memoir.ID, Name: "alpha"}
	for _, c := range []*Concept{zeta, mid, alpha} {
		if err := s.PutConcept(c); err != nil {
			t.Fatalf("PutConcept %s: %v", c.Name, err)
		}
	}
	if !(zeta.ID < mid.ID && mid.ID < alpha.ID) {
		t.Fatalf("expected ULIDs in creation order zeta < mid < alpha, got %s %s %s", zeta.ID, mid.ID, alpha.ID)
	}

	for _, target := range []*Concept{zeta, mid, alpha} {
		if err := s.PutRelation(&Relation{MemoirID: memoir.ID, FromID: root.ID, ToID: target.ID, Kind: RelationRelatedTo}); err != nil {
			t.Fatalf("PutRelation to %s: %v", target.Name, err)
		}
	}

	out, err := s.RelationsFrom(root.ID)
	if err != nil {
		t.Fatalf("RelationsFrom: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 relations, got %d", len(out))
	}
	gotOrder := []string{}
	names := map[string]string{zeta.ID: "zeta", mid.ID: "mid", alpha.ID: "alpha"}
	for _, r := range out {
		gotOrder = append(gotOrder, names[r.ToID])
	}
	want := []string{"alpha", "mid", "zeta"}
	for i := range want {
		if gotOrder[i] != want[i] {
			t.Fatalf("expected target-name order %v, got %v", want, gotOrder)
		}
	}
}
