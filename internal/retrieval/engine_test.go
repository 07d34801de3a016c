package retrieval

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/icm-memory/icm/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "icm.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.InitSchema(4); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type stubEmbedder struct {
	vectors map[string][]float32
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.vectors[text], nil
}

func TestRecallKeywordOnly(t *testing.T) {
	s := newTestStore(t)
	e := NewEngine(s)

	if err := s.PutMemory(&store.Memory{
		Topic: "rust-ownership", Summary: "ownership tracks a single moving value",
		Keywords: []string{"rust", "ownership"}, Importance: store.Medium, Source: store.SourceManual,
	}); err != nil {
		t.Fatalf("PutMemory: %v", err)
	}
	if err := s.PutMemory(&store.Memory{
		Topic: "go-channels", Summary: "channels coordinate goroutines",
		Keywords: []string{"go", "channels"}, Importance: store.Medium, Source: store.SourceManual,
	}); err != nil {
		t.Fatalf("PutMemory: %v", err)
	}

	results, mode, err := e.Recall(context.Background(), Options{Query: "ownership"})
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if mode != ModeFTSOnly {
		t.Errorf("mode = %v, want %v", mode, ModeFTSOnly)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Memory.Topic != "rust-ownership" {
		t.Errorf("unexpected result topic %q", results[0].Memory.Topic)
	}
}

func TestRecallEmptyQueryRejected(t *testing.T) {
	s := newTestStore(t)
	e := NewEngine(s)
	if _, _, err := e.Recall(context.Background(), Options{Query: ""}); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestRecallReinforcesWeight(t *testing.T) {
	s := newTestStore(t)
	e := NewEngine(s)

	m := &store.Memory{Topic: "t", Summary: "a searchable summary about widgets", Importance: store.Medium, Source: store.SourceManual, Weight: 0.5}
	if err := s.PutMemory(m); err != nil {
		t.Fatalf("PutMemory: %v", err)
	}

	_, _, err := e.Recall(context.Background(), Options{Query: "widgets", Reinforce: true, ReinforcementCoef: 0.1})
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}

	got, err := s.GetMemory(m.ID)
	if err != nil {
		t.Fatalf("GetMemory: %v", err)
	}
	if got.Weight <= 0.5 {
		t.Errorf("expected weight to increase from reinforcement, got %v", got.Weight)
	}
	if got.AccessCount != 1 {
		t.Errorf("expected access count 1, got %d", got.AccessCount)
	}
}

func TestMinMaxNormalizeSingleResultIsOne(t *testing.T) {
	out := minMaxNormalize(map[string]float64{"a": 3.7})
	if out["a"] != 1.0 {
		t.Errorf("expected lone candidate normalized to 1.0, got %v", out["a"])
	}
}

func TestMinMaxNormalizeIdenticalScoresIsHalf(t *testing.T) {
	out := minMaxNormalize(map[string]float64{"a": 2.0, "b": 2.0, "c": 2.0})
	for id, v := range out {
		if v != 0.5 {
			t.Errorf("expected tied candidate %q normalized to 0.5, got %v", id, v)
		}
	}
}

func TestRecallHybridFusion(t *testing.T) {
	s := newTestStore(t)
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"widgets": {1, 0, 0, 0},
	}}
	e := NewEngineWithEmbedder(s, embedder)

	near := &store.Memory{Topic: "t1", Summary: "a note mentioning widgets explicitly",
		Importance: store.Medium, Source: store.SourceManual, Embedding: []float32{1, 0, 0, 0}}
	far := &store.Memory{Topic: "t2", Summary: "unrelated text with no overlap",
		Importance: store.Medium, Source: store.SourceManual, Embedding: []float32{0, 1, 0, 0}}
	if err := s.PutMemory(near); err != nil {
		t.Fatalf("PutMemory near: %v", err)
	}
	if err := s.PutMemory(far); err != nil {
		t.Fatalf("PutMemory far: %v", err)
	}

	results, mode, err := e.Recall(context.Background(), Options{Query: "widgets"})
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if mode != ModeHybrid {
		t.Errorf("mode = %v, want %v", mode, ModeHybrid)
	}
	if len(results) == 0 || results[0].Memory.ID != near.ID {
		t.Fatalf("expected nearest-embedding memory to rank first, got %+v", results)
	}
}
