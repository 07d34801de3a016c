package vecstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/icm-memory/icm/internal/store"
)

func TestInProcessIndexSearch(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "icm.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	if err := s.InitSchema(4); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}

	near := &store.Memory{Topic: "a", Summary: "near", Importance: store.Medium, Source: store.SourceManual, Embedding: []float32{1, 0, 0, 0}}
	far := &store.Memory{Topic: "b", Summary: "far", Importance: store.Medium, Source: store.SourceManual, Embedding: []float32{0, 1, 0, 0}}
	if err := s.PutMemory(near); err != nil {
		t.Fatalf("PutMemory near: %v", err)
	}
	if err := s.PutMemory(far); err != nil {
		t.Fatalf("PutMemory far: %v", err)
	}

	idx := NewInProcessIndex(s)
	matches, err := idx.Search(context.Background(), []float32{1, 0, 0, 0}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].ID != near.ID {
		t.Errorf("expected nearest match first, got %s", matches[0].ID)
	}
}
