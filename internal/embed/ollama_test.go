package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaProviderEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(embeddingResponse{Embedding: []float64{0.1, 0.2, 0.3, 0.4}})
	}))
	defer srv.Close()

	p := NewOllamaProvider(OllamaConfig{BaseURL: srv.URL, Dimension: 4})
	vec, err := p.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 4 {
		t.Fatalf("expected 4 dims, got %d", len(vec))
	}
	if vec[1] != float32(0.2) {
		t.Errorf("vec[1] = %v, want 0.2", vec[1])
	}
}

func TestOllamaProviderDimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embeddingResponse{Embedding: []float64{0.1, 0.2}})
	}))
	defer srv.Close()

	p := NewOllamaProvider(OllamaConfig{BaseURL: srv.URL, Dimension: 8})
	if _, err := p.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestOllamaProviderDefaults(t *testing.T) {
	p := NewOllamaProvider(OllamaConfig{})
	if p.Dimension() != 768 {
		t.Errorf("expected default dimension 768, got %d", p.Dimension())
	}
	if p.baseURL != "http://localhost:11434" {
		t.Errorf("expected default base url, got %q", p.baseURL)
	}
}
