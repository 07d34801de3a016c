package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/icm-memory/icm/internal/icmerr"
)

// OllamaConfig configures an OllamaProvider. Adapted from the teacher's
// config.OllamaConfig (pkg/config/config.go) — same fields, renamed to
// ICM's embedder section.
type OllamaConfig struct {
	BaseURL   string
	Model     string
	Dimension int
}

// OllamaProvider generates embeddings via a local Ollama server's
// /api/embeddings endpoint. Adapted from the teacher's OllamaClient
// (internal/ai/ollama.go), trimmed to only the embedding half — ICM has no
// chat/generate use case.
type OllamaProvider struct {
	baseURL    string
	model      string
	dimension  int
	httpClient *http.Client
}

// NewOllamaProvider constructs a provider with the teacher's defaults
// (localhost:11434, nomic-embed-text) filled in where cfg leaves them
// blank.
func NewOllamaProvider(cfg OllamaConfig) *OllamaProvider {
	p := &OllamaProvider{
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		dimension:  cfg.Dimension,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	if p.baseURL == "" {
		p.baseURL = "http://localhost:11434"
	}
	if p.model == "" {
		p.model = "nomic-embed-text"
	}
	if p.dimension == 0 {
		p.dimension = 768
	}
	return p
}

type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed calls Ollama's /api/embeddings endpoint and downcasts the result
// to float32, matching the precision internal/store persists embeddings
// at.
func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{Model: p.model, Prompt: text})
	if err != nil {
		return nil, icmerr.Wrap(icmerr.InvalidInput, "marshal embedding request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, icmerr.Wrap(icmerr.Unavailable, "build embedding request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, icmerr.Wrap(icmerr.Unavailable, "embedding request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, icmerr.Newf(icmerr.Unavailable, "embedding request failed with status %d: %s", resp.StatusCode, string(b))
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, icmerr.Wrap(icmerr.Unavailable, "decode embedding response", err)
	}

	out := make([]float32, len(parsed.Embedding))
	for i, v := range parsed.Embedding {
		out[i] = float32(v)
	}
	if len(out) != p.dimension {
		return nil, icmerr.Newf(icmerr.SchemaMismatch,
			"embedding provider returned dimension %d, expected %d", len(out), p.dimension)
	}
	return out, nil
}

// Dimension returns the fixed vector length this provider produces.
func (p *OllamaProvider) Dimension() int { return p.dimension }

// IsAvailable pings Ollama's /api/tags endpoint, mirroring the teacher's
// OllamaClient.IsAvailable health check.
func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
