package vecstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/icm-memory/icm/internal/icmerr"
)

// QdrantConfig configures a QdrantIndex. Adapted from the teacher's
// config.QdrantConfig (pkg/config/config.go).
type QdrantConfig struct {
	URL            string
	CollectionName string
	Dimension      int
}

// QdrantIndex is an optional remote VectorIndex backend, adapted from the
// teacher's QdrantClient (internal/vector/qdrant.go) — same HTTP wire
// format and HNSW collection setup, trimmed to the Upsert/Delete/Search
// trio the VectorIndex interface needs (payload filtering and collection
// introspection, which the teacher exposed for its own search UI, aren't
// part of ICM's surface).
type QdrantIndex struct {
	baseURL        string
	collectionName string
	dimension      int
	httpClient     *http.Client
}

// NewQdrantIndex constructs a client against a running Qdrant instance.
func NewQdrantIndex(cfg QdrantConfig) *QdrantIndex {
	idx := &QdrantIndex{
		baseURL:        cfg.URL,
		collectionName: cfg.CollectionName,
		dimension:      cfg.Dimension,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
	}
	if idx.baseURL == "" {
		idx.baseURL = "http://localhost:6333"
	}
	if idx.collectionName == "" {
		idx.collectionName = "icm-memories"
	}
	return idx
}

// IsAvailable pings Qdrant's /collections endpoint.
func (idx *QdrantIndex) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, idx.baseURL+"/collections", nil)
	if err != nil {
		return false
	}
	resp, err := idx.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// EnsureCollection creates the collection with cosine-distance HNSW
// indexing if it does not already exist, matching the teacher's
// InitCollection (m=16, ef_construct=100).
func (idx *QdrantIndex) EnsureCollection(ctx context.Context) error {
	exists, err := idx.collectionExists(ctx)
	if err != nil {
		return icmerr.Wrap(icmerr.Unavailable, "check qdrant collection", err)
	}
	if exists {
		return nil
	}

	body, err := json.Marshal(map[string]any{
		"vectors": map[string]any{
			"size":     idx.dimension,
			"distance": "Cosine",
		},
		"hnsw_config": map[string]any{
			"m":            16,
			"ef_construct": 100,
		},
	})
	if err != nil {
		return icmerr.Wrap(icmerr.InvalidInput, "marshal collection create request", err)
	}

	url := fmt.Sprintf("%s/collections/%s", idx.baseURL, idx.collectionName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return icmerr.Wrap(icmerr.Unavailable, "build collection create request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := idx.httpClient.Do(req)
	if err != nil {
		return icmerr.Wrap(icmerr.Unavailable, "create qdrant collection", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return icmerr.Newf(icmerr.Unavailable, "create collection failed with status %d: %s", resp.StatusCode, string(b))
	}
	return nil
}

func (idx *QdrantIndex) collectionExists(ctx context.Context) (bool, error) {
	url := fmt.Sprintf("%s/collections/%s", idx.baseURL, idx.collectionName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	resp, err := idx.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

// Upsert writes a single embedding point.
func (idx *QdrantIndex) Upsert(ctx context.Context, id string, vector []float32) error {
	body, err := json.Marshal(map[string]any{
		"points": []map[string]any{
			{"id": id, "vector": vector},
		},
	})
	if err != nil {
		return icmerr.Wrap(icmerr.InvalidInput, "marshal upsert request", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points", idx.baseURL, idx.collectionName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return icmerr.Wrap(icmerr.Unavailable, "build upsert request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := idx.httpClient.Do(req)
	if err != nil {
		return icmerr.Wrap(icmerr.Unavailable, "upsert request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return icmerr.Newf(icmerr.Unavailable, "upsert failed with status %d: %s", resp.StatusCode, string(b))
	}
	return nil
}

// Delete removes a point by id. Per DESIGN.md's Open Question decision,
// callers treat a failure here as best-effort: the SQLite delete that
// triggered it is not rolled back.
func (idx *QdrantIndex) Delete(ctx context.Context, id string) error {
	body, err := json.Marshal(map[string]any{"points": []string{id}})
	if err != nil {
		return icmerr.Wrap(icmerr.InvalidInput, "marshal delete request", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/delete", idx.baseURL, idx.collectionName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return icmerr.Wrap(icmerr.Unavailable, "build delete request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := idx.httpClient.Do(req)
	if err != nil {
		return icmerr.Wrap(icmerr.Unavailable, "delete request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return icmerr.Newf(icmerr.Unavailable, "delete failed with status %d: %s", resp.StatusCode, string(b))
	}
	return nil
}

// Search performs cosine similarity search against the remote collection.
func (idx *QdrantIndex) Search(ctx context.Context, vector []float32, limit int) ([]Match, error) {
	if len(vector) != idx.dimension {
		return nil, icmerr.Newf(icmerr.InvalidInput, "vector dimension mismatch: expected %d, got %d", idx.dimension, len(vector))
	}
	if limit <= 0 {
		limit = 10
	}

	body, err := json.Marshal(map[string]any{"vector": vector, "limit": limit})
	if err != nil {
		return nil, icmerr.Wrap(icmerr.InvalidInput, "marshal search request", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", idx.baseURL, idx.collectionName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, icmerr.Wrap(icmerr.Unavailable, "build search request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := idx.httpClient.Do(req)
	if err != nil {
		return nil, icmerr.Wrap(icmerr.Unavailable, "search request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, icmerr.Newf(icmerr.Unavailable, "search failed with status %d: %s", resp.StatusCode, string(b))
	}

	var parsed struct {
		Result []struct {
			ID    any     `json:"id"`
			Score float64 `json:"score"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, icmerr.Wrap(icmerr.Unavailable, "decode search response", err)
	}

	matches := make([]Match, len(parsed.Result))
	for i, r := range parsed.Result {
		var id string
		switch v := r.ID.(type) {
		case string:
			id = v
		default:
			id = fmt.Sprintf("%v", v)
		}
		matches[i] = Match{ID: id, Score: r.Score}
	}
	return matches, nil
}
