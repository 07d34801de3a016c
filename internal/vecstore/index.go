// Package vecstore defines the VectorIndex backend boundary and its
// default in-process implementation. spec.md §4.2 documents brute-force
// cosine scanning over the memories table as the retrieval algorithm;
// VectorIndex exists so an operator may swap in a remote ANN service
// (see qdrant.go) without that algorithm changing for the default path.
package vecstore

import (
	"context"

	"github.com/icm-memory/icm/internal/store"
)

// VectorIndex is the embedding-search backend internal/retrieval.Engine
// calls for the vector half of recall, and upserts into or deletes from in
// EmbedAll and Forget.
type VectorIndex interface {
	Upsert(ctx context.Context, id string, vector []float32) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, vector []float32, limit int) ([]Match, error)
}

// Match is one scored hit from a VectorIndex search.
type Match struct {
	ID    string
	Score float64
}

// InProcessIndex is the default VectorIndex: it does not maintain any
// separate storage and simply re-reads embeddings from the Store on every
// search with a brute-force cosine scan. retrieval.NewEngine installs it
// unless SetVectorIndex replaces it, so the default path needs no remote
// service.
type InProcessIndex struct {
	store *store.Store
}

// NewInProcessIndex wraps a Store as a VectorIndex.
func NewInProcessIndex(s *store.Store) *InProcessIndex {
	return &InProcessIndex{store: s}
}

// Upsert is a no-op: embeddings already live on the memories row itself.
func (idx *InProcessIndex) Upsert(ctx context.Context, id string, vector []float32) error {
	return nil
}

// Delete is a no-op for the same reason.
func (idx *InProcessIndex) Delete(ctx context.Context, id string) error {
	return nil
}

// Search scans every embedded memory and returns the top matches by
// cosine similarity.
func (idx *InProcessIndex) Search(ctx context.Context, vector []float32, limit int) ([]Match, error) {
	rows, err := idx.store.DB().QueryContext(ctx, `SELECT id, embedding FROM memories WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, err
		}
		vec := decodeEmbedding(blob)
		if len(vec) != len(vector) {
			continue
		}
		matches = append(matches, Match{ID: id, Score: cosine(vector, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortByScoreDesc(matches)
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}
