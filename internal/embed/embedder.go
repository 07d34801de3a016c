// Package embed provides the pluggable embedding-provider interface
// internal/retrieval's hybrid recall vector half depends on.
package embed

import "context"

// Provider turns text into a fixed-dimension embedding vector. A Store's
// embedding dimension (internal/store.Store.EmbeddingDimension) is set at
// InitSchema time and every Provider used against it must agree with it.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}
