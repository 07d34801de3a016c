package retrieval

import (
	"context"

	"github.com/icm-memory/icm/internal/store"
)

// embedBatchSize matches spec.md §5's backpressure note: batch embedding
// requests chunk at 32 items.
const embedBatchSize = 32

// EmbedAll backfills embeddings for every memory that does not yet have
// one, in chunks of embedBatchSize. A single memory's embedder failure is
// logged and counted as skipped rather than aborting the whole run — this
// is a maintenance operation (icm_memory_embed_all), not a blocking read
// path, so partial progress is acceptable.
func (e *Engine) EmbedAll(ctx context.Context) (embedded, skipped int, err error) {
	if e.embedder == nil {
		return 0, 0, nil
	}

	ids, err := e.store.ListMemoriesWithoutEmbedding()
	if err != nil {
		return 0, 0, err
	}

	for start := 0; start < len(ids); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		for _, id := range ids[start:end] {
			m, getErr := e.store.GetMemory(id)
			if getErr != nil {
				skipped++
				continue
			}
			vec, embedErr := e.embedder.Embed(ctx, m.Summary)
			if embedErr != nil {
				log.Warn("embed_all: embedding failed, skipping", "memory_id", id, "error", embedErr)
				skipped++
				continue
			}
			updateErr := e.store.UpdateMemory(id, &store.MemoryUpdate{Embedding: &vec})
			if updateErr != nil {
				log.Warn("embed_all: store update failed, skipping", "memory_id", id, "error", updateErr)
				skipped++
				continue
			}
			if e.vectorIndex != nil {
				if upsertErr := e.vectorIndex.Upsert(ctx, id, vec); upsertErr != nil {
					log.Warn("embed_all: vector index upsert failed", "memory_id", id, "error", upsertErr)
				}
			}
			embedded++
		}
	}
	return embedded, skipped, nil
}
