package extraction

import (
	"github.com/icm-memory/icm/internal/store"
)

// IngestOptions configures a transcript ingest pass (Layer 1). It reuses
// the same Layer 0 scorer — spec.md describes Layer 1 as "the same
// pipeline, host-triggered" rather than a distinct scoring mechanism.
type IngestOptions struct {
	Topic   string
	Source  store.Source
	Extract Options
}

// IngestTranscript scores a raw transcript with Extract and turns every
// surviving Fact into a ready-to-store Memory (caller is responsible for
// calling Store.PutMemory and any embedding backfill).
func IngestTranscript(transcript string, opts IngestOptions) []*store.Memory {
	if opts.Source == "" {
		opts.Source = store.SourceConversation
	}

	facts := Extract(transcript, opts.Extract)
	memories := make([]*store.Memory, 0, len(facts))
	for _, f := range facts {
		keywords := make([]string, len(f.Categories))
		for i, c := range f.Categories {
			keywords[i] = string(c)
		}
		memories = append(memories, &store.Memory{
			Topic:      opts.Topic,
			Summary:    f.Sentence,
			RawExcerpt: f.Sentence,
			Keywords:   keywords,
			Importance: importanceForScore(f.Score),
			Source:     opts.Source,
		})
	}
	return memories
}

// importanceForScore maps a Layer 0 score to an Importance level. Not
// spec.md-mandated math — a coarse, documented bucketing so ingested
// facts aren't all dumped into the same importance bucket.
func importanceForScore(score float64) store.Importance {
	switch {
	case score >= 6:
		return store.High
	case score >= 4:
		return store.Medium
	default:
		return store.Low
	}
}
