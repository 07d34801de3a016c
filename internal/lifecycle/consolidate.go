package lifecycle

import (
	"strings"

	"github.com/icm-memory/icm/internal/icmerr"
	"github.com/icm-memory/icm/internal/store"
)

// ConsolidateOptions configures a topic merge.
type ConsolidateOptions struct {
	Topic         string
	KeepOriginals bool
}

// ConsolidateResult reports the outcome of a merge.
type ConsolidateResult struct {
	MergedIDs []string
	ResultID  string
}

var importanceRank = map[store.Importance]int{
	store.Low: 0, store.Medium: 1, store.High: 2, store.Critical: 3,
}

// Consolidate merges every memory under Topic into a single memory: summary
// fields concatenated, importance taken as the max across the set, keywords
// unioned, weight reset to WInit. Originals are deleted unless
// KeepOriginals is set. related_ids on other memories pointing at a merged
// original are left dangling — see DESIGN.md's Open Question decision.
func (m *Manager) Consolidate(opts ConsolidateOptions) (ConsolidateResult, error) {
	members, err := m.store.IterateByTopic(opts.Topic)
	if err != nil {
		return ConsolidateResult{}, icmerr.Wrap(icmerr.StorageFailure, "list topic memories", err)
	}
	if len(members) == 0 {
		return ConsolidateResult{}, icmerr.Newf(icmerr.NotFound, "no memories found for topic %q", opts.Topic)
	}
	if len(members) == 1 {
		return ConsolidateResult{}, icmerr.Newf(icmerr.AlreadyConsolidated, "topic %q already has a single memory", opts.Topic)
	}

	var summaries []string
	maxImportance := store.Low
	keywordSet := map[string]struct{}{}
	var mergedIDs []string

	for _, mem := range members {
		summaries = append(summaries, mem.Summary)
		if importanceRank[mem.Importance] > importanceRank[maxImportance] {
			maxImportance = mem.Importance
		}
		for _, kw := range mem.Keywords {
			keywordSet[kw] = struct{}{}
		}
		mergedIDs = append(mergedIDs, mem.ID)
	}

	keywords := make([]string, 0, len(keywordSet))
	for kw := range keywordSet {
		keywords = append(keywords, kw)
	}

	merged := &store.Memory{
		Topic:      opts.Topic,
		Summary:    strings.Join(summaries, " "),
		Keywords:   keywords,
		Importance: maxImportance,
		Source:     store.SourceManual,
		RelatedIDs: mergedIDs,
		Weight:     store.WInit,
	}
	if err := m.store.PutMemory(merged); err != nil {
		return ConsolidateResult{}, icmerr.Wrap(icmerr.StorageFailure, "insert consolidated memory", err)
	}

	if !opts.KeepOriginals {
		for _, id := range mergedIDs {
			if err := m.store.DeleteMemory(id); err != nil {
				log.Warn("failed to delete consolidated original", "memory_id", id, "error", err)
			}
		}
	}

	return ConsolidateResult{MergedIDs: mergedIDs, ResultID: merged.ID}, nil
}
