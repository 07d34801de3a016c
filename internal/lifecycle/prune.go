package lifecycle

import (
	"github.com/icm-memory/icm/internal/icmerr"
)

// PruneOptions configures a prune sweep.
type PruneOptions struct {
	WeightThreshold float64
	DryRun          bool
}

// PruneCandidate is a memory that would be (or was) removed.
type PruneCandidate struct {
	ID      string
	Topic   string
	Summary string
	Weight  float64
}

// PruneResult reports what a sweep found or did.
type PruneResult struct {
	Candidates []PruneCandidate
	Deleted    int
}

// Prune removes every non-critical memory whose weight has fallen below
// WeightThreshold. Critical memories are never pruned regardless of
// weight, per spec.md's invariant. DryRun reports candidates without
// deleting.
func (m *Manager) Prune(opts PruneOptions) (PruneResult, error) {
	rows, err := m.store.DB().Query(
		`SELECT id, topic, summary, weight FROM memories
		 WHERE weight < ? AND importance != 'critical'
		 ORDER BY weight ASC`,
		opts.WeightThreshold,
	)
	if err != nil {
		return PruneResult{}, icmerr.Wrap(icmerr.StorageFailure, "query prune candidates", err)
	}
	defer rows.Close()

	var result PruneResult
	for rows.Next() {
		var c PruneCandidate
		if err := rows.Scan(&c.ID, &c.Topic, &c.Summary, &c.Weight); err != nil {
			return PruneResult{}, icmerr.Wrap(icmerr.StorageFailure, "scan prune candidate", err)
		}
		result.Candidates = append(result.Candidates, c)
	}
	if err := rows.Err(); err != nil {
		return PruneResult{}, icmerr.Wrap(icmerr.StorageFailure, "iterate prune candidates", err)
	}

	if opts.DryRun {
		return result, nil
	}

	for _, c := range result.Candidates {
		if err := m.store.DeleteMemory(c.ID); err != nil {
			if icmerr.Is(err, icmerr.NotFound) {
				continue // already gone, e.g. concurrently deleted
			}
			return result, icmerr.Wrap(icmerr.StorageFailure, "delete pruned memory", err)
		}
		result.Deleted++
	}
	return result, nil
}
