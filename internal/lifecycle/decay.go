// Package lifecycle implements ICM's weight decay, pruning, and
// consolidation sweeps — the mechanisms that keep a long-running memory
// store from growing without bound or drowning recall in stale entries.
package lifecycle

import (
	"math"
	"time"

	"github.com/icm-memory/icm/internal/icmerr"
	"github.com/icm-memory/icm/internal/logging"
	"github.com/icm-memory/icm/internal/store"
)

var log = logging.GetLogger("lifecycle")

// DecayRate is r in w <- w * r^(days * k(importance)). spec.md's default.
const DecayRate = 0.95

// AutoDecayInterval is how long a store may go without a decay sweep
// before Manager.MaybeDecay runs one automatically.
const AutoDecayInterval = 24 * time.Hour

// Manager runs lifecycle sweeps against a Store.
type Manager struct {
	store *store.Store
}

// NewManager constructs a lifecycle Manager.
func NewManager(s *store.Store) *Manager {
	return &Manager{store: s}
}

// DecayResult summarizes one sweep for logging/CLI output.
type DecayResult struct {
	Considered int
	Decayed    int
}

// Decay applies the exponential decay formula to every non-critical
// memory's weight, based on days elapsed since its own last decay tick.
// Grounded on the math.Pow(relevanceDecay, daysSinceAccess) pattern found
// in the retrieved corpus's evolving-memory manager.
func (m *Manager) Decay(now time.Time) (DecayResult, error) {
	return m.DecayWithRate(now, DecayRate)
}

// DecayWithRate is Decay with an overridden base rate, for the CLI's
// `decay --factor` flag. Each memory tracks its own last_decayed_at so
// repeated sweeps measure Δd from the prior tick rather than from
// last_accessed, which an idle agent never updates between sweeps —
// anchoring on last_accessed would double-count the same elapsed time on
// every call after the first.
func (m *Manager) DecayWithRate(now time.Time, rate float64) (DecayResult, error) {
	rows, err := m.store.DB().Query(`SELECT id, weight, last_decayed_at, importance FROM memories`)
	if err != nil {
		return DecayResult{}, icmerr.Wrap(icmerr.StorageFailure, "list memories for decay", err)
	}

	type row struct {
		id          string
		weight      float64
		lastDecayed time.Time
		importance  store.Importance
	}
	var all []row
	for rows.Next() {
		var r row
		var importance string
		if err := rows.Scan(&r.id, &r.weight, &r.lastDecayed, &importance); err != nil {
			rows.Close()
			return DecayResult{}, icmerr.Wrap(icmerr.StorageFailure, "scan memory for decay", err)
		}
		r.importance = store.Importance(importance)
		all = append(all, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return DecayResult{}, icmerr.Wrap(icmerr.StorageFailure, "iterate memories for decay", err)
	}
	rows.Close()

	result := DecayResult{Considered: len(all)}
	for _, r := range all {
		k := r.importance.DecayRateMultiplier()
		if k == 0 {
			continue // critical memories are frozen
		}
		days := now.Sub(r.lastDecayed).Hours() / 24
		if days <= 0 {
			continue
		}
		newWeight := r.weight * math.Pow(rate, days*k)
		if err := m.store.UpdateMemory(r.id, &store.MemoryUpdate{Weight: &newWeight, LastDecayedAt: &now}); err != nil {
			log.Warn("decay update failed", "memory_id", r.id, "error", err)
			continue
		}
		result.Decayed++
	}

	if err := m.store.SetLastDecayAt(now); err != nil {
		return result, icmerr.Wrap(icmerr.StorageFailure, "record decay timestamp", err)
	}
	return result, nil
}

// MaybeDecay runs Decay only if AutoDecayInterval has elapsed since the
// last sweep — the gate spec.md requires before every retrieval.
func (m *Manager) MaybeDecay(now time.Time) (bool, error) {
	last, err := m.store.LastDecayAt()
	if err != nil {
		return false, err
	}
	if !last.IsZero() && now.Sub(last) < AutoDecayInterval {
		return false, nil
	}
	if _, err := m.Decay(now); err != nil {
		return false, err
	}
	return true, nil
}
