package lifecycle

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/icm-memory/icm/internal/icmerr"
	"github.com/icm-memory/icm/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "icm.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.InitSchema(4); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDecaySkipsCritical(t *testing.T) {
	s := newTestStore(t)
	mgr := NewManager(s)

	now := time.Now().UTC()
	old := now.Add(-30 * 24 * time.Hour)

	critical := &store.Memory{Topic: "a", Summary: "a", Importance: store.Critical, Source: store.SourceManual,
		CreatedAt: old, LastAccessed: old}
	low := &store.Memory{Topic: "b", Summary: "b", Importance: store.Low, Source: store.SourceManual,
		CreatedAt: old, LastAccessed: old}
	if err := s.PutMemory(critical); err != nil {
		t.Fatalf("PutMemory critical: %v", err)
	}
	if err := s.PutMemory(low); err != nil {
		t.Fatalf("PutMemory low: %v", err)
	}

	if _, err := mgr.Decay(now); err != nil {
		t.Fatalf("Decay: %v", err)
	}

	gotCritical, err := s.GetMemory(critical.ID)
	if err != nil {
		t.Fatalf("GetMemory critical: %v", err)
	}
	if gotCritical.Weight != store.WInit {
		t.Errorf("expected critical memory weight unchanged, got %v", gotCritical.Weight)
	}

	gotLow, err := s.GetMemory(low.ID)
	if err != nil {
		t.Fatalf("GetMemory low: %v", err)
	}
	if gotLow.Weight >= store.WInit {
		t.Errorf("expected low-importance memory to decay, got %v", gotLow.Weight)
	}
}

func TestDecayTwiceWithoutAccessDoesNotDoubleCount(t *testing.T) {
	s := newTestStore(t)
	mgr := NewManager(s)

	created := time.Now().UTC()
	m := &store.Memory{Topic: "idle", Summary: "never revisited", Importance: store.Medium, Source: store.SourceManual,
		CreatedAt: created, LastAccessed: created}
	if err := s.PutMemory(m); err != nil {
		t.Fatalf("PutMemory: %v", err)
	}

	day1 := created.Add(24 * time.Hour)
	if _, err := mgr.DecayWithRate(day1, DecayRate); err != nil {
		t.Fatalf("Decay day1: %v", err)
	}
	got, err := s.GetMemory(m.ID)
	if err != nil {
		t.Fatalf("GetMemory after day1: %v", err)
	}
	if diff := got.Weight - 0.95; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected weight ~0.95 after one day, got %v", got.Weight)
	}

	// No access between sweeps — an idle agent's normal case. The second
	// sweep must measure Δd from the first sweep's anchor (1 day), not
	// from last_accessed (which would wrongly read 2 days elapsed).
	day2 := created.Add(48 * time.Hour)
	if _, err := mgr.DecayWithRate(day2, DecayRate); err != nil {
		t.Fatalf("Decay day2: %v", err)
	}
	got, err = s.GetMemory(m.ID)
	if err != nil {
		t.Fatalf("GetMemory after day2: %v", err)
	}
	want := 0.95 * 0.95
	if diff := got.Weight - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected weight ~%v after two single-day sweeps, got %v", want, got.Weight)
	}
}

func TestPruneDryRunLeavesData(t *testing.T) {
	s := newTestStore(t)
	mgr := NewManager(s)

	weak := &store.Memory{Topic: "stale", Summary: "nearly forgotten", Importance: store.Low, Source: store.SourceManual, Weight: 0.01}
	if err := s.PutMemory(weak); err != nil {
		t.Fatalf("PutMemory: %v", err)
	}

	result, err := mgr.Prune(PruneOptions{WeightThreshold: 0.1, DryRun: true})
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if len(result.Candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(result.Candidates))
	}
	if result.Deleted != 0 {
		t.Errorf("dry run should not delete, deleted %d", result.Deleted)
	}
	if _, err := s.GetMemory(weak.ID); err != nil {
		t.Errorf("memory should still exist after dry run: %v", err)
	}
}

func TestPruneExemptsCritical(t *testing.T) {
	s := newTestStore(t)
	mgr := NewManager(s)

	critical := &store.Memory{Topic: "a", Summary: "a", Importance: store.Critical, Source: store.SourceManual, Weight: 0.0001}
	if err := s.PutMemory(critical); err != nil {
		t.Fatalf("PutMemory: %v", err)
	}

	result, err := mgr.Prune(PruneOptions{WeightThreshold: 0.5})
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if len(result.Candidates) != 0 {
		t.Errorf("critical memory should never be a prune candidate, got %+v", result.Candidates)
	}
}

func TestConsolidateMergesAndDeletesOriginals(t *testing.T) {
	s := newTestStore(t)
	mgr := NewManager(s)

	a := &store.Memory{Topic: "merge-me", Summary: "first fact", Keywords: []string{"x"}, Importance: store.Low, Source: store.SourceManual}
	b := &store.Memory{Topic: "merge-me", Summary: "second fact", Keywords: []string{"y"}, Importance: store.High, Source: store.SourceManual}
	if err := s.PutMemory(a); err != nil {
		t.Fatalf("PutMemory a: %v", err)
	}
	if err := s.PutMemory(b); err != nil {
		t.Fatalf("PutMemory b: %v", err)
	}

	result, err := mgr.Consolidate(ConsolidateOptions{Topic: "merge-me"})
	if err != nil {
		t.Fatalf("Consolidate: %v", err)
	}
	if len(result.MergedIDs) != 2 {
		t.Errorf("expected 2 merged ids, got %d", len(result.MergedIDs))
	}

	merged, err := s.GetMemory(result.ResultID)
	if err != nil {
		t.Fatalf("GetMemory merged: %v", err)
	}
	if merged.Importance != store.High {
		t.Errorf("expected merged importance High, got %v", merged.Importance)
	}
	if merged.Weight != store.WInit {
		t.Errorf("expected merged weight reset to WInit, got %v", merged.Weight)
	}

	if _, err := s.GetMemory(a.ID); !icmerr.Is(err, icmerr.NotFound) {
		t.Errorf("expected original a deleted, err=%v", err)
	}
}

func TestConsolidateAlreadyConsolidated(t *testing.T) {
	s := newTestStore(t)
	mgr := NewManager(s)

	if err := s.PutMemory(&store.Memory{Topic: "solo", Summary: "only one", Importance: store.Medium, Source: store.SourceManual}); err != nil {
		t.Fatalf("PutMemory: %v", err)
	}

	_, err := mgr.Consolidate(ConsolidateOptions{Topic: "solo"})
	if !icmerr.Is(err, icmerr.AlreadyConsolidated) {
		t.Fatalf("expected AlreadyConsolidated, got %v", err)
	}
}
