package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/icm-memory/icm/internal/graph"
	"github.com/icm-memory/icm/internal/icmerr"
	"github.com/icm-memory/icm/internal/lifecycle"
	"github.com/icm-memory/icm/internal/retrieval"
	"github.com/icm-memory/icm/internal/store"
	"github.com/spf13/cobra"
)

// newTestApp builds an *app against a temp-dir store, bypassing config.Load
// and buildApp entirely so these tests don't touch $HOME or $ICM_CONFIG.
func newTestApp(t *testing.T) *app {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "icm.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.InitSchema(4); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return &app{
		store:     s,
		engine:    retrieval.NewEngine(s),
		lifecycle: lifecycle.NewManager(s),
		graph:     graph.NewService(s),
	}
}

// ctxFor gives a command the background context RunE expects, the way
// rootCmd.ExecuteContext would, without invoking cobra's flag parser.
func ctxFor(cmd *cobra.Command) *cobra.Command {
	cmd.SetContext(context.Background())
	return cmd
}

func TestStoreThenRecallRoundTrip(t *testing.T) {
	current = newTestApp(t)

	err := storeCmd.RunE(ctxFor(storeCmd), []string{"onboarding", "new hires get a laptop on day one"})
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	recallLimit = 5
	err = recallCmd.RunE(ctxFor(recallCmd), []string{"laptop"})
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
}

func TestForgetMissingMemoryReturnsNotFound(t *testing.T) {
	current = newTestApp(t)

	err := forgetCmd.RunE(ctxFor(forgetCmd), []string{"does-not-exist"})
	if icmerr.KindOf(err) != icmerr.NotFound {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestDecayAndPruneRunWithoutError(t *testing.T) {
	current = newTestApp(t)

	decayFactor = 0
	if err := decayCmd.RunE(ctxFor(decayCmd), nil); err != nil {
		t.Fatalf("decay: %v", err)
	}

	pruneThreshold = 0.05
	pruneDryRun = true
	if err := pruneCmd.RunE(ctxFor(pruneCmd), nil); err != nil {
		t.Fatalf("prune: %v", err)
	}
}

func TestMemoirCreateAndShow(t *testing.T) {
	current = newTestApp(t)

	if err := memoirCreateCmd.RunE(ctxFor(memoirCreateCmd), []string{"go-concurrency"}); err != nil {
		t.Fatalf("memoir create: %v", err)
	}
	if err := memoirShowCmd.RunE(ctxFor(memoirShowCmd), []string{"go-concurrency"}); err != nil {
		t.Fatalf("memoir show: %v", err)
	}
}

func TestExitCodeFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{icmerr.New(icmerr.InvalidInput, "bad"), 1},
		{icmerr.New(icmerr.NotFound, "missing"), 2},
		{icmerr.New(icmerr.Unavailable, "down"), 3},
		{icmerr.New(icmerr.Cancelled, "interrupted"), 130},
		{icmerr.New(icmerr.StorageFailure, "disk"), 4},
	}
	for _, c := range cases {
		if got := exitCodeFor(c.err); got != c.want {
			t.Errorf("exitCodeFor(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}
