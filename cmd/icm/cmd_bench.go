package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/icm-memory/icm/internal/retrieval"
	"github.com/icm-memory/icm/internal/store"
)

var (
	benchMemories int
	benchRecalls  int
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run a synthetic store+recall benchmark against the configured store",
	Long: `Stores --memories synthetic memories, runs --recalls recall queries
against them, and reports store/recall latency percentiles. A scaled-down
stand-in for the teacher's LOCOMO benchmark harness — no dataset, no
autonomous scoring, just enough signal to sanity-check a deployment.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		storeLatencies := make([]time.Duration, 0, benchMemories)
		for i := 0; i < benchMemories; i++ {
			start := time.Now()
			m := &store.Memory{
				Topic:      fmt.Sprintf("bench-topic-%d", i%10),
				Summary:    fmt.Sprintf("synthetic benchmark memory number %d about topic %d", i, i%10),
				Keywords:   []string{"bench", fmt.Sprintf("topic-%d", i%10)},
				Importance: store.Medium,
				Source:     store.SourceManual,
			}
			if err := current.store.PutMemory(m); err != nil {
				return err
			}
			storeLatencies = append(storeLatencies, time.Since(start))
		}

		recallLatencies := make([]time.Duration, 0, benchRecalls)
		for i := 0; i < benchRecalls; i++ {
			start := time.Now()
			if _, _, err := current.engine.Recall(cmd.Context(), retrieval.Options{
				Query: fmt.Sprintf("topic %d", i%10), Limit: 5,
			}); err != nil {
				return err
			}
			recallLatencies = append(recallLatencies, time.Since(start))
		}

		fmt.Printf("store: n=%d p50=%s p95=%s p99=%s\n", benchMemories,
			percentile(storeLatencies, 50), percentile(storeLatencies, 95), percentile(storeLatencies, 99))
		fmt.Printf("recall: n=%d p50=%s p95=%s p99=%s\n", benchRecalls,
			percentile(recallLatencies, 50), percentile(recallLatencies, 95), percentile(recallLatencies, 99))
		return nil
	},
}

// percentile returns the pth percentile of samples, grounded on the
// sort-then-index approach the retrieved corpus's latency trackers use.
func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := (len(sorted) * p) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func init() {
	benchCmd.Flags().IntVar(&benchMemories, "memories", 200, "number of synthetic memories to store")
	benchCmd.Flags().IntVar(&benchRecalls, "recalls", 50, "number of recall queries to run")
}
