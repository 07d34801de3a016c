package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/icm-memory/icm/internal/lifecycle"
)

var (
	decayFactor     float64
	pruneThreshold  float64
	pruneDryRun     bool
)

var decayCmd = &cobra.Command{
	Use:   "decay",
	Short: "Apply weight decay to every non-critical memory",
	RunE: func(cmd *cobra.Command, args []string) error {
		rate := decayFactor
		if rate == 0 {
			rate = lifecycle.DecayRate
		}
		result, err := current.lifecycle.DecayWithRate(time.Now(), rate)
		if err != nil {
			return err
		}
		fmt.Printf("considered=%d decayed=%d\n", result.Considered, result.Decayed)
		return nil
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove non-critical memories below a weight threshold",
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := current.lifecycle.Prune(lifecycle.PruneOptions{
			WeightThreshold: pruneThreshold, DryRun: pruneDryRun,
		})
		if err != nil {
			return err
		}
		for _, c := range result.Candidates {
			fmt.Printf("%s\t%.3f\t%s\n", c.ID, c.Weight, c.Topic)
		}
		fmt.Printf("deleted=%d\n", result.Deleted)
		return nil
	},
}

func init() {
	decayCmd.Flags().Float64Var(&decayFactor, "factor", 0, "override the base decay rate (default 0.95)")
	pruneCmd.Flags().Float64Var(&pruneThreshold, "threshold", 0.1, "weight threshold below which memories are pruned")
	pruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", false, "report candidates without deleting")
}
