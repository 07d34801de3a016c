package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/icm-memory/icm/internal/extraction"
	"github.com/icm-memory/icm/internal/icmerr"
	"github.com/icm-memory/icm/internal/retrieval"
	"github.com/icm-memory/icm/internal/store"
)

var (
	extractTopic  string
	extractText   string
	extractDryRun bool

	recallContextLimit int
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Run the rule-based fact extractor over a transcript",
	Long: `Scores a transcript's sentences with the Layer 0/1 rule-based extractor
and stores the surviving facts as memories. Reads -t text, or stdin when -t
is omitted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text := extractText
		if text == "" {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return icmerr.Wrap(icmerr.InvalidInput, "read transcript from stdin", err)
			}
			text = string(data)
		}
		if text == "" {
			return icmerr.New(icmerr.InvalidInput, "no transcript text provided")
		}

		extractOpts := extraction.Options{
			MinScore: current.cfg.Extraction.MinScore,
			MaxFacts: current.cfg.Extraction.MaxFacts,
		}
		memories := extraction.IngestTranscript(text, extraction.IngestOptions{
			Topic: extractTopic, Extract: extractOpts,
		})

		for _, m := range memories {
			fmt.Printf("[%s] %s\n", m.Importance, m.Summary)
		}
		if extractDryRun {
			return nil
		}
		for _, m := range memories {
			if err := current.store.PutMemory(m); err != nil {
				return err
			}
		}
		fmt.Printf("stored=%d\n", len(memories))
		return nil
	},
}

var recallContextCmd = &cobra.Command{
	Use:   "recall-context <query>",
	Short: "Recall memories and render them as Layer 2 context-injection text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		results, _, err := current.engine.Recall(cmd.Context(), retrieval.Options{
			Query: args[0], Limit: recallContextLimit, Reinforce: true,
		})
		if err != nil {
			return err
		}
		memories := make([]*store.Memory, 0, len(results))
		for _, r := range results {
			memories = append(memories, r.Memory)
		}
		fmt.Print(extraction.FormatContext(memories))
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVarP(&extractTopic, "topic", "p", "general", "topic to store extracted facts under")
	extractCmd.Flags().StringVarP(&extractText, "text", "t", "", "transcript text (reads stdin if omitted)")
	extractCmd.Flags().BoolVar(&extractDryRun, "dry-run", false, "print candidates without storing them")

	recallContextCmd.Flags().IntVar(&recallContextLimit, "limit", 15, "maximum memories to inject")
}
