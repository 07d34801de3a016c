package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/icm-memory/icm/internal/icmerr"
	"github.com/icm-memory/icm/internal/lifecycle"
	"github.com/icm-memory/icm/internal/retrieval"
	"github.com/icm-memory/icm/internal/store"
)

var (
	storeImportance string
	storeKeywords   []string
	storeRawExcerpt string

	recallTopic     string
	recallKeyword   string
	recallLimit     int
	recallMinWeight float64

	consolidateKeepOriginals bool
)

var storeCmd = &cobra.Command{
	Use:   "store <topic> <content>",
	Short: "Store a new memory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		topic, content := args[0], args[1]
		importance := store.Importance(storeImportance)
		if importance == "" {
			importance = store.Medium
		}
		if !importance.Valid() {
			return icmerr.Newf(icmerr.InvalidInput, "invalid importance: %s", storeImportance)
		}

		m := &store.Memory{
			Topic:      topic,
			Summary:    content,
			RawExcerpt: storeRawExcerpt,
			Keywords:   storeKeywords,
			Importance: importance,
			Source:     store.SourceManual,
		}
		if current.embedder != nil {
			if vec, err := current.embedder.Embed(cmd.Context(), content); err == nil {
				m.Embedding = vec
			}
		}
		if err := current.store.PutMemory(m); err != nil {
			return err
		}
		fmt.Println(m.ID)
		return nil
	},
}

var recallCmd = &cobra.Command{
	Use:   "recall <query>",
	Short: "Hybrid keyword+vector recall over stored memories",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		results, mode, err := current.engine.Recall(cmd.Context(), retrieval.Options{
			Query: args[0], Topic: recallTopic, Keyword: recallKeyword,
			Limit: recallLimit, MinWeight: recallMinWeight, Reinforce: true,
		})
		if err != nil {
			return err
		}
		fmt.Printf("mode=%s\n", mode)
		for _, r := range results {
			fmt.Printf("%s\t%.3f\t%s\t%s\n", r.Memory.ID, r.Score, r.Memory.Topic, r.Memory.Summary)
		}
		return nil
	},
}

var forgetCmd = &cobra.Command{
	Use:   "forget <id>",
	Short: "Delete a memory by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return current.engine.Forget(cmd.Context(), args[0])
	},
}

var consolidateCmd = &cobra.Command{
	Use:   "consolidate <topic>",
	Short: "Merge every memory under a topic into one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := current.lifecycle.Consolidate(lifecycle.ConsolidateOptions{
			Topic: args[0], KeepOriginals: consolidateKeepOriginals,
		})
		if err != nil {
			return err
		}
		fmt.Printf("%s\tabsorbed=%d\n", result.ResultID, len(result.MergedIDs))
		return nil
	},
}

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List every topic and how many memories it holds",
	RunE: func(cmd *cobra.Command, args []string) error {
		counts, err := current.store.ListTopicsWithCounts()
		if err != nil {
			return err
		}
		for _, tc := range counts {
			fmt.Printf("%s\t%d\n", tc.Topic, tc.Count)
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List memories, optionally restricted to a topic",
	RunE: func(cmd *cobra.Command, args []string) error {
		topic, _ := cmd.Flags().GetString("topic")
		memories, err := current.store.ListMemories(topic)
		if err != nil {
			return err
		}
		for _, m := range memories {
			fmt.Printf("%s\t%s\t%.3f\t%s\n", m.ID, m.Topic, m.Weight, strings.ReplaceAll(m.Summary, "\n", " "))
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Report corpus-wide memory aggregates",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := current.store.Stats()
		if err != nil {
			return err
		}
		fmt.Printf("total_memories=%d total_topics=%d avg_weight=%.3f oldest=%s newest=%s\n",
			s.TotalMemories, s.TotalTopics, s.AvgWeight, s.Oldest.Format("2006-01-02"), s.Newest.Format("2006-01-02"))
		return nil
	},
}

var embedAllCmd = &cobra.Command{
	Use:   "embed-all",
	Short: "Backfill embeddings for every memory missing one",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !current.engine.HasEmbedder() {
			return icmerr.New(icmerr.Unavailable, "no embedder configured")
		}
		embedded, skipped, err := current.engine.EmbedAll(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("embedded=%d skipped=%d\n", embedded, skipped)
		return nil
	},
}

func init() {
	storeCmd.Flags().StringVar(&storeImportance, "importance", "medium", "critical|high|medium|low")
	storeCmd.Flags().StringSliceVar(&storeKeywords, "keywords", nil, "comma-separated keywords")
	storeCmd.Flags().StringVar(&storeRawExcerpt, "raw-excerpt", "", "verbatim source excerpt")

	recallCmd.Flags().StringVar(&recallTopic, "topic", "", "restrict to one topic")
	recallCmd.Flags().StringVar(&recallKeyword, "keyword", "", "restrict to memories carrying this keyword")
	recallCmd.Flags().IntVar(&recallLimit, "limit", 5, "maximum results (1-20)")
	recallCmd.Flags().Float64Var(&recallMinWeight, "min-weight", 0, "minimum current weight")

	consolidateCmd.Flags().BoolVar(&consolidateKeepOriginals, "keep-originals", false, "keep the original memories instead of deleting them")

	listCmd.Flags().String("topic", "", "restrict to one topic")

	rootCmd.AddCommand(embedAllCmd)
}
