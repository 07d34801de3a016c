package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/icm-memory/icm/internal/graph"
	"github.com/icm-memory/icm/internal/icmerr"
	"github.com/icm-memory/icm/internal/store"
)

var (
	memoirDescription string

	addConceptMemoir     string
	addConceptDefinition string
	addConceptLabels     []string

	refineMemoir string

	searchMemoir string
	searchLabel  string

	linkMemoir string
	linkKind   string

	inspectMemoir string
	inspectDepth  int
)

var memoirCmd = &cobra.Command{
	Use:   "memoir",
	Short: "Manage memoirs and the concept/relation graph within them",
}

var memoirCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new memoir",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := current.graph.CreateMemoir(args[0], memoirDescription)
		if err != nil {
			return err
		}
		fmt.Println(m.ID)
		return nil
	},
}

var memoirListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every memoir",
	RunE: func(cmd *cobra.Command, args []string) error {
		memoirs, err := current.graph.ListMemoirs()
		if err != nil {
			return err
		}
		for _, m := range memoirs {
			fmt.Printf("%s\t%s\t%s\n", m.ID, m.Name, m.Description)
		}
		return nil
	},
}

var memoirShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a memoir and every concept it contains",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, concepts, err := current.graph.ShowMemoir(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\n", m.Name, m.Description)
		for _, c := range concepts {
			fmt.Printf("  %s\t%s\n", c.Name, c.Summary)
		}
		return nil
	},
}

var memoirAddConceptCmd = &cobra.Command{
	Use:   "add-concept <name>",
	Short: "Add a new concept to a memoir",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		memoir, err := current.store.GetMemoirByName(addConceptMemoir)
		if err != nil {
			return err
		}
		c, err := current.graph.AddConcept(graph.AddConceptOptions{
			MemoirID: memoir.ID, Name: args[0], Definition: addConceptDefinition, Labels: addConceptLabels,
		})
		if err != nil {
			return err
		}
		fmt.Println(c.ID)
		return nil
	},
}

var memoirRefineCmd = &cobra.Command{
	Use:   "refine <concept> <definition>",
	Short: "Overwrite a concept's definition",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		memoir, err := current.store.GetMemoirByName(refineMemoir)
		if err != nil {
			return err
		}
		c, err := current.graph.RefineConcept(memoir.ID, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Println(c.Summary)
		return nil
	},
}

var memoirSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search one memoir's concepts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		memoir, err := current.store.GetMemoirByName(searchMemoir)
		if err != nil {
			return err
		}
		hits, err := current.graph.SearchConcepts(memoir.ID, args[0], searchLabel)
		if err != nil {
			return err
		}
		for _, c := range hits {
			fmt.Printf("%s\t%s\n", c.Name, c.Summary)
		}
		return nil
	},
}

var memoirSearchAllCmd = &cobra.Command{
	Use:   "search-all <query>",
	Short: "Search concepts across every memoir",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hits, err := current.graph.SearchConceptsAll(args[0])
		if err != nil {
			return err
		}
		for _, c := range hits {
			fmt.Printf("%s\t%s\t%s\n", c.MemoirID, c.Name, c.Summary)
		}
		return nil
	},
}

var memoirLinkCmd = &cobra.Command{
	Use:   "link <from> <to>",
	Short: "Create a typed directed relation between two concepts",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		memoir, err := current.store.GetMemoirByName(linkMemoir)
		if err != nil {
			return err
		}
		kind := store.RelationKind(linkKind)
		if !kind.Valid() {
			return icmerr.Newf(icmerr.InvalidInput, "invalid relation kind: %s", linkKind)
		}
		rel, err := current.graph.Link(graph.LinkOptions{
			MemoirID: memoir.ID, FromName: args[0], ToName: args[1], Kind: kind,
		})
		if err != nil {
			return err
		}
		fmt.Println(rel.ID)
		return nil
	},
}

var memoirInspectCmd = &cobra.Command{
	Use:   "inspect <concept>",
	Short: "Run a bounded breadth-first traversal from a concept",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		memoir, err := current.store.GetMemoirByName(inspectMemoir)
		if err != nil {
			return err
		}
		root, err := current.graph.FindConceptByName(memoir.ID, args[0])
		if err != nil {
			return err
		}
		result, err := current.graph.Neighborhood(graph.NeighborhoodOptions{RootID: root.ID, Depth: inspectDepth})
		if err != nil {
			return err
		}
		fmt.Printf("root=%s max_depth=%d nodes=%d\n", root.Name, result.MaxDepth, result.TotalNodes)
		for _, e := range result.Edges {
			to, err := current.store.GetConcept(e.Relation.ToID)
			if err != nil {
				continue
			}
			fmt.Printf("  [%d] -%s-> %s\n", e.Depth, e.Relation.Kind, to.Name)
		}
		return nil
	},
}

func init() {
	memoirCreateCmd.Flags().StringVar(&memoirDescription, "description", "", "memoir description")

	memoirAddConceptCmd.Flags().StringVar(&addConceptMemoir, "memoir", "", "memoir name")
	memoirAddConceptCmd.Flags().StringVar(&addConceptDefinition, "definition", "", "concept definition")
	memoirAddConceptCmd.Flags().StringSliceVar(&addConceptLabels, "labels", nil, "comma-separated classification labels")
	memoirAddConceptCmd.MarkFlagRequired("memoir")
	memoirAddConceptCmd.MarkFlagRequired("definition")

	memoirRefineCmd.Flags().StringVar(&refineMemoir, "memoir", "", "memoir name")
	memoirRefineCmd.MarkFlagRequired("memoir")

	memoirSearchCmd.Flags().StringVar(&searchMemoir, "memoir", "", "memoir name")
	memoirSearchCmd.Flags().StringVar(&searchLabel, "label", "", "restrict to concepts carrying this label")
	memoirSearchCmd.MarkFlagRequired("memoir")

	memoirLinkCmd.Flags().StringVar(&linkMemoir, "memoir", "", "memoir name")
	memoirLinkCmd.Flags().StringVar(&linkKind, "kind", "", "relation kind")
	memoirLinkCmd.MarkFlagRequired("memoir")
	memoirLinkCmd.MarkFlagRequired("kind")

	memoirInspectCmd.Flags().StringVar(&inspectMemoir, "memoir", "", "memoir name")
	memoirInspectCmd.Flags().IntVar(&inspectDepth, "depth", 1, "traversal depth, capped at 5")
	memoirInspectCmd.MarkFlagRequired("memoir")

	memoirCmd.AddCommand(
		memoirCreateCmd, memoirListCmd, memoirShowCmd, memoirAddConceptCmd,
		memoirRefineCmd, memoirSearchCmd, memoirSearchAllCmd, memoirLinkCmd, memoirInspectCmd,
	)
}
