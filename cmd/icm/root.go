package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/icm-memory/icm/internal/embed"
	"github.com/icm-memory/icm/internal/graph"
	"github.com/icm-memory/icm/internal/icmerr"
	"github.com/icm-memory/icm/internal/lifecycle"
	"github.com/icm-memory/icm/internal/logging"
	"github.com/icm-memory/icm/internal/retrieval"
	"github.com/icm-memory/icm/internal/store"
	"github.com/icm-memory/icm/internal/vecstore"
	"github.com/icm-memory/icm/pkg/config"
)

// Version is set during build.
var Version = "0.1.0"

var (
	configPathFlag string
	dbPathFlag     string
	logLevelFlag   string
)

// app bundles every component a subcommand needs, built once in
// PersistentPreRunE and torn down in PersistentPostRunE. Grounded on the
// teacher's root.go, which opens a single database.Database per process
// invocation instead of per-command.
type app struct {
	cfg       *config.Config
	store     *store.Store
	engine    *retrieval.Engine
	lifecycle *lifecycle.Manager
	graph     *graph.Service
	embedder  embed.Provider
}

var current *app

var rootCmd = &cobra.Command{
	Use:           "icm",
	Short:         "Infinite context memory service for AI agents",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `icm is a persistent memory service for AI agents: hybrid recall over
stored memories, weight decay and pruning, topic consolidation, and a
concept/relation knowledge graph. It speaks stdio-framed JSON-RPC 2.0 as an
MCP tool server and exposes the same operations as a CLI.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "init" || (cmd.Parent() != nil && cmd.Parent().Name() == "config") {
			return nil
		}
		a, err := buildApp()
		if err != nil {
			return err
		}
		current = a
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if current != nil && current.store != nil {
			return current.store.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPathFlag, "config", "", "config file path (default $ICM_CONFIG or ~/.config/icm/config.toml)")
	rootCmd.PersistentFlags().StringVar(&dbPathFlag, "db", "", "database file path (default $ICM_DB or store.path from config)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(
		storeCmd, recallCmd, forgetCmd, consolidateCmd, topicsCmd, listCmd, statsCmd,
		decayCmd, pruneCmd,
		extractCmd, recallContextCmd,
		memoirCmd,
		serveCmd,
		configCmd,
		initCmd,
		benchCmd,
	)
}

func buildApp() (*app, error) {
	cfg, err := config.Load(configPathFlag)
	if err != nil {
		return nil, icmerr.Wrap(icmerr.InvalidInput, "load configuration", err)
	}
	if dbPathFlag != "" {
		cfg.Store.Path = dbPathFlag
	}
	if logLevelFlag != "" {
		cfg.Logging.Level = logLevelFlag
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: "stderr"})

	if err := cfg.EnsureConfigDir(); err != nil {
		return nil, icmerr.Wrap(icmerr.StorageFailure, "prepare store directory", err)
	}

	st, err := store.OpenBackend(cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		return nil, icmerr.Wrap(icmerr.KindOf(err), "open store", err)
	}
	dim := cfg.Embedder.Dimensions
	if dim == 0 {
		dim = 768
	}
	if err := st.InitSchema(dim); err != nil {
		st.Close()
		return nil, err
	}

	var embedder embed.Provider
	if cfg.Embedder.Type == "ollama" {
		embedder = embed.NewOllamaProvider(embed.OllamaConfig{
			BaseURL:   cfg.Embedder.BaseURL,
			Model:     cfg.Embedder.Model,
			Dimension: cfg.Embedder.Dimensions,
		})
	}

	engine := retrieval.NewEngine(st)
	if embedder != nil {
		engine.SetEmbedder(embedder)
	}
	if cfg.Retriever.VectorBackend == "qdrant" {
		engine.SetVectorIndex(vecstore.NewQdrantIndex(vecstore.QdrantConfig{
			URL:            cfg.Retriever.QdrantURL,
			CollectionName: cfg.Retriever.QdrantCollection,
			Dimension:      dim,
		}))
	}

	return &app{
		cfg:       cfg,
		store:     st,
		engine:    engine,
		lifecycle: lifecycle.NewManager(st),
		graph:     graph.NewService(st),
		embedder:  embedder,
	}, nil
}

// Execute runs the root command and maps the resulting error's icmerr.Kind
// to one of spec.md §6's exit codes.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		os.Exit(0)
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(exitCodeFor(err))
}

func exitCodeFor(err error) int {
	switch icmerr.KindOf(err) {
	case icmerr.InvalidInput:
		return 1
	case icmerr.NotFound:
		return 2
	case icmerr.Unavailable:
		return 3
	case icmerr.Cancelled:
		return 130
	default:
		return 4
	}
}
