package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/icm-memory/icm/internal/embed"
	"github.com/icm-memory/icm/internal/icmerr"
	"github.com/icm-memory/icm/internal/store"
	"github.com/icm-memory/icm/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show, initialize, or test the active configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPathFlag)
		if err != nil {
			return err
		}
		fmt.Printf("store.backend = %s\n", cfg.Store.Backend)
		fmt.Printf("store.path = %s\n", cfg.Store.Path)
		fmt.Printf("embedder.type = %s\n", cfg.Embedder.Type)
		fmt.Printf("embedder.model = %s\n", cfg.Embedder.Model)
		fmt.Printf("memory.decay_rate = %v\n", cfg.Memory.DecayRate)
		fmt.Printf("memory.prune_threshold = %v\n", cfg.Memory.PruneThreshold)
		fmt.Printf("retriever.bm25_weight = %v\n", cfg.Retriever.BM25Weight)
		fmt.Printf("retriever.vector_weight = %v\n", cfg.Retriever.VectorWeight)
		fmt.Printf("server.transport = %s\n", cfg.Server.Transport)
		fmt.Printf("server.host:port = %s:%d\n", cfg.Server.Host, cfg.Server.Port)
		fmt.Printf("logging.level = %s\n", cfg.Logging.Level)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config.toml to the conventional config path",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPathFlag
		if path == "" {
			path = config.ConfigFilePath()
		}
		if _, err := os.Stat(path); err == nil {
			return icmerr.Newf(icmerr.Conflict, "config file already exists at %s", path)
		}
		if err := os.MkdirAll(config.ConfigPath(), 0755); err != nil {
			return icmerr.Wrap(icmerr.StorageFailure, "create config directory", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTOML), 0644); err != nil {
			return icmerr.Wrap(icmerr.StorageFailure, "write config file", err)
		}
		fmt.Println(path)
		return nil
	},
}

var configTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Load the configuration and verify the store and embedder are reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPathFlag)
		if err != nil {
			return err
		}
		fmt.Println("config: ok")

		if err := cfg.EnsureConfigDir(); err != nil {
			return err
		}
		st, err := store.OpenBackend(cfg.Store.Backend, cfg.Store.Path)
		if err != nil {
			return icmerr.Wrap(icmerr.KindOf(err), "open store", err)
		}
		defer st.Close()
		dim := cfg.Embedder.Dimensions
		if dim == 0 {
			dim = 768
		}
		if err := st.InitSchema(dim); err != nil {
			return icmerr.Wrap(icmerr.KindOf(err), "initialize schema", err)
		}
		fmt.Printf("store: ok (%s)\n", cfg.Store.Path)

		if cfg.Embedder.Type == "ollama" {
			provider := embed.NewOllamaProvider(embed.OllamaConfig{
				BaseURL: cfg.Embedder.BaseURL, Model: cfg.Embedder.Model, Dimension: cfg.Embedder.Dimensions,
			})
			if provider.IsAvailable(cmd.Context()) {
				fmt.Println("embedder: ok")
			} else {
				fmt.Println("embedder: unreachable")
			}
		}
		return nil
	},
}

const defaultConfigTOML = `[store]
backend = "sqlite"
path = ""

[embedder]
type = "ollama"
model = "nomic-embed-text"
base_url = "http://localhost:11434"
dimensions = 768

[memory]
default_importance = "medium"
decay_rate = 0.95
prune_threshold = 0.1
consolidation_threshold = 0.85

[retriever]
bm25_weight = 0.3
vector_weight = 0.7
rerank_candidates = 20
vector_backend = "inprocess"
qdrant_url = ""
qdrant_collection = "icm-memories"

[extraction]
enabled = true
min_score = 3.0
max_facts = 10

[recall]
enabled = true
limit = 15

[server]
transport = "stdio"
host = "localhost"
port = 8420

[logging]
level = "info"
format = "console"
`

func init() {
	configCmd.AddCommand(configShowCmd, configInitCmd, configTestCmd)
}
