package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config is ICM's complete configuration, loaded from a TOML file at
// $ICM_CONFIG or ~/.config/icm/config.toml (spec.md §6). OPENAI_API_KEY and
// TURSO_AUTH_TOKEN are applied to their sections on every load, and ICM_DB
// sets the default store path. Other ICM_* variables are bound through
// viper's AutomaticEnv with no key replacer, so a dotted key such as
// store.path is looked up as ICM_STORE.PATH; when no config file is found,
// Load returns DefaultConfig and reads no ICM_* variable beyond ICM_DB.
// Structure follows the teacher's
// viper-backed pkg/config/config.go, swapped from YAML to TOML.
type Config struct {
	Store      StoreConfig      `mapstructure:"store"`
	Embedder   EmbedderConfig   `mapstructure:"embedder"`
	Memory     MemoryConfig     `mapstructure:"memory"`
	Retriever  RetrieverConfig  `mapstructure:"retriever"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Recall     RecallConfig     `mapstructure:"recall"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// StoreConfig configures the persistence backend. "turso" is accepted and
// validated (spec.md §6 names store.url/auth_token and TURSO_AUTH_TOKEN as
// config surface) but store.OpenBackend rejects it at open time: no libsql/Turso
// driver is part of ICM's dependency stack, so only "sqlite" actually opens.
type StoreConfig struct {
	Backend   string `mapstructure:"backend"` // "sqlite" or "turso"
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// EmbedderConfig configures the embedding provider.
type EmbedderConfig struct {
	Type       string `mapstructure:"type"` // "ollama", "openai", "none"
	Model      string `mapstructure:"model"`
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	Dimensions int    `mapstructure:"dimensions"`
}

// MemoryConfig holds the lifecycle manager's decay/prune/consolidation
// settings. internal/lifecycle does not read them: decay uses
// lifecycle.DecayRate (or `decay --factor`) and prune uses
// `prune --threshold`; the values are loaded and shown by `config show`.
type MemoryConfig struct {
	DefaultImportance       string             `mapstructure:"default_importance"`
	DecayRate               float64            `mapstructure:"decay_rate"`
	PruneThreshold          float64            `mapstructure:"prune_threshold"`
	ConsolidationThreshold  float64            `mapstructure:"consolidation_threshold"`
	DecayMultipliers        map[string]float64 `mapstructure:"decay_multipliers"`
}

// RetrieverConfig holds the hybrid-recall fusion settings and selects which
// vecstore.VectorIndex backs the vector half of recall. Only the vector
// backend fields reach the engine (through cmd/icm's buildApp);
// BM25Weight, VectorWeight and RerankCandidates are validated and shown
// but not passed into retrieval.Options, which applies its own defaults.
type RetrieverConfig struct {
	BM25Weight       float64 `mapstructure:"bm25_weight"`
	VectorWeight     float64 `mapstructure:"vector_weight"`
	RerankCandidates int     `mapstructure:"rerank_candidates"`

	VectorBackend    string `mapstructure:"vector_backend"` // "inprocess" or "qdrant"
	QdrantURL        string `mapstructure:"qdrant_url"`
	QdrantCollection string `mapstructure:"qdrant_collection"`
}

// ExtractionConfig configures the rule-based fact extraction pipeline.
type ExtractionConfig struct {
	Enabled         bool               `mapstructure:"enabled"`
	MinScore        float64            `mapstructure:"min_score"`
	MaxFacts        int                `mapstructure:"max_facts"`
	CategoryWeights map[string]float64 `mapstructure:"category_weights"`
}

// RecallConfig holds the automatic context-injection settings. No command
// reads them: `recall-context` takes its limit from its own --limit flag.
type RecallConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Limit   int  `mapstructure:"limit"`
}

// ServerConfig configures the MCP/HTTP server transport.
type ServerConfig struct {
	Transport string `mapstructure:"transport"` // "stdio" or "http"
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
}

// LoggingConfig configures structured logging output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns ICM's documented defaults (spec.md §5, §6).
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: "sqlite",
			Path:    DatabasePath(),
		},
		Embedder: EmbedderConfig{
			Type:       "ollama",
			Model:      "nomic-embed-text",
			BaseURL:    "http://localhost:11434",
			Dimensions: 768,
		},
		Memory: MemoryConfig{
			DefaultImportance:      "medium",
			DecayRate:              0.95,
			PruneThreshold:         0.1,
			ConsolidationThreshold: 0.85,
			DecayMultipliers: map[string]float64{
				"critical": 0,
				"high":     0.5,
				"medium":   1,
				"low":      2,
			},
		},
		Retriever: RetrieverConfig{
			BM25Weight:       0.3,
			VectorWeight:     0.7,
			RerankCandidates: 20,
			VectorBackend:    "inprocess",
			QdrantCollection: "icm-memories",
		},
		Extraction: ExtractionConfig{
			Enabled:  true,
			MinScore: 3.0,
			MaxFacts: 10,
		},
		Recall: RecallConfig{
			Enabled: true,
			Limit:   15,
		},
		Server: ServerConfig{
			Transport: "stdio",
			Host:      "localhost",
			Port:      8420,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a TOML file, falling back to documented
// defaults when none is found. Search order: the explicit path argument (if
// non-empty), $ICM_CONFIG, then ~/.config/icm/config.toml.
func Load(explicitPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	setDefaults(v)
	bindEnv(v)

	switch {
	case explicitPath != "":
		v.SetConfigFile(explicitPath)
	case os.Getenv("ICM_CONFIG") != "":
		v.SetConfigFile(os.Getenv("ICM_CONFIG"))
	default:
		v.SetConfigName("config")
		v.AddConfigPath(ConfigPath())
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
		cfg := DefaultConfig()
		applyAPIKeyEnv(cfg)
		return cfg, nil
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	applyAPIKeyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("ICM")
	v.AutomaticEnv()
}

// applyAPIKeyEnv wires the two non-ICM_-prefixed overrides spec.md §6 names
// explicitly: OPENAI_API_KEY for the embedder, TURSO_AUTH_TOKEN for the
// store.
func applyAPIKeyEnv(cfg *Config) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.Embedder.APIKey = key
	}
	if tok := os.Getenv("TURSO_AUTH_TOKEN"); tok != "" {
		cfg.Store.AuthToken = tok
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("embedder.type", d.Embedder.Type)
	v.SetDefault("embedder.model", d.Embedder.Model)
	v.SetDefault("embedder.base_url", d.Embedder.BaseURL)
	v.SetDefault("embedder.dimensions", d.Embedder.Dimensions)
	v.SetDefault("memory.default_importance", d.Memory.DefaultImportance)
	v.SetDefault("memory.decay_rate", d.Memory.DecayRate)
	v.SetDefault("memory.prune_threshold", d.Memory.PruneThreshold)
	v.SetDefault("memory.consolidation_threshold", d.Memory.ConsolidationThreshold)
	v.SetDefault("memory.decay_multipliers", d.Memory.DecayMultipliers)
	v.SetDefault("retriever.bm25_weight", d.Retriever.BM25Weight)
	v.SetDefault("retriever.vector_weight", d.Retriever.VectorWeight)
	v.SetDefault("retriever.rerank_candidates", d.Retriever.RerankCandidates)
	v.SetDefault("retriever.vector_backend", d.Retriever.VectorBackend)
	v.SetDefault("retriever.qdrant_url", d.Retriever.QdrantURL)
	v.SetDefault("retriever.qdrant_collection", d.Retriever.QdrantCollection)
	v.SetDefault("extraction.enabled", d.Extraction.Enabled)
	v.SetDefault("extraction.min_score", d.Extraction.MinScore)
	v.SetDefault("extraction.max_facts", d.Extraction.MaxFacts)
	v.SetDefault("recall.enabled", d.Recall.Enabled)
	v.SetDefault("recall.limit", d.Recall.Limit)
	v.SetDefault("server.transport", d.Server.Transport)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// Validate checks invariants Load cannot express through viper defaults
// alone.
func (c *Config) Validate() error {
	if c.Store.Backend != "sqlite" && c.Store.Backend != "turso" {
		return fmt.Errorf("store.backend must be 'sqlite' or 'turso'")
	}
	if c.Store.Backend == "sqlite" && c.Store.Path == "" {
		return fmt.Errorf("store.path is required when store.backend is sqlite")
	}
	if c.Store.Backend == "turso" && c.Store.URL == "" {
		return fmt.Errorf("store.url is required when store.backend is turso")
	}
	if c.Retriever.VectorBackend != "inprocess" && c.Retriever.VectorBackend != "qdrant" {
		return fmt.Errorf("retriever.vector_backend must be 'inprocess' or 'qdrant'")
	}
	if c.Retriever.VectorBackend == "qdrant" && c.Retriever.QdrantURL == "" {
		return fmt.Errorf("retriever.qdrant_url is required when retriever.vector_backend is qdrant")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"console": true, "json": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: console, json")
	}
	if c.Server.Transport != "stdio" && c.Server.Transport != "http" {
		return fmt.Errorf("server.transport must be 'stdio' or 'http'")
	}
	if c.Retriever.BM25Weight < 0 || c.Retriever.VectorWeight < 0 {
		return fmt.Errorf("retriever weights must be non-negative")
	}
	return nil
}

// EnsureConfigDir creates the store's parent directory if it doesn't exist.
func (c *Config) EnsureConfigDir() error {
	if c.Store.Backend != "sqlite" {
		return nil
	}
	dir := filepath.Dir(c.Store.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	return nil
}

// ConfigPath returns the directory ICM's config and default database live
// under: $XDG_CONFIG_HOME/icm or ~/.config/icm.
func ConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "icm")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "icm")
}

// ConfigFilePath returns the default config.toml path under ConfigPath.
func ConfigFilePath() string {
	return filepath.Join(ConfigPath(), "config.toml")
}

// DatabasePath returns the default SQLite database path, overridable by
// $ICM_DB or --db.
func DatabasePath() string {
	if db := os.Getenv("ICM_DB"); db != "" {
		return db
	}
	return filepath.Join(ConfigPath(), "icm.db")
}
