package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Store.Backend != "sqlite" {
		t.Errorf("Expected Store.Backend=sqlite, got %s", cfg.Store.Backend)
	}
	if cfg.Embedder.Model != "nomic-embed-text" {
		t.Errorf("Expected Embedder.Model=nomic-embed-text, got %s", cfg.Embedder.Model)
	}
	if cfg.Memory.DecayRate != 0.95 {
		t.Errorf("Expected Memory.DecayRate=0.95, got %v", cfg.Memory.DecayRate)
	}
	if cfg.Retriever.BM25Weight != 0.3 || cfg.Retriever.VectorWeight != 0.7 {
		t.Errorf("Expected retriever weights 0.3/0.7, got %v/%v", cfg.Retriever.BM25Weight, cfg.Retriever.VectorWeight)
	}
	if cfg.Server.Transport != "stdio" {
		t.Errorf("Expected Server.Transport=stdio, got %s", cfg.Server.Transport)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Expected Logging.Level=info, got %s", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		expectErr bool
	}{
		{name: "valid config", modify: func(c *Config) {}, expectErr: false},
		{name: "empty sqlite path", modify: func(c *Config) { c.Store.Path = "" }, expectErr: true},
		{name: "turso without url", modify: func(c *Config) { c.Store.Backend = "turso"; c.Store.URL = "" }, expectErr: true},
		{name: "qdrant backend without url", modify: func(c *Config) { c.Retriever.VectorBackend = "qdrant" }, expectErr: true},
		{name: "invalid logging level", modify: func(c *Config) { c.Logging.Level = "invalid" }, expectErr: true},
		{name: "invalid logging format", modify: func(c *Config) { c.Logging.Format = "xml" }, expectErr: true},
		{name: "invalid transport", modify: func(c *Config) { c.Server.Transport = "grpc" }, expectErr: true},
		{name: "negative retriever weight", modify: func(c *Config) { c.Retriever.BM25Weight = -1 }, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.expectErr && err == nil {
				t.Error("Expected error, got nil")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}
		})
	}
}

func TestLoadConfig_NoFile(t *testing.T) {
	tmpDir := t.TempDir()
	oldHome := os.Getenv("XDG_CONFIG_HOME")
	os.Setenv("XDG_CONFIG_HOME", tmpDir)
	defer os.Setenv("XDG_CONFIG_HOME", oldHome)
	os.Unsetenv("ICM_CONFIG")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Expected no error with missing config, got: %v", err)
	}
	if cfg == nil {
		t.Fatal("Expected config, got nil")
	}
	if cfg.Server.Port != 8420 {
		t.Errorf("Expected default port 8420, got %d", cfg.Server.Port)
	}
}

func TestLoadConfig_WithFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	configContent := `
[store]
backend = "sqlite"
path = "/tmp/test-icm.db"

[embedder]
type = "ollama"
model = "nomic-embed-text"

[memory]
decay_rate = 0.9

[server]
transport = "http"
port = 9090

[logging]
level = "debug"
format = "json"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Store.Path != "/tmp/test-icm.db" {
		t.Errorf("Expected store path=/tmp/test-icm.db, got %s", cfg.Store.Path)
	}
	if cfg.Memory.DecayRate != 0.9 {
		t.Errorf("Expected decay_rate=0.9, got %v", cfg.Memory.DecayRate)
	}
	if cfg.Server.Transport != "http" {
		t.Errorf("Expected transport=http, got %s", cfg.Server.Transport)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port=9090, got %d", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected level=debug, got %s", cfg.Logging.Level)
	}
}

func TestEnsureConfigDir(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := &Config{
		Store: StoreConfig{
			Backend: "sqlite",
			Path:    filepath.Join(tmpDir, "subdir", "icm.db"),
		},
	}

	if err := cfg.EnsureConfigDir(); err != nil {
		t.Fatalf("EnsureConfigDir failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "subdir")); os.IsNotExist(err) {
		t.Error("Store directory was not created")
	}
}

func TestConfigPath(t *testing.T) {
	tmpDir := "/tmp/icm-config-path-test"
	oldXDG := os.Getenv("XDG_CONFIG_HOME")
	os.Setenv("XDG_CONFIG_HOME", tmpDir)
	defer os.Setenv("XDG_CONFIG_HOME", oldXDG)

	path := ConfigPath()
	if path != filepath.Join(tmpDir, "icm") {
		t.Errorf("Expected %s, got %s", filepath.Join(tmpDir, "icm"), path)
	}
}

func TestDatabasePath(t *testing.T) {
	oldDB := os.Getenv("ICM_DB")
	os.Unsetenv("ICM_DB")
	defer os.Setenv("ICM_DB", oldDB)

	path := DatabasePath()
	if filepath.Base(path) != "icm.db" {
		t.Errorf("Expected database file named icm.db, got %s", filepath.Base(path))
	}

	os.Setenv("ICM_DB", "/tmp/override.db")
	if DatabasePath() != "/tmp/override.db" {
		t.Errorf("Expected ICM_DB override to take effect")
	}
}
