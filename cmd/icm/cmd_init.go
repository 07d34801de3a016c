package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/icm-memory/icm/internal/icmerr"
	"github.com/icm-memory/icm/internal/store"
	"github.com/icm-memory/icm/pkg/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap a fresh ICM install: write a default config and create the store",
	Long: `Creates ~/.config/icm/config.toml (unless --config points elsewhere) if
it doesn't already exist, then opens the store to run its migrations, so a
fresh install is ready for "icm serve" without any other setup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPathFlag
		if path == "" {
			path = config.ConfigFilePath()
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.MkdirAll(config.ConfigPath(), 0755); err != nil {
				return icmerr.Wrap(icmerr.StorageFailure, "create config directory", err)
			}
			if err := os.WriteFile(path, []byte(defaultConfigTOML), 0644); err != nil {
				return icmerr.Wrap(icmerr.StorageFailure, "write config file", err)
			}
			fmt.Printf("wrote %s\n", path)
		} else {
			fmt.Printf("config already exists at %s\n", path)
		}

		cfg, err := config.Load(configPathFlag)
		if err != nil {
			return err
		}
		if dbPathFlag != "" {
			cfg.Store.Path = dbPathFlag
		}
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
			return err
		}
		fmt.Printf("store ready at %s\n", cfg.Store.Path)
		return nil
	},
}
