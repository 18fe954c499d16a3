// ABOUTME: Root Cobra command and global flags
// ABOUTME: Sets up CLI structure, loads config, and opens the local store

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/harper/skein/internal/config"
	"github.com/harper/skein/internal/storage"
)

var (
	dataDir string
	verbose bool
	cfg     *config.Config
	store   storage.Store
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "skein",
	Short: "Feed reader that syncs everywhere",
	Long: `
███████╗██╗  ██╗███████╗██╗███╗   ██╗
██╔════╝██║ ██╔╝██╔════╝██║████╗  ██║
███████╗█████╔╝ █████╗  ██║██╔██╗ ██║
╚════██║██╔═██╗ ██╔══╝  ██║██║╚██╗██║
███████║██║  ██╗███████╗██║██║ ╚████║
╚══════╝╚═╝  ╚═╝╚══════╝╚═╝╚═╝  ╚═══╝

RSS/Atom feed reader with multi-device sync.

Reads feeds directly, through FreshRSS or Miniflux, or syncs
read state between devices through Charm Cloud snapshots.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if dataDir != "" {
			cfg.DataDir = dataDir
		}

		store, err = cfg.OpenStorage()
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if store != nil {
			if err := store.Close(); err != nil {
				return fmt.Errorf("failed to close storage: %w", err)
			}
		}
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default: ~/.local/share/skein)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
}
