// ABOUTME: Account commands for signing in to FreshRSS/Miniflux and snapshot sync
// ABOUTME: The configured account decides which backend is authoritative

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/skein/internal/config"
	"github.com/harper/skein/internal/remote/greader"
	"github.com/harper/skein/internal/remote/miniflux"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage sync accounts",
}

var accountGReaderCmd = &cobra.Command{
	Use:   "greader <server-url> <username> <password>",
	Short: "Sign in to a FreshRSS or Google Reader compatible server",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		serverURL, username, password := args[0], args[1], args[2]

		client := greader.NewClient(serverURL, "")
		token, err := client.Login(cmd.Context(), username, password)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}

		cfg.GReader = &config.GReaderAccount{
			ServerURL: serverURL,
			Username:  username,
			Token:     token,
		}
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		color.Green("✓ Signed in to %s as %s", serverURL, username)
		return nil
	},
}

var accountMinifluxCmd = &cobra.Command{
	Use:   "miniflux <endpoint> <api-key>",
	Short: "Sign in to a Miniflux server",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		endpoint, apiKey := args[0], args[1]

		client := miniflux.NewClient(endpoint, apiKey)
		user, err := client.Me()
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}

		cfg.Miniflux = &config.MinifluxAccount{Endpoint: endpoint, APIKey: apiKey}
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		color.Green("✓ Signed in to %s as %s", endpoint, user.Username)
		return nil
	},
}

var accountSnapshotCmd = &cobra.Command{
	Use:   "snapshot <on|off>",
	Short: "Enable or disable snapshot sync through Charm Cloud",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "on":
			cfg.SnapshotSync = true
		case "off":
			cfg.SnapshotSync = false
		default:
			return fmt.Errorf("expected on or off, got %q", args[0])
		}
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		color.Green("✓ Snapshot sync %s", args[0])
		return nil
	},
}

var accountLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out of the aggregator account",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg.GReader = nil
		cfg.Miniflux = nil
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		color.Green("✓ Signed out; falling back to %s backend", activeBackend(cfg))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.AddCommand(accountGReaderCmd)
	accountCmd.AddCommand(accountMinifluxCmd)
	accountCmd.AddCommand(accountSnapshotCmd)
	accountCmd.AddCommand(accountLogoutCmd)
}
