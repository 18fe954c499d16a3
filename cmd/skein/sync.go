// ABOUTME: Sync, push, and refresh commands driving the orchestrator
// ABOUTME: Progress from the coordinator state machine prints as it happens

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/skein/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync with the configured backend",
	Long: `Pull from and push to the authoritative backend.

With a FreshRSS or Miniflux account the aggregator is the source of
truth. With snapshot sync enabled the Charm Cloud snapshot is. With
neither, feeds are fetched directly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := buildEngine()
		if err != nil {
			return fmt.Errorf("failed to build sync engine: %w", err)
		}

		faint := color.New(color.Faint).SprintFunc()
		fmt.Printf("Syncing via %s backend...\n", activeBackend(cfg))

		cancel := engine.Subscribe(func(s sync.SyncState) {
			if s.Status == sync.StatusInProgress && s.Progress > 0 {
				fmt.Printf("%s\n", faint(s.String()))
			}
		})
		defer cancel()

		if !engine.Pull(cmd.Context()) {
			state := engine.State()
			return fmt.Errorf("sync failed: %v", state.Err)
		}

		color.Green("✓ Sync complete")
		return nil
	},
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push pending local changes",
	Long:  "Push pending read/bookmark changes and catalogue edits without pulling.",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := buildEngine()
		if err != nil {
			return fmt.Errorf("failed to build sync engine: %w", err)
		}

		if !engine.Push(cmd.Context()) {
			return fmt.Errorf("push failed: %v", engine.State().Err)
		}
		color.Green("✓ Push complete")
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh [feed-url]",
	Short: "Refresh feeds, bypassing refresh intervals for named feeds",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := buildEngine()
		if err != nil {
			return fmt.Errorf("failed to build sync engine: %w", err)
		}

		if len(args) == 1 {
			feed, err := findFeed(args[0])
			if err != nil {
				return err
			}
			if !engine.PullFeed(cmd.Context(), feed.ID) {
				return fmt.Errorf("refresh failed: %v", engine.State().Err)
			}
		} else {
			if !engine.Pull(cmd.Context()) {
				return fmt.Errorf("refresh failed: %v", engine.State().Err)
			}
		}
		color.Green("✓ Refresh complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(refreshCmd)
}
