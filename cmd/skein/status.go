// ABOUTME: Status command showing backend, watermarks, and pending changes
// ABOUTME: Also triggers the new-article notification check when enabled

package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/skein/internal/sync"
	"github.com/harper/skein/internal/timeutil"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync status",
	RunE: func(cmd *cobra.Command, args []string) error {
		faint := color.New(color.Faint).SprintFunc()

		fmt.Printf("Backend:       %s\n", activeBackend(cfg))

		meta, err := store.GetSyncMeta()
		if err != nil {
			return fmt.Errorf("failed to read sync metadata: %w", err)
		}
		fmt.Printf("Last sync:     %s\n", formatTime(meta.LastSyncedAt))
		fmt.Printf("Last caught up: %s\n", formatTime(meta.LastRefreshedAt))
		if meta.LastStatus != "" {
			fmt.Printf("Last result:   %s\n", meta.LastStatus)
		}

		pending, err := store.PostsWithLocalChanges(1000, 0)
		if err != nil {
			return err
		}
		fmt.Printf("Pending push:  %d posts\n", len(pending))

		unread, err := store.UnreadCount(nil, timeutil.StartOfToday(), time.Time{})
		if err != nil {
			return err
		}
		fmt.Printf("Unread today:  %d\n", unread)

		if cfg.NotifyOnNewArticles {
			notifier := sync.NewNewArticleNotifier(store, printNotifier{}, func() bool {
				return cfg.NotifyOnNewArticles
			}, logger)
			if err := notifier.Check(); err != nil {
				fmt.Println(faint("notification check failed: " + err.Error()))
			}
		}
		return nil
	},
}

// printNotifier delivers notifications to stdout.
type printNotifier struct{}

func (printNotifier) Notify(n sync.Notification) error {
	color.Yellow("● %s: %s", n.Title, n.Body)
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format("02 Jan 06 15:04")
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
