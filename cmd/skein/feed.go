// ABOUTME: Feed management commands: add (with discovery), list, remove
// ABOUTME: Removal tombstones the feed so deletion propagates on the next sync

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/skein/internal/discover"
	"github.com/harper/skein/internal/models"
	"github.com/harper/skein/internal/storage"
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Manage feed subscriptions",
}

var feedAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Subscribe to a feed",
	Long: `Subscribe to a feed by URL.

The URL may be a feed URL or a website; websites are probed for
advertised feeds. The subscription is pushed to the configured
aggregator on the next sync.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		groupName, _ := cmd.Flags().GetString("group")

		result, err := discover.Discover(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to discover feed: %w", err)
		}

		if _, err := store.FeedByLink(result.URL); err == nil {
			return fmt.Errorf("already subscribed to %s", result.URL)
		} else if !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		feed := models.NewFeed(result.URL)
		feed.Name = result.Title
		if err := store.UpsertFeed(feed); err != nil {
			return fmt.Errorf("failed to save feed: %w", err)
		}

		if groupName != "" {
			group, err := findOrCreateGroup(groupName)
			if err != nil {
				return err
			}
			if err := store.AddFeedsToGroups([]string{group.ID}, []string{feed.ID}); err != nil {
				return fmt.Errorf("failed to add feed to group: %w", err)
			}
		}

		color.Green("✓ Subscribed to %s", result.URL)
		if result.Title != "" {
			fmt.Printf("  %s\n", result.Title)
		}
		return nil
	},
}

var feedListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List feed subscriptions",
	RunE: func(cmd *cobra.Command, args []string) error {
		feeds, err := store.ListFeeds()
		if err != nil {
			return fmt.Errorf("failed to list feeds: %w", err)
		}

		faint := color.New(color.Faint).SprintFunc()
		shown := 0
		for _, feed := range feeds {
			if feed.IsDeleted {
				continue
			}
			name := feed.Name
			if name == "" {
				name = "(untitled)"
			}
			fmt.Printf("%s %s\n", name, faint(feed.Link))
			shown++
		}
		if shown == 0 {
			fmt.Println("No feeds. Add one with 'skein feed add <url>'")
		}
		return nil
	},
}

var feedRemoveCmd = &cobra.Command{
	Use:     "remove <url>",
	Aliases: []string{"rm"},
	Short:   "Unsubscribe from a feed",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		feed, err := findFeed(args[0])
		if err != nil {
			return err
		}
		if err := store.MarkFeedDeleted(feed.ID, time.Now()); err != nil {
			return fmt.Errorf("failed to remove feed: %w", err)
		}
		color.Green("✓ Unsubscribed from %s (propagates on next sync)", feed.Link)
		return nil
	},
}

// findFeed resolves a feed by exact URL, then by URL or name prefix.
func findFeed(ref string) (*models.Feed, error) {
	if feed, err := store.FeedByLink(ref); err == nil {
		return feed, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	feeds, err := store.ListFeeds()
	if err != nil {
		return nil, err
	}
	var matches []*models.Feed
	lower := strings.ToLower(ref)
	for _, feed := range feeds {
		if feed.IsDeleted {
			continue
		}
		if strings.HasPrefix(strings.ToLower(feed.Link), lower) ||
			strings.HasPrefix(strings.ToLower(feed.Name), lower) {
			matches = append(matches, feed)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no feed matches %q", ref)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("%q matches %d feeds, be more specific", ref, len(matches))
	}
}

func init() {
	rootCmd.AddCommand(feedCmd)
	feedCmd.AddCommand(feedAddCmd)
	feedCmd.AddCommand(feedListCmd)
	feedCmd.AddCommand(feedRemoveCmd)

	feedAddCmd.Flags().StringP("group", "g", "", "add the feed to a group")
}
