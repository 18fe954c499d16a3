// ABOUTME: OPML import and export commands
// ABOUTME: Folders map to groups; imported feeds subscribe on the next sync

package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/skein/internal/models"
	"github.com/harper/skein/internal/opml"
	"github.com/harper/skein/internal/storage"
)

var importCmd = &cobra.Command{
	Use:   "import <file.opml>",
	Short: "Import subscriptions from an OPML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := opml.ParseFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to parse OPML: %w", err)
		}

		added, skipped := 0, 0
		for _, entry := range doc.AllFeeds() {
			if _, err := store.FeedByLink(entry.URL); err == nil {
				skipped++
				continue
			} else if !errors.Is(err, storage.ErrNotFound) {
				return err
			}

			feed := models.NewFeed(entry.URL)
			feed.Name = entry.Title
			if err := store.UpsertFeed(feed); err != nil {
				return fmt.Errorf("failed to save feed %s: %w", entry.URL, err)
			}

			if entry.Folder != "" {
				group, err := findOrCreateGroup(entry.Folder)
				if err != nil {
					return err
				}
				if err := store.AddFeedsToGroups([]string{group.ID}, []string{feed.ID}); err != nil {
					return err
				}
			}
			added++
		}

		color.Green("✓ Imported %d feeds (%d already subscribed)", added, skipped)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <file.opml>",
	Short: "Export subscriptions to an OPML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		feeds, err := store.ListFeeds()
		if err != nil {
			return fmt.Errorf("failed to list feeds: %w", err)
		}
		groups, err := store.ListGroups()
		if err != nil {
			return fmt.Errorf("failed to list groups: %w", err)
		}

		folderFor := func(feedID string) string {
			for _, g := range groups {
				if !g.IsDeleted && g.ContainsFeed(feedID) {
					return g.Name
				}
			}
			return ""
		}

		doc := opml.NewDocument("skein feeds")
		count := 0
		for _, feed := range feeds {
			if feed.IsDeleted {
				continue
			}
			if err := doc.AddFeed(feed.Link, feed.Name, folderFor(feed.ID)); err != nil {
				return fmt.Errorf("failed to add feed %s: %w", feed.Link, err)
			}
			count++
		}

		if err := doc.WriteFile(args[0]); err != nil {
			return fmt.Errorf("failed to write OPML: %w", err)
		}
		color.Green("✓ Exported %d feeds to %s", count, args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
}
