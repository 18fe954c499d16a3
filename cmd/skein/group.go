// ABOUTME: Group management commands: add, list, remove, assign
// ABOUTME: Groups map to categories on Miniflux and labels on GReader servers

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/skein/internal/models"
	"github.com/harper/skein/internal/storage"
)

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage feed groups",
}

var groupAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		group, err := findOrCreateGroup(args[0])
		if err != nil {
			return err
		}
		color.Green("✓ Group %q ready", group.Name)
		return nil
	},
}

var groupListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List groups and their feeds",
	RunE: func(cmd *cobra.Command, args []string) error {
		groups, err := store.ListGroups()
		if err != nil {
			return fmt.Errorf("failed to list groups: %w", err)
		}

		faint := color.New(color.Faint).SprintFunc()
		shown := 0
		for _, group := range groups {
			if group.IsDeleted {
				continue
			}
			fmt.Printf("%s %s\n", group.Name, faint(fmt.Sprintf("(%d feeds)", len(group.FeedIDs))))
			for _, feedID := range group.FeedIDs {
				feed, err := store.GetFeed(feedID)
				if err != nil {
					continue
				}
				fmt.Printf("  %s\n", feed.Link)
			}
			shown++
		}
		if shown == 0 {
			fmt.Println("No groups. Create one with 'skein group add <name>'")
		}
		return nil
	},
}

var groupRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Delete a group",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		group, err := store.GroupByName(args[0])
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("no group named %q", args[0])
		}
		if err != nil {
			return err
		}
		if err := store.MarkGroupDeleted(group.ID, time.Now()); err != nil {
			return fmt.Errorf("failed to remove group: %w", err)
		}
		color.Green("✓ Group %q removed (propagates on next sync)", group.Name)
		return nil
	},
}

var groupAssignCmd = &cobra.Command{
	Use:   "assign <name> <feed-url>",
	Short: "Move a feed into a group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		group, err := findOrCreateGroup(args[0])
		if err != nil {
			return err
		}
		feed, err := findFeed(args[1])
		if err != nil {
			return err
		}

		// Membership is exclusive to match aggregator category semantics.
		groups, err := store.ListGroups()
		if err != nil {
			return err
		}
		var others []string
		for _, g := range groups {
			if g.ID != group.ID && g.ContainsFeed(feed.ID) {
				others = append(others, g.ID)
			}
		}
		if len(others) > 0 {
			if err := store.RemoveFeedsFromGroups(others, []string{feed.ID}); err != nil {
				return err
			}
		}
		if err := store.AddFeedsToGroups([]string{group.ID}, []string{feed.ID}); err != nil {
			return fmt.Errorf("failed to assign feed: %w", err)
		}
		color.Green("✓ %s → %s", feed.Link, group.Name)
		return nil
	},
}

func findOrCreateGroup(name string) (*models.Group, error) {
	group, err := store.GroupByName(name)
	if err == nil {
		return group, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	group = models.NewGroup(name)
	if err := store.UpsertGroup(group); err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}
	return group, nil
}

func init() {
	rootCmd.AddCommand(groupCmd)
	groupCmd.AddCommand(groupAddCmd)
	groupCmd.AddCommand(groupListCmd)
	groupCmd.AddCommand(groupRemoveCmd)
	groupCmd.AddCommand(groupAssignCmd)
}
