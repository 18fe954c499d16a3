// ABOUTME: Read and bookmark commands operating on post id prefixes
// ABOUTME: Changes are local-first and push to the backend on the next sync

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/skein/internal/models"
)

var readCmd = &cobra.Command{
	Use:   "read <post-id>",
	Short: "Mark a post as read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setRead(args[0], true)
	},
}

var unreadCmd = &cobra.Command{
	Use:   "unread <post-id>",
	Short: "Mark a post as unread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setRead(args[0], false)
	},
}

var bookmarkCmd = &cobra.Command{
	Use:   "bookmark <post-id>",
	Short: "Toggle a post's bookmark",
	Long:  "Toggle a post's bookmark. Bookmarked posts survive cleanup and snapshot sync.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		post, err := findPost(args[0])
		if err != nil {
			return err
		}
		if err := store.UpdatePostBookmarked(post.ID, !post.Bookmarked, time.Now()); err != nil {
			return fmt.Errorf("failed to update bookmark: %w", err)
		}
		if post.Bookmarked {
			color.Green("✓ Bookmark removed")
		} else {
			color.Green("★ Bookmarked")
		}
		return nil
	},
}

func setRead(ref string, read bool) error {
	post, err := findPost(ref)
	if err != nil {
		return err
	}
	if err := store.UpdatePostRead(post.ID, read, time.Now()); err != nil {
		return fmt.Errorf("failed to update read status: %w", err)
	}
	if read {
		color.Green("✓ Marked read")
	} else {
		color.Green("✓ Marked unread")
	}
	return nil
}

// findPost resolves a post by id prefix across all feeds.
func findPost(ref string) (*models.Post, error) {
	if post, err := store.GetPost(ref); err == nil {
		return post, nil
	}

	feeds, err := store.ListFeeds()
	if err != nil {
		return nil, err
	}
	var matches []*models.Post
	for _, feed := range feeds {
		posts, err := store.PostsForFeed(feed.ID)
		if err != nil {
			return nil, err
		}
		for _, post := range posts {
			if strings.HasPrefix(post.ID, ref) {
				matches = append(matches, post)
			}
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no post matches %q", ref)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("%q matches %d posts, use a longer prefix", ref, len(matches))
	}
}

func init() {
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(unreadCmd)
	rootCmd.AddCommand(bookmarkCmd)
}
