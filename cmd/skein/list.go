// ABOUTME: List command for viewing posts with filtering options
// ABOUTME: Displays posts with read status, title, and date using color formatting

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/skein/internal/models"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls", "l"},
	Short:   "List posts",
	Long:    "List posts with optional filtering by feed, read status, and bookmarks",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		feedFilter, _ := cmd.Flags().GetString("feed")
		bookmarksOnly, _ := cmd.Flags().GetBool("bookmarks")
		limit, _ := cmd.Flags().GetInt("limit")

		var posts []*models.Post
		var err error
		if bookmarksOnly {
			posts, err = store.BookmarkedPosts()
		} else {
			posts, err = allPosts(feedFilter)
		}
		if err != nil {
			return fmt.Errorf("failed to list posts: %w", err)
		}

		faint := color.New(color.Faint).SprintFunc()
		shown := 0
		for _, post := range posts {
			if shown >= limit {
				break
			}
			if !all && !bookmarksOnly && post.Read {
				continue
			}

			idShort := post.ID
			if len(idShort) > 8 {
				idShort = idShort[:8]
			}
			fmt.Print(faint(idShort), " ")

			if post.Read {
				fmt.Print("✓ ")
			} else {
				fmt.Print("  ")
			}
			if post.Bookmarked {
				fmt.Print("★ ")
			}

			fmt.Print(post.Title)
			fmt.Print(" ", faint(post.PostDate.Format("02 Jan 06 15:04")))
			fmt.Println()
			shown++
		}

		if shown == 0 {
			fmt.Println("No posts found")
		}
		return nil
	},
}

func allPosts(feedFilter string) ([]*models.Post, error) {
	feeds, err := store.ListFeeds()
	if err != nil {
		return nil, err
	}

	var posts []*models.Post
	for _, feed := range feeds {
		if feed.IsDeleted {
			continue
		}
		if feedFilter != "" {
			match, err := findFeed(feedFilter)
			if err != nil {
				return nil, err
			}
			if feed.ID != match.ID {
				continue
			}
		}
		feedPosts, err := store.PostsForFeed(feed.ID)
		if err != nil {
			return nil, err
		}
		posts = append(posts, feedPosts...)
	}
	return posts, nil
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().BoolP("all", "a", false, "show read posts too")
	listCmd.Flags().StringP("feed", "f", "", "filter by feed URL or name prefix")
	listCmd.Flags().BoolP("bookmarks", "b", false, "show only bookmarked posts")
	listCmd.Flags().IntP("limit", "n", 20, "max posts to show")
}
