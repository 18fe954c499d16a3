// ABOUTME: Miniflux API adapter wrapping the official miniflux.app client
// ABOUTME: Flattens the client surface to the calls the sync engine needs

package miniflux

import (
	"fmt"
	"time"

	miniflux "miniflux.app/client"
)

// Entry statuses understood by the Miniflux API.
const (
	StatusRead   = "read"
	StatusUnread = "unread"
)

// User identifies the authenticated Miniflux account.
type User struct {
	ID       int64
	Username string
}

// Category is a Miniflux category. Feeds belong to exactly one category.
type Category struct {
	ID    int64
	Title string
}

// Feed is a Miniflux feed subscription.
type Feed struct {
	ID         int64
	FeedURL    string
	SiteURL    string
	Title      string
	CategoryID int64
}

// Entry is a Miniflux article with its read/starred state.
type Entry struct {
	ID      int64
	FeedID  int64
	Title   string
	URL     string
	Content string
	Date    time.Time
	Read    bool
	Starred bool
}

// Client adapts the official miniflux API client.
type Client struct {
	api *miniflux.Client
}

// NewClient creates a client authenticated with an API key.
func NewClient(endpoint, apiKey string) *Client {
	return &Client{api: miniflux.New(endpoint, apiKey)}
}

// Me returns the authenticated user, also serving as a credential check.
func (c *Client) Me() (*User, error) {
	user, err := c.api.Me()
	if err != nil {
		return nil, fmt.Errorf("miniflux me: %w", err)
	}
	return &User{ID: user.ID, Username: user.Username}, nil
}

// Categories returns all categories.
func (c *Client) Categories() ([]Category, error) {
	cats, err := c.api.Categories()
	if err != nil {
		return nil, fmt.Errorf("miniflux categories: %w", err)
	}

	out := make([]Category, 0, len(cats))
	for _, cat := range cats {
		out = append(out, Category{ID: cat.ID, Title: cat.Title})
	}
	return out, nil
}

// CreateCategory creates a category and returns it.
func (c *Client) CreateCategory(title string) (*Category, error) {
	cat, err := c.api.CreateCategory(title)
	if err != nil {
		return nil, fmt.Errorf("miniflux create category: %w", err)
	}
	return &Category{ID: cat.ID, Title: cat.Title}, nil
}

// RenameCategory updates a category's title.
func (c *Client) RenameCategory(id int64, title string) error {
	if _, err := c.api.UpdateCategory(id, title); err != nil {
		return fmt.Errorf("miniflux rename category: %w", err)
	}
	return nil
}

// DeleteCategory removes a category.
func (c *Client) DeleteCategory(id int64) error {
	if err := c.api.DeleteCategory(id); err != nil {
		return fmt.Errorf("miniflux delete category: %w", err)
	}
	return nil
}

// Feeds returns all feed subscriptions.
func (c *Client) Feeds() ([]Feed, error) {
	feeds, err := c.api.Feeds()
	if err != nil {
		return nil, fmt.Errorf("miniflux feeds: %w", err)
	}

	out := make([]Feed, 0, len(feeds))
	for _, feed := range feeds {
		f := Feed{
			ID:      feed.ID,
			FeedURL: feed.FeedURL,
			SiteURL: feed.SiteURL,
			Title:   feed.Title,
		}
		if feed.Category != nil {
			f.CategoryID = feed.Category.ID
		}
		out = append(out, f)
	}
	return out, nil
}

// CreateFeed subscribes to a feed URL in the given category and returns the
// new feed's id.
func (c *Client) CreateFeed(feedURL string, categoryID int64) (int64, error) {
	id, err := c.api.CreateFeed(&miniflux.FeedCreationRequest{
		FeedURL:    feedURL,
		CategoryID: categoryID,
	})
	if err != nil {
		return 0, fmt.Errorf("miniflux create feed: %w", err)
	}
	return id, nil
}

// UpdateFeed renames a feed and/or moves it to another category. Zero values
// leave the corresponding attribute unchanged.
func (c *Client) UpdateFeed(id int64, title string, categoryID int64) error {
	req := &miniflux.FeedModificationRequest{}
	if title != "" {
		req.Title = &title
	}
	if categoryID != 0 {
		req.CategoryID = &categoryID
	}

	if _, err := c.api.UpdateFeed(id, req); err != nil {
		return fmt.Errorf("miniflux update feed: %w", err)
	}
	return nil
}

// DeleteFeed removes a feed subscription.
func (c *Client) DeleteFeed(id int64) error {
	if err := c.api.DeleteFeed(id); err != nil {
		return fmt.Errorf("miniflux delete feed: %w", err)
	}
	return nil
}

// Entries returns one page of entries published at or after the given time,
// oldest first, along with the total number of matches.
func (c *Client) Entries(after time.Time, offset, limit int) (int, []Entry, error) {
	filter := &miniflux.Filter{
		Offset:    offset,
		Limit:     limit,
		Order:     "published_at",
		Direction: "asc",
	}
	if !after.IsZero() {
		filter.After = after.Unix()
	}

	result, err := c.api.Entries(filter)
	if err != nil {
		return 0, nil, fmt.Errorf("miniflux entries: %w", err)
	}
	return result.Total, convertEntries(result.Entries), nil
}

// FeedEntries returns one page of a single feed's entries published at or
// after the given time, oldest first, along with the total number of matches.
func (c *Client) FeedEntries(feedID int64, after time.Time, offset, limit int) (int, []Entry, error) {
	filter := &miniflux.Filter{
		Offset:    offset,
		Limit:     limit,
		Order:     "published_at",
		Direction: "asc",
	}
	if !after.IsZero() {
		filter.After = after.Unix()
	}

	result, err := c.api.FeedEntries(feedID, filter)
	if err != nil {
		return 0, nil, fmt.Errorf("miniflux feed entries: %w", err)
	}
	return result.Total, convertEntries(result.Entries), nil
}

func convertEntries(in []*miniflux.Entry) []Entry {
	entries := make([]Entry, 0, len(in))
	for _, entry := range in {
		entries = append(entries, Entry{
			ID:      entry.ID,
			FeedID:  entry.FeedID,
			Title:   entry.Title,
			URL:     entry.URL,
			Content: entry.Content,
			Date:    entry.Date,
			Read:    entry.Status == StatusRead,
			Starred: entry.Starred,
		})
	}
	return entries
}

// statusPageSize is the page size for id-set queries.
const statusPageSize = 1000

// UnreadEntryIDs returns the ids of all unread entries.
func (c *Client) UnreadEntryIDs() ([]int64, error) {
	return c.entryIDs(&miniflux.Filter{Status: StatusUnread})
}

// StarredEntryIDs returns the ids of all starred entries.
func (c *Client) StarredEntryIDs() ([]int64, error) {
	return c.entryIDs(&miniflux.Filter{Starred: miniflux.FilterOnlyStarred})
}

func (c *Client) entryIDs(filter *miniflux.Filter) ([]int64, error) {
	var ids []int64
	filter.Limit = statusPageSize

	for offset := 0; ; offset += statusPageSize {
		filter.Offset = offset
		result, err := c.api.Entries(filter)
		if err != nil {
			return nil, fmt.Errorf("miniflux entry ids: %w", err)
		}
		for _, entry := range result.Entries {
			ids = append(ids, entry.ID)
		}
		if len(result.Entries) < statusPageSize {
			return ids, nil
		}
	}
}

// MarkEntries sets the read status on the given entries.
func (c *Client) MarkEntries(ids []int64, read bool) error {
	if len(ids) == 0 {
		return nil
	}

	status := StatusUnread
	if read {
		status = StatusRead
	}
	if err := c.api.UpdateEntries(ids, status); err != nil {
		return fmt.Errorf("miniflux mark entries: %w", err)
	}
	return nil
}

// ToggleBookmark flips the starred flag on an entry. The API has no absolute
// setter, so callers must only toggle when the local and remote states differ.
func (c *Client) ToggleBookmark(id int64) error {
	if err := c.api.ToggleBookmark(id); err != nil {
		return fmt.Errorf("miniflux toggle bookmark: %w", err)
	}
	return nil
}
