// ABOUTME: Miniflux coordinator: category/feed reconcile, entry pull, status push
// ABOUTME: Categories are exclusive; feeds without a group land in the default one

package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/harper/skein/internal/models"
	"github.com/harper/skein/internal/remote/miniflux"
	"github.com/harper/skein/internal/storage"
)

const (
	minifluxArticlePageSize = 100
	minifluxPushBatchSize   = 500

	// defaultCategoryTitle receives feeds that belong to no local group, and
	// feeds orphaned by a category deletion.
	defaultCategoryTitle = "All"

	// First syncs reach back a few hours; finding a subscription we have
	// never seen widens the window so its backlog is not missed.
	minifluxFirstSyncWindow      = 4 * time.Hour
	minifluxNewSubscriptionSlack = 2 * time.Hour
)

// MinifluxClient is the aggregator surface the coordinator needs. Satisfied
// by *miniflux.Client.
type MinifluxClient interface {
	Categories() ([]miniflux.Category, error)
	CreateCategory(title string) (*miniflux.Category, error)
	RenameCategory(id int64, title string) error
	DeleteCategory(id int64) error
	Feeds() ([]miniflux.Feed, error)
	CreateFeed(feedURL string, categoryID int64) (int64, error)
	UpdateFeed(id int64, title string, categoryID int64) error
	DeleteFeed(id int64) error
	Entries(after time.Time, offset, limit int) (int, []miniflux.Entry, error)
	FeedEntries(feedID int64, after time.Time, offset, limit int) (int, []miniflux.Entry, error)
	UnreadEntryIDs() ([]int64, error)
	StarredEntryIDs() ([]int64, error)
	MarkEntries(ids []int64, read bool) error
	ToggleBookmark(id int64) error
}

// MinifluxCoordinator reconciles the local store with a Miniflux server.
type MinifluxCoordinator struct {
	*runner
	store  storage.Store
	client MinifluxClient
	log    *slog.Logger
	now    func() time.Time
}

func NewMinifluxCoordinator(store storage.Store, client MinifluxClient, log *slog.Logger) *MinifluxCoordinator {
	if log == nil {
		log = slog.Default()
	}
	return &MinifluxCoordinator{
		runner: newRunner("miniflux", log, store),
		store:  store,
		client: client,
		log:    log.With("coordinator", "miniflux"),
		now:    time.Now,
	}
}

func (c *MinifluxCoordinator) Pull(ctx context.Context) bool {
	return c.run(func() error { return c.sync(ctx) })
}

// PullFeeds refreshes only the given feeds' entries, leaving statuses and the
// catalogue to the next full pull. A target feed not yet paired with the
// server falls back to a full sync, which pairs it.
func (c *MinifluxCoordinator) PullFeeds(ctx context.Context, feedIDs []string) bool {
	return c.run(func() error {
		since := c.articleWindowStart()

		var targets []*models.Feed
		for _, id := range feedIDs {
			feed, err := c.store.GetFeed(id)
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if feed.IsDeleted {
				continue
			}
			if _, paired := feedRemoteID(feed); !paired {
				return c.sync(ctx)
			}
			targets = append(targets, feed)
		}

		for _, feed := range targets {
			if err := c.pullFeedArticles(ctx, feed, since); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *MinifluxCoordinator) PullFeed(ctx context.Context, feedID string) bool {
	return c.PullFeeds(ctx, []string{feedID})
}

func (c *MinifluxCoordinator) Push(ctx context.Context) bool {
	return c.run(func() error {
		if err := c.pushLocal(ctx); err != nil {
			return err
		}
		return c.store.SetLastSyncedAt(c.now())
	})
}

func (c *MinifluxCoordinator) sync(ctx context.Context) error {
	since := c.articleWindowStart()

	if err := c.pushLocal(ctx); err != nil {
		return fmt.Errorf("push: %w", err)
	}
	c.progress(0.3)

	hasNewSubscription, err := c.reconcileRemote(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	if hasNewSubscription {
		since = since.Add(-minifluxNewSubscriptionSlack)
	}

	created, err := c.pullArticles(ctx, since)
	if err != nil {
		return fmt.Errorf("pull articles: %w", err)
	}
	c.progress(0.7)

	if err := c.pullStatuses(ctx); err != nil {
		return fmt.Errorf("pull statuses: %w", err)
	}
	c.progress(0.9)

	// The watermark only moves when articles arrived, so a quiet window is
	// re-read next time instead of silently skipped past.
	if created > 0 {
		if err := c.store.SetLastSyncedAt(c.now()); err != nil {
			return err
		}
	}
	return c.store.SetLastSyncStatus(StatusComplete.String())
}

func (c *MinifluxCoordinator) articleWindowStart() time.Time {
	meta, err := c.store.GetSyncMeta()
	if err != nil || meta.LastSyncedAt == nil {
		return c.now().Add(-minifluxFirstSyncWindow)
	}
	return *meta.LastSyncedAt
}

// Push: statuses, groups, feeds.

func (c *MinifluxCoordinator) pushLocal(ctx context.Context) error {
	if err := c.pushStatuses(ctx); err != nil {
		return err
	}
	if err := c.pushGroups(ctx); err != nil {
		return err
	}
	return c.pushFeeds(ctx)
}

func (c *MinifluxCoordinator) pushStatuses(ctx context.Context) error {
	starredIDs, err := c.client.StarredEntryIDs()
	if err != nil {
		return err
	}
	starred := make(map[int64]bool, len(starredIDs))
	for _, id := range starredIDs {
		starred[id] = true
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		posts, err := c.store.PostsWithLocalChanges(minifluxPushBatchSize, 0)
		if err != nil {
			return err
		}
		if len(posts) == 0 {
			return nil
		}

		var markRead, markUnread []int64
		for _, post := range posts {
			id, ok := entryID(post)
			if !ok {
				continue
			}
			if post.Read {
				markRead = append(markRead, id)
			} else {
				markUnread = append(markUnread, id)
			}
		}
		if err := c.client.MarkEntries(markRead, true); err != nil {
			return err
		}
		if err := c.client.MarkEntries(markUnread, false); err != nil {
			return err
		}

		// The API only toggles stars, so push a toggle only where local and
		// remote disagree.
		for _, post := range posts {
			id, ok := entryID(post)
			if !ok {
				continue
			}
			if post.Bookmarked != starred[id] {
				if err := c.client.ToggleBookmark(id); err != nil {
					return err
				}
				starred[id] = post.Bookmarked
			}
		}

		now := c.now()
		for _, post := range posts {
			if err := c.store.UpdatePostSyncedAt(post.ID, now); err != nil {
				return err
			}
		}
	}
}

func (c *MinifluxCoordinator) pushGroups(ctx context.Context) error {
	cats, err := c.client.Categories()
	if err != nil {
		return err
	}
	titleByID := make(map[int64]string, len(cats))
	for _, cat := range cats {
		titleByID[cat.ID] = cat.Title
	}

	groups, err := c.store.ListGroups()
	if err != nil {
		return err
	}

	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return err
		}

		if group.IsDeleted {
			if catID, ok := categoryID(group); ok {
				if err := c.deleteRemoteCategory(catID); err != nil {
					return err
				}
			}
			if err := c.store.RemoveGroup(group.ID); err != nil {
				return err
			}
			continue
		}

		catID, paired := categoryID(group)
		if !paired {
			cat, err := c.client.CreateCategory(group.Name)
			if err != nil {
				return err
			}
			if err := c.store.UpdateGroupRemoteID(group.ID, formatID(cat.ID), c.now()); err != nil {
				return err
			}
			continue
		}

		if title, ok := titleByID[catID]; ok && title != group.Name {
			if err := c.client.RenameCategory(catID, group.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

// deleteRemoteCategory moves the category's feeds to the default category
// first; Miniflux deletes a category's feeds along with it otherwise.
func (c *MinifluxCoordinator) deleteRemoteCategory(catID int64) error {
	defaultID, err := c.defaultCategoryID()
	if err != nil {
		return err
	}
	if catID == defaultID {
		return nil
	}

	feeds, err := c.client.Feeds()
	if err != nil {
		return err
	}
	for _, feed := range feeds {
		if feed.CategoryID == catID {
			if err := c.client.UpdateFeed(feed.ID, "", defaultID); err != nil {
				return err
			}
		}
	}
	return c.client.DeleteCategory(catID)
}

func (c *MinifluxCoordinator) defaultCategoryID() (int64, error) {
	cats, err := c.client.Categories()
	if err != nil {
		return 0, err
	}
	for _, cat := range cats {
		if cat.Title == defaultCategoryTitle {
			return cat.ID, nil
		}
	}
	cat, err := c.client.CreateCategory(defaultCategoryTitle)
	if err != nil {
		return 0, err
	}
	return cat.ID, nil
}

func (c *MinifluxCoordinator) pushFeeds(ctx context.Context) error {
	feeds, err := c.store.ListFeeds()
	if err != nil {
		return err
	}
	groups, err := c.store.ListGroups()
	if err != nil {
		return err
	}

	groupCategory := func(feedID string) (int64, bool) {
		for _, g := range groups {
			if g.IsDeleted || !g.ContainsFeed(feedID) {
				continue
			}
			return categoryID(g)
		}
		return 0, false
	}

	var remoteFeeds map[int64]miniflux.Feed

	for _, feed := range feeds {
		if err := ctx.Err(); err != nil {
			return err
		}

		if feed.IsDeleted {
			if id, ok := feedRemoteID(feed); ok {
				if err := c.client.DeleteFeed(id); err != nil {
					return err
				}
			}
			if err := c.store.RemoveFeed(feed.ID); err != nil {
				return err
			}
			continue
		}

		fid, paired := feedRemoteID(feed)
		if !paired {
			catID, ok := groupCategory(feed.ID)
			if !ok {
				catID, err = c.defaultCategoryID()
				if err != nil {
					return err
				}
			}
			fid, err = c.client.CreateFeed(feed.Link, catID)
			if err != nil {
				return err
			}
			if err := c.store.UpdateFeedRemoteID(feed.ID, formatID(fid), c.now()); err != nil {
				return err
			}
			if feed.Name != "" {
				if err := c.client.UpdateFeed(fid, feed.Name, 0); err != nil {
					return err
				}
			}
			continue
		}

		// Align the remote category with the local group for paired feeds.
		if catID, ok := groupCategory(feed.ID); ok {
			if remoteFeeds == nil {
				list, err := c.client.Feeds()
				if err != nil {
					return err
				}
				remoteFeeds = make(map[int64]miniflux.Feed, len(list))
				for _, rf := range list {
					remoteFeeds[rf.ID] = rf
				}
			}
			if rf, known := remoteFeeds[fid]; known && rf.CategoryID != catID {
				if err := c.client.UpdateFeed(fid, "", catID); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Reconcile: mirror the remote catalogue locally.

func (c *MinifluxCoordinator) reconcileRemote(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	cats, err := c.client.Categories()
	if err != nil {
		return false, err
	}
	if err := c.reconcileGroups(cats); err != nil {
		return false, err
	}

	feeds, err := c.client.Feeds()
	if err != nil {
		return false, err
	}
	return c.reconcileFeeds(feeds)
}

func (c *MinifluxCoordinator) reconcileGroups(cats []miniflux.Category) error {
	now := c.now()
	seen := make(map[string]bool, len(cats))

	for _, cat := range cats {
		remoteID := formatID(cat.ID)
		seen[remoteID] = true

		if _, err := c.store.GroupByRemoteID(remoteID); err == nil {
			continue
		} else if !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		if existing, err := c.store.GroupByName(cat.Title); err == nil {
			if err := c.store.UpdateGroupRemoteID(existing.ID, remoteID, now); err != nil {
				return err
			}
			continue
		} else if !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		group := models.NewGroup(cat.Title)
		group.RemoteID = &remoteID
		group.UpdatedAt = now
		if err := c.store.UpsertGroup(group); err != nil {
			return err
		}
	}

	groups, err := c.store.ListGroups()
	if err != nil {
		return err
	}
	for _, group := range groups {
		if group.HasRemoteID() && !seen[*group.RemoteID] {
			if err := c.store.RemoveGroup(group.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// reconcileFeeds mirrors remote subscriptions and reports whether any were
// previously unknown here.
func (c *MinifluxCoordinator) reconcileFeeds(remoteFeeds []miniflux.Feed) (bool, error) {
	now := c.now()
	byID := make(map[string]bool, len(remoteFeeds))
	byURL := make(map[string]bool, len(remoteFeeds))
	for _, rf := range remoteFeeds {
		byID[formatID(rf.ID)] = true
		byURL[rf.FeedURL] = true
	}

	feeds, err := c.store.ListFeeds()
	if err != nil {
		return false, err
	}
	for _, feed := range feeds {
		if feed.HasRemoteID() && !byID[*feed.RemoteID] && !byURL[feed.Link] {
			if err := c.store.RemoveFeed(feed.ID); err != nil {
				return false, err
			}
		}
	}

	hasNew := false
	for _, rf := range remoteFeeds {
		remoteID := formatID(rf.ID)

		feed, err := c.store.FeedByRemoteID(remoteID)
		if errors.Is(err, storage.ErrNotFound) {
			feed, err = c.store.FeedByLink(rf.FeedURL)
			if err == nil {
				if err := c.store.UpdateFeedRemoteID(feed.ID, remoteID, now); err != nil {
					return false, err
				}
				feed.RemoteID = &remoteID
			}
		}
		if errors.Is(err, storage.ErrNotFound) {
			feed = models.NewFeed(rf.FeedURL)
			feed.RemoteID = &remoteID
			feed.Name = rf.Title
			feed.HomepageLink = rf.SiteURL
			if err := c.store.UpsertFeed(feed); err != nil {
				return false, err
			}
			hasNew = true
		} else if err != nil {
			return false, err
		}

		if err := c.reconcileFeedCategory(feed, rf.CategoryID); err != nil {
			return false, err
		}
	}
	return hasNew, nil
}

// reconcileFeedCategory moves the feed into the group paired with its remote
// category and out of every other group. Categories are exclusive.
func (c *MinifluxCoordinator) reconcileFeedCategory(feed *models.Feed, catID int64) error {
	var wantGroupID string
	if catID != 0 {
		group, err := c.store.GroupByRemoteID(formatID(catID))
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		if err == nil {
			wantGroupID = group.ID
		}
	}

	groups, err := c.store.ListGroups()
	if err != nil {
		return err
	}
	var remove []string
	inWanted := false
	for _, g := range groups {
		if !g.ContainsFeed(feed.ID) {
			continue
		}
		if g.ID == wantGroupID {
			inWanted = true
			continue
		}
		remove = append(remove, g.ID)
	}
	if len(remove) > 0 {
		if err := c.store.RemoveFeedsFromGroups(remove, []string{feed.ID}); err != nil {
			return err
		}
	}
	if wantGroupID != "" && !inWanted {
		return c.store.AddFeedsToGroups([]string{wantGroupID}, []string{feed.ID})
	}
	return nil
}

// Pull: entries and statuses.

func (c *MinifluxCoordinator) pullArticles(ctx context.Context, since time.Time) (int, error) {
	created := 0
	for offset := 0; ; offset += minifluxArticlePageSize {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		total, entries, err := c.client.Entries(since, offset, minifluxArticlePageSize)
		if err != nil {
			return created, err
		}

		now := c.now()
		for _, entry := range entries {
			feedID := ""
			if feed, err := c.store.FeedByRemoteID(formatID(entry.FeedID)); err == nil {
				feedID = feed.ID
			} else if !errors.Is(err, storage.ErrNotFound) {
				return created, err
			}

			isNew, err := applyRemoteArticle(c.store, remoteArticle{
				RemoteID:   formatID(entry.ID),
				FeedID:     feedID,
				Link:       entry.URL,
				Title:      entry.Title,
				Body:       entry.Content,
				Date:       entry.Date,
				Read:       entry.Read,
				Bookmarked: entry.Starred,
			}, now)
			if err != nil {
				return created, err
			}
			if isNew {
				created++
			}
		}

		if offset+len(entries) >= total || len(entries) == 0 {
			return created, nil
		}
	}
}

// pullFeedArticles pages one paired feed's entries through the server's
// per-feed listing.
func (c *MinifluxCoordinator) pullFeedArticles(ctx context.Context, feed *models.Feed, since time.Time) error {
	fid, paired := feedRemoteID(feed)
	if !paired {
		return nil
	}

	for offset := 0; ; offset += minifluxArticlePageSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		total, entries, err := c.client.FeedEntries(fid, since, offset, minifluxArticlePageSize)
		if err != nil {
			return err
		}

		now := c.now()
		for _, entry := range entries {
			if _, err := applyRemoteArticle(c.store, remoteArticle{
				RemoteID:   formatID(entry.ID),
				FeedID:     feed.ID,
				Link:       entry.URL,
				Title:      entry.Title,
				Body:       entry.Content,
				Date:       entry.Date,
				Read:       entry.Read,
				Bookmarked: entry.Starred,
			}, now); err != nil {
				return err
			}
		}

		if offset+len(entries) >= total || len(entries) == 0 {
			return nil
		}
	}
}

func (c *MinifluxCoordinator) pullStatuses(ctx context.Context) error {
	unreadIDs, err := c.client.UnreadEntryIDs()
	if err != nil {
		return err
	}
	starredIDs, err := c.client.StarredEntryIDs()
	if err != nil {
		return err
	}
	unread := make(map[int64]bool, len(unreadIDs))
	for _, id := range unreadIDs {
		unread[id] = true
	}
	starred := make(map[int64]bool, len(starredIDs))
	for _, id := range starredIDs {
		starred[id] = true
	}

	now := c.now()
	for offset := 0; ; offset += minifluxPushBatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		posts, err := c.store.PostsWithRemoteID(minifluxPushBatchSize, offset)
		if err != nil {
			return err
		}
		if len(posts) == 0 {
			return nil
		}
		for _, post := range posts {
			id, ok := entryID(post)
			if !ok {
				continue
			}
			if err := applyRemoteStatus(c.store, post, !unread[id], starred[id], now); err != nil {
				return err
			}
		}
	}
}

// Remote ids are Miniflux integer ids stored as strings.

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func entryID(post *models.Post) (int64, bool) {
	if !post.HasRemoteID() {
		return 0, false
	}
	id, err := strconv.ParseInt(*post.RemoteID, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func feedRemoteID(feed *models.Feed) (int64, bool) {
	if !feed.HasRemoteID() {
		return 0, false
	}
	id, err := strconv.ParseInt(*feed.RemoteID, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func categoryID(group *models.Group) (int64, bool) {
	if !group.HasRemoteID() {
		return 0, false
	}
	id, err := strconv.ParseInt(*group.RemoteID, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
