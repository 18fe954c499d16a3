// ABOUTME: Local coordinator: direct feed fetching with adaptive refresh intervals
// ABOUTME: Feeds refresh in small concurrent batches; one broken feed never fails the run

package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/harper/skein/internal/content"
	"github.com/harper/skein/internal/fetch"
	"github.com/harper/skein/internal/models"
	"github.com/harper/skein/internal/parse"
	"github.com/harper/skein/internal/storage"
	"github.com/harper/skein/internal/timeutil"
)

// refreshBatchSize is how many feeds fetch concurrently.
const refreshBatchSize = 6

// Fetcher retrieves raw feed bytes. Satisfied by fetch.Fetch.
type Fetcher func(ctx context.Context, url string, etag, lastModified *string) (*fetch.Result, error)

// LocalCoordinator refreshes feeds by fetching them directly, with no
// aggregator involved. Pull respects each feed's refresh interval; targeted
// pulls bypass it. There is nothing to push.
type LocalCoordinator struct {
	*runner
	store storage.Store
	fetch Fetcher
	log   *slog.Logger
	now   func() time.Time
}

func NewLocalCoordinator(store storage.Store, fetcher Fetcher, log *slog.Logger) *LocalCoordinator {
	if fetcher == nil {
		fetcher = fetch.Fetch
	}
	if log == nil {
		log = slog.Default()
	}
	return &LocalCoordinator{
		runner: newRunner("local", log, store),
		store:  store,
		fetch:  fetcher,
		log:    log.With("coordinator", "local"),
		now:    time.Now,
	}
}

func (c *LocalCoordinator) Pull(ctx context.Context) bool {
	return c.run(func() error { return c.refreshDue(ctx) })
}

func (c *LocalCoordinator) PullFeeds(ctx context.Context, feedIDs []string) bool {
	return c.run(func() error {
		feeds := make([]*models.Feed, 0, len(feedIDs))
		for _, id := range feedIDs {
			feed, err := c.store.GetFeed(id)
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if !feed.IsDeleted {
				feeds = append(feeds, feed)
			}
		}
		return c.refreshAll(ctx, feeds)
	})
}

func (c *LocalCoordinator) PullFeed(ctx context.Context, feedID string) bool {
	return c.PullFeeds(ctx, []string{feedID})
}

// Push succeeds trivially: local feeds have no remote to push to.
func (c *LocalCoordinator) Push(ctx context.Context) bool {
	return c.run(func() error { return nil })
}

// refreshDue refreshes every feed whose interval has elapsed. The caught-up
// check brackets the refresh: when the user had no unread posts going in,
// everything unread afterwards is new since their last visit.
func (c *LocalCoordinator) refreshDue(ctx context.Context) error {
	now := c.now()

	feeds, err := c.store.ListFeeds()
	if err != nil {
		return err
	}
	due := make([]*models.Feed, 0, len(feeds))
	for _, feed := range feeds {
		if !feed.IsDeleted && feed.DueForRefresh(now) {
			due = append(due, feed)
		}
	}

	unreadBefore, err := c.store.UnreadCount(nil, timeutil.StartOfToday(), time.Time{})
	if err != nil {
		return err
	}

	if err := c.refreshAll(ctx, due); err != nil {
		return err
	}

	if unreadBefore == 0 {
		return c.store.SetLastRefreshedAt(c.now())
	}
	return nil
}

// refreshAll fetches feeds in batches of refreshBatchSize, reporting progress
// per batch. Individual feed failures are logged and skipped.
func (c *LocalCoordinator) refreshAll(ctx context.Context, feeds []*models.Feed) error {
	if len(feeds) == 0 {
		return nil
	}

	done := 0
	for start := 0; start < len(feeds); start += refreshBatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := start + refreshBatchSize
		if end > len(feeds) {
			end = len(feeds)
		}
		batch := feeds[start:end]

		var wg gosync.WaitGroup
		for _, feed := range batch {
			wg.Add(1)
			go func(feed *models.Feed) {
				defer wg.Done()
				if err := c.refreshFeed(ctx, feed); err != nil {
					c.log.Warn("feed refresh failed", "feed", feed.Link, "error", err)
				}
			}(feed)
		}
		wg.Wait()

		done += len(batch)
		c.progress(float64(done) / float64(len(feeds)))
	}
	return nil
}

// refreshFeed fetches and merges one feed, then adapts its refresh interval
// to whether the fetch produced anything new.
func (c *LocalCoordinator) refreshFeed(ctx context.Context, feed *models.Feed) error {
	now := c.now()

	result, err := c.fetch(ctx, feed.Link, feed.ETag, feed.LastModified)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	hasNew := false
	if !result.NotModified {
		feed.SetCacheHeaders(result.ETag, result.LastModified)
		if err := c.store.UpdateFeedCacheHeaders(feed.ID, feed.ETag, feed.LastModified); err != nil {
			return err
		}

		payload, err := parse.Parse(result.Body, feed.Link)
		if err != nil {
			return fmt.Errorf("parse: %w", err)
		}

		if err := c.fillFeedMetadata(feed, payload); err != nil {
			return err
		}

		before, err := c.store.PostsCountForFeed(feed.ID)
		if err != nil {
			return err
		}
		if err := c.mergePosts(feed, payload.Posts, now); err != nil {
			return err
		}
		after, err := c.store.PostsCountForFeed(feed.ID)
		if err != nil {
			return err
		}
		hasNew = after > before
	}

	if err := c.store.UpdateFeedRefreshInterval(feed.ID, feed.AdjustedRefreshInterval(hasNew)); err != nil {
		return err
	}
	return c.store.UpdateFeedLastUpdatedAt(feed.ID, now)
}

// fillFeedMetadata backfills feed fields the user has not set from the
// parsed document.
func (c *LocalCoordinator) fillFeedMetadata(feed *models.Feed, payload *parse.FeedPayload) error {
	changed := false
	if feed.Name == "" && payload.Name != "" {
		feed.Name = payload.Name
		changed = true
	}
	if feed.Description == "" && payload.Description != "" {
		feed.Description = payload.Description
		changed = true
	}
	if feed.HomepageLink == "" && payload.HomepageLink != "" {
		feed.HomepageLink = payload.HomepageLink
		changed = true
	}
	if feed.Icon == "" && payload.Icon != "" {
		feed.Icon = payload.Icon
		changed = true
	}
	if !changed {
		return nil
	}
	return c.store.UpsertFeed(feed)
}

// mergePosts inserts parsed articles that are not already stored. Identity is
// the article link; parsed GUIDs are not stable across hosts.
func (c *LocalCoordinator) mergePosts(feed *models.Feed, posts []parse.PostPayload, now time.Time) error {
	for _, pp := range posts {
		if pp.Link == "" {
			continue
		}
		if _, err := c.store.PostByLink(pp.Link); err == nil {
			continue
		} else if !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		post := models.NewPost(feed.ID, pp.Link, pp.Title)
		post.Description = pp.Description
		post.ImageURL = pp.ImageURL
		if pp.Date != nil {
			post.PostDate = *pp.Date
		}
		post.CreatedAt = now
		post.UpdatedAt = now
		post.SyncedAt = now

		if err := c.store.UpsertPost(post); err != nil {
			return err
		}
		if pp.RawContent != "" {
			err := c.store.UpsertPostContent(&models.PostContent{
				PostID:      post.ID,
				RawContent:  content.ToMarkdown(pp.RawContent),
				HTMLContent: pp.RawContent,
				CreatedAt:   now,
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}
