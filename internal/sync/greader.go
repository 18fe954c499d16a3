// ABOUTME: GReader coordinator: push local changes, reconcile subscriptions, pull articles
// ABOUTME: Works against any Google Reader compatible aggregator (FreshRSS et al)

package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/harper/skein/internal/models"
	"github.com/harper/skein/internal/remote/greader"
	"github.com/harper/skein/internal/storage"
)

const (
	greaderArticlePageSize = 250
	greaderStatusPageSize  = 500
	greaderIDPageSize      = 1000

	// First syncs backfill a month; incremental pulls re-read a day of
	// overlap so late-arriving items near the watermark are not missed.
	greaderFirstSyncWindow = 30 * 24 * time.Hour
	greaderOverlap         = 24 * time.Hour
)

// GReaderClient is the aggregator surface the coordinator needs. Satisfied by
// *greader.Client.
type GReaderClient interface {
	Subscriptions(ctx context.Context) ([]greader.Subscription, error)
	Tags(ctx context.Context) ([]greader.Tag, error)
	StreamContents(ctx context.Context, streamID string, since time.Time, continuation string, limit int) (*greader.Stream, error)
	ItemIDs(ctx context.Context, streamID, excludeTag string, limit int, continuation string) ([]string, string, error)
	EditTags(ctx context.Context, itemIDs []string, addTag, removeTag string) error
	Subscribe(ctx context.Context, feedURL string) (string, error)
	Unsubscribe(ctx context.Context, streamID string) error
	EditSubscription(ctx context.Context, streamID, title, addLabel, removeLabel string) error
	AddTag(ctx context.Context, name string) error
	RenameTag(ctx context.Context, oldName, newName string) error
	DeleteTag(ctx context.Context, name string) error
}

// GReaderCoordinator reconciles the local store with a Google Reader
// compatible aggregator. A full Pull pushes local changes first so the
// subsequent pull reflects them.
type GReaderCoordinator struct {
	*runner
	store  storage.Store
	client GReaderClient
	log    *slog.Logger
	now    func() time.Time
}

func NewGReaderCoordinator(store storage.Store, client GReaderClient, log *slog.Logger) *GReaderCoordinator {
	if log == nil {
		log = slog.Default()
	}
	return &GReaderCoordinator{
		runner: newRunner("greader", log, store),
		store:  store,
		client: client,
		log:    log.With("coordinator", "greader"),
		now:    time.Now,
	}
}

func (c *GReaderCoordinator) Pull(ctx context.Context) bool {
	return c.run(func() error { return c.sync(ctx) })
}

// PullFeeds refreshes only the given feeds' streams; statuses and
// subscriptions are left to the next full pull.
func (c *GReaderCoordinator) PullFeeds(ctx context.Context, feedIDs []string) bool {
	return c.run(func() error {
		since := c.articleWindowStart()
		for _, id := range feedIDs {
			feed, err := c.store.GetFeed(id)
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if !feed.HasRemoteID() {
				continue
			}
			if err := c.pullStream(ctx, *feed.RemoteID, since); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *GReaderCoordinator) PullFeed(ctx context.Context, feedID string) bool {
	return c.PullFeeds(ctx, []string{feedID})
}

func (c *GReaderCoordinator) Push(ctx context.Context) bool {
	return c.run(func() error { return c.pushLocal(ctx) })
}

func (c *GReaderCoordinator) sync(ctx context.Context) error {
	if err := c.pushLocal(ctx); err != nil {
		return fmt.Errorf("push: %w", err)
	}
	c.progress(0.3)

	since := c.articleWindowStart()

	if err := c.reconcileRemote(ctx); err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	if err := c.pullStream(ctx, greader.StreamReadingList, since); err != nil {
		return fmt.Errorf("pull reading list: %w", err)
	}
	if err := c.pullStream(ctx, greader.StateStarred, since); err != nil {
		return fmt.Errorf("pull starred: %w", err)
	}
	c.progress(0.7)

	if err := c.pullStatuses(ctx); err != nil {
		return fmt.Errorf("pull statuses: %w", err)
	}
	c.progress(0.9)

	now := c.now()
	if err := c.store.SetLastSyncedAt(now); err != nil {
		return err
	}
	return c.store.SetLastSyncStatus(StatusComplete.String())
}

// articleWindowStart returns the lower bound for article pulls.
func (c *GReaderCoordinator) articleWindowStart() time.Time {
	meta, err := c.store.GetSyncMeta()
	if err != nil || meta.LastSyncedAt == nil {
		return c.now().Add(-greaderFirstSyncWindow)
	}
	return meta.LastSyncedAt.Add(-greaderOverlap)
}

// Push: statuses, then group structure, then feeds and memberships.

func (c *GReaderCoordinator) pushLocal(ctx context.Context) error {
	if err := c.pushStatuses(ctx); err != nil {
		return err
	}
	if err := c.pushGroups(ctx); err != nil {
		return err
	}
	return c.pushFeeds(ctx)
}

// pushStatuses flushes dirty post flags in batches. Each processed batch
// becomes clean, so the query always restarts at offset zero.
func (c *GReaderCoordinator) pushStatuses(ctx context.Context) error {
	for {
		posts, err := c.store.PostsWithLocalChanges(greaderStatusPageSize, 0)
		if err != nil {
			return err
		}
		if len(posts) == 0 {
			return nil
		}

		var readAdd, readRemove, starAdd, starRemove []string
		for _, post := range posts {
			if !post.HasRemoteID() {
				continue
			}
			if post.Read {
				readAdd = append(readAdd, *post.RemoteID)
			} else {
				readRemove = append(readRemove, *post.RemoteID)
			}
			if post.Bookmarked {
				starAdd = append(starAdd, *post.RemoteID)
			} else {
				starRemove = append(starRemove, *post.RemoteID)
			}
		}

		if err := c.client.EditTags(ctx, readAdd, greader.StateRead, ""); err != nil {
			return err
		}
		if err := c.client.EditTags(ctx, readRemove, "", greader.StateRead); err != nil {
			return err
		}
		if err := c.client.EditTags(ctx, starAdd, greader.StateStarred, ""); err != nil {
			return err
		}
		if err := c.client.EditTags(ctx, starRemove, "", greader.StateStarred); err != nil {
			return err
		}

		// Posts without a remote pairing have nothing to push; marking them
		// synced keeps the dirty queue finite.
		now := c.now()
		for _, post := range posts {
			if err := c.store.UpdatePostSyncedAt(post.ID, now); err != nil {
				return err
			}
		}
	}
}

// pushGroups propagates local group creations, deletions, and renames.
func (c *GReaderCoordinator) pushGroups(ctx context.Context) error {
	groups, err := c.store.ListGroups()
	if err != nil {
		return err
	}

	for _, group := range groups {
		if group.IsDeleted {
			if group.HasRemoteID() {
				if err := c.client.DeleteTag(ctx, remoteLabel(*group.RemoteID)); err != nil {
					return err
				}
			}
			if err := c.store.RemoveGroup(group.ID); err != nil {
				return err
			}
			continue
		}

		// A new local group is created remotely and pairs with its label
		// stream id; the membership push then attaches subscriptions to it.
		if !group.HasRemoteID() {
			if err := c.client.AddTag(ctx, group.Name); err != nil {
				return err
			}
			if err := c.store.UpdateGroupRemoteID(group.ID, greader.LabelPrefix+group.Name, c.now()); err != nil {
				return err
			}
			continue
		}

		// A remote-paired group whose local name diverged was renamed here.
		if old := remoteLabel(*group.RemoteID); old != group.Name {
			if err := c.client.RenameTag(ctx, old, group.Name); err != nil {
				return err
			}
			newID := greader.LabelPrefix + group.Name
			if err := c.store.UpdateGroupRemoteID(group.ID, newID, c.now()); err != nil {
				return err
			}
		}
	}
	return nil
}

// pushFeeds propagates feed deletions and additions, then aligns remote
// label membership with local groups.
func (c *GReaderCoordinator) pushFeeds(ctx context.Context) error {
	feeds, err := c.store.ListFeeds()
	if err != nil {
		return err
	}
	groups, err := c.store.ListGroups()
	if err != nil {
		return err
	}

	for _, feed := range feeds {
		if feed.IsDeleted {
			if feed.HasRemoteID() {
				if err := c.client.Unsubscribe(ctx, *feed.RemoteID); err != nil {
					return err
				}
			}
			if err := c.store.RemoveFeed(feed.ID); err != nil {
				return err
			}
			continue
		}

		if !feed.HasRemoteID() {
			streamID, err := c.client.Subscribe(ctx, feed.Link)
			if err != nil {
				return err
			}
			if err := c.store.UpdateFeedRemoteID(feed.ID, streamID, c.now()); err != nil {
				return err
			}
			remoteID := streamID
			feed.RemoteID = &remoteID
			if feed.Name != "" {
				if err := c.client.EditSubscription(ctx, streamID, feed.Name, "", ""); err != nil {
					return err
				}
			}
		}
	}

	return c.pushMemberships(ctx, feeds, groups)
}

// pushMemberships diffs each subscription's remote label against the feed's
// local group. Membership is single-group: a feed belongs to at most one.
func (c *GReaderCoordinator) pushMemberships(ctx context.Context, feeds []*models.Feed, groups []*models.Group) error {
	subs, err := c.client.Subscriptions(ctx)
	if err != nil {
		return err
	}
	remoteLabels := make(map[string]string, len(subs)) // stream id -> label
	for _, sub := range subs {
		if len(sub.Categories) > 0 {
			remoteLabels[sub.ID] = sub.Categories[0].Label
		}
	}

	localGroup := func(feedID string) string {
		for _, g := range groups {
			if !g.IsDeleted && g.ContainsFeed(feedID) {
				return g.Name
			}
		}
		return ""
	}

	for _, feed := range feeds {
		if feed.IsDeleted || !feed.HasRemoteID() {
			continue
		}
		want := localGroup(feed.ID)
		// A subscription missing from the map has no categories, which reads
		// as the empty label; a fresh local assignment still pushes its add.
		have := remoteLabels[*feed.RemoteID]
		if want == have {
			continue
		}
		if err := c.client.EditSubscription(ctx, *feed.RemoteID, "", want, have); err != nil {
			return err
		}
	}
	return nil
}

// Reconcile: make the local catalogue mirror the remote one.

func (c *GReaderCoordinator) reconcileRemote(ctx context.Context) error {
	subs, err := c.client.Subscriptions(ctx)
	if err != nil {
		return err
	}
	tags, err := c.client.Tags(ctx)
	if err != nil {
		return err
	}

	if err := c.reconcileGroups(tags); err != nil {
		return err
	}
	return c.reconcileFeeds(subs)
}

func (c *GReaderCoordinator) reconcileGroups(tags []greader.Tag) error {
	now := c.now()
	seen := make(map[string]bool, len(tags))

	for _, tag := range tags {
		seen[tag.ID] = true
		if _, err := c.store.GroupByRemoteID(tag.ID); err == nil {
			continue
		} else if !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		// A group created locally under the same name adopts the remote id.
		if existing, err := c.store.GroupByName(tag.Label()); err == nil {
			if err := c.store.UpdateGroupRemoteID(existing.ID, tag.ID, now); err != nil {
				return err
			}
			continue
		} else if !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		group := models.NewGroup(tag.Label())
		remoteID := tag.ID
		group.RemoteID = &remoteID
		group.UpdatedAt = now
		if err := c.store.UpsertGroup(group); err != nil {
			return err
		}
	}

	// A paired group whose tag vanished was deleted on another device.
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

func (c *GReaderCoordinator) reconcileFeeds(subs []greader.Subscription) error {
	now := c.now()
	byID := make(map[string]bool, len(subs))
	byURL := make(map[string]bool, len(subs))
	for _, sub := range subs {
		byID[sub.ID] = true
		byURL[sub.URL] = true
	}

	// Paired feeds absent remotely by both id and url were unsubscribed
	// elsewhere.
	feeds, err := c.store.ListFeeds()
	if err != nil {
		return err
	}
	for _, feed := range feeds {
		if feed.HasRemoteID() && !byID[*feed.RemoteID] && !byURL[feed.Link] {
			if err := c.store.RemoveFeed(feed.ID); err != nil {
				return err
			}
		}
	}

	for _, sub := range subs {
		feed, err := c.store.FeedByRemoteID(sub.ID)
		if errors.Is(err, storage.ErrNotFound) {
			feed, err = c.store.FeedByLink(sub.URL)
			if err == nil {
				if err := c.store.UpdateFeedRemoteID(feed.ID, sub.ID, now); err != nil {
					return err
				}
				remoteID := sub.ID
				feed.RemoteID = &remoteID
			}
		}
		if errors.Is(err, storage.ErrNotFound) {
			feed = models.NewFeed(sub.URL)
			remoteID := sub.ID
			feed.RemoteID = &remoteID
			feed.Name = sub.Title
			feed.HomepageLink = sub.HTMLURL
			feed.Icon = sub.IconURL
			if err := c.store.UpsertFeed(feed); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		if err := c.reconcileMembership(feed, sub); err != nil {
			return err
		}
	}
	return nil
}

// reconcileMembership moves the feed into the remote subscription's label
// and out of every other group.
func (c *GReaderCoordinator) reconcileMembership(feed *models.Feed, sub greader.Subscription) error {
	var wantGroupID string
	if len(sub.Categories) > 0 {
		group, err := c.store.GroupByRemoteID(sub.Categories[0].ID)
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

// Pull: articles and statuses.

func (c *GReaderCoordinator) pullStream(ctx context.Context, streamID string, since time.Time) error {
	continuation := ""
	for {
		page, err := c.client.StreamContents(ctx, streamID, since, continuation, greaderArticlePageSize)
		if err != nil {
			return err
		}
		now := c.now()
		for _, item := range page.Items {
			feedID := ""
			if feed, err := c.store.FeedByRemoteID(item.Origin.StreamID); err == nil {
				feedID = feed.ID
			} else if !errors.Is(err, storage.ErrNotFound) {
				return err
			}

			_, err := applyRemoteArticle(c.store, remoteArticle{
				RemoteID:   item.ID,
				FeedID:     feedID,
				Link:       item.Link(),
				Title:      item.Title,
				Body:       item.Body(),
				Date:       item.PublishedAt(),
				Read:       item.HasCategory(greader.StateRead),
				Bookmarked: item.HasCategory(greader.StateStarred),
			}, now)
			if err != nil {
				return err
			}
		}
		if page.Continuation == "" {
			return nil
		}
		continuation = page.Continuation
	}
}

// pullStatuses fetches the remote unread and starred id sets and applies them
// to paired posts. Dirty posts keep their local value until the next push.
func (c *GReaderCoordinator) pullStatuses(ctx context.Context) error {
	unread, err := c.fetchIDSet(ctx, greader.StreamReadingList, greader.StateRead)
	if err != nil {
		return err
	}
	starred, err := c.fetchIDSet(ctx, greader.StateStarred, "")
	if err != nil {
		return err
	}

	now := c.now()
	for offset := 0; ; offset += greaderStatusPageSize {
		posts, err := c.store.PostsWithRemoteID(greaderStatusPageSize, offset)
		if err != nil {
			return err
		}
		if len(posts) == 0 {
			return nil
		}
		for _, post := range posts {
			read := !unread[*post.RemoteID]
			bookmarked := starred[*post.RemoteID]
			if err := applyRemoteStatus(c.store, post, read, bookmarked, now); err != nil {
				return err
			}
		}
	}
}

func (c *GReaderCoordinator) fetchIDSet(ctx context.Context, streamID, excludeTag string) (map[string]bool, error) {
	set := make(map[string]bool)
	continuation := ""
	for {
		ids, next, err := c.client.ItemIDs(ctx, streamID, excludeTag, greaderIDPageSize, continuation)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			set[id] = true
		}
		if next == "" {
			return set, nil
		}
		continuation = next
	}
}

// remoteLabel extracts the label name from a tag stream id.
func remoteLabel(remoteID string) string {
	return greader.Tag{ID: remoteID}.Label()
}
