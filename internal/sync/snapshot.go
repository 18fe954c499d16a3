// ABOUTME: Snapshot sync against a shared blob store: pull+merge, then build+push
// ABOUTME: Merge never overwrites dirty local state; push uploads bookmarks in chunks

package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/harper/skein/internal/blob"
	"github.com/harper/skein/internal/models"
	"github.com/harper/skein/internal/storage"
	"github.com/harper/skein/internal/timeutil"
)

// SnapshotService reconciles the local store against a snapshot document kept
// in a shared blob store. One Sync is pull+merge followed by build+push, so
// every participating device converges on the union of all devices' state.
type SnapshotService struct {
	store storage.Store
	blobs blob.Store
	log   *slog.Logger
	now   func() time.Time
}

func NewSnapshotService(store storage.Store, blobs blob.Store, log *slog.Logger) *SnapshotService {
	if log == nil {
		log = slog.Default()
	}
	return &SnapshotService{
		store: store,
		blobs: blobs,
		log:   log.With("component", "snapshot"),
		now:   time.Now,
	}
}

// Sync pulls the remote snapshot, merges it into the local store, then builds
// a fresh snapshot from the merged state and pushes it back.
func (s *SnapshotService) Sync(ctx context.Context, progress func(float64)) error {
	if progress == nil {
		progress = func(float64) {}
	}

	doc, err := s.download(ctx)
	if err != nil {
		return fmt.Errorf("download snapshot: %w", err)
	}
	progress(0.2)

	if doc != nil {
		if err := s.merge(ctx, doc); err != nil {
			return fmt.Errorf("merge snapshot: %w", err)
		}
	}
	progress(0.5)

	return s.push(ctx, progress)
}

// PushOnly builds and uploads a snapshot without pulling first. Used when
// only local changes happened since the last full sync.
func (s *SnapshotService) PushOnly(ctx context.Context, progress func(float64)) error {
	if progress == nil {
		progress = func(float64) {}
	}
	return s.push(ctx, progress)
}

// download fetches the snapshot metadata, falling back to the pre-chunking
// document name. A nil result with nil error means no snapshot exists yet.
func (s *SnapshotService) download(ctx context.Context) (*snapshotMetadata, error) {
	data, err := s.blobs.Download(metadataBlobName)
	if errors.Is(err, blob.ErrNotExist) {
		data, err = s.blobs.Download(legacyBlobName)
		if errors.Is(err, blob.ErrNotExist) {
			s.log.Info("no remote snapshot found, first sync")
			return nil, nil
		}
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var doc snapshotMetadata
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if doc.Version == 0 {
		doc.Version = 1
	}
	return &doc, nil
}

func (s *SnapshotService) merge(ctx context.Context, doc *snapshotMetadata) error {
	now := s.now()

	// Purge before merging posts: an advanced remote cleanup watermark means
	// another device already deleted read posts below it, and merging them
	// back would resurrect them.
	watermarks, err := s.applyCleanupWatermarks(doc)
	if err != nil {
		return err
	}

	feedIDMap, err := s.mergeFeeds(doc)
	if err != nil {
		return err
	}

	if err := s.mergeGroups(doc, feedIDMap); err != nil {
		return err
	}

	posts, err := s.downloadPosts(ctx, doc)
	if err != nil {
		return err
	}
	if err := s.mergePosts(posts, feedIDMap, watermarks, now); err != nil {
		return err
	}

	if err := s.applyStatusLists(doc, now); err != nil {
		return err
	}

	if len(doc.BlockedWords) > 0 {
		words := make([]*models.BlockedWord, 0, len(doc.BlockedWords))
		for _, w := range doc.BlockedWords {
			words = append(words, snapshotToWord(w))
		}
		if err := s.store.UpsertBlockedWords(words); err != nil {
			return fmt.Errorf("merge blocked words: %w", err)
		}
	}

	return s.mergeUser(doc)
}

// applyCleanupWatermarks advances per-feed cleanup watermarks from the
// snapshot and purges read posts below them. Returns the effective watermark
// per local feed id for post filtering.
func (s *SnapshotService) applyCleanupWatermarks(doc *snapshotMetadata) (map[string]time.Time, error) {
	watermarks := make(map[string]time.Time)
	for _, sf := range doc.Feeds {
		remote := timeutil.FromMillisPtr(sf.LastCleanUpAt)
		if remote == nil {
			continue
		}

		local, err := s.store.GetFeed(sf.ID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		if err == nil {
			localMark := timeutil.OrDistantPast(local.LastCleanUpAt)
			if !remote.After(localMark) {
				watermarks[local.ID] = localMark
				continue
			}
			if err := s.store.DeleteReadPostsOlderThan(local.ID, *remote); err != nil {
				return nil, fmt.Errorf("purge feed %s: %w", local.ID, err)
			}
			if err := s.store.UpdateFeedCleanUpAt(local.ID, *remote); err != nil {
				return nil, err
			}
		}
		watermarks[sf.ID] = *remote
	}
	return watermarks, nil
}

// mergeFeeds upserts snapshot feeds. When a local feed already owns the same
// link under a different id, the local record wins and the snapshot feed's id
// is mapped onto it so its posts land on the right feed.
func (s *SnapshotService) mergeFeeds(doc *snapshotMetadata) (map[string]string, error) {
	idMap := make(map[string]string)
	for _, sf := range doc.Feeds {
		idMap[sf.ID] = sf.ID

		if _, err := s.store.GetFeed(sf.ID); err == nil {
			feed := snapshotToFeed(sf)
			if err := s.store.UpsertFeed(feed); err != nil {
				return nil, fmt.Errorf("merge feed %s: %w", sf.ID, err)
			}
			continue
		} else if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}

		if existing, err := s.store.FeedByLink(sf.Link); err == nil {
			idMap[sf.ID] = existing.ID
			continue
		} else if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}

		if err := s.store.UpsertFeed(snapshotToFeed(sf)); err != nil {
			return nil, fmt.Errorf("merge feed %s: %w", sf.ID, err)
		}
	}
	return idMap, nil
}

// mergeGroups applies last-writer-wins on UpdatedAt per group.
func (s *SnapshotService) mergeGroups(doc *snapshotMetadata, feedIDMap map[string]string) error {
	for _, sg := range doc.Groups {
		remote := snapshotToGroup(sg)
		for i, fid := range remote.FeedIDs {
			if mapped, ok := feedIDMap[fid]; ok {
				remote.FeedIDs[i] = mapped
			}
		}

		local, err := s.store.GetGroup(sg.ID)
		if errors.Is(err, storage.ErrNotFound) {
			if err := s.store.UpsertGroup(remote); err != nil {
				return fmt.Errorf("merge group %s: %w", sg.ID, err)
			}
			if err := s.store.ReplaceGroupFeeds(remote.ID, remote.FeedIDs); err != nil {
				return fmt.Errorf("merge group feeds %s: %w", sg.ID, err)
			}
			continue
		}
		if err != nil {
			return err
		}

		if !remote.UpdatedAt.After(local.UpdatedAt) {
			continue
		}
		if err := s.store.UpsertGroup(remote); err != nil {
			return fmt.Errorf("merge group %s: %w", sg.ID, err)
		}
		if err := s.store.ReplaceGroupFeeds(remote.ID, remote.FeedIDs); err != nil {
			return fmt.Errorf("merge group feeds %s: %w", sg.ID, err)
		}
	}
	return nil
}

// downloadPosts collects posts from numbered chunks plus any version-1 inline
// list. A missing or corrupt chunk is logged and skipped; the rest still merge.
func (s *SnapshotService) downloadPosts(ctx context.Context, doc *snapshotMetadata) ([]snapshotPost, error) {
	posts := append([]snapshotPost(nil), doc.Posts...)
	for i := 0; i < doc.PostChunks; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := chunkBlobName(i)
		data, err := s.blobs.Download(name)
		if err != nil {
			s.log.Warn("skipping unreadable chunk", "chunk", name, "error", err)
			continue
		}
		var chunk snapshotChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			s.log.Warn("skipping corrupt chunk", "chunk", name, "error", err)
			continue
		}
		posts = append(posts, chunk.Posts...)
	}
	return posts, nil
}

func (s *SnapshotService) mergePosts(posts []snapshotPost, feedIDMap map[string]string, watermarks map[string]time.Time, now time.Time) error {
	for _, sp := range posts {
		feedID := sp.SourceID
		if mapped, ok := feedIDMap[feedID]; ok {
			feedID = mapped
		}
		if _, err := s.store.GetFeed(feedID); errors.Is(err, storage.ErrNotFound) {
			continue
		} else if err != nil {
			return err
		}

		read := models.HasFlag(flagsOf(sp), models.FlagRead)
		bookmarked := models.HasFlag(flagsOf(sp), models.FlagBookmarked)

		// A read post below its feed's cleanup watermark has been purged
		// elsewhere; only a bookmark saves it.
		if read && !bookmarked {
			if mark, ok := watermarks[sp.SourceID]; ok && timeutil.FromMillis(sp.PostDate).Before(mark) {
				continue
			}
		}

		local, err := s.store.GetPost(sp.ID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		if err == nil {
			if err := applyRemoteStatus(s.store, local, read, bookmarked, now); err != nil {
				return fmt.Errorf("merge post %s: %w", sp.ID, err)
			}
			continue
		}

		post := snapshotToPost(sp, now)
		post.SourceID = feedID
		if err := s.store.UpsertPost(post); err != nil {
			return fmt.Errorf("merge post %s: %w", sp.ID, err)
		}
		if sp.RawContent != "" || sp.HTMLContent != "" {
			err := s.store.UpsertPostContent(&models.PostContent{
				PostID:      post.ID,
				RawContent:  sp.RawContent,
				HTMLContent: sp.HTMLContent,
				CreatedAt:   now,
			})
			if err != nil {
				return fmt.Errorf("merge post content %s: %w", sp.ID, err)
			}
		}
	}
	return nil
}

func flagsOf(sp snapshotPost) []models.PostFlag {
	flags := make([]models.PostFlag, 0, len(sp.Flags))
	for _, f := range sp.Flags {
		flags = append(flags, models.PostFlag(f))
	}
	return flags
}

// applyStatusLists applies the bookmark and read id lists to posts that exist
// locally. Dirty posts keep their local value.
func (s *SnapshotService) applyStatusLists(doc *snapshotMetadata, now time.Time) error {
	apply := func(ids []string, set func(post *models.Post) error) error {
		for _, id := range ids {
			post, err := s.store.GetPost(id)
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if post.Dirty() {
				continue
			}
			if err := set(post); err != nil {
				return err
			}
		}
		return nil
	}

	err := apply(doc.Bookmarks, func(post *models.Post) error {
		if post.Bookmarked {
			return nil
		}
		if err := s.store.UpdatePostBookmarked(post.ID, true, now); err != nil {
			return err
		}
		return s.store.UpdatePostSyncedAt(post.ID, now)
	})
	if err != nil {
		return fmt.Errorf("apply bookmarks: %w", err)
	}

	err = apply(doc.ReadPosts, func(post *models.Post) error {
		if post.Read {
			return nil
		}
		if err := s.store.UpdatePostRead(post.ID, true, now); err != nil {
			return err
		}
		return s.store.UpdatePostSyncedAt(post.ID, now)
	})
	if err != nil {
		return fmt.Errorf("apply read posts: %w", err)
	}
	return nil
}

// mergeUser creates the snapshot's user record only when none exists locally.
func (s *SnapshotService) mergeUser(doc *snapshotMetadata) error {
	if doc.User == nil {
		return nil
	}
	if _, err := s.store.GetUser(); err == nil {
		return nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return s.store.CreateUser(&models.User{
		ID:        doc.User.ID,
		Name:      doc.User.Name,
		ProfileID: doc.User.ProfileID,
		Email:     doc.User.Email,
		ServerURL: doc.User.ServerURL,
	})
}

// push builds a snapshot from the local store and uploads it: chunks first,
// then the metadata document that references them. A chunk that fails to
// upload is dropped from this snapshot; the metadata upload is the commit
// point and its failure fails the sync.
func (s *SnapshotService) push(ctx context.Context, progress func(float64)) error {
	now := s.now()

	chunks, err := s.buildChunks()
	if err != nil {
		return fmt.Errorf("build chunks: %w", err)
	}

	keep := map[string]bool{metadataBlobName: true}
	uploaded := 0
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := json.Marshal(chunk)
		if err != nil {
			return fmt.Errorf("encode chunk: %w", err)
		}
		// Chunks are numbered by upload success so names stay contiguous
		// even when one fails.
		name := chunkBlobName(uploaded)
		if err := s.blobs.Upload(name, data); err != nil {
			s.log.Warn("chunk upload failed, dropping from snapshot", "chunk", name, "error", err)
			continue
		}
		keep[name] = true
		uploaded++
	}
	progress(0.8)

	meta, err := s.buildMetadata(uploaded, now)
	if err != nil {
		return fmt.Errorf("build metadata: %w", err)
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := s.blobs.Upload(metadataBlobName, data); err != nil {
		return fmt.Errorf("upload metadata: %w", err)
	}
	progress(0.9)

	if err := s.store.SetSyncFormatVersion(snapshotVersion); err != nil {
		return err
	}
	if err := s.store.SetLastSyncStatus(StatusComplete.String()); err != nil {
		return err
	}
	if err := s.store.SetLastSyncedAt(now); err != nil {
		return err
	}

	s.collectGarbage(keep)
	return nil
}

func (s *SnapshotService) buildChunks() ([]snapshotChunk, error) {
	bookmarked, err := s.store.BookmarkedPosts()
	if err != nil {
		return nil, err
	}

	var chunks []snapshotChunk
	var current snapshotChunk
	for _, post := range bookmarked {
		pc, err := s.store.PostContent(post.ID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		current.Posts = append(current.Posts, postToSnapshot(post, pc))
		if len(current.Posts) == chunkSize {
			chunks = append(chunks, current)
			current = snapshotChunk{}
		}
	}
	if len(current.Posts) > 0 {
		chunks = append(chunks, current)
	}
	return chunks, nil
}

func (s *SnapshotService) buildMetadata(postChunks int, now time.Time) (*snapshotMetadata, error) {
	feeds, err := s.store.ListFeeds()
	if err != nil {
		return nil, err
	}
	groups, err := s.store.ListGroups()
	if err != nil {
		return nil, err
	}
	words, err := s.store.ListBlockedWords()
	if err != nil {
		return nil, err
	}
	bookmarks, err := s.store.BookmarkIDs()
	if err != nil {
		return nil, err
	}
	readIDs, err := s.store.ReadPostIDs()
	if err != nil {
		return nil, err
	}

	syncedAt := timeutil.ToMillis(now)
	meta := &snapshotMetadata{
		Version:      snapshotVersion,
		LastSyncedAt: &syncedAt,
		Bookmarks:    bookmarks,
		ReadPosts:    readIDs,
		PostChunks:   postChunks,
	}
	for _, f := range feeds {
		if f.IsDeleted {
			continue
		}
		meta.Feeds = append(meta.Feeds, feedToSnapshot(f))
	}
	for _, g := range groups {
		if g.IsDeleted {
			continue
		}
		meta.Groups = append(meta.Groups, groupToSnapshot(g))
	}
	for _, w := range words {
		meta.BlockedWords = append(meta.BlockedWords, wordToSnapshot(w))
	}

	user, err := s.store.GetUser()
	if err == nil {
		meta.User = &snapshotUser{
			ID:        user.ID,
			Name:      user.Name,
			ProfileID: user.ProfileID,
			Email:     user.Email,
			ServerURL: user.ServerURL,
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	return meta, nil
}

// collectGarbage deletes snapshot blobs the current metadata no longer
// references, including the legacy single-document name. Failures are logged;
// stale blobs are retried on the next sync.
func (s *SnapshotService) collectGarbage(keep map[string]bool) {
	names, err := s.blobs.List(blobPrefix)
	if err != nil {
		s.log.Warn("snapshot gc list failed", "error", err)
		return
	}
	for _, name := range names {
		if keep[name] {
			continue
		}
		if err := s.blobs.Delete(name); err != nil {
			s.log.Warn("snapshot gc delete failed", "blob", name, "error", err)
		}
	}
}

// SnapshotCoordinator adapts SnapshotService to the Coordinator contract.
// Every pull variant runs a full sync; targeted feed pulls have no cheaper
// path against a whole-document snapshot.
type SnapshotCoordinator struct {
	*runner
	service *SnapshotService
}

func NewSnapshotCoordinator(service *SnapshotService, log *slog.Logger) *SnapshotCoordinator {
	return &SnapshotCoordinator{
		runner:  newRunner("snapshot", log, service.store),
		service: service,
	}
}

func (c *SnapshotCoordinator) Pull(ctx context.Context) bool {
	return c.run(func() error {
		return c.service.Sync(ctx, c.progress)
	})
}

func (c *SnapshotCoordinator) PullFeeds(ctx context.Context, feedIDs []string) bool {
	return c.Pull(ctx)
}

func (c *SnapshotCoordinator) PullFeed(ctx context.Context, feedID string) bool {
	return c.Pull(ctx)
}

func (c *SnapshotCoordinator) Push(ctx context.Context) bool {
	return c.run(func() error {
		return c.service.PushOnly(ctx, c.progress)
	})
}
