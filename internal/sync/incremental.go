// ABOUTME: Shared incremental merge helpers used by the aggregator coordinators
// ABOUTME: Remote article identity resolves by remote id first, link second

package sync

import (
	"errors"
	"fmt"
	"time"

	"github.com/harper/skein/internal/content"
	"github.com/harper/skein/internal/models"
	"github.com/harper/skein/internal/storage"
)

// remoteArticle is a backend-agnostic article coming from an aggregator.
type remoteArticle struct {
	RemoteID   string
	FeedID     string // local owning feed id; empty means the feed is unknown
	Link       string
	Title      string
	Body       string // raw HTML
	Date       time.Time
	Read       bool
	Bookmarked bool
}

// applyRemoteArticle merges one remote article into the store. An existing
// post keyed by remote id is left untouched; a link match only gets the
// remote id attached. Articles whose owning feed is unknown are skipped.
// Reports whether a new post was created.
func applyRemoteArticle(st storage.Store, a remoteArticle, now time.Time) (bool, error) {
	if a.FeedID == "" {
		return false, nil
	}

	if _, err := st.PostByRemoteID(a.RemoteID); err == nil {
		return false, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return false, err
	}

	if existing, err := st.PostByLink(a.Link); err == nil {
		if err := st.UpdatePostRemoteID(existing.ID, a.RemoteID); err != nil {
			return false, fmt.Errorf("attach remote id: %w", err)
		}
		return false, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return false, err
	}

	post := models.NewPost(a.FeedID, a.Link, a.Title)
	post.RemoteID = &a.RemoteID
	post.Description = content.ExtractText(a.Body)
	post.ImageURL = content.FirstImageURL(a.Body)
	post.Read = a.Read
	post.Bookmarked = a.Bookmarked
	if !a.Date.IsZero() {
		post.PostDate = a.Date
	}
	post.CreatedAt = now
	post.UpdatedAt = now
	post.SyncedAt = now

	if err := st.UpsertPost(post); err != nil {
		return false, fmt.Errorf("upsert post: %w", err)
	}

	if a.Body != "" {
		err := st.UpsertPostContent(&models.PostContent{
			PostID:      post.ID,
			RawContent:  content.ToMarkdown(a.Body),
			HTMLContent: a.Body,
			CreatedAt:   now,
		})
		if err != nil {
			return false, fmt.Errorf("upsert content: %w", err)
		}
	}
	return true, nil
}

// applyRemoteStatus applies remote read/bookmark state to a post. Dirty posts
// keep their local value until the next push; clean posts take the remote
// value with SyncedAt stamped to the same instant so they stay clean.
func applyRemoteStatus(st storage.Store, post *models.Post, read, bookmarked bool, at time.Time) error {
	if post.Dirty() {
		return nil
	}

	changed := false
	if post.Read != read {
		if err := st.UpdatePostRead(post.ID, read, at); err != nil {
			return err
		}
		changed = true
	}
	if post.Bookmarked != bookmarked {
		if err := st.UpdatePostBookmarked(post.ID, bookmarked, at); err != nil {
			return err
		}
		changed = true
	}
	if changed {
		return st.UpdatePostSyncedAt(post.ID, at)
	}
	return nil
}
