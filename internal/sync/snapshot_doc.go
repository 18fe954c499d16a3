// ABOUTME: Snapshot wire format: metadata document plus numbered post chunks
// ABOUTME: Timestamps travel as epoch milliseconds; unknown fields are ignored

package sync

import (
	"fmt"
	"time"

	"github.com/harper/skein/internal/models"
	"github.com/harper/skein/internal/timeutil"
)

const (
	// snapshotVersion is the current document format. Version 1 carried all
	// posts inline in the metadata document; version 2 moved them to chunks.
	snapshotVersion = 2

	metadataBlobName = "/skein_sync_metadata.json"
	legacyBlobName   = "/skein_sync_data.json"
	blobPrefix       = "/skein_"
	chunkSize        = 500
)

func chunkBlobName(i int) string {
	return fmt.Sprintf("/skein_posts_chunk_%d.json", i)
}

type snapshotMetadata struct {
	Version      int             `json:"version"`
	LastSyncedAt *int64          `json:"lastSyncedAt,omitempty"`
	Feeds        []snapshotFeed  `json:"feeds"`
	Groups       []snapshotGroup `json:"groups"`
	BlockedWords []snapshotWord  `json:"blockedWords,omitempty"`
	User         *snapshotUser   `json:"user,omitempty"`
	Bookmarks    []string        `json:"bookmarks,omitempty"`
	ReadPosts    []string        `json:"readPosts,omitempty"`
	PostChunks   int             `json:"postChunks"`
	// Posts is the version-1 inline post list, read during migration only.
	Posts []snapshotPost `json:"posts,omitempty"`
}

type snapshotChunk struct {
	Posts []snapshotPost `json:"posts"`
}

type snapshotFeed struct {
	ID                string  `json:"id"`
	RemoteID          *string `json:"remoteId,omitempty"`
	Link              string  `json:"link"`
	Name              string  `json:"name"`
	HomepageLink      string  `json:"homepageLink,omitempty"`
	Icon              string  `json:"icon,omitempty"`
	Description       string  `json:"description,omitempty"`
	PinnedAt          *int64  `json:"pinnedAt,omitempty"`
	LastCleanUpAt     *int64  `json:"lastCleanUpAt,omitempty"`
	RefreshIntervalMs int64   `json:"refreshIntervalMs,omitempty"`
	CreatedAt         int64   `json:"createdAt"`
}

type snapshotGroup struct {
	ID        string   `json:"id"`
	RemoteID  *string  `json:"remoteId,omitempty"`
	Name      string   `json:"name"`
	FeedIDs   []string `json:"feedIds,omitempty"`
	PinnedAt  *int64   `json:"pinnedAt,omitempty"`
	UpdatedAt int64    `json:"updatedAt"`
}

type snapshotWord struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	UpdatedAt int64  `json:"updatedAt"`
}

type snapshotUser struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	ProfileID string `json:"profileId,omitempty"`
	Email     string `json:"email,omitempty"`
	ServerURL string `json:"serverUrl,omitempty"`
}

type snapshotPost struct {
	ID          string   `json:"id"`
	SourceID    string   `json:"sourceId"`
	RemoteID    *string  `json:"remoteId,omitempty"`
	Link        string   `json:"link"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	ImageURL    string   `json:"imageUrl,omitempty"`
	PostDate    int64    `json:"postDate"`
	CreatedAt   int64    `json:"createdAt"`
	UpdatedAt   int64    `json:"updatedAt"`
	Flags       []string `json:"flags,omitempty"`
	RawContent  string   `json:"rawContent,omitempty"`
	HTMLContent string   `json:"htmlContent,omitempty"`
}

// Model conversions

func feedToSnapshot(f *models.Feed) snapshotFeed {
	return snapshotFeed{
		ID:                f.ID,
		RemoteID:          f.RemoteID,
		Link:              f.Link,
		Name:              f.Name,
		HomepageLink:      f.HomepageLink,
		Icon:              f.Icon,
		Description:       f.Description,
		PinnedAt:          timeutil.ToMillisPtr(f.PinnedAt),
		LastCleanUpAt:     timeutil.ToMillisPtr(f.LastCleanUpAt),
		RefreshIntervalMs: f.RefreshInterval.Milliseconds(),
		CreatedAt:         timeutil.ToMillis(f.CreatedAt),
	}
}

func snapshotToFeed(s snapshotFeed) *models.Feed {
	feed := &models.Feed{
		ID:            s.ID,
		RemoteID:      s.RemoteID,
		Link:          s.Link,
		Name:          s.Name,
		HomepageLink:  s.HomepageLink,
		Icon:          s.Icon,
		Description:   s.Description,
		PinnedAt:      timeutil.FromMillisPtr(s.PinnedAt),
		LastCleanUpAt: timeutil.FromMillisPtr(s.LastCleanUpAt),
		CreatedAt:     timeutil.FromMillis(s.CreatedAt),
	}
	feed.RefreshInterval = time.Duration(s.RefreshIntervalMs) * time.Millisecond
	if feed.RefreshInterval <= 0 {
		feed.RefreshInterval = time.Hour
	}
	return feed
}

func groupToSnapshot(g *models.Group) snapshotGroup {
	return snapshotGroup{
		ID:        g.ID,
		RemoteID:  g.RemoteID,
		Name:      g.Name,
		FeedIDs:   g.FeedIDs,
		PinnedAt:  timeutil.ToMillisPtr(g.PinnedAt),
		UpdatedAt: timeutil.ToMillis(g.UpdatedAt),
	}
}

func snapshotToGroup(s snapshotGroup) *models.Group {
	return &models.Group{
		ID:        s.ID,
		RemoteID:  s.RemoteID,
		Name:      s.Name,
		FeedIDs:   s.FeedIDs,
		PinnedAt:  timeutil.FromMillisPtr(s.PinnedAt),
		UpdatedAt: timeutil.FromMillis(s.UpdatedAt),
	}
}

func postToSnapshot(p *models.Post, content *models.PostContent) snapshotPost {
	sp := snapshotPost{
		ID:          p.ID,
		SourceID:    p.SourceID,
		RemoteID:    p.RemoteID,
		Link:        p.Link,
		Title:       p.Title,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		PostDate:    timeutil.ToMillis(p.PostDate),
		CreatedAt:   timeutil.ToMillis(p.CreatedAt),
		UpdatedAt:   timeutil.ToMillis(p.UpdatedAt),
	}
	for _, flag := range p.Flags() {
		sp.Flags = append(sp.Flags, string(flag))
	}
	if content != nil {
		sp.RawContent = content.RawContent
		sp.HTMLContent = content.HTMLContent
	}
	return sp
}

func snapshotToPost(s snapshotPost, at time.Time) *models.Post {
	post := &models.Post{
		ID:          s.ID,
		SourceID:    s.SourceID,
		RemoteID:    s.RemoteID,
		Link:        s.Link,
		Title:       s.Title,
		Description: s.Description,
		ImageURL:    s.ImageURL,
		PostDate:    timeutil.FromMillis(s.PostDate),
		CreatedAt:   timeutil.FromMillis(s.CreatedAt),
		UpdatedAt:   at,
		SyncedAt:    at,
	}
	for _, flag := range s.Flags {
		switch models.PostFlag(flag) {
		case models.FlagRead:
			post.Read = true
		case models.FlagBookmarked:
			post.Bookmarked = true
		}
	}
	return post
}

func wordToSnapshot(w *models.BlockedWord) snapshotWord {
	return snapshotWord{
		ID:        w.ID,
		Content:   w.Content,
		UpdatedAt: timeutil.ToMillis(w.UpdatedAt),
	}
}

func snapshotToWord(s snapshotWord) *models.BlockedWord {
	return &models.BlockedWord{
		ID:        s.ID,
		Content:   s.Content,
		UpdatedAt: timeutil.FromMillis(s.UpdatedAt),
	}
}
