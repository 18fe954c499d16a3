// ABOUTME: Storage interface for the local feed database consumed by the sync engine
// ABOUTME: Defines feed/group/post CRUD, dirty-record queries, and sync watermark state

package storage

import (
	"errors"
	"time"

	"github.com/harper/skein/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("storage: not found")

// SyncMeta is the small persistent state record shared by the coordinators:
// snapshot format version, last run outcome, and the two watermarks.
type SyncMeta struct {
	FormatVersion   int
	LastStatus      string
	LastSyncedAt    *time.Time // last successful remote sync
	LastRefreshedAt *time.Time // "new since last visit" watermark
}

// Store is the local store facade. Coordinators read dirty records, apply
// remote values, and advance watermarks exclusively through this contract.
type Store interface {
	Close() error

	// Feeds

	UpsertFeed(feed *models.Feed) error
	UpsertFeeds(feeds []*models.Feed) error
	GetFeed(id string) (*models.Feed, error)
	FeedByRemoteID(remoteID string) (*models.Feed, error)
	FeedByLink(link string) (*models.Feed, error)
	// ListFeeds returns every feed including tombstones; callers filter.
	ListFeeds() ([]*models.Feed, error)
	UpdateFeedRemoteID(feedID, remoteID string, at time.Time) error
	UpdateFeedLastUpdatedAt(feedID string, at time.Time) error
	UpdateFeedRefreshInterval(feedID string, interval time.Duration) error
	UpdateFeedCacheHeaders(feedID string, etag, lastModified *string) error
	UpdateFeedCleanUpAt(feedID string, at time.Time) error
	MarkFeedDeleted(feedID string, at time.Time) error
	// RemoveFeed hard-deletes the feed, its posts, and group memberships.
	RemoveFeed(feedID string) error
	PostsCountForFeed(feedID string) (int, error)

	// Groups

	UpsertGroup(group *models.Group) error
	GetGroup(id string) (*models.Group, error)
	GroupByRemoteID(remoteID string) (*models.Group, error)
	GroupByName(name string) (*models.Group, error)
	ListGroups() ([]*models.Group, error)
	UpdateGroupRemoteID(groupID, remoteID string, at time.Time) error
	UpdateGroupUpdatedAt(groupID string, at time.Time) error
	MarkGroupDeleted(groupID string, at time.Time) error
	RemoveGroup(groupID string) error
	AddFeedsToGroups(groupIDs, feedIDs []string) error
	RemoveFeedsFromGroups(groupIDs, feedIDs []string) error
	ReplaceGroupFeeds(groupID string, feedIDs []string) error

	// Posts

	UpsertPost(post *models.Post) error
	UpsertPosts(posts []*models.Post) error
	GetPost(id string) (*models.Post, error)
	PostByRemoteID(remoteID string) (*models.Post, error)
	PostByLink(link string) (*models.Post, error)
	UpdatePostRemoteID(postID, remoteID string) error
	// UpdatePostRead/UpdatePostBookmarked stamp UpdatedAt, marking the post
	// dirty unless SyncedAt is advanced to the same instant afterwards.
	UpdatePostRead(postID string, read bool, at time.Time) error
	UpdatePostBookmarked(postID string, bookmarked bool, at time.Time) error
	UpdatePostSyncedAt(postID string, at time.Time) error
	// PostsWithLocalChanges returns posts with UpdatedAt > SyncedAt, ordered
	// by UpdatedAt, paged.
	PostsWithLocalChanges(limit, offset int) ([]*models.Post, error)
	PostsWithLocalChangesForFeed(feedID string, limit, offset int) ([]*models.Post, error)
	PostsWithRemoteID(limit, offset int) ([]*models.Post, error)
	PostsForFeed(feedID string) ([]*models.Post, error)
	BookmarkedPosts() ([]*models.Post, error)
	BookmarkIDs() ([]string, error)
	ReadPostIDs() ([]string, error)
	// DeleteReadPostsOlderThan purges read, non-bookmarked posts of the feed
	// below the watermark.
	DeleteReadPostsOlderThan(feedID string, watermark time.Time) error
	// UnreadCount counts unread posts, optionally restricted to sourceIDs,
	// with PostDate >= after and (when lastSyncedAt is non-zero)
	// CreatedAt > lastSyncedAt. Tombstoned feeds are excluded.
	UnreadCount(sourceIDs []string, after, lastSyncedAt time.Time) (int, error)

	// Post content

	UpsertPostContent(content *models.PostContent) error
	PostContent(postID string) (*models.PostContent, error)

	// Blocked words

	UpsertBlockedWords(words []*models.BlockedWord) error
	ListBlockedWords() ([]*models.BlockedWord, error)

	// User

	GetUser() (*models.User, error)
	CreateUser(user *models.User) error

	// Sync metadata

	GetSyncMeta() (*SyncMeta, error)
	SetSyncFormatVersion(version int) error
	SetLastSyncStatus(status string) error
	SetLastSyncedAt(at time.Time) error
	SetLastRefreshedAt(at time.Time) error
}
