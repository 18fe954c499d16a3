// ABOUTME: SQLite storage implementation using modernc.org/sqlite (pure Go)
// ABOUTME: Persists feeds, groups, posts, and sync metadata with epoch-millisecond timestamps

package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harper/skein/internal/models"
	"github.com/harper/skein/internal/timeutil"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite storage instance at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	// WAL keeps the read-heavy pull phases from blocking the write-heavy
	// merge phases.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS feeds (
			id TEXT PRIMARY KEY,
			remote_id TEXT,
			link TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			homepage_link TEXT NOT NULL DEFAULT '',
			icon TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			pinned_at INTEGER,
			last_clean_up_at INTEGER,
			last_updated_at INTEGER,
			refresh_interval_ms INTEGER NOT NULL DEFAULT 3600000,
			etag TEXT,
			last_modified TEXT,
			is_deleted INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_feeds_remote_id ON feeds(remote_id);

		CREATE TABLE IF NOT EXISTS groups (
			id TEXT PRIMARY KEY,
			remote_id TEXT,
			name TEXT NOT NULL,
			pinned_at INTEGER,
			updated_at INTEGER NOT NULL,
			is_deleted INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_groups_remote_id ON groups(remote_id);

		CREATE TABLE IF NOT EXISTS group_feeds (
			group_id TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
			feed_id TEXT NOT NULL,
			PRIMARY KEY (group_id, feed_id)
		);

		CREATE TABLE IF NOT EXISTS posts (
			id TEXT PRIMARY KEY,
			source_id TEXT NOT NULL REFERENCES feeds(id) ON DELETE CASCADE,
			remote_id TEXT,
			link TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			image_url TEXT NOT NULL DEFAULT '',
			post_date INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			synced_at INTEGER NOT NULL,
			read INTEGER NOT NULL DEFAULT 0,
			bookmarked INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_posts_source_id ON posts(source_id);
		CREATE INDEX IF NOT EXISTS idx_posts_remote_id ON posts(remote_id);
		CREATE INDEX IF NOT EXISTS idx_posts_link ON posts(link);

		CREATE TABLE IF NOT EXISTS post_contents (
			post_id TEXT PRIMARY KEY REFERENCES posts(id) ON DELETE CASCADE,
			raw_content TEXT NOT NULL DEFAULT '',
			html_content TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS blocked_words (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			is_deleted INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			profile_id TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			server_url TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS sync_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			format_version INTEGER NOT NULL DEFAULT 1,
			last_status TEXT NOT NULL DEFAULT '',
			last_synced_at INTEGER,
			last_refreshed_at INTEGER
		);
		INSERT OR IGNORE INTO sync_meta (id) VALUES (1);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Feed operations

const feedColumns = `id, remote_id, link, name, homepage_link, icon, description,
	pinned_at, last_clean_up_at, last_updated_at, refresh_interval_ms,
	etag, last_modified, is_deleted, created_at`

func (s *SQLiteStore) scanFeed(row interface{ Scan(...any) error }) (*models.Feed, error) {
	var feed models.Feed
	var remoteID, etag, lastModified sql.NullString
	var pinnedAt, cleanUpAt, updatedAt sql.NullInt64
	var intervalMs, createdAt int64

	err := row.Scan(&feed.ID, &remoteID, &feed.Link, &feed.Name, &feed.HomepageLink,
		&feed.Icon, &feed.Description, &pinnedAt, &cleanUpAt, &updatedAt,
		&intervalMs, &etag, &lastModified, &feed.IsDeleted, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if remoteID.Valid {
		feed.RemoteID = &remoteID.String
	}
	if etag.Valid {
		feed.ETag = &etag.String
	}
	if lastModified.Valid {
		feed.LastModified = &lastModified.String
	}
	feed.PinnedAt = nullableTime(pinnedAt)
	feed.LastCleanUpAt = nullableTime(cleanUpAt)
	feed.LastUpdatedAt = nullableTime(updatedAt)
	feed.RefreshInterval = time.Duration(intervalMs) * time.Millisecond
	feed.CreatedAt = timeutil.FromMillis(createdAt)
	return &feed, nil
}

// UpsertFeed inserts or fully replaces the feed row keyed by id.
func (s *SQLiteStore) UpsertFeed(feed *models.Feed) error {
	_, err := s.db.Exec(`
		INSERT INTO feeds (`+feedColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			remote_id = excluded.remote_id,
			link = excluded.link,
			name = excluded.name,
			homepage_link = excluded.homepage_link,
			icon = excluded.icon,
			description = excluded.description,
			pinned_at = excluded.pinned_at,
			last_clean_up_at = excluded.last_clean_up_at,
			last_updated_at = excluded.last_updated_at,
			refresh_interval_ms = excluded.refresh_interval_ms,
			etag = excluded.etag,
			last_modified = excluded.last_modified,
			is_deleted = excluded.is_deleted
	`, feed.ID, nullableString(feed.RemoteID), feed.Link, feed.Name, feed.HomepageLink,
		feed.Icon, feed.Description, timeutil.ToMillisPtr(feed.PinnedAt),
		timeutil.ToMillisPtr(feed.LastCleanUpAt), timeutil.ToMillisPtr(feed.LastUpdatedAt),
		feed.RefreshInterval.Milliseconds(), nullableString(feed.ETag), nullableString(feed.LastModified),
		feed.IsDeleted, timeutil.ToMillis(createdOrNow(feed.CreatedAt)))
	if err != nil {
		return fmt.Errorf("upsert feed: %w", err)
	}
	return nil
}

// UpsertFeeds upserts the feeds in one transaction.
func (s *SQLiteStore) UpsertFeeds(feeds []*models.Feed) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, feed := range feeds {
		_, err := tx.Exec(`
			INSERT INTO feeds (`+feedColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				remote_id = excluded.remote_id,
				link = excluded.link,
				name = excluded.name,
				homepage_link = excluded.homepage_link,
				icon = excluded.icon,
				description = excluded.description,
				pinned_at = excluded.pinned_at,
				last_clean_up_at = excluded.last_clean_up_at,
				last_updated_at = excluded.last_updated_at,
				refresh_interval_ms = excluded.refresh_interval_ms,
				etag = excluded.etag,
				last_modified = excluded.last_modified,
				is_deleted = excluded.is_deleted
		`, feed.ID, nullableString(feed.RemoteID), feed.Link, feed.Name, feed.HomepageLink,
			feed.Icon, feed.Description, timeutil.ToMillisPtr(feed.PinnedAt),
			timeutil.ToMillisPtr(feed.LastCleanUpAt), timeutil.ToMillisPtr(feed.LastUpdatedAt),
			feed.RefreshInterval.Milliseconds(), nullableString(feed.ETag), nullableString(feed.LastModified),
			feed.IsDeleted, timeutil.ToMillis(createdOrNow(feed.CreatedAt)))
		if err != nil {
			return fmt.Errorf("upsert feed %s: %w", feed.ID, err)
		}
	}
	return tx.Commit()
}

// GetFeed retrieves a feed by ID.
func (s *SQLiteStore) GetFeed(id string) (*models.Feed, error) {
	row := s.db.QueryRow(`SELECT `+feedColumns+` FROM feeds WHERE id = ?`, id)
	return s.scanFeed(row)
}

// FeedByRemoteID finds a feed by its backend-assigned id.
func (s *SQLiteStore) FeedByRemoteID(remoteID string) (*models.Feed, error) {
	row := s.db.QueryRow(`SELECT `+feedColumns+` FROM feeds WHERE remote_id = ?`, remoteID)
	return s.scanFeed(row)
}

// FeedByLink finds a feed by its canonical URL.
func (s *SQLiteStore) FeedByLink(link string) (*models.Feed, error) {
	row := s.db.QueryRow(`SELECT `+feedColumns+` FROM feeds WHERE link = ?`, link)
	return s.scanFeed(row)
}

// ListFeeds returns all feeds including tombstones, oldest first.
func (s *SQLiteStore) ListFeeds() ([]*models.Feed, error) {
	rows, err := s.db.Query(`SELECT ` + feedColumns + ` FROM feeds ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}
	defer rows.Close()

	var feeds []*models.Feed
	for rows.Next() {
		feed, err := s.scanFeed(rows)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, feed)
	}
	return feeds, rows.Err()
}

// UpdateFeedRemoteID pairs the feed with a remote subscription and stamps
// the sync touch time.
func (s *SQLiteStore) UpdateFeedRemoteID(feedID, remoteID string, at time.Time) error {
	_, err := s.db.Exec(`UPDATE feeds SET remote_id = ?, last_updated_at = ? WHERE id = ?`,
		remoteID, timeutil.ToMillis(at), feedID)
	return err
}

// UpdateFeedLastUpdatedAt stamps the feed's last-touch time.
func (s *SQLiteStore) UpdateFeedLastUpdatedAt(feedID string, at time.Time) error {
	_, err := s.db.Exec(`UPDATE feeds SET last_updated_at = ? WHERE id = ?`,
		timeutil.ToMillis(at), feedID)
	return err
}

// UpdateFeedRefreshInterval persists a new adaptive poll cadence.
func (s *SQLiteStore) UpdateFeedRefreshInterval(feedID string, interval time.Duration) error {
	_, err := s.db.Exec(`UPDATE feeds SET refresh_interval_ms = ? WHERE id = ?`,
		interval.Milliseconds(), feedID)
	return err
}

// UpdateFeedCacheHeaders persists the HTTP cache validators from a fetch.
func (s *SQLiteStore) UpdateFeedCacheHeaders(feedID string, etag, lastModified *string) error {
	_, err := s.db.Exec(`UPDATE feeds SET etag = ?, last_modified = ? WHERE id = ?`,
		nullableString(etag), nullableString(lastModified), feedID)
	return err
}

// UpdateFeedCleanUpAt advances the feed's read-post purge watermark.
func (s *SQLiteStore) UpdateFeedCleanUpAt(feedID string, at time.Time) error {
	_, err := s.db.Exec(`UPDATE feeds SET last_clean_up_at = ? WHERE id = ?`,
		timeutil.ToMillis(at), feedID)
	return err
}

// MarkFeedDeleted tombstones the feed until the deletion is pushed.
func (s *SQLiteStore) MarkFeedDeleted(feedID string, at time.Time) error {
	_, err := s.db.Exec(`UPDATE feeds SET is_deleted = 1, last_updated_at = ? WHERE id = ?`,
		timeutil.ToMillis(at), feedID)
	return err
}

// RemoveFeed hard-deletes the feed, cascading posts and group memberships.
func (s *SQLiteStore) RemoveFeed(feedID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM group_feeds WHERE feed_id = ?`, feedID); err != nil {
		return fmt.Errorf("remove feed memberships: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM posts WHERE source_id = ?`, feedID); err != nil {
		return fmt.Errorf("remove feed posts: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM feeds WHERE id = ?`, feedID); err != nil {
		return fmt.Errorf("remove feed: %w", err)
	}
	return tx.Commit()
}

// PostsCountForFeed counts the posts currently stored for a feed.
func (s *SQLiteStore) PostsCountForFeed(feedID string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM posts WHERE source_id = ?`, feedID).Scan(&count)
	return count, err
}

// Group operations

func (s *SQLiteStore) scanGroup(row interface{ Scan(...any) error }) (*models.Group, error) {
	var group models.Group
	var remoteID sql.NullString
	var pinnedAt sql.NullInt64
	var updatedAt int64

	err := row.Scan(&group.ID, &remoteID, &group.Name, &pinnedAt, &updatedAt, &group.IsDeleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if remoteID.Valid {
		group.RemoteID = &remoteID.String
	}
	group.PinnedAt = nullableTime(pinnedAt)
	group.UpdatedAt = timeutil.FromMillis(updatedAt)
	return &group, nil
}

func (s *SQLiteStore) loadGroupFeeds(group *models.Group) error {
	rows, err := s.db.Query(`SELECT feed_id FROM group_feeds WHERE group_id = ? ORDER BY feed_id`, group.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	group.FeedIDs = nil
	for rows.Next() {
		var feedID string
		if err := rows.Scan(&feedID); err != nil {
			return err
		}
		group.FeedIDs = append(group.FeedIDs, feedID)
	}
	return rows.Err()
}

// UpsertGroup inserts or replaces the group row. Memberships are managed
// separately via the group_feeds helpers.
func (s *SQLiteStore) UpsertGroup(group *models.Group) error {
	_, err := s.db.Exec(`
		INSERT INTO groups (id, remote_id, name, pinned_at, updated_at, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			remote_id = excluded.remote_id,
			name = excluded.name,
			pinned_at = excluded.pinned_at,
			updated_at = excluded.updated_at,
			is_deleted = excluded.is_deleted
	`, group.ID, nullableString(group.RemoteID), group.Name,
		timeutil.ToMillisPtr(group.PinnedAt), timeutil.ToMillis(group.UpdatedAt), group.IsDeleted)
	if err != nil {
		return fmt.Errorf("upsert group: %w", err)
	}
	return nil
}

// GetGroup retrieves a group with its feed memberships.
func (s *SQLiteStore) GetGroup(id string) (*models.Group, error) {
	row := s.db.QueryRow(`SELECT id, remote_id, name, pinned_at, updated_at, is_deleted FROM groups WHERE id = ?`, id)
	group, err := s.scanGroup(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadGroupFeeds(group); err != nil {
		return nil, err
	}
	return group, nil
}

// GroupByRemoteID finds a group by its backend-assigned category/tag id.
func (s *SQLiteStore) GroupByRemoteID(remoteID string) (*models.Group, error) {
	row := s.db.QueryRow(`SELECT id, remote_id, name, pinned_at, updated_at, is_deleted FROM groups WHERE remote_id = ?`, remoteID)
	group, err := s.scanGroup(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadGroupFeeds(group); err != nil {
		return nil, err
	}
	return group, nil
}

// GroupByName finds a group by exact name.
func (s *SQLiteStore) GroupByName(name string) (*models.Group, error) {
	row := s.db.QueryRow(`SELECT id, remote_id, name, pinned_at, updated_at, is_deleted FROM groups WHERE name = ?`, name)
	group, err := s.scanGroup(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadGroupFeeds(group); err != nil {
		return nil, err
	}
	return group, nil
}

// ListGroups returns all groups including tombstones with memberships loaded.
func (s *SQLiteStore) ListGroups() ([]*models.Group, error) {
	rows, err := s.db.Query(`SELECT id, remote_id, name, pinned_at, updated_at, is_deleted FROM groups ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []*models.Group
	for rows.Next() {
		group, err := s.scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, group := range groups {
		if err := s.loadGroupFeeds(group); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

// UpdateGroupRemoteID pairs the group with a remote category/tag.
func (s *SQLiteStore) UpdateGroupRemoteID(groupID, remoteID string, at time.Time) error {
	_, err := s.db.Exec(`UPDATE groups SET remote_id = ?, updated_at = ? WHERE id = ?`,
		remoteID, timeutil.ToMillis(at), groupID)
	return err
}

// UpdateGroupUpdatedAt stamps the group's last-touch time.
func (s *SQLiteStore) UpdateGroupUpdatedAt(groupID string, at time.Time) error {
	_, err := s.db.Exec(`UPDATE groups SET updated_at = ? WHERE id = ?`,
		timeutil.ToMillis(at), groupID)
	return err
}

// MarkGroupDeleted tombstones the group until the deletion is pushed.
func (s *SQLiteStore) MarkGroupDeleted(groupID string, at time.Time) error {
	_, err := s.db.Exec(`UPDATE groups SET is_deleted = 1, updated_at = ? WHERE id = ?`,
		timeutil.ToMillis(at), groupID)
	return err
}

// RemoveGroup hard-deletes the group; memberships cascade.
func (s *SQLiteStore) RemoveGroup(groupID string) error {
	_, err := s.db.Exec(`DELETE FROM groups WHERE id = ?`, groupID)
	return err
}

// AddFeedsToGroups inserts the cross product of memberships, ignoring
// existing pairs.
func (s *SQLiteStore) AddFeedsToGroups(groupIDs, feedIDs []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, groupID := range groupIDs {
		for _, feedID := range feedIDs {
			if _, err := tx.Exec(`INSERT OR IGNORE INTO group_feeds (group_id, feed_id) VALUES (?, ?)`,
				groupID, feedID); err != nil {
				return fmt.Errorf("add feed %s to group %s: %w", feedID, groupID, err)
			}
		}
	}
	return tx.Commit()
}

// RemoveFeedsFromGroups removes the cross product of memberships.
func (s *SQLiteStore) RemoveFeedsFromGroups(groupIDs, feedIDs []string) error {
	if len(groupIDs) == 0 || len(feedIDs) == 0 {
		return nil
	}

	query := fmt.Sprintf(`DELETE FROM group_feeds WHERE group_id IN (%s) AND feed_id IN (%s)`,
		placeholders(len(groupIDs)), placeholders(len(feedIDs)))
	args := make([]any, 0, len(groupIDs)+len(feedIDs))
	for _, id := range groupIDs {
		args = append(args, id)
	}
	for _, id := range feedIDs {
		args = append(args, id)
	}
	_, err := s.db.Exec(query, args...)
	return err
}

// ReplaceGroupFeeds swaps the group's membership set wholesale.
func (s *SQLiteStore) ReplaceGroupFeeds(groupID string, feedIDs []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM group_feeds WHERE group_id = ?`, groupID); err != nil {
		return fmt.Errorf("clear group feeds: %w", err)
	}
	for _, feedID := range feedIDs {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO group_feeds (group_id, feed_id) VALUES (?, ?)`,
			groupID, feedID); err != nil {
			return fmt.Errorf("add feed %s: %w", feedID, err)
		}
	}
	return tx.Commit()
}

// Post operations

const postColumns = `id, source_id, remote_id, link, title, description, image_url,
	post_date, created_at, updated_at, synced_at, read, bookmarked`

func (s *SQLiteStore) scanPost(row interface{ Scan(...any) error }) (*models.Post, error) {
	var post models.Post
	var remoteID sql.NullString
	var postDate, createdAt, updatedAt, syncedAt int64

	err := row.Scan(&post.ID, &post.SourceID, &remoteID, &post.Link, &post.Title,
		&post.Description, &post.ImageURL, &postDate, &createdAt, &updatedAt, &syncedAt,
		&post.Read, &post.Bookmarked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if remoteID.Valid {
		post.RemoteID = &remoteID.String
	}
	post.PostDate = timeutil.FromMillis(postDate)
	post.CreatedAt = timeutil.FromMillis(createdAt)
	post.UpdatedAt = timeutil.FromMillis(updatedAt)
	post.SyncedAt = timeutil.FromMillis(syncedAt)
	return &post, nil
}

func upsertPostTx(tx *sql.Tx, post *models.Post) error {
	_, err := tx.Exec(`
		INSERT INTO posts (`+postColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_id = excluded.source_id,
			remote_id = excluded.remote_id,
			link = excluded.link,
			title = excluded.title,
			description = excluded.description,
			image_url = excluded.image_url,
			post_date = excluded.post_date,
			updated_at = excluded.updated_at,
			synced_at = excluded.synced_at,
			read = excluded.read,
			bookmarked = excluded.bookmarked
	`, post.ID, post.SourceID, nullableString(post.RemoteID), post.Link, post.Title,
		post.Description, post.ImageURL, timeutil.ToMillis(post.PostDate),
		timeutil.ToMillis(createdOrNow(post.CreatedAt)), timeutil.ToMillis(post.UpdatedAt),
		timeutil.ToMillis(post.SyncedAt), post.Read, post.Bookmarked)
	return err
}

// UpsertPost inserts or fully replaces the post row keyed by id.
func (s *SQLiteStore) UpsertPost(post *models.Post) error {
	return s.UpsertPosts([]*models.Post{post})
}

// UpsertPosts upserts the posts in one transaction.
func (s *SQLiteStore) UpsertPosts(posts []*models.Post) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, post := range posts {
		if err := upsertPostTx(tx, post); err != nil {
			return fmt.Errorf("upsert post %s: %w", post.ID, err)
		}
	}
	return tx.Commit()
}

// GetPost retrieves a post by ID.
func (s *SQLiteStore) GetPost(id string) (*models.Post, error) {
	row := s.db.QueryRow(`SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	return s.scanPost(row)
}

// PostByRemoteID finds a post by its backend-assigned article id.
func (s *SQLiteStore) PostByRemoteID(remoteID string) (*models.Post, error) {
	row := s.db.QueryRow(`SELECT `+postColumns+` FROM posts WHERE remote_id = ?`, remoteID)
	return s.scanPost(row)
}

// PostByLink finds a post by its article URL.
func (s *SQLiteStore) PostByLink(link string) (*models.Post, error) {
	row := s.db.QueryRow(`SELECT `+postColumns+` FROM posts WHERE link = ? LIMIT 1`, link)
	return s.scanPost(row)
}

// UpdatePostRemoteID attaches a remote article id to an existing post.
func (s *SQLiteStore) UpdatePostRemoteID(postID, remoteID string) error {
	_, err := s.db.Exec(`UPDATE posts SET remote_id = ? WHERE id = ?`, remoteID, postID)
	return err
}

// UpdatePostRead sets the read flag, stamping UpdatedAt.
func (s *SQLiteStore) UpdatePostRead(postID string, read bool, at time.Time) error {
	_, err := s.db.Exec(`UPDATE posts SET read = ?, updated_at = ? WHERE id = ?`,
		read, timeutil.ToMillis(at), postID)
	return err
}

// UpdatePostBookmarked sets the bookmark flag, stamping UpdatedAt.
func (s *SQLiteStore) UpdatePostBookmarked(postID string, bookmarked bool, at time.Time) error {
	_, err := s.db.Exec(`UPDATE posts SET bookmarked = ?, updated_at = ? WHERE id = ?`,
		bookmarked, timeutil.ToMillis(at), postID)
	return err
}

// UpdatePostSyncedAt confirms the post's local state as pushed.
func (s *SQLiteStore) UpdatePostSyncedAt(postID string, at time.Time) error {
	_, err := s.db.Exec(`UPDATE posts SET synced_at = ? WHERE id = ?`,
		timeutil.ToMillis(at), postID)
	return err
}

func (s *SQLiteStore) queryPosts(query string, args ...any) ([]*models.Post, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := s.scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// PostsWithLocalChanges returns dirty posts ordered by UpdatedAt, paged.
func (s *SQLiteStore) PostsWithLocalChanges(limit, offset int) ([]*models.Post, error) {
	return s.queryPosts(`SELECT `+postColumns+` FROM posts
		WHERE updated_at > synced_at ORDER BY updated_at LIMIT ? OFFSET ?`, limit, offset)
}

// PostsWithLocalChangesForFeed returns dirty posts of one feed, paged.
func (s *SQLiteStore) PostsWithLocalChangesForFeed(feedID string, limit, offset int) ([]*models.Post, error) {
	return s.queryPosts(`SELECT `+postColumns+` FROM posts
		WHERE source_id = ? AND updated_at > synced_at ORDER BY updated_at LIMIT ? OFFSET ?`,
		feedID, limit, offset)
}

// PostsWithRemoteID returns posts paired with a remote article, paged.
func (s *SQLiteStore) PostsWithRemoteID(limit, offset int) ([]*models.Post, error) {
	return s.queryPosts(`SELECT `+postColumns+` FROM posts
		WHERE remote_id IS NOT NULL AND remote_id != '' ORDER BY created_at LIMIT ? OFFSET ?`,
		limit, offset)
}

// PostsForFeed returns the feed's posts, newest first.
func (s *SQLiteStore) PostsForFeed(feedID string) ([]*models.Post, error) {
	return s.queryPosts(`SELECT `+postColumns+` FROM posts
		WHERE source_id = ? ORDER BY post_date DESC`, feedID)
}

// BookmarkedPosts returns all bookmarked posts, newest first.
func (s *SQLiteStore) BookmarkedPosts() ([]*models.Post, error) {
	return s.queryPosts(`SELECT ` + postColumns + ` FROM posts
		WHERE bookmarked = 1 ORDER BY post_date DESC`)
}

// BookmarkIDs returns the ids of all bookmarked posts.
func (s *SQLiteStore) BookmarkIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM posts WHERE bookmarked = 1 ORDER BY post_date DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ReadPostIDs returns the ids of all read posts.
func (s *SQLiteStore) ReadPostIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM posts WHERE read = 1 ORDER BY post_date DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteReadPostsOlderThan purges read, non-bookmarked posts of the feed
// below the watermark. Bookmarks are always retained.
func (s *SQLiteStore) DeleteReadPostsOlderThan(feedID string, watermark time.Time) error {
	_, err := s.db.Exec(`DELETE FROM posts
		WHERE source_id = ? AND read = 1 AND bookmarked = 0 AND post_date < ?`,
		feedID, timeutil.ToMillis(watermark))
	return err
}

// UnreadCount counts unread posts of non-deleted feeds, optionally filtered
// by source ids, post date, and creation time.
func (s *SQLiteStore) UnreadCount(sourceIDs []string, after, lastSyncedAt time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM posts p
		JOIN feeds f ON f.id = p.source_id
		WHERE p.read = 0 AND f.is_deleted = 0 AND p.post_date >= ?`
	args := []any{timeutil.ToMillis(after)}

	if len(sourceIDs) > 0 {
		query += ` AND p.source_id IN (` + placeholders(len(sourceIDs)) + `)`
		for _, id := range sourceIDs {
			args = append(args, id)
		}
	}
	if !lastSyncedAt.IsZero() {
		query += ` AND p.created_at > ?`
		args = append(args, timeutil.ToMillis(lastSyncedAt))
	}

	var count int
	err := s.db.QueryRow(query, args...).Scan(&count)
	return count, err
}

// Post content operations

// UpsertPostContent stores or replaces the full article body for a post.
func (s *SQLiteStore) UpsertPostContent(content *models.PostContent) error {
	_, err := s.db.Exec(`
		INSERT INTO post_contents (post_id, raw_content, html_content, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(post_id) DO UPDATE SET
			raw_content = excluded.raw_content,
			html_content = excluded.html_content
	`, content.PostID, content.RawContent, content.HTMLContent,
		timeutil.ToMillis(createdOrNow(content.CreatedAt)))
	return err
}

// PostContent retrieves the full article body for a post.
func (s *SQLiteStore) PostContent(postID string) (*models.PostContent, error) {
	var content models.PostContent
	var createdAt int64
	err := s.db.QueryRow(`SELECT post_id, raw_content, html_content, created_at
		FROM post_contents WHERE post_id = ?`, postID).
		Scan(&content.PostID, &content.RawContent, &content.HTMLContent, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	content.CreatedAt = timeutil.FromMillis(createdAt)
	return &content, nil
}

// Blocked word operations

// UpsertBlockedWords upserts the words in one transaction.
func (s *SQLiteStore) UpsertBlockedWords(words []*models.BlockedWord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, word := range words {
		_, err := tx.Exec(`
			INSERT INTO blocked_words (id, content, is_deleted, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				content = excluded.content,
				is_deleted = excluded.is_deleted,
				updated_at = excluded.updated_at
		`, word.ID, word.Content, word.IsDeleted, timeutil.ToMillis(word.UpdatedAt))
		if err != nil {
			return fmt.Errorf("upsert blocked word %s: %w", word.ID, err)
		}
	}
	return tx.Commit()
}

// ListBlockedWords returns all blocked words including tombstones.
func (s *SQLiteStore) ListBlockedWords() ([]*models.BlockedWord, error) {
	rows, err := s.db.Query(`SELECT id, content, is_deleted, updated_at FROM blocked_words ORDER BY content`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var words []*models.BlockedWord
	for rows.Next() {
		var word models.BlockedWord
		var updatedAt int64
		if err := rows.Scan(&word.ID, &word.Content, &word.IsDeleted, &updatedAt); err != nil {
			return nil, err
		}
		word.UpdatedAt = timeutil.FromMillis(updatedAt)
		words = append(words, &word)
	}
	return words, rows.Err()
}

// User operations

// GetUser returns the single local user record, if any.
func (s *SQLiteStore) GetUser() (*models.User, error) {
	var user models.User
	err := s.db.QueryRow(`SELECT id, name, profile_id, email, server_url FROM users LIMIT 1`).
		Scan(&user.ID, &user.Name, &user.ProfileID, &user.Email, &user.ServerURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser stores the local user record.
func (s *SQLiteStore) CreateUser(user *models.User) error {
	_, err := s.db.Exec(`INSERT INTO users (id, name, profile_id, email, server_url)
		VALUES (?, ?, ?, ?, ?)`,
		user.ID, user.Name, user.ProfileID, user.Email, user.ServerURL)
	return err
}

// Sync metadata operations

// GetSyncMeta returns the persistent sync state record.
func (s *SQLiteStore) GetSyncMeta() (*SyncMeta, error) {
	var meta SyncMeta
	var syncedAt, refreshedAt sql.NullInt64
	err := s.db.QueryRow(`SELECT format_version, last_status, last_synced_at, last_refreshed_at
		FROM sync_meta WHERE id = 1`).
		Scan(&meta.FormatVersion, &meta.LastStatus, &syncedAt, &refreshedAt)
	if err != nil {
		return nil, err
	}
	meta.LastSyncedAt = nullableTime(syncedAt)
	meta.LastRefreshedAt = nullableTime(refreshedAt)
	return &meta, nil
}

// SetSyncFormatVersion persists the snapshot format version.
func (s *SQLiteStore) SetSyncFormatVersion(version int) error {
	_, err := s.db.Exec(`UPDATE sync_meta SET format_version = ? WHERE id = 1`, version)
	return err
}

// SetLastSyncStatus records the outcome of the last sync run.
func (s *SQLiteStore) SetLastSyncStatus(status string) error {
	_, err := s.db.Exec(`UPDATE sync_meta SET last_status = ? WHERE id = 1`, status)
	return err
}

// SetLastSyncedAt advances the remote-sync watermark.
func (s *SQLiteStore) SetLastSyncedAt(at time.Time) error {
	_, err := s.db.Exec(`UPDATE sync_meta SET last_synced_at = ? WHERE id = 1`, timeutil.ToMillis(at))
	return err
}

// SetLastRefreshedAt advances the "new since last visit" watermark.
func (s *SQLiteStore) SetLastRefreshedAt(at time.Time) error {
	_, err := s.db.Exec(`UPDATE sync_meta SET last_refreshed_at = ? WHERE id = 1`, timeutil.ToMillis(at))
	return err
}

// helpers

func nullableString(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

func nullableTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := timeutil.FromMillis(v.Int64)
	return &t
}

func createdOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
