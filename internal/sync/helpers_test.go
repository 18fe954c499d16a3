// ABOUTME: Shared test fixtures for the sync package
// ABOUTME: Real SQLite stores in temp dirs; clocks are fixed for determinism

package sync

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/harper/skein/internal/models"
	"github.com/harper/skein/internal/storage"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	st, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "sync_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func seedFeed(t *testing.T, st storage.Store, link string) *models.Feed {
	t.Helper()
	feed := models.NewFeed(link)
	feed.Name = "Seed Feed"
	require.NoError(t, st.UpsertFeed(feed))
	return feed
}

func seedPost(t *testing.T, st storage.Store, feedID, link string, at time.Time) *models.Post {
	t.Helper()
	post := models.NewPost(feedID, link, "Seed Post")
	post.PostDate = at
	post.CreatedAt = at
	post.UpdatedAt = at
	post.SyncedAt = at
	require.NoError(t, st.UpsertPost(post))
	return post
}

func seedGroupWithRemoteID(t *testing.T, st storage.Store, name, remoteID string) *models.Group {
	t.Helper()
	group := models.NewGroup(name)
	group.RemoteID = &remoteID
	require.NoError(t, st.UpsertGroup(group))
	return group
}
