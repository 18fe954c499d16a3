// ABOUTME: Tests for the shared remote-merge helpers
// ABOUTME: Identity resolution, content attachment, and dirty-wins precedence

package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyRemoteArticleCreatesPost(t *testing.T) {
	st := newTestStore(t)
	feed := seedFeed(t, st, "https://example.com/feed.xml")

	now := time.Now()
	created, err := applyRemoteArticle(st, remoteArticle{
		RemoteID:   "entry-1",
		FeedID:     feed.ID,
		Link:       "https://example.com/a",
		Title:      "Hello",
		Body:       "<p>Body with an <img src=\"https://example.com/hero.png\"> image</p>",
		Date:       now.Add(-time.Hour),
		Read:       true,
		Bookmarked: false,
	}, now)
	require.NoError(t, err)
	assert.True(t, created)

	post, err := st.PostByRemoteID("entry-1")
	require.NoError(t, err)
	assert.Equal(t, "Hello", post.Title)
	assert.True(t, post.Read)
	assert.False(t, post.Dirty())
	assert.Equal(t, "https://example.com/hero.png", post.ImageURL)
	assert.Contains(t, post.Description, "Body with an")

	pc, err := st.PostContent(post.ID)
	require.NoError(t, err)
	assert.Contains(t, pc.HTMLContent, "<p>Body")
}

func TestApplyRemoteArticleSkipsUnknownFeed(t *testing.T) {
	st := newTestStore(t)

	created, err := applyRemoteArticle(st, remoteArticle{
		RemoteID: "entry-1",
		FeedID:   "",
		Link:     "https://example.com/a",
	}, time.Now())
	require.NoError(t, err)
	assert.False(t, created)
}

func TestApplyRemoteArticleLeavesExistingAlone(t *testing.T) {
	st := newTestStore(t)
	feed := seedFeed(t, st, "https://example.com/feed.xml")

	now := time.Now()
	_, err := applyRemoteArticle(st, remoteArticle{
		RemoteID: "entry-1", FeedID: feed.ID,
		Link: "https://example.com/a", Title: "Original",
	}, now)
	require.NoError(t, err)

	created, err := applyRemoteArticle(st, remoteArticle{
		RemoteID: "entry-1", FeedID: feed.ID,
		Link: "https://example.com/a", Title: "Changed",
	}, now)
	require.NoError(t, err)
	assert.False(t, created)

	post, err := st.PostByRemoteID("entry-1")
	require.NoError(t, err)
	assert.Equal(t, "Original", post.Title)
}

func TestApplyRemoteArticleAttachesRemoteIDByLink(t *testing.T) {
	st := newTestStore(t)
	feed := seedFeed(t, st, "https://example.com/feed.xml")
	post := seedPost(t, st, feed.ID, "https://example.com/a", time.Now())

	created, err := applyRemoteArticle(st, remoteArticle{
		RemoteID: "entry-9",
		FeedID:   feed.ID,
		Link:     "https://example.com/a",
		Title:    "Remote copy",
	}, time.Now())
	require.NoError(t, err)
	assert.False(t, created)

	got, err := st.PostByRemoteID("entry-9")
	require.NoError(t, err)
	assert.Equal(t, post.ID, got.ID)
	assert.Equal(t, "Seed Post", got.Title)
}

func TestApplyRemoteStatusDirtyLocalWins(t *testing.T) {
	st := newTestStore(t)
	feed := seedFeed(t, st, "https://example.com/feed.xml")
	post := seedPost(t, st, feed.ID, "https://example.com/a", time.Now().Add(-time.Hour))

	// Local unread change pending push.
	require.NoError(t, st.UpdatePostRead(post.ID, false, time.Now()))
	dirty, err := st.GetPost(post.ID)
	require.NoError(t, err)
	require.True(t, dirty.Dirty())

	require.NoError(t, applyRemoteStatus(st, dirty, true, true, time.Now()))

	got, err := st.GetPost(post.ID)
	require.NoError(t, err)
	assert.False(t, got.Read)
	assert.False(t, got.Bookmarked)
	assert.True(t, got.Dirty())
}

func TestApplyRemoteStatusCleanPostStaysClean(t *testing.T) {
	st := newTestStore(t)
	feed := seedFeed(t, st, "https://example.com/feed.xml")
	post := seedPost(t, st, feed.ID, "https://example.com/a", time.Now().Add(-time.Hour))

	require.NoError(t, applyRemoteStatus(st, post, true, true, time.Now()))

	got, err := st.GetPost(post.ID)
	require.NoError(t, err)
	assert.True(t, got.Read)
	assert.True(t, got.Bookmarked)
	assert.False(t, got.Dirty(), "remote status application must not mark the post dirty")
}
