// ABOUTME: Tests for the local coordinator's refresh scheduling and merging
// ABOUTME: Fetching is faked; parsing and storage are real

package sync

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harper/skein/internal/fetch"
	"github.com/harper/skein/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Feed</title>
    <link>https://example.com</link>
    <description>Fresh takes on examples</description>
    <item>
      <title>Post One</title>
      <link>https://example.com/one</link>
      <guid>https://example.com/one</guid>
      <description>First body</description>
      <pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
    </item>
    <item>
      <title>Post Two</title>
      <link>https://example.com/two</link>
      <guid>https://example.com/two</guid>
      <description>Second body</description>
      <pubDate>Tue, 03 Jan 2006 15:04:05 GMT</pubDate>
    </item>
  </channel>
</rss>`

func countingFetcher(calls *atomic.Int32, result *fetch.Result) Fetcher {
	return func(ctx context.Context, url string, etag, lastModified *string) (*fetch.Result, error) {
		calls.Add(1)
		return result, nil
	}
}

func TestLocalPullRefreshesDueFeed(t *testing.T) {
	st := newTestStore(t)
	feed := models.NewFeed("https://example.com/feed.xml")
	require.NoError(t, st.UpsertFeed(feed))

	var calls atomic.Int32
	c := NewLocalCoordinator(st, countingFetcher(&calls, &fetch.Result{Body: []byte(sampleRSS)}), nil)
	require.True(t, c.Pull(context.Background()))

	assert.Equal(t, int32(1), calls.Load())

	posts := 0
	for _, link := range []string{"https://example.com/one", "https://example.com/two"} {
		post, err := st.PostByLink(link)
		require.NoError(t, err)
		assert.False(t, post.Dirty())
		posts++
	}
	assert.Equal(t, 2, posts)

	got, err := st.GetFeed(feed.ID)
	require.NoError(t, err)
	assert.Equal(t, "Example Feed", got.Name, "missing feed metadata is backfilled")
	assert.NotNil(t, got.LastUpdatedAt)
	assert.Equal(t, 48*time.Minute, got.RefreshInterval, "finding new content shrinks the interval")
}

func TestLocalPullSkipsFeedNotDue(t *testing.T) {
	st := newTestStore(t)
	feed := models.NewFeed("https://example.com/feed.xml")
	now := time.Now()
	feed.LastUpdatedAt = &now
	require.NoError(t, st.UpsertFeed(feed))

	var calls atomic.Int32
	c := NewLocalCoordinator(st, countingFetcher(&calls, &fetch.Result{Body: []byte(sampleRSS)}), nil)

	require.True(t, c.Pull(context.Background()))
	assert.Equal(t, int32(0), calls.Load(), "a recently refreshed feed is not fetched")

	// A targeted pull bypasses the due filter.
	require.True(t, c.PullFeed(context.Background(), feed.ID))
	assert.Equal(t, int32(1), calls.Load())
}

func TestLocalNotModifiedGrowsInterval(t *testing.T) {
	st := newTestStore(t)
	feed := models.NewFeed("https://example.com/feed.xml")
	require.NoError(t, st.UpsertFeed(feed))

	var calls atomic.Int32
	c := NewLocalCoordinator(st, countingFetcher(&calls, &fetch.Result{NotModified: true}), nil)
	require.True(t, c.Pull(context.Background()))

	got, err := st.GetFeed(feed.ID)
	require.NoError(t, err)
	assert.Equal(t, 72*time.Minute, got.RefreshInterval)
}

func TestLocalFetchSendsStoredCacheHeaders(t *testing.T) {
	st := newTestStore(t)
	feed := models.NewFeed("https://example.com/feed.xml")
	require.NoError(t, st.UpsertFeed(feed))

	var calls atomic.Int32
	var sentETag, sentLastModified *string
	fetcher := func(ctx context.Context, url string, etag, lastModified *string) (*fetch.Result, error) {
		if calls.Add(1) == 1 {
			return &fetch.Result{
				Body:         []byte(sampleRSS),
				ETag:         `"v1"`,
				LastModified: "Mon, 02 Jan 2006 15:04:05 GMT",
			}, nil
		}
		sentETag, sentLastModified = etag, lastModified
		return &fetch.Result{NotModified: true}, nil
	}
	c := NewLocalCoordinator(st, fetcher, nil)
	require.True(t, c.PullFeed(context.Background(), feed.ID))

	got, err := st.GetFeed(feed.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ETag)
	assert.Equal(t, `"v1"`, *got.ETag, "validators from the response are persisted")
	require.NotNil(t, got.LastModified)

	require.True(t, c.PullFeed(context.Background(), feed.ID))
	require.NotNil(t, sentETag)
	assert.Equal(t, `"v1"`, *sentETag, "the stored validators ride the next request")
	require.NotNil(t, sentLastModified)
	assert.Equal(t, "Mon, 02 Jan 2006 15:04:05 GMT", *sentLastModified)

	n, err := st.PostsCountForFeed(feed.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "a 304 leaves the stored posts alone")
}

func TestLocalBrokenFeedDoesNotFailRun(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.UpsertFeed(models.NewFeed("https://broken.example.com/feed.xml")))
	good := models.NewFeed("https://example.com/feed.xml")
	require.NoError(t, st.UpsertFeed(good))

	fetcher := func(ctx context.Context, url string, etag, lastModified *string) (*fetch.Result, error) {
		if url == "https://broken.example.com/feed.xml" {
			return &fetch.Result{Body: []byte("not a feed")}, nil
		}
		return &fetch.Result{Body: []byte(sampleRSS)}, nil
	}
	c := NewLocalCoordinator(st, fetcher, nil)
	require.True(t, c.Pull(context.Background()))

	_, err := st.PostByLink("https://example.com/one")
	assert.NoError(t, err, "the healthy feed still refreshed")
}

func TestLocalCaughtUpAdvancesWatermark(t *testing.T) {
	st := newTestStore(t)

	c := NewLocalCoordinator(st, countingFetcher(new(atomic.Int32), &fetch.Result{NotModified: true}), nil)
	require.True(t, c.Pull(context.Background()))

	meta, err := st.GetSyncMeta()
	require.NoError(t, err)
	assert.NotNil(t, meta.LastRefreshedAt, "no unread posts going in means the user was caught up")
}

func TestLocalUnreadBlocksWatermark(t *testing.T) {
	st := newTestStore(t)
	feed := seedFeed(t, st, "https://example.com/feed.xml")
	seedPost(t, st, feed.ID, "https://example.com/a", time.Now())

	c := NewLocalCoordinator(st, countingFetcher(new(atomic.Int32), &fetch.Result{NotModified: true}), nil)
	require.True(t, c.Pull(context.Background()))

	meta, err := st.GetSyncMeta()
	require.NoError(t, err)
	assert.Nil(t, meta.LastRefreshedAt, "unread backlog keeps the last-visit watermark in place")
}

func TestLocalPushIsNoOp(t *testing.T) {
	st := newTestStore(t)
	c := NewLocalCoordinator(st, countingFetcher(new(atomic.Int32), &fetch.Result{NotModified: true}), nil)

	assert.True(t, c.Push(context.Background()))
	assert.Equal(t, StatusComplete, c.State().Status)
}

func TestLocalSkipsDeletedFeeds(t *testing.T) {
	st := newTestStore(t)
	feed := models.NewFeed("https://example.com/feed.xml")
	require.NoError(t, st.UpsertFeed(feed))
	require.NoError(t, st.MarkFeedDeleted(feed.ID, time.Now()))

	var calls atomic.Int32
	c := NewLocalCoordinator(st, countingFetcher(&calls, &fetch.Result{Body: []byte(sampleRSS)}), nil)
	require.True(t, c.Pull(context.Background()))
	require.True(t, c.PullFeed(context.Background(), feed.ID))

	assert.Equal(t, int32(0), calls.Load())
}
