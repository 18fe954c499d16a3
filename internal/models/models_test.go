// ABOUTME: Tests for feed, group, and post model behavior
// ABOUTME: Covers adaptive interval bounds, dirty detection, flags, and deterministic IDs

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAdjustedRefreshInterval(t *testing.T) {
	tests := []struct {
		name          string
		current       time.Duration
		hasNewContent bool
		want          time.Duration
	}{
		{"shrinks on new content", time.Hour, true, 48 * time.Minute},
		{"grows when quiet", time.Hour, false, 72 * time.Minute},
		{"clamped at floor", 15 * time.Minute, true, 15 * time.Minute},
		{"clamped at ceiling", 24 * time.Hour, false, 24 * time.Hour},
		{"zero interval resets to an hour first", 0, false, 72 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feed := NewFeed("https://example.com/feed.xml")
			feed.RefreshInterval = tt.current
			assert.Equal(t, tt.want, feed.AdjustedRefreshInterval(tt.hasNewContent))
		})
	}
}

func TestAdjustedRefreshIntervalConverges(t *testing.T) {
	feed := NewFeed("https://example.com/feed.xml")

	// repeated quiet refreshes settle at the ceiling
	for i := 0; i < 50; i++ {
		feed.RefreshInterval = feed.AdjustedRefreshInterval(false)
	}
	assert.Equal(t, MaxRefreshInterval, feed.RefreshInterval)

	// repeated active refreshes settle at the floor
	for i := 0; i < 50; i++ {
		feed.RefreshInterval = feed.AdjustedRefreshInterval(true)
	}
	assert.Equal(t, MinRefreshInterval, feed.RefreshInterval)
}

func TestDueForRefresh(t *testing.T) {
	now := time.Now()

	feed := NewFeed("https://example.com/feed.xml")
	assert.True(t, feed.DueForRefresh(now), "never-refreshed feed is due")

	recent := now.Add(-30 * time.Minute)
	feed.LastUpdatedAt = &recent
	assert.False(t, feed.DueForRefresh(now))

	stale := now.Add(-2 * time.Hour)
	feed.LastUpdatedAt = &stale
	assert.True(t, feed.DueForRefresh(now))
}

func TestPostDirty(t *testing.T) {
	post := NewPost("feed-1", "https://example.com/a", "A")
	assert.False(t, post.Dirty(), "new posts start clean")

	post.UpdatedAt = post.SyncedAt.Add(time.Second)
	assert.True(t, post.Dirty())

	post.SyncedAt = post.UpdatedAt
	assert.False(t, post.Dirty())
}

func TestPostFlags(t *testing.T) {
	post := NewPost("feed-1", "https://example.com/a", "A")
	assert.Empty(t, post.Flags())

	post.Read = true
	post.Bookmarked = true
	flags := post.Flags()
	assert.True(t, HasFlag(flags, FlagRead))
	assert.True(t, HasFlag(flags, FlagBookmarked))
	assert.False(t, HasFlag(nil, FlagRead))
}

func TestNameBasedID(t *testing.T) {
	assert.Equal(t, NameBasedID("Tech"), NameBasedID("tech"), "case-insensitive")
	assert.NotEqual(t, NameBasedID("Tech"), NameBasedID("News"))

	group1 := NewGroup("Tech")
	group2 := NewGroup("Tech")
	assert.Equal(t, group1.ID, group2.ID)
}

func TestBlockedWordID(t *testing.T) {
	assert.Equal(t, NewBlockedWord("Spam").ID, NewBlockedWord("spam").ID)
}

func TestGroupContainsFeed(t *testing.T) {
	group := NewGroup("Tech")
	group.FeedIDs = []string{"a", "b"}
	assert.True(t, group.ContainsFeed("a"))
	assert.False(t, group.ContainsFeed("c"))
}

func TestHasRemoteID(t *testing.T) {
	feed := NewFeed("https://example.com/feed.xml")
	assert.False(t, feed.HasRemoteID())

	empty := ""
	feed.RemoteID = &empty
	assert.False(t, feed.HasRemoteID())

	id := "feed/1"
	feed.RemoteID = &id
	assert.True(t, feed.HasRemoteID())
}
