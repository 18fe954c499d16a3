// ABOUTME: Feed model representing an RSS/Atom subscription with sync bookkeeping
// ABOUTME: Tracks remote identity, refresh cadence, cleanup watermark, and soft deletion

package models

import (
	"time"

	"github.com/google/uuid"
)

// Refresh interval bounds for the adaptive scheduler.
const (
	MinRefreshInterval = 15 * time.Minute
	MaxRefreshInterval = 24 * time.Hour
)

// Feed represents a feed subscription. A feed may exist purely locally or be
// paired with a remote aggregator subscription via RemoteID. Link is the
// canonical feed URL and doubles as the cross-backend identity key when no
// remote id has been assigned yet.
type Feed struct {
	ID              string
	RemoteID        *string
	Link            string
	Name            string
	HomepageLink    string
	Icon            string
	Description     string
	PinnedAt        *time.Time
	LastCleanUpAt   *time.Time // read posts older than this may be purged
	LastUpdatedAt   *time.Time // last local edit or remote-sync touch
	RefreshInterval time.Duration
	ETag            *string // HTTP cache validators from the last direct fetch
	LastModified    *string
	IsDeleted       bool // tombstone until the deletion is pushed
	CreatedAt       time.Time
}

// NewFeed creates a feed subscription for the given URL with a generated ID
// and the default refresh interval.
func NewFeed(link string) *Feed {
	return &Feed{
		ID:              uuid.New().String(),
		Link:            link,
		RefreshInterval: time.Hour,
		CreatedAt:       time.Now(),
	}
}

// SetCacheHeaders records the cache validators from a fetch response. Empty
// values leave the stored ones untouched.
func (f *Feed) SetCacheHeaders(etag, lastModified string) {
	if etag != "" {
		f.ETag = &etag
	}
	if lastModified != "" {
		f.LastModified = &lastModified
	}
}

// HasRemoteID reports whether the feed is paired with a remote subscription.
func (f *Feed) HasRemoteID() bool {
	return f.RemoteID != nil && *f.RemoteID != ""
}

// DueForRefresh reports whether the feed should be refreshed at now. Feeds
// that have never been refreshed are always due.
func (f *Feed) DueForRefresh(now time.Time) bool {
	if f.LastUpdatedAt == nil {
		return true
	}
	return now.Sub(*f.LastUpdatedAt) >= f.RefreshInterval
}

// AdjustedRefreshInterval returns the next poll cadence: shrink toward the
// floor when the last refresh found new content, grow toward the ceiling
// when it did not.
func (f *Feed) AdjustedRefreshInterval(hasNewContent bool) time.Duration {
	current := f.RefreshInterval
	if current <= 0 {
		current = time.Hour
	}

	var next time.Duration
	if hasNewContent {
		next = time.Duration(float64(current) * 0.8)
		if next < MinRefreshInterval {
			next = MinRefreshInterval
		}
	} else {
		next = time.Duration(float64(current) * 1.2)
		if next > MaxRefreshInterval {
			next = MaxRefreshInterval
		}
	}
	return next
}
