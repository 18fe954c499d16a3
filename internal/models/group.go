// ABOUTME: Group model representing a named set of feeds (category/tag on remote backends)
// ABOUTME: Deterministic IDs derived from the group name keep cross-device merges stable

package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// skeinNamespace is the UUIDv5 namespace for name-derived entity IDs.
var skeinNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// Group is a named collection of feeds. Remote aggregators call these
// categories (Miniflux) or tags/labels (GReader).
type Group struct {
	ID        string
	RemoteID  *string
	Name      string
	FeedIDs   []string
	PinnedAt  *time.Time
	UpdatedAt time.Time
	IsDeleted bool
}

// NewGroup creates a group whose ID is derived from its name, so the same
// group created on two devices merges to one record.
func NewGroup(name string) *Group {
	return &Group{
		ID:        NameBasedID(name),
		Name:      name,
		UpdatedAt: time.Now(),
	}
}

// HasRemoteID reports whether the group is paired with a remote category/tag.
func (g *Group) HasRemoteID() bool {
	return g.RemoteID != nil && *g.RemoteID != ""
}

// ContainsFeed reports whether feedID is a member of the group.
func (g *Group) ContainsFeed(feedID string) bool {
	for _, id := range g.FeedIDs {
		if id == feedID {
			return true
		}
	}
	return false
}

// NameBasedID returns a deterministic UUID for a natural-key name.
func NameBasedID(name string) string {
	return uuid.NewSHA1(skeinNamespace, []byte(strings.ToLower(name))).String()
}
