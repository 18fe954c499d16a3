// ABOUTME: Post model representing a single article with read/bookmark state
// ABOUTME: UpdatedAt vs SyncedAt ordering decides whether a local change is pending push

package models

import (
	"time"

	"github.com/google/uuid"
)

// PostFlag encodes post state in the snapshot wire format.
type PostFlag string

const (
	FlagRead       PostFlag = "Read"
	FlagBookmarked PostFlag = "Bookmarked"
)

// Post is a single article belonging to a feed. Identity across backends is
// resolved by RemoteID first, falling back to Link; titles and dates are not
// stable enough to key on.
type Post struct {
	ID          string
	SourceID    string // owning feed id
	RemoteID    *string
	Link        string
	Title       string
	Description string
	ImageURL    string
	PostDate    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time // last local mutation
	SyncedAt    time.Time // last time local state was confirmed pushed
	Read        bool
	Bookmarked  bool
}

// NewPost creates a post for the given feed with a generated ID. The post
// starts clean: SyncedAt equals UpdatedAt.
func NewPost(sourceID, link, title string) *Post {
	now := time.Now()
	return &Post{
		ID:        uuid.New().String(),
		SourceID:  sourceID,
		Link:      link,
		Title:     title,
		PostDate:  now,
		CreatedAt: now,
		UpdatedAt: now,
		SyncedAt:  now,
	}
}

// HasRemoteID reports whether the post is paired with a remote article.
func (p *Post) HasRemoteID() bool {
	return p.RemoteID != nil && *p.RemoteID != ""
}

// Dirty reports whether the post carries a local change not yet confirmed
// pushed. A dirty post's local value wins over any remote value until the
// next push.
func (p *Post) Dirty() bool {
	return p.UpdatedAt.After(p.SyncedAt)
}

// Flags returns the snapshot encoding of the post's state.
func (p *Post) Flags() []PostFlag {
	var flags []PostFlag
	if p.Read {
		flags = append(flags, FlagRead)
	}
	if p.Bookmarked {
		flags = append(flags, FlagBookmarked)
	}
	return flags
}

// HasFlag reports whether flag is present in flags.
func HasFlag(flags []PostFlag, flag PostFlag) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}

// PostContent holds the optional full article body attached to a post.
type PostContent struct {
	PostID      string
	RawContent  string
	HTMLContent string
	CreatedAt   time.Time
}
