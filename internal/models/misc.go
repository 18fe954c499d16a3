// ABOUTME: Small supporting entities carried by the snapshot document
// ABOUTME: Blocked words filter the timeline; the user record identifies the account

package models

import "time"

// BlockedWord hides posts containing the word from the timeline. Synced via
// the snapshot document.
type BlockedWord struct {
	ID        string
	Content   string
	IsDeleted bool
	UpdatedAt time.Time
}

// NewBlockedWord derives the word's ID from its lowercased content.
func NewBlockedWord(content string) *BlockedWord {
	return &BlockedWord{
		ID:        NameBasedID(content),
		Content:   content,
		UpdatedAt: time.Now(),
	}
}

// User is the locally stored account identity. A snapshot merge creates one
// only when none exists; it never overwrites a local identity.
type User struct {
	ID        string
	Name      string
	ProfileID string
	Email     string
	ServerURL string
}
