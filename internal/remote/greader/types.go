// ABOUTME: Wire types and HTTP plumbing for the Google Reader API client
// ABOUTME: JSON payloads mirror the FreshRSS greader endpoint responses

package greader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Subscription is a remote feed subscription.
type Subscription struct {
	ID         string     `json:"id"` // e.g. "feed/1" or "feed/<url>"
	Title      string     `json:"title"`
	URL        string     `json:"url"`     // feed URL
	HTMLURL    string     `json:"htmlUrl"` // site URL
	IconURL    string     `json:"iconUrl"`
	Categories []Category `json:"categories"`
}

// Category is a label attached to a subscription.
type Category struct {
	ID    string `json:"id"` // e.g. "user/-/label/Tech"
	Label string `json:"label"`
}

// Tag is a user label from the tag list.
type Tag struct {
	ID string `json:"id"`
}

// Label extracts the human name from the tag's stream id.
func (t Tag) Label() string {
	if idx := strings.LastIndex(t.ID, "/label/"); idx >= 0 {
		return t.ID[idx+len("/label/"):]
	}
	return t.ID
}

// Stream is one page of stream contents with an optional continuation cursor.
type Stream struct {
	Items        []Item `json:"items"`
	Continuation string `json:"continuation"`
}

// Item is a single article in a stream.
type Item struct {
	ID         string      `json:"id"` // long form "tag:google.com,2005:reader/item/..."
	Title      string      `json:"title"`
	Published  int64       `json:"published"` // epoch seconds
	Categories []string    `json:"categories"`
	Canonical  []ItemLink  `json:"canonical"`
	Alternate  []ItemLink  `json:"alternate"`
	Summary    ItemContent `json:"summary"`
	Content    ItemContent `json:"content"`
	Origin     ItemOrigin  `json:"origin"`
}

// ItemLink is an article link.
type ItemLink struct {
	Href string `json:"href"`
}

// ItemContent is an article body fragment.
type ItemContent struct {
	Content string `json:"content"`
}

// ItemOrigin identifies the subscription an item belongs to.
type ItemOrigin struct {
	StreamID string `json:"streamId"`
	Title    string `json:"title"`
}

// Link returns the item's article URL, preferring canonical over alternate.
func (i Item) Link() string {
	if len(i.Canonical) > 0 && i.Canonical[0].Href != "" {
		return i.Canonical[0].Href
	}
	if len(i.Alternate) > 0 {
		return i.Alternate[0].Href
	}
	return ""
}

// Body returns the item's HTML body, preferring full content over summary.
func (i Item) Body() string {
	if i.Content.Content != "" {
		return i.Content.Content
	}
	return i.Summary.Content
}

// PublishedAt converts the published timestamp to a time.
func (i Item) PublishedAt() time.Time {
	return time.Unix(i.Published, 0).UTC()
}

// HasCategory reports whether the item carries the given state tag. Server
// categories use the "user/<id>/state/..." form, so matching is by suffix.
func (i Item) HasCategory(state string) bool {
	suffix := state
	if idx := strings.Index(state, "/state/"); idx >= 0 {
		suffix = state[idx:]
	}
	for _, cat := range i.Categories {
		if strings.HasSuffix(cat, suffix) {
			return true
		}
	}
	return false
}

type subscriptionList struct {
	Subscriptions []Subscription `json:"subscriptions"`
}

type itemIDList struct {
	ItemRefs     []itemRef `json:"itemRefs"`
	Continuation string    `json:"continuation"`
}

type itemRef struct {
	ID string `json:"id"` // short decimal form
}

// LongItemID converts a short decimal item id to the long tag form used by
// stream contents and edit-tag. IDs already in long form pass through.
func LongItemID(id string) string {
	if strings.HasPrefix(id, "tag:google.com,") {
		return id
	}
	var n int64
	if _, err := fmt.Sscanf(id, "%d", &n); err != nil {
		return id
	}
	return fmt.Sprintf("tag:google.com,2005:reader/item/%016x", uint64(n))
}

type tagList struct {
	Tags []Tag `json:"tags"`
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("output", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4*1024))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.authToken != "" {
		req.Header.Set("Authorization", "GoogleLogin auth="+c.authToken)
	}
}
