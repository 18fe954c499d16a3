// ABOUTME: Google Reader API client for FreshRSS and compatible aggregators
// ABOUTME: ClientLogin auth, stream contents with continuation cursors, and tag edits

package greader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Well-known stream and state identifiers.
const (
	StreamReadingList = "user/-/state/com.google/reading-list"
	StateRead         = "user/-/state/com.google/read"
	StateStarred      = "user/-/state/com.google/starred"
	LabelPrefix       = "user/-/label/"
)

// Client talks to a Google Reader compatible API endpoint.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

// NewClient creates a client for the given server. authToken is the value
// obtained from Login; pass an empty string when only Login will be called.
func NewClient(serverURL, authToken string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(serverURL, "/"),
		authToken: authToken,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Login performs ClientLogin and returns the long-lived auth token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	form := url.Values{}
	form.Set("Email", username)
	form.Set("Passwd", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/accounts/ClientLogin", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", err
	}

	for _, line := range strings.Split(string(body), "\n") {
		if token, ok := strings.CutPrefix(strings.TrimSpace(line), "Auth="); ok && token != "" {
			return token, nil
		}
	}
	return "", fmt.Errorf("login: no auth token in response")
}

// Subscriptions returns all remote feed subscriptions.
func (c *Client) Subscriptions(ctx context.Context) ([]Subscription, error) {
	var out subscriptionList
	if err := c.getJSON(ctx, "/reader/api/0/subscription/list", nil, &out); err != nil {
		return nil, fmt.Errorf("subscription list: %w", err)
	}
	return out.Subscriptions, nil
}

// Tags returns all remote tags/labels, including non-label states.
func (c *Client) Tags(ctx context.Context) ([]Tag, error) {
	var out tagList
	if err := c.getJSON(ctx, "/reader/api/0/tag/list", nil, &out); err != nil {
		return nil, fmt.Errorf("tag list: %w", err)
	}

	// Keep only user labels; the state pseudo-tags are not groups.
	labels := make([]Tag, 0, len(out.Tags))
	for _, tag := range out.Tags {
		if strings.Contains(tag.ID, "/label/") {
			labels = append(labels, tag)
		}
	}
	return labels, nil
}

// StreamContents fetches a page of a stream (reading list or starred). since
// bounds the page to items published at or after the given time; continuation
// resumes a previous page. A zero since fetches from the beginning.
func (c *Client) StreamContents(ctx context.Context, streamID string, since time.Time, continuation string, limit int) (*Stream, error) {
	params := url.Values{}
	params.Set("n", fmt.Sprintf("%d", limit))
	if !since.IsZero() {
		params.Set("ot", fmt.Sprintf("%d", since.Unix()))
	}
	if continuation != "" {
		params.Set("c", continuation)
	}

	var out Stream
	path := "/reader/api/0/stream/contents/" + streamID
	if err := c.getJSON(ctx, path, params, &out); err != nil {
		return nil, fmt.Errorf("stream contents: %w", err)
	}
	return &out, nil
}

// ItemIDs fetches one page of item ids for a stream, optionally excluding
// items carrying a state tag. IDs are returned in the long form used by
// stream contents and edit-tag.
func (c *Client) ItemIDs(ctx context.Context, streamID, excludeTag string, limit int, continuation string) ([]string, string, error) {
	params := url.Values{}
	params.Set("s", streamID)
	params.Set("n", fmt.Sprintf("%d", limit))
	if excludeTag != "" {
		params.Set("xt", excludeTag)
	}
	if continuation != "" {
		params.Set("c", continuation)
	}

	var out itemIDList
	if err := c.getJSON(ctx, "/reader/api/0/stream/items/ids", params, &out); err != nil {
		return nil, "", fmt.Errorf("item ids: %w", err)
	}

	ids := make([]string, 0, len(out.ItemRefs))
	for _, ref := range out.ItemRefs {
		ids = append(ids, LongItemID(ref.ID))
	}
	return ids, out.Continuation, nil
}

// EditTags adds and/or removes a state tag on the given items.
func (c *Client) EditTags(ctx context.Context, itemIDs []string, addTag, removeTag string) error {
	if len(itemIDs) == 0 {
		return nil
	}

	form := url.Values{}
	for _, id := range itemIDs {
		form.Add("i", id)
	}
	if addTag != "" {
		form.Set("a", addTag)
	}
	if removeTag != "" {
		form.Set("r", removeTag)
	}

	if err := c.postForm(ctx, "/reader/api/0/edit-tag", form); err != nil {
		return fmt.Errorf("edit tags: %w", err)
	}
	return nil
}

// Subscribe adds a feed subscription and returns its stream id.
func (c *Client) Subscribe(ctx context.Context, feedURL string) (string, error) {
	form := url.Values{}
	form.Set("ac", "subscribe")
	form.Set("s", "feed/"+feedURL)

	if err := c.postForm(ctx, "/reader/api/0/subscription/edit", form); err != nil {
		return "", fmt.Errorf("subscribe: %w", err)
	}
	return "feed/" + feedURL, nil
}

// Unsubscribe removes a feed subscription by stream id.
func (c *Client) Unsubscribe(ctx context.Context, streamID string) error {
	form := url.Values{}
	form.Set("ac", "unsubscribe")
	form.Set("s", streamID)

	if err := c.postForm(ctx, "/reader/api/0/subscription/edit", form); err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	return nil
}

// EditSubscription renames a subscription and/or moves it between labels.
// Empty arguments leave the corresponding attribute unchanged.
func (c *Client) EditSubscription(ctx context.Context, streamID, title, addLabel, removeLabel string) error {
	form := url.Values{}
	form.Set("ac", "edit")
	form.Set("s", streamID)
	if title != "" {
		form.Set("t", title)
	}
	if addLabel != "" {
		form.Set("a", LabelPrefix+addLabel)
	}
	if removeLabel != "" {
		form.Set("r", LabelPrefix+removeLabel)
	}

	if err := c.postForm(ctx, "/reader/api/0/subscription/edit", form); err != nil {
		return fmt.Errorf("edit subscription: %w", err)
	}
	return nil
}

// AddTag creates a label. The API has no dedicated create call; editing an
// empty stream with the label attached makes the server materialize it.
func (c *Client) AddTag(ctx context.Context, name string) error {
	form := url.Values{}
	form.Set("ac", "edit")
	form.Set("s", "")
	form.Set("a", LabelPrefix+name)

	if err := c.postForm(ctx, "/reader/api/0/subscription/edit", form); err != nil {
		return fmt.Errorf("add tag: %w", err)
	}
	return nil
}

// RenameTag renames a label.
func (c *Client) RenameTag(ctx context.Context, oldName, newName string) error {
	form := url.Values{}
	form.Set("s", LabelPrefix+oldName)
	form.Set("dest", LabelPrefix+newName)

	if err := c.postForm(ctx, "/reader/api/0/rename-tag", form); err != nil {
		return fmt.Errorf("rename tag: %w", err)
	}
	return nil
}

// DeleteTag removes a label.
func (c *Client) DeleteTag(ctx context.Context, name string) error {
	form := url.Values{}
	form.Set("s", LabelPrefix+name)

	if err := c.postForm(ctx, "/reader/api/0/disable-tag", form); err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	return nil
}
