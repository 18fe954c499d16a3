// ABOUTME: RSS/Atom feed parsing using gofeed library
// ABOUTME: Converts gofeed.Feed to normalized payloads with plain-text summaries and hero images

package parse

import (
	"net/url"
	"strings"
	"time"

	"github.com/harper/skein/internal/content"
	"github.com/mmcdole/gofeed"
)

// FeedPayload is a normalized parsed feed, not yet bound to a stored feed.
type FeedPayload struct {
	Name         string
	Description  string
	HomepageLink string
	Icon         string
	Posts        []PostPayload
}

// PostPayload is a normalized parsed article.
type PostPayload struct {
	RemoteID    string // GUID, falls back to link
	Link        string
	Title       string
	Description string // plain text summary
	RawContent  string // original HTML body
	ImageURL    string
	Date        *time.Time
}

// Parse parses RSS/Atom/JSON feed data into a FeedPayload. feedLink is the
// URL the data was fetched from, used to resolve relative links and derive
// a favicon.
func Parse(data []byte, feedLink string) (*FeedPayload, error) {
	parser := gofeed.NewParser()
	feed, err := parser.ParseString(string(data))
	if err != nil {
		return nil, err
	}

	payload := &FeedPayload{
		Name:         strings.TrimSpace(feed.Title),
		Description:  content.ExtractText(feed.Description),
		HomepageLink: strings.TrimSpace(feed.Link),
		Posts:        make([]PostPayload, 0, len(feed.Items)),
	}
	if payload.HomepageLink == "" {
		payload.HomepageLink = feedLink
	}
	payload.Icon = faviconURL(payload.HomepageLink)

	for _, item := range feed.Items {
		post := PostPayload{
			RemoteID: item.GUID,
			Link:     resolveLink(payload.HomepageLink, item.Link),
			Title:    strings.TrimSpace(item.Title),
		}
		if post.RemoteID == "" {
			post.RemoteID = post.Link
		}

		if item.PublishedParsed != nil {
			post.Date = item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			post.Date = item.UpdatedParsed
		}

		// Prefer Content over Description for the full body
		body := item.Content
		if body == "" {
			body = item.Description
		}
		post.RawContent = strings.TrimSpace(body)
		post.Description = content.ExtractText(item.Description)
		if post.Description == "" {
			post.Description = content.ExtractText(body)
		}

		post.ImageURL = itemImage(item)
		if post.ImageURL == "" {
			post.ImageURL = content.FirstImageURL(body)
		}

		payload.Posts = append(payload.Posts, post)
	}

	return payload, nil
}

// itemImage picks an image from the item's explicit metadata: the image
// element, then enclosures, then media extensions.
func itemImage(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}

	for _, enc := range item.Enclosures {
		if strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}

	if media, ok := item.Extensions["media"]; ok {
		for _, name := range []string{"content", "thumbnail"} {
			for _, ext := range media[name] {
				if url := ext.Attrs["url"]; url != "" {
					return url
				}
			}
		}
	}
	return ""
}

// resolveLink resolves a possibly relative article link against the feed's
// homepage.
func resolveLink(base, link string) string {
	link = strings.TrimSpace(link)
	if link == "" || strings.Contains(link, "://") {
		return link
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return link
	}
	ref, err := url.Parse(link)
	if err != nil {
		return link
	}
	return baseURL.ResolveReference(ref).String()
}

// faviconURL derives a favicon location from the homepage's host.
func faviconURL(homepage string) string {
	u, err := url.Parse(homepage)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/favicon.ico"
}
