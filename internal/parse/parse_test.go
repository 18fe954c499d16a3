// ABOUTME: Tests for RSS/Atom parsing into normalized payloads
// ABOUTME: Verifies GUID fallback, date selection, summaries, and image extraction

package parse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/">
  <channel>
    <title>Example Blog</title>
    <link>https://example.com</link>
    <description>&lt;p&gt;A blog about &lt;b&gt;examples&lt;/b&gt;&lt;/p&gt;</description>
    <item>
      <title>First Post</title>
      <link>https://example.com/first</link>
      <guid>post-guid-1</guid>
      <pubDate>Mon, 02 Jun 2025 10:00:00 GMT</pubDate>
      <description>&lt;p&gt;Summary with &lt;img src="https://example.com/hero.jpg"&gt; markup&lt;/p&gt;</description>
    </item>
    <item>
      <title>Second Post</title>
      <link>/second</link>
      <description>Plain summary</description>
      <media:thumbnail url="https://example.com/thumb.png"/>
    </item>
  </channel>
</rss>`

func TestParse(t *testing.T) {
	payload, err := Parse([]byte(sampleRSS), "https://example.com/feed.xml")
	require.NoError(t, err)

	assert.Equal(t, "Example Blog", payload.Name)
	assert.Equal(t, "https://example.com", payload.HomepageLink)
	assert.Equal(t, "A blog about examples", payload.Description)
	assert.Equal(t, "https://example.com/favicon.ico", payload.Icon)
	require.Len(t, payload.Posts, 2)

	first := payload.Posts[0]
	assert.Equal(t, "post-guid-1", first.RemoteID)
	assert.Equal(t, "https://example.com/first", first.Link)
	assert.Equal(t, "Summary with markup", first.Description)
	require.NotNil(t, first.Date)
	assert.Equal(t, time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC).Unix(), first.Date.Unix())
	assert.Equal(t, "https://example.com/hero.jpg", first.ImageURL)

	second := payload.Posts[1]
	assert.Equal(t, "https://example.com/second", second.Link, "relative links resolve against homepage")
	assert.Equal(t, second.Link, second.RemoteID, "GUID falls back to link")
	assert.Equal(t, "https://example.com/thumb.png", second.ImageURL, "media thumbnail wins over body scan")
	assert.Nil(t, second.Date)
}

const sampleAtom = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Feed</title>
  <link href="https://atom.example/"/>
  <entry>
    <title>Entry</title>
    <link href="https://atom.example/entry"/>
    <id>tag:atom.example,2025:entry</id>
    <updated>2025-06-03T09:00:00Z</updated>
    <content type="html">&lt;p&gt;Full body&lt;/p&gt;</content>
  </entry>
</feed>`

func TestParseAtomUpdatedFallback(t *testing.T) {
	payload, err := Parse([]byte(sampleAtom), "https://atom.example/feed")
	require.NoError(t, err)
	require.Len(t, payload.Posts, 1)

	post := payload.Posts[0]
	assert.Equal(t, "tag:atom.example,2025:entry", post.RemoteID)
	require.NotNil(t, post.Date, "updated is used when published is absent")
	assert.Equal(t, "<p>Full body</p>", post.RawContent)
	assert.Equal(t, "Full body", post.Description, "description falls back to body text")
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse([]byte("not a feed"), "https://example.com/feed.xml")
	assert.Error(t, err)
}
