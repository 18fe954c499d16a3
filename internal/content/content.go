// ABOUTME: Content processing utilities for article bodies
// ABOUTME: HTML detection, Markdown conversion, plain-text summaries, and hero image extraction

package content

import (
	"html"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// htmlTagPattern matches common HTML tags
var htmlTagPattern = regexp.MustCompile(`<\s*(p|div|span|a|br|img|h[1-6]|ul|ol|li|table|tr|td|th|strong|em|b|i|code|pre|blockquote)[^>]*>`)

var (
	anyTagPattern    = regexp.MustCompile(`(?s)<[^>]*>`)
	scriptPattern    = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	whitespaceRun    = regexp.MustCompile(`\s+`)
	imgSrcPattern    = regexp.MustCompile(`(?is)<img[^>]+src\s*=\s*["']([^"']+)["']`)
	trackingPixelDim = regexp.MustCompile(`(?is)(width|height)\s*=\s*["']?1["']?`)
)

// IsHTML checks if content appears to be HTML
func IsHTML(content string) bool {
	if strings.Contains(content, "<!DOCTYPE") || strings.Contains(content, "<html") {
		return true
	}
	return htmlTagPattern.MatchString(content)
}

// ToMarkdown converts HTML content to Markdown.
// If the content doesn't appear to be HTML, returns it unchanged.
func ToMarkdown(content string) string {
	if content == "" || !IsHTML(content) {
		return content
	}

	markdown, err := htmltomarkdown.ConvertString(content)
	if err != nil {
		// If conversion fails, return original content
		return content
	}
	return strings.TrimSpace(markdown)
}

// ExtractText strips markup and collapses whitespace, producing a plain-text
// summary suitable for list views.
func ExtractText(s string) string {
	if s == "" {
		return ""
	}
	s = scriptPattern.ReplaceAllString(s, " ")
	s = anyTagPattern.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// FirstImageURL returns the src of the first real image in the HTML body.
// Tracking pixels (1x1) and inline data URIs are skipped.
func FirstImageURL(body string) string {
	for _, match := range imgSrcPattern.FindAllStringSubmatch(body, 5) {
		tag, src := match[0], match[1]
		if strings.HasPrefix(src, "data:") {
			continue
		}
		if trackingPixelDim.MatchString(tag) {
			continue
		}
		return src
	}
	return ""
}
