// ABOUTME: Conditional HTTP fetcher for direct feed polling
// ABOUTME: Sends stored cache validators and short-circuits on 304 responses

package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

// MaxResponseSize caps a feed document at 10MB.
const MaxResponseSize = 10 * 1024 * 1024

// Result is the outcome of one fetch. On a 304 only NotModified is set; the
// caller keeps its previous body and validators.
type Result struct {
	Body         []byte
	ETag         string
	LastModified string
	NotModified  bool
}

var client = &http.Client{Timeout: 30 * time.Second}

// Fetch retrieves a feed URL. Non-nil etag and lastModified values ride along
// as If-None-Match and If-Modified-Since, letting an unchanged feed answer
// with a bodiless 304. Feed URLs are user input, so targets resolving to
// private address ranges are refused and oversized bodies are rejected.
func Fetch(ctx context.Context, urlStr string, etag, lastModified *string) (*Result, error) {
	if err := checkTarget(urlStr); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "skein/1.0 (feed reader)")
	if etag != nil && *etag != "" {
		req.Header.Set("If-None-Match", *etag)
	}
	if lastModified != nil && *lastModified != "" {
		req.Header.Set("If-Modified-Since", *lastModified)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", urlStr, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return &Result{NotModified: true}, nil
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetch %s: unexpected status %d", urlStr, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeds %d bytes", MaxResponseSize)
	}

	return &Result{
		Body:         body,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}, nil
}

// checkTarget refuses URLs whose host resolves to a private or link-local
// address. Loopback stays reachable so a locally hosted aggregator works.
func checkTarget(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	ips, err := net.LookupIP(parsed.Hostname())
	if err != nil {
		// Resolution failures surface from the request itself.
		return nil
	}
	for _, ip := range ips {
		if ip.IsLoopback() {
			continue
		}
		if ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
			return fmt.Errorf("fetch %s: private address ranges are not allowed", urlStr)
		}
	}
	return nil
}
