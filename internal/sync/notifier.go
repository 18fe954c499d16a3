// ABOUTME: New-article notification derivation from the last-visit watermark
// ABOUTME: Delivery is caller-supplied; this only decides whether and what to notify

package sync

import (
	"fmt"
	"log/slog"

	"github.com/harper/skein/internal/storage"
	"github.com/harper/skein/internal/timeutil"
)

// Notification describes new articles found since the user last caught up.
type Notification struct {
	Title string
	Body  string
	Count int
}

// Notifier delivers a notification. Implementations decide the channel.
type Notifier interface {
	Notify(n Notification) error
}

// NewArticleNotifier checks for articles that arrived after the user last
// caught up and hands them to a Notifier. It holds no state of its own: the
// decision derives entirely from the enabled preference, the last-refreshed
// watermark, and today's unread count.
type NewArticleNotifier struct {
	store    storage.Store
	notifier Notifier
	enabled  func() bool
	log      *slog.Logger
}

func NewNewArticleNotifier(store storage.Store, notifier Notifier, enabled func() bool, log *slog.Logger) *NewArticleNotifier {
	if enabled == nil {
		enabled = func() bool { return true }
	}
	if log == nil {
		log = slog.Default()
	}
	return &NewArticleNotifier{
		store:    store,
		notifier: notifier,
		enabled:  enabled,
		log:      log.With("component", "notifier"),
	}
}

// Check counts unread posts from today that arrived after the last-refreshed
// watermark and notifies when there are any. Never notifies before the first
// caught-up moment: without a watermark, everything would look new.
func (n *NewArticleNotifier) Check() error {
	if !n.enabled() {
		return nil
	}

	meta, err := n.store.GetSyncMeta()
	if err != nil {
		return err
	}
	if meta.LastRefreshedAt == nil {
		return nil
	}

	count, err := n.store.UnreadCount(nil, timeutil.StartOfToday(), *meta.LastRefreshedAt)
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}

	body := fmt.Sprintf("%d new articles to read", count)
	if count == 1 {
		body = "1 new article to read"
	}
	if err := n.notifier.Notify(Notification{
		Title: "New articles",
		Body:  body,
		Count: count,
	}); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}
