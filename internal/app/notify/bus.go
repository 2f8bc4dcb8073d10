// Package notify implements the ephemeral, de-duplicated notification feed
// surfaced to the UI.
//
// Identical notifications (same level, title and message) published within
// the dedup window are collapsed into the first one. The feed keeps at most
// MaxItems entries; older ones fall off. Subscribers receive every delivered
// notification on a buffered channel; a subscriber that falls behind misses
// events rather than blocking publishers.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/adstudio/studio/internal/domain"
	"github.com/adstudio/studio/internal/infra/logging"
	"github.com/adstudio/studio/internal/infra/observability"
)

// Defaults.
const (
	DefaultDedupWindow = 3 * time.Second
	DefaultMaxItems    = 50
	subscriberBuffer   = 32
)

// Config configures a Bus.
type Config struct {
	DedupWindow time.Duration
	MaxItems    int
	Logger      *logrus.Entry
}

var _ domain.Notifier = (*Bus)(nil)

// Bus is the notification feed.
type Bus struct {
	mu       sync.RWMutex
	window   time.Duration
	maxItems int
	items    []domain.Notification // newest last
	lastSeen map[string]domain.Notification
	clients  map[chan domain.Notification]struct{}
	log      *logrus.Entry
	now      func() time.Time

	published  int64
	duplicates int64
}

// NewBus creates a notification bus.
func NewBus(cfg Config) *Bus {
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = DefaultDedupWindow
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = DefaultMaxItems
	}
	return &Bus{
		window:   cfg.DedupWindow,
		maxItems: cfg.MaxItems,
		lastSeen: make(map[string]domain.Notification),
		clients:  make(map[chan domain.Notification]struct{}),
		log:      logging.OrDiscard(cfg.Logger),
		now:      time.Now,
	}
}

// Publish adds a notification to the feed and broadcasts it. If an identical
// notification was delivered within the dedup window, that one is returned
// with delivered=false and nothing is broadcast.
func (b *Bus) Publish(level domain.NotificationLevel, title, message string) (domain.Notification, bool) {
	n := domain.Notification{
		Level:     level,
		Title:     title,
		Message:   message,
		CreatedAt: b.now(),
	}
	key := n.DedupKey()

	b.mu.Lock()
	defer b.mu.Unlock()

	if prev, ok := b.lastSeen[key]; ok && n.CreatedAt.Sub(prev.CreatedAt) < b.window {
		b.duplicates++
		observability.NotificationsPublished.WithLabelValues(string(level), "duplicate").Inc()
		return prev, false
	}

	n.ID = uuid.NewString()
	b.lastSeen[key] = n
	b.items = append(b.items, n)
	if len(b.items) > b.maxItems {
		b.items = append([]domain.Notification(nil), b.items[len(b.items)-b.maxItems:]...)
	}
	b.pruneLocked(n.CreatedAt)
	b.published++
	observability.NotificationsPublished.WithLabelValues(string(level), "delivered").Inc()

	for ch := range b.clients {
		select {
		case ch <- n:
		default:
			// Client too slow, drop message
		}
	}

	entry := b.log.WithFields(logrus.Fields{"level": level, "title": title})
	if level == domain.LevelError || level == domain.LevelWarning {
		entry.Warn(message)
	} else {
		entry.Debug(message)
	}
	return n, true
}

// pruneLocked forgets dedup keys older than the window.
func (b *Bus) pruneLocked(now time.Time) {
	for k, n := range b.lastSeen {
		if now.Sub(n.CreatedAt) >= b.window {
			delete(b.lastSeen, k)
		}
	}
}

// Recent returns up to limit notifications, newest first. limit <= 0
// returns the whole feed.
func (b *Bus) Recent(limit int) []domain.Notification {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if limit <= 0 || limit > len(b.items) {
		limit = len(b.items)
	}
	out := make([]domain.Notification, 0, limit)
	for i := len(b.items) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, b.items[i])
	}
	return out
}

// Dismiss removes a notification from the feed. It reports whether the id
// was present.
func (b *Bus) Dismiss(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, n := range b.items {
		if n.ID == id {
			b.items = append(b.items[:i], b.items[i+1:]...)
			return true
		}
	}
	return false
}

// Subscribe registers a client. Returns the channel and an unsubscribe func.
func (b *Bus) Subscribe() (<-chan domain.Notification, func()) {
	ch := make(chan domain.Notification, subscriberBuffer)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.clients, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// BusStats is a point-in-time snapshot.
type BusStats struct {
	Items       int   `json:"items"`
	Subscribers int   `json:"subscribers"`
	Published   int64 `json:"published"`
	Duplicates  int64 `json:"duplicates"`
}

// Stats returns a snapshot.
func (b *Bus) Stats() BusStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return BusStats{
		Items:       len(b.items),
		Subscribers: len(b.clients),
		Published:   b.published,
		Duplicates:  b.duplicates,
	}
}
