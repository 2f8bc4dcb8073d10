package domain

import "time"

// ─── Notifications ──────────────────────────────────────────────────────────

// NotificationLevel classifies a UI notification.
type NotificationLevel string

const (
	LevelInfo    NotificationLevel = "info"
	LevelSuccess NotificationLevel = "success"
	LevelWarning NotificationLevel = "warning"
	LevelError   NotificationLevel = "error"
)

// Notification is one ephemeral event surfaced to the UI.
type Notification struct {
	ID        string            `json:"id"`
	Level     NotificationLevel `json:"level"`
	Title     string            `json:"title"`
	Message   string            `json:"message,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// DedupKey identifies notifications that are considered the same event.
func (n Notification) DedupKey() string {
	return string(n.Level) + "\x00" + n.Title + "\x00" + n.Message
}
