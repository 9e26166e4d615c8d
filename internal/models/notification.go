package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationLog records a notification that was sent (or dry-run logged).
// Records are immutable once created; the repository keeps an append-only log.
type NotificationLog struct {
	ID        string
	MonitorID string
	Message   string
	Details   map[string]any
	SentAt    time.Time
}

// NewNotificationLog creates a log entry with a fresh ID and the current time.
func NewNotificationLog(monitorID, message string, details map[string]any) *NotificationLog {
	if details == nil {
		details = make(map[string]any)
	}
	return &NotificationLog{
		ID:        uuid.NewString(),
		MonitorID: monitorID,
		Message:   message,
		Details:   details,
		SentAt:    time.Now(),
	}
}
