package models

import (
	"time"

	"github.com/google/uuid"
)

type NotificationLevel string

const (
	LevelInfo     NotificationLevel = "info"
	LevelWarning  NotificationLevel = "warning"
	LevelCritical NotificationLevel = "critical"
)

const (
	KindPositionChanged = "position_changed"
	KindYouAreNext      = "you_are_next"
	KindTimeExtended    = "time_extended"
	KindExpiringSoon    = "expiring_soon"
	KindLeaseAssigned   = "lease_assigned"
	KindLeaseExpired    = "lease_expired"
)

// NotificationEvent is handed to a delivery sink exactly once per edge
// trigger. Immutable after creation.
type NotificationEvent struct {
	ID         string            `json:"id"`
	UserID     string            `json:"user_id"`
	ResourceID string            `json:"resource_id"`
	Kind       string            `json:"kind"`
	Level      NotificationLevel `json:"level"`
	Payload    map[string]any    `json:"payload"`
	EmittedAt  time.Time         `json:"emitted_at"`
}

func NewNotificationEvent(userID, resourceID, kind string, level NotificationLevel, payload map[string]any) NotificationEvent {
	return NotificationEvent{
		ID:         uuid.New().String(),
		UserID:     userID,
		ResourceID: resourceID,
		Kind:       kind,
		Level:      level,
		Payload:    payload,
		EmittedAt:  time.Now(),
	}
}
