package services

import (
	"time"

	"reservation-system/config"
	"reservation-system/models"
)

// Sink receives emitted notification events. Delivery is fire-and-forget
// from the core's perspective.
type Sink interface {
	Deliver(event models.NotificationEvent) error
}

// NotificationDispatcher turns before/after state snapshots into events.
// It is a pure function of its inputs: the caller supplies both
// snapshots, the dispatcher keeps no state of its own, which makes edge
// detection testable and immune to drift from the authoritative queue.
type NotificationDispatcher struct {
	cfg *config.Config
}

func NewNotificationDispatcher(cfg *config.Config) *NotificationDispatcher {
	return &NotificationDispatcher{cfg: cfg}
}

// OnQueueMutated compares two queue snapshots of the same resource.
// A waiter whose position became 1 gets a single "you are next"; any
// other position change, including being pushed back by an elevated
// join, gets "position changed". Waiters whose position is unchanged
// get nothing.
func (d *NotificationDispatcher) OnQueueMutated(resourceID string, before, after models.QueueSnapshot) []models.NotificationEvent {
	var events []models.NotificationEvent

	for _, w := range after {
		prev, existed := before.Find(w.UserID)

		if w.Position == 1 && (!existed || prev.Position != 1) {
			events = append(events, models.NewNotificationEvent(
				w.UserID, resourceID, models.KindYouAreNext, models.LevelWarning,
				map[string]any{
					"position":               1,
					"estimated_wait_seconds": int(w.EstimatedWait.Seconds()),
				},
			))
			continue
		}

		if existed && w.Position != prev.Position {
			events = append(events, models.NewNotificationEvent(
				w.UserID, resourceID, models.KindPositionChanged, models.LevelInfo,
				map[string]any{
					"position":               w.Position,
					"previous_position":      prev.Position,
					"estimated_wait_seconds": int(w.EstimatedWait.Seconds()),
				},
			))
		}
	}

	return events
}

// OnLeaseMutated compares two lease views of the same resource. The
// queue snapshot is the state after the mutation, used to address
// extension notices. expired marks a forced expiry as opposed to a
// voluntary release.
func (d *NotificationDispatcher) OnLeaseMutated(resourceID string, before, after *models.LeaseView, queue models.QueueSnapshot, expired bool) []models.NotificationEvent {
	var events []models.NotificationEvent

	// Extension: end time moved forward on the same lease.
	if before != nil && after != nil && before.ID == after.ID && after.EndsAt.After(before.EndsAt) {
		extendedBy := after.EndsAt.Sub(before.EndsAt)
		for _, w := range queue {
			events = append(events, models.NewNotificationEvent(
				w.UserID, resourceID, models.KindTimeExtended, models.LevelInfo,
				map[string]any{
					"extended_by_seconds":    int(extendedBy.Seconds()),
					"position":               w.Position,
					"estimated_wait_seconds": int(w.EstimatedWait.Seconds()),
				},
			))
		}
	}

	// Expiry warnings: remaining time crossed a threshold between the
	// two observations of the same lease.
	if before != nil && after != nil && before.ID == after.ID {
		events = append(events, d.thresholdCrossings(resourceID, before, after)...)
	}

	// Forced expiry of the previous holder.
	if expired && before != nil && (after == nil || after.ID != before.ID) {
		events = append(events, models.NewNotificationEvent(
			before.UserID, resourceID, models.KindLeaseExpired, models.LevelCritical,
			map[string]any{"lease_id": before.ID},
		))
	}

	// Promotion hand-off to a new holder.
	if before != nil && after != nil && after.ID != before.ID {
		events = append(events, models.NewNotificationEvent(
			after.UserID, resourceID, models.KindLeaseAssigned, models.LevelInfo,
			map[string]any{
				"lease_id":          after.ID,
				"ends_at":           after.EndsAt.Format(time.RFC3339),
				"remaining_seconds": int(after.Remaining.Seconds()),
			},
		))
	}

	return events
}

func (d *NotificationDispatcher) thresholdCrossings(resourceID string, before, after *models.LeaseView) []models.NotificationEvent {
	var events []models.NotificationEvent

	crossings := []struct {
		threshold time.Duration
		level     models.NotificationLevel
	}{
		{d.cfg.WarningThreshold, models.LevelWarning},
		{d.cfg.CriticalThreshold, models.LevelCritical},
	}

	for _, c := range crossings {
		if c.threshold <= 0 {
			continue
		}
		if before.Remaining > c.threshold && after.Remaining <= c.threshold && after.Remaining > 0 {
			events = append(events, models.NewNotificationEvent(
				after.UserID, resourceID, models.KindExpiringSoon, c.level,
				map[string]any{
					"remaining_seconds": int(after.Remaining.Seconds()),
					"threshold_seconds": int(c.threshold.Seconds()),
				},
			))
		}
	}

	return events
}
