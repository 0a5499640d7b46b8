package services

import (
	"time"

	"reservation-system/config"
	"reservation-system/models"
)

// WaitEstimator derives the expected start time for every queued waiter.
// A waiter's estimate is the remaining time on the current lease plus the
// session durations of everyone ahead: a waiter contributes its requested
// duration when it asked for one, otherwise the resource's typical
// session duration.
type WaitEstimator struct {
	cfg *config.Config
}

func NewWaitEstimator(cfg *config.Config) *WaitEstimator {
	return &WaitEstimator{cfg: cfg}
}

// TypicalSession returns the rolling average of recent completed leases
// once enough samples exist, otherwise the configured class default.
func (e *WaitEstimator) TypicalSession(class models.ResourceClass, history []time.Duration) time.Duration {
	if len(history) > 0 && len(history) >= e.cfg.HistoryMinSamples {
		var total time.Duration
		for _, d := range history {
			total += d
		}
		return total / time.Duration(len(history))
	}
	return e.cfg.SessionDuration(string(class))
}

// Recompute refreshes position and estimate of every waiter in one pass.
// It runs inside the resource's critical section on every queue or lease
// mutation, never lazily per-read, so dispatcher comparisons always see
// consistent before/after snapshots.
func (e *WaitEstimator) Recompute(lease *models.Lease, waiters []*models.Waiter, typical time.Duration, now time.Time) {
	acc := lease.Remaining(now)
	for i, w := range waiters {
		w.Position = i + 1
		w.EstimatedWait = acc
		acc += e.sessionLength(w, typical)
	}
}

func (e *WaitEstimator) sessionLength(w *models.Waiter, typical time.Duration) time.Duration {
	if w.RequestedDuration > 0 {
		return w.RequestedDuration
	}
	return typical
}
