package services

import (
	"time"

	"reservation-system/config"
	"reservation-system/models"
	"reservation-system/status"
)

// ExtensionCoordinator applies a time extension to the active lease and
// re-synchronizes every waiter's estimate in the same critical section,
// so no reader ever observes the extension without the refreshed
// estimates.
type ExtensionCoordinator struct {
	cfg       *config.Config
	estimator *WaitEstimator
}

func NewExtensionCoordinator(cfg *config.Config, estimator *WaitEstimator) *ExtensionCoordinator {
	return &ExtensionCoordinator{cfg: cfg, estimator: estimator}
}

// Extend validates and applies an extension on behalf of userID. The
// caller holds the resource lock. Returns the new end time.
func (c *ExtensionCoordinator) Extend(lease *models.Lease, userID string, additional time.Duration, waiters []*models.Waiter, typical time.Duration, now time.Time) (time.Time, error) {
	if lease == nil || lease.UserID != userID {
		return time.Time{}, status.ErrNotActiveHolder
	}
	if additional <= 0 {
		additional = c.cfg.DefaultExtension
	}

	if lease.Extensions >= c.cfg.MaxExtensions {
		return time.Time{}, status.ErrExtensionLimitExceeded
	}
	newEnd := lease.EndsAt.Add(additional)
	if newEnd.Sub(lease.StartedAt) > c.cfg.MaxSessionLength {
		return time.Time{}, status.ErrExtensionLimitExceeded
	}

	lease.EndsAt = newEnd
	lease.Extensions++

	c.estimator.Recompute(lease, waiters, typical, now)
	return newEnd, nil
}
