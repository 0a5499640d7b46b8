package models

import (
	"time"
)

// Lease is an active exclusive hold on a resource. At most one lease
// exists per resource; EndsAt only moves forward across extensions.
type Lease struct {
	ID         string    `json:"id"`
	ResourceID string    `json:"resource_id"`
	UserID     string    `json:"user_id"`
	StartedAt  time.Time `json:"started_at"`
	EndsAt     time.Time `json:"ends_at"`
	Extensions int       `json:"extensions"`
}

// Remaining returns the time left on the lease, never negative.
func (l *Lease) Remaining(now time.Time) time.Duration {
	if l == nil {
		return 0
	}
	remaining := l.EndsAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Expired reports whether the lease end time has passed.
func (l *Lease) Expired(now time.Time) bool {
	return l != nil && !l.EndsAt.After(now)
}

// LeaseView is an immutable snapshot of a lease with the remaining time
// fixed at capture, so before/after pairs can be compared without
// re-reading the clock.
type LeaseView struct {
	ID         string        `json:"id"`
	ResourceID string        `json:"resource_id"`
	UserID     string        `json:"user_id"`
	EndsAt     time.Time     `json:"ends_at"`
	Extensions int           `json:"extensions"`
	Remaining  time.Duration `json:"remaining"`
}

// View captures a snapshot of the lease as of now. Returns nil for a
// nil lease.
func (l *Lease) View(now time.Time) *LeaseView {
	if l == nil {
		return nil
	}
	return &LeaseView{
		ID:         l.ID,
		ResourceID: l.ResourceID,
		UserID:     l.UserID,
		EndsAt:     l.EndsAt,
		Extensions: l.Extensions,
		Remaining:  l.Remaining(now),
	}
}

// ViewWithRemaining captures a snapshot carrying an externally observed
// remaining time (e.g. the remaining recorded at the previous mutation).
func (l *Lease) ViewWithRemaining(remaining time.Duration) *LeaseView {
	if l == nil {
		return nil
	}
	v := l.View(l.EndsAt)
	v.Remaining = remaining
	return v
}
