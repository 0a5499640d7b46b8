package models

import (
	"time"
)

type PriorityTier int

const (
	TierDefault PriorityTier = iota
	TierElevated
)

func (t PriorityTier) String() string {
	if t == TierElevated {
		return "elevated"
	}
	return "default"
}

// ParseTier maps a request string to a tier; anything unknown is default.
func ParseTier(s string) PriorityTier {
	if s == "elevated" {
		return TierElevated
	}
	return TierDefault
}

// Waiter is a queued user awaiting a resource. Position is 1-indexed and
// contiguous within a resource's queue. Seq is a process-wide monotonic
// counter that breaks enqueue-time ties without trusting the wall clock.
type Waiter struct {
	UserID            string        `json:"user_id"`
	ResourceID        string        `json:"resource_id"`
	JoinedAt          time.Time     `json:"joined_at"`
	Seq               uint64        `json:"seq"`
	Tier              PriorityTier  `json:"tier"`
	RequestedDuration time.Duration `json:"requested_duration"`
	Position          int           `json:"position"`
	EstimatedWait     time.Duration `json:"estimated_wait"`
}

// QueueSnapshot is a value copy of a resource's queue in authoritative
// order, captured inside the resource's critical section.
type QueueSnapshot []Waiter

// Find returns the snapshot entry for the given user.
func (s QueueSnapshot) Find(userID string) (Waiter, bool) {
	for _, w := range s {
		if w.UserID == userID {
			return w, true
		}
	}
	return Waiter{}, false
}
