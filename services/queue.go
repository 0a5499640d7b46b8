package services

import (
	"reservation-system/models"
	"reservation-system/status"
)

// ReservationQueue holds the authoritative waiter order for one resource.
// Elevated-tier waiters sit ahead of all default-tier waiters but behind
// elevated waiters already queued; within a tier the order is strict FIFO
// by sequence number. Positions are 1-indexed and contiguous.
//
// The queue is not safe for concurrent use; the engine serializes access
// through the per-resource lock.
type ReservationQueue struct {
	waiters []*models.Waiter
}

func (q *ReservationQueue) Len() int {
	return len(q.waiters)
}

// Waiter returns the live entry for a user, or nil.
func (q *ReservationQueue) Waiter(userID string) *models.Waiter {
	for _, w := range q.waiters {
		if w.UserID == userID {
			return w
		}
	}
	return nil
}

// Enqueue inserts the waiter at its tier boundary and renumbers the
// queue. Returns the assigned 1-indexed position.
func (q *ReservationQueue) Enqueue(w *models.Waiter) (int, error) {
	if q.Waiter(w.UserID) != nil {
		return 0, status.ErrAlreadyQueuedOrActive
	}

	idx := len(q.waiters)
	for i, existing := range q.waiters {
		if existing.Tier < w.Tier {
			idx = i
			break
		}
	}

	q.waiters = append(q.waiters, nil)
	copy(q.waiters[idx+1:], q.waiters[idx:])
	q.waiters[idx] = w

	q.renumber()
	return w.Position, nil
}

// Dequeue removes a user's waiter and renumbers everyone behind it.
func (q *ReservationQueue) Dequeue(userID string) (*models.Waiter, error) {
	for i, w := range q.waiters {
		if w.UserID == userID {
			q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
			q.renumber()
			return w, nil
		}
	}
	return nil, status.ErrNotInQueue
}

// PromoteHead removes and returns the head waiter, or nil when empty.
func (q *ReservationQueue) PromoteHead() *models.Waiter {
	if len(q.waiters) == 0 {
		return nil
	}
	head := q.waiters[0]
	q.waiters = q.waiters[1:]
	q.renumber()
	return head
}

// Entries exposes the live waiter entries in authoritative order for
// in-place recomputation. Callers must hold the resource lock.
func (q *ReservationQueue) Entries() []*models.Waiter {
	return q.waiters
}

// Snapshot returns a value copy of the queue in authoritative order.
func (q *ReservationQueue) Snapshot() models.QueueSnapshot {
	snap := make(models.QueueSnapshot, len(q.waiters))
	for i, w := range q.waiters {
		snap[i] = *w
	}
	return snap
}

// Restore replaces the queue contents, used when rebuilding state from
// the store on startup.
func (q *ReservationQueue) Restore(waiters []models.Waiter) {
	q.waiters = q.waiters[:0]
	for i := range waiters {
		w := waiters[i]
		q.waiters = append(q.waiters, &w)
	}
	q.renumber()
}

func (q *ReservationQueue) renumber() {
	for i, w := range q.waiters {
		w.Position = i + 1
	}
}
