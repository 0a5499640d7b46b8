package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reservation-system/models"
	"reservation-system/status"
)

func newWaiter(userID string, seq uint64, tier models.PriorityTier) *models.Waiter {
	return &models.Waiter{
		UserID:     userID,
		ResourceID: "pc-01",
		JoinedAt:   time.Now(),
		Seq:        seq,
		Tier:       tier,
	}
}

func TestEnqueueFIFOWithinTier(t *testing.T) {
	q := &ReservationQueue{}

	posA, err := q.Enqueue(newWaiter("alice", 1, models.TierDefault))
	require.NoError(t, err)
	posB, err := q.Enqueue(newWaiter("bob", 2, models.TierDefault))
	require.NoError(t, err)

	assert.Equal(t, 1, posA)
	assert.Equal(t, 2, posB)
}

func TestEnqueueElevatedAheadOfDefault(t *testing.T) {
	q := &ReservationQueue{}

	q.Enqueue(newWaiter("alice", 1, models.TierDefault))
	q.Enqueue(newWaiter("bob", 2, models.TierDefault))

	pos, err := q.Enqueue(newWaiter("carol", 3, models.TierElevated))
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	// A later elevated waiter goes behind carol but ahead of the default tier.
	pos, err = q.Enqueue(newWaiter("dave", 4, models.TierElevated))
	require.NoError(t, err)
	assert.Equal(t, 2, pos)

	snap := q.Snapshot()
	require.Len(t, snap, 4)
	assert.Equal(t, "carol", snap[0].UserID)
	assert.Equal(t, "dave", snap[1].UserID)
	assert.Equal(t, "alice", snap[2].UserID)
	assert.Equal(t, "bob", snap[3].UserID)
}

func TestEnqueueDuplicateRejected(t *testing.T) {
	q := &ReservationQueue{}

	_, err := q.Enqueue(newWaiter("alice", 1, models.TierDefault))
	require.NoError(t, err)

	_, err = q.Enqueue(newWaiter("alice", 2, models.TierElevated))
	assert.ErrorIs(t, err, status.ErrAlreadyQueuedOrActive)
	assert.Equal(t, 1, q.Len())
}

func TestDequeueRenumbersContiguously(t *testing.T) {
	q := &ReservationQueue{}
	q.Enqueue(newWaiter("alice", 1, models.TierDefault))
	q.Enqueue(newWaiter("bob", 2, models.TierDefault))
	q.Enqueue(newWaiter("carol", 3, models.TierDefault))

	removed, err := q.Dequeue("bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", removed.UserID)

	snap := q.Snapshot()
	require.Len(t, snap, 2)
	for i, w := range snap {
		assert.Equal(t, i+1, w.Position)
	}
	assert.Equal(t, "carol", snap[1].UserID)
}

func TestDequeueUnknownUser(t *testing.T) {
	q := &ReservationQueue{}
	_, err := q.Dequeue("ghost")
	assert.ErrorIs(t, err, status.ErrNotInQueue)
}

func TestPromoteHead(t *testing.T) {
	q := &ReservationQueue{}
	assert.Nil(t, q.PromoteHead())

	q.Enqueue(newWaiter("alice", 1, models.TierDefault))
	q.Enqueue(newWaiter("bob", 2, models.TierDefault))

	head := q.PromoteHead()
	require.NotNil(t, head)
	assert.Equal(t, "alice", head.UserID)
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, 1, q.Snapshot()[0].Position)
}

func TestRestoreRebuildsOrder(t *testing.T) {
	q := &ReservationQueue{}
	q.Enqueue(newWaiter("stale", 9, models.TierDefault))

	q.Restore(models.QueueSnapshot{
		*newWaiter("carol", 3, models.TierElevated),
		*newWaiter("alice", 1, models.TierDefault),
		*newWaiter("bob", 2, models.TierDefault),
	})

	snap := q.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "carol", snap[0].UserID)
	assert.Equal(t, 1, snap[0].Position)
	assert.Equal(t, 3, snap[2].Position)
}
