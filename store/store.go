package store

import (
	"context"
	"time"

	"reservation-system/models"
)

// Store durably records the core's authoritative state. Every mutating
// engine operation writes through synchronously before reporting success,
// so a restart can rebuild leases, queue order and session history.
type Store interface {
	SaveLease(ctx context.Context, lease *models.Lease) error
	DeleteLease(ctx context.Context, resourceID string) error
	SaveQueue(ctx context.Context, resourceID string, waiters models.QueueSnapshot) error
	RecordSession(ctx context.Context, resourceID string, d time.Duration, keep int) error
	ResourceState(ctx context.Context, resourceID string) (*models.Lease, models.QueueSnapshot, []time.Duration, error)
	ActiveResources(ctx context.Context) ([]string, error)
	Deactivate(ctx context.Context, resourceID string) error
}
