package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reservation-system/config"
	"reservation-system/models"
	"reservation-system/status"
)

type fakeInventory struct {
	resources map[string]*models.Resource
}

func (f *fakeInventory) Resource(ctx context.Context, id string) (*models.Resource, error) {
	res, ok := f.resources[id]
	if !ok {
		return nil, errors.New("no rows")
	}
	return res, nil
}

func (f *fakeInventory) Resources(ctx context.Context) ([]*models.Resource, error) {
	out := make([]*models.Resource, 0, len(f.resources))
	for _, res := range f.resources {
		out = append(out, res)
	}
	return out, nil
}

type memStore struct {
	mu            sync.Mutex
	leases        map[string]*models.Lease
	queues        map[string]models.QueueSnapshot
	histories     map[string][]time.Duration
	failSaveQueue bool
}

func newMemStore() *memStore {
	return &memStore{
		leases:    map[string]*models.Lease{},
		queues:    map[string]models.QueueSnapshot{},
		histories: map[string][]time.Duration{},
	}
}

func (s *memStore) SaveLease(ctx context.Context, lease *models.Lease) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *lease
	s.leases[lease.ResourceID] = &c
	return nil
}

func (s *memStore) DeleteLease(ctx context.Context, resourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.leases, resourceID)
	return nil
}

func (s *memStore) SaveQueue(ctx context.Context, resourceID string, waiters models.QueueSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSaveQueue {
		return errors.New("redis: connection refused")
	}
	s.queues[resourceID] = append(models.QueueSnapshot{}, waiters...)
	return nil
}

func (s *memStore) RecordSession(ctx context.Context, resourceID string, d time.Duration, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories[resourceID] = append(s.histories[resourceID], d)
	return nil
}

func (s *memStore) ResourceState(ctx context.Context, resourceID string) (*models.Lease, models.QueueSnapshot, []time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leases[resourceID], s.queues[resourceID], s.histories[resourceID], nil
}

func (s *memStore) ActiveResources(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	for id := range s.leases {
		seen[id] = true
	}
	for id := range s.queues {
		if len(s.queues[id]) > 0 {
			seen[id] = true
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out, nil
}

func (s *memStore) Deactivate(ctx context.Context, resourceID string) error {
	return nil
}

type fakeScheduler struct {
	mu      sync.Mutex
	expires []string
	checks  []string
}

func (f *fakeScheduler) ScheduleExpiry(resourceID, leaseID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expires = append(f.expires, leaseID)
	return nil
}

func (f *fakeScheduler) ScheduleExpiryCheck(resourceID, leaseID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks = append(f.checks, leaseID)
	return nil
}

type collectingSink struct {
	mu     sync.Mutex
	events []models.NotificationEvent
}

func (s *collectingSink) Deliver(event models.NotificationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *collectingSink) byKind(kind string) []models.NotificationEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.NotificationEvent
	for _, ev := range s.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func (s *collectingSink) waitFor(t *testing.T, kind string, count int) []models.NotificationEvent {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(s.byKind(kind)) >= count
	}, time.Second, 5*time.Millisecond, "expected %d %s events", count, kind)
	return s.byKind(kind)
}

func newTestEngine(t *testing.T) (*QueueEngine, *memStore, *fakeScheduler, *collectingSink) {
	t.Helper()
	return newTestEngineWith(t, testConfig())
}

func newTestEngineWith(t *testing.T, cfg *config.Config) (*QueueEngine, *memStore, *fakeScheduler, *collectingSink) {
	t.Helper()

	inv := &fakeInventory{resources: map[string]*models.Resource{
		"pc-01": {ID: "pc-01", Name: "lab-pc-01", Class: models.ClassLinux, Status: models.StatusAvailable},
		"pc-02": {ID: "pc-02", Name: "lab-pc-02", Class: models.ClassWindows, Status: models.StatusAvailable},
		"pc-mx": {ID: "pc-mx", Name: "lab-pc-mx", Class: models.ClassLinux, Status: models.StatusMaintenance},
	}}
	st := newMemStore()
	sched := &fakeScheduler{}
	sink := &collectingSink{}

	engine := NewQueueEngine(cfg, inv, st, sched, sink)
	t.Cleanup(engine.Shutdown)
	return engine, st, sched, sink
}

func TestJoinIdleResourceLeasesDirectly(t *testing.T) {
	engine, st, sched, _ := newTestEngine(t)
	ctx := context.Background()

	result, err := engine.Join(ctx, "alice", "pc-01", models.TierDefault, 0)
	require.NoError(t, err)
	require.NotNil(t, result.Lease)
	assert.Nil(t, result.Waiter)

	// Typical session for linux defaults to one hour.
	assert.WithinDuration(t, time.Now().Add(time.Hour), result.Lease.EndsAt, time.Second)

	st.mu.Lock()
	saved := st.leases["pc-01"]
	st.mu.Unlock()
	require.NotNil(t, saved)
	assert.Equal(t, "alice", saved.UserID)

	sched.mu.Lock()
	defer sched.mu.Unlock()
	assert.Contains(t, sched.expires, result.Lease.ID)
}

func TestJoinUnknownOrUnavailableResource(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Join(ctx, "alice", "pc-99", models.TierDefault, 0)
	assert.ErrorIs(t, err, status.ErrResourceNotFound)

	_, err = engine.Join(ctx, "alice", "pc-mx", models.TierDefault, 0)
	assert.ErrorIs(t, err, status.ErrResourceUnavailable)
}

func TestJoinOccupiedResourceQueues(t *testing.T) {
	engine, _, _, sink := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Join(ctx, "holder", "pc-01", models.TierDefault, 0)
	require.NoError(t, err)

	result, err := engine.Join(ctx, "alice", "pc-01", models.TierDefault, 0)
	require.NoError(t, err)
	require.NotNil(t, result.Waiter)
	assert.Equal(t, 1, result.Waiter.Position)
	// Estimate equals the holder's remaining hour, within clock skew.
	assert.InDelta(t, time.Hour.Seconds(), result.Waiter.EstimatedWait.Seconds(), 2)

	sink.waitFor(t, models.KindYouAreNext, 1)

	// The holder cannot also queue.
	_, err = engine.Join(ctx, "holder", "pc-01", models.TierDefault, 0)
	assert.ErrorIs(t, err, status.ErrAlreadyQueuedOrActive)
}

func TestElevatedJoinLandsAheadOfDefaults(t *testing.T) {
	engine, _, _, sink := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Join(ctx, "holder", "pc-01", models.TierDefault, 0)
	require.NoError(t, err)
	_, err = engine.Join(ctx, "alice", "pc-01", models.TierDefault, 0)
	require.NoError(t, err)
	_, err = engine.Join(ctx, "bob", "pc-01", models.TierDefault, 0)
	require.NoError(t, err)

	result, err := engine.Join(ctx, "carol", "pc-01", models.TierElevated, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Waiter.Position)

	alice, err := engine.Position("pc-01", "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, alice.Position)

	bob, err := engine.Position("pc-01", "bob")
	require.NoError(t, err)
	assert.Equal(t, 3, bob.Position)

	// Carol took the front, nobody else improved: one you_are_next for
	// carol from this mutation and one for alice from her own join.
	events := sink.waitFor(t, models.KindYouAreNext, 2)
	assert.Equal(t, "carol", events[1].UserID)
}

func TestLeaveRenumbersAndNotifies(t *testing.T) {
	engine, st, _, sink := newTestEngine(t)
	ctx := context.Background()

	engine.Join(ctx, "holder", "pc-01", models.TierDefault, 0)
	engine.Join(ctx, "alice", "pc-01", models.TierDefault, 0)
	engine.Join(ctx, "bob", "pc-01", models.TierDefault, 0)

	require.NoError(t, engine.Leave(ctx, "alice", "pc-01"))

	bob, err := engine.Position("pc-01", "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, bob.Position)

	_, err = engine.Position("pc-01", "alice")
	assert.ErrorIs(t, err, status.ErrNotInQueue)

	events := sink.waitFor(t, models.KindYouAreNext, 2)
	assert.Equal(t, "bob", events[1].UserID)

	st.mu.Lock()
	saved := st.queues["pc-01"]
	st.mu.Unlock()
	require.Len(t, saved, 1)
	assert.Equal(t, "bob", saved[0].UserID)

	assert.ErrorIs(t, engine.Leave(ctx, "ghost", "pc-01"), status.ErrNotInQueue)
}

func TestExtendPropagatesToWaiters(t *testing.T) {
	engine, _, _, sink := newTestEngine(t)
	ctx := context.Background()

	join, err := engine.Join(ctx, "holder", "pc-01", models.TierDefault, 0)
	require.NoError(t, err)
	engine.Join(ctx, "alice", "pc-01", models.TierDefault, 0)
	engine.Join(ctx, "bob", "pc-01", models.TierDefault, 0)

	before, err := engine.Position("pc-01", "alice")
	require.NoError(t, err)

	newEnd, err := engine.Extend(ctx, "holder", "pc-01", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, join.Lease.EndsAt.Add(10*time.Minute), newEnd)

	after, err := engine.Position("pc-01", "alice")
	require.NoError(t, err)
	assert.InDelta(t, (before.EstimatedWait + 10*time.Minute).Seconds(), after.EstimatedWait.Seconds(), 2)

	events := sink.waitFor(t, models.KindTimeExtended, 2)
	users := []string{events[0].UserID, events[1].UserID}
	assert.ElementsMatch(t, []string{"alice", "bob"}, users)
}

func TestExtendLimitLeavesStateUntouched(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	cfg := testConfig()
	join, err := engine.Join(ctx, "holder", "pc-01", models.TierDefault, 0)
	require.NoError(t, err)

	for i := 0; i < cfg.MaxExtensions; i++ {
		_, err = engine.Extend(ctx, "holder", "pc-01", 10*time.Minute)
		require.NoError(t, err)
	}

	_, err = engine.Extend(ctx, "holder", "pc-01", 10*time.Minute)
	assert.ErrorIs(t, err, status.ErrExtensionLimitExceeded)

	holder := engine.Holder("pc-01")
	require.NotNil(t, holder)
	expected := join.Lease.EndsAt.Add(time.Duration(cfg.MaxExtensions) * 10 * time.Minute)
	assert.Equal(t, expected, holder.EndsAt)

	_, err = engine.Extend(ctx, "alice", "pc-01", 10*time.Minute)
	assert.ErrorIs(t, err, status.ErrNotActiveHolder)
}

func TestReleasePromotesHead(t *testing.T) {
	engine, st, _, sink := newTestEngine(t)
	ctx := context.Background()

	engine.Join(ctx, "holder", "pc-01", models.TierDefault, 0)
	engine.Join(ctx, "alice", "pc-01", models.TierDefault, 45*time.Minute)
	engine.Join(ctx, "bob", "pc-01", models.TierDefault, 0)

	require.NoError(t, engine.Release(ctx, "holder", "pc-01"))

	holder := engine.Holder("pc-01")
	require.NotNil(t, holder)
	assert.Equal(t, "alice", holder.UserID)
	// Promoted lease runs for alice's requested 45 minutes.
	assert.WithinDuration(t, time.Now().Add(45*time.Minute), holder.EndsAt, time.Second)

	bob, err := engine.Position("pc-01", "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, bob.Position)

	events := sink.waitFor(t, models.KindLeaseAssigned, 1)
	assert.Equal(t, "alice", events[0].UserID)
	assert.Empty(t, sink.byKind(models.KindLeaseExpired))

	st.mu.Lock()
	history := st.histories["pc-01"]
	st.mu.Unlock()
	assert.Len(t, history, 1)

	assert.ErrorIs(t, engine.Release(ctx, "holder", "pc-01"), status.ErrNotActiveHolder)
}

func TestExpireIsIdempotent(t *testing.T) {
	engine, _, _, sink := newTestEngine(t)
	ctx := context.Background()

	result, err := engine.Join(ctx, "holder", "pc-01", models.TierDefault, time.Nanosecond)
	require.NoError(t, err)
	engine.Join(ctx, "alice", "pc-01", models.TierDefault, 0)

	time.Sleep(5 * time.Millisecond)

	// A trigger for a different lease generation does nothing.
	require.NoError(t, engine.Expire(ctx, "pc-01", "stale-lease-id"))
	require.NotNil(t, engine.Holder("pc-01"))

	require.NoError(t, engine.Expire(ctx, "pc-01", result.Lease.ID))

	holder := engine.Holder("pc-01")
	require.NotNil(t, holder)
	assert.Equal(t, "alice", holder.UserID)

	events := sink.waitFor(t, models.KindLeaseExpired, 1)
	assert.Equal(t, "holder", events[0].UserID)

	// Replays of the consumed trigger are no-ops.
	require.NoError(t, engine.Expire(ctx, "pc-01", result.Lease.ID))
	assert.Equal(t, "alice", engine.Holder("pc-01").UserID)
}

func TestExpiryCheckEmitsWarnings(t *testing.T) {
	engine, _, _, sink := newTestEngine(t)
	ctx := context.Background()

	// Nine minutes remaining sits below the ten minute warning mark.
	_, err := engine.Join(ctx, "holder", "pc-01", models.TierDefault, 9*time.Minute)
	require.NoError(t, err)

	require.NoError(t, engine.ExpiryCheck(ctx, "pc-01"))

	// The join recorded nine minutes as the observed remaining, so no
	// crossing happened yet.
	time.Sleep(10 * time.Millisecond)
	assert.Empty(t, sink.byKind(models.KindExpiringSoon))

	require.NoError(t, engine.ExpiryCheck(ctx, "pc-02"))
}

func TestExpiryCheckCrossingWarnsOnce(t *testing.T) {
	cfg := testConfig()
	cfg.WarningThreshold = 300 * time.Millisecond
	cfg.CriticalThreshold = time.Millisecond
	engine, _, _, sink := newTestEngineWith(t, cfg)
	ctx := context.Background()

	_, err := engine.Join(ctx, "holder", "pc-01", models.TierDefault, time.Second)
	require.NoError(t, err)

	// The join observed a full second remaining, above the warning mark.
	// Let the lease run down past it before the scheduled check fires.
	time.Sleep(800 * time.Millisecond)

	require.NoError(t, engine.ExpiryCheck(ctx, "pc-01"))

	events := sink.waitFor(t, models.KindExpiringSoon, 1)
	assert.Equal(t, "holder", events[0].UserID)
	assert.Equal(t, models.LevelWarning, events[0].Level)

	// The crossing was consumed; a duplicate check does not re-fire.
	require.NoError(t, engine.ExpiryCheck(ctx, "pc-01"))
	time.Sleep(10 * time.Millisecond)
	assert.Len(t, sink.byKind(models.KindExpiringSoon), 1)
}

func TestJoinRollsBackOnPersistFailure(t *testing.T) {
	engine, st, _, _ := newTestEngine(t)
	ctx := context.Background()

	engine.Join(ctx, "holder", "pc-01", models.TierDefault, 0)

	st.mu.Lock()
	st.failSaveQueue = true
	st.mu.Unlock()

	_, err := engine.Join(ctx, "alice", "pc-01", models.TierDefault, 0)
	require.Error(t, err)

	st.mu.Lock()
	st.failSaveQueue = false
	st.mu.Unlock()

	_, err = engine.Position("pc-01", "alice")
	assert.ErrorIs(t, err, status.ErrNotInQueue)

	// The slot is free again after the failure.
	result, err := engine.Join(ctx, "alice", "pc-01", models.TierDefault, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Waiter.Position)
}

func TestRestoreRebuildsStateAndExpiresStaleLeases(t *testing.T) {
	engine, st, sched, _ := newTestEngine(t)
	ctx := context.Background()

	now := time.Now()
	st.leases["pc-01"] = &models.Lease{
		ID:         "l-live",
		ResourceID: "pc-01",
		UserID:     "holder",
		StartedAt:  now.Add(-time.Hour),
		EndsAt:     now.Add(30 * time.Minute),
	}
	st.queues["pc-01"] = models.QueueSnapshot{
		{UserID: "alice", ResourceID: "pc-01", Seq: 7, JoinedAt: now.Add(-10 * time.Minute)},
	}
	st.leases["pc-02"] = &models.Lease{
		ID:         "l-stale",
		ResourceID: "pc-02",
		UserID:     "gone",
		StartedAt:  now.Add(-3 * time.Hour),
		EndsAt:     now.Add(-time.Hour),
	}

	require.NoError(t, engine.Restore(ctx))

	holder := engine.Holder("pc-01")
	require.NotNil(t, holder)
	assert.Equal(t, "holder", holder.UserID)

	alice, err := engine.Position("pc-01", "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, alice.Position)
	assert.InDelta(t, (30 * time.Minute).Seconds(), alice.EstimatedWait.Seconds(), 2)

	// The stale lease on pc-02 was expired during restore.
	assert.Nil(t, engine.Holder("pc-02"))

	sched.mu.Lock()
	defer sched.mu.Unlock()
	assert.Contains(t, sched.expires, "l-live")
}
