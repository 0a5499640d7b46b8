package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"reservation-system/config"
	"reservation-system/models"
	"reservation-system/monitoring"
	"reservation-system/status"
	"reservation-system/store"
)

// ExpiryScheduler hands lease deadlines to an external scheduler, which
// calls back into Expire / ExpiryCheck. Triggers may arrive late or more
// than once; both engine hooks tolerate that.
type ExpiryScheduler interface {
	ScheduleExpiry(resourceID, leaseID string, at time.Time) error
	ScheduleExpiryCheck(resourceID, leaseID string, at time.Time) error
}

// JoinResult reports the outcome of a join: either an immediately created
// lease (idle resource, empty queue) or a queued waiter with position and
// estimate.
type JoinResult struct {
	Lease  *models.Lease  `json:"lease,omitempty"`
	Waiter *models.Waiter `json:"waiter,omitempty"`
}

// ResourceOverview is a read-only view of one resource for dashboards.
type ResourceOverview struct {
	Resource *models.Resource     `json:"resource"`
	Lease    *models.LeaseView    `json:"lease,omitempty"`
	Queue    models.QueueSnapshot `json:"queue"`
}

// resourceState is one resource's consistency domain: its lease, queue,
// session history and the remaining time observed at the last mutation.
// mu serializes every engine operation on the resource.
type resourceState struct {
	mu                sync.Mutex
	queue             ReservationQueue
	lease             *models.Lease
	class             models.ResourceClass
	observedRemaining time.Duration
	history           []time.Duration
}

// QueueEngine is the single entry point for join/leave/extend/release
// and the scheduler-driven expire hooks. Operations on a resource run
// under that resource's lock; different resources proceed in parallel.
// State is persisted synchronously before an operation acknowledges;
// notification delivery happens asynchronously after the lock releases.
type QueueEngine struct {
	cfg         *config.Config
	inv         Inventory
	store       store.Store
	estimator   *WaitEstimator
	coordinator *ExtensionCoordinator
	dispatcher  *NotificationDispatcher
	scheduler   ExpiryScheduler
	sink        Sink

	mu     sync.RWMutex
	states map[string]*resourceState

	seq uint64

	events   chan models.NotificationEvent
	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewQueueEngine(cfg *config.Config, inv Inventory, st store.Store, scheduler ExpiryScheduler, sink Sink) *QueueEngine {
	estimator := NewWaitEstimator(cfg)

	e := &QueueEngine{
		cfg:         cfg,
		inv:         inv,
		store:       st,
		estimator:   estimator,
		coordinator: NewExtensionCoordinator(cfg, estimator),
		dispatcher:  NewNotificationDispatcher(cfg),
		scheduler:   scheduler,
		sink:        sink,
		states:      make(map[string]*resourceState),
		events:      make(chan models.NotificationEvent, 256),
		stopChan:    make(chan struct{}),
	}

	e.wg.Add(1)
	go e.deliveryWorker()

	return e
}

// Join reserves the resource directly when it is idle with an empty
// queue; otherwise the user is enqueued with a position and an estimate.
func (e *QueueEngine) Join(ctx context.Context, userID, resourceID string, tier models.PriorityTier, requested time.Duration) (*JoinResult, error) {
	res, err := e.inv.Resource(ctx, resourceID)
	if err != nil {
		return nil, status.ErrResourceNotFound
	}
	if !res.Reservable() {
		return nil, status.ErrResourceUnavailable
	}

	st := e.state(resourceID)
	st.mu.Lock()
	st.class = res.Class
	now := time.Now()

	// Idle resource, nobody waiting: lease immediately, no queueing.
	if st.lease == nil && st.queue.Len() == 0 {
		lease := e.newLease(st, resourceID, userID, requested, now)
		if err := e.store.SaveLease(ctx, lease); err != nil {
			st.mu.Unlock()
			return nil, fmt.Errorf("persist lease: %w", err)
		}
		st.lease = lease
		st.observedRemaining = lease.Remaining(now)
		leaseCopy := *lease
		st.mu.Unlock()

		monitoring.LeaseStarted()
		monitoring.TrackOperation("join", resourceID, "leased")
		e.scheduleLease(&leaseCopy)
		return &JoinResult{Lease: &leaseCopy}, nil
	}

	if st.lease != nil && st.lease.UserID == userID {
		st.mu.Unlock()
		return nil, status.ErrAlreadyQueuedOrActive
	}

	before := st.queue.Snapshot()
	w := &models.Waiter{
		UserID:            userID,
		ResourceID:        resourceID,
		JoinedAt:          now,
		Seq:               atomic.AddUint64(&e.seq, 1),
		Tier:              tier,
		RequestedDuration: requested,
	}
	if _, err := st.queue.Enqueue(w); err != nil {
		st.mu.Unlock()
		return nil, err
	}
	e.recompute(st, now)
	after := st.queue.Snapshot()

	if err := e.store.SaveQueue(ctx, resourceID, after); err != nil {
		st.queue.Restore(before)
		st.mu.Unlock()
		return nil, fmt.Errorf("persist queue: %w", err)
	}
	joined := *w
	st.mu.Unlock()

	monitoring.TrackOperation("join", resourceID, "queued")
	monitoring.SetQueueLength(resourceID, len(after))
	e.dispatch(e.dispatcher.OnQueueMutated(resourceID, before, after))
	return &JoinResult{Waiter: &joined}, nil
}

// Leave removes the caller's waiter slot.
func (e *QueueEngine) Leave(ctx context.Context, userID, resourceID string) error {
	st := e.state(resourceID)
	st.mu.Lock()

	before := st.queue.Snapshot()
	if _, err := st.queue.Dequeue(userID); err != nil {
		st.mu.Unlock()
		return err
	}
	now := time.Now()
	e.recompute(st, now)
	after := st.queue.Snapshot()

	if err := e.store.SaveQueue(ctx, resourceID, after); err != nil {
		st.queue.Restore(before)
		st.mu.Unlock()
		return fmt.Errorf("persist queue: %w", err)
	}
	if st.lease == nil && st.queue.Len() == 0 {
		_ = e.store.Deactivate(ctx, resourceID)
	}
	st.mu.Unlock()

	monitoring.TrackOperation("leave", resourceID, "ok")
	monitoring.SetQueueLength(resourceID, len(after))
	e.dispatch(e.dispatcher.OnQueueMutated(resourceID, before, after))
	return nil
}

// Release ends the caller's lease and promotes the head waiter, if any.
func (e *QueueEngine) Release(ctx context.Context, userID, resourceID string) error {
	st := e.state(resourceID)
	st.mu.Lock()
	if st.lease == nil || st.lease.UserID != userID {
		st.mu.Unlock()
		return status.ErrNotActiveHolder
	}
	return e.finishLease(ctx, st, resourceID, false)
}

// Expire is the idempotent hook for the scheduler. Calling it on an
// already-released or since-extended lease is a no-op: races between an
// extension and a scheduled expiry callback are expected.
func (e *QueueEngine) Expire(ctx context.Context, resourceID, leaseID string) error {
	st := e.state(resourceID)
	st.mu.Lock()
	now := time.Now()
	if st.lease == nil || (leaseID != "" && st.lease.ID != leaseID) || st.lease.EndsAt.After(now) {
		st.mu.Unlock()
		return nil
	}
	return e.finishLease(ctx, st, resourceID, true)
}

// Extend delegates to the ExtensionCoordinator and persists the result.
func (e *QueueEngine) Extend(ctx context.Context, userID, resourceID string, additional time.Duration) (time.Time, error) {
	st := e.state(resourceID)
	st.mu.Lock()
	now := time.Now()

	beforeLease := st.lease.ViewWithRemaining(st.observedRemaining)
	typical := e.estimator.TypicalSession(st.class, st.history)

	var prev models.Lease
	if st.lease != nil {
		prev = *st.lease
	}

	newEnd, err := e.coordinator.Extend(st.lease, userID, additional, st.queue.Entries(), typical, now)
	if err != nil {
		st.mu.Unlock()
		monitoring.TrackOperation("extend", resourceID, "rejected")
		return time.Time{}, err
	}

	afterQueue := st.queue.Snapshot()
	if err := e.store.SaveLease(ctx, st.lease); err != nil {
		*st.lease = prev
		e.recompute(st, now)
		st.mu.Unlock()
		return time.Time{}, fmt.Errorf("persist lease: %w", err)
	}
	if err := e.store.SaveQueue(ctx, resourceID, afterQueue); err != nil {
		*st.lease = prev
		e.recompute(st, now)
		_ = e.store.SaveLease(ctx, st.lease)
		st.mu.Unlock()
		return time.Time{}, fmt.Errorf("persist queue: %w", err)
	}

	st.observedRemaining = st.lease.Remaining(now)
	afterLease := st.lease.View(now)
	leaseCopy := *st.lease
	st.mu.Unlock()

	monitoring.TrackOperation("extend", resourceID, "ok")
	e.dispatch(e.dispatcher.OnLeaseMutated(resourceID, beforeLease, afterLease, afterQueue, false))
	e.scheduleLease(&leaseCopy)
	return newEnd, nil
}

// ExpiryCheck re-observes the remaining lease time so the dispatcher can
// detect threshold crossings. Fired by the scheduler at each configured
// warning offset; duplicate or late firings are harmless.
func (e *QueueEngine) ExpiryCheck(ctx context.Context, resourceID string) error {
	st := e.state(resourceID)
	st.mu.Lock()
	if st.lease == nil {
		st.mu.Unlock()
		return nil
	}
	now := time.Now()
	if st.lease.Expired(now) {
		// The expiry task was lost or is late; run the cascade here.
		return e.finishLease(ctx, st, resourceID, true)
	}

	before := st.lease.ViewWithRemaining(st.observedRemaining)
	after := st.lease.View(now)
	st.observedRemaining = after.Remaining
	queue := st.queue.Snapshot()
	st.mu.Unlock()

	e.dispatch(e.dispatcher.OnLeaseMutated(resourceID, before, after, queue, false))
	return nil
}

// Position returns the caller's current waiter entry. Estimates are
// precomputed on mutation, so this is a plain read.
func (e *QueueEngine) Position(resourceID, userID string) (models.Waiter, error) {
	st := e.state(resourceID)
	st.mu.Lock()
	defer st.mu.Unlock()

	w := st.queue.Waiter(userID)
	if w == nil {
		return models.Waiter{}, status.ErrNotInQueue
	}
	return *w, nil
}

// Holder returns a view of the active lease, or nil.
func (e *QueueEngine) Holder(resourceID string) *models.LeaseView {
	st := e.state(resourceID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.lease.View(time.Now())
}

// Overview assembles a dashboard snapshot across the inventory.
func (e *QueueEngine) Overview(ctx context.Context) ([]ResourceOverview, error) {
	resources, err := e.inv.Resources(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	overviews := make([]ResourceOverview, 0, len(resources))
	for _, res := range resources {
		st := e.state(res.ID)
		st.mu.Lock()
		overviews = append(overviews, ResourceOverview{
			Resource: res,
			Lease:    st.lease.View(now),
			Queue:    st.queue.Snapshot(),
		})
		st.mu.Unlock()
	}
	return overviews, nil
}

// RemoveWaiter is the admin variant of Leave, acting on another user.
func (e *QueueEngine) RemoveWaiter(ctx context.Context, resourceID, userID string) error {
	return e.Leave(ctx, userID, resourceID)
}

// Restore rebuilds in-memory state from the store after a restart and
// reschedules expiry triggers for surviving leases.
func (e *QueueEngine) Restore(ctx context.Context) error {
	ids, err := e.store.ActiveResources(ctx)
	if err != nil {
		return err
	}

	log.Printf("Restoring reservation state for %d resources", len(ids))

	now := time.Now()
	for _, id := range ids {
		lease, waiters, history, err := e.store.ResourceState(ctx, id)
		if err != nil {
			log.Printf("Error restoring resource %s: %v", id, err)
			continue
		}

		st := e.state(id)
		st.mu.Lock()
		st.lease = lease
		st.queue.Restore(waiters)
		st.history = history
		if res, rerr := e.inv.Resource(ctx, id); rerr == nil {
			st.class = res.Class
		}
		for _, w := range waiters {
			if w.Seq >= atomic.LoadUint64(&e.seq) {
				atomic.StoreUint64(&e.seq, w.Seq+1)
			}
		}
		if lease != nil {
			st.observedRemaining = lease.Remaining(now)
		}
		e.recompute(st, now)
		queueLen := st.queue.Len()
		st.mu.Unlock()

		monitoring.SetQueueLength(id, queueLen)

		if lease != nil {
			if lease.Expired(now) {
				if err := e.Expire(ctx, id, lease.ID); err != nil {
					log.Printf("Error expiring stale lease on %s: %v", id, err)
				}
			} else {
				monitoring.LeaseStarted()
				leaseCopy := *lease
				e.scheduleLease(&leaseCopy)
			}
		}
	}

	log.Println("Reservation state restore completed")
	return nil
}

// Shutdown drains the delivery worker. Pending notifications are
// delivered before returning, bounded by a timeout.
func (e *QueueEngine) Shutdown() {
	e.stopOnce.Do(func() {
		close(e.stopChan)
	})

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Queue engine stopped")
	case <-time.After(30 * time.Second):
		log.Println("Timeout waiting for queue engine shutdown")
	}
}

// finishLease ends the current lease, promotes the head waiter and
// persists the result. Called with st.mu held; releases it.
func (e *QueueEngine) finishLease(ctx context.Context, st *resourceState, resourceID string, expired bool) error {
	now := time.Now()
	old := st.lease
	beforeLease := old.ViewWithRemaining(st.observedRemaining)
	beforeQueue := st.queue.Snapshot()
	sessionLength := now.Sub(old.StartedAt)

	var promoted *models.Lease
	if head := st.queue.PromoteHead(); head != nil {
		promoted = e.newLease(st, resourceID, head.UserID, head.RequestedDuration, now)
	}

	prevLease := st.lease
	st.lease = promoted
	e.recompute(st, now)
	afterQueue := st.queue.Snapshot()

	if err := e.store.SaveQueue(ctx, resourceID, afterQueue); err != nil {
		st.lease = prevLease
		st.queue.Restore(beforeQueue)
		st.mu.Unlock()
		return fmt.Errorf("persist queue: %w", err)
	}

	var perr error
	if promoted != nil {
		perr = e.store.SaveLease(ctx, promoted)
	} else {
		perr = e.store.DeleteLease(ctx, resourceID)
	}
	if perr != nil {
		st.lease = prevLease
		st.queue.Restore(beforeQueue)
		_ = e.store.SaveQueue(ctx, resourceID, beforeQueue)
		st.mu.Unlock()
		return fmt.Errorf("persist lease: %w", perr)
	}

	st.history = append(st.history, sessionLength)
	if len(st.history) > e.cfg.HistoryWindow {
		st.history = st.history[len(st.history)-e.cfg.HistoryWindow:]
	}
	if promoted != nil {
		st.observedRemaining = promoted.Remaining(now)
	} else {
		st.observedRemaining = 0
		if st.queue.Len() == 0 {
			_ = e.store.Deactivate(ctx, resourceID)
		}
	}
	afterLease := st.lease.View(now)
	var promotedCopy *models.Lease
	if promoted != nil {
		c := *promoted
		promotedCopy = &c
	}
	st.mu.Unlock()

	_ = e.store.RecordSession(ctx, resourceID, sessionLength, e.cfg.HistoryWindow)

	op := "release"
	if expired {
		op = "expire"
	}
	monitoring.TrackOperation(op, resourceID, "ok")
	monitoring.TrackSession(resourceID, sessionLength.Seconds())
	monitoring.SetQueueLength(resourceID, len(afterQueue))
	if promoted == nil {
		monitoring.LeaseEnded()
	}

	events := e.dispatcher.OnLeaseMutated(resourceID, beforeLease, afterLease, afterQueue, expired)
	events = append(events, e.dispatcher.OnQueueMutated(resourceID, beforeQueue, afterQueue)...)
	e.dispatch(events)

	if promotedCopy != nil {
		e.scheduleLease(promotedCopy)
	}
	return nil
}

func (e *QueueEngine) newLease(st *resourceState, resourceID, userID string, requested time.Duration, now time.Time) *models.Lease {
	dur := requested
	if dur <= 0 {
		dur = e.estimator.TypicalSession(st.class, st.history)
	}
	if dur > e.cfg.MaxSessionLength {
		dur = e.cfg.MaxSessionLength
	}
	return &models.Lease{
		ID:         uuid.New().String(),
		ResourceID: resourceID,
		UserID:     userID,
		StartedAt:  now,
		EndsAt:     now.Add(dur),
	}
}

func (e *QueueEngine) recompute(st *resourceState, now time.Time) {
	typical := e.estimator.TypicalSession(st.class, st.history)
	e.estimator.Recompute(st.lease, st.queue.Entries(), typical, now)
}

func (e *QueueEngine) state(resourceID string) *resourceState {
	e.mu.RLock()
	st, ok := e.states[resourceID]
	e.mu.RUnlock()
	if ok {
		return st
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok := e.states[resourceID]; ok {
		return st
	}
	st = &resourceState{}
	e.states[resourceID] = st
	return st
}

func (e *QueueEngine) scheduleLease(lease *models.Lease) {
	if e.scheduler == nil {
		return
	}
	if err := e.scheduler.ScheduleExpiry(lease.ResourceID, lease.ID, lease.EndsAt); err != nil {
		log.Printf("Error scheduling expiry for %s: %v", lease.ResourceID, err)
	}
	now := time.Now()
	for _, threshold := range []time.Duration{e.cfg.WarningThreshold, e.cfg.CriticalThreshold} {
		if threshold <= 0 {
			continue
		}
		at := lease.EndsAt.Add(-threshold)
		if !at.After(now) {
			continue
		}
		if err := e.scheduler.ScheduleExpiryCheck(lease.ResourceID, lease.ID, at); err != nil {
			log.Printf("Error scheduling expiry check for %s: %v", lease.ResourceID, err)
		}
	}
}

func (e *QueueEngine) dispatch(events []models.NotificationEvent) {
	for _, ev := range events {
		select {
		case e.events <- ev:
		case <-e.stopChan:
			return
		}
	}
}

func (e *QueueEngine) deliveryWorker() {
	defer e.wg.Done()

	deliver := func(ev models.NotificationEvent) {
		if err := e.sink.Deliver(ev); err != nil {
			log.Printf("Error delivering %s to %s: %v", ev.Kind, ev.UserID, err)
		}
		monitoring.TrackNotification(ev.Kind, string(ev.Level))
	}

	for {
		select {
		case ev := <-e.events:
			deliver(ev)
		case <-e.stopChan:
			for {
				select {
				case ev := <-e.events:
					deliver(ev)
				default:
					return
				}
			}
		}
	}
}
