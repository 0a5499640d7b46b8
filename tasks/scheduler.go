package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// Scheduler enqueues one-shot expiry and warning-check tasks keyed to a
// lease's deadline. Extending a lease simply schedules fresh tasks; the
// old ones fire against a mismatched lease state and no-op.
type Scheduler struct {
	client *asynq.Client
}

func NewScheduler(redisOpt asynq.RedisClientOpt) *Scheduler {
	return &Scheduler{client: asynq.NewClient(redisOpt)}
}

func (s *Scheduler) ScheduleExpiry(resourceID, leaseID string, at time.Time) error {
	payload, err := json.Marshal(LeaseExpirePayload{ResourceID: resourceID, LeaseID: leaseID})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TypeLeaseExpire, payload)
	_, err = s.client.Enqueue(task, asynq.ProcessAt(at), asynq.Queue("critical"))
	return err
}

func (s *Scheduler) ScheduleExpiryCheck(resourceID, leaseID string, at time.Time) error {
	payload, err := json.Marshal(ExpiryCheckPayload{ResourceID: resourceID, LeaseID: leaseID})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TypeExpiryCheck, payload)
	_, err = s.client.Enqueue(task, asynq.ProcessAt(at), asynq.Queue("default"))
	return err
}

func (s *Scheduler) Close() error {
	return s.client.Close()
}
