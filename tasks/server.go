package tasks

import (
	"context"
	"encoding/json"
	"log"

	"github.com/hibiken/asynq"

	"reservation-system/services"
)

// StartServer runs the asynq worker that drives lease expiry and the
// expiring-soon warning checks. Blocks until the server stops.
func StartServer(redisOpt asynq.RedisClientOpt, engine *services.QueueEngine) {
	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeLeaseExpire, func(ctx context.Context, t *asynq.Task) error {
		var payload LeaseExpirePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return err
		}
		return engine.Expire(ctx, payload.ResourceID, payload.LeaseID)
	})
	mux.HandleFunc(TypeExpiryCheck, func(ctx context.Context, t *asynq.Task) error {
		var payload ExpiryCheckPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return err
		}
		return engine.ExpiryCheck(ctx, payload.ResourceID)
	})

	if err := srv.Run(mux); err != nil {
		log.Fatal("Task server failed to start:", err)
	}
}
