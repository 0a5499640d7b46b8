package notify

import (
	"context"
	"fmt"
	"time"

	pubnub "github.com/pubnub/go"

	"reservation-system/models"
	"reservation-system/utils"
)

// PubNubSink publishes notification events to the holder's or waiter's
// personal channel. Publishes go through a circuit breaker so a PubNub
// outage degrades delivery instead of stalling the engine's worker.
type PubNubSink struct {
	pn      *pubnub.PubNub
	breaker *utils.CircuitBreaker
}

func NewPubNubSink(pn *pubnub.PubNub, settings utils.BreakerSettings) *PubNubSink {
	return &PubNubSink{
		pn:      pn,
		breaker: utils.NewCircuitBreaker("pubnub", settings),
	}
}

func (s *PubNubSink) Deliver(event models.NotificationEvent) error {
	channel := fmt.Sprintf("user-%s", event.UserID)

	message := map[string]any{
		"id":          event.ID,
		"type":        event.Kind,
		"level":       string(event.Level),
		"resource_id": event.ResourceID,
		"emitted_at":  event.EmittedAt.Format(time.RFC3339),
	}
	for k, v := range event.Payload {
		message[k] = v
	}

	_, err := s.breaker.Execute(context.Background(), func() (any, error) {
		_, _, err := s.pn.Publish().
			Channel(channel).
			Message(message).
			Execute()
		return nil, err
	})
	return err
}
