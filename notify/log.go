package notify

import (
	"log"

	"reservation-system/models"
)

// LogSink writes notification events to the process log. Used in
// development and when PubNub keys are not configured.
type LogSink struct{}

func NewLogSink() *LogSink {
	return &LogSink{}
}

func (s *LogSink) Deliver(event models.NotificationEvent) error {
	log.Printf("[notify] %s level=%s user=%s resource=%s payload=%v",
		event.Kind, event.Level, event.UserID, event.ResourceID, event.Payload)
	return nil
}
