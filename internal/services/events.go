package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/closetly/apiserver/internal/mq"
)

// EventChannel is the broker channel wardrobe mutation events are published to.
const EventChannel = "wardrobe-events"

// Event describes a wardrobe mutation for downstream consumers.
type Event struct {
	Type     string    `json:"type"`
	Resource string    `json:"resource"`
	ID       int       `json:"id"`
	UserID   int       `json:"user_id"`
	At       time.Time `json:"at"`
}

// EventPublisher publishes wardrobe events through the configured broker.
// Publishing is best-effort: a nil publisher or a broker failure never fails
// the request that triggered the event.
type EventPublisher struct {
	mq *mq.MQ
}

// NewEventPublisher wraps the broker. A nil broker yields a no-op publisher.
func NewEventPublisher(broker *mq.MQ) *EventPublisher {
	if broker == nil {
		return nil
	}
	return &EventPublisher{mq: broker}
}

func (p *EventPublisher) publish(ctx context.Context, eventType, resource string, id, userID int) {
	if p == nil || p.mq == nil {
		return
	}

	data, err := json.Marshal(Event{
		Type:     eventType,
		Resource: resource,
		ID:       id,
		UserID:   userID,
		At:       time.Now(),
	})
	if err != nil {
		return
	}
	_, _ = p.mq.Publish(ctx, EventChannel, data, map[string]string{
		"resource": resource,
		"type":     eventType,
	})
}
