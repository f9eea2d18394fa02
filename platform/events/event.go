// Package events carries job and pipeline events between modules: forecasts
// generated, models trained, batch runs completed. Publishers never know who
// listens; the cache and operator notifications subscribe here.
package events

import (
	"context"
	"time"
)

// Event is implemented by every published event.
type Event interface {
	// EventName is the subscription key, e.g. "forecasting.forecast.generated".
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent stamps an event with the UTC time it was created.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps the current time in UTC.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now().UTC()}
}

// Handler reacts to one event. Errors are logged by the bus on async delivery.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus fans events out to the handlers subscribed to their name.
type Bus interface {
	// Publish delivers asynchronously.
	Publish(ctx context.Context, event Event)
	// PublishSync delivers in order and joins handler errors.
	PublishSync(ctx context.Context, event Event) error
	Subscribe(eventName string, handler Handler)
}
