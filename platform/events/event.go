// Package events is the in-process publish/subscribe fabric between the
// engine's modules. Publishers fire domain events; subscribers react without
// the modules importing each other.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is implemented by every domain event.
type Event interface {
	// EventName identifies the event type, namespaced by module.
	EventName() string
	// EventID identifies this occurrence for log correlation.
	EventID() uuid.UUID
	OccurredAt() time.Time
}

// BaseEvent is the envelope embedded by every event: a unique occurrence id
// and the emission timestamp.
type BaseEvent struct {
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) EventID() uuid.UUID    { return e.ID }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// NewBaseEvent stamps a fresh envelope.
func NewBaseEvent() BaseEvent {
	return BaseEvent{ID: uuid.New(), Timestamp: time.Now()}
}

// Handler reacts to events of one type.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus publishes domain events to their subscribers.
type Bus interface {
	// Publish dispatches asynchronously; delivery is detached from the
	// caller's lifetime.
	Publish(ctx context.Context, event Event)
	// PublishSync dispatches and waits for every handler.
	PublishSync(ctx context.Context, event Event) error
	// Subscribe registers a handler under an Event.EventName() value.
	Subscribe(eventName string, handler Handler)
}
