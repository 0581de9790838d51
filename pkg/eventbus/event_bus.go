// Package eventbus moves workflow events from the API to the automation
// dispatcher, and run outcomes back out, over a single watermill topic.
//
// Every message carries two metadata entries: the event type, which selects
// the decoder and the handler, and a key. Job events are keyed by job ID and
// run events by automation ID, so brokers that partition by key (Kafka) keep
// the events of one job in order.
//
// A subscriber registers at most one handler per event type. The handler gets
// a pointer to the decoded event, e.g. *events.JobStageChanged for
// events.JobStageChangedEvent. Returning nil acks the message. Returning an
// error nacks it and the broker redelivers it, so handlers must tolerate
// seeing the same event ID twice. Messages of a type with no handler are
// acked and dropped.
package eventbus

import (
	"context"

	"github.com/dukex/stageflow/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

type EventPublisher interface {
	// Publish sends event under key. It returns once the broker accepted it,
	// not once it was handled.
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	// Handle sets the handler for eventType, replacing any earlier one. Call
	// it before Subscribe.
	Handle(eventType events.EventType, handler EventHandler) error
	// Subscribe starts delivery in the background until ctx is done.
	Subscribe(ctx context.Context) error
}

// EventHandler receives a pointer to the decoded event. A non-nil error asks
// for redelivery.
type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	// GenerateID returns a new sortable event ID.
	GenerateID() string
}
