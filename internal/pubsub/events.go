// Package pubsub fans typed values out to any number of subscribers.
//
// Delivery never blocks the publisher: a subscriber whose buffer is full
// misses the event and the broker counts the drop.
package pubsub

import (
	"context"
	"time"
)

// EventType labels why a value was published.
type EventType string

// Event is a published value together with its label and publish time.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher publishes typed values.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T) int
}
