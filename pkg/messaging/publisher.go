// Package messaging defines the events the order service emits and how they are published.
package messaging

import (
	"context"
	"sync"
)

const (
	OrdersPlacedSubject      = "orders.placed"
	OrdersLineRemovedSubject = "orders.line_removed"
	OrdersDeletedSubject     = "orders.deleted"

	// OrdersSubjects matches every order subject; used when creating the stream.
	OrdersSubjects = "orders.>"
)

type Event interface {
	Subject() string
	Payload() ([]byte, error)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event. Used when messaging is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// RecordingPublisher keeps published events in memory.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []Event
	// Err, when set, is returned by Publish after recording the event.
	Err error
}

func (p *RecordingPublisher) Publish(_ context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.Err
}

// Events returns a copy of everything published so far.
func (p *RecordingPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}
