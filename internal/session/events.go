package session

import "time"

// Event names published to the host.
const (
	EventConnectionChanged = "connection_changed"
	EventScanningChanged   = "scanning_changed"
	EventTagRead           = "tag_read"
	EventTuningApplied     = "tuning_applied"
	EventOperationBegin    = "operation_begin"
	EventOperationEnd      = "operation_end"
)

// Event is a push notification for the host.
type Event struct {
	Name   string         `json:"name"`
	At     time.Time      `json:"at"`
	Fields map[string]any `json:"fields,omitempty"`
}

// EventPublisher receives events from the session. Publish runs on the
// session queue: implementations must not block and must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// MultiPublisher fans an event out to several publishers in order.
type MultiPublisher []EventPublisher

func (m MultiPublisher) Publish(e Event) {
	for _, p := range m {
		if p != nil {
			p.Publish(e)
		}
	}
}
