package events

import (
	"context"
	"log/slog"
)

// Sink forwards events outside the process.
type Sink interface {
	Emit(ctx context.Context, e Event) error
}

// Bus publishes to the in-memory hub and then to every sink. Sink failures
// are logged; they never fail the publisher.
type Bus struct {
	hub    *Hub
	sinks  []Sink
	logger *slog.Logger
}

// NewBus returns a Bus over hub. Nil sinks are skipped.
func NewBus(hub *Hub, logger *slog.Logger, sinks ...Sink) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bus{hub: hub, logger: logger}
	for _, s := range sinks {
		if s != nil {
			b.sinks = append(b.sinks, s)
		}
	}
	return b
}

// Hub exposes the underlying hub for subscribers.
func (b *Bus) Hub() *Hub { return b.hub }

// Publish records the event and forwards it to every sink.
func (b *Bus) Publish(ctx context.Context, eventType string, data any) Event {
	ev := b.hub.Publish(eventType, data)
	for _, s := range b.sinks {
		if err := s.Emit(ctx, ev); err != nil {
			b.logger.Warn("event sink failed", "type", ev.Type, "event_id", ev.UUID, "error", err)
		}
	}
	return ev
}
