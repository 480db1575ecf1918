package events

import "nftmarket/core/types"

// Event represents a structured state change emitted by the marketplace.
type Event interface {
	EventType() string
}

// Payload is implemented by events that can render themselves into the
// generic attribute form persisted in the event log.
type Payload interface {
	Event
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. the event log,
// indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Buffer collects emitted events in order until they are drained. The
// processor uses it to publish events only once a request commits.
type Buffer struct {
	pending []*types.Event
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	if provider, ok := evt.(Payload); ok {
		if payload := provider.Event(); payload != nil {
			b.pending = append(b.pending, payload)
		}
		return
	}
	b.pending = append(b.pending, &types.Event{Type: evt.EventType(), Attributes: map[string]string{}})
}

// Len reports the number of buffered events.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.pending)
}

// Truncate drops every event buffered after position n.
func (b *Buffer) Truncate(n int) {
	if b == nil || n < 0 || n >= len(b.pending) {
		return
	}
	b.pending = b.pending[:n]
}

// Drain returns the buffered events and resets the buffer.
func (b *Buffer) Drain() []*types.Event {
	if b == nil {
		return nil
	}
	out := b.pending
	b.pending = nil
	return out
}
