package pubsub

import (
	"context"
	"sync"
)

// Event is one published frame as observed on a channel.
type Event struct {
	Channel string
	Payload Payload
}

// MemoryHub is an in-process hub used by tests and single-node
// deployments without an external pubsub endpoint. It records every
// published frame and optionally forwards frames to subscribers.
type MemoryHub struct {
	mu     sync.Mutex
	events []Event
	subs   map[string][]chan Event
}

func NewMemoryHub() *MemoryHub {
	return &MemoryHub{subs: map[string][]chan Event{}}
}

func (h *MemoryHub) Publish(ctx context.Context, channels []string, payload Payload) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range channels {
		ev := Event{Channel: ch, Payload: payload}
		h.events = append(h.events, ev)
		publishTotal.WithLabelValues(payload.Event).Inc()
		for _, sub := range h.subs[ch] {
			select {
			case sub <- ev:
			default:
				// subscriber too slow; frame dropped, matching the
				// no-delivery-guarantee contract
			}
		}
	}
	return nil
}

// Subscribe returns a buffered channel receiving frames published on ch.
func (h *MemoryHub) Subscribe(ch string) <-chan Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := make(chan Event, 64)
	h.subs[ch] = append(h.subs[ch], c)
	return c
}

// Events returns a snapshot of everything published so far.
func (h *MemoryHub) Events() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Event, len(h.events))
	copy(out, h.events)
	return out
}

// EventsOn returns the frames published on one channel.
func (h *MemoryHub) EventsOn(ch string) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Event
	for _, ev := range h.events {
		if ev.Channel == ch {
			out = append(out, ev)
		}
	}
	return out
}

// Reset discards recorded events.
func (h *MemoryHub) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = nil
}
