package events

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

const subscriberBufferSize = 16

// Bus is an in-process publish/subscribe channel for completion and progress
// events. Publish is fire-and-forget: a subscriber that cannot keep up has
// the event dropped rather than blocking the publisher.
type Bus struct {
	mu          sync.Mutex
	subscribers map[Kind]map[chan Event]bool
	closed      bool
}

func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[Kind]map[chan Event]bool),
	}
}

func (b *Bus) Subscribe(kinds ...Kind) chan Event {
	ch := make(chan Event, subscriberBufferSize)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	for _, kind := range kinds {
		if b.subscribers[kind] == nil {
			b.subscribers[kind] = make(map[chan Event]bool)
		}
		b.subscribers[kind][ch] = true
	}
	return ch
}

func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	var found bool
	for _, subs := range b.subscribers {
		if subs[ch] {
			delete(subs, ch)
			found = true
		}
	}
	if found {
		close(ch)
	}
}

func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	for ch := range b.subscribers[event.EventKind()] {
		select {
		case ch <- event:
		default:
			log.Warnf("event bus: subscriber channel full, dropping [%s] event", event.EventKind())
		}
	}
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true

	closed := make(map[chan Event]bool)
	for _, subs := range b.subscribers {
		for ch := range subs {
			if !closed[ch] {
				close(ch)
				closed[ch] = true
			}
		}
	}
	b.subscribers = nil
}
