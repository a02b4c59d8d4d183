package events

import (
	"context"
	"sync"
)

const defaultSubscriberBuffer = 8

// Hub is the in-process topic hub feeding websocket displays. It keeps the
// latest event per topic and never blocks a publisher: a subscriber whose
// buffer is full misses that event and catches up on the next snapshot.
type Hub struct {
	mu      sync.RWMutex
	subs    map[int]*subscriber
	nextID  int
	latest  map[Topic]Event
	buffer  int
	dropped int64
}

type subscriber struct {
	ch     chan Event
	topics map[Topic]struct{}
}

// NewHub creates a hub whose subscriber channels hold buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &Hub{
		subs:   make(map[int]*subscriber),
		latest: make(map[Topic]Event),
		buffer: buffer,
	}
}

// Publish records event as the latest for its topic and offers it to subscribers.
// An event already recorded as latest is ignored, so a relayed copy of a local
// publish is delivered once.
func (h *Hub) Publish(_ context.Context, event Event) error {
	h.mu.Lock()
	if current, ok := h.latest[event.Topic]; ok && current.ID == event.ID {
		h.mu.Unlock()
		return nil
	}
	h.latest[event.Topic] = event
	for _, sub := range h.subs {
		if _, ok := sub.topics[event.Topic]; !ok {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			h.dropped++
		}
	}
	h.mu.Unlock()
	return nil
}

// Subscribe returns a channel of events for the given topics (all topics when
// none are named) and a function that unsubscribes and closes the channel.
func (h *Hub) Subscribe(topics ...Topic) (<-chan Event, func()) {
	if len(topics) == 0 {
		topics = Topics
	}
	sub := &subscriber{
		ch:     make(chan Event, h.buffer),
		topics: make(map[Topic]struct{}, len(topics)),
	}
	for _, topic := range topics {
		sub.topics[topic] = struct{}{}
	}

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = sub
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			close(sub.ch)
			h.mu.Unlock()
		})
	}
}

// Latest returns the most recent event published on topic.
func (h *Hub) Latest(topic Topic) (Event, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	event, ok := h.latest[topic]
	return event, ok
}

// Subscribers reports the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped reports how many deliveries were skipped because a subscriber was full.
func (h *Hub) Dropped() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}
