// Package events carries queue snapshots from the engine to display subscribers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Topic names a snapshot stream.
type Topic string

const (
	TopicWaiting    Topic = "queue.waiting"
	TopicInProgress Topic = "queue.in_progress"
)

// Topics lists every snapshot stream.
var Topics = []Topic{TopicWaiting, TopicInProgress}

// Event is one complete-replacement snapshot for a topic.
type Event struct {
	ID        string          `json:"id"`
	Topic     Topic           `json:"topic"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEvent encodes payload into a fresh event for topic.
func NewEvent(topic Topic, payload any, now time.Time) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", topic, err)
	}
	return Event{
		ID:        uuid.NewString(),
		Topic:     topic,
		Timestamp: now.UTC(),
		Payload:   raw,
	}, nil
}

// Publisher delivers events on a best-effort basis.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, event Event) error

func (f PublisherFunc) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}
