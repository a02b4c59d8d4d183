package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes snapshots on Redis channels and stores the latest
// one per topic so late joiners can read it.
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

// NewRedisPublisher creates a publisher namespacing keys and channels with prefix.
func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: prefix}
}

// Channel returns the Redis channel carrying topic.
func (p *RedisPublisher) Channel(topic Topic) string {
	return p.prefix + ":" + string(topic)
}

func (p *RedisPublisher) latestKey(topic Topic) string {
	return p.Channel(topic) + ":latest"
}

// Publish sends event on its channel and replaces the stored latest snapshot.
func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, p.latestKey(event.Topic), body, 0)
		pipe.Publish(ctx, p.Channel(event.Topic), body)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis publish %s: %w", event.Topic, err)
	}
	return nil
}

// Latest reads the stored snapshot for topic. ok is false when none was published yet.
func (p *RedisPublisher) Latest(ctx context.Context, topic Topic) (Event, bool, error) {
	body, err := p.client.Get(ctx, p.latestKey(topic)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Event{}, false, nil
	}
	if err != nil {
		return Event{}, false, fmt.Errorf("redis get latest %s: %w", topic, err)
	}
	event, err := DecodeEvent(body)
	if err != nil {
		return Event{}, false, err
	}
	return event, true, nil
}

// Subscribe opens a pub/sub subscription on every topic channel.
func (p *RedisPublisher) Subscribe(ctx context.Context) *redis.PubSub {
	channels := make([]string, 0, len(Topics))
	for _, topic := range Topics {
		channels = append(channels, p.Channel(topic))
	}
	return p.client.Subscribe(ctx, channels...)
}

// DecodeEvent parses an event published by RedisPublisher.
func DecodeEvent(body []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if event.Topic == "" {
		return Event{}, errors.New("decode event: missing topic")
	}
	return event, nil
}
