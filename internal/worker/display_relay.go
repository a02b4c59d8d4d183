package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/walkup-queue/internal/events"
)

// DisplayRelay feeds snapshots published by any instance over Redis into the
// local hub, so every instance's displays see every mutation.
type DisplayRelay struct {
	redis  *events.RedisPublisher
	hub    *events.Hub
	logger *zap.Logger
}

// NewDisplayRelay builds a relay. A nil redis publisher makes Start a no-op.
func NewDisplayRelay(redis *events.RedisPublisher, hub *events.Hub, logger *zap.Logger) *DisplayRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DisplayRelay{redis: redis, hub: hub, logger: logger}
}

// Start primes the hub with the stored latest snapshots and relays published
// ones until ctx is cancelled.
func (r *DisplayRelay) Start(ctx context.Context) {
	if r == nil || r.redis == nil {
		return
	}

	pubsub := r.redis.Subscribe(ctx)
	defer pubsub.Close()

	for _, topic := range events.Topics {
		event, ok, err := r.redis.Latest(ctx, topic)
		if err != nil {
			r.logger.Warn("display relay: read latest snapshot", zap.String("topic", string(topic)), zap.Error(err))
			continue
		}
		if ok {
			_ = r.hub.Publish(ctx, event)
		}
	}

	messages := pubsub.Channel()
	r.logger.Info("display relay started")
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("display relay stopped")
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			event, err := events.DecodeEvent([]byte(msg.Payload))
			if err != nil {
				r.logger.Warn("display relay: drop malformed event", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			_ = r.hub.Publish(ctx, event)
		}
	}
}
