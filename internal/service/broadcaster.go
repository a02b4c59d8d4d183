package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/walkup-queue/internal/domain"
	"github.com/spec-kit/walkup-queue/internal/events"
	"github.com/spec-kit/walkup-queue/internal/observability"
	"github.com/spec-kit/walkup-queue/internal/repository"
)

// Broadcaster recomputes the live queue snapshots from the store and
// publishes them. It never reports failure to its caller: by the time it
// runs the mutation has committed.
type Broadcaster struct {
	tickets   repository.TicketRepository
	presenter *Presenter
	publisher events.Publisher
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

// BroadcasterDependencies bundles broadcaster collaborators.
type BroadcasterDependencies struct {
	TicketRepo repository.TicketRepository
	Presenter  *Presenter
	Publisher  events.Publisher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Now        func() time.Time
}

// NewBroadcaster creates the broadcaster.
func NewBroadcaster(deps BroadcasterDependencies) *Broadcaster {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Broadcaster{
		tickets:   deps.TicketRepo,
		presenter: deps.Presenter,
		publisher: deps.Publisher,
		logger:    logger,
		metrics:   deps.Metrics,
		now:       now,
	}
}

// Snapshots builds the current WAITING and IN_PROGRESS events.
func (b *Broadcaster) Snapshots(ctx context.Context) ([]events.Event, error) {
	waiting, err := b.tickets.ListWaitingQueue(ctx)
	if err != nil {
		return nil, err
	}
	inProgress, err := b.tickets.ListByStatus(ctx, domain.TicketStatusInProgress)
	if err != nil {
		return nil, err
	}

	snapshots := []struct {
		topic   events.Topic
		tickets []domain.Ticket
	}{
		{events.TopicWaiting, waiting},
		{events.TopicInProgress, inProgress},
	}

	now := b.now()
	out := make([]events.Event, 0, len(snapshots))
	for _, snapshot := range snapshots {
		payload, err := b.presenter.Tickets(ctx, snapshot.tickets)
		if err != nil {
			return nil, err
		}
		event, err := events.NewEvent(snapshot.topic, payload, now)
		if err != nil {
			return nil, err
		}
		out = append(out, event)
	}
	return out, nil
}

// Broadcast publishes fresh snapshots. Failures are logged and counted only.
func (b *Broadcaster) Broadcast(ctx context.Context) {
	if b == nil || b.publisher == nil {
		return
	}
	snapshots, err := b.Snapshots(ctx)
	if err != nil {
		b.logger.Error("build queue snapshots", zap.Error(err))
		for _, topic := range events.Topics {
			b.metrics.RecordBroadcastFailure(string(topic))
		}
		return
	}
	for _, event := range snapshots {
		if err := b.publisher.Publish(ctx, event); err != nil {
			b.logger.Warn("publish queue snapshot",
				zap.String("topic", string(event.Topic)),
				zap.String("event_id", event.ID),
				zap.Error(err))
			b.metrics.RecordBroadcastFailure(string(event.Topic))
			continue
		}
		b.logger.Debug("published queue snapshot",
			zap.String("topic", string(event.Topic)),
			zap.String("event_id", event.ID))
	}
}
