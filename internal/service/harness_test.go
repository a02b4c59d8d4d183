package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/walkup-queue/internal/config"
	"github.com/spec-kit/walkup-queue/internal/events"
	"github.com/spec-kit/walkup-queue/internal/observability"
	"github.com/spec-kit/walkup-queue/internal/repository"
	"github.com/spec-kit/walkup-queue/internal/repository/sqlite"
)

// recordingPublisher captures published events and can be told to fail.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	fail   bool
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("publisher offline")
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) setFail(fail bool) {
	p.mu.Lock()
	p.fail = fail
	p.mu.Unlock()
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func (p *recordingPublisher) last(topic events.Topic) (events.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].Topic == topic {
			return p.events[i], true
		}
	}
	return events.Event{}, false
}

// manualClock advances one second per reading so creation order is strict.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type testEnv struct {
	tickets    repository.TicketRepository
	identities repository.IdentityRepository
	publisher  *recordingPublisher
	metrics    *observability.Metrics
	clock      *manualClock
	queue      *QueueService
	imports    *ImportService
	auth       *AuthService
	presenter  *Presenter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	env := &testEnv{
		tickets:    sqlite.NewTicketRepository(store),
		identities: sqlite.NewIdentityRepository(store),
		publisher:  &recordingPublisher{},
		metrics:    observability.NewMetrics(),
		clock:      &manualClock{now: time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC)},
	}
	env.presenter = NewPresenter(env.identities)
	broadcaster := NewBroadcaster(BroadcasterDependencies{
		TicketRepo: env.tickets,
		Presenter:  env.presenter,
		Publisher:  env.publisher,
		Metrics:    env.metrics,
		Now:        env.clock.Now,
	})
	env.queue = NewQueueService(QueueDependencies{
		TicketRepo:   env.tickets,
		IdentityRepo: env.identities,
		Broadcaster:  broadcaster,
		Metrics:      env.metrics,
		Location:     time.UTC,
		Now:          env.clock.Now,
	})
	env.imports = NewImportService(ImportDependencies{
		TicketRepo:   env.tickets,
		IdentityRepo: env.identities,
		Metrics:      env.metrics,
		Location:     time.UTC,
		Now:          env.clock.Now,
	})
	env.auth = NewAuthService(config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 60, BcryptCost: 4}, AuthDependencies{
		IdentityRepo: env.identities,
	})
	if _, err := env.auth.Seed(ctx, BaselineIdentities); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return env
}
