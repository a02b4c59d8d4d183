package handlers

import (
	"context"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/walkup-queue/internal/events"
	"github.com/spec-kit/walkup-queue/internal/service"
)

const (
	displayWriteTimeout    = 10 * time.Second
	displaySnapshotTimeout = 5 * time.Second
)

// DisplayHandler streams queue snapshots to public displays over a websocket.
type DisplayHandler struct {
	hub         *events.Hub
	broadcaster *service.Broadcaster
	logger      *zap.Logger
}

// NewDisplayHandler constructs handler.
func NewDisplayHandler(hub *events.Hub, broadcaster *service.Broadcaster, logger *zap.Logger) *DisplayHandler {
	return &DisplayHandler{hub: hub, broadcaster: broadcaster, logger: logger}
}

// Upgrade rejects plain HTTP requests on the websocket route.
func (h *DisplayHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Stream GET /ws/queue. The display first receives the current snapshot of
// every topic, then each new snapshot as it is published.
func (h *DisplayHandler) Stream() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		// Subscribe before reading the current state so nothing published in between is lost.
		updates, unsubscribe := h.hub.Subscribe()
		defer unsubscribe()

		initial, err := h.currentSnapshots()
		if err != nil {
			h.logger.Warn("display initial snapshot", zap.Error(err))
		}
		for _, event := range initial {
			if err := h.write(conn, event); err != nil {
				return
			}
		}

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-closed:
				return
			case event, ok := <-updates:
				if !ok {
					return
				}
				if err := h.write(conn, event); err != nil {
					h.logger.Debug("display disconnected", zap.Error(err))
					return
				}
			}
		}
	})
}

func (h *DisplayHandler) currentSnapshots() ([]events.Event, error) {
	var missing bool
	out := make([]events.Event, 0, len(events.Topics))
	for _, topic := range events.Topics {
		event, ok := h.hub.Latest(topic)
		if !ok {
			missing = true
			break
		}
		out = append(out, event)
	}
	if !missing {
		return out, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), displaySnapshotTimeout)
	defer cancel()
	return h.broadcaster.Snapshots(ctx)
}

func (h *DisplayHandler) write(conn *websocket.Conn, event events.Event) error {
	if err := conn.SetWriteDeadline(time.Now().Add(displayWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(event)
}
