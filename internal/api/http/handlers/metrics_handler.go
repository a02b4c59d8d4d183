package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/walkup-queue/internal/events"
	"github.com/spec-kit/walkup-queue/internal/observability"
)

// MetricsHandler exposes the in-memory counters.
type MetricsHandler struct {
	metrics *observability.Metrics
	hub     *events.Hub
}

// NewMetricsHandler constructs handler.
func NewMetricsHandler(metrics *observability.Metrics, hub *events.Hub) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, hub: hub}
}

// Get GET /metrics.
func (h *MetricsHandler) Get(c *fiber.Ctx) error {
	resp := fiber.Map{"counters": h.metrics.Snapshot()}
	if h.hub != nil {
		resp["display"] = fiber.Map{
			"subscribers": h.hub.Subscribers(),
			"dropped":     h.hub.Dropped(),
		}
	}
	return c.JSON(resp)
}
