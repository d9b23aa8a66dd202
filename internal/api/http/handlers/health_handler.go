package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

const probeTimeout = 2 * time.Second

// Pinger is a dependency that can report its reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler responds to health, liveness and readiness probes.
type HealthHandler struct {
	serviceName string
	version     string
	postgres    Pinger
	redis       Pinger
	started     time.Time
}

// NewHealthHandler returns a new handler instance.
func NewHealthHandler(serviceName, version string, postgres, redis Pinger) *HealthHandler {
	return &HealthHandler{
		serviceName: serviceName,
		version:     version,
		postgres:    postgres,
		redis:       redis,
		started:     time.Now(),
	}
}

// Health handles GET /health. The service is healthy when every dependency
// answers, degraded when some do and unhealthy when none do.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), probeTimeout)
	defer cancel()

	dbOK := ping(ctx, h.postgres) == nil
	redisOK := ping(ctx, h.redis) == nil

	status := "unhealthy"
	switch {
	case dbOK && redisOK:
		status = "healthy"
	case dbOK || redisOK:
		status = "degraded"
	}

	return c.JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"version":   h.version,
		"uptime":    int(time.Since(h.started).Seconds()),
		"dependencies": fiber.Map{
			"database": healthWord(dbOK),
			"redis":    healthWord(redisOK),
		},
	})
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready reports service readiness by checking dependencies.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), probeTimeout)
	defer cancel()

	depStatus := fiber.Map{}
	ready := true

	if err := ping(ctx, h.postgres); err != nil {
		depStatus["postgres"] = err.Error()
		ready = false
	} else {
		depStatus["postgres"] = "ok"
	}

	if err := ping(ctx, h.redis); err != nil {
		depStatus["redis"] = err.Error()
		ready = false
	} else {
		depStatus["redis"] = "ok"
	}

	if ready {
		return c.JSON(fiber.Map{
			"status":       "ready",
			"dependencies": depStatus,
		})
	}

	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error":   "DEPENDENCY_UNAVAILABLE",
		"message": "one or more dependencies unavailable",
		"details": depStatus,
	})
}

func ping(ctx context.Context, p Pinger) error {
	if p == nil {
		return errNotConfigured
	}
	return p.Ping(ctx)
}

func healthWord(ok bool) string {
	if ok {
		return "healthy"
	}
	return "unhealthy"
}
