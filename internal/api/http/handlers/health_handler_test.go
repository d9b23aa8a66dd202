package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

var (
	up   = pingFunc(func(context.Context) error { return nil })
	down = pingFunc(func(context.Context) error { return errors.New("connection refused") })
)

func TestHealthAggregation(t *testing.T) {
	cases := []struct {
		name     string
		postgres Pinger
		redis    Pinger
		want     string
	}{
		{"all up", up, up, "healthy"},
		{"redis down", up, down, "degraded"},
		{"database missing", nil, up, "degraded"},
		{"all down", down, down, "unhealthy"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/health", NewHealthHandler("druginsight-api", "1.2.3", tc.postgres, tc.redis).Health)

			resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/health", nil))
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusOK, resp.StatusCode)

			var body map[string]any
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tc.want, body["status"])
			assert.Equal(t, "1.2.3", body["version"])
			assert.Contains(t, body, "uptime")
		})
	}
}

func TestReady(t *testing.T) {
	app := fiber.New()
	app.Get("/ready", NewHealthHandler("druginsight-api", "1.2.3", up, up).Ready)
	app.Get("/not-ready", NewHealthHandler("druginsight-api", "1.2.3", up, down).Ready)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/not-ready", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, map[string]any{"postgres": "ok", "redis": "connection refused"}, body["details"])
}
