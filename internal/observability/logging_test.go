package observability

import (
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/druginsight-api/internal/config"
)

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, reg)

	app := fiber.New()
	app.Use(RequestLogger(zap.New(core), metrics))
	app.Get("/users/:id", func(c *fiber.Ctx) error {
		return c.SendString(RequestID(c))
	})

	req := httptest.NewRequest("GET", "/users/42", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	resp, err := app.Test(req)
	require.NoError(t, err)

	requestID := resp.Header.Get(HeaderRequestID)
	assert.NotEmpty(t, requestID)

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, requestID, fields["request_id"])
	assert.Equal(t, "/users/42", fields["path"])
	assert.NotContains(t, fmt.Sprint(fields), "secret-token")

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requests.WithLabelValues("/users/:id", "GET", "200")))
}

func TestRequestLoggerKeepsIncomingID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestLogger(zap.NewNop(), nil))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "req-123", resp.Header.Get(HeaderRequestID))
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "nonsense"}, "production")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
}
