package http

import (
	"context"
	"errors"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/druginsight-api/internal/config"
	"github.com/spec-kit/druginsight-api/internal/observability"
	apperrors "github.com/spec-kit/druginsight-api/pkg/util"
)

// MiddlewareConfig bundles the collaborators of the global middleware chain.
type MiddlewareConfig struct {
	Logger    *zap.Logger
	Metrics   *observability.Metrics
	Timeout   time.Duration
	CORS      config.CORSConfig
	RateLimit config.RateLimitConfig
	Redis     *redis.Client
}

// RegisterMiddlewares attaches global middlewares such as logging, error
// handling, CORS and rate limiting. Request logging is outermost so it sees
// the final status written by the error handler.
func RegisterMiddlewares(app *fiber.App, cfg MiddlewareConfig) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	app.Use(observability.RequestLogger(logger, cfg.Metrics))
	if cfg.Timeout > 0 {
		app.Use(requestTimeoutMiddleware(cfg.Timeout))
	}
	app.Use(errorHandlingMiddleware(logger, cfg.Metrics))
	app.Use(corsMiddleware(cfg.CORS))
	if cfg.Redis != nil && cfg.RateLimit.Requests > 0 {
		app.Use(newRateLimiter(cfg.Redis, cfg.RateLimit, logger).Handle)
	}
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func corsMiddleware(cfg config.CORSConfig) fiber.Handler {
	origins := strings.Join(cfg.AllowedOrigins, ",")
	wildcard := origins == "" || strings.Contains(origins, "*")
	if origins == "" {
		origins = "*"
	}
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Authorization,Content-Type,X-API-Key,X-Request-ID",
		ExposeHeaders:    observability.HeaderRequestID,
		AllowCredentials: !wildcard,
	})
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				domainErr := toDomainError(err)
				metrics.RecordError(routePath(c), c.Method(), domainErr.Code)
				if domainErr.HTTPStatus >= fiber.StatusInternalServerError {
					logger.Error("request failed",
						zap.String("path", c.Path()),
						zap.String("request_id", observability.RequestID(c)),
						zap.Error(domainErr))
				}
				err = writeError(c, domainErr)
			}
		}()
		return c.Next()
	}
}

// toDomainError extends apperrors.ToDomainError with fiber's own errors and
// context expiry.
func toDomainError(err error) *apperrors.DomainError {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return apperrors.ToDomainError(apperrors.NewHTTPError(fiberErr.Code, fiberErr.Message))
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.ToDomainError(apperrors.NewRequestTimeout(err))
	}
	return apperrors.ToDomainError(err)
}

func writeError(c *fiber.Ctx, domainErr *apperrors.DomainError) error {
	response := fiber.Map{
		"error":   domainErr.Code,
		"message": domainErr.Message,
	}
	if len(domainErr.Details) > 0 {
		response["details"] = domainErr.Details
	}
	return c.Status(domainErr.HTTPStatus).JSON(response)
}

func routePath(c *fiber.Ctx) string {
	if route := c.Route(); route != nil && route.Path != "" {
		return route.Path
	}
	return c.Path()
}
