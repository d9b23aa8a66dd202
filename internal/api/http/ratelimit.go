package http

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/druginsight-api/internal/config"
	apperrors "github.com/spec-kit/druginsight-api/pkg/util"
)

const rateLimitKeyPrefix = "ratelimit:"

var rateLimitExempt = []string{"/health", "/metrics"}

// rateLimiter counts requests per client IP in fixed Redis windows.
type rateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	logger *zap.Logger
}

func newRateLimiter(client *redis.Client, cfg config.RateLimitConfig, logger *zap.Logger) *rateLimiter {
	return &rateLimiter{
		client: client,
		limit:  cfg.Requests,
		window: cfg.Window(),
		logger: logger,
	}
}

// Handle rejects clients over the limit with 429. Redis failures let the
// request through.
func (l *rateLimiter) Handle(c *fiber.Ctx) error {
	for _, prefix := range rateLimitExempt {
		if strings.HasPrefix(c.Path(), prefix) {
			return c.Next()
		}
	}

	count, ttl, err := l.hit(c.UserContext(), rateLimitKeyPrefix+c.IP())
	if err != nil {
		l.logger.Warn("rate limiter unavailable", zap.Error(err))
		return c.Next()
	}

	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	c.Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
	c.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

	if int(count) > l.limit {
		if ttl > 0 {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(ttl.Round(time.Second).Seconds())))
		}
		return apperrors.NewRateLimited()
	}
	return c.Next()
}

// hit increments the window counter, starting the window on the first request.
func (l *rateLimiter) hit(ctx context.Context, key string) (int64, time.Duration, error) {
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := l.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		ttl = pipe.TTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	remaining := ttl.Val()
	if incr.Val() == 1 || remaining < 0 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return 0, 0, err
		}
		remaining = l.window
	}
	return incr.Val(), remaining, nil
}
