package http

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/spec-kit/user-service/pkg/util/errorutil"
)

const loginThrottlePrefix = "login_attempts:"

// AttemptCounter increments a fixed-window counter.
type AttemptCounter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// LoginThrottle limits sign-in attempts per client IP. When the counter
// store is unavailable the request is let through.
func LoginThrottle(counter AttemptCounter, limit int, window time.Duration, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if limit <= 0 {
			return c.Next()
		}
		count, err := counter.Incr(c.UserContext(), loginThrottlePrefix+c.IP(), window)
		if err != nil {
			logger.Warn("login throttle unavailable", zap.Error(err))
			return c.Next()
		}
		if count > int64(limit) {
			c.Set(fiber.HeaderRetryAfter, formatSeconds(window))
			return apperrors.NewRateLimited("too many sign-in attempts")
		}
		return c.Next()
	}
}

func formatSeconds(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}
