package http

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func (f *fakeCounter) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	if f.counts == nil {
		f.counts = map[string]int64{}
	}
	f.counts[key]++
	return f.counts[key], nil
}

func newThrottledApp(counter AttemptCounter, limit int, logger *zap.Logger) *fiber.App {
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), nil, 0)
	app.Post("/auth/login", LoginThrottle(counter, limit, time.Minute, logger), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func TestLoginThrottle(t *testing.T) {
	t.Run("rejects attempts over the limit", func(t *testing.T) {
		counter := &fakeCounter{}
		app := newThrottledApp(counter, 2, zap.NewNop())

		for i := 0; i < 2; i++ {
			resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/auth/login", nil))
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
		}

		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/auth/login", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
		assert.Equal(t, "60", resp.Header.Get(fiber.HeaderRetryAfter))
		require.Len(t, counter.counts, 1)
		for key, count := range counter.counts {
			assert.True(t, strings.HasPrefix(key, loginThrottlePrefix), key)
			assert.Equal(t, int64(3), count)
		}
	})

	t.Run("fails open when the counter is unavailable", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		app := newThrottledApp(&fakeCounter{err: errors.New("connection refused")}, 1, zap.New(core))

		for i := 0; i < 3; i++ {
			resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/auth/login", nil))
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
		}
		assert.Equal(t, 3, logs.FilterMessage("login throttle unavailable").Len())
	})

	t.Run("non-positive limit disables throttling", func(t *testing.T) {
		counter := &fakeCounter{}
		app := newThrottledApp(counter, 0, zap.NewNop())

		for i := 0; i < 5; i++ {
			resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/auth/login", nil))
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
		}
		assert.Empty(t, counter.counts)
	})
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "1", formatSeconds(200*time.Millisecond))
	assert.Equal(t, "90", formatSeconds(90*time.Second))
}
