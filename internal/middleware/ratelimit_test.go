package middleware

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRateLimit(t *testing.T) {
	rl := NewRateLimiter(nil)
	app := fiber.New()
	app.Post("/generate-video", rl.Limit("generate", 2, time.Hour), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusAccepted)
	})
	app.Post("/upload-presenter", rl.Limit("upload", 2, time.Hour), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	post := func(path string) int {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, path, nil), -1)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusAccepted, post("/generate-video"))
	assert.Equal(t, fiber.StatusAccepted, post("/generate-video"))
	assert.Equal(t, fiber.StatusTooManyRequests, post("/generate-video"))

	// Limits are tracked per route prefix.
	assert.Equal(t, fiber.StatusCreated, post("/upload-presenter"))
}

func TestRateLimitDisabled(t *testing.T) {
	rl := NewRateLimiter(nil)
	app := fiber.New()
	app.Get("/", rl.Limit("script", 0, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	for i := 0; i < 5; i++ {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil), -1)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
}

// newTestRedis connects to a local Redis on a scratch database, skipping when none runs.
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	require.NoError(t, client.FlushDB(context.Background()).Err())
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

func TestRedisRateLimit(t *testing.T) {
	ctx := context.Background()
	client := newTestRedis(t)
	rl := NewRateLimiter(client)
	app := fiber.New()
	app.Post("/generate-video", rl.Limit("generate", 2, time.Hour), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusAccepted)
	})

	post := func() int {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/generate-video", nil), -1)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusAccepted, post())

	keys, err := client.Keys(ctx, "ratelimit:generate:*").Result()
	require.NoError(t, err)
	require.Len(t, keys, 1)

	// A counter left without a window is given one on the next request.
	require.NoError(t, client.Persist(ctx, keys[0]).Err())
	assert.Equal(t, fiber.StatusAccepted, post())
	ttl, err := client.TTL(ctx, keys[0]).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Hour)

	assert.Equal(t, fiber.StatusTooManyRequests, post())
}
