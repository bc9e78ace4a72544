package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/imgstash/imgstash/internal/cache"
	"github.com/imgstash/imgstash/internal/version"
)

// CacheManager 是路由层消费的缓存操作集合，接口化便于测试注入替身。
type CacheManager interface {
	ProbeCached(ctx context.Context, url string, opts cache.Options) (bool, error)
	FetchAndCache(ctx context.Context, url string, opts cache.Options) (string, error)
	SeedAndCache(ctx context.Context, url, localPath string, opts cache.Options) (string, error)
	Evict(ctx context.Context, url string, opts cache.Options) error
	ClearAll(ctx context.Context, opts cache.Options) error
	Inspect(ctx context.Context, opts cache.Options) (cache.Stats, error)
}

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger     *logrus.Logger
	Manager    CacheManager
	ListenPort int
}

const contextKeyRequestID = "_imgstash_request_id"

// NewApp builds a Fiber application with request-ID middleware and the cache
// API routes attached.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Manager == nil {
		return nil, errors.New("cache manager is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	registerRoutes(app, opts)
	return app, nil
}

// requestIDMiddleware 为每个请求生成 ID 并回写响应头，便于日志串联。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// RequestID returns the request identifier stored by the middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

func healthHandler(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": version.Full(),
	})
}
