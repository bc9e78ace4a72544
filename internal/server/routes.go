package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/imgstash/imgstash/internal/cache"
)

// fetchRequest 是拉取/预填充接口的请求体。TTL 以秒为单位，0 表示默认值。
type fetchRequest struct {
	URL        string            `json:"url"`
	Source     string            `json:"source"`
	TTLSeconds int64             `json:"ttl"`
	Headers    map[string]string `json:"headers"`
}

func (r fetchRequest) options() cache.Options {
	opts := cache.Options{Headers: r.Headers}
	if r.TTLSeconds > 0 {
		opts.TTL = time.Duration(r.TTLSeconds) * time.Second
	}
	return opts
}

func registerRoutes(app *fiber.App, opts AppOptions) {
	h := &apiHandler{manager: opts.Manager, logger: opts.Logger}

	app.Get("/-/health", healthHandler)

	api := app.Group("/api")
	api.Get("/cache", h.probe)
	api.Post("/cache", h.fetch)
	api.Post("/seed", h.seed)
	api.Delete("/cache/all", h.clearAll)
	api.Delete("/cache", h.evict)
	api.Get("/stats", h.stats)
}

type apiHandler struct {
	manager CacheManager
	logger  *logrus.Logger
}

func (h *apiHandler) probe(c fiber.Ctx) error {
	url := c.Query("url")
	cached, err := h.manager.ProbeCached(requestContext(c), url, cache.Options{})
	if err != nil {
		return h.renderError(c, "probe", url, err)
	}
	return c.JSON(fiber.Map{"url": url, "cached": cached})
}

func (h *apiHandler) fetch(c fiber.Ctx) error {
	var req fetchRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "invalid_body")
	}

	path, err := h.manager.FetchAndCache(requestContext(c), req.URL, req.options())
	if err != nil {
		return h.renderError(c, "fetch", req.URL, err)
	}
	return c.JSON(fiber.Map{"url": req.URL, "path": path})
}

func (h *apiHandler) seed(c fiber.Ctx) error {
	var req fetchRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "invalid_body")
	}
	if req.Source == "" {
		return badRequest(c, "source_required")
	}

	path, err := h.manager.SeedAndCache(requestContext(c), req.URL, req.Source, req.options())
	if err != nil {
		return h.renderError(c, "seed", req.URL, err)
	}
	return c.JSON(fiber.Map{"url": req.URL, "path": path})
}

func (h *apiHandler) evict(c fiber.Ctx) error {
	url := c.Query("url")
	if err := h.manager.Evict(requestContext(c), url, cache.Options{}); err != nil {
		return h.renderError(c, "evict", url, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *apiHandler) clearAll(c fiber.Ctx) error {
	if err := h.manager.ClearAll(requestContext(c), cache.Options{}); err != nil {
		return h.renderError(c, "clear_all", "", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *apiHandler) stats(c fiber.Ctx) error {
	stats, err := h.manager.Inspect(requestContext(c), cache.Options{})
	if err != nil {
		return h.renderError(c, "stats", "", err)
	}
	return c.JSON(stats)
}

// renderError 把缓存层的错误种类映射为 HTTP 状态码：
// 不可缓存 → 422；物化失败 → 502；其余协作方错误 → 500。
func (h *apiHandler) renderError(c fiber.Ctx, op, url string, err error) error {
	fields := logrus.Fields{
		"action": "api",
		"op":     op,
		"url":    url,
		"error":  err.Error(),
	}
	if reqID := RequestID(c); reqID != "" {
		fields["request_id"] = reqID
	}

	var mErr *cache.MaterializeError
	switch {
	case errors.Is(err, cache.ErrNotCacheable):
		h.logger.WithFields(fields).Warn("api_rejected")
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "not_cacheable"})
	case errors.As(err, &mErr):
		h.logger.WithFields(fields).Error("api_materialize_failed")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "materialize_failed"})
	default:
		h.logger.WithFields(fields).Error("api_failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_error"})
	}
}

func badRequest(c fiber.Ctx, code string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": code})
}

func requestContext(c fiber.Ctx) context.Context {
	if ctx := c.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
