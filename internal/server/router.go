// Package server assembles the HTTP surface.
package server

import (
	"errors"
	"strings"

	"github.com/edutalk/api/internal/config"
	"github.com/edutalk/api/internal/handler"
	"github.com/edutalk/api/internal/middleware"
	"github.com/edutalk/api/internal/service"
	ws "github.com/edutalk/api/internal/websocket"
	"github.com/edutalk/api/pkg/response"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Dependencies are the components the routes are wired to.
type Dependencies struct {
	Config  *config.Config
	Videos  *service.VideoService
	Scripts *service.ScriptService
	Uploads *service.UploadService
	Files   *service.FileService
	Hub     *ws.Hub
	// Redis backs the rate limiter when set; limits are kept in memory otherwise.
	Redis  *redis.Client
	Checks map[string]handler.ServiceCheck
}

// NewApp builds the Fiber application with every route registered.
func NewApp(deps Dependencies) *fiber.App {
	cfg := deps.Config
	validate := handler.NewValidator()

	videoHandler := handler.NewVideoHandler(deps.Videos, validate)
	scriptHandler := handler.NewScriptHandler(deps.Scripts, validate)
	uploadHandler := handler.NewUploadHandler(deps.Uploads)
	fileHandler := handler.NewFileHandler(deps.Files)
	healthHandler := handler.NewHealthHandler(deps.Videos, deps.Checks, cfg.TTS.DefaultVoice)
	wsHandler := handler.NewWebSocketHandler(deps.Videos, deps.Hub)

	rateLimiter := middleware.NewRateLimiter(deps.Redis)
	authenticate := func(c *fiber.Ctx) error { return c.Next() }
	if cfg.Auth.Enabled {
		authenticate = middleware.NewAuthMiddleware(cfg.Auth.JWTSecret).Authenticate()
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          errorHandler,
		BodyLimit:             cfg.Server.BodyLimitMB * 1024 * 1024,
		DisableStartupMessage: !cfg.IsDevelopment(),
	})

	// Global middleware
	app.Use(recover.New())
	logFormat := "${status} - ${latency} ${method} ${path}\n"
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		logFormat = "${status} - ${latency} ${method} ${path} ${queryParams} ${reqHeaders}\n"
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
		Output: log.Logger,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	app.Get("/", healthHandler.Index)
	app.Get("/health", healthHandler.Health)
	app.Get("/voices", healthHandler.Voices)

	// Job routes
	app.Post("/upload-presenter", authenticate, rateLimiter.UploadLimit(cfg.RateLimit.UploadPerHour), uploadHandler.Presenter)
	app.Post("/generate-video", authenticate, rateLimiter.GenerateLimit(cfg.RateLimit.GeneratePerHour), videoHandler.Generate)
	app.Post("/generate-script", authenticate, rateLimiter.ScriptLimit(cfg.RateLimit.ScriptPerMin), scriptHandler.Generate)
	app.Get("/check-status/:jobId", authenticate, videoHandler.Status)

	// Media files
	app.Get("/video/:filename", fileHandler.Serve(service.CategoryVideo))
	app.Get("/audio/:filename", fileHandler.Serve(service.CategoryAudio))
	app.Get("/presenter/:filename", fileHandler.Serve(service.CategoryPresenter))

	// WebSocket routes
	app.Use("/ws", wsHandler.Upgrade)
	app.Get("/ws/jobs/:jobId", wsHandler.Jobs())

	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	} else {
		log.Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
	}

	errCode := response.CodeServiceError
	if code == fiber.StatusNotFound {
		errCode = response.CodeNotFound
	}
	return response.Error(c, code, errCode, message)
}
