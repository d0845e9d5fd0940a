package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// NewApp creates the Fiber app with the standard middleware chain:
// recover, request id, log bridge, request logger.
func NewApp(name string) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      name,
		ErrorHandler: ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(requestid.New(RequestIDConfig()))
	app.Use(RequestIDToContextMiddleware())
	app.Use(RequestLoggerMiddleware())

	return app
}

// SetupRoutes configures the application routes. rateLimiter may be nil.
func SetupRoutes(app *fiber.App, handlers *Handlers, rateLimiter *RateLimiter) {
	app.Get("/healthz", handlers.Health)

	api := app.Group("/api")
	if rateLimiter != nil {
		api.Use(rateLimiter.Middleware())
	}

	api.Get("/unreplied", handlers.Unreplied)
	api.Get("/unreplied/:fid/feed.rss", handlers.Feed)

	api.Post("/sessions", handlers.CreateSession)
	api.Get("/sessions/:id", handlers.GetSession)
	api.Post("/sessions/:id/next", handlers.NextPage)
	api.Post("/sessions/:id/refresh", handlers.RefreshSession)

	api.Get("/casts/:fid/:hash/tree", handlers.CastTree)
	api.Get("/conversations/:fid", handlers.Conversations)
	api.Get("/stats", handlers.Stats)
}
