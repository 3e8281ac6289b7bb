package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"logistics-backend/internal/config"
	"logistics-backend/internal/database"
	"logistics-backend/internal/logger"
	"logistics-backend/internal/metrics"
	"logistics-backend/internal/middleware"
)

// New builds the Fiber app with the middleware chain and every route registered.
func New(cfg *config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "logistics-backend",
		BodyLimit:    10 * 1024 * 1024,
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: cfg.IsDevelopment()}))
	app.Use(requestid.New())
	app.Use(middleware.Tracing())
	app.Use(middleware.RequestLogger())
	app.Use(metrics.Middleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	app.Get("/health", healthHandler)
	app.Get("/metrics", metrics.Handler())

	registerRoutes(app, cfg)
	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	logger.Error(c.UserContext()).Err(err).Str("path", c.Path()).Msg("unexpected error")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "unexpected server error"})
}

func healthHandler(c *fiber.Ctx) error {
	if err := database.Ping(); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":   "unavailable",
			"database": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"status": "ok", "database": "ok"})
}
