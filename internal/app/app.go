package app

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reportcard/internal/handlers"
	"reportcard/internal/metrics"
	"reportcard/internal/uploads"
	u "reportcard/internal/utils"
)

// Deps are the collaborators shared by all requests.
type Deps struct {
	Renderer handlers.Renderer
	Store    uploads.Store
}

// multipart headers and the text fields on top of the photo itself
const formOverheadBytes = 64 * 1024

// SetupApp creates and configures a new Fiber app instance
func SetupApp(cfg u.Config, deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		Prefork:               cfg.Server.Prefork,
		DisableStartupMessage: true,
		BodyLimit:             cfg.Limits.MaxUploadBytes + formOverheadBytes,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			msg := "Internal Server Error"

			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
				msg = e.Message
			}

			u.Warn("Request failed", "path", c.Path(), "status", code, "message", msg)

			return c.Status(code).JSON(fiber.Map{
				"error": fiber.Map{
					"code":    code,
					"message": msg,
				},
			})
		},
	})

	RegisterMiddleware(app, cfg)
	RegisterRoutes(app, cfg, deps)

	// Ensure all responses, including 404s, return JSON
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})

	return app
}

// RegisterRoutes mounts all route handlers to the app
func RegisterRoutes(app *fiber.App, cfg u.Config, deps Deps) {
	svc := handlers.NewReportCardService(cfg, deps.Renderer, deps.Store)

	app.Post("/generate-report-card", svc.HandleGenerate)

	v1 := app.Group("/v1")
	v1.Post("/report-card", svc.HandleGenerate)
	v1.Get("/monitor", monitor.New())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	if cfg.Server.PublicDir != "" {
		app.Static("/", cfg.Server.PublicDir)
	}
}

// metricsMiddleware counts requests by matched route and final status.
func metricsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		status := c.Response().StatusCode()
		var e *fiber.Error
		if errors.As(err, &e) {
			status = e.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}
		metrics.Requests.WithLabelValues(c.Method(), c.Route().Path, strconv.Itoa(status)).Inc()
		return err
	}
}
