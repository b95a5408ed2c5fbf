package web

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

// NewApp wires the routes onto a fiber application.
func NewApp(handlers *APIHandlers) *fiber.App {
	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Polytrans API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Put("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/duplicate", handlers.DuplicateWorkflow)
	w.Post("/:id/run", handlers.RunWorkflow)

	app.Get("/executions/:id", handlers.GetExecution)

	app.Post("/events/translation-completed", handlers.NotifyTranslationCompleted)

	a := app.Group("/assistants")
	a.Get("/", handlers.GetAssistants)
	a.Post("/", handlers.SaveAssistant)
	a.Get("/:id", handlers.GetAssistant)
	a.Put("/:id", handlers.SaveAssistant)
	a.Delete("/:id", handlers.DeleteAssistant)

	app.Get("/health", handlers.HealthCheck)

	return app
}
