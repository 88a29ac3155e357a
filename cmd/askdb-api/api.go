// Package main provides the AskDB API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/askdb/askdb/pkg/permissions"
	"github.com/askdb/askdb/pkg/schema"
	"github.com/askdb/askdb/pkg/web"
	"github.com/askdb/askdb/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger   *slog.Logger
	engine   *workflow.Engine
	schema   *schema.Provider
	gate     *permissions.Gate
	validate *validator.Validate
}

func NewAPI(logger *slog.Logger, engine *workflow.Engine, schemaProvider *schema.Provider, gate *permissions.Gate) *API {
	return &API{
		logger:   logger,
		engine:   engine,
		schema:   schemaProvider,
		gate:     gate,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.engine, a.schema, a.gate, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("AskDB API")
	})

	q := app.Group("/queries")
	q.Post("/", handlers.CreateQuery)
	q.Post("/:id/confirm", handlers.ConfirmQuery)

	app.Get("/schema", handlers.GetSchema)
	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
