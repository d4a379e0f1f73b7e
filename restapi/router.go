// Package restapi provides the main router for the REST API endpoints.
package restapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"
	"github.com/ortelius/pdvd-reposcan/restapi/modules/auth"
	"github.com/ortelius/pdvd-reposcan/restapi/modules/scans"
	"go.uber.org/zap"
)

// Options carries what the routes need besides the handlers themselves
type Options struct {
	AuthDisabled bool
	Verifier     *auth.Verifier
	Logger       *zap.Logger
}

// SetupRoutes configures all REST API routes and the GraphQL endpoint under /api/v1.
func SetupRoutes(app *fiber.App, h *scans.Handlers, schema graphql.Schema, opts Options) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	requireAuth := auth.RequireAuth(opts.AuthDisabled, opts.Verifier, logger)

	api := app.Group("/api/v1")

	// Probes
	api.Get("/readiness", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{})
	})
	api.Get("/liveness", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{})
	})

	api.Post("/register", h.Register)

	api.Post("/scan", requireAuth, h.PostScan)
	api.Get("/scan/:request_id", requireAuth, h.GetScan)
	api.Get("/report", requireAuth, h.GetReport)

	api.Post("/graphql", requireAuth, GraphQLHandler(schema))

	logger.Info("API routes initialized successfully")
}
