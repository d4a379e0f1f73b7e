// Package api builds the Fiber application serving the REST and GraphQL routes.
package api

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/ortelius/pdvd-reposcan/config"
	"github.com/ortelius/pdvd-reposcan/graphql"
	"github.com/ortelius/pdvd-reposcan/graphql/modules/reports"
	"github.com/ortelius/pdvd-reposcan/restapi"
	"github.com/ortelius/pdvd-reposcan/restapi/modules/auth"
	"github.com/ortelius/pdvd-reposcan/restapi/modules/scans"
	"go.uber.org/zap"
)

// NewFiberApp creates and configures a Fiber app with REST and GraphQL routes
func NewFiberApp(cfg config.Config, h *scans.Handlers, source reports.Source, log *zap.Logger) (*fiber.App, error) {
	schema, err := graphql.CreateSchema(source)
	if err != nil {
		return nil, fmt.Errorf("failed to create GraphQL schema: %w", err)
	}

	var verifier *auth.Verifier
	if !cfg.Auth.Disabled {
		verifier, err = auth.NewVerifier(cfg.Auth.PublicKey, cfg.Auth.Audiences)
		if err != nil {
			return nil, err
		}
	}

	app := fiber.New(fiber.Config{
		AppName:     "pdvd-reposcan API v1.0",
		BodyLimit:   50 * 1024 * 1024, // 50MB
		ReadTimeout: 60 * time.Second,
	})

	// Middleware
	app.Use(fiberrecover.New())
	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))
	app.Use(cors.New())
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("graphql_op", "-")
		return c.Next()
	})
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} - ${latency} ${method} ${path} ${locals:graphql_op}\n",
	}))

	// Health check endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	restapi.SetupRoutes(app, h, schema, restapi.Options{
		AuthDisabled: cfg.Auth.Disabled,
		Verifier:     verifier,
		Logger:       log,
	})

	return app, nil
}
