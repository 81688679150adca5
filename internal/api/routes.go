package api

import (
	"github.com/bilgisen/redflag-cms/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

type RouteConfig struct {
	// AdminAPIKey protects every endpoint except health. Empty disables the
	// check, which config only allows outside production.
	AdminAPIKey   string
	AllowedEmails []string
}

// SetupRoutes configures all the routes for the application
func SetupRoutes(app *fiber.App, h *Handlers, cfg RouteConfig) {
	app.Use(recover.New())
	app.Use(middleware.RequestLogger())

	// API group with versioning
	api := app.Group("/api/v1")

	api.Get("/health", h.HealthCheck)

	protected := []fiber.Handler{middleware.AllowedEmails(cfg.AllowedEmails)}
	if cfg.AdminAPIKey != "" {
		protected = append([]fiber.Handler{middleware.APIKey(cfg.AdminAPIKey)}, protected...)
	}

	articles := api.Group("/articles", protected...)
	{
		articles.Get("", h.ListArticles)
		articles.Post("", h.CreateArticle)
		articles.Get("/:slug", h.GetArticle)
		articles.Patch("/:slug", h.UpdateArticle)
		articles.Delete("/:slug", h.DeleteArticle)
	}

	images := api.Group("/images", protected...)
	{
		images.Get("", h.ListImages)
		images.Post("", h.UploadImage)
	}

	publish := api.Group("/publish", protected...)
	{
		publish.Get("/status", h.PublishStatus)
		publish.Post("", h.TriggerPublish)
	}

	// 404 Handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Endpoint not found",
		})
	})
}
