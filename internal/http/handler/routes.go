package handler

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"

	"patientdocs/docs"
	"patientdocs/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Handlers only translate between HTTP and the service layer.
func RegisterRoutes(app *fiber.App, db *sql.DB, docSvc service.DocumentService) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	app.Get("/documents", ListDocuments(docSvc))
	app.Post("/documents/upload", UploadDocument(docSvc))
	app.Get("/documents/:id", DownloadDocument(docSvc))
	app.Delete("/documents/:id", DeleteDocument(docSvc))
}

// RegisterDocs serves the Swagger UI and doc.json under /swagger.
// Host and schemes stay empty so the UI targets whichever host served the page.
func RegisterDocs(app *fiber.App) {
	docs.SwaggerInfo.Host = ""
	docs.SwaggerInfo.Schemes = nil
	app.Get("/swagger/*", swagger.HandlerDefault)
}

// HealthCheck checks DB connectivity only.
//
// @Summary  Readiness probe
// @Tags     health
// @Produce  json
// @Success  200 {object} map[string]string
// @Failure  503 {object} errorPayload
// @Router   /health [get]
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			logFor(c).Warn().Err(err).Msg("health check failed")
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", msgDependencyDown)
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe answers 200 as long as the process serves requests.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}
