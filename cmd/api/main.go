package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"patientdocs/internal/config"
	"patientdocs/internal/database"
	"patientdocs/internal/database/migration"
	handlers "patientdocs/internal/http/handler"
	"patientdocs/internal/http/middleware"
	"patientdocs/internal/logger"
	"patientdocs/internal/otel"
	"patientdocs/internal/repository/sqlrepo"
	"patientdocs/internal/service"
	"patientdocs/internal/storage"
)

// @title Patient Documents API
// @version 1.0
// @description Upload, list, download and delete PDF documents.
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	log, closeLog := logger.New(cfg.Log, cfg.Location())
	defer closeLog()

	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		closeLog()
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, log)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown failed")
		}
	}()

	// Open the relational store (SQLite by default, PostgreSQL when DB_DRIVER=postgres)
	db, dialect, err := database.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, dialect, database.Describe(cfg.Database), log); err != nil {
		return err
	}

	// Blob storage: local directory by default, MinIO when STORAGE_DRIVER=minio
	objStore, err := storage.New(cfg)
	if err != nil {
		return err
	}

	docRepo := sqlrepo.NewDocumentSQL(db, dialect)
	docSvc := service.NewDocumentService(objStore, docRepo,
		service.WithLogger(log.With().Str("component", "document_service").Logger()),
		service.WithKeyPrefix(cfg.Storage.KeyPrefix),
		service.WithContentSniffing(cfg.Upload.SniffContent),
	)

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(),
		BodyLimit:             int(cfg.Upload.MaxBytes),
		DisableStartupMessage: true,
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	promMiddleware, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return err
	}

	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	app.Use(otelfiber.Middleware())
	app.Use(middleware.Logger(log))
	app.Use(promMiddleware.Handler())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.CORS.AllowOrigins,
		ExposeHeaders: strings.Join([]string{middleware.RequestIDHeader, handlers.TotalCountHeader, fiber.HeaderContentDisposition}, ","),
	}))

	handlers.RegisterRoutes(app, db, docSvc)
	app.Get(middleware.MetricsPath, adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	handlers.RegisterDocs(app)

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", addr).
			Str("db", database.Describe(cfg.Database)).
			Str("storage", cfg.Storage.Driver).
			Msg("server listening")
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(sctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
