package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/agentation/agentation-server/pkg/config"
	"github.com/agentation/agentation-server/pkg/database"
	"github.com/agentation/agentation-server/pkg/events"
	"github.com/agentation/agentation-server/pkg/handlers"
	mcpserver "github.com/agentation/agentation-server/pkg/mcp"
	"github.com/agentation/agentation-server/pkg/middleware"
	"github.com/agentation/agentation-server/pkg/repositories"
	"github.com/agentation/agentation-server/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.String("database", cfg.Database.Path),
		zap.Int("webhooks", len(cfg.WebhookURLs)))

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	bus := events.NewBus(logger)
	defer bus.Close()

	sessionRepo := repositories.NewSessionRepository(db)
	annotationRepo := repositories.NewAnnotationRepository(db)

	sessionService := services.NewSessionService(sessionRepo, annotationRepo, logger)
	annotationService := services.NewAnnotationService(annotationRepo, bus, logger)
	broker := services.NewActionBroker(bus, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	webhooks := services.NewWebhookDispatcher(bus, cfg.WebhookURLs, logger)
	if err := webhooks.Start(ctx); err != nil {
		logger.Fatal("Failed to start webhook dispatcher", zap.Error(err))
	}

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(cfg, logger)
	healthHandler.RegisterRoutes(mux)

	sessionsHandler := handlers.NewSessionsHandler(sessionService, annotationService, broker, logger)
	sessionsHandler.RegisterRoutes(mux)

	annotationsHandler := handlers.NewAnnotationsHandler(annotationService, logger)
	annotationsHandler.RegisterRoutes(mux)

	mcpSrv := mcpserver.NewServer(mcpserver.Deps{
		Version:           cfg.Version,
		DB:                db,
		SessionService:    sessionService,
		AnnotationService: annotationService,
		Broker:            broker,
		DefaultWait:       time.Duration(cfg.Actions.WaitTimeoutMs) * time.Millisecond,
	}, logger)
	mux.Handle("/mcp", mcpSrv.Handler())

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting agentation server",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

// newLogger picks a zap config for the environment.
func newLogger(env string) (*zap.Logger, error) {
	if env == "local" || env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
