package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/deployhook/internal/config"
	"github.com/tjfontaine/deployhook/internal/project"
	"github.com/tjfontaine/deployhook/internal/runtime"
	"github.com/tjfontaine/deployhook/internal/telemetry"
)

// shutdownGrace is added to deploy.timeout when draining in-flight deployments.
const shutdownGrace = 30 * time.Second

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		log.Fatalf("Invalid log.level %q: %v", cfg.Log.Level, err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer("deployhook", nil, logger)
		if err != nil {
			log.Fatalf("Failed to initialize tracer: %v", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
			}
		}()
	}

	projects, err := config.LoadProjects(cfg.Projects.File)
	if err != nil {
		log.Fatalf("Failed to load projects: %v", err)
	}
	store := project.NewStore(projects)
	logger.Info("projects loaded",
		slog.String("file", cfg.Projects.File),
		slog.Any("projects", store.Names()),
	)

	svc, err := runtime.New(
		runtime.WithConfig(cfg),
		runtime.WithProjects(store),
		runtime.WithLogger(logger),
	)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.Start(ctx); err != nil {
		log.Fatalf("Failed to start service: %v", err)
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("received signal", slog.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Deploy.Timeout+shutdownGrace)
	defer shutdownCancel()

	if err := svc.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
