package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/run"

	"github.com/nm90/educational-mvc-sub001/internal/config"
	"github.com/nm90/educational-mvc-sub001/internal/handler"
	"github.com/nm90/educational-mvc-sub001/internal/pkg/logger"
	"github.com/nm90/educational-mvc-sub001/internal/repository"
	"github.com/nm90/educational-mvc-sub001/internal/service"
	"github.com/nm90/educational-mvc-sub001/internal/tracing"
)

func main() {
	// 0. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 1. Initialize Logger
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	// 2. Initialize Persistence
	db, err := repository.NewDB(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	logger.Info("Connected to database", "driver", db.Driver())

	gdb, err := repository.NewGorm(db)
	if err != nil {
		log.Fatalf("Failed to initialize gorm: %v", err)
	}

	userRepo := repository.NewUserRepo(gdb)
	taskRepo := repository.NewTaskRepo(db)

	ctx := context.Background()
	if err := repository.Migrate(ctx, userRepo, taskRepo); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	if cfg.Database.Seed {
		if err := repository.Seed(ctx, userRepo, taskRepo); err != nil {
			log.Fatalf("Failed to seed database: %v", err)
		}
	}

	// 3. Initialize Services
	userSvc := service.NewUserService(userRepo)
	taskSvc := service.NewTaskService(taskRepo, userSvc)

	registry := tracing.NewRegistry(
		tracing.WithMaxValueLength(cfg.Tracing.MaxValueLength),
		tracing.WithRedactedKeys(cfg.Tracing.RedactKeys...),
	)

	// 4. Initialize Handlers
	presenter := handler.NewPresenter(cfg.Tracing)
	handlers := handler.Handlers{
		Tasks:     handler.NewTaskHandler(taskSvc, userSvc, presenter),
		Users:     handler.NewUserHandler(userSvc, taskSvc, presenter),
		Health:    handler.NewHealthHandler(db),
		Presenter: presenter,
	}

	// 5. Setup Router
	gin.SetMode(cfg.Server.Mode)
	r := gin.Default()
	if err := handler.Setup(r, cfg, registry, handlers); err != nil {
		log.Fatalf("Failed to set up routes: %v", err)
	}

	// 6. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var g run.Group
	{
		g.Add(func() error {
			logger.Info("Task board started", "port", cfg.Server.Port, "tracing", cfg.Tracing.Enabled)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		}, func(error) {
			logger.Info("Shutting down server...")
			timeout := time.Duration(cfg.Server.ShutdownTimeoutSeconds) * time.Second
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("Server forced to shutdown", "error", err)
			}
		})
	}
	{
		g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))
	}

	if err := g.Run(); err != nil {
		var sig run.SignalError
		if !errors.As(err, &sig) {
			logger.Error("Server stopped", "error", err)
			os.Exit(1)
		}
	}

	if n := registry.Live(); n > 0 {
		logger.Warn("Request traces still open at exit", "count", n)
	}
	logger.Info("Server exiting")
}
