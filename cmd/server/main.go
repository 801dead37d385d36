package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bagelworks/meanvar/internal/config"
	"github.com/bagelworks/meanvar/internal/database"
	"github.com/bagelworks/meanvar/internal/history"
	"github.com/bagelworks/meanvar/internal/modules/optimization"
	"github.com/bagelworks/meanvar/internal/scheduler"
	"github.com/bagelworks/meanvar/internal/server"
	"github.com/bagelworks/meanvar/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info"})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting meanvar service")

	// Initialize database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Wire up modules
	historyRepo := history.NewRepository(db, log)
	historyHandler := history.NewHandler(historyRepo, log)

	optimizationService := optimization.NewService(historyRepo, optimization.Config{
		RiskFreeRate: cfg.RiskFreeRate,
		LookbackDays: cfg.LookbackDays,
	}, log)
	optimizationHandler := optimization.NewHandler(optimizationService, log)

	// Schedule the background MVP recompute
	sched := scheduler.New(log)
	recompute := optimization.NewRecomputeJob(optimizationService, log)
	if err := sched.AddJob(cfg.RecomputeSchedule, recompute); err != nil {
		log.Fatal().Err(err).Msg("Failed to register recompute job")
	}
	sched.Start()
	defer sched.Stop()

	// Prime the cache at startup; an empty price store is not fatal.
	if err := sched.RunNow(recompute); err != nil {
		log.Warn().Err(err).Msg("Initial recompute failed")
	}

	// Initialize HTTP server
	srv := server.New(server.Config{
		Port:         cfg.Port,
		Log:          log,
		DevMode:      cfg.DevMode,
		Optimization: optimizationHandler,
		History:      historyHandler,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
}
