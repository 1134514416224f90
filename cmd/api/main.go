package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/sgcarstrends/sgcarstrends-sub001/internal/api"
	"github.com/sgcarstrends/sgcarstrends-sub001/internal/app"
	"github.com/sgcarstrends/sgcarstrends-sub001/internal/config"
	"github.com/sgcarstrends/sgcarstrends-sub001/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default $CONFIG_PATH or config.yaml)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.Get()

	log.Info().Str("env", cfg.App.Env).Msg("Starting API server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, true)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise updater")
	}
	defer a.Close()

	if err := a.Runner.Start(ctx, a.Schedules); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	handler := api.NewHandler(a.Runner, cfg.App.Name, log)
	router := api.NewRouter(handler, log)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// In-flight updates get the rest of the shutdown window, then are cancelled.
	a.Runner.Stop(shutdownCtx)
	cancel()

	log.Info().Msg("Server exited")
}
