package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sgcarstrends/sgcarstrends-sub001/internal/app"
	"github.com/sgcarstrends/sgcarstrends-sub001/internal/config"
	"github.com/sgcarstrends/sgcarstrends-sub001/internal/logger"
	"github.com/sgcarstrends/sgcarstrends-sub001/internal/updater"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default $CONFIG_PATH or config.yaml)")
	table := flag.String("table", "", "update only this table")
	migrate := flag.Bool("migrate", true, "run database migrations first")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, *migrate)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise updater")
	}
	defer a.Close()

	var results []updater.Result
	if *table != "" {
		var res updater.Result
		res, err = a.Runner.RunTable(ctx, *table)
		if err == nil {
			results = append(results, res)
		}
	} else {
		results, err = a.Runner.RunAll(ctx)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(results); encErr != nil {
		log.Error().Err(encErr).Msg("Failed to write results")
	}

	if err != nil {
		log.Error().Err(err).Msg("Update finished with errors")
		_ = a.Close()
		os.Exit(1)
	}
}
