// Package main provides the entry point for the sommelier worker service.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vintry/sommelier/internal/config"
	"github.com/vintry/sommelier/internal/worker"
)

var Version = "dev"

func main() {
	settingsPath := flag.String("settings", "settings.yaml", "path to the settings file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Info().
		Str("version", Version).
		Msg("starting sommelier worker")

	cfg, err := config.Load(*settingsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	svc, err := worker.NewService(cfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create service")
	}

	// Serve until a shutdown signal arrives
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Start(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("service failed")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	cancel()

	if err := svc.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}

	log.Info().Msg("worker shutdown complete")
}
