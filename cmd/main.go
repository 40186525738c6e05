package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kumarabd/gokit/logger"
	"github.com/kumarabd/ingestion-plane/logcontract/internal/config"
	"github.com/kumarabd/ingestion-plane/logcontract/internal/metrics"
	"github.com/kumarabd/ingestion-plane/logcontract/pkg/cache"
	"github.com/kumarabd/ingestion-plane/logcontract/pkg/contract"
	"github.com/kumarabd/ingestion-plane/logcontract/pkg/server"
	"github.com/kumarabd/ingestion-plane/logcontract/pkg/source"
)

// main is the entry point of the application
func main() {
	os.Exit(run())
}

func run() int {
	// Initialize a new logger with the application name and syslog format
	log, err := logger.New(config.ApplicationName, logger.Options{
		Format: logger.SyslogLogFormat,
	})
	if err != nil {
		fmt.Println(err)
		return 1
	}

	configHandler, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("")
		return 1
	}

	metricsHandler, err := metrics.New(config.ApplicationName)
	if err != nil {
		fmt.Println(err)
		return 1
	}

	cacheHandler, err := cache.New(&cache.Options{TTL: configHandler.Contract.CacheTTL})
	if err != nil {
		log.Error().Err(err).Msg("cache initialization failed")
		return 1
	}

	checker, err := contract.NewChecker(configHandler.Contract, log, metricsHandler, cacheHandler)
	if err != nil {
		log.Error().Err(err).Msg("checker initialization failed")
		return 1
	}
	log.Info().Str("generation", configHandler.Contract.Generation).Str("mode", string(configHandler.Mode)).Msg("checker initialized")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch configHandler.Mode {
	case config.ModeServe:
		return serve(ctx, log, metricsHandler, configHandler, checker)
	default:
		return check(ctx, log, metricsHandler, configHandler, checker)
	}
}

// check runs once over the configured source and returns the exit code
func check(ctx context.Context, log *logger.Handler, metricsHandler *metrics.Handler, cfg *config.Config, checker *contract.Checker) int {
	lines, err := source.ReadLines(cfg.Source)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.Source.Path).Msg("reading log lines failed")
		return 1
	}

	report, runErr := checker.RunLines(ctx, lines)

	if cfg.Metrics != nil && cfg.Metrics.Textfile != "" {
		if err := metricsHandler.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			log.Error().Err(err).Msg("metrics export failed")
		}
	}

	if runErr != nil {
		log.Error().Err(runErr).Msg("check aborted")
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		log.Error().Err(err).Msg("writing report failed")
		return 1
	}

	if !report.Passed() {
		log.Error().Int("failures", report.FailureCount()).Msg("log contract violated")
		return 1
	}
	return 0
}

// serve runs the HTTP check surface until the process is signalled
func serve(ctx context.Context, log *logger.Handler, metricsHandler *metrics.Handler, cfg *config.Config, checker *contract.Checker) int {
	srv, err := server.New(log, metricsHandler, cfg.Server, checker)
	if err != nil {
		log.Error().Err(err).Msg("server initialization failed")
		return 1
	}
	log.Info().Msg("server initialized")

	ch := make(chan struct{}, 1)
	srv.Start(ch)

	select {
	case <-ch:
		log.Info().Msg("server stopped")
		return 1
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
		return 1
	}
	<-ch
	log.Info().Msg("server stopped")
	return 0
}
