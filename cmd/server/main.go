// Package main provides the entry point for the paper aggregation service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/synaptica/paper-aggregation-service/internal/config"
	"github.com/synaptica/paper-aggregation-service/internal/csvimport"
	"github.com/synaptica/paper-aggregation-service/internal/database"
	"github.com/synaptica/paper-aggregation-service/internal/fulltext"
	"github.com/synaptica/paper-aggregation-service/internal/observability"
	"github.com/synaptica/paper-aggregation-service/internal/repository"
	httpserver "github.com/synaptica/paper-aggregation-service/internal/server/http"
	"github.com/synaptica/paper-aggregation-service/internal/sources/pmc"
	"github.com/synaptica/paper-aggregation-service/internal/sources/pubmed"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("paper-aggregation-service starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL.
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	// Run migrations if configured.
	if cfg.Database.MigrationAutoRun {
		migrator, err := database.NewMigrator(db, cfg.Database.MigrationPath, logger)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		defer func() {
			if closeErr := migrator.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close migrator")
			}
		}()

		if err := migrator.Up(); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	// Metrics registry.
	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics("paperagg")
	}

	// Repositories.
	paperRepo := repository.NewPgPaperRepository(db)

	// NCBI source clients. Both share the E-utilities etiquette limits
	// from configuration.
	pubmedClient := pubmed.New(pubmed.Config{
		BaseURL:   cfg.Sources.PubMed.BaseURL,
		APIKey:    cfg.Sources.PubMed.APIKey,
		Timeout:   cfg.Sources.PubMed.Timeout,
		RateLimit: cfg.Sources.PubMed.RateLimit,
		BurstSize: cfg.Sources.PubMed.BurstSize,
	})
	pmcClient := pmc.New(pmc.Config{
		BaseURL:   cfg.Sources.PMC.BaseURL,
		Timeout:   cfg.Sources.PMC.Timeout,
		RateLimit: cfg.Sources.PMC.RateLimit,
		BurstSize: cfg.Sources.PMC.BurstSize,
	})

	// Domain services.
	fulltextService := fulltext.NewService(pubmedClient, pmcClient, fulltext.DefaultRetryPolicy(), logger, metrics)
	importer := csvimport.NewImporter(paperRepo, logger, metrics)

	// HTTP REST API server.
	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    5 * time.Minute, // Long timeout for SSE streaming.
		IdleTimeout:     2 * time.Minute,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,

		MaxBodyBytes:      cfg.Import.MaxBodyBytes,
		MaxErrorsReturned: cfg.Import.MaxErrorsReturned,
	}

	httpSrv := httpserver.NewServer(
		httpCfg,
		importer,
		fulltextService,
		pubmedClient,
		paperRepo,
		db,
		logger,
		metrics,
	)

	// Set up Prometheus metrics handler on a separate port if configured.
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
	}

	// Channel to collect server errors.
	errCh := make(chan error, 2)

	// Start HTTP REST API server in background.
	go func() {
		logger.Info().
			Str("address", httpCfg.Address).
			Msg("HTTP REST API server starting")
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Start metrics server if configured.
	if metricsServer != nil {
		go func() {
			logger.Info().
				Str("address", metricsServer.Addr).
				Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	readyLog := logger.Info().Str("http_address", httpCfg.Address)
	if metricsServer != nil {
		readyLog = readyLog.Str("metrics_address", metricsServer.Addr)
	}
	readyLog.Msg("paper-aggregation-service is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	// Graceful shutdown.
	logger.Info().Msg("shutting down paper-aggregation-service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	logger.Info().Msg("paper-aggregation-service shutdown complete")
	return nil
}
