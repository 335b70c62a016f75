package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/daribar/best-options-service/config"
	"github.com/daribar/best-options-service/internal/clients"
	"github.com/daribar/best-options-service/internal/handlers"
	"github.com/daribar/best-options-service/internal/pipeline"
	"github.com/daribar/best-options-service/internal/quotes"
	"github.com/daribar/best-options-service/internal/selection"
	"github.com/daribar/best-options-service/internal/storage"
	"github.com/daribar/best-options-service/internal/telemetry"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := initLogger(cfg.Logging)

	logger.Info().Msg("Starting best-options service")

	if cfg.Clients.SearchURL == "" || cfg.Clients.PriceURL == "" {
		logger.Fatal().Msg("URL_SEARCH and URL_PRICE must be set")
	}

	ctx := context.Background()
	telemetryCleanup := telemetry.MustInit(ctx, telemetry.GetConfigFromEnv())

	resolvePipeline, err := buildPipeline(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build resolve pipeline")
	}
	handlers.Init(resolvePipeline)

	if cfg.Logging.Level == "info" || cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	setupMiddleware(router, logger)

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.POST("/best-options", handlers.BestOptions)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := telemetryCleanup(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Telemetry shutdown failed")
	}

	logger.Info().Msg("Server exited")
}

// buildPipeline assembles the resolve pipeline from configuration.
func buildPipeline(cfg *config.Config, logger *zerolog.Logger) (*pipeline.Pipeline, error) {
	searchClient := clients.NewSearchClient(cfg.Clients.SearchURL, cfg.Clients.SearchTimeout)
	pricingClient := clients.NewPricingClient(clients.PricingClientConfig{
		BaseURL:           cfg.Clients.PriceURL,
		Timeout:           cfg.Clients.PriceTimeout,
		RequestsPerSecond: cfg.Clients.PricingRPS,
		Burst:             cfg.Clients.PricingBurst,
	})

	classifier, err := selection.NewClassifier(&cfg.Selection)
	if err != nil {
		return nil, fmt.Errorf("failed to build classifier: %w", err)
	}
	resolver := selection.NewResolver(classifier, &cfg.Selection)
	collector := quotes.NewCollector(pricingClient, cfg.Quotes)

	var snapshots *pipeline.SnapshotWriter
	if cfg.Storage.SnapshotsEnabled {
		backend, err := storage.NewLocalStorage(cfg.Storage.BasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to init snapshot storage: %w", err)
		}
		snapshots = pipeline.NewSnapshotWriter(backend)
		logger.Info().Str("base_path", cfg.Storage.BasePath).Msg("Stage snapshots enabled")
	}

	return pipeline.New(searchClient, collector, resolver, &cfg.Selection, snapshots), nil
}

func initLogger(cfg config.LoggingConfig) *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var output io.Writer
	if cfg.Format == "json" {
		output = os.Stdout
	} else {
		output = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: cfg.NoColor}
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Str("service", "best-options-service").Logger()
	// Component loggers derive from the global logger.
	log.Logger = logger
	return &logger
}

func setupMiddleware(router *gin.Engine, logger *zerolog.Logger) {
	router.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		end := time.Now()
		latency := end.Sub(start)

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", c.Writer.Status()).
			Dur("latency", latency).
			Str("ip", c.ClientIP()).
			Msg("HTTP request")
	})
}
