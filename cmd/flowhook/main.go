package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/telhawk-systems/flowhook/common/logging"
	"github.com/telhawk-systems/flowhook/common/messaging"
	"github.com/telhawk-systems/flowhook/common/middleware"
	"github.com/telhawk-systems/flowhook/internal/config"
	"github.com/telhawk-systems/flowhook/internal/dispatch"
	"github.com/telhawk-systems/flowhook/internal/handlers"
	"github.com/telhawk-systems/flowhook/internal/logstore"
	"github.com/telhawk-systems/flowhook/internal/normalizer"
	"github.com/telhawk-systems/flowhook/internal/ratelimit"
	"github.com/telhawk-systems/flowhook/internal/repository"
	"github.com/telhawk-systems/flowhook/internal/server"
	"github.com/telhawk-systems/flowhook/internal/service"
	"github.com/telhawk-systems/flowhook/internal/wsstats"

	natsclient "github.com/telhawk-systems/flowhook/common/messaging/nats"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("flowhook"))
	logging.SetDefault(logger)

	slog.Info("Starting flowhook",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Logging.Level),
		slog.String("log_format", cfg.Logging.Format),
		slog.Int("log_capacity", cfg.Ingestion.LogCapacity),
	)
	if *configPath != "" {
		slog.Info("Loaded configuration", slog.String("config_path", *configPath))
	}

	// Bounded logs live for the lifetime of this process.
	webhookLogs := logstore.New(cfg.Ingestion.LogCapacity)
	apiCallLogs := logstore.New(cfg.Ingestion.LogCapacity)

	opts := []service.Option{service.WithLogger(logger)}

	// Initialize rate limiter
	var rateLimiter ratelimit.RateLimiter = &ratelimit.NoOpRateLimiter{}
	if cfg.Redis.Enabled && cfg.Ingestion.RateLimitEnabled {
		limiter, err := ratelimit.NewRedisRateLimiter(
			cfg.Redis.URL,
			cfg.Ingestion.RateLimitRequests,
			cfg.Ingestion.RateLimitWindow,
		)
		if err != nil {
			slog.Warn("Failed to initialize Redis rate limiter, continuing without rate limiting",
				logging.Error(err))
		} else {
			rateLimiter = limiter
			slog.Info("Rate limiting enabled",
				slog.Int("requests", cfg.Ingestion.RateLimitRequests),
				slog.Duration("window", cfg.Ingestion.RateLimitWindow))
		}
	} else {
		slog.Info("Rate limiting disabled",
			slog.Bool("redis_enabled", cfg.Redis.Enabled),
			slog.Bool("rate_limit_enabled", cfg.Ingestion.RateLimitEnabled))
	}
	defer rateLimiter.Close()

	// Initialize workspace stats collector
	if cfg.Redis.Enabled && cfg.Stats.Enabled {
		hostname, _ := os.Hostname()
		instanceID := fmt.Sprintf("%s-%d", hostname, os.Getpid())

		statsClient, err := wsstats.NewClient(cfg.Redis.URL, instanceID)
		if err != nil {
			slog.Warn("Failed to initialize workspace stats, usage will not be collected",
				logging.Error(err))
		} else {
			collector := wsstats.NewCollector(statsClient, cfg.Stats.FlushInterval, logger.Logger)
			defer statsClient.Close()
			defer collector.Stop()
			opts = append(opts, service.WithStats(collector, statsClient))
			slog.Info("Workspace stats enabled",
				slog.Duration("flush_interval", cfg.Stats.FlushInterval),
				slog.String("instance", instanceID))
		}
	}

	// Initialize durable history
	if cfg.Database.URL != "" {
		if cfg.Database.AutoMigrate {
			if err := repository.RunMigrations(cfg.Database.URL); err != nil {
				log.Fatalf("Failed to run migrations: %v", err)
			}
			slog.Info("Database migrations completed")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		repo, err := repository.NewPostgresRepository(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		cancel()
		if err != nil {
			log.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}
		defer repo.Close()
		opts = append(opts, service.WithRepository(repo))
		slog.Info("Durable log history enabled")
	} else {
		slog.Info("Database not configured - durable log history disabled")
	}

	// Initialize flow dispatch
	var broker messaging.Client
	if cfg.NATS.Enabled {
		broker = connectBroker(cfg.NATS, logger.Logger)
		defer broker.Drain()
		opts = append(opts, service.WithDispatcher(dispatch.NewPublisher(broker)))
		slog.Info("Flow dispatch enabled",
			slog.String("nats_url", cfg.NATS.URL),
			slog.Bool("jetstream", cfg.NATS.JetStream))
	} else {
		slog.Info("NATS disabled - events will not be dispatched to the flow engine")
	}

	ingestService := service.NewIngestService(normalizer.New(), webhookLogs, apiCallLogs, opts...)

	// Initialize HTTP handlers
	handlerOpts := []handlers.Option{
		handlers.WithRateLimiter(rateLimiter),
		handlers.WithLogger(logger),
		handlers.WithMaxBodySize(cfg.Ingestion.MaxBodySize),
	}
	if broker != nil {
		handlerOpts = append(handlerOpts, handlers.WithBroker(broker))
	}
	handler := handlers.NewHandler(ingestService, handlerOpts...)

	router := server.NewRouter(handler, middleware.CORSConfig{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", middleware.RequestIDHeader},
		MaxAge:         cfg.CORS.MaxAge,
	}, logger.Logger)

	// Create server with config values
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		slog.Info("flowhook listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", logging.Error(err))
	}

	slog.Info("Server stopped")
}

func connectBroker(cfg config.NATSConfig, logger *slog.Logger) messaging.Client {
	natsCfg := natsclient.Config{
		URL:           cfg.URL,
		Name:          cfg.Name,
		MaxReconnects: cfg.MaxReconnects,
		ReconnectWait: cfg.ReconnectWait,
		Timeout:       cfg.Timeout,
	}

	if !cfg.JetStream {
		client, err := natsclient.NewClient(natsCfg, logger)
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		return client
	}

	js, err := natsclient.NewJetStreamClient(natsCfg, logger)
	if err != nil {
		log.Fatalf("Failed to connect to NATS JetStream: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := js.CreateOrUpdateStream(ctx, natsclient.FlowsInboundStream); err != nil {
		log.Fatalf("Failed to initialize %s stream: %v", natsclient.FlowsInboundStream.Name, err)
	}
	return js
}
