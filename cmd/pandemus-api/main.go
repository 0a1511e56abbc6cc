package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"pandemus/internal/api"
	"pandemus/internal/config"
	"pandemus/internal/epidemic"
	"pandemus/internal/events"
	"pandemus/internal/metrics"
	"pandemus/internal/profiles"
	"pandemus/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	logger.Info("Starting Pandemus API",
		"http_addr", cfg.HTTPAddr,
		"store_driver", cfg.StoreDriver,
		"nats_url", cfg.NATSURL,
		"profiles_file", cfg.ProfilesFile,
		"factor_mode", cfg.FactorMode)

	factorMode, err := epidemic.ParseFactorMode(cfg.FactorMode)
	if err != nil {
		logger.Error("Invalid factor mode", "error", err)
		os.Exit(1)
	}

	// Load disease profiles
	loader, err := profiles.NewLoader(cfg.ProfilesFile, logger)
	if err != nil {
		logger.Error("Failed to create profile loader", "error", err)
		os.Exit(1)
	}
	catalog, err := loader.Load()
	if err != nil {
		logger.Error("Failed to load profiles", "error", err)
		os.Exit(1)
	}
	logger.Info("Profiles loaded", "profiles", catalog.Names())

	// Initialize store
	simStore, err := openStore(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer simStore.Close()
	logger.Info("Store initialized", "driver", cfg.StoreDriver)

	// Initialize metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(registry)

	// Connect to NATS when configured
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("pandemus-api"))
		if err != nil {
			logger.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer nc.Drain()
		publisher = nc
		logger.Info("Connected to NATS", "url", cfg.NATSURL)
	}
	notifier := events.NewNotifier(publisher, m, logger)

	handler, err := api.NewHandler(simStore, catalog, notifier, m, logger,
		api.WithGatherer(registry),
		api.WithFactorMode(factorMode))
	if err != nil {
		logger.Error("Failed to create API handler", "error", err)
		os.Exit(1)
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start HTTP server in a goroutine
	go func() {
		logger.Info("Starting HTTP server", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down Pandemus API")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown HTTP server gracefully", "error", err)
	}

	logger.Info("Pandemus API stopped")
}

func openStore(cfg *config.Config, logger *slog.Logger) (store.SimulationStore, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		return store.NewPostgresStore(cfg.PGHost, cfg.PGPort, cfg.PGUser, cfg.PGPass, cfg.PGDB, logger)
	case config.StoreSQLite:
		return store.NewSQLiteStore(cfg.SQLitePath, logger)
	default:
		return store.NewMemoryStore(cfg.MemoryCapacity, logger)
	}
}
