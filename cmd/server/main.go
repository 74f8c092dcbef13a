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

	"github.com/joho/godotenv"
	"github.com/maneesh/discloud/internal/catalog"
	"github.com/maneesh/discloud/internal/chunker"
	"github.com/maneesh/discloud/internal/config"
	"github.com/maneesh/discloud/internal/handlers"
	"github.com/maneesh/discloud/internal/logging"
	"github.com/maneesh/discloud/internal/metrics"
	"github.com/maneesh/discloud/internal/service"
	"github.com/maneesh/discloud/internal/tracing"
)

func main() {
	// A missing .env is fine; real deployments use the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := logging.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	logging.Infow("Starting discloud service",
		"service", cfg.ServiceName,
		"port", cfg.ServicePort,
		"catalog", cfg.CatalogBackend,
		"transport", cfg.TransportBackend,
	)

	shutdownTracer, err := tracing.InitTracer(cfg.TracingEnabled, cfg.ServiceName, cfg.JaegerEndpoint)
	if err != nil {
		logging.Fatal("Failed to initialize tracer", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			logging.Error("Error shutting down tracer", err)
		}
	}()

	store, err := openStore(cfg)
	if err != nil {
		logging.Fatal("Failed to initialize catalog store", err)
	}
	defer store.Close()
	logging.Info("Catalog store initialized")

	tr, fetcher, err := openTransport(cfg)
	if err != nil {
		logging.Fatal("Failed to initialize transport", err)
	}
	logging.Info("Transport initialized")

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	reconciler := catalog.NewReconciler(store, tr, catalog.NewIndex(), m)
	deps := service.Deps{
		Store:      store,
		Transport:  tr,
		Fetcher:    fetcher,
		Reconciler: reconciler,
		Metrics:    m,
		ChannelID:  cfg.ChannelID(),
	}
	folders := service.NewFolders(deps)
	router := handlers.NewRouter(handlers.Services{
		Reconciler:  reconciler,
		Uploader:    service.NewUploader(deps, folders, chunker.NewChunker(cfg.GetChunkSizeBytes())),
		Downloader:  service.NewDownloader(deps),
		Deleter:     service.NewDeleter(deps),
		Folders:     folders,
		IndexMaxAge: cfg.IndexMaxAge,
		Metrics:     m,
	})

	// WriteTimeout stays zero: large uploads stream progress for minutes.
	srv := &http.Server{
		Addr:        ":" + cfg.ServicePort,
		Handler:     router,
		ReadTimeout: 10 * time.Minute,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logging.Infof("Server listening on port %s", cfg.ServicePort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal("Server failed", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", err)
	}

	logging.Info("Server exited")
}
