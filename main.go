package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"footage-indexer/internal/database"
	"footage-indexer/internal/handlers"
	"footage-indexer/internal/logging"
	"footage-indexer/internal/metrics"
	"footage-indexer/internal/middleware"
	"footage-indexer/internal/pipeline"
	"footage-indexer/internal/resources"
	"footage-indexer/internal/scanner"
	"footage-indexer/internal/scheduler"
	"footage-indexer/internal/startup"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()
	ctx := context.Background()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	if err := startup.CheckFFprobe(); err != nil {
		logging.Warn("ffprobe not available, videos will fail probing: %v", err)
	}

	metrics.InitializeMetrics()

	// Initialize catalog store
	catalogStart := time.Now()
	catalog, err := database.OpenCatalogStore(ctx, config.CatalogPath)
	if err != nil {
		startup.LogFatal("Failed to open catalog store: %v", err)
	}
	defer catalog.Close()
	startup.LogCatalogInit(time.Since(catalogStart))

	// Initialize scheduler around the per-video pipeline
	sched := scheduler.New(pipeline.New(), config.Mode)
	startup.LogSchedulerInit(config.Mode, sched.ConcurrencyInfo().Max)

	// Resource sampler feeds the scheduler's permit ceiling
	samplerStop := make(chan struct{})
	sampler := resources.NewSampler()
	go sampler.Watch(config.ResourceSampleInterval, samplerStop, sched.Apply)

	// Open one store and scanner per watched folder
	var folders []*handlers.Folder
	var scanners []*scanner.Scanner
	for _, folderPath := range config.Folders {
		store, err := database.OpenFolderStore(ctx, config.FolderStorePath(folderPath))
		if err != nil {
			startup.LogFatal("Failed to open store for %s: %v", folderPath, err)
		}
		defer store.Close()

		sc := scanner.New(store, catalog, sched, scanner.Config{
			FolderPath:      folderPath,
			ScanInterval:    config.ScanInterval,
			CleanupInterval: config.CleanupInterval,
			RetentionDays:   config.RetentionDays,
			SkipSTT:         config.SkipSTT,
		})
		if err := sc.Open(ctx); err != nil {
			startup.LogFatal("Failed to open folder %s: %v", folderPath, err)
		}
		startup.LogScannerInit(folderPath, config.ScanInterval)
		sc.Start(ctx)
		scanners = append(scanners, sc)

		folders = append(folders, &handlers.Folder{Path: folderPath, Store: store, Scanner: sc})
	}

	// Initialize handlers and router
	h := handlers.New(catalog, sched, folders)
	router := mux.NewRouter()
	h.RegisterRoutes(router)

	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	mwConfig := middleware.DefaultConfig()
	mwConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Metrics(mwConfig)(middleware.Logging(mwConfig)(router))

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: ":" + config.MetricsPort, Handler: metricsMux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	go handleShutdown(srv, metricsSrv, scanners, sched, samplerStop)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func handleShutdown(srv, metricsSrv *http.Server, scanners []*scanner.Scanner, sched *scheduler.Scheduler, samplerStop chan struct{}) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Stopping scanners")
	for _, sc := range scanners {
		sc.Stop()
	}
	startup.LogShutdownStepComplete("Scanners stopped")

	startup.LogShutdownStep("Stopping resource sampler")
	close(samplerStop)
	startup.LogShutdownStepComplete("Resource sampler stopped")

	startup.LogShutdownStep("Draining scheduler")
	sched.Shutdown()
	startup.LogShutdownStepComplete("Scheduler drained")

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}
