package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"norloworld/internal/cache"
	"norloworld/internal/cli"
	apphttp "norloworld/internal/http"
	"norloworld/internal/log"
	"norloworld/internal/metrics"
	"norloworld/internal/snapshot"
	"norloworld/internal/stats"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentApp, os.Stdout)
	logger.Info("Starting incident dashboard", log.FieldBackend, cfg.DataBackend)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	res, err := cli.OpenBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewCollector()
	m.Register(reg)

	store := snapshot.NewStore(snapshot.NewLoader(res.Source), logger)
	store.OnRefresh = m.ObserveRefresh

	statsCache := cache.NewLRUCache[stats.Report](cfg.StatsCacheSize, cfg.StatsCacheTTL)
	metrics.RegisterCache(reg, "stats", statsCache)
	caches := cache.NewManager(logger)
	caches.Register(statsCache)

	// The server starts unready and reports 503 until the first load.
	if _, err := store.Refresh(ctx); err != nil {
		logger.Error("Initial snapshot load failed, retrying on the refresh interval", log.FieldError, err)
	}
	go store.Run(ctx, cfg.RefreshInterval)
	go caches.Run(ctx, time.Minute)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Snapshots: store,
		Incidents: res.Incidents,
		StatsMemo: cache.NewStatsMemo(statsCache),
		Metrics:   m,
		Gatherer:  reg,
		Logger:    logger,
	})
	srv.ReadTimeout = 15 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", log.FieldError, err)
	}
	logger.Info("Server stopped gracefully")
}
