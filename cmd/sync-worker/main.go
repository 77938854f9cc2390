package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"norloworld/internal/amqp"
	"norloworld/internal/cli"
	"norloworld/internal/config"
	"norloworld/internal/log"
	"norloworld/internal/metrics"
	"norloworld/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentWorker, os.Stdout)
	logger.Info("Starting incident sync worker")

	if cfg.DataBackend != config.BackendSQLite {
		logger.Error("The sync worker needs DATA_BACKEND=sqlite", log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	res, err := cli.OpenBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err)
		os.Exit(1)
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()
	if !cfg.UsesSheets() {
		logger.Warn("Google Sheets disabled, incidents sync to the in-memory store only")
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewCollector()
	m.Register(reg)
	if cfg.WorkerMetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.WorkerMetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server error", log.FieldError, err, "addr", cfg.WorkerMetricsAddr)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer shutdownCancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	syncWorker := worker.NewSyncWorker(res.Repository, res.Writer, cfg.SyncBatchSize, logger)
	syncWorker.OnSync = m.ObserveSync

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		syncWorker.Run(ctx, cfg.SyncInterval)
	}()

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, relying on the periodic sweep", log.FieldError, err)
		} else {
			defer client.Close()
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := client.ConsumeIncidentSync(ctx, syncWorker.HandleSyncMessage); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("Message consumption failed", log.FieldError, err)
					cancel()
				}
			}()
		}
	} else {
		logger.Info("Skipping AMQP message consumption, no AMQP_URL provided")
	}

	<-ctx.Done()
	wg.Wait()
	logger.Info("Sync worker stopped")
}
