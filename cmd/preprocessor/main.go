package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/signalsfoundry/gnss-preprocessor/core"
	"github.com/signalsfoundry/gnss-preprocessor/internal/logging"
	"github.com/signalsfoundry/gnss-preprocessor/internal/observability"
)

func main() {
	configPath := flag.String("config", "configs/preprocessing.json", "Path to the run configuration file")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for Prometheus /metrics (empty disables the endpoint)")
	workers := flag.Int("workers", 0, "Worker count override (0 keeps the configured value)")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewPipelineCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.String("error", err.Error()))
		os.Exit(1)
	}
	metricsSrv := serveMetrics(*metricsAddr, collector, log)

	cfg, err := core.LoadRunConfigFile(*configPath)
	if err != nil {
		log.Error(ctx, "failed to load run config", logging.String("path", *configPath), logging.String("error", err.Error()))
		os.Exit(1)
	}
	if *workers > 0 {
		cfg.WorkerCount = *workers
	}

	network, err := core.LoadNetwork(ctx, cfg, log, collector)
	if err != nil {
		log.Error(ctx, "failed to load network", logging.String("error", err.Error()))
		os.Exit(1)
	}

	start := time.Now()
	_, counts, err := network.Run(ctx)
	if err != nil {
		log.Error(ctx, "preprocessing run failed", logging.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info(ctx, "run complete",
		logging.String("elapsed", time.Since(start).String()),
		logging.Int("stations_selected", counts.StationsSelected),
		logging.Int("stations_disabled", counts.StationsDisabled),
		logging.Int("tracks_formed", counts.TracksFormed),
		logging.Int("tracks_removed", counts.TracksRemoved),
		logging.Int("slips_detected", counts.SlipsDetected),
		logging.Int("slips_repaired", counts.SlipsRepaired),
		logging.Int("epochs_disabled", counts.EpochsDisabled),
		logging.Int("obs_disabled", counts.ObsDisabled))

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
}

func serveMetrics(addr string, collector *observability.PipelineCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.String("error", err.Error()))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
