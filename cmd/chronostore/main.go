// ChronoStore daemon
// Runs the deduplication scheduler and observability endpoints over a
// ChronoStore storage root
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nainya/chronostore/internal/config"
	"github.com/nainya/chronostore/internal/logger"
	"github.com/nainya/chronostore/internal/metrics"
	"github.com/nainya/chronostore/internal/observability"
	"github.com/nainya/chronostore/pkg/dedup"
	"github.com/nainya/chronostore/pkg/fingerprint"
	"github.com/nainya/chronostore/pkg/notify"
)

var (
	configPath = flag.String("config", "chronostore.yaml", "Configuration file path")
	rootDir    = flag.String("root", "", "Storage root override")
	listenAddr = flag.String("listen", "", "Metrics listen address override")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.GetGlobalLogger().Fatal("Cannot load configuration").Err(err).Send()
	}
	if *rootDir != "" {
		cfg.Storage.Root = *rootDir
	}
	if *listenAddr != "" {
		cfg.Metrics.Listen = *listenAddr
	}

	logger.InitGlobalLogger(logger.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
	})
	log := logger.GetGlobalLogger()
	log.LogServerStart(cfg.Metrics.Listen, cfg.Storage.Root)

	m := metrics.NewMetrics()

	index, err := fingerprint.NewIndex(filepath.Join(cfg.Storage.Root, "dedup"), log, m)
	if err != nil {
		log.Fatal("Cannot open fingerprint index").Err(err).Send()
	}

	notifier, err := notify.NewFileNotifier(filepath.Join(cfg.Storage.Root, "notifications"), log)
	if err != nil {
		log.Fatal("Cannot open notifier").Err(err).Send()
	}

	scheduler := dedup.NewScheduler(index, notifier, dedup.Schedule{
		Enabled:  cfg.Deduplication.Schedule.Enabled,
		Interval: cfg.Deduplication.Schedule.Interval,
		At:       cfg.Deduplication.Schedule.Time,
	}, filepath.Join(cfg.Storage.Root, "dedup", "runs"), log, m)

	if err := scheduler.Start(); err != nil {
		log.Fatal("Cannot start deduplication scheduler").Err(err).Send()
	}

	obs := observability.NewServer(cfg.Metrics.Listen, log)
	go func() {
		if err := obs.Start(); err != nil {
			log.Fatal("Observability server failed").Err(err).Send()
		}
	}()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.LogServerShutdown()
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := obs.Shutdown(ctx); err != nil {
		log.Error("Observability shutdown failed").Err(err).Send()
	}
}
