package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"trip-monitor/internal/config"
	"trip-monitor/internal/metrics"
	"trip-monitor/internal/pipeline"
	"trip-monitor/internal/publisher"
	"trip-monitor/internal/store"
)

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	cfg := config.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	schedule, err := store.NewScheduleStore(ctx, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("postgres connect failed")
	}
	defer schedule.Close()

	tracking, err := store.NewTrackingStore(ctx, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("redis connect failed")
	}
	defer tracking.Close()

	mcol := metrics.NewCollector()
	metricsSrv := mcol.Serve(cfg.MetricsAddr)

	var pub pipeline.EventPublisher
	if cfg.NATSURL != "" {
		np, err := publisher.NewAlertPublisher(cfg.NATSURL, cfg.AlertSubject, mcol)
		if err != nil {
			logrus.WithError(err).Fatal("nats connect failed")
		}
		defer np.Close()
		pub = np
	}

	runner := pipeline.NewRunner(schedule, tracking, pub, mcol,
		cfg.MonitorInterval, cfg.PingWorkers, cfg.Location)

	logrus.WithField("interval", cfg.MonitorInterval.String()).Info("monitord started")
	runner.Run(ctx)

	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer shutdownCancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	logrus.Info("monitord shutdown complete")
}
