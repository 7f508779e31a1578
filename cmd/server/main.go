package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"trip-monitor/internal/auth"
	"trip-monitor/internal/config"
	"trip-monitor/internal/metrics"
	"trip-monitor/internal/notify"
	"trip-monitor/internal/store"
	transport "trip-monitor/internal/transport/http"
	"trip-monitor/internal/ws"
)

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	cfg := config.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tracking, err := store.NewTrackingStore(ctx, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("redis connect failed")
	}
	defer tracking.Close()

	mcol := metrics.NewCollector()

	handler := transport.NewHandler(tracking, auth.NewService(cfg.JWTSecret), cfg.APIURL,
		func() { mcol.PingsReceived.Inc() })

	// Live monitoring feed: bridge every company's pub/sub channel into the
	// WebSocket hub.
	hub := ws.NewHub()
	go hub.Pump(ctx, tracking.SubscribeAllMonitoring(ctx))
	handler.WithLiveFeed(hub)

	if cfg.TelegramToken != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			logrus.WithError(err).Fatal("telegram bot init failed")
		}
		handler.WithTelegramWebhook(notify.WebhookHandler(bot))
	}

	mux := http.NewServeMux()
	handler.Routes(mux)
	mux.Handle("GET /metrics", mcol.Handler())

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logrus.WithField("port", cfg.HTTPPort).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("server error")
		}
	}()

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("server shutdown error")
	}
	logrus.Info("server shutdown complete")
}
