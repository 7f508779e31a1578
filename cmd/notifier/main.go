package main

import (
	"context"
	"encoding/json"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"trip-monitor/internal/config"
	"trip-monitor/internal/domain"
	"trip-monitor/internal/notify"
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

	subs := notify.NewSubscriptionCache(schedule, cfg.SubscriptionRefresh)
	if err := subs.Start(ctx); err != nil {
		logrus.WithError(err).Fatal("subscription cache load failed")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		logrus.WithError(err).Fatal("telegram bot init failed")
	}
	notifier := notify.NewTelegramNotifier(bot, subs)

	nc, err := nats.Connect(cfg.NATSURL, nats.Name("trip-monitor-notifier"))
	if err != nil {
		logrus.WithError(err).Fatal("nats connect failed")
	}
	defer nc.Drain()

	// One subject per company; the wildcard catches them all.
	subject := cfg.AlertSubject + ".>"
	sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
		var e domain.NotificationEvent
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			logrus.WithError(err).WithField("subject", msg.Subject).Error("event decode failed")
			return
		}
		notifier.Deliver(e)
	})
	if err != nil {
		logrus.WithError(err).Fatal("nats subscribe failed")
	}
	defer sub.Unsubscribe()

	logrus.WithField("subject", subject).Info("notifier started")
	<-ctx.Done()
	logrus.Info("notifier shutdown complete")
}
