package notify

import (
	"encoding/json"
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"trip-monitor/internal/domain"
)

const telegramHandler = "telegram"

// Sender is the slice of the Telegram bot the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier delivers alert events to the operator chats subscribed to
// the event's transport company.
type TelegramNotifier struct {
	bot  Sender
	subs *SubscriptionCache
}

func NewTelegramNotifier(bot Sender, subs *SubscriptionCache) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, subs: subs}
}

// matches reports whether a subscription wants this event. An empty
// subscription event matches every type.
func matches(sub domain.Subscription, e domain.NotificationEvent) bool {
	if sub.Handler != telegramHandler {
		return false
	}
	if sub.Event != "" && sub.Event != string(e.Type) {
		return false
	}
	return e.Severity >= sub.Params.MinSeverity
}

func formatAlert(e domain.NotificationEvent) string {
	route := e.Trip.Route
	header := route.Label
	if route.From != "" || route.To != "" {
		header = fmt.Sprintf("%s (%s – %s)", route.Label, route.From, route.To)
	}
	return fmt.Sprintf("%s\n%s", header, e.Message)
}

// Deliver sends one alert to every matching subscriber. Placeholder events
// with no message are dropped. Per-chat send failures are logged and do not
// block the remaining subscribers.
func (n *TelegramNotifier) Deliver(e domain.NotificationEvent) {
	if e.Message == "" {
		return
	}
	subs := n.subs.ForCompany(e.Trip.Route.TransportCompanyID)
	text := formatAlert(e)
	for _, sub := range subs {
		if !matches(sub, e) {
			continue
		}
		msg := tgbotapi.NewMessage(sub.Params.ChatID, text)
		if _, err := n.bot.Send(msg); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"chatId":  sub.Params.ChatID,
				"alertId": e.AlertID,
			}).Error("telegram send failed")
			continue
		}
		logrus.WithFields(logrus.Fields{
			"chatId":  sub.Params.ChatID,
			"alertId": e.AlertID,
		}).Info("alert delivered")
	}
}

// WebhookHandler answers Telegram webhook updates with the chat id, so
// operators can find the id to register a subscription with.
func WebhookHandler(bot Sender) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, "invalid update", http.StatusBadRequest)
			return
		}
		if update.Message == nil || update.Message.Chat == nil {
			w.WriteHeader(http.StatusOK)
			return
		}
		chatID := update.Message.Chat.ID
		reply := tgbotapi.NewMessage(chatID,
			fmt.Sprintf("Your chat id is %d", chatID))
		if _, err := bot.Send(reply); err != nil {
			logrus.WithError(err).WithField("chatId", chatID).Error("welcome reply failed")
		}
		w.WriteHeader(http.StatusOK)
	}
}
