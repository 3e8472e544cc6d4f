// Package notify delivers operational alerts to a Telegram chat. Payment
// webhooks surface conditions (orphan payments, unknown provider statuses,
// refunds) that need a human to look, and the ops channel is where they land.
package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/macrofit/macrofit-api/pkg/logger"
)

type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *logger.Logger
}

// NewTelegramNotifier connects the bot. Returns an error if the token is
// rejected; callers that run without a token should skip construction and
// pass a nil notifier downstream.
func NewTelegramNotifier(token string, chatID int64, l *logger.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect telegram bot: %w", err)
	}

	l.Info("Telegram ops notifier connected", "bot", bot.Self.UserName, "chat_id", chatID)
	return &TelegramNotifier{bot: bot, chatID: chatID, logger: l}, nil
}

// Notify sends the message to the ops chat. Delivery is best effort; a
// failed alert is logged and never propagated into the payment flow.
func (n *TelegramNotifier) Notify(ctx context.Context, message string) {
	msg := tgbotapi.NewMessage(n.chatID, message)
	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Error("Failed to send ops alert", "error", err)
	}
}
