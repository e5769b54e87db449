package notifier

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/semmidev/pgkeep/internal/config"
	"github.com/semmidev/pgkeep/internal/domain"
)

// maxMessageLength is the Telegram limit for a text message.
const maxMessageLength = 4096

type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram connects to the bot API. An empty endpoint means the public API.
func NewTelegram(cfg config.TelegramConfig, endpoint string) (*TelegramNotifier, error) {
	chatID, err := strconv.ParseInt(cfg.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat id %q: %w", cfg.ChatID, err)
	}

	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.BotToken, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

func (t *TelegramNotifier) Notify(ctx context.Context, n *domain.Notification) error {
	prefix := "✅"
	if n.Level == domain.LevelError {
		prefix = "❌"
	}

	text := truncate(fmt.Sprintf("%s %s\n\n%s", prefix, n.Subject, n.Body), maxMessageLength)

	if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, text)); err != nil {
		return fmt.Errorf("failed to send telegram notification: %w", err)
	}
	return nil
}

func (t *TelegramNotifier) Validate(ctx context.Context) error {
	if _, err := t.bot.GetMe(); err != nil {
		return fmt.Errorf("telegram bot is not reachable: %w", err)
	}
	return nil
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}

var _ domain.Notifier = (*TelegramNotifier)(nil)
