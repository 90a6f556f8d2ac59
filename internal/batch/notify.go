package batch

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
)

// TelegramNotifier posts batch summaries to a Telegram chat.
type TelegramNotifier struct {
	bot    *bot.Bot
	chatID string
}

// NewTelegramNotifier creates a notifier for the given bot token and chat.
func NewTelegramNotifier(token, chatID string) (*TelegramNotifier, error) {
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramNotifier{bot: b, chatID: chatID}, nil
}

// Notify sends the text to the configured chat.
func (t *TelegramNotifier) Notify(ctx context.Context, text string) error {
	_, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: t.chatID,
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}
