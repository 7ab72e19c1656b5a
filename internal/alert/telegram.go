// Package alert runs the live signal cycle: prepare data, predict on
// the latest row, and deliver actionable signals to Telegram.
package alert

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Sink delivers alert messages. Implementations must be safe for use
// from a single goroutine; the runner never sends concurrently.
type Sink interface {
	Send(text string) error
}

// TelegramSink delivers Markdown messages to a fixed chat.
type TelegramSink struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger zerolog.Logger
}

func NewTelegramSink(token string, chatID int64) (*TelegramSink, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}
	return &TelegramSink{
		bot:    bot,
		chatID: chatID,
		logger: log.With().Str("component", "telegram").Logger(),
	}, nil
}

func (t *TelegramSink) Send(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	t.logger.Debug().Int("chars", len(text)).Msg("Sent telegram message")
	return nil
}

// LogSink is the delivery fallback when no bot token is configured:
// messages go to the structured log instead of a chat.
type LogSink struct{}

func (LogSink) Send(text string) error {
	log.Info().Str("component", "alert_sink").Msg(text)
	return nil
}
