// Package telegram connects the bridge to the Bot API: it creates the bot,
// converts channel posts, buffers media groups, and downloads attachments.
package telegram

import (
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// AllowedUpdates limits long polling to the update types the bridge consumes.
var AllowedUpdates = bot.AllowedUpdates{"channel_post"}

// NewTelegramBot creates a new Telegram bot instance using the go-telegram/bot library.
func NewTelegramBot(token string, logger *slog.Logger, opts ...bot.Option) (*bot.Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "telegram_bot")

	b, err := bot.New(token, opts...)
	if err != nil {
		log.Error("Failed to create Telegram bot instance", "error", err)
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	log.Info("Telegram bot instance created successfully", "token_prefix", tokenPrefix(token))
	return b, nil
}

func tokenPrefix(token string) string {
	if len(token) <= 8 {
		return "..."
	}
	return token[:8] + "..."
}

// IsChannelPost matches updates carrying a channel post.
func IsChannelPost(update *models.Update) bool {
	return update != nil && update.ChannelPost != nil
}

// RegisterChannelHandler routes every channel post to handler, wrapped in mw.
func RegisterChannelHandler(b *bot.Bot, logger *slog.Logger, handler bot.HandlerFunc, mw ...bot.Middleware) (string, error) {
	if b == nil {
		return "", fmt.Errorf("bot instance cannot be nil")
	}
	if handler == nil {
		return "", fmt.Errorf("channel handler cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	id := b.RegisterHandlerMatchFunc(IsChannelPost, handler, mw...)
	logger.With("component", "handler_registry").Info("Registered channel post handler", "handler_id", id, "middleware_count", len(mw))
	return id, nil
}
