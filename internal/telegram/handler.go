package telegram

import (
	"context"
	"log/slog"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/channelpost/internal/relay"
)

// Runner executes the pipeline for one channel post.
type Runner interface {
	Handle(ctx context.Context, msg relay.Message) (relay.Outcome, error)
}

// Observer records channel posts before they reach the pipeline.
type Observer interface {
	Observe(msg relay.Message)
}

// ChannelHandler receives channel posts from the configured channel and runs
// the pipeline for each of them in the background.
type ChannelHandler struct {
	channelID int64
	observer  Observer
	runner    Runner
	logger    *slog.Logger

	wg sync.WaitGroup
}

// NewChannelHandler creates a ChannelHandler. A zero channelID accepts posts
// from any channel the bot is admin of.
func NewChannelHandler(channelID int64, observer Observer, runner Runner, logger *slog.Logger) *ChannelHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChannelHandler{
		channelID: channelID,
		observer:  observer,
		runner:    runner,
		logger:    logger.With("component", "channel_handler"),
	}
}

// Handle is a bot.HandlerFunc. Media group members are recorded before the
// pipeline starts so that a sibling run waiting on the group can see them.
func (h *ChannelHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	post := update.ChannelPost
	if post == nil {
		return
	}
	if h.channelID != 0 && post.Chat.ID != h.channelID {
		h.logger.DebugContext(ctx, "Ignoring post from unexpected chat", "chat_id", post.Chat.ID)
		return
	}

	msg := ConvertMessage(post)
	if h.observer != nil {
		h.observer.Observe(msg)
	}

	// Runs outlive the polling context so shutdown can drain them.
	runCtx := context.WithoutCancel(ctx)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.run(runCtx, msg)
	}()
}

func (h *ChannelHandler) run(ctx context.Context, msg relay.Message) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.ErrorContext(ctx, "Pipeline panicked", "message_id", msg.ID, "panic", r)
		}
	}()

	outcome, err := h.runner.Handle(ctx, msg)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to relay channel post",
			"message_id", msg.ID,
			"media_group_id", msg.GroupID,
			"outcome", outcome.String(),
			"error", err,
		)
		return
	}
	h.logger.DebugContext(ctx, "Channel post handled", "message_id", msg.ID, "outcome", outcome.String())
}

// Wait blocks until every in-flight run has finished or ctx is done.
func (h *ChannelHandler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
