// Package bot orchestrates the bridge lifecycle: the Telegram listener, the
// maintenance scheduler, and draining in-flight pipeline runs on shutdown.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultDrainTimeout bounds how long shutdown waits for in-flight runs.
const DefaultDrainTimeout = 30 * time.Second

// Listener receives updates until ctx is cancelled. *bot.Bot satisfies it.
type Listener interface {
	Start(ctx context.Context)
}

// Drainer waits for background work to finish.
type Drainer interface {
	Wait(ctx context.Context) error
}

// Bot represents the main application and manages its components' lifecycle.
type Bot struct {
	logger       *slog.Logger
	listener     Listener
	scheduler    *Scheduler
	runs         Drainer
	drainTimeout time.Duration
}

// NewBot creates the orchestrator. scheduler and runs may be nil.
func NewBot(logger *slog.Logger, listener Listener, scheduler *Scheduler, runs Drainer, drainTimeout time.Duration) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	if drainTimeout <= 0 {
		drainTimeout = DefaultDrainTimeout
	}
	return &Bot{
		logger:       logger.With("component", "bot_orchestrator"),
		listener:     listener,
		scheduler:    scheduler,
		runs:         runs,
		drainTimeout: drainTimeout,
	}
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails. In-flight pipeline runs are drained before it returns.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator...")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.logger.Info("Starting Telegram bot listener...")

		b.listener.Start(gCtx)
		b.logger.Info("Telegram bot listener stopped.")

		if gCtx.Err() == nil {
			b.logger.Warn("Telegram bot listener stopped unexpectedly without context cancellation.")
			return fmt.Errorf("telegram listener stopped unexpectedly")
		}
		return nil
	})

	if b.scheduler != nil {
		g.Go(func() error {
			b.logger.Info("Starting scheduler...")
			if err := b.scheduler.Start(); err != nil {
				return fmt.Errorf("failed to start scheduler: %w", err)
			}

			<-gCtx.Done()
			b.logger.Info("Shutdown signal received, stopping scheduler...")

			if err := b.scheduler.Stop(); err != nil {
				b.logger.Error("Error stopping scheduler", "error", err)
			}
			return nil
		})
	}

	err := g.Wait()
	b.drain()

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully.")
	return nil
}

func (b *Bot) drain() {
	if b.runs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.drainTimeout)
	defer cancel()

	b.logger.Info("Waiting for in-flight posts to finish...", "timeout", b.drainTimeout)
	if err := b.runs.Wait(ctx); err != nil {
		b.logger.Warn("Gave up waiting for in-flight posts", "error", err)
	}
}
