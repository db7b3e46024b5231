package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/channelpost/internal/blog"
	"github.com/edgard/channelpost/internal/bot"
	"github.com/edgard/channelpost/internal/bot/tasks"
	"github.com/edgard/channelpost/internal/config"
	"github.com/edgard/channelpost/internal/database"
	"github.com/edgard/channelpost/internal/dedupe"
	"github.com/edgard/channelpost/internal/httpclient"
	"github.com/edgard/channelpost/internal/logger"
	"github.com/edgard/channelpost/internal/lsky"
	"github.com/edgard/channelpost/internal/relay"
	"github.com/edgard/channelpost/internal/resilience"
	"github.com/edgard/channelpost/internal/telegram"
)

// pollSlack is added to the long-poll timeout for the Telegram HTTP client.
const pollSlack = 30 * time.Second

// run wires every component from the configuration at configPath and blocks
// until ctx is cancelled or a component fails.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", configPath, "error", err)
		return err
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return err
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	tgHTTP, err := httpclient.New(cfg.Proxy.URL, cfg.Telegram.PollTimeout+pollSlack)
	if err != nil {
		return fmt.Errorf("failed to build telegram http client: %w", err)
	}
	lskyHTTP, err := httpclient.New(cfg.Proxy.URL, cfg.Lsky.Timeout)
	if err != nil {
		return fmt.Errorf("failed to build lsky http client: %w", err)
	}
	blogHTTP, err := httpclient.New(cfg.Proxy.URL, cfg.Blog.Timeout)
	if err != nil {
		return fmt.Errorf("failed to build blog http client: %w", err)
	}

	retrier := resilience.NewRetrier(resilience.Policy{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialInterval: cfg.Retry.InitialInterval,
		MaxInterval:     cfg.Retry.MaxInterval,
		Multiplier:      cfg.Retry.Multiplier,
	}, log)

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithHTTPClient(cfg.Telegram.PollTimeout, tgHTTP),
		tgbot.WithServerURL(cfg.Telegram.APIURL),
		tgbot.WithAllowedUpdates(telegram.AllowedUpdates),
		tgbot.WithErrorsHandler(func(err error) {
			log.Error("Telegram polling error", "error", err)
		}),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		return err
	}

	source := telegram.NewChannelSource(tg, tgHTTP, telegram.SourceConfig{
		Settle:      cfg.Telegram.GroupSettle,
		DownloadDir: cfg.Telegram.DownloadDir,
	}, log)

	pipeline := relay.NewPipeline(relay.PipelineDeps{
		Logger:        log,
		Filter:        dedupe.New(cfg.Dedupe.Capacity, cfg.Dedupe.TTL),
		Source:        source,
		Images:        lsky.NewClient(cfg.Lsky.BaseURL, cfg.Lsky.Token, lskyHTTP, log),
		Publisher:     blog.NewClient(cfg.Blog.Endpoint, cfg.Blog.Secret, cfg.Blog.CID, blogHTTP, retrier, log),
		Journal:       store,
		Retrier:       retrier,
		BacklinkLabel: cfg.Blog.BacklinkLabel,
		SkipPublished: cfg.Journal.SkipPublished,
		RunTimeout:    cfg.Pipeline.RunTimeout,
	})

	handler := telegram.NewChannelHandler(cfg.Telegram.ChannelID, source, pipeline, log)
	if _, err := telegram.RegisterChannelHandler(tg, log, handler.Handle); err != nil {
		return err
	}

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tasks.TaskDeps{
		Logger:           log,
		Store:            store,
		JournalRetention: cfg.Journal.Retention,
		DownloadDir:      cfg.Telegram.DownloadDir,
		TempMaxAge:       tempMaxAge(cfg.Pipeline.RunTimeout),
	}))
	if err != nil {
		return err
	}

	app := bot.NewBot(log, tg, sched, handler, cfg.Pipeline.RunTimeout)

	log.Info("Starting bridge...", "channel_id", cfg.Telegram.ChannelID)
	runErr := app.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bridge stopped due to error", "error", runErr)
		return runErr
	}

	log.Info("Bridge stopped gracefully.")
	return nil
}

// tempMaxAge keeps downloads that may still belong to a running pipeline.
func tempMaxAge(runTimeout time.Duration) time.Duration {
	if age := 2 * runTimeout; age > time.Hour {
		return age
	}
	return time.Hour
}
