package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"grabbit/internal/bot"
	"grabbit/internal/deliver"
	"grabbit/internal/fallback"
	"grabbit/internal/ratelimit"
	"grabbit/internal/resolver"
	"grabbit/internal/retriever"
	"grabbit/internal/store"
	"grabbit/internal/uploader"
	"grabbit/internal/ytdlp"
)

// runBot is the process bootstrap: every service is constructed here and
// injected; nothing lives in package-level singletons.
func runBot(cmd *cobra.Command, args []string) error {
	if cfg.BotToken == "" {
		return fmt.Errorf("bot token not configured (set bot_token in the config file or GRABBIT_BOT_TOKEN)")
	}

	if err := os.MkdirAll(cfg.DownloadDir, 0o755); err != nil {
		return fmt.Errorf("creating download directory: %w", err)
	}

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	extractor, err := ytdlp.New(cfg.YtDlpPath)
	if err != nil {
		return err
	}
	if version, err := extractor.Version(context.Background()); err != nil {
		log.WithError(err).Warn("could not determine yt-dlp version")
	} else {
		log.WithField("version", version).Info("yt-dlp found")
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return fmt.Errorf("connecting to Telegram: %w", err)
	}

	standard := uploader.NewTelegram(api, log)

	// The high-capacity uploader is optional; its absence turns oversized
	// deliveries into hard failures rather than silent downgrades.
	var large deliver.Transport
	if cfg.LargeAPIEndpoint != "" {
		lg, err := uploader.NewLarge(cfg.BotToken, cfg.LargeAPIEndpoint, log)
		if err != nil {
			log.WithError(err).Warn("high-capacity uploader unavailable, large files will fail")
		} else {
			large = lg
		}
	}

	router := deliver.New(standard, large, db, 0, 0, log)
	chain := fallback.New(nil, log)

	b := bot.New(bot.Deps{
		API:           api,
		Store:         db,
		Limiter:       ratelimit.New(cfg.RateLimit, time.Minute),
		Resolver:      resolver.New(extractor, chain, log),
		Retriever:     retriever.New(extractor, nil, log),
		Router:        router,
		Updater:       extractor,
		DownloadDir:   cfg.DownloadDir,
		AdminID:       cfg.AdminID,
		MaxConcurrent: cfg.MaxConcurrent,
		Log:           log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shutting down")
	return nil
}
