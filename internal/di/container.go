package di

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	digestService "github.com/kyuhyunIm/daily-geek-news-bot/internal/modules/digest/service"
	feedFetcher "github.com/kyuhyunIm/daily-geek-news-bot/internal/modules/feed/fetcher"
	feedRepo "github.com/kyuhyunIm/daily-geek-news-bot/internal/modules/feed/repository"
	feedService "github.com/kyuhyunIm/daily-geek-news-bot/internal/modules/feed/service"
	newsService "github.com/kyuhyunIm/daily-geek-news-bot/internal/modules/news/service"
	"github.com/kyuhyunIm/daily-geek-news-bot/internal/shared/config"
	httpServer "github.com/kyuhyunIm/daily-geek-news-bot/internal/transport/http"
	telegramHandler "github.com/kyuhyunIm/daily-geek-news-bot/internal/transport/telegram"
	"github.com/samber/do/v2"
	"github.com/samber/oops"
)

// Setup initializes the dependency injection container
func Setup() (do.Injector, error) {
	injector := do.New()

	// Register Config
	do.Provide(injector, func(i do.Injector) (*config.Config, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, oops.With("context", "failed to load config").Wrap(err)
		}
		return cfg, nil
	})

	// Register Feed Repository
	do.Provide(injector, func(i do.Injector) (feedRepo.Repository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		ttl := time.Duration(cfg.CacheTTLMinutes) * time.Minute
		return feedRepo.NewMemoryStorage(ttl), nil
	})

	// Register Feed Fetcher
	do.Provide(injector, func(i do.Injector) (*feedFetcher.Fetcher, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return feedFetcher.New(cfg), nil
	})

	// Register Feed Service
	do.Provide(injector, func(i do.Injector) (*feedService.Service, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[feedRepo.Repository](i)
		f := do.MustInvoke[*feedFetcher.Fetcher](i)
		return feedService.New(cfg, repo, f), nil
	})

	// Register News Service
	do.Provide(injector, func(i do.Injector) (*newsService.Service, error) {
		cfg := do.MustInvoke[*config.Config](i)
		collector := do.MustInvoke[*feedService.Service](i)
		repo := do.MustInvoke[feedRepo.Repository](i)
		return newsService.New(cfg, collector, repo), nil
	})

	// Register Digest Service
	do.Provide(injector, func(i do.Injector) (*digestService.Service, error) {
		cfg := do.MustInvoke[*config.Config](i)
		news := do.MustInvoke[*newsService.Service](i)
		return digestService.New(cfg, news), nil
	})

	// Register Telegram Handler
	do.Provide(injector, func(i do.Injector) (*telegramHandler.Handler, error) {
		cfg := do.MustInvoke[*config.Config](i)
		news := do.MustInvoke[*newsService.Service](i)
		return telegramHandler.New(cfg, news), nil
	})

	// Register HTTP Server
	do.Provide(injector, func(i do.Injector) (*httpServer.Server, error) {
		cfg := do.MustInvoke[*config.Config](i)
		news := do.MustInvoke[*newsService.Service](i)
		server := httpServer.New(cfg, news)
		server.SetLogger(slog.Default())
		return server, nil
	})

	// Register Bot (needs to be initialized after handlers are ready)
	do.Provide(injector, func(i do.Injector) (*bot.Bot, error) {
		cfg := do.MustInvoke[*config.Config](i)
		handler := do.MustInvoke[*telegramHandler.Handler](i)

		opts := []bot.Option{
			bot.WithDefaultHandler(handler.HandleUpdate),
		}

		b, err := bot.New(cfg.TelegramBotToken, opts...)
		if err != nil {
			return nil, oops.With("context", "failed to create telegram bot").Wrap(err)
		}

		// Register bot commands
		handler.RegisterCommands(b)

		// Hand the bot to the digest scheduler
		digest := do.MustInvoke[*digestService.Service](i)
		digest.SetBot(b)

		return b, nil
	})

	return injector, nil
}

// Shutdown gracefully shuts down all services
func Shutdown(injector do.Injector) error {
	ctx := context.Background()

	// Shutdown bot if it exists
	if b, err := do.Invoke[*bot.Bot](injector); err == nil && b != nil {
		b.Close(ctx)
	}

	// Stop the digest scheduler if it exists
	if digest, err := do.Invoke[*digestService.Service](injector); err == nil && digest != nil {
		digest.Stop()
	}

	return nil
}
