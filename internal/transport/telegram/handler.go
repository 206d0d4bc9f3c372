package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	digestService "github.com/kyuhyunIm/daily-geek-news-bot/internal/modules/digest/service"
	"github.com/kyuhyunIm/daily-geek-news-bot/internal/modules/feed/domain"
	newsService "github.com/kyuhyunIm/daily-geek-news-bot/internal/modules/news/service"
	"github.com/kyuhyunIm/daily-geek-news-bot/internal/shared/config"
)

// Telegram replies get unreadable past this many items
const maxReplyItems = 20

// Handler handles Telegram bot interactions
type Handler struct {
	cfg  *config.Config
	news *newsService.Service
}

// New creates a new Telegram handler
func New(cfg *config.Config, news *newsService.Service) *Handler {
	return &Handler{
		cfg:  cfg,
		news: news,
	}
}

// RegisterCommands registers bot commands
func (h *Handler) RegisterCommands(b *bot.Bot) {
	b.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, h.handleStart)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypeExact, h.handleHelp)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/top", bot.MatchTypePrefix, h.handleTop)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/search", bot.MatchTypePrefix, h.handleSearch)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/status", bot.MatchTypeExact, h.handleStatus)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/sources", bot.MatchTypeExact, h.handleSources)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/digest", bot.MatchTypeExact, h.handleDigest)
}

// HandleUpdate is the fallback for updates that match no registered command
func (h *Handler) HandleUpdate(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}
	if strings.HasPrefix(update.Message.Text, "/") {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: update.Message.Chat.ID,
			Text:   "Unknown command. Try /help.",
		})
	}
}

func (h *Handler) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	text := `👋 Welcome to Daily Geek News Bot!

I aggregate the latest geek news from RSS feeds and keep a short-lived cache so answers stay fast.

Available commands:
/top [n] - Show the n newest items (default 10)
/search <keyword> - Search the news by keyword
/status - Show cache status
/sources - List registered feed sources
/digest - Send the daily digest now
/help - Show this help message

Example:
/search kubernetes`

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   text,
	})
}

func (h *Handler) handleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.handleStart(ctx, b, update)
}

func (h *Handler) handleTop(ctx context.Context, b *bot.Bot, update *models.Update) {
	limit := h.cfg.DigestSize
	parts := strings.Fields(update.Message.Text)
	if len(parts) >= 2 {
		if n, err := strconv.Atoi(parts[1]); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxReplyItems {
		limit = maxReplyItems
	}

	items := h.news.FetchAll(ctx, limit)
	if len(items) == 0 {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: update.Message.Chat.ID,
			Text:   "📭 No news available right now. Try again in a minute.",
		})
		return
	}

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   formatItems(fmt.Sprintf("📰 Top %d geek news", len(items)), items),
	})
}

func (h *Handler) handleSearch(ctx context.Context, b *bot.Bot, update *models.Update) {
	parts := strings.SplitN(update.Message.Text, " ", 2)
	if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: update.Message.Chat.ID,
			Text:   "Usage: /search <keyword>\nExample: /search rust",
		})
		return
	}

	keyword := strings.TrimSpace(parts[1])
	items := h.news.Search(ctx, keyword, h.cfg.DigestSize)
	if len(items) == 0 {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: update.Message.Chat.ID,
			Text:   fmt.Sprintf("🔍 Nothing found for %q.", keyword),
		})
		return
	}

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   formatItems(fmt.Sprintf("🔍 Results for %q", keyword), items),
	})
}

func (h *Handler) handleStatus(ctx context.Context, b *bot.Bot, update *models.Update) {
	status := h.news.CacheStatus()

	var text strings.Builder
	text.WriteString("📊 Cache Status:\n\n")
	fmt.Fprintf(&text, "Cached items: %d\n", status.TotalCached)
	if status.IsLoading {
		fmt.Fprintf(&text, "Loading: yes (for %.0fs)\n", status.LoadingElapsedSeconds)
	} else {
		text.WriteString("Loading: no\n")
	}
	if status.TotalCached > 0 {
		fmt.Fprintf(&text, "Oldest entry age: %.0fs\n", status.CacheAgeSeconds)

		names := make([]string, 0, len(status.PerFeedCounts))
		for name := range status.PerFeedCounts {
			names = append(names, name)
		}
		sort.Strings(names)

		text.WriteString("\nPer feed:\n")
		for _, name := range names {
			fmt.Fprintf(&text, "  %s: %d\n", name, status.PerFeedCounts[name])
		}
	}

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   text.String(),
	})
}

func (h *Handler) handleSources(ctx context.Context, b *bot.Bot, update *models.Update) {
	var text strings.Builder
	text.WriteString("📋 Registered Sources:\n\n")
	for i, src := range h.cfg.Feeds {
		text.WriteString(fmt.Sprintf("%d. %s\n   %s\n\n", i+1, src.Name, src.URL))
	}

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   text.String(),
	})
}

func (h *Handler) handleDigest(ctx context.Context, b *bot.Bot, update *models.Update) {
	items := h.news.FetchAll(ctx, h.cfg.DigestSize)
	if len(items) == 0 {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: update.Message.Chat.ID,
			Text:   "📭 No news available for a digest right now.",
		})
		return
	}

	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   digestService.BuildDigest(items, time.Now()),
	}); err != nil {
		slog.Error("Failed to send digest reply", "chat_id", update.Message.Chat.ID, "error", err)
	}
}

// Helper functions
func formatItems(header string, items []domain.Item) string {
	var text strings.Builder
	text.WriteString(header + ":\n\n")
	for i, item := range items {
		text.WriteString(fmt.Sprintf("%d. %s\n", i+1, truncate(item.Title, 120)))
		text.WriteString(fmt.Sprintf("   %s · %s\n", item.Source, relativeAge(item.PublishedAt)))
		text.WriteString(fmt.Sprintf("   %s\n\n", item.Link))
	}
	return text.String()
}

func relativeAge(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
