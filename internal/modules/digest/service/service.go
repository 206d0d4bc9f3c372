package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/kyuhyunIm/daily-geek-news-bot/internal/modules/feed/domain"
	newsService "github.com/kyuhyunIm/daily-geek-news-bot/internal/modules/news/service"
	"github.com/kyuhyunIm/daily-geek-news-bot/internal/shared/config"
	"github.com/samber/oops"
)

// Service pushes a daily digest of the newest items to the configured chats
type Service struct {
	cfg    *config.Config
	news   *newsService.Service
	bot    *bot.Bot
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new digest service
func New(cfg *config.Config, news *newsService.Service) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		cfg:    cfg,
		news:   news,
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetBot sets the Telegram bot instance
func (s *Service) SetBot(b *bot.Bot) {
	s.bot = b
}

// Start begins the daily schedule. Without chat IDs or a valid digest_time
// the scheduler stays off.
func (s *Service) Start(ctx context.Context) {
	if len(s.cfg.DigestChatIDs) == 0 {
		slog.Info("Daily digest disabled", "reason", "no digest_chat_ids configured")
		return
	}

	hour, minute, err := parseClock(s.cfg.DigestTime)
	if err != nil {
		slog.Error("Daily digest disabled", "digest_time", s.cfg.DigestTime, "error", err)
		return
	}

	s.wg.Add(1)
	go s.scheduleLoop(hour, minute)
}

// Stop stops the schedule loop
func (s *Service) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Service) scheduleLoop(hour, minute int) {
	defer s.wg.Done()

	for {
		wait := time.Until(nextRun(time.Now(), hour, minute))
		slog.Info("Next daily digest scheduled", "in", wait.Round(time.Second))

		timer := time.NewTimer(wait)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if err := s.SendDigest(s.ctx); err != nil {
				slog.Error("Failed to send daily digest", "error", err)
			}
		}
	}
}

// SendDigest renders and pushes the digest right now
func (s *Service) SendDigest(ctx context.Context) error {
	if s.bot == nil {
		return oops.Errorf("bot not initialized")
	}

	items := s.news.FetchAll(ctx, s.cfg.DigestSize)
	if len(items) == 0 {
		slog.Warn("Skipping daily digest", "reason", "no items available")
		return nil
	}

	text := BuildDigest(items, time.Now())
	for _, chatID := range s.cfg.DigestChatIDs {
		if _, err := s.bot.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   text,
		}); err != nil {
			slog.Error("Failed to deliver digest", "chat_id", chatID, "error", err)
			continue
		}
		slog.Info("Daily digest delivered", "chat_id", chatID, "items", len(items))
	}
	return nil
}

// BuildDigest renders the digest message body
func BuildDigest(items []domain.Item, now time.Time) string {
	var text strings.Builder
	text.WriteString(fmt.Sprintf("🗞 Daily Geek Digest (%s)\n\n", now.Format("Mon, 02 Jan")))
	for i, item := range items {
		text.WriteString(fmt.Sprintf("%d. %s (%s)\n%s\n\n", i+1, item.Title, item.Source, item.Link))
	}
	return text.String()
}

// parseClock parses a "HH:MM" wall-clock string
func parseClock(s string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, oops.Errorf("expected HH:MM, got %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, oops.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, oops.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

// nextRun returns the next occurrence of the given wall-clock time after now
func nextRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
