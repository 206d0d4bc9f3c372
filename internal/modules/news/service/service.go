package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/feeds"
	"github.com/kyuhyunIm/daily-geek-news-bot/internal/modules/feed/domain"
	"github.com/kyuhyunIm/daily-geek-news-bot/internal/modules/feed/repository"
	feedService "github.com/kyuhyunIm/daily-geek-news-bot/internal/modules/feed/service"
	"github.com/kyuhyunIm/daily-geek-news-bot/internal/shared/config"
	"github.com/samber/lo"
)

// Service is the read side every consumer talks to: capped listings, keyword
// search, cache introspection and the RSS re-export
type Service struct {
	cfg       *config.Config
	collector *feedService.Service
	repo      repository.Repository
}

// New creates a new news service
func New(cfg *config.Config, collector *feedService.Service, repo repository.Repository) *Service {
	return &Service{
		cfg:       cfg,
		collector: collector,
		repo:      repo,
	}
}

// FetchAll returns up to limit newest items across all feeds. A non-positive
// limit falls back to the configured default.
func (s *Service) FetchAll(ctx context.Context, limit int) []domain.Item {
	items := s.collector.Collect(ctx, s.cfg.ItemsPerFeed)
	return capped(items, s.limitOrDefault(limit))
}

// Search returns up to limit items whose title, summary or source contains
// keyword, case-insensitively. A blank keyword returns the unfiltered set.
func (s *Service) Search(ctx context.Context, keyword string, limit int) []domain.Item {
	items := s.collector.Collect(ctx, s.cfg.ItemsPerFeed)

	needle := strings.ToLower(strings.TrimSpace(keyword))
	if needle != "" {
		items = lo.Filter(items, func(item domain.Item, _ int) bool {
			return strings.Contains(strings.ToLower(item.Title), needle) ||
				strings.Contains(strings.ToLower(item.Summary), needle) ||
				strings.Contains(strings.ToLower(item.Source), needle)
		})
	}
	return capped(items, s.limitOrDefault(limit))
}

// CacheStatus assembles the operator view from the cache contents and the
// collector's loading state. An empty cache and a loading collector are
// separate conditions and both are visible here.
func (s *Service) CacheStatus() domain.CacheStatus {
	counts, oldest := s.repo.Status()
	loading, since := s.collector.Loading()

	status := domain.CacheStatus{
		PerFeedCounts: make(map[string]int, len(counts)),
		IsLoading:     loading,
	}
	for key, count := range counts {
		status.TotalCached += count
		status.PerFeedCounts[s.sourceName(key)] = count
	}
	if loading {
		status.LoadingElapsedSeconds = time.Since(since).Seconds()
	}
	if !oldest.IsZero() {
		status.CacheAgeSeconds = time.Since(oldest).Seconds()
	}
	return status
}

// GenerateFeed renders the aggregated snapshot as a single RSS feed
func (s *Service) GenerateFeed(ctx context.Context, baseURL string) *feeds.Feed {
	items := s.FetchAll(ctx, s.cfg.DefaultLimit)

	feed := &feeds.Feed{
		Title:       "Daily Geek News",
		Link:        &feeds.Link{Href: fmt.Sprintf("%s/rss", baseURL)},
		Description: fmt.Sprintf("Aggregated geek news from %d sources", len(s.cfg.Feeds)),
		Created:     time.Now(),
	}
	if len(items) > 0 {
		feed.Updated = items[0].PublishedAt
	}

	feed.Items = lo.Map(items, func(item domain.Item, _ int) *feeds.Item {
		return newsToFeedItem(item)
	})
	return feed
}

func newsToFeedItem(item domain.Item) *feeds.Item {
	return &feeds.Item{
		Title:       item.Title,
		Link:        &feeds.Link{Href: item.Link},
		Description: item.Summary,
		Author:      &feeds.Author{Name: item.Source},
		Created:     item.PublishedAt,
		Id:          item.Link,
	}
}

func (s *Service) sourceName(url string) string {
	if src, ok := lo.Find(s.cfg.Feeds, func(f domain.Source) bool { return f.URL == url }); ok {
		return src.Name
	}
	return url
}

func (s *Service) limitOrDefault(limit int) int {
	if limit <= 0 {
		return s.cfg.DefaultLimit
	}
	return limit
}

func capped(items []domain.Item, limit int) []domain.Item {
	if len(items) <= limit {
		return items
	}
	return items[:limit]
}
