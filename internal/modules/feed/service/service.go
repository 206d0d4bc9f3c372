package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/kyuhyunIm/daily-geek-news-bot/internal/modules/feed/domain"
	"github.com/kyuhyunIm/daily-geek-news-bot/internal/modules/feed/repository"
	"github.com/kyuhyunIm/daily-geek-news-bot/internal/shared/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samber/lo"
)

var (
	collectPasses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geeknews_collect_passes_total",
		Help: "Number of completed collection passes",
	})

	collectDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "geeknews_collect_duration_seconds",
		Help:    "Duration of full collection passes",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geeknews_feed_cache_lookups_total",
		Help: "Number of cache lookups during collection passes by result",
	}, []string{"result"})

	rebalanceRefetches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geeknews_rebalance_refetches_total",
		Help: "Number of surplus feeds re-fetched to cover a shortfall",
	})
)

// Fetcher is the slice of the feed fetcher the collector needs
type Fetcher interface {
	Fetch(ctx context.Context, src domain.Source, desired int) ([]domain.Item, domain.CollectionStats, error)
}

// Service coordinates collection passes over all registered feeds. One
// instance owns the cache and the in-flight state; every consumer shares it.
type Service struct {
	cfg       *config.Config
	repo      repository.Repository
	fetcher   Fetcher
	rebalance RebalancePolicy

	mu       sync.Mutex
	inflight chan struct{}
	since    time.Time
}

// New creates a new collector
func New(cfg *config.Config, repo repository.Repository, fetcher Fetcher) *Service {
	return &Service{
		cfg:     cfg,
		repo:    repo,
		fetcher: fetcher,
		rebalance: RebalancePolicy{
			Enabled:       cfg.RebalanceEnabled,
			DeficitMargin: cfg.RebalanceDeficitMargin,
			SurplusFactor: cfg.RebalanceSurplusFactor,
		},
	}
}

// Collect returns the merged newest-first view of all registered feeds,
// serving from the cache where possible and fetching the rest concurrently.
// It never returns an error: feeds that fail contribute nothing, and a total
// outage over an empty cache yields an empty slice.
func (s *Service) Collect(ctx context.Context, itemsPerFeed int) []domain.Item {
	if itemsPerFeed <= 0 {
		itemsPerFeed = s.cfg.ItemsPerFeed
	}

	s.mu.Lock()
	if s.inflight != nil {
		done := s.inflight
		s.mu.Unlock()
		return s.awaitPass(ctx, done)
	}
	done := make(chan struct{})
	s.inflight = done
	s.since = time.Now()
	s.mu.Unlock()

	// The reset runs on every exit path, panics included
	defer func() {
		s.mu.Lock()
		s.inflight = nil
		s.since = time.Time{}
		s.mu.Unlock()
		close(done)
	}()

	return s.runPass(ctx, itemsPerFeed)
}

// Loading reports whether a collection pass is in flight and since when
func (s *Service) Loading() (bool, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight != nil, s.since
}

// awaitPass applies the overlap policy while another caller owns the pass
func (s *Service) awaitPass(ctx context.Context, done <-chan struct{}) []domain.Item {
	if s.cfg.OverlapPolicy == domain.OverlapPolicyEmpty {
		return []domain.Item{}
	}

	wait := time.Duration(s.cfg.OverlapWaitSeconds) * time.Second
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		slog.Warn("Gave up waiting for in-flight collection pass", "waited", wait)
	case <-ctx.Done():
	}
	return assemble(s.repo.GetAll())
}

func (s *Service) runPass(ctx context.Context, itemsPerFeed int) []domain.Item {
	start := time.Now()
	results := make(map[string][]domain.Item, len(s.cfg.Feeds))

	var misses []domain.Source
	for _, src := range s.cfg.Feeds {
		if items, ok := s.repo.Get(src.URL); ok {
			cacheLookups.WithLabelValues("hit").Inc()
			results[src.URL] = items
			continue
		}
		cacheLookups.WithLabelValues("miss").Inc()
		misses = append(misses, src)
	}

	stats := s.fetchMisses(ctx, misses, itemsPerFeed, results)

	s.rebalancePass(ctx, itemsPerFeed, results, stats)

	// Concatenate in registry order so the later stable sort breaks ties
	// deterministically
	var merged []domain.Item
	for _, src := range s.cfg.Feeds {
		merged = append(merged, results[src.URL]...)
	}

	collectPasses.Inc()
	collectDuration.Observe(time.Since(start).Seconds())
	slog.Info("Collection pass finished", "feeds", len(s.cfg.Feeds), "fetched", len(misses), "items", len(merged), "elapsed", time.Since(start))

	return assemble(merged)
}

// fetchMisses fetches the given sources concurrently, writing successful
// results through to the cache. Failed feeds contribute an empty slice and
// are not cached.
func (s *Service) fetchMisses(ctx context.Context, sources []domain.Source, itemsPerFeed int, results map[string][]domain.Item) map[string]domain.CollectionStats {
	stats := make(map[string]domain.CollectionStats, len(sources))
	if len(sources) == 0 {
		return stats
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, src := range sources {
		wg.Add(1)
		go func(src domain.Source) {
			defer wg.Done()
			items, st, err := s.fetchOne(ctx, src, itemsPerFeed)

			mu.Lock()
			defer mu.Unlock()
			stats[src.URL] = st
			if err != nil {
				slog.Warn("Feed contributed nothing this pass", "feed", src.Name, "error", err)
				return
			}
			s.repo.Set(src.URL, items)
			results[src.URL] = items
		}(src)
	}
	wg.Wait()
	return stats
}

// fetchOne wraps a single fetch in the per-feed time budget so one hanging
// feed cannot stall the whole pass
func (s *Service) fetchOne(ctx context.Context, src domain.Source, desired int) ([]domain.Item, domain.CollectionStats, error) {
	if s.cfg.FeedBudgetSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.FeedBudgetSeconds)*time.Second)
		defer cancel()
	}
	return s.fetcher.Fetch(ctx, src, desired)
}

// assemble is the shared post-processing every collect result goes through:
// undated items are dropped, then the rest is sorted newest first and deduped
// by link keeping the first occurrence
func assemble(items []domain.Item) []domain.Item {
	dated := lo.Filter(items, func(item domain.Item, _ int) bool {
		return item.HasPublishedAt()
	})

	sort.SliceStable(dated, func(i, j int) bool {
		return dated[i].PublishedAt.After(dated[j].PublishedAt)
	})

	return lo.UniqBy(dated, func(item domain.Item) string {
		return item.Link
	})
}
