package service

import (
	"context"
	"log/slog"
	"sort"

	"github.com/kyuhyunIm/daily-geek-news-bot/internal/modules/feed/domain"
	"github.com/samber/lo"
)

// RebalancePolicy holds the named tuning knobs for shortfall redistribution.
// DeficitMargin is the per-feed item count every feed is assumed to manage
// even on a bad day; SurplusFactor marks a feed as having upstream surplus
// when it offered at least that multiple of the request.
type RebalancePolicy struct {
	Enabled       bool
	DeficitMargin int
	SurplusFactor int
}

// plan determines how many extra items to request from each surplus feed.
// Zero extra means the pass needs no redistribution: no feed came up short,
// no feed has surplus, or the computed shortfall is not positive.
func (p RebalancePolicy) plan(requested int, stats map[string]domain.CollectionStats) (int, []string) {
	if !p.Enabled || len(stats) == 0 {
		return 0, nil
	}

	var surplus []string
	under := 0
	for url, st := range stats {
		switch {
		case st.Returned < requested && st.UpstreamTotal < requested:
			under++
		case st.UpstreamTotal >= p.SurplusFactor*requested:
			surplus = append(surplus, url)
		}
	}
	if under == 0 || len(surplus) == 0 {
		return 0, nil
	}

	shortfall := under * (requested - p.DeficitMargin)
	if shortfall <= 0 {
		return 0, nil
	}

	// Round up so the surplus feeds cover the whole shortfall between them
	extra := (shortfall + len(surplus) - 1) / len(surplus)
	sort.Strings(surplus)
	return extra, surplus
}

// rebalancePass runs at most once per collection, after the primary fetches:
// feeds that came up short transfer their deficit to feeds with upstream
// surplus, which are re-fetched at a raised count. Merging only appends
// unseen links, so a re-fetch can never shrink the result.
func (s *Service) rebalancePass(ctx context.Context, requested int, results map[string][]domain.Item, stats map[string]domain.CollectionStats) {
	extra, surplus := s.rebalance.plan(requested, stats)
	if extra == 0 {
		return
	}

	seen := make(map[string]struct{})
	for _, items := range results {
		for _, item := range items {
			seen[item.Link] = struct{}{}
		}
	}

	for _, url := range surplus {
		src, ok := lo.Find(s.cfg.Feeds, func(f domain.Source) bool { return f.URL == url })
		if !ok {
			continue
		}

		rebalanceRefetches.Inc()
		items, _, err := s.fetchOne(ctx, src, requested+extra)
		if err != nil {
			slog.Warn("Rebalance re-fetch failed", "feed", src.Name, "error", err)
			continue
		}

		merged := results[url]
		added := 0
		for _, item := range items {
			if _, dup := seen[item.Link]; dup {
				continue
			}
			seen[item.Link] = struct{}{}
			merged = append(merged, item)
			added++
		}
		results[url] = merged
		s.repo.Set(url, merged)
		slog.Info("Rebalanced feed", "feed", src.Name, "extra_requested", extra, "added", added)
	}
}
