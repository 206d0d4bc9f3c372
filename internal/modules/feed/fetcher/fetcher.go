package fetcher

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/kyuhyunIm/daily-geek-news-bot/internal/modules/feed/domain"
	"github.com/kyuhyunIm/daily-geek-news-bot/internal/shared/config"
	errs "github.com/kyuhyunIm/daily-geek-news-bot/internal/shared/errors"
	"github.com/mmcdole/gofeed"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samber/oops"
)

// Some feed hosts answer bare GETs with HTML or a 403, so ask for feed
// documents explicitly
const acceptHeader = "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.7"

var (
	fetchAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geeknews_feed_fetch_attempts_total",
		Help: "Number of feed fetch attempts by feed and outcome",
	}, []string{"feed", "outcome"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geeknews_feed_fetch_duration_seconds",
		Help:    "Duration of individual feed fetch attempts",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"feed"})

	fetchItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geeknews_feed_items_returned_total",
		Help: "Number of items returned by successful feed fetches",
	}, []string{"feed"})
)

// Fetcher downloads RSS/Atom feeds and normalizes their entries
type Fetcher struct {
	cfg    *config.Config
	client *http.Client
	parser *gofeed.Parser
}

// New creates a feed fetcher using the HTTP tuning from cfg
func New(cfg *config.Config) *Fetcher {
	client := &http.Client{
		Timeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxRedirects {
				return oops.With("url", req.URL.String()).Errorf("stopped after %d redirects", cfg.MaxRedirects)
			}
			return nil
		},
	}

	return &Fetcher{
		cfg:    cfg,
		client: client,
		parser: gofeed.NewParser(),
	}
}

// Fetch downloads one feed and returns up to desired normalized items along
// with stats about how the feed performed. A returned error means this feed
// yielded nothing; callers treat it as an empty result and must not cache it.
func (f *Fetcher) Fetch(ctx context.Context, src domain.Source, desired int) ([]domain.Item, domain.CollectionStats, error) {
	if desired < 0 {
		desired = 0
	}
	stats := domain.CollectionStats{Feed: src.Name, Requested: desired}

	var items []domain.Item
	attempt := 0

	operation := func() error {
		attempt++
		start := time.Now()
		feed, err := f.download(ctx, src)
		elapsed := time.Since(start)
		fetchDuration.WithLabelValues(src.Name).Observe(elapsed.Seconds())

		if err != nil {
			fetchAttempts.WithLabelValues(src.Name, "failure").Inc()
			slog.Warn("Feed fetch attempt failed", "feed", src.Name, "attempt", attempt, "elapsed", elapsed, "error", err)
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}

		items = normalize(feed, src, desired)
		stats.UpstreamTotal = len(feed.Items)
		stats.Returned = len(items)
		fetchAttempts.WithLabelValues(src.Name, "success").Inc()
		fetchItems.WithLabelValues(src.Name).Add(float64(len(items)))
		slog.Info("Feed fetched", "feed", src.Name, "attempt", attempt, "elapsed", elapsed, "items", len(items), "upstream", stats.UpstreamTotal)
		return nil
	}

	notify := func(err error, wait time.Duration) {
		slog.Warn("Retrying feed fetch", "feed", src.Name, "wait", wait, "error", err)
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(f.newBackOff(), uint64(f.attempts()-1)), ctx)
	if err := backoff.RetryNotify(operation, bo, notify); err != nil {
		return nil, stats, oops.With("feed", src.Name, "url", src.URL).Wrap(err)
	}
	return items, stats, nil
}

func (f *Fetcher) attempts() int {
	if f.cfg.FetchAttempts < 1 {
		return 1
	}
	return f.cfg.FetchAttempts
}

// newBackOff builds the retry schedule: base delay doubling per attempt,
// capped, without jitter
func (f *Fetcher) newBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Duration(f.cfg.RetryBaseDelayMs) * time.Millisecond
	bo.Multiplier = 2
	bo.MaxInterval = time.Duration(f.cfg.RetryMaxDelayMs) * time.Millisecond
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	return bo
}

func (f *Fetcher) download(ctx context.Context, src domain.Source) (*gofeed.Feed, error) {
	if f.cfg.HeadPrecheck {
		if err := f.probe(ctx, src); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, oops.With("url", src.URL).Wrap(err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, oops.With("url", src.URL, "status", resp.StatusCode).Wrap(errs.ErrUnexpectedStatus)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, oops.With("url", src.URL).Wrap(errs.ErrEmptyFeedBody)
	}

	feed, err := f.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, oops.With("url", src.URL).Wrap(err)
	}
	return feed, nil
}

// probe issues a HEAD request before the full download. Only a
// definitive HTTP error status short-circuits the attempt; every other
// outcome falls through to the regular GET. Hosts that reject HEAD outright
// are not penalized.
func (f *Fetcher) probe(ctx context.Context, src domain.Source) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, src.URL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode != http.StatusMethodNotAllowed {
		return oops.With("url", src.URL, "status", resp.StatusCode, "probe", true).Wrap(errs.ErrUnexpectedStatus)
	}
	return nil
}

// normalize maps feed entries to items, skipping entries without a usable
// link and capping at desired. The publish time falls back from the published
// field to the updated field and stays zero when neither parses.
func normalize(feed *gofeed.Feed, src domain.Source, desired int) []domain.Item {
	items := make([]domain.Item, 0, desired)
	for _, entry := range feed.Items {
		if len(items) >= desired {
			break
		}

		link := strings.TrimSpace(entry.Link)
		if link == "" {
			continue
		}

		var publishedAt time.Time
		if entry.PublishedParsed != nil {
			publishedAt = *entry.PublishedParsed
		} else if entry.UpdatedParsed != nil {
			publishedAt = *entry.UpdatedParsed
		}

		summary := entry.Description
		if summary == "" {
			summary = entry.Content
		}

		items = append(items, domain.Item{
			Title:       strings.TrimSpace(entry.Title),
			Link:        link,
			PublishedAt: publishedAt,
			Source:      src.Name,
			Summary:     summary,
		})
	}
	return items
}

// retryable reports whether a fetch failure is worth another attempt.
// Transient network conditions qualify; malformed documents, HTTP error
// statuses and empty bodies do not.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errs.ErrUnexpectedStatus) || errors.Is(err, errs.ErrEmptyFeedBody) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	// A server that accepts the connection and drops it mid-response
	// surfaces as a bare or unexpected EOF
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	return false
}
