package fetcher_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kyuhyunIm/daily-geek-news-bot/internal/modules/feed/domain"
	"github.com/kyuhyunIm/daily-geek-news-bot/internal/modules/feed/fetcher"
	"github.com/kyuhyunIm/daily-geek-news-bot/internal/shared/config"
	errs "github.com/kyuhyunIm/daily-geek-news-bot/internal/shared/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rssBody = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Fixture Feed</title>
<link>https://fixture.example</link>
<item>
  <title>Newest post</title>
  <link>https://fixture.example/posts/3</link>
  <description>Kubernetes operators in practice</description>
  <pubDate>Mon, 17 Aug 2026 10:00:00 GMT</pubDate>
</item>
<item>
  <title>Middle post</title>
  <link>https://fixture.example/posts/2</link>
  <description>Postgres tuning notes</description>
  <pubDate>Sun, 16 Aug 2026 09:00:00 GMT</pubDate>
</item>
<item>
  <title>No link here</title>
  <description>This entry has no usable link</description>
  <pubDate>Sat, 15 Aug 2026 08:00:00 GMT</pubDate>
</item>
<item>
  <title>Undated post</title>
  <link>https://fixture.example/posts/1</link>
  <description>No pubDate on this one</description>
</item>
</channel>
</rss>`

const atomBody = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
<title>Atom Fixture</title>
<id>urn:fixture</id>
<entry>
  <title>Updated only</title>
  <link href="https://fixture.example/atom/1"/>
  <id>urn:fixture:1</id>
  <updated>2026-08-17T12:00:00Z</updated>
  <content type="text">Only the updated field carries a time</content>
</entry>
</feed>`

func testConfig() *config.Config {
	return &config.Config{
		RequestTimeoutSeconds: 5,
		FetchAttempts:         3,
		RetryBaseDelayMs:      1,
		RetryMaxDelayMs:       2,
		UserAgent:             "daily-geek-news-bot/test",
		MaxRedirects:          5,
	}
}

func TestFetchParsesAndNormalizes(t *testing.T) {
	var gotUserAgent, gotAccept atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent.Store(r.Header.Get("User-Agent"))
		gotAccept.Store(r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(rssBody))
	}))
	defer server.Close()

	f := fetcher.New(testConfig())
	src := domain.Source{Name: "Fixture", URL: server.URL}

	items, stats, err := f.Fetch(context.Background(), src, 10)
	require.NoError(t, err)

	// The linkless entry is dropped, the undated one is kept
	require.Len(t, items, 3)
	assert.Equal(t, "Newest post", items[0].Title)
	assert.Equal(t, "https://fixture.example/posts/3", items[0].Link)
	assert.Equal(t, "Fixture", items[0].Source)
	assert.Equal(t, "Kubernetes operators in practice", items[0].Summary)
	assert.True(t, items[0].HasPublishedAt())
	assert.False(t, items[2].HasPublishedAt())

	assert.Equal(t, domain.CollectionStats{
		Feed:          "Fixture",
		Requested:     10,
		UpstreamTotal: 4,
		Returned:      3,
	}, stats)

	assert.Equal(t, "daily-geek-news-bot/test", gotUserAgent.Load())
	assert.Contains(t, gotAccept.Load(), "application/rss+xml")
}

func TestFetchCapsAtDesired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rssBody))
	}))
	defer server.Close()

	f := fetcher.New(testConfig())
	src := domain.Source{Name: "Fixture", URL: server.URL}

	items, stats, err := f.Fetch(context.Background(), src, 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 4, stats.UpstreamTotal)
	assert.Equal(t, 2, stats.Returned)
}

func TestFetchNegativeDesired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rssBody))
	}))
	defer server.Close()

	f := fetcher.New(testConfig())
	src := domain.Source{Name: "Fixture", URL: server.URL}

	items, stats, err := f.Fetch(context.Background(), src, -5)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, 0, stats.Requested)
}

func TestFetchFallsBackToUpdatedTime(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(atomBody))
	}))
	defer server.Close()

	f := fetcher.New(testConfig())
	src := domain.Source{Name: "Atom Fixture", URL: server.URL}

	items, _, err := f.Fetch(context.Background(), src, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, time.Date(2026, 8, 17, 12, 0, 0, 0, time.UTC), items[0].PublishedAt.UTC())
	assert.Equal(t, "Only the updated field carries a time", items[0].Summary)
}

func TestFetchHTTPErrorFailsWithoutRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f := fetcher.New(testConfig())
	src := domain.Source{Name: "Broken", URL: server.URL}

	items, _, err := f.Fetch(context.Background(), src, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrUnexpectedStatus)
	assert.Nil(t, items)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchEmptyBodyFailsWithoutRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte("   \n\t  "))
	}))
	defer server.Close()

	f := fetcher.New(testConfig())
	src := domain.Source{Name: "Empty", URL: server.URL}

	_, _, err := f.Fetch(context.Background(), src, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrEmptyFeedBody)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchMalformedBodyFailsWithoutRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte("this is not a feed document"))
	}))
	defer server.Close()

	f := fetcher.New(testConfig())
	src := domain.Source{Name: "Garbage", URL: server.URL}

	_, _, err := f.Fetch(context.Background(), src, 10)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchRetriesDroppedConnection(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Error("response writer does not support hijacking")
			return
		}
		conn, _, err := hj.Hijack()
		if err != nil {
			t.Error(err)
			return
		}
		conn.Close()
	}))
	defer server.Close()

	f := fetcher.New(testConfig())
	src := domain.Source{Name: "Flaky", URL: server.URL}

	_, _, err := f.Fetch(context.Background(), src, 10)
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchHeadPrecheck(t *testing.T) {
	t.Run("definitive error status short-circuits", func(t *testing.T) {
		var gets atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			gets.Add(1)
			w.Write([]byte(rssBody))
		}))
		defer server.Close()

		cfg := testConfig()
		cfg.HeadPrecheck = true
		f := fetcher.New(cfg)

		_, _, err := f.Fetch(context.Background(), domain.Source{Name: "Guarded", URL: server.URL}, 10)
		require.Error(t, err)
		assert.ErrorIs(t, err, errs.ErrUnexpectedStatus)
		assert.Equal(t, int32(0), gets.Load())
	})

	t.Run("method not allowed falls through to the download", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			w.Write([]byte(rssBody))
		}))
		defer server.Close()

		cfg := testConfig()
		cfg.HeadPrecheck = true
		f := fetcher.New(cfg)

		items, _, err := f.Fetch(context.Background(), domain.Source{Name: "NoHead", URL: server.URL}, 10)
		require.NoError(t, err)
		assert.Len(t, items, 3)
	})
}
