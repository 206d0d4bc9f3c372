package config_test

import (
	"os"
	"testing"

	"github.com/kyuhyunIm/daily-geek-news-bot/internal/modules/feed/domain"
	"github.com/kyuhyunIm/daily-geek-news-bot/internal/shared/config"
	sharedErrors "github.com/kyuhyunIm/daily-geek-news-bot/internal/shared/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TELEGRAM_BOT_TOKEN", "test-token")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "test-token", cfg.TelegramBotToken)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 30, cfg.ItemsPerFeed)
	assert.Equal(t, 30, cfg.DefaultLimit)
	assert.Equal(t, 10, cfg.CacheTTLMinutes)
	assert.Equal(t, 10, cfg.RequestTimeoutSeconds)
	assert.Equal(t, 45, cfg.FeedBudgetSeconds)
	assert.Equal(t, 3, cfg.FetchAttempts)
	assert.Equal(t, 1000, cfg.RetryBaseDelayMs)
	assert.Equal(t, 10000, cfg.RetryMaxDelayMs)
	assert.Equal(t, 5, cfg.MaxRedirects)
	assert.False(t, cfg.HeadPrecheck)
	assert.Equal(t, domain.OverlapPolicyWait, cfg.OverlapPolicy)
	assert.Equal(t, 60, cfg.OverlapWaitSeconds)
	assert.True(t, cfg.RebalanceEnabled)
	assert.Equal(t, 10, cfg.RebalanceDeficitMargin)
	assert.Equal(t, 2, cfg.RebalanceSurplusFactor)
	assert.Equal(t, "08:00", cfg.DigestTime)
	assert.Empty(t, cfg.DigestChatIDs)
	assert.Equal(t, 10, cfg.DigestSize)
	assert.Equal(t, config.DefaultFeeds(), cfg.Feeds)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TELEGRAM_BOT_TOKEN", "test-token")
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("ITEMS_PER_FEED", "7")
	t.Setenv("CACHE_TTL_MINUTES", "3")
	t.Setenv("OVERLAP_POLICY", "empty")
	t.Setenv("DIGEST_CHAT_IDS", "123, -100456")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.HTTPPort)
	assert.Equal(t, 7, cfg.ItemsPerFeed)
	assert.Equal(t, 3, cfg.CacheTTLMinutes)
	assert.Equal(t, domain.OverlapPolicyEmpty, cfg.OverlapPolicy)
	assert.Equal(t, []int64{123, -100456}, cfg.DigestChatIDs)
}

func TestLoadUnknownOverlapPolicyFallsBack(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TELEGRAM_BOT_TOKEN", "test-token")
	t.Setenv("OVERLAP_POLICY", "panic")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, domain.OverlapPolicyWait, cfg.OverlapPolicy)
}

func TestLoadMissingToken(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TELEGRAM_BOT_TOKEN", "")

	_, err := config.Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, sharedErrors.ErrMissingBotToken)
}

func TestLoadConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TELEGRAM_BOT_TOKEN", "test-token")

	yaml := `feeds:
  - name: Example
    url: https://example.com/rss
items_per_feed: 12
digest_chat_ids:
  - 42
  - 77
`
	require.NoError(t, os.WriteFile("config.yaml", []byte(yaml), 0o644))

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, []domain.Source{{Name: "Example", URL: "https://example.com/rss"}}, cfg.Feeds)
	assert.Equal(t, 12, cfg.ItemsPerFeed)
	assert.Equal(t, []int64{42, 77}, cfg.DigestChatIDs)
}

func TestLoadRejectsExplicitlyEmptyFeeds(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TELEGRAM_BOT_TOKEN", "test-token")

	require.NoError(t, os.WriteFile("config.yaml", []byte("feeds: []\n"), 0o644))

	_, err := config.Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, sharedErrors.ErrNoFeedsConfigured)
}

func TestLoadRejectsIncompleteFeed(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TELEGRAM_BOT_TOKEN", "test-token")

	yaml := `feeds:
  - name: Nameless
`
	require.NoError(t, os.WriteFile("config.yaml", []byte(yaml), 0o644))

	_, err := config.Load()
	require.Error(t, err)
}

func TestParseChatIDs(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []int64
	}{
		{
			name:     "empty string",
			input:    "",
			expected: []int64{},
		},
		{
			name:     "single id",
			input:    "123",
			expected: []int64{123},
		},
		{
			name:     "multiple ids",
			input:    "123,456",
			expected: []int64{123, 456},
		},
		{
			name:     "spaces around ids",
			input:    " 1 , 2 ",
			expected: []int64{1, 2},
		},
		{
			name:     "group chat ids are negative",
			input:    "-1001234567890",
			expected: []int64{-1001234567890},
		},
		{
			name:     "junk entries are skipped",
			input:    "abc,3,,",
			expected: []int64{3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, config.ParseChatIDs(tt.input))
		})
	}
}
