package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/kyuhyunIm/daily-geek-news-bot/internal/modules/feed/domain"
	"github.com/kyuhyunIm/daily-geek-news-bot/internal/shared/errors"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

type Config struct {
	TelegramBotToken       string               `koanf:"telegram_bot_token"`
	HTTPPort               string               `koanf:"http_port"`
	Feeds                  []domain.Source      `koanf:"feeds"`
	ItemsPerFeed           int                  `koanf:"items_per_feed"`
	DefaultLimit           int                  `koanf:"default_limit"`
	CacheTTLMinutes        int                  `koanf:"cache_ttl_minutes"`
	RequestTimeoutSeconds  int                  `koanf:"request_timeout_seconds"`
	FeedBudgetSeconds      int                  `koanf:"feed_budget_seconds"`
	FetchAttempts          int                  `koanf:"fetch_attempts"`
	RetryBaseDelayMs       int                  `koanf:"retry_base_delay_ms"`
	RetryMaxDelayMs        int                  `koanf:"retry_max_delay_ms"`
	UserAgent              string               `koanf:"user_agent"`
	MaxRedirects           int                  `koanf:"max_redirects"`
	HeadPrecheck           bool                 `koanf:"head_precheck"`
	OverlapPolicy          domain.OverlapPolicy `koanf:"overlap_policy"`
	OverlapWaitSeconds     int                  `koanf:"overlap_wait_seconds"`
	RebalanceEnabled       bool                 `koanf:"rebalance_enabled"`
	RebalanceDeficitMargin int                  `koanf:"rebalance_deficit_margin"`
	RebalanceSurplusFactor int                  `koanf:"rebalance_surplus_factor"`
	DigestTime             string               `koanf:"digest_time"`
	DigestChatIDs          []int64              `koanf:"digest_chat_ids"`
	DigestSize             int                  `koanf:"digest_size"`
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Try to load config file from various formats
	configFiles := []string{
		"config.yaml",
		"config.yml",
		"config.json",
		"config.toml",
	}

	// Use lo.Find to find the first existing config file
	configFile, found := lo.Find(configFiles, func(file string) bool {
		_, err := os.Stat(file)
		return err == nil
	})

	if found {
		var parser koanf.Parser
		ext := filepath.Ext(configFile)

		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		case ".toml":
			parser = toml.Parser()
		default:
			return nil, oops.Errorf("unsupported config file extension: %s", ext)
		}

		if err := k.Load(file.Provider(configFile), parser); err != nil {
			return nil, oops.With("config_file", configFile).Wrap(err)
		}
	}

	// Load environment variables (they override config file values)
	if err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(s)
	}), nil); err != nil {
		return nil, oops.With("context", "loading environment variables").Wrap(err)
	}

	// Set defaults
	if !k.Exists("http_port") {
		k.Set("http_port", "8080")
	}
	if !k.Exists("items_per_feed") {
		k.Set("items_per_feed", 30)
	}
	if !k.Exists("default_limit") {
		k.Set("default_limit", 30)
	}
	if !k.Exists("cache_ttl_minutes") {
		k.Set("cache_ttl_minutes", 10)
	}
	if !k.Exists("request_timeout_seconds") {
		k.Set("request_timeout_seconds", 10)
	}
	if !k.Exists("feed_budget_seconds") {
		k.Set("feed_budget_seconds", 45)
	}
	if !k.Exists("fetch_attempts") {
		k.Set("fetch_attempts", 3)
	}
	if !k.Exists("retry_base_delay_ms") {
		k.Set("retry_base_delay_ms", 1000)
	}
	if !k.Exists("retry_max_delay_ms") {
		k.Set("retry_max_delay_ms", 10000)
	}
	if !k.Exists("user_agent") {
		k.Set("user_agent", "daily-geek-news-bot/1.0 (+https://github.com/kyuhyunIm/daily-geek-news-bot)")
	}
	if !k.Exists("max_redirects") {
		k.Set("max_redirects", 5)
	}
	if !k.Exists("overlap_wait_seconds") {
		k.Set("overlap_wait_seconds", 60)
	}
	if !k.Exists("rebalance_enabled") {
		k.Set("rebalance_enabled", true)
	}
	if !k.Exists("rebalance_deficit_margin") {
		k.Set("rebalance_deficit_margin", 10)
	}
	if !k.Exists("rebalance_surplus_factor") {
		k.Set("rebalance_surplus_factor", 2)
	}
	if !k.Exists("digest_time") {
		k.Set("digest_time", "08:00")
	}
	if !k.Exists("digest_size") {
		k.Set("digest_size", 10)
	}

	// Comma-separated env values for digest_chat_ids arrive as one string;
	// convert before unmarshaling so the []int64 field decodes cleanly
	if raw, ok := k.Get("digest_chat_ids").(string); ok {
		k.Set("digest_chat_ids", ParseChatIDs(raw))
	}

	// Unmarshal into struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.With("context", "unmarshaling config").Wrap(err)
	}

	// Config file lists can carry mixed numeric types depending on the format
	if chatIDs, ok := k.Get("digest_chat_ids").([]interface{}); ok {
		cfg.DigestChatIDs = lo.FilterMap(chatIDs, func(item interface{}, _ int) (int64, bool) {
			switch val := item.(type) {
			case int64:
				return val, true
			case int:
				return int64(val), true
			case float64:
				return int64(val), true
			default:
				return 0, false
			}
		})
	}

	// Parse OverlapPolicy from string if needed
	if policyStr := k.String("overlap_policy"); policyStr != "" {
		if policy, err := domain.ParseOverlapPolicy(policyStr); err == nil {
			cfg.OverlapPolicy = policy
		} else {
			cfg.OverlapPolicy = domain.OverlapPolicyWait
		}
	} else {
		cfg.OverlapPolicy = domain.OverlapPolicyWait
	}

	// Fall back to the built-in source list when no feeds key is present.
	// An explicitly empty list is a configuration mistake, not a request
	// for the defaults.
	if len(cfg.Feeds) == 0 {
		if k.Exists("feeds") {
			return nil, errors.ErrNoFeedsConfigured
		}
		cfg.Feeds = DefaultFeeds()
	}

	// Validate required fields
	if cfg.TelegramBotToken == "" {
		return nil, errors.ErrMissingBotToken
	}
	for _, feed := range cfg.Feeds {
		if feed.Name == "" || feed.URL == "" {
			return nil, oops.With("feed_name", feed.Name, "feed_url", feed.URL).
				Errorf("feed sources need both a name and a url")
		}
	}

	return &cfg, nil
}

// DefaultFeeds returns the built-in geek news source list
func DefaultFeeds() []domain.Source {
	return []domain.Source{
		{Name: "GeekNews", URL: "https://news.hada.io/rss/news"},
		{Name: "Hacker News", URL: "https://hnrss.org/frontpage"},
		{Name: "Lobsters", URL: "https://lobste.rs/rss"},
		{Name: "Dev.to", URL: "https://dev.to/feed"},
		{Name: "TechCrunch", URL: "https://techcrunch.com/feed/"},
	}
}

// ParseChatIDs parses a comma-separated chat IDs string into []int64
func ParseChatIDs(s string) []int64 {
	if s == "" {
		return []int64{}
	}
	parts := strings.Split(s, ",")
	return lo.FilterMap(parts, func(part string, _ int) (int64, bool) {
		part = strings.TrimSpace(part)
		if part == "" {
			return 0, false
		}
		var id int64
		if _, err := fmt.Sscanf(part, "%d", &id); err == nil {
			return id, true
		}
		return 0, false
	})
}
