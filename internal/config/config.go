package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// 対応する上流の種類。
const (
	UpstreamFirebase = "firebase"
	UpstreamRSS      = "rss"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseDriver string `env:"DATABASE_DRIVER, default=postgres"`
	DatabaseURL    string `env:"DATABASE_URL"`

	// Upstream
	UpstreamKind         string        `env:"UPSTREAM_KIND, default=firebase"`
	UpstreamBaseURL      string        `env:"UPSTREAM_BASE_URL, default=https://hacker-news.firebaseio.com/v0"`
	UpstreamRSSURL       string        `env:"UPSTREAM_RSS_URL, default=https://hnrss.org/frontpage"`
	UpstreamTimeout      time.Duration `env:"UPSTREAM_TIMEOUT, default=10s"`
	UpstreamMaxItems     int           `env:"UPSTREAM_MAX_ITEMS, default=500"`
	UpstreamAllowPrivate bool          `env:"UPSTREAM_ALLOW_PRIVATE, default=false"`

	// Refresh
	RefreshConcurrency int           `env:"REFRESH_CONCURRENCY, default=10"`
	RefreshInterval    time.Duration `env:"REFRESH_INTERVAL, default=15m"`
	RefreshMaxRetries  uint64        `env:"REFRESH_MAX_RETRIES, default=3"`
	Timezone           string        `env:"TIMEZONE, default=Local"`

	// Feed
	FeedPageSize  int `env:"FEED_PAGE_SIZE, default=10"`
	NewsfeedLimit int `env:"NEWSFEED_LIMIT, default=30"`

	// Rate Limit
	RateLimitReaction int `env:"RATE_LIMIT_REACTION, default=60"`

	// Identity
	IdentityHeaderPrefix string        `env:"IDENTITY_HEADER_PREFIX, default=X-Auth-Request-"`
	AdminCacheTTL        time.Duration `env:"ADMIN_CACHE_TTL, default=1m"`
	AdminCacheSize       int           `env:"ADMIN_CACHE_SIZE, default=1024"`

	// Server
	ServerPort string `env:"SERVER_PORT, default=8080"`

	// Cookie
	CookieSecure bool `env:"COOKIE_SECURE, default=false"`

	// CORS（カンマ区切りで複数のオリジンを指定できる）
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN, default=http://localhost:3000"`
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	return LoadWith(context.Background(), envconfig.OsLookuper())
}

// LoadWith は指定したLookuperからConfigを読み込む。
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	// Required fields
	var missing []string
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be postgres or sqlite: %q", c.DatabaseDriver)
	}

	switch c.UpstreamKind {
	case UpstreamFirebase, UpstreamRSS:
	default:
		return fmt.Errorf("UPSTREAM_KIND must be %s or %s: %q", UpstreamFirebase, UpstreamRSS, c.UpstreamKind)
	}

	if c.FeedPageSize <= 0 {
		return fmt.Errorf("FEED_PAGE_SIZE must be positive: %d", c.FeedPageSize)
	}
	if c.RefreshConcurrency <= 0 {
		return fmt.Errorf("REFRESH_CONCURRENCY must be positive: %d", c.RefreshConcurrency)
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive: %v", c.UpstreamTimeout)
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return nil
}

// Location はTIMEZONEに対応するロケーションを返す。
// validate済みのConfigではエラーにならない。
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
