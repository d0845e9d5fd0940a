// Package config loads service settings from .env, a YAML file and the
// environment, in that order of precedence (last wins).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"unreplied/internal/domain"
	"unreplied/internal/usecases"
	"unreplied/pkg/log"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the YAML file read when UNREPLIED_CONFIG is not set.
const DefaultPath = "config/unreplied.yaml"

// Source kinds.
const (
	SourceHub     = "hub"
	SourceSearch  = "search"
	SourceReplica = "replica"
	SourceWeb     = "web"
	SourceMemory  = "memory"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config is the full service configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Source     SourceConfig     `yaml:"source"`
	Hub        HubConfig        `yaml:"hub"`
	Search     SearchConfig     `yaml:"search"`
	Replica    ReplicaConfig    `yaml:"replica"`
	Web        WebConfig        `yaml:"web"`
	Cache      CacheConfig      `yaml:"cache"`
	Walker     WalkerConfig     `yaml:"walker"`
	Pagination PaginationConfig `yaml:"pagination"`
	Links      LinksConfig      `yaml:"links"`
}

type ServerConfig struct {
	Port               string        `yaml:"port"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute"`
	RateLimitBurst     int           `yaml:"rate_limit_burst"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"` // empty disables file output
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type SourceConfig struct {
	Kind string `yaml:"kind"`
}

type HubConfig struct {
	URL               string  `yaml:"url"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type SearchConfig struct {
	URL               string  `yaml:"url"`
	APIKey            string  `yaml:"api_key"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type ReplicaConfig struct {
	DSN     string `yaml:"dsn"`
	Migrate bool   `yaml:"migrate"`
}

// WebConfig configures the rendered-web source. It lists casts through the
// hub, so hub.url is required as well.
type WebConfig struct {
	BaseURL       string `yaml:"base_url"`
	SelectorsFile string `yaml:"selectors_file"`
	ChromePath    string `yaml:"chrome_path"`
	RemoteURL     string `yaml:"remote_url"`
	MaxTabs       int    `yaml:"max_tabs"`
}

type CacheConfig struct {
	Backend       string        `yaml:"backend"`
	TTL           time.Duration `yaml:"ttl"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
}

type WalkerConfig struct {
	MaxDepth     int           `yaml:"max_depth"`
	MaxFanout    int           `yaml:"max_fanout"`
	MaxNodes     int           `yaml:"max_nodes"`
	MaxInFlight  int           `yaml:"max_in_flight"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

type PaginationConfig struct {
	DefaultLimit int           `yaml:"default_limit"`
	MaxLimit     int           `yaml:"max_limit"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
}

type LinksConfig struct {
	CastURLBase string `yaml:"cast_url_base"`
	SiteURL     string `yaml:"site_url"`
}

// Default returns the built-in settings.
func Default() *Config {
	w := usecases.DefaultWalkerConfig()
	return &Config{
		Server: ServerConfig{
			Port:               "3000",
			RequestTimeout:     30 * time.Second,
			RateLimitPerMinute: 120,
			RateLimitBurst:     20,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
		Source: SourceConfig{Kind: SourceHub},
		Hub: HubConfig{
			URL:               "https://hub.pinata.cloud",
			RequestsPerSecond: 20,
			Burst:             10,
		},
		Search: SearchConfig{
			URL:               "https://api.neynar.com",
			RequestsPerSecond: 5,
			Burst:             5,
		},
		Web: WebConfig{
			BaseURL:       usecases.DefaultCastURLBase,
			SelectorsFile: "config/selectors.yaml",
			MaxTabs:       1,
		},
		Cache: CacheConfig{
			Backend: CacheMemory,
			TTL:     5 * time.Minute,
		},
		Walker: WalkerConfig{
			MaxDepth:     w.MaxDepth,
			MaxFanout:    w.MaxFanout,
			MaxNodes:     w.MaxNodes,
			MaxInFlight:  w.MaxInFlight,
			FetchTimeout: w.FetchTimeout,
		},
		Pagination: PaginationConfig{
			DefaultLimit: domain.DefaultPageLimit,
			MaxLimit:     usecases.DefaultMaxPageLimit,
			SessionTTL:   usecases.DefaultSessionTTL,
		},
		Links: LinksConfig{
			CastURLBase: usecases.DefaultCastURLBase,
			SiteURL:     "http://localhost:3000",
		},
	}
}

// Load reads .env, then the YAML file at path (UNREPLIED_CONFIG or
// DefaultPath when empty), then environment overrides. A missing .env or
// YAML file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if path == "" {
		path = os.Getenv("UNREPLIED_CONFIG")
	}
	if path == "" {
		path = DefaultPath
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.GlobalInfo("config file not found, using defaults", "path", path)
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv(os.LookupEnv)
	return cfg, nil
}

// applyEnv overrides settings from environment variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str("PORT", &c.Server.Port)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FILE", &c.Log.File)
	str("UNREPLIED_SOURCE", &c.Source.Kind)
	str("HUB_URL", &c.Hub.URL)
	str("SEARCH_URL", &c.Search.URL)
	str("NEYNAR_API_KEY", &c.Search.APIKey)
	str("REPLICA_DSN", &c.Replica.DSN)
	str("WEB_BASE_URL", &c.Web.BaseURL)
	str("CHROME_PATH", &c.Web.ChromePath)
	str("CHROME_REMOTE_URL", &c.Web.RemoteURL)
	str("CACHE_BACKEND", &c.Cache.Backend)
	str("REDIS_ADDR", &c.Cache.RedisAddr)
	str("REDIS_PASSWORD", &c.Cache.RedisPassword)
	str("CAST_URL_BASE", &c.Links.CastURLBase)
	str("SITE_URL", &c.Links.SiteURL)

	if v, ok := lookup("CACHE_TTL_MINUTES"); ok && v != "" {
		minutes, err := strconv.Atoi(v)
		if err != nil || minutes < 0 {
			log.GlobalWarn("invalid CACHE_TTL_MINUTES, keeping configured ttl", "value", v, "ttl", c.Cache.TTL.String())
		} else {
			c.Cache.TTL = time.Duration(minutes) * time.Minute
		}
	}
}

// Validate reports every missing or inconsistent setting. The returned
// error matches domain.ErrMisconfigured.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{domain.ErrMisconfigured}, args...)...))
	}

	switch c.Source.Kind {
	case SourceHub:
		if c.Hub.URL == "" {
			fail("hub source needs hub.url (HUB_URL)")
		}
	case SourceSearch:
		if c.Search.URL == "" {
			fail("search source needs search.url (SEARCH_URL)")
		}
		if c.Search.APIKey == "" {
			fail("search source needs search.api_key (NEYNAR_API_KEY)")
		}
	case SourceReplica:
		if c.Replica.DSN == "" {
			fail("replica source needs replica.dsn (REPLICA_DSN)")
		}
	case SourceWeb:
		if c.Web.BaseURL == "" {
			fail("web source needs web.base_url (WEB_BASE_URL)")
		}
		if c.Hub.URL == "" {
			fail("web source lists casts through the hub and needs hub.url (HUB_URL)")
		}
	case SourceMemory:
	default:
		fail("unknown source kind %q", c.Source.Kind)
	}

	switch c.Cache.Backend {
	case CacheMemory:
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			fail("redis cache needs cache.redis_addr (REDIS_ADDR)")
		}
	default:
		fail("unknown cache backend %q", c.Cache.Backend)
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		fail("log level: %v", err)
	}
	if c.Server.Port == "" {
		fail("server.port is empty")
	}
	if c.Walker.MaxDepth < 0 || c.Walker.MaxFanout < 0 || c.Walker.MaxNodes < 0 || c.Walker.MaxInFlight < 0 || c.Walker.FetchTimeout < 0 {
		fail("walker limits must not be negative")
	}
	if c.Pagination.DefaultLimit < 0 || c.Pagination.MaxLimit < 0 {
		fail("pagination limits must not be negative")
	}
	if c.Pagination.MaxLimit > 0 && c.Pagination.DefaultLimit > c.Pagination.MaxLimit {
		fail("pagination.default_limit %d exceeds max_limit %d", c.Pagination.DefaultLimit, c.Pagination.MaxLimit)
	}

	return errors.Join(errs...)
}

// WalkerConfig converts the walker section; zero values take defaults.
func (c *Config) WalkerConfig() usecases.WalkerConfig {
	return usecases.WalkerConfig{
		MaxDepth:     c.Walker.MaxDepth,
		MaxFanout:    c.Walker.MaxFanout,
		MaxNodes:     c.Walker.MaxNodes,
		MaxInFlight:  c.Walker.MaxInFlight,
		FetchTimeout: c.Walker.FetchTimeout,
	}
}

// LogLevel returns the parsed log level, Info when invalid.
func (c *Config) LogLevel() log.Level {
	lvl, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.Info
	}
	return lvl
}
