package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"unreplied/internal/adapters/cache"
	"unreplied/internal/adapters/hub"
	"unreplied/internal/adapters/inmemory"
	"unreplied/internal/adapters/replica"
	"unreplied/internal/adapters/scraper"
	"unreplied/internal/adapters/search"
	"unreplied/internal/adapters/upstream"
	"unreplied/internal/config"
	"unreplied/internal/usecases"
	"unreplied/pkg/log"

	"github.com/redis/go-redis/v9"
)

// backends are the ports served by the configured source.
type backends struct {
	source   usecases.ConversationSource
	lister   usecases.CastLister
	profiles usecases.ProfileResolver
	repo     usecases.ConversationRepository // replica only
	closers  []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	switch cfg.Source.Kind {
	case config.SourceHub:
		src := newHubSource(cfg.Hub)
		return &backends{source: src, lister: src, profiles: src}, nil

	case config.SourceSearch:
		src := search.NewSource(cfg.Search.URL, cfg.Search.APIKey,
			upstream.WithRateLimit(cfg.Search.RequestsPerSecond, cfg.Search.Burst))
		return &backends{source: src, lister: src, profiles: src}, nil

	case config.SourceReplica:
		repo, err := replica.Open(ctx, cfg.Replica.DSN)
		if err != nil {
			return nil, err
		}
		if cfg.Replica.Migrate {
			if err := repo.Migrate(ctx); err != nil {
				repo.Close()
				return nil, err
			}
		}
		return &backends{source: repo, lister: repo, profiles: repo, repo: repo, closers: []func(){repo.Close}}, nil

	case config.SourceWeb:
		return openWebSource(cfg)

	case config.SourceMemory:
		store := inmemory.New()
		inmemory.Seed(store, time.Now())
		log.GlobalInfo("memory source seeded", "fid", inmemory.DemoFID)
		return &backends{source: store, lister: store, profiles: store}, nil
	}
	return nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
}

func newHubSource(cfg config.HubConfig) *hub.Source {
	return hub.NewSource(upstream.NewClient(cfg.URL, upstream.WithRateLimit(cfg.RequestsPerSecond, cfg.Burst)))
}

// openWebSource renders conversations in Chrome and lists casts through
// the hub.
func openWebSource(cfg *config.Config) (*backends, error) {
	selectors, err := scraper.LoadSelectors(cfg.Web.SelectorsFile)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.GlobalWarn("selectors file not found, using built-in selectors", "path", cfg.Web.SelectorsFile)
		selectors = scraper.DefaultSelectors()
	case err != nil:
		return nil, fmt.Errorf("load selectors: %w", err)
	}

	pool, err := scraper.NewBrowserPool(scraper.PoolOptions{
		ChromePath: cfg.Web.ChromePath,
		RemoteURL:  cfg.Web.RemoteURL,
		MaxTabs:    cfg.Web.MaxTabs,
	})
	if err != nil {
		selectors.Close()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	listing := newHubSource(cfg.Hub)
	return &backends{
		source:   scraper.NewWebSource(pool, selectors, cfg.Web.BaseURL),
		lister:   listing,
		profiles: listing,
		closers:  []func(){selectors.Close, pool.Close},
	}, nil
}

// openCache builds the listing cache. An unreachable Redis is logged and
// kept: every lookup then misses and the service keeps working.
func openCache(ctx context.Context, cfg config.CacheConfig) (usecases.ListingCache, func()) {
	if cfg.Backend != config.CacheRedis {
		mc := cache.NewMemoryCache(cfg.TTL)
		return mc, mc.Close
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	rc := cache.NewRedisCache(client, cfg.TTL)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		log.GlobalWarn("redis unreachable, listing cache will miss", "addr", cfg.RedisAddr, "error", err)
	} else {
		log.GlobalInfo("redis listing cache connected", "addr", cfg.RedisAddr)
	}
	return rc, func() { _ = rc.Close() }
}
