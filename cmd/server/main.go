package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"unreplied/internal/adapters/web"
	"unreplied/internal/config"
	"unreplied/internal/usecases"
	"unreplied/pkg/log"
	"unreplied/pkg/log/transporters"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "unreplied: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log, cfg.LogLevel())
	log.SetDefault(logger)
	defer logger.Close()

	if err := cfg.Validate(); err != nil {
		log.GlobalFatal("invalid configuration", "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize adapters
	b, err := openBackends(ctx, cfg)
	if err != nil {
		log.GlobalFatal("failed to initialize source", "source", cfg.Source.Kind, "error", err)
		return err
	}
	defer b.close()

	listingCache, closeCache := openCache(ctx, cfg.Cache)
	defer closeCache()

	// Initialize use cases
	stats := usecases.NewStats()
	walker := usecases.NewWalker(b.source, cfg.WalkerConfig(), stats)
	fetch := usecases.NewFetchUnrepliedUseCase(b.lister, walker, usecases.NewProjector(cfg.Links.CastURLBase),
		usecases.WithListingCache(listingCache),
		usecases.WithProfiles(b.profiles),
		usecases.WithStats(stats),
		usecases.WithPageLimits(cfg.Pagination.DefaultLimit, cfg.Pagination.MaxLimit),
	)
	coordinator := usecases.NewCoordinator(fetch, usecases.NewSessionStore(cfg.Pagination.SessionTTL))
	defer coordinator.Close()

	var conversations *usecases.ListConversationsUseCase
	if b.repo != nil {
		conversations = usecases.NewListConversationsUseCase(b.repo)
	}

	// Initialize web handlers
	handlers := web.NewHandlers(web.Dependencies{
		Pages:         fetch,
		Coordinator:   coordinator,
		Walker:        walker,
		Conversations: conversations,
		Stats:         stats,
		Feed:          web.FeedConfig{Title: "Unreplied", SiteURL: cfg.Links.SiteURL},
		Timeout:       cfg.Server.RequestTimeout,
	})
	rateLimiter := web.NewRateLimiter(web.PerMinute(cfg.Server.RateLimitPerMinute), cfg.Server.RateLimitBurst)
	defer rateLimiter.Close()

	app := web.NewApp("Unreplied")
	web.SetupRoutes(app, handlers, rateLimiter)

	errCh := make(chan error, 1)
	go func() {
		log.GlobalInfo("starting unreplied", "port", cfg.Server.Port, "source", b.source.Name(), "cache", cfg.Cache.Backend)
		errCh <- app.Listen(":" + cfg.Server.Port)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.GlobalFatal("server stopped", "error", err)
		}
		return err
	case <-ctx.Done():
	}

	log.GlobalInfo("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil && !errors.Is(err, context.Canceled) {
		log.GlobalError("shutdown failed", "error", err)
		return err
	}
	return nil
}

// newLogger writes JSON lines to stdout and, when configured, to a
// rotating file.
func newLogger(cfg config.LogConfig, level log.Level) *log.Logger {
	outputs := []log.Transporter{transporters.NewStdout()}
	if cfg.File != "" {
		outputs = append(outputs, transporters.NewFile(transporters.FileOptions{
			Path:       cfg.File,
			MaxSizeMB:  cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAgeDays: cfg.MaxAgeDays,
			Compress:   true,
		}))
	}
	return log.New(level, outputs...)
}
