package scraper

import (
	"context"
	"sync"

	"unreplied/pkg/log"

	"github.com/chromedp/chromedp"
)

// PoolOptions configures the browser pool.
type PoolOptions struct {
	// ChromePath is an explicit Chrome/Chromium binary (systemd-safe).
	ChromePath string
	// RemoteURL connects to an already running Chrome devtools endpoint
	// instead of launching a local process.
	RemoteURL string
	// MaxTabs bounds concurrently open tabs. Defaults to 1.
	MaxTabs int
	// Flags are appended to the default allocator flags.
	Flags []chromedp.ExecAllocatorOption
}

// BrowserPool manages a single Chrome process and bounds the number of
// tabs open at the same time.
type BrowserPool struct {
	newAlloc func() (context.Context, context.CancelFunc)

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	slots  *tabSlots
}

// NewBrowserPool starts (or connects to) one Chrome instance.
func NewBrowserPool(opts PoolOptions) (*BrowserPool, error) {
	bp := &BrowserPool{slots: newTabSlots(opts.MaxTabs)}

	if opts.RemoteURL != "" {
		log.GlobalInfo("browser pool using remote chrome", "url", opts.RemoteURL)
		bp.newAlloc = func() (context.Context, context.CancelFunc) {
			return chromedp.NewRemoteAllocator(context.Background(), opts.RemoteURL)
		}
	} else {
		flags := allocatorFlags(opts)
		bp.newAlloc = func() (context.Context, context.CancelFunc) {
			return chromedp.NewExecAllocator(context.Background(), flags...)
		}
	}

	if err := bp.start(); err != nil {
		return nil, err
	}
	return bp, nil
}

func allocatorFlags(opts PoolOptions) []chromedp.ExecAllocatorOption {
	flags := append(chromedp.DefaultExecAllocatorOptions[:],
		// Core
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),

		// Memory / CPU reduction
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("disable-component-update", true),
		chromedp.Flag("disable-features", "Translate,BackForwardCache"),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("no-first-run", true),
	)
	flags = append(flags, opts.Flags...)

	if opts.ChromePath != "" {
		log.GlobalInfo("browser pool using custom chrome path", "path", opts.ChromePath)
		flags = append(flags, chromedp.ExecPath(opts.ChromePath))
	}
	return flags
}

// start initializes or restarts the Chrome process.
func (bp *BrowserPool) start() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if bp.cancel != nil {
		bp.cancel()
	}

	allocCtx, allocCancel := bp.newAlloc()
	ctx, ctxCancel := chromedp.NewContext(allocCtx)

	// Force Chrome startup
	if err := chromedp.Run(ctx); err != nil {
		ctxCancel()
		allocCancel()
		return err
	}

	bp.ctx = ctx
	bp.cancel = func() {
		ctxCancel()
		allocCancel()
	}

	log.GlobalInfo("browser pool chrome started")
	return nil
}

// WithTab runs fn with a fresh tab. It blocks until a tab slot is free or
// ctx is done; cancelling ctx also closes the tab.
func (bp *BrowserPool) WithTab(ctx context.Context, fn func(tabCtx context.Context) error) error {
	if err := bp.slots.acquire(ctx); err != nil {
		return err
	}
	defer bp.slots.release()

	tabCtx, tabCancel, err := bp.acquireTab()
	if err != nil {
		return err
	}
	defer tabCancel()

	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	return fn(tabCtx)
}

// Render navigates a tab to url, waits until waitSelector is visible and
// returns the page HTML.
func (bp *BrowserPool) Render(ctx context.Context, url, waitSelector string) (string, error) {
	var html string
	err := bp.WithTab(ctx, func(tabCtx context.Context) error {
		return chromedp.Run(tabCtx,
			chromedp.Navigate(url),
			chromedp.WaitVisible(waitSelector, chromedp.ByQuery),
			chromedp.OuterHTML("html", &html),
		)
	})
	return html, err
}

// acquireTab creates a tab and health-checks it, restarting Chrome once
// when the check fails.
func (bp *BrowserPool) acquireTab() (context.Context, context.CancelFunc, error) {
	bp.mu.Lock()
	tabCtx, tabCancel := chromedp.NewContext(bp.ctx)
	bp.mu.Unlock()

	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()

		log.GlobalWarn("browser pool tab failed, restarting chrome", "error", err)

		if restartErr := bp.start(); restartErr != nil {
			return nil, nil, restartErr
		}

		bp.mu.Lock()
		tabCtx, tabCancel = chromedp.NewContext(bp.ctx)
		bp.mu.Unlock()
	}

	return tabCtx, tabCancel, nil
}

// Close shuts down the browser completely.
func (bp *BrowserPool) Close() {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if bp.cancel != nil {
		bp.cancel()
		bp.cancel = nil
		log.GlobalInfo("browser pool chrome stopped")
	}
}

// tabSlots is a counting semaphore over open tabs.
type tabSlots struct {
	ch chan struct{}
}

func newTabSlots(n int) *tabSlots {
	if n < 1 {
		n = 1
	}
	return &tabSlots{ch: make(chan struct{}, n)}
}

func (s *tabSlots) acquire(ctx context.Context) error {
	select {
	case s.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *tabSlots) release() {
	<-s.ch
}

func (s *tabSlots) inUse() int {
	return len(s.ch)
}
