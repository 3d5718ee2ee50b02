package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-jobs/config"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// BrowserFetcher renders listing pages in headless Chrome before returning their HTML.
// It satisfies Fetcher and is selected with Config.UseBrowser.
type BrowserFetcher struct {
	timeout    time.Duration
	controlURL string
	metrics    *Metrics
	logger     *slog.Logger

	mu      sync.Mutex
	browser *rod.Browser
}

// NewBrowserFetcher creates a fetcher that connects lazily on first use.
func NewBrowserFetcher(cfg *config.Config, metrics *Metrics) *BrowserFetcher {
	if metrics == nil {
		metrics = NewMetrics()
	}
	controlURL, _ := config.EnvString("JOBSCAN_BROWSER_URL")
	return &BrowserFetcher{
		timeout:    cfg.Timeout,
		controlURL: controlURL,
		metrics:    metrics,
		logger:     slog.Default(),
	}
}

// Fetch navigates to url, waits for the load event and returns the rendered document.
func (b *BrowserFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, newFetchError(url, err, 0)
	}

	browser, err := b.connect()
	if err != nil {
		fetchErr := newFetchError(url, err, 0)
		b.metrics.IncError(fetchErr.Kind)
		return nil, fetchErr
	}

	start := time.Now()
	b.metrics.IncRequest("started")
	html, err := b.render(ctx, browser, url)
	b.metrics.ObserveDuration(time.Since(start))
	if err != nil {
		b.metrics.IncRequest("failed")
		fetchErr := newFetchError(url, err, 0)
		b.metrics.IncError(fetchErr.Kind)
		return nil, fetchErr
	}
	b.metrics.IncRequest("completed")
	return []byte(html), nil
}

func (b *BrowserFetcher) render(ctx context.Context, browser *rod.Browser, url string) (string, error) {
	page, err := browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return "", fmt.Errorf("open page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			b.logger.Debug("close browser page", slog.String("url", url), slog.Any("error", err))
		}
	}()

	bounded := page.Context(ctx).Timeout(b.timeout)
	if err := bounded.WaitLoad(); err != nil {
		return "", fmt.Errorf("wait load: %w", err)
	}
	html, err := bounded.HTML()
	if err != nil {
		return "", fmt.Errorf("read html: %w", err)
	}
	return html, nil
}

func (b *BrowserFetcher) connect() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		return b.browser, nil
	}
	browser := rod.New()
	if b.controlURL != "" {
		browser = browser.ControlURL(b.controlURL)
	}
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	b.logger.Info("headless browser connected")
	b.browser = browser
	return browser, nil
}

// Close shuts the browser down if it was started.
func (b *BrowserFetcher) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	b.browser = nil
	return err
}
