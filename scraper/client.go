package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/go-scrape-jobs/config"
	"github.com/gocolly/colly/v2"
)

const (
	ctxStartKey  = "start"
	ctxBodyKey   = "body"
	ctxStatusKey = "status"
)

// Fetcher retrieves the raw body of a listing page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// NewFetcher returns the fetcher selected by cfg: a headless browser when UseBrowser is set,
// the HTTP client otherwise.
func NewFetcher(cfg *config.Config, metrics *Metrics) (Fetcher, error) {
	if cfg.UseBrowser {
		return NewBrowserFetcher(cfg, metrics), nil
	}
	return NewClient(cfg, metrics)
}

// Client is the HTTP fetcher. It wraps one synchronous colly collector so every call
// shares the same connection pool and identity header.
type Client struct {
	cfg       *config.Config
	collector *colly.Collector
	Metrics   *Metrics
	logger    *slog.Logger

	requestCount int64
	handlersOnce sync.Once
}

// NewClient builds a fetch client configured from cfg.
func NewClient(cfg *config.Config, metrics *Metrics) (*Client, error) {
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Parallelism,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	if metrics == nil {
		metrics = NewMetrics()
	}
	c := &Client{
		cfg:       cfg,
		collector: collector,
		Metrics:   metrics,
		logger:    slog.Default(),
	}
	c.configureHandlers()
	return c, nil
}

// SetTransport swaps the round tripper used by the collector.
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.collector.WithTransport(rt)
}

// RequestCount returns the number of HTTP requests issued so far, retries included.
func (c *Client) RequestCount() int {
	return int(atomic.LoadInt64(&c.requestCount))
}

// Fetch issues a GET for url and returns the body. Every failure is a *FetchError.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var lastErr *FetchError
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, newFetchError(url, err, 0)
		}

		body, fetchErr := c.fetchOnceContext(ctx, url)
		if fetchErr == nil {
			return body, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, newFetchError(url, ctxErr, 0)
		}
		lastErr = fetchErr
		c.Metrics.IncError(fetchErr.Kind)
		c.logger.Debug("fetch failed",
			slog.String("url", url),
			slog.String("category", fetchErr.Kind),
			slog.Int("attempt", attempt+1),
			slog.Any("error", fetchErr.Err),
		)

		if attempt >= c.cfg.MaxRetries || !retryable(fetchErr) {
			return nil, lastErr
		}

		c.Metrics.IncRetries()
		timer := time.NewTimer(backoff(c.cfg, attempt+1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, lastErr
		case <-timer.C:
		}
	}
}

type fetchResult struct {
	body []byte
	err  *FetchError
}

// fetchOnceContext runs one request and returns as soon as ctx is done. colly requests carry no
// context, so an abandoned request finishes in the background within cfg.Timeout.
func (c *Client) fetchOnceContext(ctx context.Context, url string) ([]byte, *FetchError) {
	done := make(chan fetchResult, 1)
	go func() {
		body, err := c.fetchOnce(url)
		done <- fetchResult{body: body, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, newFetchError(url, ctx.Err(), 0)
	case res := <-done:
		return res.body, res.err
	}
}

func (c *Client) fetchOnce(url string) ([]byte, *FetchError) {
	reqCtx := colly.NewContext()
	err := c.collector.Request(http.MethodGet, url, nil, reqCtx, nil)
	status, _ := reqCtx.GetAny(ctxStatusKey).(int)
	if err != nil {
		return nil, newFetchError(url, err, status)
	}
	body, ok := reqCtx.GetAny(ctxBodyKey).([]byte)
	if !ok {
		return nil, newFetchError(url, errors.New("no response body"), status)
	}
	return body, nil
}

func (c *Client) configureHandlers() {
	c.handlersOnce.Do(func() {
		c.collector.OnRequest(func(r *colly.Request) {
			r.Ctx.Put(ctxStartKey, time.Now())
			current := atomic.AddInt64(&c.requestCount, 1)
			c.Metrics.IncRequest("started")
			if current%50 == 0 {
				c.logger.Debug("fetch request progress",
					slog.Int64("requests", current),
					slog.String("url", r.URL.String()),
				)
			}
		})

		c.collector.OnResponse(func(r *colly.Response) {
			r.Ctx.Put(ctxStatusKey, r.StatusCode)
			r.Ctx.Put(ctxBodyKey, r.Body)
			c.Metrics.IncRequest("completed")
			if start, ok := r.Request.Ctx.GetAny(ctxStartKey).(time.Time); ok {
				c.Metrics.ObserveDuration(time.Since(start))
			}
		})

		c.collector.OnError(func(r *colly.Response, err error) {
			if r == nil || r.Ctx == nil {
				return
			}
			r.Ctx.Put(ctxStatusKey, r.StatusCode)
			c.Metrics.IncRequest("failed")
			if start, ok := r.Ctx.GetAny(ctxStartKey).(time.Time); ok {
				c.Metrics.ObserveDuration(time.Since(start))
			}
		})
	})
}

func retryable(err *FetchError) bool {
	switch err.Kind {
	case "not_found", "forbidden":
		return false
	}
	return true
}

func backoff(cfg *config.Config, attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode >= http.StatusMultipleChoices || (statusCode != 0 && statusCode < http.StatusOK) {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch statusCode {
		case http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case http.StatusNotFound:
			return ErrNotFound{Err: wrapped}
		case http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		default:
			return ErrHTTPStatus{StatusCode: statusCode, Err: wrapped}
		}
	}

	if err == nil {
		return nil
	}
	return err
}
