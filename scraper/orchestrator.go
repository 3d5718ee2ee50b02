package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/go-scrape-jobs/config"
	"github.com/aluiziolira/go-scrape-jobs/models"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Extractor turns a fetched page into listings. Errors are reported per unit and never abort a run.
type Extractor interface {
	Extract(body []byte, site models.JobSite) ([]*models.JobListing, error)
}

type requestCounter interface {
	RequestCount() int
}

// Orchestrator drives one crawl over every (active site, query) unit and streams events.
type Orchestrator struct {
	cfg       *config.Config
	fetcher   Fetcher
	extractor Extractor
	metrics   *Metrics
	logger    *slog.Logger

	state      atomic.Int32
	stopFlag   atomic.Bool
	stopOnce   sync.Once
	cancelWait context.CancelFunc
	waitCtx    context.Context

	mu        sync.Mutex
	result    models.CrawlResult
	completed int
}

// OrchestratorOption customises an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithMetrics records unit and listing counters on m.
func WithMetrics(m *Metrics) OrchestratorOption {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithLogger sets the logger used for crawl progress.
func WithLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// NewOrchestrator captures a private copy of cfg; later edits by the caller do not affect the run.
func NewOrchestrator(cfg *config.Config, fetcher Fetcher, extractor Extractor, opts ...OrchestratorOption) *Orchestrator {
	waitCtx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		cfg:        cfg.Clone(),
		fetcher:    fetcher,
		extractor:  extractor,
		logger:     slog.Default(),
		waitCtx:    waitCtx,
		cancelWait: cancel,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State reports the current lifecycle state.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// Stop asks the run to finish after the in-flight unit. Safe to call from any goroutine, any number of times.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		o.stopFlag.Store(true)
		o.state.CompareAndSwap(int32(StateRunning), int32(StateStopping))
		o.cancelWait()
		o.logger.Info("crawl stop requested")
	})
}

// Start validates the configuration and launches the crawl. The returned channel must be drained
// until it is closed; the last event is always EventFinished.
func (o *Orchestrator) Start(ctx context.Context) (<-chan Event, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if o.State() != StateIdle {
		return nil, ErrAlreadyStarted
	}
	if err := o.cfg.ValidateCrawl(); err != nil {
		return nil, err
	}
	if !o.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return nil, ErrAlreadyStarted
	}
	if o.stopFlag.Load() {
		o.state.Store(int32(StateStopping))
	}

	sites := o.cfg.ActiveSites()
	queries := append([]string(nil), o.cfg.Queries...)
	total := len(sites) * len(queries)

	o.result = models.CrawlResult{
		StartTime:    time.Now(),
		UnitsTotal:   total,
		ErrorsByType: make(map[string]int),
	}

	events := make(chan Event, o.cfg.EventBuffer)

	// ctx cancellation behaves like Stop but also aborts in-flight fetches.
	stopOnCancel := context.AfterFunc(ctx, o.Stop)

	go func() {
		defer close(events)
		defer stopOnCancel()

		o.logger.Info("crawl started",
			slog.Int("sites", len(sites)),
			slog.Int("queries", len(queries)),
			slog.Int("units", total),
			slog.Int("parallelism", o.cfg.Parallelism),
		)

		if o.cfg.Parallelism > 1 {
			o.runPool(ctx, events, sites, queries)
		} else {
			o.runSequential(ctx, events, sites, queries)
		}

		result := o.finish(ctx)
		o.logger.Info("crawl finished",
			slog.Int("units_completed", result.UnitsCompleted),
			slog.Int("units_total", result.UnitsTotal),
			slog.Int("listings", len(result.Listings)),
			slog.Int("errors", result.ErrorCount),
			slog.Bool("stopped", result.Stopped),
			slog.Duration("duration", result.Duration()),
		)
		events <- Event{Kind: EventFinished, Result: result}
	}()

	return events, nil
}

type unit struct {
	site  models.JobSite
	query string
}

func (o *Orchestrator) runSequential(ctx context.Context, events chan<- Event, sites []models.JobSite, queries []string) {
	for _, site := range sites {
		for _, query := range queries {
			if o.stopRequested(ctx) {
				return
			}
			u := unit{site: site, query: query}
			if !o.processUnit(ctx, events, u) {
				return
			}
			o.sleep(o.cfg.Delay)
			o.progress(events, u)
		}
	}
}

// runPool processes units concurrently. Delay is enforced per site by a token bucket so the
// politeness interval holds for each target independently.
func (o *Orchestrator) runPool(ctx context.Context, events chan<- Event, sites []models.JobSite, queries []string) {
	sem := semaphore.NewWeighted(int64(o.cfg.Parallelism))
	limiters := make(map[string]*rate.Limiter, len(sites))
	for _, site := range sites {
		limiters[site.Name] = rate.NewLimiter(rate.Every(o.cfg.Delay), 1)
	}

	var wg sync.WaitGroup
	for _, site := range sites {
		for _, query := range queries {
			if o.stopRequested(ctx) {
				break
			}
			if err := sem.Acquire(o.waitCtx, 1); err != nil {
				break
			}

			u := unit{site: site, query: query}
			limiter := limiters[site.Name]
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer sem.Release(1)

				if err := limiter.Wait(o.waitCtx); err != nil {
					return
				}
				if o.processUnit(ctx, events, u) {
					o.progress(events, u)
				}
			}()
		}
	}
	wg.Wait()
}

// processUnit fetches and extracts one unit. It returns false when the unit was abandoned because
// a stop arrived before its listings could be emitted.
func (o *Orchestrator) processUnit(ctx context.Context, events chan<- Event, u unit) bool {
	o.metrics.unitStarted()
	defer o.metrics.unitDone()

	target, err := u.site.SearchURL(u.query)
	if err != nil {
		o.fail(events, u, err, "invalid_url")
		return true
	}

	body, err := o.fetcher.Fetch(ctx, target)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		o.fail(events, u, err, errorTypeLabel(err))
		return true
	}

	listings, err := o.extractor.Extract(body, u.site)
	if err != nil {
		o.fail(events, u, err, "extraction")
	}

	if o.stopFlag.Load() {
		o.logger.Debug("dropping unit after stop",
			slog.String("site", u.site.Name),
			slog.String("query", u.query),
			slog.Int("listings", len(listings)),
		)
		return false
	}

	emitted := make([]*models.JobListing, 0, len(listings))
	for _, listing := range listings {
		if listing == nil {
			continue
		}
		events <- Event{Kind: EventJob, Site: u.site.Name, Query: u.query, Job: listing}
		emitted = append(emitted, listing)
	}

	o.mu.Lock()
	o.result.Listings = append(o.result.Listings, emitted...)
	o.mu.Unlock()

	o.metrics.AddListings(u.site.Name, len(emitted))
	if err == nil {
		o.metrics.IncUnit("ok")
	}
	return true
}

func (o *Orchestrator) fail(events chan<- Event, u unit, err error, kind string) {
	o.logger.Warn("unit failed",
		slog.String("site", u.site.Name),
		slog.String("query", u.query),
		slog.String("category", kind),
		slog.Any("error", err),
	)

	o.mu.Lock()
	o.result.ErrorCount++
	o.result.ErrorsByType[kind]++
	o.result.FailedUnits = append(o.result.FailedUnits, fmt.Sprintf("%s: %s", u.site.Name, u.query))
	o.mu.Unlock()

	o.metrics.IncUnit("error")
	events <- Event{Kind: EventError, Site: u.site.Name, Query: u.query, Err: err}
}

func (o *Orchestrator) progress(events chan<- Event, u unit) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.completed++
	p := models.CrawlProgress{
		Message:   fmt.Sprintf("Scraped %s for '%s'", u.site.Name, u.query),
		Completed: o.completed,
		Total:     o.result.UnitsTotal,
	}
	o.logger.Info(p.Message,
		slog.Int("completed", p.Completed),
		slog.Int("total", p.Total),
	)
	events <- Event{Kind: EventProgress, Site: u.site.Name, Query: u.query, Progress: p}
}

// sleep waits for d or until Stop is called.
func (o *Orchestrator) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-o.waitCtx.Done():
	}
}

func (o *Orchestrator) stopRequested(ctx context.Context) bool {
	return o.stopFlag.Load() || ctx.Err() != nil
}

func (o *Orchestrator) finish(ctx context.Context) *models.CrawlResult {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.result.EndTime = time.Now()
	o.result.UnitsCompleted = o.completed
	o.result.Stopped = o.stopRequested(ctx)
	if counter, ok := o.fetcher.(requestCounter); ok {
		o.result.RequestCount = counter.RequestCount()
	}

	result := o.result
	result.Listings = append([]*models.JobListing(nil), o.result.Listings...)
	result.FailedUnits = append([]string(nil), o.result.FailedUnits...)
	result.ErrorsByType = make(map[string]int, len(o.result.ErrorsByType))
	for k, v := range o.result.ErrorsByType {
		result.ErrorsByType[k] = v
	}

	o.state.Store(int32(StateFinished))
	o.cancelWait()
	return &result
}
