package parser

import (
	"bytes"
	"fmt"
	"log/slog"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-jobs/models"
)

// ExtractionError reports a page that could not be processed. Listings returned alongside it
// are whatever was recovered before the failure.
type ExtractionError struct {
	Site string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Site, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Extractor parses listing pages with the strategy registered for each site.
type Extractor struct {
	registry *Registry
	now      func() time.Time
	logger   *slog.Logger
}

// Option customises an Extractor.
type Option func(*Extractor)

// WithClock overrides the time source used for ScrapedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		e.now = now
	}
}

// WithLogger sets the logger used for extraction diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// NewExtractor builds an extractor. A nil registry means DefaultRegistry.
func NewExtractor(registry *Registry, opts ...Option) *Extractor {
	if registry == nil {
		registry = DefaultRegistry()
	}
	e := &Extractor{
		registry: registry,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry exposes the strategy registry.
func (e *Extractor) Registry() *Registry {
	return e.registry
}

// Extract parses body and returns the listings found for site. It never panics; malformed
// input yields an empty or partial result and an *ExtractionError.
func (e *Extractor) Extract(body []byte, site models.JobSite) (listings []*models.JobListing, err error) {
	strategy := e.registry.Lookup(site)
	defer func() {
		if r := recover(); r != nil {
			err = &ExtractionError{Site: site.Name, Err: fmt.Errorf("strategy %s panicked: %v", strategy.Name(), r)}
			e.logger.Debug("extraction recovered", slog.String("site", site.Name), slog.Any("error", err))
		}
	}()

	doc, parseErr := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if parseErr != nil {
		return nil, &ExtractionError{Site: site.Name, Err: fmt.Errorf("parse html: %w", parseErr)}
	}

	listings = strategy.Extract(doc, site, e.now())
	e.logger.Debug("page extracted",
		slog.String("site", site.Name),
		slog.String("strategy", strategy.Name()),
		slog.Int("listings", len(listings)),
	)
	return listings, nil
}
