package pipeline

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-jobs/config"
	"github.com/aluiziolira/go-scrape-jobs/models"
	"github.com/aluiziolira/go-scrape-jobs/scraper"
	"github.com/aluiziolira/go-scrape-jobs/skills"
)

type mockWriter struct {
	mu          sync.Mutex
	batches     [][]*models.JobListing
	closed      bool
	validateErr error
}

func (mw *mockWriter) Write(jobs []*models.JobListing) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	copyBatch := make([]*models.JobListing, len(jobs))
	copy(copyBatch, jobs)
	mw.batches = append(mw.batches, copyBatch)
	return nil
}

func (mw *mockWriter) Close() error {
	mw.mu.Lock()
	mw.closed = true
	mw.mu.Unlock()
	return nil
}

func (mw *mockWriter) Validate() error {
	return mw.validateErr
}

func (mw *mockWriter) totalWritten() int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	total := 0
	for _, batch := range mw.batches {
		total += len(batch)
	}
	return total
}

func (mw *mockWriter) batchSizes() []int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	sizes := make([]int, 0, len(mw.batches))
	for _, batch := range mw.batches {
		sizes = append(sizes, len(batch))
	}
	return sizes
}

type blockingWriter struct {
	blockCh chan struct{}
}

func (bw *blockingWriter) Write(jobs []*models.JobListing) error {
	<-bw.blockCh
	return nil
}

func (bw *blockingWriter) Close() error {
	return nil
}

func (bw *blockingWriter) Validate() error {
	return nil
}

type failingWriter struct{}

func (failingWriter) Write([]*models.JobListing) error { return errors.New("disk full") }
func (failingWriter) Close() error                     { return nil }
func (failingWriter) Validate() error                  { return nil }

func listing(title, url string) *models.JobListing {
	return &models.JobListing{
		Title:       title,
		Company:     "Acme",
		Location:    "Phnom Penh",
		Description: "We need Go and Python expertise",
		URL:         url,
		SourceSite:  "Acme",
		ScrapedAt:   time.Now(),
	}
}

func backendMatcher() *skills.Matcher {
	return skills.NewMatcher(skills.BuildIndex([]models.SkillCategory{{Name: "Backend", Skills: []string{"Go", "Python"}}}))
}

func TestPipelineProcessValidationAndDedup(t *testing.T) {
	cfg := config.DefaultConfig()
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, cfg, backendMatcher())
	p.Start(1)

	valid := listing("Senior Go Developer", "http://example.test/job/1")
	invalid := listing("Dev", "http://example.test/job/2")
	duplicate := listing("Senior Go Developer", "http://example.test/job/1")
	duplicate.Description = "A different description is still the same listing"

	if err := p.Process(valid, invalid, duplicate); err != nil {
		t.Fatalf("process: %v", err)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := writer.totalWritten(); got != 1 {
		t.Fatalf("written jobs = %d, want 1", got)
	}

	metrics := p.GetMetrics()
	validation, ok := metrics["validation_errors"].(map[string]int)
	if !ok {
		t.Fatalf("expected validation errors map")
	}
	if validation["invalid_record"] == 0 {
		t.Fatalf("expected invalid_record validation error")
	}
	if validation["duplicate_listing"] == 0 {
		t.Fatalf("expected duplicate_listing validation error")
	}
	if got := metrics["jobs_with_skills"].(int64); got != 1 {
		t.Fatalf("jobs_with_skills = %d, want 1", got)
	}
}

func TestPipelineMatchesSkills(t *testing.T) {
	cfg := config.DefaultConfig()
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, cfg, backendMatcher())
	p.Start(1)

	job := listing("Senior Go Developer", "http://example.test/job/acme")
	if err := p.Process(job); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	accepted := p.Listings()
	if len(accepted) != 1 {
		t.Fatalf("accepted = %d, want 1", len(accepted))
	}
	got := accepted[0].IdentifiedSkills
	if len(got) != 2 || got[0] != "Go" || got[1] != "Python" {
		t.Fatalf("skills = %v, want [Go Python]", got)
	}
}

func TestPipelineDedupeCacheIsBounded(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DedupeMaxSize = 2
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, cfg, nil)
	p.Start(1)

	first := listing("Go Engineer One", "http://example.test/job/1")
	for _, job := range []*models.JobListing{
		first,
		listing("Go Engineer Two", "http://example.test/job/2"),
		listing("Go Engineer Three", "http://example.test/job/3"),
		// The first key has been evicted and is accepted again.
		listing("Go Engineer One", "http://example.test/job/1"),
	} {
		if err := p.Process(job); err != nil {
			t.Fatalf("process: %v", err)
		}
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := writer.totalWritten(); got != 4 {
		t.Fatalf("written jobs = %d, want 4", got)
	}
}

func TestPipelineBatchFlushThreshold(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatchSize = 64
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, cfg, nil)
	p.Start(1)

	for i := 0; i < 65; i++ {
		job := listing("Go Engineer", "http://example.test/job/"+strconv.Itoa(i))
		if err := p.Process(job); err != nil {
			t.Fatalf("process: %v", err)
		}
	}

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	sizes := writer.batchSizes()
	if len(sizes) != 2 {
		t.Fatalf("batch writes = %d, want 2", len(sizes))
	}
	if sizes[0] != 64 || sizes[1] != 1 {
		t.Fatalf("batch sizes = %v, want [64 1]", sizes)
	}
}

func TestPipelineCloseDrainsPendingItems(t *testing.T) {
	cfg := config.DefaultConfig()
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, cfg, backendMatcher())
	p.Start(2)

	for i := 0; i < 100; i++ {
		job := listing("Go Engineer", "http://example.test/job/"+strconv.Itoa(i+200))
		if err := p.Process(job); err != nil {
			t.Fatalf("process: %v", err)
		}
	}

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := writer.totalWritten(); got != 100 {
		t.Fatalf("written jobs = %d, want 100", got)
	}
	if got := len(p.Listings()); got != 100 {
		t.Fatalf("accepted = %d, want 100", got)
	}
}

func TestPipelineListingsKeepProcessOrder(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatchSize = 3
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, cfg, backendMatcher())
	p.Start(4)

	var want []*models.JobListing
	for i := 0; i < 200; i++ {
		job := listing("Go Engineer", "http://example.test/job/"+strconv.Itoa(i))
		want = append(want, job)
		if err := p.Process(job); err != nil {
			t.Fatalf("process %d: %v", i, err)
		}
	}
	// A later duplicate never replaces the first listing with its key.
	late := listing("Go Engineer", "http://example.test/job/7")
	if err := p.Process(late); err != nil {
		t.Fatalf("process duplicate: %v", err)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got := p.Listings()
	if len(got) != len(want) {
		t.Fatalf("listings = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("listings[%d] = %s, want %s", i, got[i].URL, want[i].URL)
		}
	}
}

func TestPipelineProcessAfterClose(t *testing.T) {
	p := NewPipeline(context.Background(), &mockWriter{}, config.DefaultConfig(), nil)
	p.Start(1)
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Process(listing("Go Engineer", "http://example.test/job/late")); !errors.Is(err, ErrPipelineClosed) {
		t.Fatalf("process after close = %v, want ErrPipelineClosed", err)
	}
}

func TestPipelineWriterErrorSurfaces(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatchSize = 1
	p := NewPipeline(context.Background(), failingWriter{}, cfg, nil)
	p.Start(1)

	if err := p.Process(listing("Go Engineer", "http://example.test/job/1")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err == nil {
		t.Fatalf("expected writer error from close")
	}
}

func TestPipelineCloseTimeout(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatchSize = 1

	writer := &blockingWriter{blockCh: make(chan struct{})}
	p := NewPipeline(context.Background(), writer, cfg, nil)
	p.Start(1)

	job := listing("Blocked Listing", "http://example.test/job/blocked")
	if err := p.Process(job); err != nil {
		t.Fatalf("process: %v", err)
	}

	previousTimeout := drainTimeout
	drainTimeout = 25 * time.Millisecond
	t.Cleanup(func() {
		drainTimeout = previousTimeout
		close(writer.blockCh)
	})

	if err := p.Close(); err == nil || !errors.Is(err, ErrPipelineCloseTimeout) {
		t.Fatalf("expected close timeout error, got %v", err)
	}
}

func TestConsumeEvents(t *testing.T) {
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, config.DefaultConfig(), backendMatcher())
	p.Start(1)

	first := listing("Senior Go Developer", "http://example.test/job/1")
	result := &models.CrawlResult{Listings: []*models.JobListing{first, first}, UnitsTotal: 2, UnitsCompleted: 2}

	events := make(chan scraper.Event, 8)
	events <- scraper.Event{Kind: scraper.EventJob, Site: "Acme", Job: first}
	events <- scraper.Event{Kind: scraper.EventProgress, Progress: models.CrawlProgress{Message: "Scraped Acme for 'go'", Completed: 1, Total: 2}}
	events <- scraper.Event{Kind: scraper.EventError, Site: "Acme", Query: "python", Err: errors.New("boom")}
	events <- scraper.Event{Kind: scraper.EventJob, Site: "Acme", Job: first}
	events <- scraper.Event{Kind: scraper.EventFinished, Result: result}
	close(events)

	got, err := p.Consume(events)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if got != result {
		t.Fatalf("consume returned a different result")
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if written := writer.totalWritten(); written != 1 {
		t.Fatalf("written = %d, want 1 after de-duplication", written)
	}
}

func TestConsumeWithoutFinished(t *testing.T) {
	p := NewPipeline(context.Background(), &mockWriter{}, config.DefaultConfig(), nil)
	p.Start(1)
	defer p.Close()

	events := make(chan scraper.Event)
	close(events)

	if _, err := p.Consume(events); !errors.Is(err, ErrNoResult) {
		t.Fatalf("consume error = %v, want ErrNoResult", err)
	}
}
