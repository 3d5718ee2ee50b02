package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-jobs/config"
	"github.com/aluiziolira/go-scrape-jobs/models"
	"github.com/aluiziolira/go-scrape-jobs/parser"
	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	// ErrPipelineClosed is returned when Process is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
	// ErrPipelineCloseTimeout is returned when workers do not drain within drainTimeout.
	ErrPipelineCloseTimeout = errors.New("pipeline: close timed out waiting for workers")
)

var drainTimeout = 30 * time.Second

const defaultDedupeSize = 100000

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(jobs []*models.JobListing) error
	Close() error
	Validate() error
}

// SkillMatcher annotates a listing with the skills it mentions.
type SkillMatcher interface {
	Match(job *models.JobListing) []string
}

// Pipeline coordinates validation, de-duplication, skill matching and output writing.
type Pipeline struct {
	ctx       context.Context
	writer    OutputWriter
	matcher   SkillMatcher
	logger    *slog.Logger
	jobCh     chan queued
	batchSize int

	wg sync.WaitGroup

	admitMu sync.Mutex // guards seen and nextSeq
	seen    *lru.Cache[models.ListingKey, struct{}]
	nextSeq uint64

	acceptedMu sync.Mutex
	accepted   []queued

	metrics metrics

	mu     sync.Mutex // guards closed/err
	closed bool
	err    error

	closeOnce    sync.Once
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewPipeline builds a pipeline sized from cfg. A nil matcher leaves listings unannotated.
func NewPipeline(ctx context.Context, writer OutputWriter, cfg *config.Config, matcher SkillMatcher) *Pipeline {
	if ctx == nil {
		ctx = context.Background()
	}

	bufferSize := cfg.PipelineBufferSize
	if bufferSize < 0 {
		bufferSize = 0
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}
	dedupeSize := cfg.DedupeMaxSize
	if dedupeSize <= 0 {
		dedupeSize = defaultDedupeSize
	}
	seen, err := lru.New[models.ListingKey, struct{}](dedupeSize)
	if err != nil {
		// Only reachable with a non-positive size, which is excluded above.
		panic(fmt.Sprintf("pipeline: dedupe cache: %v", err))
	}

	return &Pipeline{
		ctx:       ctx,
		writer:    writer,
		matcher:   matcher,
		logger:    slog.Default(),
		jobCh:     make(chan queued, bufferSize),
		batchSize: batchSize,
		seen:      seen,
		metrics:   newMetrics(),
		shutdown:  make(chan struct{}),
	}
}

// Start launches worker goroutines.
func (p *Pipeline) Start(workers int) {
	if workers <= 0 {
		workers = 1
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// queued is an admitted listing tagged with its position in Process call order.
type queued struct {
	seq uint64
	job *models.JobListing
}

// Process validates and de-duplicates listings in call order, then enqueues the survivors for
// skill matching and writing.
func (p *Pipeline) Process(jobs ...*models.JobListing) error {
	if len(jobs) == 0 {
		return nil
	}

	closed, err := p.state()
	if err != nil {
		return err
	}
	if closed {
		return ErrPipelineClosed
	}

	for _, job := range jobs {
		if job == nil {
			continue
		}
		item, ok := p.admit(job)
		if !ok {
			continue
		}
		if err := p.enqueue(item); err != nil {
			return err
		}
	}
	return nil
}

// Close stops accepting listings and waits up to drainTimeout for workers to flush.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
	}
	p.mu.Unlock()

	p.closeOnce.Do(func() {
		close(p.jobCh)
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(drainTimeout):
		p.signalShutdown()
		return ErrPipelineCloseTimeout
	}

	p.signalShutdown()
	return p.Err()
}

// Err returns the first error encountered during processing.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Listings returns the listings that passed validation and de-duplication in the order they
// were handed to Process, whatever the number of workers.
func (p *Pipeline) Listings() []*models.JobListing {
	p.acceptedMu.Lock()
	items := slices.Clone(p.accepted)
	p.acceptedMu.Unlock()

	slices.SortFunc(items, func(a, b queued) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})

	out := make([]*models.JobListing, len(items))
	for i, item := range items {
		out[i] = item.job
	}
	return out
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

// StartMetricsReporting emits periodic progress logs.
func (p *Pipeline) StartMetricsReporting(interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				metrics := p.GetMetrics()
				processed := metrics["processed_jobs"].(int64)
				validation := metrics["validation_errors"].(map[string]int)
				p.logger.Info("pipeline progress",
					slog.Int64("processed", processed),
					slog.Int("invalid", validation["invalid_record"]),
					slog.Int("duplicates", validation["duplicate_listing"]),
				)
			case <-p.shutdown:
				return
			}
		}
	}()
}

func (p *Pipeline) worker() {
	defer p.wg.Done()

	batch := make([]*models.JobListing, 0, p.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.writer.Write(batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for item := range p.jobCh {
		batch = append(batch, p.prepare(item))
		if len(batch) >= p.batchSize {
			if err := flush(); err != nil {
				p.setErr(fmt.Errorf("write batch: %w", err))
				return
			}
		}
	}

	if err := flush(); err != nil {
		p.setErr(fmt.Errorf("write batch: %w", err))
	}
}

// admit runs validation and de-duplication. Both happen under admitMu so the first listing
// handed to Process wins a duplicate pair.
func (p *Pipeline) admit(job *models.JobListing) (queued, bool) {
	if err := parser.ValidateListing(job); err != nil {
		p.metrics.addValidation("invalid_record")
		return queued{}, false
	}

	p.admitMu.Lock()
	defer p.admitMu.Unlock()

	if found, _ := p.seen.ContainsOrAdd(job.Key(), struct{}{}); found {
		p.metrics.addValidation("duplicate_listing")
		return queued{}, false
	}
	item := queued{seq: p.nextSeq, job: job}
	p.nextSeq++
	return item, true
}

func (p *Pipeline) prepare(item queued) *models.JobListing {
	job := item.job
	if p.matcher != nil {
		if skills := p.matcher.Match(job); len(skills) > 0 {
			p.metrics.addMatched()
		}
	}

	p.acceptedMu.Lock()
	p.accepted = append(p.accepted, item)
	p.acceptedMu.Unlock()

	p.metrics.incrementProcessed()
	return job
}

func (p *Pipeline) enqueue(item queued) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrPipelineClosed
		}
	}()

	select {
	case <-p.shutdown:
		return ErrPipelineClosed
	case <-p.ctx.Done():
		return p.ctx.Err()
	case p.jobCh <- item:
		return nil
	}
}

func (p *Pipeline) setErr(err error) {
	if err == nil {
		return
	}

	p.mu.Lock()
	if p.err != nil {
		p.mu.Unlock()
		return
	}
	p.err = err
	p.closed = true
	p.mu.Unlock()

	p.signalShutdown()
}

func (p *Pipeline) state() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed, p.err
}

func (p *Pipeline) signalShutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
}

type metrics struct {
	mu         sync.Mutex
	processed  int64
	matched    int64
	validation map[string]int
}

func newMetrics() metrics {
	return metrics{
		validation: make(map[string]int),
	}
}

func (m *metrics) incrementProcessed() {
	m.mu.Lock()
	m.processed++
	m.mu.Unlock()
}

func (m *metrics) addMatched() {
	m.mu.Lock()
	m.matched++
	m.mu.Unlock()
}

func (m *metrics) addValidation(kind string) {
	m.mu.Lock()
	m.validation[kind]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	copyValidation := make(map[string]int, len(m.validation))
	for k, v := range m.validation {
		copyValidation[k] = v
	}

	return map[string]interface{}{
		"processed_jobs":    m.processed,
		"jobs_with_skills":  m.matched,
		"validation_errors": copyValidation,
	}
}
