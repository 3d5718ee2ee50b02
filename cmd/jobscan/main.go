package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aluiziolira/go-scrape-jobs/config"
	"github.com/aluiziolira/go-scrape-jobs/models"
	"github.com/aluiziolira/go-scrape-jobs/parser"
	"github.com/aluiziolira/go-scrape-jobs/pipeline"
	"github.com/aluiziolira/go-scrape-jobs/report"
	"github.com/aluiziolira/go-scrape-jobs/scraper"
	"github.com/aluiziolira/go-scrape-jobs/skills"
	"github.com/aluiziolira/go-scrape-jobs/stats"
	"github.com/aluiziolira/go-scrape-jobs/store"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	var values flagValues
	flags := newFlagSet(&values)
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	logger, level := newLogger(values.verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg, err := buildConfig(flags, &values)
	if err != nil {
		slog.Error("loading configuration", slog.Any("error", err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, finishing the current unit")
	}()

	if err := run(ctx, cfg, values.filter, logger); err != nil {
		slog.Error("crawl failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, filter stats.FilterOptions, logger *slog.Logger) error {
	active := cfg.ActiveSites()
	slog.Info("starting crawl",
		slog.Int("sites", len(active)),
		slog.Int("queries", len(cfg.Queries)),
		slog.Int("workers", cfg.Parallelism),
		slog.Bool("browser", cfg.UseBrowser),
	)

	metrics := scraper.NewMetrics()
	if cfg.MetricsAddr != "" {
		srv := startMetricsServer(cfg.MetricsAddr, metrics)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown failed", slog.Any("error", err))
			}
		}()
	}

	fetcher, err := scraper.NewFetcher(cfg, metrics)
	if err != nil {
		return fmt.Errorf("initialising fetcher: %w", err)
	}
	if closer, ok := fetcher.(io.Closer); ok {
		defer closer.Close()
	}

	writer, err := pipeline.NewWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	index := skills.BuildIndex(cfg.Categories)
	matcher := skills.NewMatcher(index)

	// Listings already emitted are kept after an interrupt.
	p := pipeline.NewPipeline(context.WithoutCancel(ctx), writer, cfg, matcher)
	p.Start(cfg.Parallelism)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	orch := scraper.NewOrchestrator(cfg, fetcher, parser.NewExtractor(nil, parser.WithLogger(logger)),
		scraper.WithMetrics(metrics),
		scraper.WithLogger(logger),
	)
	events, err := orch.Start(ctx)
	if err != nil {
		_ = p.Close()
		return fmt.Errorf("starting crawl: %w", err)
	}

	result, err := p.Consume(events)
	if err != nil {
		_ = p.Close()
		return err
	}
	if err := p.Close(); err != nil {
		return fmt.Errorf("pipeline shutdown: %w", err)
	}
	if err := writer.Validate(); err != nil {
		slog.Warn("output validation failed", slog.Any("error", err))
	}

	listings := p.Listings()
	pm := p.GetMetrics()
	slog.Info("crawl finished",
		slog.Int("units", result.UnitsCompleted),
		slog.Int("emitted", len(result.Listings)),
		slog.Int("accepted", len(listings)),
		slog.Any("validation_errors", pm["validation_errors"]),
		slog.Bool("stopped", result.Stopped),
		slog.String("output", cfg.OutputFile),
	)

	analysed := stats.Filter(listings, filter)
	st := stats.NewAggregator(index).Aggregate(analysed)
	roles := stats.RoleBreakdown(analysed)

	if cfg.ReportFile != "" {
		if err := report.WriteXLSX(cfg.ReportFile, analysed, st, roles); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		slog.Info("report written", slog.String("path", cfg.ReportFile))
	}

	if cfg.DatabasePath != "" {
		saved := *result
		saved.Listings = listings
		id, err := persist(context.WithoutCancel(ctx), cfg, index, &saved, active)
		if err != nil {
			return fmt.Errorf("saving session: %w", err)
		}
		slog.Info("session saved", slog.String("session_id", id), slog.String("db", cfg.DatabasePath))
	}

	report.RenderSummary(os.Stdout, result, st)
	return nil
}

func persist(ctx context.Context, cfg *config.Config, index *skills.Index, result *models.CrawlResult, sites []models.JobSite) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	db, err := store.Open(store.DriverSQLite, cfg.DatabasePath, store.WithCategorizer(index))
	if err != nil {
		return "", err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return "", err
	}

	names := make([]string, 0, len(sites))
	for _, site := range sites {
		names = append(names, site.Name)
	}
	return db.SaveSession(ctx, result, names, cfg.Queries)
}

func startMetricsServer(addr string, metrics *scraper.Metrics) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))
	return srv
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
