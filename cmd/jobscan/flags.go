package main

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-jobs/config"
	"github.com/aluiziolira/go-scrape-jobs/stats"
)

const envPrefix = "JOBSCAN_"

type flagValues struct {
	configPath      string
	queries         string
	delay           time.Duration
	parallelism     int
	timeout         time.Duration
	maxRetries      int
	retryBackoff    time.Duration
	retryBackoffMax time.Duration
	useBrowser      bool
	userAgent       string
	output          string
	format          string
	report          string
	database        string
	metricsAddr     string
	verbose         bool
	filter          stats.FilterOptions
}

func newFlagSet(v *flagValues) *flag.FlagSet {
	def := config.DefaultConfig()
	fs := flag.NewFlagSet("jobscan", flag.ContinueOnError)

	fs.StringVar(&v.configPath, "config", "", "Config file (JSON or YAML); written with defaults when missing")
	fs.StringVar(&v.queries, "queries", "", "Comma-separated search queries, replacing the configured list")
	fs.DurationVar(&v.delay, "delay", def.Delay, "Delay between requests")
	fs.IntVar(&v.parallelism, "parallel", def.Parallelism, "Concurrent (site, query) units; 1 crawls sequentially")
	fs.DurationVar(&v.timeout, "timeout", def.Timeout, "Per-request timeout")
	fs.IntVar(&v.maxRetries, "max-retries", def.MaxRetries, "Maximum retry attempts per URL")
	fs.DurationVar(&v.retryBackoff, "retry-backoff", def.RetryBackoff, "Initial retry backoff")
	fs.DurationVar(&v.retryBackoffMax, "retry-backoff-max", def.RetryBackoffMax, "Maximum retry backoff")
	fs.BoolVar(&v.useBrowser, "browser", def.UseBrowser, "Render pages with headless Chrome")
	fs.StringVar(&v.userAgent, "user-agent", def.UserAgent, "User-Agent header")
	fs.StringVar(&v.output, "output", def.OutputFile, "Output file path")
	fs.StringVar(&v.format, "format", def.OutputFormat, "Output format: csv, json, or dual")
	fs.StringVar(&v.report, "report", "", "Write an XLSX analysis report to this path")
	fs.StringVar(&v.database, "db", "", "Persist the session to this SQLite database")
	fs.StringVar(&v.metricsAddr, "metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	fs.BoolVar(&v.verbose, "v", false, "Enable verbose logging")
	fs.StringVar(&v.filter.Text, "filter", "", "Only analyse listings containing this text")
	fs.StringVar(&v.filter.Source, "source", "", "Only analyse listings from this site")
	fs.StringVar(&v.filter.Location, "location", "", "Only analyse listings in this location")

	return fs
}

// applyEnv overlays JOBSCAN_* environment variables on cfg.
func applyEnv(cfg *config.Config) error {
	if value, ok := config.EnvString(envPrefix + "QUERIES"); ok {
		cfg.Queries = splitList(value)
	}
	if value, ok, err := config.EnvDuration(envPrefix + "DELAY"); err != nil {
		return err
	} else if ok {
		cfg.Delay = value
	}
	if value, ok, err := config.EnvInt(envPrefix + "PARALLEL"); err != nil {
		return err
	} else if ok {
		cfg.Parallelism = value
	}
	if value, ok, err := config.EnvDuration(envPrefix + "TIMEOUT"); err != nil {
		return err
	} else if ok {
		cfg.Timeout = value
	}
	if value, ok, err := config.EnvInt(envPrefix + "MAX_RETRIES"); err != nil {
		return err
	} else if ok {
		cfg.MaxRetries = value
	}
	if value, ok, err := config.EnvBool(envPrefix + "USE_BROWSER"); err != nil {
		return err
	} else if ok {
		cfg.UseBrowser = value
	}
	if value, ok := config.EnvString(envPrefix + "USER_AGENT"); ok {
		cfg.UserAgent = value
	}
	if value, ok := config.EnvString(envPrefix + "OUTPUT"); ok {
		cfg.OutputFile = value
	}
	if value, ok := config.EnvString(envPrefix + "FORMAT"); ok {
		cfg.OutputFormat = strings.ToLower(value)
	}
	if value, ok := config.EnvString(envPrefix + "REPORT"); ok {
		cfg.ReportFile = value
	}
	if value, ok := config.EnvString(envPrefix + "DB"); ok {
		cfg.DatabasePath = value
	}
	if value, ok := config.EnvString(envPrefix + "METRICS_ADDR"); ok {
		cfg.MetricsAddr = value
	}
	return nil
}

// applyFlags copies the flags that were set on the command line into cfg.
func applyFlags(cfg *config.Config, fs *flag.FlagSet, v *flagValues) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "queries":
			cfg.Queries = splitList(v.queries)
		case "delay":
			cfg.Delay = v.delay
		case "parallel":
			cfg.Parallelism = v.parallelism
		case "timeout":
			cfg.Timeout = v.timeout
		case "max-retries":
			cfg.MaxRetries = v.maxRetries
		case "retry-backoff":
			cfg.RetryBackoff = v.retryBackoff
		case "retry-backoff-max":
			cfg.RetryBackoffMax = v.retryBackoffMax
		case "browser":
			cfg.UseBrowser = v.useBrowser
		case "user-agent":
			cfg.UserAgent = v.userAgent
		case "output":
			cfg.OutputFile = v.output
		case "format":
			cfg.OutputFormat = strings.ToLower(v.format)
		case "report":
			cfg.ReportFile = v.report
		case "db":
			cfg.DatabasePath = v.database
		case "metrics-addr":
			cfg.MetricsAddr = v.metricsAddr
		case "v":
			cfg.Verbose = v.verbose
		}
	})
}

// buildConfig resolves the crawl configuration: defaults, then the config file, then the
// environment, then explicit flags.
func buildConfig(fs *flag.FlagSet, v *flagValues) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if v.configPath != "" {
		loaded, err := config.LoadOrCreate(v.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	applyFlags(cfg, fs, v)
	return cfg, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
