package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-jobs/config"
)

func TestBuildConfigPrecedence(t *testing.T) {
	t.Setenv("JOBSCAN_DELAY", "1.5")
	t.Setenv("JOBSCAN_PARALLEL", "4")
	t.Setenv("JOBSCAN_QUERIES", "Go Developer, ,Data Engineer")

	var v flagValues
	fs := newFlagSet(&v)
	if err := fs.Parse([]string{"-parallel", "2", "-format", "DUAL", "-report", "out/report.xlsx"}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	cfg, err := buildConfig(fs, &v)
	if err != nil {
		t.Fatalf("build config: %v", err)
	}

	if cfg.Delay != 1500*time.Millisecond {
		t.Fatalf("delay = %v, want env value 1.5s", cfg.Delay)
	}
	if cfg.Parallelism != 2 {
		t.Fatalf("parallelism = %d, want flag value 2", cfg.Parallelism)
	}
	if len(cfg.Queries) != 2 || cfg.Queries[0] != "Go Developer" || cfg.Queries[1] != "Data Engineer" {
		t.Fatalf("queries = %v", cfg.Queries)
	}
	if cfg.OutputFormat != "dual" || cfg.ReportFile != "out/report.xlsx" {
		t.Fatalf("format/report = %q/%q", cfg.OutputFormat, cfg.ReportFile)
	}
	// Unset flags keep their defaults.
	if cfg.Timeout != config.DefaultConfig().Timeout {
		t.Fatalf("timeout = %v, want default", cfg.Timeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestBuildConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobscan.yaml")

	var v flagValues
	fs := newFlagSet(&v)
	if err := fs.Parse([]string{"-config", path, "-delay", "250ms"}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	cfg, err := buildConfig(fs, &v)
	if err != nil {
		t.Fatalf("build config: %v", err)
	}
	if len(cfg.Sites) != len(config.DefaultSites()) {
		t.Fatalf("sites = %d, want defaults written to %s", len(cfg.Sites), path)
	}
	if cfg.Delay != 250*time.Millisecond {
		t.Fatalf("delay = %v, want 250ms", cfg.Delay)
	}
}

func TestBuildConfigInvalidEnv(t *testing.T) {
	t.Setenv("JOBSCAN_MAX_RETRIES", "many")

	var v flagValues
	fs := newFlagSet(&v)
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := buildConfig(fs, &v); err == nil {
		t.Fatalf("expected error for invalid JOBSCAN_MAX_RETRIES")
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{in: "", want: 0},
		{in: "a", want: 1},
		{in: " a , b ,, c ", want: 3},
	}
	for _, tt := range tests {
		if got := splitList(tt.in); len(got) != tt.want {
			t.Errorf("splitList(%q) = %v, want %d items", tt.in, got, tt.want)
		}
	}
}
