package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-jobs/models"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "no active sites",
			mutate: func(cfg *Config) {
				for i := range cfg.Sites {
					cfg.Sites[i].IsActive = false
				}
			},
			wantErr: "no active job sites",
		},
		{
			name: "no queries",
			mutate: func(cfg *Config) {
				cfg.Queries = nil
			},
			wantErr: "no search queries",
		},
		{
			name: "blank query",
			mutate: func(cfg *Config) {
				cfg.Queries = []string{"Go", "  "}
			},
			wantErr: "empty",
		},
		{
			name: "duplicate site",
			mutate: func(cfg *Config) {
				cfg.Sites = append(cfg.Sites, cfg.Sites[0])
			},
			wantErr: "duplicate site",
		},
		{
			name: "bad template",
			mutate: func(cfg *Config) {
				cfg.Sites[0].SearchURLTemplate = "https://www.khmer24.com/jobs"
			},
			wantErr: "placeholder",
		},
		{
			name: "delay too small",
			mutate: func(cfg *Config) {
				cfg.Delay = 50 * time.Millisecond
			},
			wantErr: "delay",
		},
		{
			name: "zero max pages",
			mutate: func(cfg *Config) {
				cfg.MaxPagesPerSite = 0
			},
			wantErr: "max_pages",
		},
		{
			name: "negative parallelism",
			mutate: func(cfg *Config) {
				cfg.Parallelism = -1
			},
			wantErr: "parallelism",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "backoff above max",
			mutate: func(cfg *Config) {
				cfg.RetryBackoff = 5 * time.Second
			},
			wantErr: "retry backoff max",
		},
		{
			name: "unknown format",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "xml"
			},
			wantErr: "output format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigurationError, got %T", err)
			}
		})
	}
}

func TestValidateCrawlIgnoresExportSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "unknown format", mutate: func(cfg *Config) { cfg.OutputFormat = "xml" }},
		{name: "empty output", mutate: func(cfg *Config) { cfg.OutputFile = "" }},
		{name: "zero batch size", mutate: func(cfg *Config) { cfg.BatchSize = 0 }},
		{name: "zero dedupe size", mutate: func(cfg *Config) { cfg.DedupeMaxSize = 0 }},
		{name: "negative pipeline buffer", mutate: func(cfg *Config) { cfg.PipelineBufferSize = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.ValidateCrawl(); err != nil {
				t.Fatalf("ValidateCrawl() = %v, want nil", err)
			}
			if err := cfg.Validate(); err == nil {
				t.Fatalf("Validate() should reject the export setting")
			}
		})
	}
}

func TestValidateCrawlRejectsCrawlSettings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Delay = 0
	cfg.OutputFormat = "xml"

	err := cfg.ValidateCrawl()
	if err == nil || !strings.Contains(err.Error(), "delay") {
		t.Fatalf("expected delay error, got %v", err)
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
	if got := len(cfg.ActiveSites()); got != 3 {
		t.Fatalf("active sites = %d, want 3", got)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	cfg := DefaultConfig()
	clone := cfg.Clone()
	clone.Sites[0].IsActive = false
	clone.Queries[0] = "Changed"
	clone.Categories[0].Skills[0] = "Changed"

	if !cfg.Sites[0].IsActive || cfg.Queries[0] == "Changed" || cfg.Categories[0].Skills[0] == "Changed" {
		t.Fatalf("editing the clone mutated the original config")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := DefaultConfig()
	cfg.Sites = []models.JobSite{
		{Name: "Acme", BaseURL: "https://acme.test", SearchURLTemplate: "https://acme.test/jobs?q={query}", IsActive: true, Strategy: "generic"},
	}
	cfg.Queries = []string{"Go Developer"}
	cfg.Categories = []models.SkillCategory{{Name: "Backend", Skills: []string{"Go", "Python"}, Color: "#e74c3c"}}
	cfg.Delay = 1500 * time.Millisecond
	cfg.MaxPagesPerSite = 2
	cfg.UseBrowser = true

	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Sites) != 1 || loaded.Sites[0].Name != "Acme" || !loaded.Sites[0].IsActive || loaded.Sites[0].Strategy != "generic" {
		t.Fatalf("sites = %+v", loaded.Sites)
	}
	if len(loaded.Queries) != 1 || loaded.Queries[0] != "Go Developer" {
		t.Fatalf("queries = %v", loaded.Queries)
	}
	if len(loaded.Categories) != 1 || len(loaded.Categories[0].Skills) != 2 {
		t.Fatalf("categories = %+v", loaded.Categories)
	}
	if loaded.Delay != 1500*time.Millisecond {
		t.Fatalf("delay = %v, want 1.5s", loaded.Delay)
	}
	if loaded.MaxPagesPerSite != 2 || !loaded.UseBrowser {
		t.Fatalf("settings not loaded: pages=%d browser=%v", loaded.MaxPagesPerSite, loaded.UseBrowser)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"search_queries": ["Go Developer"], "skill_categories": [{"name": "Backend", "skills": ["Go"]}]}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Sites) != len(DefaultSites()) {
		t.Fatalf("sites = %d, want defaults", len(cfg.Sites))
	}
	if cfg.Delay != time.Second {
		t.Fatalf("delay = %v, want default 1s", cfg.Delay)
	}
	if cfg.Categories[0].Color != models.DefaultCategoryColor {
		t.Fatalf("color = %q, want default", cfg.Categories[0].Color)
	}
}

func TestLoadOrCreateWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("load or create: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	if len(cfg.Queries) != len(DefaultQueries()) {
		t.Fatalf("queries = %d, want %d", len(cfg.Queries), len(DefaultQueries()))
	}
}

func TestEnvDuration(t *testing.T) {
	t.Setenv("JOBSCAN_TEST_DELAY", "1.5")
	d, ok, err := EnvDuration("JOBSCAN_TEST_DELAY")
	if err != nil || !ok || d != 1500*time.Millisecond {
		t.Fatalf("EnvDuration = %v, %v, %v", d, ok, err)
	}

	t.Setenv("JOBSCAN_TEST_DELAY", "250ms")
	d, ok, err = EnvDuration("JOBSCAN_TEST_DELAY")
	if err != nil || !ok || d != 250*time.Millisecond {
		t.Fatalf("EnvDuration = %v, %v, %v", d, ok, err)
	}

	t.Setenv("JOBSCAN_TEST_DELAY", "soon")
	if _, _, err := EnvDuration("JOBSCAN_TEST_DELAY"); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
}

func TestEnvInt(t *testing.T) {
	t.Setenv("JOBSCAN_TEST_INT", "4")
	if v, ok, err := EnvInt("JOBSCAN_TEST_INT"); err != nil || !ok || v != 4 {
		t.Fatalf("EnvInt = %d, %v, %v", v, ok, err)
	}
	if _, ok, err := EnvInt("JOBSCAN_TEST_UNSET"); err != nil || ok {
		t.Fatalf("unset EnvInt should report not ok, got %v %v", ok, err)
	}
}
