package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/aluiziolira/go-scrape-jobs/models"
	"github.com/spf13/viper"
)

// settings mirrors the "scraping_settings" block of a config file.
type settings struct {
	MaxPagesPerSite      int     `mapstructure:"max_pages_per_site"`
	DelayBetweenRequests float64 `mapstructure:"delay_between_requests"`
	UseSelenium          bool    `mapstructure:"use_selenium"`
}

// Load reads a JSON or YAML config file and overlays it on DefaultConfig.
// Sections missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if v.IsSet("job_sites") {
		var sites []models.JobSite
		if err := v.UnmarshalKey("job_sites", &sites); err != nil {
			return nil, fmt.Errorf("decode job_sites: %w", err)
		}
		cfg.Sites = sites
	}
	if v.IsSet("search_queries") {
		cfg.Queries = v.GetStringSlice("search_queries")
	}
	if v.IsSet("skill_categories") {
		var categories []models.SkillCategory
		if err := v.UnmarshalKey("skill_categories", &categories); err != nil {
			return nil, fmt.Errorf("decode skill_categories: %w", err)
		}
		for i := range categories {
			if categories[i].Color == "" {
				categories[i].Color = models.DefaultCategoryColor
			}
		}
		cfg.Categories = categories
	}

	s := settings{
		MaxPagesPerSite:      cfg.MaxPagesPerSite,
		DelayBetweenRequests: cfg.Delay.Seconds(),
		UseSelenium:          cfg.UseBrowser,
	}
	if v.IsSet("scraping_settings") {
		if err := v.UnmarshalKey("scraping_settings", &s); err != nil {
			return nil, fmt.Errorf("decode scraping_settings: %w", err)
		}
	}
	cfg.MaxPagesPerSite = s.MaxPagesPerSite
	cfg.Delay = secondsToDuration(s.DelayBetweenRequests)
	cfg.UseBrowser = s.UseSelenium

	return cfg, nil
}

// LoadOrCreate loads path, writing the defaults there first when the file does not exist.
func LoadOrCreate(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := Save(path, DefaultConfig()); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat config %s: %w", path, err)
	}
	return Load(path)
}

// Save writes the crawl-relevant parts of cfg in the same schema Load reads.
func Save(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}

	sites := make([]map[string]any, 0, len(cfg.Sites))
	for _, site := range cfg.Sites {
		entry := map[string]any{
			"name":                site.Name,
			"base_url":            site.BaseURL,
			"search_url_template": site.SearchURLTemplate,
			"is_active":           site.IsActive,
		}
		if site.Strategy != "" {
			entry["strategy"] = site.Strategy
		}
		sites = append(sites, entry)
	}
	categories := make([]map[string]any, 0, len(cfg.Categories))
	for _, cat := range cfg.Categories {
		categories = append(categories, map[string]any{
			"name":   cat.Name,
			"skills": cat.Skills,
			"color":  cat.Color,
		})
	}

	v := viper.New()
	v.Set("job_sites", sites)
	v.Set("search_queries", cfg.Queries)
	v.Set("skill_categories", categories)
	v.Set("scraping_settings", map[string]any{
		"max_pages_per_site":     cfg.MaxPagesPerSite,
		"delay_between_requests": cfg.Delay.Seconds(),
		"use_selenium":           cfg.UseBrowser,
	})
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
