package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-jobs/models"
)

// MinDelay is the smallest accepted pause between requests.
const MinDelay = 100 * time.Millisecond

// ConfigurationError reports a configuration that cannot start a crawl.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Config holds crawler configuration. A Config is treated as immutable once a crawl starts;
// use Clone to derive an edited copy.
type Config struct {
	Sites      []models.JobSite
	Queries    []string
	Categories []models.SkillCategory

	// MaxPagesPerSite is accepted and validated but the crawl fetches one page per unit.
	MaxPagesPerSite int
	Delay           time.Duration
	UseBrowser      bool
	Parallelism     int

	Timeout         time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration
	UserAgent       string

	EventBuffer        int
	PipelineBufferSize int
	BatchSize          int
	DedupeMaxSize      int

	OutputFile   string
	OutputFormat string // csv, json, or dual
	ReportFile   string
	DatabasePath string
	MetricsAddr  string
	Verbose      bool
}

// DefaultConfig returns the stock Cambodian job boards, queries and skill taxonomy.
func DefaultConfig() *Config {
	return &Config{
		Sites:              DefaultSites(),
		Queries:            DefaultQueries(),
		Categories:         DefaultCategories(),
		MaxPagesPerSite:    5,
		Delay:              time.Second,
		UseBrowser:         false,
		Parallelism:        1,
		Timeout:            10 * time.Second,
		MaxRetries:         0,
		RetryBackoff:       200 * time.Millisecond,
		RetryBackoffMax:    2 * time.Second,
		UserAgent:          "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		EventBuffer:        256,
		PipelineBufferSize: 512,
		BatchSize:          64,
		DedupeMaxSize:      100000,
		OutputFile:         "exports/jobs.csv",
		OutputFormat:       "csv",
		Verbose:            false,
	}
}

// DefaultSites lists the built-in job boards.
func DefaultSites() []models.JobSite {
	return []models.JobSite{
		{Name: "Khmer24", BaseURL: "https://www.khmer24.com", SearchURLTemplate: "https://www.khmer24.com/jobs/search?q={query}", IsActive: true},
		{Name: "BongThom", BaseURL: "https://www.bongthom.com", SearchURLTemplate: "https://www.bongthom.com/job/search?keyword={query}", IsActive: true},
		{Name: "Jobtify", BaseURL: "https://jobtify.com", SearchURLTemplate: "https://jobtify.com/jobs?search={query}", IsActive: true},
		{Name: "Pelprek", BaseURL: "https://pelprek.com", SearchURLTemplate: "https://pelprek.com/jobs/search?q={query}", IsActive: false},
		{Name: "CamHR", BaseURL: "https://camhr.com", SearchURLTemplate: "https://camhr.com/search-jobs?keywords={query}", IsActive: false},
	}
}

// DefaultQueries lists the built-in search terms.
func DefaultQueries() []string {
	return []string{
		"Software Engineer",
		"Web Developer",
		"Frontend Developer",
		"Backend Developer",
		"Mobile Developer",
		"iOS Developer",
		"Android Developer",
		"IT Support",
		"DevOps Engineer",
	}
}

// DefaultCategories is the built-in skill taxonomy.
func DefaultCategories() []models.SkillCategory {
	return []models.SkillCategory{
		{Name: "Backend", Skills: []string{"Java", "Python", "Node.js", "C#", ".NET", "PHP", "Ruby", "Go", "Rust"}, Color: "#e74c3c"},
		{Name: "Frontend", Skills: []string{"HTML", "CSS", "JavaScript", "React", "Vue.js", "Angular", "TypeScript", "Sass", "Bootstrap"}, Color: "#3498db"},
		{Name: "Mobile", Skills: []string{"Flutter", "Kotlin", "Swift", "React Native", "Xamarin", "Ionic", "Android", "iOS"}, Color: "#2ecc71"},
		{Name: "Database", Skills: []string{"MySQL", "PostgreSQL", "MongoDB", "Redis", "SQLite", "Oracle", "SQL Server"}, Color: "#f39c12"},
		{Name: "DevOps", Skills: []string{"Docker", "Kubernetes", "AWS", "Azure", "GCP", "Jenkins", "Git", "Linux", "Nginx"}, Color: "#9b59b6"},
		{Name: "Other", Skills: []string{"C++", "Agile", "Scrum", "REST API", "GraphQL", "Microservices", "TDD", "CI/CD"}, Color: "#34495e"},
	}
}

// ActiveSites returns the sites with IsActive set, in configured order.
func (c *Config) ActiveSites() []models.JobSite {
	active := make([]models.JobSite, 0, len(c.Sites))
	for _, site := range c.Sites {
		if site.IsActive {
			active = append(active, site)
		}
	}
	return active
}

// Clone returns a deep copy so edits never touch a config a crawl is reading.
func (c *Config) Clone() *Config {
	out := *c
	out.Sites = slices.Clone(c.Sites)
	out.Queries = slices.Clone(c.Queries)
	out.Categories = make([]models.SkillCategory, len(c.Categories))
	for i, cat := range c.Categories {
		cat.Skills = slices.Clone(cat.Skills)
		out.Categories[i] = cat
	}
	return &out
}

// Validate ensures all configuration values are coherent: the crawl settings checked by
// ValidateCrawl plus the pipeline and export settings. Failures are *ConfigurationError.
func (c *Config) Validate() error {
	if err := c.ValidateCrawl(); err != nil {
		return err
	}
	if c.PipelineBufferSize < 0 {
		return invalid("buffers", "buffer sizes cannot be negative")
	}
	if c.BatchSize <= 0 {
		return invalid("batch_size", "must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return invalid("dedupe_max_size", "must be positive")
	}
	if c.OutputFile == "" {
		return invalid("output", "output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return invalid("format", "output format must be csv, json, or dual")
	}
	return nil
}

// ValidateCrawl checks only the settings the orchestrator reads: sites, queries,
// categories, politeness, retries and the event buffer.
func (c *Config) ValidateCrawl() error {
	if len(c.ActiveSites()) == 0 {
		return invalid("job_sites", "no active job sites configured")
	}
	if len(c.Queries) == 0 {
		return invalid("search_queries", "no search queries configured")
	}
	for i, q := range c.Queries {
		if strings.TrimSpace(q) == "" {
			return invalid("search_queries", "query %d is empty", i)
		}
	}

	names := make(map[string]struct{}, len(c.Sites))
	for _, site := range c.Sites {
		if site.Name == "" {
			return invalid("job_sites", "site name cannot be empty")
		}
		if _, dup := names[site.Name]; dup {
			return invalid("job_sites", "duplicate site name %q", site.Name)
		}
		names[site.Name] = struct{}{}
		if site.IsActive {
			if _, err := site.SearchURL("query"); err != nil {
				return invalid("job_sites", "%v", err)
			}
		}
	}

	categories := make(map[string]struct{}, len(c.Categories))
	for _, cat := range c.Categories {
		if cat.Name == "" {
			return invalid("skill_categories", "category name cannot be empty")
		}
		if _, dup := categories[cat.Name]; dup {
			return invalid("skill_categories", "duplicate category %q", cat.Name)
		}
		categories[cat.Name] = struct{}{}
	}

	if c.MaxPagesPerSite <= 0 {
		return invalid("max_pages_per_site", "must be positive")
	}
	if c.Delay < MinDelay {
		return invalid("delay_between_requests", "must be at least %s", MinDelay)
	}
	if c.Parallelism <= 0 {
		return invalid("parallelism", "must be positive")
	}
	if c.Timeout <= 0 {
		return invalid("timeout", "must be positive")
	}
	if c.MaxRetries < 0 {
		return invalid("max_retries", "cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return invalid("retry_backoff", "cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return invalid("retry_backoff_max", "cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return invalid("retry_backoff", "%s cannot exceed retry backoff max %s", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.UserAgent == "" {
		return invalid("user_agent", "cannot be empty")
	}
	if c.EventBuffer < 0 {
		return invalid("buffers", "buffer sizes cannot be negative")
	}

	return nil
}
