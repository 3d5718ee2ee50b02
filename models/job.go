// Package models defines data structures shared by the crawler, matcher and exporters.
package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// QueryPlaceholder is substituted with the escaped search term in a site's search URL template.
const QueryPlaceholder = "{query}"

// DefaultCategoryColor is used for categories configured without a color.
const DefaultCategoryColor = "#3498db"

// JobSite is one crawlable job board.
type JobSite struct {
	Name              string `json:"name" mapstructure:"name"`
	BaseURL           string `json:"base_url" mapstructure:"base_url"`
	SearchURLTemplate string `json:"search_url_template" mapstructure:"search_url_template"`
	IsActive          bool   `json:"is_active" mapstructure:"is_active"`
	// Strategy optionally pins the extraction strategy key; empty means derive it from BaseURL.
	Strategy string `json:"strategy,omitempty" mapstructure:"strategy"`
}

// SearchURL resolves the search template for query. The result must be an absolute http(s) URL.
func (s JobSite) SearchURL(query string) (string, error) {
	if strings.Count(s.SearchURLTemplate, QueryPlaceholder) != 1 {
		return "", fmt.Errorf("site %s: search url template must contain exactly one %s placeholder", s.Name, QueryPlaceholder)
	}
	raw := strings.Replace(s.SearchURLTemplate, QueryPlaceholder, url.QueryEscape(query), 1)
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("site %s: invalid search url: %w", s.Name, err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", fmt.Errorf("site %s: search url %q must be an absolute http(s) url", s.Name, raw)
	}
	return raw, nil
}

// SkillCategory groups skills under a display name and color.
type SkillCategory struct {
	Name   string   `json:"name" mapstructure:"name"`
	Skills []string `json:"skills" mapstructure:"skills"`
	Color  string   `json:"color" mapstructure:"color"`
}

// JobListing is a single job extracted from a listing page.
type JobListing struct {
	Title            string    `csv:"title" json:"title"`
	Company          string    `csv:"company" json:"company"`
	Location         string    `csv:"location" json:"location"`
	Description      string    `csv:"description" json:"description"`
	URL              string    `csv:"url" json:"url"`
	SourceSite       string    `csv:"source_site" json:"source_site"`
	ScrapedAt        time.Time `csv:"scraped_at" json:"scraped_at"`
	IdentifiedSkills []string  `csv:"identified_skills" json:"identified_skills"`

	skillsSet bool
}

// ListingKey is the identity of a listing. Two listings with equal keys are duplicates.
type ListingKey struct {
	Title      string
	Company    string
	URL        string
	SourceSite string
}

// Key returns the identity tuple of the listing.
func (j *JobListing) Key() ListingKey {
	return ListingKey{Title: j.Title, Company: j.Company, URL: j.URL, SourceSite: j.SourceSite}
}

// Equal reports whether both listings share the same identity; descriptions and skills are ignored.
func (j *JobListing) Equal(other *JobListing) bool {
	if j == nil || other == nil {
		return j == other
	}
	return j.Key() == other.Key()
}

// SetSkills records the matched skills. Only the first call has an effect.
func (j *JobListing) SetSkills(skills []string) bool {
	if j.skillsSet {
		return false
	}
	j.IdentifiedSkills = skills
	j.skillsSet = true
	return true
}

// SkillsMatched reports whether SetSkills has been called.
func (j *JobListing) SkillsMatched() bool {
	return j.skillsSet
}

func (j *JobListing) String() string {
	return fmt.Sprintf("%s at %s (%s)", j.Title, j.Company, j.Location)
}

// CrawlProgress is emitted after each (site, query) unit completes.
type CrawlProgress struct {
	Message   string
	Completed int
	Total     int
}

// Percent returns the completed share of the crawl in the 0..100 range.
func (p CrawlProgress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	return p.Completed * 100 / p.Total
}

// CrawlResult holds the overall result of a crawl run.
type CrawlResult struct {
	Listings       []*JobListing
	StartTime      time.Time
	EndTime        time.Time
	UnitsTotal     int
	UnitsCompleted int
	ErrorCount     int
	FailedUnits    []string
	ErrorsByType   map[string]int
	RequestCount   int
	Stopped        bool
}

// Duration returns the wall time of the run.
func (r *CrawlResult) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}
