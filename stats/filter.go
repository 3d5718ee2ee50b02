package stats

import (
	"slices"
	"strings"

	"github.com/aluiziolira/go-scrape-jobs/models"
)

// FilterOptions narrows a listing set. Empty fields match everything.
type FilterOptions struct {
	// Text is matched case-insensitively against title, company, location, description and skills.
	Text     string
	Source   string
	Location string
}

// Filter returns the listings matching opts, preserving order.
func Filter(jobs []*models.JobListing, opts FilterOptions) []*models.JobListing {
	needle := strings.ToLower(strings.TrimSpace(opts.Text))

	out := make([]*models.JobListing, 0, len(jobs))
	for _, job := range jobs {
		if job == nil {
			continue
		}
		if needle != "" && !strings.Contains(searchableText(job), needle) {
			continue
		}
		if opts.Source != "" && job.SourceSite != opts.Source {
			continue
		}
		if opts.Location != "" && job.Location != opts.Location {
			continue
		}
		out = append(out, job)
	}
	return out
}

func searchableText(job *models.JobListing) string {
	parts := []string{job.Title, job.Company, job.Location, job.Description, strings.Join(job.IdentifiedSkills, " ")}
	return strings.ToLower(strings.Join(parts, " "))
}

// Sources returns the distinct source sites of jobs, sorted.
func Sources(jobs []*models.JobListing) []string {
	return distinct(jobs, func(j *models.JobListing) string { return j.SourceSite })
}

// Locations returns the distinct non-empty locations of jobs, sorted.
func Locations(jobs []*models.JobListing) []string {
	return distinct(jobs, func(j *models.JobListing) string { return j.Location })
}

func distinct(jobs []*models.JobListing, field func(*models.JobListing) string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, job := range jobs {
		if job == nil {
			continue
		}
		value := field(job)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	slices.Sort(out)
	return out
}
