package models

import (
	"strings"
	"testing"
)

func TestJobListingEqual(t *testing.T) {
	base := &JobListing{
		Title:       "Go Developer",
		Company:     "Acme",
		URL:         "https://acme.test/jobs/1",
		SourceSite:  "Acme",
		Description: "first",
	}

	tests := []struct {
		name   string
		mutate func(*JobListing)
		want   bool
	}{
		{name: "different description", mutate: func(j *JobListing) { j.Description = "second" }, want: true},
		{name: "different skills", mutate: func(j *JobListing) { j.IdentifiedSkills = []string{"Go"} }, want: true},
		{name: "different title", mutate: func(j *JobListing) { j.Title = "Rust Developer" }, want: false},
		{name: "different company", mutate: func(j *JobListing) { j.Company = "Globex" }, want: false},
		{name: "different url", mutate: func(j *JobListing) { j.URL = "https://acme.test/jobs/2" }, want: false},
		{name: "different source", mutate: func(j *JobListing) { j.SourceSite = "Other" }, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := *base
			tt.mutate(&other)
			if got := base.Equal(&other); got != tt.want {
				t.Fatalf("Equal() = %v, want %v", got, tt.want)
			}
			if got := base.Key() == other.Key(); got != tt.want {
				t.Fatalf("Key() equality = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJobListingSetSkillsOnce(t *testing.T) {
	job := &JobListing{Title: "Go Developer"}
	if !job.SetSkills([]string{"Go"}) {
		t.Fatalf("first SetSkills should apply")
	}
	if job.SetSkills([]string{"Python"}) {
		t.Fatalf("second SetSkills should be ignored")
	}
	if len(job.IdentifiedSkills) != 1 || job.IdentifiedSkills[0] != "Go" {
		t.Fatalf("skills = %v, want [Go]", job.IdentifiedSkills)
	}
}

func TestJobSiteSearchURL(t *testing.T) {
	tests := []struct {
		name     string
		template string
		query    string
		want     string
		wantErr  string
	}{
		{
			name:     "escapes query",
			template: "https://acme.test/jobs?q={query}",
			query:    "Go Developer",
			want:     "https://acme.test/jobs?q=Go+Developer",
		},
		{
			name:     "escapes reserved characters",
			template: "https://acme.test/jobs?q={query}&page=1",
			query:    "C# & .NET",
			want:     "https://acme.test/jobs?q=C%23+%26+.NET&page=1",
		},
		{
			name:     "missing placeholder",
			template: "https://acme.test/jobs",
			query:    "Go",
			wantErr:  "placeholder",
		},
		{
			name:     "relative template",
			template: "/jobs?q={query}",
			query:    "Go",
			wantErr:  "absolute",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site := JobSite{Name: "Acme", SearchURLTemplate: tt.template}
			got, err := site.SearchURL(tt.query)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SearchURL: %v", err)
			}
			if got != tt.want {
				t.Fatalf("SearchURL() = %q, want %q", got, tt.want)
			}
			again, _ := site.SearchURL(tt.query)
			if again != got {
				t.Fatalf("SearchURL should be deterministic: %q vs %q", again, got)
			}
		})
	}
}

func TestSkillStatisticsCategory(t *testing.T) {
	stats := SkillStatistics{CategoryBreakdown: []CategoryStats{{Name: "Backend", TotalMentions: 2}}}
	if c, ok := stats.Category("Backend"); !ok || c.TotalMentions != 2 {
		t.Fatalf("Category(Backend) = %+v, %v", c, ok)
	}
	if _, ok := stats.Category("Frontend"); ok {
		t.Fatalf("Category(Frontend) should be absent")
	}
}
