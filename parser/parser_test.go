package parser

import (
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-jobs/models"
)

func TestValidateListing(t *testing.T) {
	tests := []struct {
		name    string
		listing *models.JobListing
		wantErr bool
	}{
		{
			name: "valid listing",
			listing: &models.JobListing{
				Title:      "Senior Go Developer",
				Company:    "Acme",
				SourceSite: "Acme",
				ScrapedAt:  time.Now(),
			},
			wantErr: false,
		},
		{
			name:    "nil listing",
			listing: nil,
			wantErr: true,
		},
		{
			name: "placeholder title",
			listing: &models.JobListing{
				Title:      UnknownTitle,
				SourceSite: "Acme",
				ScrapedAt:  time.Now(),
			},
			wantErr: true,
		},
		{
			name: "short title",
			listing: &models.JobListing{
				Title:      "Dev",
				SourceSite: "Acme",
				ScrapedAt:  time.Now(),
			},
			wantErr: true,
		},
		{
			name: "missing source",
			listing: &models.JobListing{
				Title:     "Senior Go Developer",
				ScrapedAt: time.Now(),
			},
			wantErr: true,
		},
		{
			name: "missing scrape time",
			listing: &models.JobListing{
				Title:      "Senior Go Developer",
				SourceSite: "Acme",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateListing(tt.listing)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateListing() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAcceptableTitle(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{input: "", expected: false},
		{input: "   ", expected: false},
		{input: "Dev", expected: false},
		{input: " QA  ", expected: false},
		{input: "Devs", expected: true},
		{input: UnknownTitle, expected: false},
		{input: "អ្នកអភិវឌ្ឍន៍", expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := AcceptableTitle(tt.input); got != tt.expected {
				t.Errorf("AcceptableTitle(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "surrounding whitespace", input: "  Go Developer  ", expected: "Go Developer"},
		{name: "inner newlines", input: "Senior\n\t Go\n Developer", expected: "Senior Go Developer"},
		{name: "empty string", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeText(tt.input); got != tt.expected {
				t.Errorf("NormalizeText(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		href     string
		expected string
	}{
		{name: "absolute kept verbatim", base: "https://acme.test", href: "https://other.test/jobs/1", expected: "https://other.test/jobs/1"},
		{name: "root relative", base: "https://acme.test", href: "/jobs/1", expected: "https://acme.test/jobs/1"},
		{name: "path relative", base: "https://acme.test/careers/", href: "jobs/1", expected: "https://acme.test/careers/jobs/1"},
		{name: "empty href", base: "https://acme.test", href: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveURL(tt.base, tt.href); got != tt.expected {
				t.Errorf("ResolveURL(%q, %q) = %q, want %q", tt.base, tt.href, got, tt.expected)
			}
		})
	}
}

func TestPreview(t *testing.T) {
	if got := Preview("short", 10); got != "short" {
		t.Fatalf("Preview(short) = %q", got)
	}
	if got := Preview("abcdefghij", 4); got != "abcd..." {
		t.Fatalf("Preview = %q, want abcd...", got)
	}
}
