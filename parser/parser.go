package parser

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/aluiziolira/go-scrape-jobs/models"
)

const (
	// UnknownTitle marks a container without a discoverable title.
	UnknownTitle = "Unknown Title"
	// UnknownCompany is used when no company element is found.
	UnknownCompany = "Unknown Company"
	// DefaultLocation is used when no location element is found.
	DefaultLocation = "Cambodia"

	minTitleLength = 3
)

// ValidateListing ensures the extractor captured the required fields.
func ValidateListing(j *models.JobListing) error {
	if j == nil {
		return fmt.Errorf("listing is nil")
	}
	if !AcceptableTitle(j.Title) {
		return fmt.Errorf("listing has unusable title %q", j.Title)
	}
	if strings.TrimSpace(j.SourceSite) == "" {
		return fmt.Errorf("listing missing source site for %s", j.Title)
	}
	if j.ScrapedAt.IsZero() {
		return fmt.Errorf("listing missing scrape time for %s", j.Title)
	}
	return nil
}

// AcceptableTitle rejects empty, placeholder and too-short titles.
func AcceptableTitle(title string) bool {
	title = strings.TrimSpace(title)
	if title == "" || title == UnknownTitle {
		return false
	}
	return utf8.RuneCountInString(title) > minTitleLength
}

// NormalizeText collapses runs of whitespace and trims the result.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// ResolveURL returns href verbatim when it is absolute http(s) and resolves it against base otherwise.
func ResolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(href), "http") {
		return href
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}

// Preview shortens text to limit runes, appending "..." when it was cut.
func Preview(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + "..."
}
