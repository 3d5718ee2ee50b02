// Package parser turns listing pages into job records using heuristic, per-site selector strategies.
package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-jobs/models"
)

// Strategy extracts listings from one parsed page.
type Strategy interface {
	Name() string
	Extract(doc *goquery.Document, site models.JobSite, scrapedAt time.Time) []*models.JobListing
}

// fieldRule locates a descendant by tag allow-list and class pattern.
type fieldRule struct {
	tags  string
	class *regexp.Regexp
}

var (
	titleRule       = fieldRule{tags: "h1, h2, h3, h4, a", class: regexp.MustCompile(`(?i)title|name|job`)}
	companyRule     = fieldRule{tags: "span, div, p", class: regexp.MustCompile(`(?i)company|employer`)}
	locationRule    = fieldRule{tags: "span, div, p", class: regexp.MustCompile(`(?i)location|address|city`)}
	descriptionRule = fieldRule{tags: "p, div", class: regexp.MustCompile(`(?i)description|summary|content`)}

	boardContainerClass   = regexp.MustCompile(`(?i)job|listing|item`)
	genericContainerClass = regexp.MustCompile(`(?i)job|listing|item|card`)
)

// SelectorStrategy is the heuristic extractor. Known boards and the generic fallback differ
// only in container tags, container pattern and the per-page cap.
type SelectorStrategy struct {
	name           string
	containerTags  []string
	containerClass *regexp.Regexp
	limit          int
}

// NewBoardStrategy returns the strategy used for recognised job boards (div/article, 20 per page).
func NewBoardStrategy(name string) *SelectorStrategy {
	return &SelectorStrategy{
		name:           name,
		containerTags:  []string{"div", "article"},
		containerClass: boardContainerClass,
		limit:          20,
	}
}

// NewGenericStrategy returns the fallback strategy (div/article/li incl. "card", 15 per page).
func NewGenericStrategy() *SelectorStrategy {
	return &SelectorStrategy{
		name:           GenericKey,
		containerTags:  []string{"div", "article", "li"},
		containerClass: genericContainerClass,
		limit:          15,
	}
}

// Name returns the strategy name.
func (s *SelectorStrategy) Name() string {
	return s.name
}

// Limit returns the maximum number of containers examined per page.
func (s *SelectorStrategy) Limit() int {
	return s.limit
}

// Extract walks candidate containers in document order and keeps those with a usable title.
func (s *SelectorStrategy) Extract(doc *goquery.Document, site models.JobSite, scrapedAt time.Time) []*models.JobListing {
	candidates := doc.Find(strings.Join(s.containerTags, ", ")).FilterFunction(func(_ int, sel *goquery.Selection) bool {
		return classMatches(sel, s.containerClass)
	})

	listings := make([]*models.JobListing, 0, s.limit)
	candidates.EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if i >= s.limit {
			return false
		}
		if listing := extractListing(sel, site, scrapedAt); listing != nil {
			listings = append(listings, listing)
		}
		return true
	})
	return listings
}

func extractListing(sel *goquery.Selection, site models.JobSite, scrapedAt time.Time) *models.JobListing {
	title := textOr(findField(sel, titleRule), UnknownTitle)
	if !AcceptableTitle(title) {
		return nil
	}

	href := ""
	sel.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ = a.Attr("href")
		return false
	})

	return &models.JobListing{
		Title:       title,
		Company:     textOr(findField(sel, companyRule), UnknownCompany),
		Location:    textOr(findField(sel, locationRule), DefaultLocation),
		Description: textOr(findField(sel, descriptionRule), ""),
		URL:         ResolveURL(site.BaseURL, href),
		SourceSite:  site.Name,
		ScrapedAt:   scrapedAt,
	}
}

func findField(sel *goquery.Selection, rule fieldRule) *goquery.Selection {
	return sel.Find(rule.tags).FilterFunction(func(_ int, candidate *goquery.Selection) bool {
		return classMatches(candidate, rule.class)
	}).First()
}

func classMatches(sel *goquery.Selection, pattern *regexp.Regexp) bool {
	class, ok := sel.Attr("class")
	return ok && pattern.MatchString(class)
}

func textOr(sel *goquery.Selection, fallback string) string {
	if sel == nil || sel.Length() == 0 {
		return fallback
	}
	return NormalizeText(sel.Text())
}
