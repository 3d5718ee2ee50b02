// Package stats derives skill-demand statistics from matched job listings.
package stats

import (
	"slices"
	"strings"

	"github.com/aluiziolira/go-scrape-jobs/models"
	"github.com/aluiziolira/go-scrape-jobs/skills"
)

const (
	topOverall     = 10
	topPerCategory = 5
	topPerRole     = 10
)

// Aggregator computes SkillStatistics against a fixed skill index.
type Aggregator struct {
	index *skills.Index
}

// NewAggregator returns an aggregator for index.
func NewAggregator(index *skills.Index) *Aggregator {
	if index == nil {
		index = skills.BuildIndex(nil)
	}
	return &Aggregator{index: index}
}

// Aggregate summarises the IdentifiedSkills of jobs. Ties are broken by first appearance, so the
// same input always yields the same ordering.
func (a *Aggregator) Aggregate(jobs []*models.JobListing) models.SkillStatistics {
	overall := newCounter()
	byCategory := make(map[string]*counter)

	analyzed := 0
	for _, job := range jobs {
		if job == nil {
			continue
		}
		analyzed++
		for _, skill := range job.IdentifiedSkills {
			overall.add(skill)
			category, ok := a.index.CategoryOf(skill)
			if !ok {
				continue
			}
			c, ok := byCategory[category]
			if !ok {
				c = newCounter()
				byCategory[category] = c
			}
			c.add(skill)
		}
	}

	stats := models.SkillStatistics{
		TotalJobsAnalyzed:  analyzed,
		UniqueSkillsFound:  overall.len(),
		MostDemandedSkills: overall.mostCommon(topOverall),
		CategoryBreakdown:  []models.CategoryStats{},
	}

	seen := make(map[string]bool)
	for _, category := range a.index.Categories() {
		if seen[category.Name] {
			continue
		}
		seen[category.Name] = true

		c, ok := byCategory[category.Name]
		if !ok || c.len() == 0 {
			continue
		}
		stats.CategoryBreakdown = append(stats.CategoryBreakdown, models.CategoryStats{
			Name:          category.Name,
			TotalMentions: c.total(),
			UniqueSkills:  c.len(),
			TopSkills:     c.mostCommon(topPerCategory),
			Color:         category.Color,
		})
	}
	return stats
}

// RoleSkills lists the most requested skills for one role bucket.
type RoleSkills struct {
	Role      string              `json:"role"`
	Jobs      int                 `json:"jobs"`
	TopSkills []models.SkillCount `json:"top_skills"`
}

type roleRule struct {
	role     string
	keywords []string
}

// Rules are checked in order; the first one with a keyword contained in the title wins.
var roleRules = []roleRule{
	{role: "Frontend Developer", keywords: []string{"frontend", "front-end", "front end", "ui", "ux"}},
	{role: "Backend Developer", keywords: []string{"backend", "back-end", "back end", "server"}},
	{role: "Mobile Developer", keywords: []string{"mobile", "android", "ios", "flutter", "react native"}},
	{role: "DevOps Engineer", keywords: []string{"devops", "infrastructure", "deployment", "cloud"}},
	{role: "Full Stack Developer", keywords: []string{"full stack", "fullstack", "full-stack"}},
	{role: "Data/AI Specialist", keywords: []string{"data", "analyst", "scientist", "ml", "ai"}},
	{role: "QA/Testing", keywords: []string{"qa", "test", "quality"}},
	{role: "IT Support", keywords: []string{"support", "help", "technical support"}},
}

// DefaultRole is assigned to titles that match no rule.
const DefaultRole = "Software Engineer"

// CategorizeTitle assigns a job title to a role bucket by keyword containment.
func CategorizeTitle(title string) string {
	title = strings.ToLower(title)
	for _, rule := range roleRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(title, keyword) {
				return rule.role
			}
		}
	}
	return DefaultRole
}

// RoleBreakdown groups jobs by role and returns the top skills of each, roles in order of first
// appearance.
func RoleBreakdown(jobs []*models.JobListing) []RoleSkills {
	var order []string
	counters := make(map[string]*counter)
	jobCounts := make(map[string]int)

	for _, job := range jobs {
		if job == nil {
			continue
		}
		role := CategorizeTitle(job.Title)
		c, ok := counters[role]
		if !ok {
			c = newCounter()
			counters[role] = c
			order = append(order, role)
		}
		jobCounts[role]++
		for _, skill := range job.IdentifiedSkills {
			c.add(skill)
		}
	}

	out := make([]RoleSkills, 0, len(order))
	for _, role := range order {
		out = append(out, RoleSkills{
			Role:      role,
			Jobs:      jobCounts[role],
			TopSkills: counters[role].mostCommon(topPerRole),
		})
	}
	return out
}

// counter counts occurrences and remembers the order in which keys first appeared.
type counter struct {
	order  []string
	counts map[string]int
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(key string) {
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
	}
	c.counts[key]++
}

func (c *counter) len() int {
	return len(c.order)
}

func (c *counter) total() int {
	sum := 0
	for _, n := range c.counts {
		sum += n
	}
	return sum
}

func (c *counter) mostCommon(n int) []models.SkillCount {
	out := make([]models.SkillCount, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, models.SkillCount{Skill: key, Count: c.counts[key]})
	}
	slices.SortStableFunc(out, func(a, b models.SkillCount) int {
		return b.Count - a.Count
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
