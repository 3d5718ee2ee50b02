// Package skills maps free-text job listings onto a configured skill taxonomy.
package skills

import (
	"strings"

	"github.com/aluiziolira/go-scrape-jobs/models"
)

// Entry is one skill of the index with the category that owns it.
type Entry struct {
	Skill    string // lowercase
	Category string
}

// Index maps lowercase skill names to categories in insertion order.
// When a skill appears in several categories the last one wins but the
// skill keeps the position of its first appearance.
type Index struct {
	entries    []Entry
	positions  map[string]int
	categories []models.SkillCategory
}

// BuildIndex builds the skill index for categories. It is a pure function of its input.
func BuildIndex(categories []models.SkillCategory) *Index {
	idx := &Index{
		positions:  make(map[string]int),
		categories: make([]models.SkillCategory, 0, len(categories)),
	}
	for _, category := range categories {
		c := category
		c.Skills = append([]string(nil), category.Skills...)
		if c.Color == "" {
			c.Color = models.DefaultCategoryColor
		}
		idx.categories = append(idx.categories, c)

		for _, skill := range category.Skills {
			key := strings.ToLower(skill)
			if strings.TrimSpace(key) == "" {
				continue
			}
			if pos, ok := idx.positions[key]; ok {
				idx.entries[pos].Category = category.Name
				continue
			}
			idx.positions[key] = len(idx.entries)
			idx.entries = append(idx.entries, Entry{Skill: key, Category: category.Name})
		}
	}
	return idx
}

// Len returns the number of distinct skills.
func (i *Index) Len() int {
	return len(i.entries)
}

// Entries returns the index in iteration order.
func (i *Index) Entries() []Entry {
	return append([]Entry(nil), i.entries...)
}

// CategoryOf returns the category owning skill, compared case-insensitively.
func (i *Index) CategoryOf(skill string) (string, bool) {
	pos, ok := i.positions[strings.ToLower(skill)]
	if !ok {
		return "", false
	}
	return i.entries[pos].Category, true
}

// Categories returns the categories in configured order.
func (i *Index) Categories() []models.SkillCategory {
	out := make([]models.SkillCategory, len(i.categories))
	copy(out, i.categories)
	return out
}

// Map returns the index as a plain lookup table.
func (i *Index) Map() map[string]string {
	out := make(map[string]string, len(i.entries))
	for _, e := range i.entries {
		out[e.Skill] = e.Category
	}
	return out
}
