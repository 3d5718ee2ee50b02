package models

// SkillCount pairs a skill with the number of listings mentioning it.
type SkillCount struct {
	Skill string `json:"skill"`
	Count int    `json:"count"`
}

// CategoryStats summarises one skill category.
type CategoryStats struct {
	Name          string       `json:"name"`
	TotalMentions int          `json:"total_mentions"`
	UniqueSkills  int          `json:"unique_skills"`
	TopSkills     []SkillCount `json:"top_skills"`
	Color         string       `json:"color"`
}

// SkillStatistics is derived from a set of listings and never mutated after creation.
type SkillStatistics struct {
	TotalJobsAnalyzed  int             `json:"total_jobs_analyzed"`
	UniqueSkillsFound  int             `json:"unique_skills_found"`
	MostDemandedSkills []SkillCount    `json:"most_demanded_skills"`
	CategoryBreakdown  []CategoryStats `json:"category_breakdown"`
}

// Category returns the breakdown entry for name.
func (s SkillStatistics) Category(name string) (CategoryStats, bool) {
	for _, c := range s.CategoryBreakdown {
		if c.Name == name {
			return c, true
		}
	}
	return CategoryStats{}, false
}
