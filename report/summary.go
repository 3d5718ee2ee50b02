package report

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/aluiziolira/go-scrape-jobs/models"
	"github.com/aluiziolira/go-scrape-jobs/stats"
	"github.com/jedib0t/go-pretty/v6/table"
)

// RenderSummary prints crawl totals, listings per source, top skills and the category breakdown.
func RenderSummary(w io.Writer, result *models.CrawlResult, st models.SkillStatistics) {
	if result != nil {
		crawl := newTable(w, "Crawl")
		crawl.AppendRows([]table.Row{
			{"Units completed", fmt.Sprintf("%d/%d", result.UnitsCompleted, result.UnitsTotal)},
			{"Listings", len(result.Listings)},
			{"Requests", result.RequestCount},
			{"Errors", result.ErrorCount},
			{"Duration", result.Duration().Round(time.Millisecond).String()},
			{"Stopped", result.Stopped},
		})
		crawl.Render()

		if len(result.ErrorsByType) > 0 {
			kinds := make([]string, 0, len(result.ErrorsByType))
			for kind := range result.ErrorsByType {
				kinds = append(kinds, kind)
			}
			slices.Sort(kinds)

			errs := newTable(w, "Errors by type")
			errs.AppendHeader(table.Row{"Type", "Count"})
			for _, kind := range kinds {
				errs.AppendRow(table.Row{kind, result.ErrorsByType[kind]})
			}
			errs.Render()
		}

		if sources := stats.Sources(result.Listings); len(sources) > 0 {
			bySource := newTable(w, "Listings by source")
			bySource.AppendHeader(table.Row{"Source", "Listings"})
			for _, source := range sources {
				n := len(stats.Filter(result.Listings, stats.FilterOptions{Source: source}))
				bySource.AppendRow(table.Row{source, n})
			}
			bySource.Render()
		}
	}

	top := newTable(w, fmt.Sprintf("Top skills (%d jobs, %d unique skills)", st.TotalJobsAnalyzed, st.UniqueSkillsFound))
	top.AppendHeader(table.Row{"#", "Skill", "Jobs"})
	for i, sc := range st.MostDemandedSkills {
		top.AppendRow(table.Row{i + 1, sc.Skill, sc.Count})
	}
	top.Render()

	if len(st.CategoryBreakdown) > 0 {
		cats := newTable(w, "Categories")
		cats.AppendHeader(table.Row{"Category", "Mentions", "Unique", "Top skills"})
		for _, cat := range st.CategoryBreakdown {
			cats.AppendRow(table.Row{cat.Name, cat.TotalMentions, cat.UniqueSkills, formatCounts(cat.TopSkills)})
		}
		cats.Render()
	}
}

// newTable prints title on its own line and returns a table mirrored to w. The
// heading stays outside the table so it is never wrapped to the column width.
func newTable(w io.Writer, title string) table.Writer {
	fmt.Fprintln(w)
	fmt.Fprintln(w, title)
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}
