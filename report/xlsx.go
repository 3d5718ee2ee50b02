// Package report renders crawl analysis as an XLSX workbook and console tables.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-jobs/models"
	"github.com/aluiziolira/go-scrape-jobs/parser"
	"github.com/aluiziolira/go-scrape-jobs/stats"
	"github.com/xuri/excelize/v2"
)

// Sheet names of the analysis workbook.
const (
	SheetSummary    = "Summary"
	SheetTopSkills  = "Top Skills"
	SheetCategories = "Categories"
	SheetRoles      = "Roles"
	SheetListings   = "Listings"
)

const (
	// MaxListingRows caps the Listings sheet.
	MaxListingRows = 50
	listingPreview = 300
	reportTitle    = "Cambodian Software Engineering Job Market Analysis"
)

// WriteXLSX writes the analysis workbook for jobs to path.
func WriteXLSX(path string, jobs []*models.JobListing, st models.SkillStatistics, roles []stats.RoleSkills) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetTopSkills, SheetCategories, SheetRoles, SheetListings} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#34495E"}},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	w := &workbook{file: f, header: header}
	w.summary(jobs, st)
	w.topSkills(st)
	w.categories(st)
	w.roles(roles)
	w.listings(jobs)
	if w.err != nil {
		return w.err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report %s: %w", path, err)
	}
	return nil
}

// workbook keeps the first write error so sheet builders stay linear.
type workbook struct {
	file   *excelize.File
	header int
	err    error
}

func (w *workbook) row(sheet string, row int, values ...any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		w.err = err
		return
	}
	if err := w.file.SetSheetRow(sheet, cell, &values); err != nil {
		w.err = fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
}

func (w *workbook) headerRow(sheet string, row int, columns ...any) {
	w.row(sheet, row, columns...)
	if w.err != nil {
		return
	}
	first, _ := excelize.CoordinatesToCellName(1, row)
	last, _ := excelize.CoordinatesToCellName(len(columns), row)
	if err := w.file.SetCellStyle(sheet, first, last, w.header); err != nil {
		w.err = fmt.Errorf("style %s header: %w", sheet, err)
	}
}

func (w *workbook) width(sheet, from, to string, width float64) {
	if w.err != nil {
		return
	}
	if err := w.file.SetColWidth(sheet, from, to, width); err != nil {
		w.err = fmt.Errorf("column width %s: %w", sheet, err)
	}
}

func (w *workbook) summary(jobs []*models.JobListing, st models.SkillStatistics) {
	w.row(SheetSummary, 1, reportTitle)
	w.row(SheetSummary, 3, "Analysis Date", time.Now().Format("January 02, 2006"))
	w.row(SheetSummary, 4, "Total Jobs Analyzed", st.TotalJobsAnalyzed)
	w.row(SheetSummary, 5, "Unique Skills Identified", st.UniqueSkillsFound)
	w.row(SheetSummary, 6, "Sources", strings.Join(stats.Sources(jobs), ", "))
	w.width(SheetSummary, "A", "A", 28)
	w.width(SheetSummary, "B", "B", 40)
}

func (w *workbook) topSkills(st models.SkillStatistics) {
	w.headerRow(SheetTopSkills, 1, "Skill", "Frequency")
	for i, sc := range st.MostDemandedSkills {
		w.row(SheetTopSkills, i+2, sc.Skill, sc.Count)
	}
	w.width(SheetTopSkills, "A", "A", 24)
}

func (w *workbook) categories(st models.SkillStatistics) {
	w.headerRow(SheetCategories, 1, "Category", "Total Mentions", "Unique Skills", "Top Skills")
	for i, cat := range st.CategoryBreakdown {
		w.row(SheetCategories, i+2, cat.Name, cat.TotalMentions, cat.UniqueSkills, formatCounts(cat.TopSkills))
		if w.err != nil {
			return
		}
		style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Color: cat.Color}})
		if err != nil {
			w.err = fmt.Errorf("category style: %w", err)
			return
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := w.file.SetCellStyle(SheetCategories, cell, cell, style); err != nil {
			w.err = fmt.Errorf("style category %s: %w", cat.Name, err)
			return
		}
	}
	w.width(SheetCategories, "A", "A", 16)
	w.width(SheetCategories, "D", "D", 60)
}

func (w *workbook) roles(roles []stats.RoleSkills) {
	w.headerRow(SheetRoles, 1, "Role", "Jobs", "Top Skills")
	for i, r := range roles {
		w.row(SheetRoles, i+2, r.Role, r.Jobs, formatCounts(r.TopSkills))
	}
	w.width(SheetRoles, "A", "A", 20)
	w.width(SheetRoles, "C", "C", 60)
}

func (w *workbook) listings(jobs []*models.JobListing) {
	w.headerRow(SheetListings, 1, "#", "Title", "Company", "Location", "Source", "Identified Skills", "URL", "Description")
	for i, job := range jobs {
		if i == MaxListingRows {
			break
		}
		w.row(SheetListings, i+2,
			i+1,
			job.Title,
			job.Company,
			job.Location,
			job.SourceSite,
			strings.Join(job.IdentifiedSkills, ", "),
			job.URL,
			parser.Preview(job.Description, listingPreview),
		)
	}
	w.width(SheetListings, "B", "B", 36)
	w.width(SheetListings, "H", "H", 80)
}

// formatCounts renders counts as "Go (2), Python (1)".
func formatCounts(counts []models.SkillCount) string {
	parts := make([]string, 0, len(counts))
	for _, sc := range counts {
		parts = append(parts, fmt.Sprintf("%s (%d)", sc.Skill, sc.Count))
	}
	return strings.Join(parts, ", ")
}
