package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/TechFutureAIFPT/hr-support/internal/pipeline"
)

const (
	rankingSheet = "Ranking"
	detailsSheet = "Details"
)

var rankingHeaders = []string{
	"Rank", "Candidate", "File", "Status", "Total Score", "Grade", "Job Title",
	"Experience Level", "Location", "Phone", "Email", "Hard Filter Failure", "Warnings", "Error",
}

var detailHeaders = []string{"Candidate", "File", "Criterion", "Score", "Formula", "Evidence", "Explanation"}

var borders = []excelize.Border{
	{Type: "left", Color: "000000", Style: 1},
	{Type: "right", Color: "000000", Style: 1},
	{Type: "top", Color: "000000", Style: 1},
	{Type: "bottom", Color: "000000", Style: 1},
}

// bandColor picks a row fill by score: green, yellow, pink, red, and grey for
// records without a score.
func bandColor(c pipeline.Candidate) string {
	score, ok := c.Score()
	switch {
	case !ok:
		return "EDEDED"
	case score >= 85:
		return "C6EFCE"
	case score >= 70:
		return "FFEB9C"
	case score >= 50:
		return "FFC7CE"
	default:
		return "FF9999"
	}
}

// WriteXLSX writes a workbook with a ranking sheet and a per-criterion
// details sheet.
func WriteXLSX(w io.Writer, report Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", rankingSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(detailsSheet); err != nil {
		return err
	}

	if err := writeRanking(f, report.Candidates); err != nil {
		return fmt.Errorf("ranking sheet: %w", err)
	}
	if err := writeDetails(f, report.Candidates); err != nil {
		return fmt.Errorf("details sheet: %w", err)
	}

	if report.JobTitle != "" || !report.GeneratedAt.IsZero() {
		if err := f.SetDocProps(&excelize.DocProperties{
			Title:   report.JobTitle,
			Created: report.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}); err != nil {
			return err
		}
	}

	_, err := f.WriteTo(w)
	return err
}

func headerStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    borders,
	})
}

func writeHeader(f *excelize.File, sheet string, headers []string) error {
	style, err := headerStyle(f)
	if err != nil {
		return err
	}
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return err
		}
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func writeRanking(f *excelize.File, candidates []pipeline.Candidate) error {
	if err := writeHeader(f, rankingSheet, rankingHeaders); err != nil {
		return err
	}

	styles := map[string]int{}
	for i, c := range candidates {
		row := i + 2

		var score any
		if s, ok := c.Score(); ok {
			score = s
		}
		values := []any{
			i + 1, c.CandidateName, c.FileName, string(c.Status), score, c.Grade(), c.JobTitle,
			c.ExperienceLevel, c.DetectedLocation, c.Phone, c.Email, c.HardFilterFailureReason,
			strings.Join(c.SoftFilterWarnings, "; "), c.Error,
		}
		if err := writeRow(f, rankingSheet, row, values); err != nil {
			return err
		}

		color := bandColor(c)
		style, ok := styles[color]
		if !ok {
			var err error
			style, err = f.NewStyle(&excelize.Style{
				Fill:   excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
				Border: borders,
			})
			if err != nil {
				return err
			}
			styles[color] = style
		}
		last, _ := excelize.CoordinatesToCellName(len(rankingHeaders), row)
		if err := f.SetCellStyle(rankingSheet, fmt.Sprintf("A%d", row), last, style); err != nil {
			return err
		}
	}

	widths := map[string]float64{"A": 6, "B": 28, "C": 28, "D": 10, "E": 11, "F": 8, "G": 24, "L": 40, "M": 40, "N": 40}
	for col, width := range widths {
		if err := f.SetColWidth(rankingSheet, col, col, width); err != nil {
			return err
		}
	}

	if len(candidates) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(rankingHeaders), len(candidates)+1)
		if err := f.AutoFilter(rankingSheet, "A1:"+last, nil); err != nil {
			return err
		}
	}
	return nil
}

func writeDetails(f *excelize.File, candidates []pipeline.Candidate) error {
	if err := writeHeader(f, detailsSheet, detailHeaders); err != nil {
		return err
	}

	wrap, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
		Border:    borders,
	})
	if err != nil {
		return err
	}

	row := 2
	for _, c := range candidates {
		if c.Analysis == nil {
			continue
		}
		for _, d := range c.Analysis.Details {
			values := []any{c.CandidateName, c.FileName, d.Criterion, d.Score, d.Formula, d.Evidence, d.Explanation}
			if err := writeRow(f, detailsSheet, row, values); err != nil {
				return err
			}
			if err := f.SetCellStyle(detailsSheet, fmt.Sprintf("A%d", row), fmt.Sprintf("G%d", row), wrap); err != nil {
				return err
			}
			row++
		}
	}

	if err := f.SetColWidth(detailsSheet, "A", "D", 22); err != nil {
		return err
	}
	return f.SetColWidth(detailsSheet, "E", "G", 50)
}
