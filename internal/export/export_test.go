package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/TechFutureAIFPT/hr-support/internal/pipeline"
)

func score(v float64) *float64 { return &v }

func sampleReport() Report {
	return Report{
		JobTitle:    "Backend Engineer",
		GeneratedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		Candidates: []pipeline.Candidate{
			{
				ID: "cand_1", Status: pipeline.StatusSuccess, CandidateName: "Alice", FileName: "alice.pdf",
				Email: "alice@example.com", SoftFilterWarnings: []string{"remote only", "notice 60 days"},
				Analysis: &pipeline.Analysis{
					TotalScore: score(91), Grade: "A",
					Details: []pipeline.ScoreDetail{
						{Criterion: "Skills", Score: "25/25", Formula: "25*1.0", Evidence: "Go, Postgres", Explanation: "full match"},
						{Criterion: "Experience", Score: "18/20", Formula: "20*0.9", Evidence: "6 years", Explanation: "close"},
					},
				},
			},
			{
				ID: "failed_2", Status: pipeline.StatusFailed, CandidateName: "File processing error",
				FileName: "broken.pdf", Error: "could not read the file",
			},
		},
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, sampleReport()); err != nil {
		t.Fatalf("WriteXLSX returned error: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(rankingSheet)
	if err != nil {
		t.Fatalf("read ranking: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header and 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "Rank" || rows[0][4] != "Total Score" {
		t.Fatalf("unexpected header: %v", rows[0])
	}

	first := rows[1]
	if first[0] != "1" || first[1] != "Alice" || first[3] != "SUCCESS" || first[4] != "91" || first[5] != "A" {
		t.Fatalf("unexpected first row: %v", first)
	}
	if first[12] != "remote only; notice 60 days" {
		t.Fatalf("unexpected warnings cell: %q", first[12])
	}

	second := rows[2]
	if second[1] != "File processing error" || second[3] != "FAILED" || second[4] != "" {
		t.Fatalf("unexpected failed row: %v", second)
	}
	if got := second[len(second)-1]; got != "could not read the file" {
		t.Fatalf("unexpected error cell: %q", got)
	}

	details, err := f.GetRows(detailsSheet)
	if err != nil {
		t.Fatalf("read details: %v", err)
	}
	if len(details) != 3 {
		t.Fatalf("expected header and 2 detail rows, got %d", len(details))
	}
	if details[2][2] != "Experience" || details[2][5] != "6 years" {
		t.Fatalf("unexpected detail row: %v", details[2])
	}
}

func TestSaveChoosesFormat(t *testing.T) {
	dir := t.TempDir()
	report := sampleReport()

	jsonPath := filepath.Join(dir, "report.json")
	if err := Save(jsonPath, report); err != nil {
		t.Fatalf("Save json: %v", err)
	}
	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	var decoded struct {
		JobTitle   string `json:"jobTitle"`
		Candidates []struct {
			ID       string `json:"id"`
			Status   string `json:"status"`
			Analysis *struct {
				TotalScore *float64 `json:"totalScore"`
			} `json:"analysis"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if decoded.JobTitle != "Backend Engineer" || len(decoded.Candidates) != 2 {
		t.Fatalf("unexpected report: %+v", decoded)
	}
	if decoded.Candidates[0].Analysis == nil || *decoded.Candidates[0].Analysis.TotalScore != 91 {
		t.Fatalf("score lost in JSON export: %s", raw)
	}
	if decoded.Candidates[1].Status != "FAILED" || decoded.Candidates[1].Analysis != nil {
		t.Fatalf("unexpected failed record: %+v", decoded.Candidates[1])
	}

	xlsxPath := filepath.Join(dir, "report.XLSX")
	if err := Save(xlsxPath, report); err != nil {
		t.Fatalf("Save xlsx: %v", err)
	}
	f, err := excelize.OpenFile(xlsxPath)
	if err != nil {
		t.Fatalf("open saved workbook: %v", err)
	}
	defer f.Close()
	if idx, err := f.GetSheetIndex(detailsSheet); err != nil || idx < 0 {
		t.Fatalf("details sheet missing: %d %v", idx, err)
	}
}
