package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/TechFutureAIFPT/hr-support/internal/llm"
	"github.com/TechFutureAIFPT/hr-support/internal/scoring"
)

type fakeSubmitter struct {
	out  string
	err  error
	reqs []llm.Request
}

func (f *fakeSubmitter) Submit(_ context.Context, req llm.Request) (string, error) {
	f.reqs = append(f.reqs, req)
	return f.out, f.err
}

func TestBuildPrompt(t *testing.T) {
	jd := "Senior   Go\n\n\tEngineer " + strings.Repeat("x", MaxJobDescriptionChars)
	prompt := BuildPrompt(jd, scoring.Default(), "")

	for _, want := range []string{
		"Language: VIETNAMESE ONLY",
		"Senior Go Engineer x",
		"Score these 9 criteria:",
		"Work experience: 20%",
		"Contact info: (Mandatory: false)",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("expected prompt to contain %q", want)
		}
	}

	for _, placeholder := range []string{"{{LANGUAGE}}", "{{JOB_DESCRIPTION}}", "{{CRITERIA}}", "{{FILTERS}}", "{{CRITERIA_COUNT}}"} {
		if strings.Contains(prompt, placeholder) {
			t.Fatalf("unreplaced placeholder %s", placeholder)
		}
	}

	if got := len([]rune(CompactJobDescription(jd))); got != MaxJobDescriptionChars {
		t.Fatalf("expected compacted length %d, got %d", MaxJobDescriptionChars, got)
	}
}

func TestDocumentPart(t *testing.T) {
	part := DocumentPart("a.pdf", strings.Repeat("é", MaxDocumentChars+1))
	if part.Source != "a.pdf" {
		t.Fatalf("unexpected source %q", part.Source)
	}
	if !strings.HasPrefix(part.Text, "--- CV Content for a.pdf ---\n") || !strings.HasSuffix(part.Text, "é...") {
		t.Fatalf("unexpected part text prefix/suffix")
	}

	short := DocumentPart("b.pdf", "short")
	if short.Text != "--- CV Content for b.pdf ---\nshort" {
		t.Fatalf("unexpected part %q", short.Text)
	}
}

func TestRequest(t *testing.T) {
	req := Request("jd", scoring.Default(), "english", []llm.Part{DocumentPart("a.pdf", "cv")})

	if len(req.Parts) != 2 || req.Parts[0].Source != "instructions" {
		t.Fatalf("unexpected parts %+v", req.Parts)
	}
	if !req.Config.JSON || req.Config.Schema == nil || req.Config.Schema.Type != llm.TypeArray {
		t.Fatalf("expected JSON array schema, got %+v", req.Config)
	}
	if *req.Config.TopK != 1 || *req.Config.ThinkingBudget != 0 {
		t.Fatalf("expected deterministic config")
	}
	required := req.Config.Schema.Items.Required
	if strings.Join(required, ",") != "candidateName,fileName,analysis" {
		t.Fatalf("unexpected required fields %v", required)
	}
}

func TestStructureJobDescription(t *testing.T) {
	sub := &fakeSubmitter{out: "```json\n{\"purpose\":\" Build services \",\"duties\":\"\",\"requirements\":\"Go, SQL\"}\n```"}
	a := NewAnalyzer(sub, nil)

	got, err := a.StructureJobDescription(context.Background(), strings.Repeat("r", 5000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "### JOB PURPOSE\nBuild services\n\n### JOB REQUIREMENTS\nGo, SQL"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	req := sub.reqs[0]
	if strings.Count(req.Parts[0].Text, "r") < 4000 || strings.Contains(req.Parts[0].Text, strings.Repeat("r", 4001)) {
		t.Fatal("expected raw text capped at 4000 characters")
	}
	if req.Config.ThinkingBudget != nil || req.Config.Schema == nil {
		t.Fatalf("unexpected config %+v", req.Config)
	}
}

func TestStructureJobDescriptionErrors(t *testing.T) {
	tests := []struct {
		name  string
		sub   *fakeSubmitter
		check func(error) bool
	}{
		{
			name:  "all sections empty",
			sub:   &fakeSubmitter{out: `{"purpose":"","duties":" ","requirements":""}`},
			check: func(err error) bool { return errors.Is(err, ErrEmptyJobDescription) },
		},
		{
			name:  "not json",
			sub:   &fakeSubmitter{out: "sorry"},
			check: func(err error) bool { return err != nil && !errors.Is(err, ErrEmptyJobDescription) },
		},
		{
			name:  "submit failure",
			sub:   &fakeSubmitter{err: errors.New("all API keys failed")},
			check: func(err error) bool { return err != nil && strings.Contains(err.Error(), "all API keys failed") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAnalyzer(tt.sub, nil).StructureJobDescription(context.Background(), "raw jd")
			if !tt.check(err) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestExtractJobTitle(t *testing.T) {
	longJD := "We are hiring a Senior Go Engineer for our platform team."

	tests := []struct {
		name  string
		jd    string
		sub   *fakeSubmitter
		want  string
		calls int
	}{
		{name: "short jd", jd: "Go dev", sub: &fakeSubmitter{out: "Go Developer"}, want: "", calls: 0},
		{name: "title", jd: longJD, sub: &fakeSubmitter{out: "  Senior Go Engineer \n"}, want: "Senior Go Engineer", calls: 1},
		{name: "too long", jd: longJD, sub: &fakeSubmitter{out: strings.Repeat("t", 100)}, want: "", calls: 1},
		{name: "empty", jd: longJD, sub: &fakeSubmitter{out: "  "}, want: "", calls: 1},
		{name: "error", jd: longJD, sub: &fakeSubmitter{err: errors.New("quota")}, want: "", calls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewAnalyzer(tt.sub, nil).ExtractJobTitle(context.Background(), tt.jd)
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
			if len(tt.sub.reqs) != tt.calls {
				t.Fatalf("expected %d calls, got %d", tt.calls, len(tt.sub.reqs))
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"```json\n[1]\n```": "[1]",
		"```\n{}\n```":      "{}",
		"  [2]  ":           "[2]",
		"`[3]`":             "[3]",
	}
	for in, want := range tests {
		if got := ExtractJSON(in); got != want {
			t.Fatalf("ExtractJSON(%q) = %q, want %q", in, got, want)
		}
	}
}
