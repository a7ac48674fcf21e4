package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/TechFutureAIFPT/hr-support/internal/llm"
	"github.com/TechFutureAIFPT/hr-support/internal/logger"
	"github.com/TechFutureAIFPT/hr-support/internal/utils"
)

const (
	maxStructureChars = 4000
	maxTitleChars     = 1500
	minTitleSource    = 20
	maxTitleLength    = 100
)

var ErrEmptyJobDescription = errors.New("no meaningful content could be extracted from the job description")

// Submitter executes a model request; the orchestrator implements it.
type Submitter interface {
	Submit(ctx context.Context, req llm.Request) (string, error)
}

// Analyzer runs the auxiliary job description requests.
type Analyzer struct {
	submitter Submitter
	logger    *zap.Logger
}

func NewAnalyzer(submitter Submitter, log *zap.Logger) *Analyzer {
	return &Analyzer{submitter: submitter, logger: logger.Named(log, "analysis")}
}

type structuredJD struct {
	Purpose      string `json:"purpose"`
	Duties       string `json:"duties"`
	Requirements string `json:"requirements"`
}

const structurePrompt = `You are an expert at processing job description (JD) text. Analyze the raw JD below, which may contain OCR errors, then extract, clean and restructure its content ACCURATELY.

RULES:
1. Clean the text: fix spelling, drop stray characters, normalize punctuation and capitalization.
2. PRESERVE THE ORIGINAL CONTENT: keep the wording and meaning of every sentence. Only fix spelling and formatting; never paraphrase or summarize.
3. Keep only three sections: job purpose, job duties and job requirements.
4. Recognize synonymous headings, e.g. "Responsibilities" are duties and "Candidate requirements" are requirements.
5. Drop everything else: company introduction, benefits, salary, contact details.
6. When a section is missing return an empty string for it.
7. Always return a JSON object with the keys purpose, duties and requirements.

Raw JD:
---
%s
---
`

func structureSchema() *llm.Schema {
	return &llm.Schema{
		Type: llm.TypeObject,
		Properties: map[string]*llm.Schema{
			"purpose":      str("Job purpose, or an empty string when not found"),
			"duties":       str("Job duties, or an empty string when not found"),
			"requirements": str("Job requirements, or an empty string when not found"),
		},
		Required: []string{"purpose", "duties", "requirements"},
	}
}

// StructureJobDescription keeps the purpose, duties and requirements sections
// of raw and renders them as markdown. ErrEmptyJobDescription is returned when
// all three come back empty.
func (a *Analyzer) StructureJobDescription(ctx context.Context, raw string) (string, error) {
	req := llm.Text(fmt.Sprintf(structurePrompt, utils.Clip(raw, maxStructureChars, "")))
	req.Config = llm.Deterministic().WithSchema(structureSchema())
	req.Config.ThinkingBudget = nil

	out, err := a.submitter.Submit(ctx, req)
	if err != nil {
		return "", fmt.Errorf("structuring job description: %w", err)
	}

	var jd structuredJD
	if err := json.Unmarshal([]byte(ExtractJSON(out)), &jd); err != nil {
		a.logger.Debug("unparsable job description response", zap.String("response_preview", utils.TruncateForLog(out, 200)))
		return "", fmt.Errorf("parsing structured job description: %w", err)
	}

	var b strings.Builder
	for _, section := range []struct{ title, body string }{
		{"JOB PURPOSE", jd.Purpose},
		{"JOB DUTIES", jd.Duties},
		{"JOB REQUIREMENTS", jd.Requirements},
	} {
		if body := strings.TrimSpace(section.body); body != "" {
			fmt.Fprintf(&b, "### %s\n%s\n\n", section.title, body)
		}
	}

	result := strings.TrimSpace(b.String())
	if result == "" {
		return "", ErrEmptyJobDescription
	}
	return result, nil
}

const titlePrompt = `From the job description below, extract and return ONLY the job title. Do not add any other text, label or explanation. For example, if the text says "We are looking for a Senior Frontend Developer", return "Senior Frontend Developer".

Job description:
---
%s
---
`

// ExtractJobTitle returns the job title named by jd, or an empty string when
// jd is too short, the request fails or the answer does not look like a title.
func (a *Analyzer) ExtractJobTitle(ctx context.Context, jd string) string {
	if utf8.RuneCountInString(strings.TrimSpace(jd)) < minTitleSource {
		return ""
	}

	req := llm.Text(fmt.Sprintf(titlePrompt, utils.Clip(jd, maxTitleChars, "")))
	req.Config = llm.Deterministic()

	out, err := a.submitter.Submit(ctx, req)
	if err != nil {
		a.logger.Warn("extracting job title failed", zap.Error(err))
		return ""
	}

	title := strings.TrimSpace(out)
	if n := utf8.RuneCountInString(title); n == 0 || n >= maxTitleLength {
		return ""
	}
	return title
}

// ExtractJSON strips markdown code fences around a JSON payload.
func ExtractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
