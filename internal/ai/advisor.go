// Package ai answers free form questions about an evaluated batch of
// candidates.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/TechFutureAIFPT/hr-support/internal/analysis"
	"github.com/TechFutureAIFPT/hr-support/internal/llm"
	"github.com/TechFutureAIFPT/hr-support/internal/logger"
	"github.com/TechFutureAIFPT/hr-support/internal/pipeline"
	"github.com/TechFutureAIFPT/hr-support/internal/utils"
)

//go:embed advisor_prompt.md
var promptTemplate string

const (
	defaultMaxLogLength = 200
	// maxContextCandidates bounds how many candidates are sent as context.
	maxContextCandidates = 20
	jdFitPrefix          = "JD fit"
)

var ErrEmptyQuestion = errors.New("question is empty")

// Batch is the evaluated run the questions are about.
type Batch struct {
	JobTitle   string
	Language   string
	Candidates []pipeline.Candidate
}

// Advice is the assistant answer. CandidateIDs only holds ids present in the
// batch.
type Advice struct {
	Text         string   `json:"responseText"`
	CandidateIDs []string `json:"candidateIds"`
	Raw          string   `json:"-"`
}

type Advisor struct {
	submitter analysis.Submitter
	logger    *zap.Logger
	maxLogLen int
}

func NewAdvisor(submitter analysis.Submitter, log *zap.Logger, maxLogLength int) *Advisor {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Advisor{
		submitter: submitter,
		logger:    logger.Named(log, "advisor"),
		maxLogLen: maxLogLength,
	}
}

// summary counts successful candidates per grade.
type summary struct {
	Total  int `json:"total"`
	CountA int `json:"countA"`
	CountB int `json:"countB"`
	CountC int `json:"countC"`
}

// contextCandidate is the reduced view sent to the model. Contact details are
// left out.
type contextCandidate struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Grade        string   `json:"grade,omitempty"`
	TotalScore   *float64 `json:"totalScore,omitempty"`
	JDFitPercent int      `json:"jdFitPercent"`
	Title        string   `json:"title,omitempty"`
	Level        string   `json:"level,omitempty"`
}

func (a *Advisor) Advise(ctx context.Context, batch Batch, question string) (*Advice, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	prompt, known, err := buildPrompt(batch, question)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("advice request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, a.maxLogLen)),
	)

	req := llm.Text(prompt)
	req.Config = llm.Deterministic().WithSchema(adviceSchema())

	raw, err := a.submitter.Submit(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("assistant is unavailable: %w", err)
	}

	a.logger.Debug("advice response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, a.maxLogLen)),
	)

	advice, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	ids := advice.CandidateIDs[:0]
	for _, id := range advice.CandidateIDs {
		if _, ok := known[id]; ok {
			ids = append(ids, id)
			continue
		}
		a.logger.Debug("dropping unknown candidate id", zap.String("id", id))
	}
	advice.CandidateIDs = ids
	advice.Raw = raw
	return advice, nil
}

func buildPrompt(batch Batch, question string) (string, map[string]struct{}, error) {
	var (
		sum        summary
		candidates []contextCandidate
		known      = make(map[string]struct{})
	)
	for _, c := range batch.Candidates {
		if c.Status != pipeline.StatusSuccess {
			continue
		}
		sum.Total++
		switch c.Grade() {
		case "A":
			sum.CountA++
		case "B":
			sum.CountB++
		case "C":
			sum.CountC++
		}
		if len(candidates) == maxContextCandidates {
			continue
		}
		known[c.ID] = struct{}{}
		view := contextCandidate{
			ID:           c.ID,
			Name:         c.CandidateName,
			Grade:        c.Grade(),
			JDFitPercent: jdFitPercent(c),
			Title:        c.JobTitle,
			Level:        c.ExperienceLevel,
		}
		if c.Analysis != nil {
			view.TotalScore = c.Analysis.TotalScore
		}
		candidates = append(candidates, view)
	}

	summaryJSON, err := json.Marshal(sum)
	if err != nil {
		return "", nil, fmt.Errorf("marshal summary: %w", err)
	}
	if candidates == nil {
		candidates = []contextCandidate{}
	}
	candidatesJSON, err := json.Marshal(candidates)
	if err != nil {
		return "", nil, fmt.Errorf("marshal candidates: %w", err)
	}

	language := batch.Language
	if language == "" {
		language = analysis.DefaultLanguage
	}

	prompt := strings.NewReplacer(
		"{{LANGUAGE}}", language,
		"{{JOB_TITLE}}", batch.JobTitle,
		"{{SUMMARY_JSON}}", string(summaryJSON),
		"{{CANDIDATES_JSON}}", string(candidatesJSON),
		"{{QUESTION}}", question,
	).Replace(promptTemplate)
	return prompt, known, nil
}

// jdFitPercent reads the numerator of the "JD fit" criterion score, "12/15"
// giving 12. Missing or malformed scores give 0.
func jdFitPercent(c pipeline.Candidate) int {
	if c.Analysis == nil {
		return 0
	}
	for _, d := range c.Analysis.Details {
		if !strings.HasPrefix(d.Criterion, jdFitPrefix) {
			continue
		}
		head, _, _ := strings.Cut(d.Score, "/")
		n, err := strconv.Atoi(strings.TrimSpace(head))
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

func adviceSchema() *llm.Schema {
	return &llm.Schema{
		Type: llm.TypeObject,
		Properties: map[string]*llm.Schema{
			"responseText": {Type: llm.TypeString, Description: "The answer to the user."},
			"candidateIds": {Type: llm.TypeArray, Items: &llm.Schema{Type: llm.TypeString}, Description: "Ids of the candidates the answer refers to."},
		},
		Required: []string{"responseText", "candidateIds"},
	}
}

func parseResponse(raw string) (*Advice, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(analysis.ExtractJSON(raw)), &data); err != nil {
		return nil, fmt.Errorf("parse assistant response: %w", err)
	}

	advice := &Advice{Text: coerceString(data["responseText"])}
	if list, ok := data["candidateIds"].([]any); ok {
		for _, v := range list {
			if id := coerceString(v); id != "" {
				advice.CandidateIDs = append(advice.CandidateIDs, id)
			}
		}
	}
	return advice, nil
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
