// Package analysis builds the model requests of a screening run: the CV
// evaluation prompt and its response schema, job description structuring and
// job title extraction.
package analysis

import (
	_ "embed"
	"regexp"
	"strconv"
	"strings"

	"github.com/TechFutureAIFPT/hr-support/internal/llm"
	"github.com/TechFutureAIFPT/hr-support/internal/scoring"
	"github.com/TechFutureAIFPT/hr-support/internal/utils"
)

const (
	// MaxDocumentChars caps the text sent per CV.
	MaxDocumentChars = 8000
	// MaxJobDescriptionChars caps the compacted job description in the prompt.
	MaxJobDescriptionChars = 5000

	DefaultLanguage = "VIETNAMESE"
)

//go:embed prompt.md
var promptTemplate string

var reWhitespace = regexp.MustCompile(`\s+`)

// CompactJobDescription collapses all whitespace runs to a single space and
// caps the result.
func CompactJobDescription(jd string) string {
	jd = strings.TrimSpace(reWhitespace.ReplaceAllString(jd, " "))
	return utils.Clip(jd, MaxJobDescriptionChars, "")
}

// BuildPrompt renders the evaluation instructions for jd and cfg.
func BuildPrompt(jd string, cfg scoring.Config, language string) string {
	if strings.TrimSpace(language) == "" {
		language = DefaultLanguage
	}

	return strings.NewReplacer(
		"{{LANGUAGE}}", strings.ToUpper(language),
		"{{JOB_DESCRIPTION}}", CompactJobDescription(jd),
		"{{CRITERIA_COUNT}}", strconv.Itoa(len(cfg.Criteria)),
		"{{CRITERIA}}", cfg.CompactCriteria(),
		"{{FILTERS}}", cfg.CompactFilters(),
	).Replace(promptTemplate)
}

// DocumentPart wraps the text of one CV under a header naming its file.
func DocumentPart(fileName, text string) llm.Part {
	return llm.Part{
		Source: fileName,
		Text:   "--- CV Content for " + fileName + " ---\n" + utils.Clip(text, MaxDocumentChars, "..."),
	}
}

// Request assembles the evaluation request: instructions first, then one part
// per document, with deterministic settings and the candidate schema.
func Request(jd string, cfg scoring.Config, language string, documents []llm.Part) llm.Request {
	parts := make([]llm.Part, 0, len(documents)+1)
	parts = append(parts, llm.Part{Source: "instructions", Text: BuildPrompt(jd, cfg, language)})
	parts = append(parts, documents...)

	return llm.Request{
		Parts:  parts,
		Config: llm.Deterministic().WithSchema(CandidateSchema()),
	}
}
