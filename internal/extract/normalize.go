package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	reHorizontalRuns = regexp.MustCompile(`[ \t]{2,}`)
	reBlankRuns      = regexp.MustCompile(`\n{3,}`)
	reSymbols        = regexp.MustCompile(`[^\w\s]`)
	lineEndings      = strings.NewReplacer("\r\n", "\n", "\r", "\n")
)

// Normalize canonicalizes line endings, collapses runs of spaces and tabs to a
// single space, collapses three or more newlines into a paragraph break and
// trims the result.
func Normalize(text string) string {
	text = lineEndings.Replace(text)
	text = reHorizontalRuns.ReplaceAllString(text, " ")
	text = reBlankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// MeaningfulLength counts the characters left after dropping everything that
// is neither a word character nor whitespace and trimming.
func MeaningfulLength(text string) int {
	return utf8.RuneCountInString(strings.TrimSpace(reSymbols.ReplaceAllString(text, "")))
}
