package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/TechFutureAIFPT/hr-support/internal/ai"
	"github.com/TechFutureAIFPT/hr-support/internal/pipeline"
)

var (
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	green  = color.New(color.FgGreen)
	cyan   = color.New(color.FgCyan)
	bold   = color.New(color.Bold)
	dim    = color.New(color.Faint)
)

func noColor() {
	color.NoColor = true
}

// printer writes human oriented output; logs stay on stderr.
type printer struct {
	out io.Writer
}

func (p printer) info(format string, args ...any) {
	_, _ = cyan.Fprintf(p.out, "ℹ "+format+"\n", args...)
}

func (p printer) success(format string, args ...any) {
	_, _ = green.Fprintf(p.out, "✓ "+format+"\n", args...)
}

func (p printer) warning(format string, args ...any) {
	_, _ = yellow.Fprintf(p.out, "⚠ "+format+"\n", args...)
}

func (p printer) progress(message string) {
	_, _ = dim.Fprintf(p.out, "  %s\n", message)
}

func scoreColor(c pipeline.Candidate) *color.Color {
	score, ok := c.Score()
	switch {
	case !ok:
		return dim
	case score >= 85:
		return green
	case score >= 70:
		return yellow
	default:
		return red
	}
}

func (p printer) ranking(jobTitle string, candidates []pipeline.Candidate) {
	title := "Ranking"
	if jobTitle != "" {
		title += ": " + jobTitle
	}
	_, _ = bold.Fprintln(p.out, "\n"+title)

	for i, c := range candidates {
		if c.Status == pipeline.StatusFailed {
			_, _ = red.Fprintf(p.out, "%3d. ✗ %s  %s\n", i+1, c.FileName, c.Error)
			continue
		}

		score := "  -"
		if s, ok := c.Score(); ok {
			score = fmt.Sprintf("%3.0f", s)
		}
		grade := c.Grade()
		if grade == "" {
			grade = "-"
		}

		_, _ = fmt.Fprintf(p.out, "%3d. ", i+1)
		_, _ = scoreColor(c).Fprintf(p.out, "%s %-2s", score, grade)
		_, _ = fmt.Fprintf(p.out, " %s", c.CandidateName)
		_, _ = dim.Fprintf(p.out, "  (%s)", c.FileName)
		if c.JobTitle != "" {
			_, _ = fmt.Fprintf(p.out, "  %s", c.JobTitle)
		}
		_, _ = fmt.Fprintln(p.out)

		if c.HardFilterFailureReason != "" {
			_, _ = red.Fprintf(p.out, "       hard filter: %s\n", c.HardFilterFailureReason)
		}
		if len(c.SoftFilterWarnings) > 0 {
			_, _ = yellow.Fprintf(p.out, "       warnings: %s\n", strings.Join(c.SoftFilterWarnings, "; "))
		}
	}
}

func (p printer) advice(advice *ai.Advice, candidates []pipeline.Candidate) {
	_, _ = fmt.Fprintln(p.out, advice.Text)
	if len(advice.CandidateIDs) == 0 {
		return
	}

	byID := make(map[string]pipeline.Candidate, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}
	for _, id := range advice.CandidateIDs {
		if c, ok := byID[id]; ok {
			_, _ = cyan.Fprintf(p.out, "  → %s (%s)\n", c.CandidateName, c.FileName)
		}
	}
}
