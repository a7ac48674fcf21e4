package filtering

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/TechFutureAIFPT/hr-support/internal/pipeline"
)

type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

type failedFilter struct {
	toggle
	hide bool
}

// NewFailed creates a filter that removes records of files that could not be read.
func NewFailed() Filter {
	return &failedFilter{}
}

func (f *failedFilter) Name() string { return "failed" }

func (f *failedFilter) Validate(cfg *Config) error {
	f.hide = cfg.HideFailed
	return nil
}

func (f *failedFilter) Apply(_ context.Context, deps Deps, c []pipeline.Candidate) ([]pipeline.Candidate, Step, error) {
	initial := len(c)
	if !f.hide {
		return c, Step{Initial: initial, Left: initial}, nil
	}

	kept, dropped := keep(c, func(c pipeline.Candidate) bool { return c.Status != pipeline.StatusFailed })
	if deps.Logger != nil && len(dropped) > 0 {
		deps.Logger.Info("hiding files that could not be read", zap.Strings("files", dropped))
	}
	return kept, Step{Initial: initial, Dropped: len(dropped), Left: len(kept)}, nil
}

func (f *failedFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: map[string]string{
		"hide_failed": strconv.FormatBool(f.hide),
	}}
}

type hardFiltersFilter struct {
	toggle
	passedOnly bool
}

// NewHardFilters creates a filter that removes candidates the model marked as
// failing a mandatory hard filter.
func NewHardFilters() Filter {
	return &hardFiltersFilter{}
}

func (f *hardFiltersFilter) Name() string { return "hard_filters" }

func (f *hardFiltersFilter) Validate(cfg *Config) error {
	f.passedOnly = cfg.PassedOnly
	return nil
}

func (f *hardFiltersFilter) Apply(_ context.Context, deps Deps, c []pipeline.Candidate) ([]pipeline.Candidate, Step, error) {
	initial := len(c)
	if !f.passedOnly {
		return c, Step{Initial: initial, Left: initial}, nil
	}

	kept, dropped := keep(c, func(c pipeline.Candidate) bool {
		return c.Status != pipeline.StatusSuccess || strings.TrimSpace(c.HardFilterFailureReason) == ""
	})
	if deps.Logger != nil && len(dropped) > 0 {
		deps.Logger.Info("excluding candidates failing hard filters", zap.Strings("files", dropped))
	}
	return kept, Step{Initial: initial, Dropped: len(dropped), Left: len(kept)}, nil
}

type minScoreFilter struct {
	toggle
	min float64
}

// NewMinScore creates a filter that removes scored candidates below the
// configured minimum. Unscored records are kept.
func NewMinScore() Filter {
	return &minScoreFilter{}
}

func (f *minScoreFilter) Name() string { return "min_score" }

func (f *minScoreFilter) Validate(cfg *Config) error {
	if cfg.MinScore < 0 || cfg.MinScore > 100 {
		return fmt.Errorf("minimum score must be within 0..100, got %v", cfg.MinScore)
	}
	f.min = cfg.MinScore
	return nil
}

func (f *minScoreFilter) Apply(_ context.Context, deps Deps, c []pipeline.Candidate) ([]pipeline.Candidate, Step, error) {
	initial := len(c)
	if f.min == 0 {
		return c, Step{Initial: initial, Left: initial}, nil
	}

	kept, dropped := keep(c, func(c pipeline.Candidate) bool {
		score, ok := c.Score()
		return !ok || score >= f.min
	})
	if deps.Logger != nil && len(dropped) > 0 {
		deps.Logger.Info("excluding candidates below minimum score",
			zap.Float64("min_score", f.min),
			zap.Strings("files", dropped),
		)
	}
	return kept, Step{Initial: initial, Dropped: len(dropped), Left: len(kept)}, nil
}

func (f *minScoreFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: map[string]string{
		"min_score": strconv.FormatFloat(f.min, 'f', -1, 64),
	}}
}

type excludeFileFilter struct {
	toggle
	path  string
	names map[string]struct{}
}

// NewExcludeFile creates a filter that removes candidates whose file name is
// listed, one per line, in the configured exclude file. A missing file
// excludes nothing.
func NewExcludeFile() Filter {
	return &excludeFileFilter{}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Validate(cfg *Config) error {
	f.path = strings.TrimSpace(cfg.ExcludeFile)
	f.names = nil
	if f.path == "" {
		return nil
	}

	names, err := ReadExcludeFile(f.path)
	if err != nil {
		return err
	}
	f.names = names
	return nil
}

func (f *excludeFileFilter) Apply(_ context.Context, deps Deps, c []pipeline.Candidate) ([]pipeline.Candidate, Step, error) {
	initial := len(c)
	if len(f.names) == 0 {
		return c, Step{Initial: initial, Left: initial}, nil
	}

	kept, dropped := keep(c, func(c pipeline.Candidate) bool {
		_, excluded := f.names[c.FileName]
		return !excluded
	})
	if deps.Logger != nil && len(dropped) > 0 {
		deps.Logger.Info("excluding candidates listed in exclude file",
			zap.String("exclude_file", f.path),
			zap.Strings("files", dropped),
		)
	}
	return kept, Step{Initial: initial, Dropped: len(dropped), Left: len(kept)}, nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["exclude_file"] = f.path
		details["entries"] = strconv.Itoa(len(f.names))
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

// ReadExcludeFile reads file names, one per line. Blank lines and lines
// starting with # are ignored.
func ReadExcludeFile(path string) (map[string]struct{}, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]struct{}{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open exclude file: %w", err)
	}
	defer file.Close()

	names := make(map[string]struct{})
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read exclude file: %w", err)
	}
	return names, nil
}

// AppendExcludeFile adds the file names of candidates to the exclude file.
func AppendExcludeFile(path string, candidates []pipeline.Candidate) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open exclude file: %w", err)
	}

	w := bufio.NewWriter(file)
	for _, c := range candidates {
		if _, err := fmt.Fprintln(w, c.FileName); err != nil {
			file.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
