// Package filtering narrows a ranked batch of candidates before it is shown or
// exported. Steps run in order and never reorder what they keep.
package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/TechFutureAIFPT/hr-support/internal/pipeline"
)

// Filter represents a single filtering step applied to candidates.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, deps Deps, c []pipeline.Candidate) ([]pipeline.Candidate, Step, error)
}

// Deps aggregates dependencies shared across all filtering steps.
type Deps struct {
	Logger *zap.Logger
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Config contains configuration settings consumed by the filters.
type Config struct {
	MinScore    float64 `mapstructure:"min-score"`
	HideFailed  bool    `mapstructure:"hide-failed"`
	PassedOnly  bool    `mapstructure:"passed-only"`
	ExcludeFile string  `mapstructure:"exclude-file"`
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Default returns every built-in step in its canonical order.
func Default() []Filter {
	return []Filter{
		NewExcludeFile(),
		NewFailed(),
		NewHardFilters(),
		NewMinScore(),
	}
}

// Run validates the enabled filters, then applies them in order.
func Run(ctx context.Context, cfg *Config, deps Deps, steps []Filter, candidates []pipeline.Candidate) ([]pipeline.Candidate, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			if deps.Logger != nil {
				deps.Logger.Debug("filter disabled", zap.String("name", step.Name()))
			}
			continue
		}

		next, info, err := step.Apply(ctx, deps, candidates)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		if deps.Logger != nil {
			deps.Logger.Info("filter step",
				zap.String("name", step.Name()),
				zap.Int("initial", info.Initial),
				zap.Int("dropped", info.Dropped),
				zap.Int("left", info.Left),
			)
		}

		candidates = next
	}

	return candidates, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

// keep returns the candidates for which pred holds, preserving order, and the
// file names of the dropped ones.
func keep(candidates []pipeline.Candidate, pred func(pipeline.Candidate) bool) ([]pipeline.Candidate, []string) {
	kept := make([]pipeline.Candidate, 0, len(candidates))
	var dropped []string
	for _, c := range candidates {
		if pred(c) {
			kept = append(kept, c)
			continue
		}
		dropped = append(dropped, c.FileName)
	}
	return kept, dropped
}
