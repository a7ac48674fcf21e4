// Package scoring holds the weighted criteria and hard filters a run is
// evaluated against. The semantics of each criterion are left to the model;
// this package only validates and renders them.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// TotalWeight is the sum every configuration must reach.
const TotalWeight = 100

var ErrInvalidWeights = errors.New("criteria weights must add up to 100")

type SubCriterion struct {
	Key    string  `yaml:"key" json:"key"`
	Name   string  `yaml:"name" json:"name"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// Criterion is a top level criterion. When it has children its effective
// weight is the sum of theirs.
type Criterion struct {
	Key      string         `yaml:"key" json:"key"`
	Name     string         `yaml:"name" json:"name"`
	Weight   float64        `yaml:"weight" json:"weight"`
	Children []SubCriterion `yaml:"children,omitempty" json:"children,omitempty"`
}

func (c Criterion) EffectiveWeight() float64 {
	if len(c.Children) == 0 {
		return c.Weight
	}
	var sum float64
	for _, child := range c.Children {
		sum += child.Weight
	}
	if sum == 0 {
		return c.Weight
	}
	return sum
}

// Filter is a single hard filter. Mandatory filters must carry a value.
type Filter struct {
	Value     string `yaml:"value" json:"value"`
	Mandatory bool   `yaml:"mandatory" json:"mandatory"`
}

type SalaryFilter struct {
	Min       string `yaml:"min" json:"min"`
	Max       string `yaml:"max" json:"max"`
	Mandatory bool   `yaml:"mandatory" json:"mandatory"`
}

type HardFilters struct {
	Location         Filter       `yaml:"location" json:"location"`
	MinExperience    Filter       `yaml:"min-experience" json:"minExperience"`
	Seniority        Filter       `yaml:"seniority" json:"seniority"`
	Education        Filter       `yaml:"education" json:"education"`
	Industry         Filter       `yaml:"industry" json:"industry"`
	Language         Filter       `yaml:"language" json:"language"`
	Certificates     Filter       `yaml:"certificates" json:"certificates"`
	WorkFormat       Filter       `yaml:"work-format" json:"workFormat"`
	ContractType     Filter       `yaml:"contract-type" json:"contractType"`
	Salary           SalaryFilter `yaml:"salary" json:"salary"`
	ContactMandatory bool         `yaml:"contact-mandatory" json:"contactMandatory"`
}

type namedFilter struct {
	label string
	Filter
}

func (h HardFilters) named() []namedFilter {
	return []namedFilter{
		{"Location", h.Location},
		{"Min experience (years)", h.MinExperience},
		{"Seniority", h.Seniority},
		{"Education", h.Education},
		{"Industry", h.Industry},
		{"Language", h.Language},
		{"Certificates", h.Certificates},
		{"Work format", h.WorkFormat},
		{"Contract type", h.ContractType},
	}
}

// Config is the scoring configuration of a run.
type Config struct {
	Criteria    []Criterion `yaml:"criteria" json:"criteria"`
	HardFilters HardFilters `yaml:"hard-filters" json:"hardFilters"`
}

// Default returns the built-in nine criteria and empty filters.
func Default() Config {
	return Config{
		Criteria: []Criterion{
			{Key: "jdFit", Name: "JD fit", Weight: 15},
			{Key: "experience", Name: "Work experience", Weight: 20},
			{Key: "technicalSkills", Name: "Technical skills", Weight: 15},
			{Key: "achievements", Name: "Achievements and results", Weight: 10},
			{Key: "education", Name: "Education", Weight: 10},
			{Key: "languages", Name: "Languages", Weight: 5},
			{Key: "certifications", Name: "Certifications", Weight: 5},
			{Key: "softSkills", Name: "Soft skills", Weight: 10},
			{Key: "professionalism", Name: "CV professionalism", Weight: 10},
		},
	}
}

// Load reads a YAML configuration file. Missing criteria fall back to Default.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading scoring config %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("scoring config %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a YAML (or JSON) configuration. Missing criteria
// fall back to Default.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing: %w", err)
	}
	if len(cfg.Criteria) == 0 {
		cfg.Criteria = Default().Criteria
	}

	return cfg, cfg.Validate()
}

func (c Config) Total() float64 {
	var sum float64
	for _, criterion := range c.Criteria {
		sum += criterion.EffectiveWeight()
	}
	return sum
}

// Validate checks the weight total and that every mandatory filter has a value.
func (c Config) Validate() error {
	if total := c.Total(); math.Abs(total-TotalWeight) > 0.01 {
		return fmt.Errorf("%w, got %s", ErrInvalidWeights, formatWeight(total))
	}

	for _, f := range c.HardFilters.named() {
		if f.Mandatory && strings.TrimSpace(f.Value) == "" {
			return fmt.Errorf("mandatory filter %q has no value", f.label)
		}
	}

	s := c.HardFilters.Salary
	if s.Mandatory && strings.TrimSpace(s.Min) == "" && strings.TrimSpace(s.Max) == "" {
		return errors.New(`mandatory filter "Salary" has no value`)
	}

	return nil
}

// CompactCriteria renders one "Name: W%" line per criterion.
func (c Config) CompactCriteria() string {
	lines := make([]string, 0, len(c.Criteria))
	for _, criterion := range c.Criteria {
		lines = append(lines, fmt.Sprintf("%s: %s%%", criterion.Name, formatWeight(criterion.EffectiveWeight())))
	}
	return strings.Join(lines, "\n")
}

// CompactFilters renders one line per filter that has a value or is mandatory.
func (c Config) CompactFilters() string {
	var lines []string
	for _, f := range c.HardFilters.named() {
		if strings.TrimSpace(f.Value) == "" && !f.Mandatory {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s (Mandatory: %t)", f.label, valueOrNA(f.Value), f.Mandatory))
	}

	s := c.HardFilters.Salary
	if s.Min != "" || s.Max != "" || s.Mandatory {
		lines = append(lines, fmt.Sprintf("Salary: %s - %s (Mandatory: %t)", valueOrNA(s.Min), valueOrNA(s.Max), s.Mandatory))
	}

	lines = append(lines, fmt.Sprintf("Contact info: (Mandatory: %t)", c.HardFilters.ContactMandatory))
	return strings.Join(lines, "\n")
}

func valueOrNA(v string) string {
	if v = strings.TrimSpace(v); v == "" {
		return "N/A"
	}
	return v
}

func formatWeight(w float64) string {
	return strconv.FormatFloat(w, 'f', -1, 64)
}
