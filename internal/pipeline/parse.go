package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/TechFutureAIFPT/hr-support/internal/analysis"
)

// ErrInvalidResponse marks a model answer that is not a JSON array of
// candidate objects.
var ErrInvalidResponse = errors.New("model returned invalid data")

var requiredFields = []string{"fileName", "candidateName"}

// Parse validates raw against the candidate shape and decodes it. Code fences
// around the payload are tolerated. The returned candidates carry their ids
// and SUCCESS status but are not ordered.
func Parse(raw string) ([]Candidate, error) {
	var items []map[string]any
	if err := json.Unmarshal([]byte(analysis.ExtractJSON(raw)), &items); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}

	candidates := make([]Candidate, 0, len(items))
	for i, item := range items {
		if err := validate(item); err != nil {
			return nil, fmt.Errorf("%w: item %d: %w", ErrInvalidResponse, i, err)
		}

		var c Candidate
		if err := decode(item, &c); err != nil {
			return nil, fmt.Errorf("%w: item %d: %w", ErrInvalidResponse, i, err)
		}

		c.Status = StatusSuccess
		c.ID = Identity(c.FileName, c.CandidateName, c.JobTitle, c.ExperienceLevel)
		candidates = append(candidates, c)
	}

	return candidates, nil
}

func validate(item map[string]any) error {
	if item == nil {
		return errors.New("not an object")
	}

	for _, field := range requiredFields {
		v, ok := item[field]
		if !ok {
			return fmt.Errorf("missing %s", field)
		}
		if _, ok := v.(string); !ok {
			return fmt.Errorf("%s must be a string, got %T", field, v)
		}
	}

	if v, ok := item["analysis"]; ok && v != nil {
		if _, ok := v.(map[string]any); !ok {
			return fmt.Errorf("analysis must be an object, got %T", v)
		}
	}

	return nil
}

func decode(input map[string]any, out *Candidate) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}
