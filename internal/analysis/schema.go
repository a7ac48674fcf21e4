package analysis

import "github.com/TechFutureAIFPT/hr-support/internal/llm"

func str(description string) *llm.Schema {
	return &llm.Schema{Type: llm.TypeString, Description: description}
}

func strList(description string) *llm.Schema {
	return &llm.Schema{Type: llm.TypeArray, Items: &llm.Schema{Type: llm.TypeString}, Description: description}
}

// CandidateSchema is the response schema of the evaluation request: an array
// with one object per CV.
func CandidateSchema() *llm.Schema {
	detail := &llm.Schema{
		Type: llm.TypeObject,
		Properties: map[string]*llm.Schema{
			"criterion":   str(""),
			"score":       str("Score for the criterion as 'score/weight', e.g. '12.5/15' for a 15% criterion"),
			"formula":     str("Formula used: 'subscore X/weight_Y% = X points'"),
			"evidence":    str("Direct quote from the CV"),
			"explanation": str("Brief explanation of the score"),
		},
		Required: []string{"criterion", "score", "formula", "evidence", "explanation"},
	}

	education := &llm.Schema{
		Type: llm.TypeObject,
		Properties: map[string]*llm.Schema{
			"standardizedEducation": str("School - Degree - Major - Period"),
			"validationNote":        str("'Valid' or 'Invalid - HR review required'"),
			"warnings":              strList("Validation warnings"),
		},
		Required: []string{"standardizedEducation", "validationNote"},
	}

	result := &llm.Schema{
		Type: llm.TypeObject,
		Properties: map[string]*llm.Schema{
			"totalScore":          {Type: llm.TypeInteger},
			"grade":               str("A, B or C"),
			"details":             {Type: llm.TypeArray, Items: detail},
			"strengths":           strList("3-5 key strengths from the CV"),
			"weaknesses":          strList("3-5 key weaknesses from the CV"),
			"educationValidation": education,
		},
		Required: []string{"totalScore", "grade", "details", "strengths", "weaknesses"},
	}

	return &llm.Schema{
		Type: llm.TypeArray,
		Items: &llm.Schema{
			Type: llm.TypeObject,
			Properties: map[string]*llm.Schema{
				"candidateName":           str(""),
				"phone":                   str("Phone number, if found"),
				"email":                   str("Email address, if found"),
				"fileName":                str(""),
				"jobTitle":                str(""),
				"industry":                str(""),
				"department":              str(""),
				"experienceLevel":         str(""),
				"hardFilterFailureReason": str("Reason for failing a mandatory hard filter"),
				"softFilterWarnings":      strList("Non mandatory filters that were not met"),
				"detectedLocation":        str(""),
				"analysis":                result,
			},
			Required: []string{"candidateName", "fileName", "analysis"},
		},
	}
}
