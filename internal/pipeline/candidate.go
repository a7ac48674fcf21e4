package pipeline

import (
	"sort"
	"strconv"
	"unicode/utf16"
)

type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// Candidate is one evaluated CV, or a FAILED record for a file that could not
// be read.
type Candidate struct {
	ID     string `json:"id" mapstructure:"-"`
	Status Status `json:"status" mapstructure:"-"`
	Error  string `json:"error,omitempty" mapstructure:"-"`

	CandidateName           string    `json:"candidateName" mapstructure:"candidateName"`
	FileName                string    `json:"fileName" mapstructure:"fileName"`
	Phone                   string    `json:"phone,omitempty" mapstructure:"phone"`
	Email                   string    `json:"email,omitempty" mapstructure:"email"`
	JobTitle                string    `json:"jobTitle,omitempty" mapstructure:"jobTitle"`
	Industry                string    `json:"industry,omitempty" mapstructure:"industry"`
	Department              string    `json:"department,omitempty" mapstructure:"department"`
	ExperienceLevel         string    `json:"experienceLevel,omitempty" mapstructure:"experienceLevel"`
	DetectedLocation        string    `json:"detectedLocation,omitempty" mapstructure:"detectedLocation"`
	HardFilterFailureReason string    `json:"hardFilterFailureReason,omitempty" mapstructure:"hardFilterFailureReason"`
	SoftFilterWarnings      []string  `json:"softFilterWarnings,omitempty" mapstructure:"softFilterWarnings"`
	Analysis                *Analysis `json:"analysis,omitempty" mapstructure:"analysis"`
}

type Analysis struct {
	TotalScore          *float64             `json:"totalScore" mapstructure:"totalScore"`
	Grade               string               `json:"grade" mapstructure:"grade"`
	Details             []ScoreDetail        `json:"details,omitempty" mapstructure:"details"`
	Strengths           []string             `json:"strengths,omitempty" mapstructure:"strengths"`
	Weaknesses          []string             `json:"weaknesses,omitempty" mapstructure:"weaknesses"`
	EducationValidation *EducationValidation `json:"educationValidation,omitempty" mapstructure:"educationValidation"`
}

type ScoreDetail struct {
	Criterion   string `json:"criterion" mapstructure:"criterion"`
	Score       string `json:"score" mapstructure:"score"`
	Formula     string `json:"formula" mapstructure:"formula"`
	Evidence    string `json:"evidence" mapstructure:"evidence"`
	Explanation string `json:"explanation" mapstructure:"explanation"`
}

type EducationValidation struct {
	StandardizedEducation string   `json:"standardizedEducation" mapstructure:"standardizedEducation"`
	ValidationNote        string   `json:"validationNote" mapstructure:"validationNote"`
	Warnings              []string `json:"warnings,omitempty" mapstructure:"warnings"`
}

// Score returns the total score and whether the model provided one.
func (c Candidate) Score() (float64, bool) {
	if c.Analysis == nil || c.Analysis.TotalScore == nil {
		return 0, false
	}
	return *c.Analysis.TotalScore, true
}

func (c Candidate) Grade() string {
	if c.Analysis == nil {
		return ""
	}
	return c.Analysis.Grade
}

// Order sorts candidates by score descending, unscored last, then by file name
// ascending. Equal keys keep their input order.
func Order(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		si, iok := candidates[i].Score()
		sj, jok := candidates[j].Score()
		if iok != jok {
			return iok
		}
		if si != sj {
			return si > sj
		}
		return candidates[i].FileName < candidates[j].FileName
	})
}

// Identity derives the deterministic candidate id from the file name,
// candidate name, job title and experience level. Distinct tuples may collide;
// no disambiguation is attempted.
func Identity(fileName, candidateName, jobTitle, experienceLevel string) string {
	return "cand_" + stableHash(fileName+"|"+candidateName+"|"+jobTitle+"|"+experienceLevel)
}

func failedIdentity(fileName string) string {
	return "failed_" + stableHash(fileName)
}

// stableHash is 32-bit FNV-1a over UTF-16 code units, rendered in base 36.
func stableHash(s string) string {
	const (
		offset32 uint32 = 2166136261
		prime32  uint32 = 16777619
	)

	h := offset32
	for _, unit := range utf16.Encode([]rune(s)) {
		h ^= uint32(unit)
		h *= prime32
	}
	return strconv.FormatUint(uint64(h), 36)
}
