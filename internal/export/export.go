// Package export writes ranked candidates to spreadsheet and JSON reports.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/TechFutureAIFPT/hr-support/internal/pipeline"
)

// Report is the exported batch. Candidates are written in the given order.
type Report struct {
	JobTitle    string               `json:"jobTitle,omitempty"`
	GeneratedAt time.Time            `json:"generatedAt"`
	Candidates  []pipeline.Candidate `json:"candidates"`
}

func WriteJSON(w io.Writer, report Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// Save writes the report to path, choosing the format from its extension:
// .xlsx for a spreadsheet, anything else for JSON.
func Save(path string, report Report) error {
	path = filepath.Clean(path)
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		err = WriteXLSX(f, report)
	} else {
		err = WriteJSON(f, report)
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
