// Package docx reads the raw text of Word documents.
package docx

import (
	"bytes"
	"fmt"

	"code.sajari.com/docconv"

	"github.com/TechFutureAIFPT/hr-support/internal/extract"
)

var _ extract.DocxReader = Reader{}

// Reader extracts DOCX text with code.sajari.com/docconv.
type Reader struct{}

func (Reader) Text(data []byte) (string, error) {
	text, _, err := docconv.ConvertDocx(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("docconv: %w", err)
	}
	return text, nil
}
