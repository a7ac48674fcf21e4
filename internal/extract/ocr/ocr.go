// Package ocr recognizes text in images with Tesseract.
package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/TechFutureAIFPT/hr-support/internal/extract"
)

// DefaultLanguages covers English and Vietnamese resumes.
var DefaultLanguages = []string{"eng", "vie"}

var _ extract.Recognizer = (*Tesseract)(nil)

// Tesseract runs one gosseract client per call; clients are not safe for
// concurrent use.
type Tesseract struct {
	languages []string
}

func New(languages ...string) *Tesseract {
	if len(languages) == 0 {
		languages = DefaultLanguages
	}
	return &Tesseract{languages: languages}
}

func (t *Tesseract) Recognize(ctx context.Context, image []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return "", fmt.Errorf("set languages %s: %w", strings.Join(t.languages, "+"), err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("load image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return text, nil
}
