// Package pdfdoc reads the text layer of PDF documents.
package pdfdoc

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/TechFutureAIFPT/hr-support/internal/extract"
)

var _ extract.PDFReader = Reader{}

// Reader opens PDFs with github.com/ledongthuc/pdf.
type Reader struct{}

func (Reader) Open(data []byte) (doc extract.PDFDocument, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	return &document{r: r, pages: r.NumPage()}, nil
}

type document struct {
	r     *pdf.Reader
	pages int
}

func (d *document) NumPages() int {
	return d.pages
}

// PageText rebuilds the page text from its glyph runs. Pages that cannot be
// decoded yield an empty string.
func (d *document) PageText(n int) (text string, err error) {
	if n < 1 || n > d.pages {
		return "", fmt.Errorf("page %d out of range 1..%d", n, d.pages)
	}

	defer func() {
		if r := recover(); r != nil {
			text, err = "", nil
		}
	}()

	page := d.r.Page(n)
	if page.V.IsNull() {
		return "", nil
	}

	return joinRuns(page.Content().Text), nil
}

// wordGap is the horizontal gap, relative to the font size, that separates
// two runs on one line into words.
const wordGap = 0.2

// joinRuns concatenates glyph runs in content order. A change of baseline
// starts a new line. Within a line a space is inserted only where the glyphs
// are visibly apart; runs of fonts without width metrics report W == 0 and
// rely on their own space glyphs.
func joinRuns(runs []pdf.Text) string {
	var b strings.Builder
	for i, run := range runs {
		if i > 0 {
			prev := runs[i-1]
			size := max(prev.FontSize, 1)
			switch {
			case math.Abs(run.Y-prev.Y) > size/2:
				b.WriteByte('\n')
			case prev.W > 0 && prev.S != " " && run.S != " " && run.X-(prev.X+prev.W) > size*wordGap:
				b.WriteByte(' ')
			}
		}
		b.WriteString(run.S)
	}
	return b.String()
}
