package pdfdoc

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/ledongthuc/pdf"

	"github.com/TechFutureAIFPT/hr-support/internal/extract"
)

// singlePagePDF renders lines with Helvetica, one Td step per line.
func singlePagePDF(lines ...string) []byte {
	var content strings.Builder
	content.WriteString("BT /F1 12 Tf 72 720 Td")
	for i, line := range lines {
		if i > 0 {
			content.WriteString(" 0 -20 Td")
		}
		fmt.Fprintf(&content, " (%s) Tj", line)
	}
	content.WriteString(" ET")
	stream := content.String()

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestOpenRejectsGarbage(t *testing.T) {
	if _, err := (Reader{}).Open([]byte("definitely not a pdf")); err == nil {
		t.Fatal("expected error for non-pdf input")
	}
}

func TestPageTextKeepsWordsIntact(t *testing.T) {
	doc, err := (Reader{}).Open(singlePagePDF("Senior Go Engineer", "Hanoi"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if doc.NumPages() != 1 {
		t.Fatalf("expected 1 page, got %d", doc.NumPages())
	}

	text, err := doc.PageText(1)
	if err != nil {
		t.Fatalf("page text: %v", err)
	}
	if text != "Senior Go Engineer\nHanoi" {
		t.Fatalf("unexpected text %q", text)
	}

	want := extract.MeaningfulLength("Senior Go Engineer Hanoi")
	if got := extract.MeaningfulLength(text); got != want {
		t.Fatalf("expected meaningful length %d, got %d", want, got)
	}
}

func TestPageTextOutOfRange(t *testing.T) {
	doc, err := (Reader{}).Open(singlePagePDF("x"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := doc.PageText(2); err == nil {
		t.Fatal("expected error for page 2")
	}
}

func TestJoinRunsWithMetrics(t *testing.T) {
	glyphs := func(s string, x, y float64) []pdf.Text {
		var out []pdf.Text
		for _, r := range s {
			out = append(out, pdf.Text{FontSize: 10, X: x, Y: y, W: 5, S: string(r)})
			x += 5
		}
		return out
	}

	var runs []pdf.Text
	runs = append(runs, glyphs("Go", 0, 100)...)
	// Separate show operation further right on the same baseline.
	runs = append(runs, glyphs("Dev", 20, 100)...)
	runs = append(runs, glyphs("Hue", 0, 80)...)

	if got := joinRuns(runs); got != "Go Dev\nHue" {
		t.Fatalf("unexpected text %q", got)
	}
	if got := joinRuns(nil); got != "" {
		t.Fatalf("expected empty text, got %q", got)
	}
}
