package extract

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/TechFutureAIFPT/hr-support/internal/cache"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakePDF struct {
	pages []string
	opens int
	reads int
}

func (f *fakePDF) Open([]byte) (PDFDocument, error) {
	f.opens++
	return f, nil
}

func (f *fakePDF) NumPages() int { return len(f.pages) }

func (f *fakePDF) PageText(page int) (string, error) {
	f.reads++
	return f.pages[page-1], nil
}

type fakeRasterizer struct {
	calls  []int
	scales []float64
	err    error
}

func (f *fakeRasterizer) Render(_ context.Context, _ []byte, page int, scale float64) ([]byte, error) {
	f.calls = append(f.calls, page)
	f.scales = append(f.scales, scale)
	if f.err != nil {
		return nil, f.err
	}
	return []byte{byte(page)}, nil
}

type fakeRecognizer struct {
	text  string
	err   error
	calls int
	last  []byte
}

func (f *fakeRecognizer) Recognize(_ context.Context, img []byte) (string, error) {
	f.calls++
	f.last = img
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type fakeDocx struct{ text string }

func (f fakeDocx) Text([]byte) (string, error) { return f.text, nil }

func newTestEngine(pdf *fakePDF, r *fakeRasterizer, ocr *fakeRecognizer, store *cache.Store, log *zap.Logger) *Engine {
	return New(Options{}, Deps{
		PDF:        pdf,
		Rasterizer: r,
		Recognizer: ocr,
		Docx:       fakeDocx{text: "docx   body\r\n\r\n\r\n\r\nend"},
		Cache:      store,
		Logger:     log,
	})
}

func pdfFile(data string) File {
	return File{Name: "cv.pdf", Size: int64(len(data)), MediaType: "application/pdf", Data: []byte(data)}
}

func TestExtractRejectsOversizedFile(t *testing.T) {
	pdf := &fakePDF{pages: []string{"x"}}
	store := cache.New(0)
	engine := newTestEngine(pdf, &fakeRasterizer{}, &fakeRecognizer{}, store, nil)

	f := pdfFile("tiny")
	f.Size = DefaultMaxFileSize + 1

	_, err := engine.Extract(context.Background(), f, nil)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
	if pdf.opens != 0 {
		t.Fatalf("expected no reads, got %d opens", pdf.opens)
	}
	if store.Len() != 0 {
		t.Fatalf("expected no cache entries, got %d", store.Len())
	}
}

func TestExtractUnsupportedFormat(t *testing.T) {
	engine := newTestEngine(&fakePDF{}, &fakeRasterizer{}, &fakeRecognizer{}, cache.New(0), nil)

	_, err := engine.Extract(context.Background(), File{Name: "cv.odt", Data: []byte("x")}, nil)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestExtractCacheHitDoesNoWork(t *testing.T) {
	pdf := &fakePDF{pages: []string{strings.Repeat("a", 300), "second page"}}
	engine := newTestEngine(pdf, &fakeRasterizer{}, &fakeRecognizer{}, cache.New(0), nil)

	first, err := engine.Extract(context.Background(), pdfFile("same bytes"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Cached {
		t.Fatal("first extraction must not be cached")
	}

	opens, reads := pdf.opens, pdf.reads

	var messages []string
	second, err := engine.Extract(context.Background(), pdfFile("same bytes"), func(m string) { messages = append(messages, m) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.Cached || second.Text != first.Text || second.Method != MethodTextLayer {
		t.Fatalf("unexpected cached result: %+v", second)
	}
	if pdf.opens != opens || pdf.reads != reads {
		t.Fatalf("cache hit performed work: opens %d->%d reads %d->%d", opens, pdf.opens, reads, pdf.reads)
	}
	if len(messages) != 1 || messages[0] != "loading from cache" {
		t.Fatalf("unexpected progress: %v", messages)
	}
}

func TestExtractPDFThreshold(t *testing.T) {
	tests := []struct {
		name       string
		length     int
		wantMethod Method
	}{
		{name: "one below threshold", length: DefaultMinTextLength - 1, wantMethod: MethodOCR},
		{name: "at threshold", length: DefaultMinTextLength, wantMethod: MethodTextLayer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Symbols do not count towards the threshold.
			page := strings.Repeat("a", tt.length) + " ***---!!!"
			pdf := &fakePDF{pages: []string{page, "", "", "page four"}}
			raster := &fakeRasterizer{}
			ocr := &fakeRecognizer{text: "recognized"}
			engine := newTestEngine(pdf, raster, ocr, nil, nil)

			res, err := engine.Extract(context.Background(), pdfFile(tt.name), nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Method != tt.wantMethod {
				t.Fatalf("expected method %s, got %s", tt.wantMethod, res.Method)
			}

			switch tt.wantMethod {
			case MethodTextLayer:
				if !strings.Contains(res.Text, "page four") {
					t.Fatalf("expected pages after the probe to be read, got %q", res.Text)
				}
				if len(raster.calls) != 0 {
					t.Fatalf("expected no rasterization, got %v", raster.calls)
				}
			case MethodOCR:
				if len(raster.calls) != DefaultMaxOCRPages {
					t.Fatalf("expected %d rendered pages, got %v", DefaultMaxOCRPages, raster.calls)
				}
				if raster.scales[0] != DefaultRenderScale {
					t.Fatalf("expected render scale %v, got %v", DefaultRenderScale, raster.scales[0])
				}
				if res.Text != "recognized\n\nrecognized" {
					t.Fatalf("unexpected OCR text %q", res.Text)
				}
			}
		})
	}
}

func TestExtractPDFRecognitionFailureDegrades(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	pdf := &fakePDF{pages: []string{"scan"}}
	ocr := &fakeRecognizer{err: errors.New("tesseract crashed")}
	store := cache.New(0)
	engine := newTestEngine(pdf, &fakeRasterizer{}, ocr, store, zap.New(core))

	var messages []string
	res, err := engine.Extract(context.Background(), pdfFile("scan"), func(m string) { messages = append(messages, m) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "" || res.Method != MethodOCR {
		t.Fatalf("expected empty OCR result, got %+v", res)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "tesseract crashed") {
		t.Fatalf("expected a warning, got %v", res.Warnings)
	}
	if logs.FilterMessage("OCR failed, returning empty text").Len() != 1 {
		t.Fatalf("expected a warn log, got %v", logs.All())
	}
	if !contains(messages, "OCR page 1/1") {
		t.Fatalf("expected per page progress, got %v", messages)
	}
}

func TestExtractPDFRasterizerFailureIsFatal(t *testing.T) {
	pdf := &fakePDF{pages: []string{"scan"}}
	store := cache.New(0)
	engine := newTestEngine(pdf, &fakeRasterizer{err: errors.New("pdftoppm missing")}, &fakeRecognizer{}, store, nil)

	if _, err := engine.Extract(context.Background(), pdfFile("scan"), nil); err == nil {
		t.Fatal("expected error")
	}
	if store.Len() != 0 {
		t.Fatalf("failed extraction must not be cached, got %d entries", store.Len())
	}
}

func TestExtractDocxAndText(t *testing.T) {
	engine := newTestEngine(&fakePDF{}, &fakeRasterizer{}, &fakeRecognizer{}, nil, nil)

	res, err := engine.Extract(context.Background(), File{Name: "cv.docx", Data: []byte("zip")}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "docx body\n\nend" || res.Method != MethodDirectRead {
		t.Fatalf("unexpected docx result %+v", res)
	}

	res, err = engine.Extract(context.Background(), File{Name: "notes", MediaType: "text/plain; charset=utf-8", Data: []byte("  hello\tworld  ")}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "hello\tworld" {
		t.Fatalf("unexpected text result %q", res.Text)
	}
}

func TestExtractImageDownscales(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2400, 1000))
	src.Set(0, 0, color.White)
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("encode: %v", err)
	}

	ocr := &fakeRecognizer{text: "image text"}
	engine := newTestEngine(&fakePDF{}, &fakeRasterizer{}, ocr, nil, nil)

	res, err := engine.Extract(context.Background(), File{Name: "scan.png", MediaType: "image/png", Data: buf.Bytes()}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "image text" || res.Method != MethodOCR {
		t.Fatalf("unexpected result %+v", res)
	}

	cfg, err := png.DecodeConfig(bytes.NewReader(ocr.last))
	if err != nil {
		t.Fatalf("decode recognizer input: %v", err)
	}
	if cfg.Width != 1200 || cfg.Height != 500 {
		t.Fatalf("expected 1200x500, got %dx%d", cfg.Width, cfg.Height)
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
