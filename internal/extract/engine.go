package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/TechFutureAIFPT/hr-support/internal/cache"
	"github.com/TechFutureAIFPT/hr-support/internal/logger"
	"github.com/TechFutureAIFPT/hr-support/internal/metrics"
	"go.uber.org/zap"
)

// Cache is the subset of the content-addressed store used by the engine.
type Cache interface {
	Get(key cache.Key) (cache.Entry, bool)
	Put(key cache.Key, value, method string)
}

// Deps are the collaborators of the engine. Readers that are left nil make
// the matching kinds fail; a nil Cache disables caching.
type Deps struct {
	PDF        PDFReader
	Rasterizer Rasterizer
	Recognizer Recognizer
	Docx       DocxReader
	Cache      Cache
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Engine runs the extraction cascade.
type Engine struct {
	opts Options
	deps Deps
	log  *zap.Logger
}

func New(opts Options, deps Deps) *Engine {
	return &Engine{
		opts: opts.withDefaults(),
		deps: deps,
		log:  logger.Named(deps.Logger, "extract"),
	}
}

// Options returns the effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// Extract returns the normalized text of f. Oversized files fail with
// ErrFileTooLarge and unknown kinds with ErrUnsupportedFormat; neither touches
// the cache. A cached result is returned without any reading or recognition.
func (e *Engine) Extract(ctx context.Context, f File, progress ProgressFunc) (*Result, error) {
	log := e.log.With(zap.String(logger.FieldFile, f.Name))

	if size := f.size(); size > e.opts.MaxFileSize {
		return nil, fmt.Errorf("%s: %w (%d bytes, limit %d MB)", f.Name, ErrFileTooLarge, size, e.opts.MaxFileSize/(1024*1024))
	}

	kind := KindOf(f.Name, f.MediaType)
	if kind == KindUnknown {
		return nil, fmt.Errorf("%s: %w (media type %q)", f.Name, ErrUnsupportedFormat, f.MediaType)
	}

	key := cache.KeyFor(cache.Identity{
		Name:      f.Name,
		Size:      f.size(),
		MediaType: f.MediaType,
		Digest:    cache.Digest(f.Data),
	}, OperationName)

	if e.deps.Cache != nil {
		if entry, ok := e.deps.Cache.Get(key); ok && entry.Value != "" {
			e.deps.Metrics.CacheHit()
			progress.report("loading from cache")
			log.Debug("extraction cache hit", zap.String("method", entry.Method))
			return &Result{SourceFile: f.Name, Text: entry.Value, Method: Method(entry.Method), Cached: true}, nil
		}
		e.deps.Metrics.CacheMiss()
	}

	started := time.Now()
	res, err := e.extract(ctx, f, kind, progress)
	if err != nil {
		e.deps.Metrics.ObserveExtraction(kind.String(), err, time.Since(started))
		return nil, fmt.Errorf("processing %s: %w", f.Name, err)
	}

	res.SourceFile = f.Name
	res.Text = Normalize(res.Text)
	e.deps.Metrics.ObserveExtraction(string(res.Method), nil, time.Since(started))

	if e.deps.Cache != nil {
		e.deps.Cache.Put(key, res.Text, string(res.Method))
	}

	log.Debug("extracted text",
		zap.String("method", string(res.Method)),
		zap.Int("length", len(res.Text)),
		zap.Int("warnings", len(res.Warnings)),
		zap.Duration("duration", time.Since(started)),
	)

	return res, nil
}

func (e *Engine) extract(ctx context.Context, f File, kind Kind, progress ProgressFunc) (*Result, error) {
	switch kind {
	case KindPDF:
		return e.extractPDF(ctx, f, progress)
	case KindDOCX:
		return e.extractDOCX(f, progress)
	case KindImage:
		return e.extractImage(ctx, f, progress)
	case KindText:
		progress.report("read text file")
		return &Result{Text: string(f.Data), Method: MethodDirectRead}, nil
	default:
		return nil, ErrUnsupportedFormat
	}
}

func (e *Engine) extractPDF(ctx context.Context, f File, progress ProgressFunc) (*Result, error) {
	if e.deps.PDF == nil {
		return nil, errors.New("pdf reader is not configured")
	}

	progress.report("reading PDF")

	doc, err := e.deps.PDF.Open(f.Data)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	pages := doc.NumPages()
	probe := min(e.opts.ProbePages, pages)

	var text strings.Builder
	for i := 1; i <= probe; i++ {
		if err := readPage(&text, doc, i); err != nil {
			return nil, err
		}
	}

	if MeaningfulLength(text.String()) >= e.opts.MinTextLength {
		for i := probe + 1; i <= pages; i++ {
			if err := readPage(&text, doc, i); err != nil {
				return nil, err
			}
		}
		progress.report("extracted text layer from PDF")
		return &Result{Text: text.String(), Method: MethodTextLayer}, nil
	}

	return e.ocrPDF(ctx, f, pages, progress)
}

func readPage(b *strings.Builder, doc PDFDocument, page int) error {
	text, err := doc.PageText(page)
	if err != nil {
		return fmt.Errorf("read pdf page %d: %w", page, err)
	}
	b.WriteString(text)
	b.WriteString("\n")
	return nil
}

func (e *Engine) ocrPDF(ctx context.Context, f File, pages int, progress ProgressFunc) (*Result, error) {
	if e.deps.Rasterizer == nil {
		return nil, errors.New("pdf rasterizer is not configured")
	}

	progress.report("PDF looks scanned, running OCR")

	res := &Result{Method: MethodOCR}
	total := min(e.opts.MaxOCRPages, pages)

	var text strings.Builder
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		progress.report(fmt.Sprintf("OCR page %d/%d", i, total))

		img, err := e.deps.Rasterizer.Render(ctx, f.Data, i, e.opts.RenderScale)
		if err != nil {
			return nil, fmt.Errorf("render pdf page %d: %w", i, err)
		}

		pageText, warning := e.recognize(ctx, img, f.Name)
		if warning != "" {
			res.Warnings = append(res.Warnings, fmt.Sprintf("page %d: %s", i, warning))
		}
		text.WriteString(pageText)
		text.WriteString("\n\n")
	}

	progress.report("OCR finished")
	res.Text = text.String()
	return res, nil
}

func (e *Engine) extractDOCX(f File, progress ProgressFunc) (*Result, error) {
	if e.deps.Docx == nil {
		return nil, errors.New("docx reader is not configured")
	}

	progress.report("reading DOCX")

	text, err := e.deps.Docx.Text(f.Data)
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}

	progress.report("read DOCX")
	return &Result{Text: text, Method: MethodDirectRead}, nil
}

func (e *Engine) extractImage(ctx context.Context, f File, progress ProgressFunc) (*Result, error) {
	progress.report("running OCR on image")

	img, err := prepareImage(f.Data, e.opts.MaxImageWidth, e.opts.MaxImageHeight)
	if err != nil {
		return nil, err
	}

	res := &Result{Method: MethodOCR}
	text, warning := e.recognize(ctx, img, f.Name)
	if warning != "" {
		res.Warnings = append(res.Warnings, warning)
	}
	res.Text = text

	progress.report("OCR finished")
	return res, nil
}

// recognize never fails: recognition errors degrade to empty text and a
// warning.
func (e *Engine) recognize(ctx context.Context, img []byte, name string) (string, string) {
	if e.deps.Recognizer == nil {
		e.log.Warn("OCR is not configured, returning empty text", zap.String(logger.FieldFile, name))
		return "", "ocr is not configured"
	}

	text, err := e.deps.Recognizer.Recognize(ctx, img)
	if err != nil {
		e.log.Warn("OCR failed, returning empty text", zap.String(logger.FieldFile, name), zap.Error(err))
		return "", "ocr failed: " + err.Error()
	}
	return text, ""
}
