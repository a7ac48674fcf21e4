// Package extract turns uploaded documents into normalized plain text. PDFs are
// read through their text layer when it carries enough meaningful characters
// and fall back to OCR of the first pages otherwise. DOCX files are read raw,
// images are downscaled and recognized, plain text is read directly. Results
// are cached by content identity.
package extract

import (
	"context"
	"errors"
)

// OperationName is the cache operation under which extracted text is stored.
const OperationName = "text-extraction"

const (
	DefaultMaxFileSize    = 15 * 1024 * 1024
	DefaultMinTextLength  = 200
	DefaultProbePages     = 3
	DefaultMaxOCRPages    = 2
	DefaultRenderScale    = 1.5
	DefaultMaxImageWidth  = 1200
	DefaultMaxImageHeight = 1600
)

var (
	ErrFileTooLarge      = errors.New("file is too large")
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// Method records how the text of a file was obtained.
type Method string

const (
	MethodTextLayer  Method = "text-layer"
	MethodOCR        Method = "ocr"
	MethodDirectRead Method = "direct-read"
)

// File is an uploaded document. It is never modified by the engine.
type File struct {
	Name      string
	Size      int64
	MediaType string
	Data      []byte
}

func (f File) size() int64 {
	if f.Size > 0 {
		return f.Size
	}
	return int64(len(f.Data))
}

// Result is the outcome of a successful extraction.
type Result struct {
	SourceFile string
	Text       string
	Method     Method
	Warnings   []string
	// Cached is set when the text came from the cache.
	Cached bool
}

// ProgressFunc receives human readable progress messages. It may be nil.
type ProgressFunc func(message string)

func (p ProgressFunc) report(message string) {
	if p != nil {
		p(message)
	}
}

// PDFReader opens a PDF for text layer access.
type PDFReader interface {
	Open(data []byte) (PDFDocument, error)
}

// PDFDocument gives access to the text layer of an opened PDF. Pages are
// numbered from 1.
type PDFDocument interface {
	NumPages() int
	PageText(page int) (string, error)
}

// Rasterizer renders a single PDF page to an encoded image.
type Rasterizer interface {
	Render(ctx context.Context, data []byte, page int, scale float64) ([]byte, error)
}

// Recognizer runs optical character recognition over an encoded image.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// DocxReader returns the raw text of a DOCX document.
type DocxReader interface {
	Text(data []byte) (string, error)
}

// Options tunes the extraction cascade. Zero values select the defaults.
type Options struct {
	MaxFileSize    int64   `mapstructure:"max-file-size"`
	MinTextLength  int     `mapstructure:"min-text-length"`
	ProbePages     int     `mapstructure:"probe-pages"`
	MaxOCRPages    int     `mapstructure:"max-ocr-pages"`
	RenderScale    float64 `mapstructure:"render-scale"`
	MaxImageWidth  int     `mapstructure:"max-image-width"`
	MaxImageHeight int     `mapstructure:"max-image-height"`
}

func (o Options) withDefaults() Options {
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = DefaultMaxFileSize
	}
	if o.MinTextLength <= 0 {
		o.MinTextLength = DefaultMinTextLength
	}
	if o.ProbePages <= 0 {
		o.ProbePages = DefaultProbePages
	}
	if o.MaxOCRPages <= 0 {
		o.MaxOCRPages = DefaultMaxOCRPages
	}
	if o.RenderScale <= 0 {
		o.RenderScale = DefaultRenderScale
	}
	if o.MaxImageWidth <= 0 {
		o.MaxImageWidth = DefaultMaxImageWidth
	}
	if o.MaxImageHeight <= 0 {
		o.MaxImageHeight = DefaultMaxImageHeight
	}
	return o
}
