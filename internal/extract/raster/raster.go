// Package raster renders PDF pages to PNG with poppler's pdftoppm.
package raster

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/TechFutureAIFPT/hr-support/internal/extract"
)

// pointsPerInch is the PDF user space resolution; scale 1 renders at 72 DPI.
const pointsPerInch = 72

var _ extract.Rasterizer = (*Pdftoppm)(nil)

// Pdftoppm shells out to the pdftoppm binary.
type Pdftoppm struct {
	// Binary defaults to "pdftoppm" on PATH.
	Binary string
}

func New(binary string) *Pdftoppm {
	if strings.TrimSpace(binary) == "" {
		binary = "pdftoppm"
	}
	return &Pdftoppm{Binary: binary}
}

// Available reports whether the binary can be found.
func (p *Pdftoppm) Available() bool {
	_, err := exec.LookPath(p.Binary)
	return err == nil
}

func (p *Pdftoppm) Render(ctx context.Context, data []byte, page int, scale float64) ([]byte, error) {
	dir, err := os.MkdirTemp("", "hr-support-raster-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "in.pdf")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, fmt.Errorf("write temp pdf: %w", err)
	}

	out := filepath.Join(dir, "page")
	cmd := exec.CommandContext(ctx, p.Binary, Args(in, out, page, scale)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s page %d: %w: %s", p.Binary, page, err, strings.TrimSpace(stderr.String()))
	}

	img, err := os.ReadFile(out + ".png")
	if err != nil {
		return nil, fmt.Errorf("read rendered page %d: %w", page, err)
	}
	return img, nil
}

// Args builds the pdftoppm command line for a single page.
func Args(in, outRoot string, page int, scale float64) []string {
	dpi := int(math.Round(scale * pointsPerInch))
	p := strconv.Itoa(page)
	return []string{"-f", p, "-l", p, "-r", strconv.Itoa(dpi), "-png", "-singlefile", in, outRoot}
}
