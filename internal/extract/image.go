package extract

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"

	// Decoders for the image kinds accepted by KindOf.
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// fitWithin scales w x h down to the bounds, width first and then height,
// preserving the aspect ratio. Dimensions already inside the bounds are
// returned unchanged.
func fitWithin(w, h, maxW, maxH int) (int, int) {
	width, height := float64(w), float64(h)

	if width > float64(maxW) {
		height = height * float64(maxW) / width
		width = float64(maxW)
	}
	if height > float64(maxH) {
		width = width * float64(maxH) / height
		height = float64(maxH)
	}

	return max(1, int(math.Round(width))), max(1, int(math.Round(height)))
}

// prepareImage decodes data, downscales it to the configured bounds and
// re-encodes it as PNG for the recognizer.
func prepareImage(data []byte, maxW, maxH int) ([]byte, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	b := src.Bounds()
	w, h := fitWithin(b.Dx(), b.Dy(), maxW, maxH)

	img := src
	if w != b.Dx() || h != b.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
		img = dst
	} else if format == "png" {
		return data, nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}
