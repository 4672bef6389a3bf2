// Package media decodes, bounds-checks and resizes the bitmaps carried by
// image messages.
package media

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

// Errors returned by Process.
var (
	ErrEmptyImage = errors.New("empty image data")
	ErrDecode     = errors.New("unable to decode image")
)

// Result describes a processed image.
type Result struct {
	// Data is the base64 payload to forward.
	Data string
	// Format is the decoder that recognized the original bitmap.
	Format  string
	Width   int
	Height  int
	Resized bool
}

// Processor bounds images to a maximum dimension.
type Processor struct {
	maxSize   int
	maxPixels int64
}

// NewProcessor returns a Processor whose output never exceeds maxSize
// pixels on either side. Inputs declaring more than maxPixels pixels are
// refused before their bitmap is allocated.
func NewProcessor(maxSize int, maxPixels int64) *Processor {
	return &Processor{maxSize: maxSize, maxPixels: maxPixels}
}

// Process decodes a base64 bitmap. An image larger than the bound on either
// side is scaled down so that its larger side equals the bound, keeping the
// aspect ratio, and re-encoded as base64 PNG. Smaller images are returned
// unchanged.
func (p *Processor) Process(data string) (Result, error) {
	if data == "" {
		return Result{}, ErrEmptyImage
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return Result{}, fmt.Errorf("%w: invalid base64: %v", ErrDecode, err)
	}

	// The header alone is enough to size the decoded bitmap.
	header, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := p.checkDimensions(header.Width, header.Height); err != nil {
		return Result{}, err
	}

	src, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= p.maxSize && h <= p.maxSize {
		return Result{Data: data, Format: format, Width: w, Height: h}, nil
	}

	nw, nh := fit(w, h, p.maxSize)
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return Result{}, fmt.Errorf("encode resized image: %w", err)
	}
	return Result{
		Data:    base64.StdEncoding.EncodeToString(buf.Bytes()),
		Format:  format,
		Width:   nw,
		Height:  nh,
		Resized: true,
	}, nil
}

func (p *Processor) checkDimensions(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: empty dimensions %dx%d", ErrDecode, w, h)
	}
	if int64(w) > p.maxPixels || int64(h) > p.maxPixels || int64(w)*int64(h) > p.maxPixels {
		return fmt.Errorf("%w: dimensions %dx%d exceed %d pixels", ErrDecode, w, h, p.maxPixels)
	}
	return nil
}

// fit scales (w, h) so that the larger side equals bound. The smaller side
// is rounded to the nearest pixel and never drops below one.
func fit(w, h, bound int) (int, int) {
	if w >= h {
		return bound, max(1, (h*bound+w/2)/w)
	}
	return max(1, (w*bound+h/2)/h), bound
}
