package media

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/gischat/internal/testhelpers"
)

const testMaxPixels = 40_000_000

func encodedPNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: uint8(x), G: 128, B: 64, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func encodedJPEG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func decodedSize(t *testing.T, data string) (int, int) {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(data)
	require.NoError(t, err)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func TestProcessResizesLandscape(t *testing.T) {
	p := NewProcessor(800, testMaxPixels)

	res, err := p.Process(encodedJPEG(t, 1200, 800))
	require.NoError(t, err)

	assert.True(t, res.Resized)
	assert.Equal(t, "jpeg", res.Format)
	w, h := decodedSize(t, res.Data)
	assert.Equal(t, 800, w)
	assert.Equal(t, 533, h)
	assert.Equal(t, w, res.Width)
	assert.Equal(t, h, res.Height)
}

func TestProcessResizesPortrait(t *testing.T) {
	p := NewProcessor(100, testMaxPixels)

	res, err := p.Process(encodedPNG(t, 50, 400))
	require.NoError(t, err)

	w, h := decodedSize(t, res.Data)
	assert.Equal(t, 100, h)
	assert.Equal(t, 13, w)
}

func TestProcessKeepsSmallImages(t *testing.T) {
	p := NewProcessor(800, testMaxPixels)
	data := encodedPNG(t, 640, 480)

	res, err := p.Process(data)
	require.NoError(t, err)

	assert.False(t, res.Resized)
	assert.Equal(t, data, res.Data)
	assert.Equal(t, 640, res.Width)
}

func TestProcessIsDeterministic(t *testing.T) {
	p := NewProcessor(64, testMaxPixels)
	data := encodedPNG(t, 300, 200)

	first, err := p.Process(data)
	require.NoError(t, err)
	second, err := p.Process(data)
	require.NoError(t, err)

	assert.Equal(t, first.Data, second.Data)
}

func TestProcessDecodeFailures(t *testing.T) {
	p := NewProcessor(800, testMaxPixels)

	_, err := p.Process("")
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = p.Process("not base64 !!")
	assert.ErrorIs(t, err, ErrDecode)

	_, err = p.Process(base64.StdEncoding.EncodeToString([]byte("definitely not a bitmap")))
	assert.ErrorIs(t, err, ErrDecode)
}

func TestProcessRefusesOversizedDeclaredDimensions(t *testing.T) {
	p := NewProcessor(800, testMaxPixels)

	tests := []struct {
		name string
		w, h uint32
	}{
		{name: "huge both sides", w: 1 << 20, h: 1 << 20},
		{name: "wide strip", w: 50_000_000, h: 1},
		{name: "area above bound", w: 8000, h: 8000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := base64.StdEncoding.EncodeToString(testhelpers.DeclaredSizePNG(tt.w, tt.h))
			_, err := p.Process(payload)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrDecode)
			assert.Contains(t, err.Error(), "exceed")
		})
	}
}

func TestProcessPixelBoundIsConfigurable(t *testing.T) {
	p := NewProcessor(800, 100*100)

	_, err := p.Process(encodedPNG(t, 100, 100))
	assert.NoError(t, err)

	_, err = p.Process(encodedPNG(t, 101, 100))
	assert.ErrorIs(t, err, ErrDecode)
}

func TestFit(t *testing.T) {
	tests := []struct {
		w, h, bound  int
		wantW, wantH int
	}{
		{1200, 800, 800, 800, 533},
		{800, 1200, 800, 533, 800},
		{1000, 1000, 800, 800, 800},
		{10000, 1, 800, 800, 1},
		{3, 2, 2, 2, 1},
	}
	for _, tt := range tests {
		w, h := fit(tt.w, tt.h, tt.bound)
		assert.Equal(t, tt.wantW, w, "width for %dx%d", tt.w, tt.h)
		assert.Equal(t, tt.wantH, h, "height for %dx%d", tt.w, tt.h)
	}
}
