package vision

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		img.Set(x, h/2, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPrepare_DownscalesLargeImages(t *testing.T) {
	p, err := Prepare(pngBytes(t, 2048, 1024), Options{MaxResolution: 1024})
	require.NoError(t, err)

	assert.True(t, p.Resized)
	assert.Equal(t, 1024, p.Width)
	assert.Equal(t, 512, p.Height)
	assert.Equal(t, 2048, p.OriginalWidth)
	assert.Equal(t, "image/jpeg", p.MIME)
	assert.Equal(t, 85, p.EstimatedTokens)

	require.True(t, strings.HasPrefix(p.DataURL, "data:image/jpeg;base64,"))
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(p.DataURL, "data:image/jpeg;base64,"))
	require.NoError(t, err)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.Width)
	assert.Equal(t, 512, cfg.Height)
}

func TestPrepare_KeepsSmallImages(t *testing.T) {
	data := pngBytes(t, 100, 50)
	p, err := Prepare(data, Options{Detail: DetailHigh})
	require.NoError(t, err)

	assert.False(t, p.Resized)
	assert.Equal(t, "image/png", p.MIME)
	assert.Equal(t, len(data), p.Bytes)
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(data), p.DataURL)
	assert.Equal(t, 255, p.EstimatedTokens)
}

func TestPrepare_ResizesByteHeavyImages(t *testing.T) {
	data := pngBytes(t, 300, 200)
	p, err := Prepare(data, Options{MaxBytes: len(data) - 1})
	require.NoError(t, err)
	assert.True(t, p.Resized)
	assert.Equal(t, 300, p.Width)
	assert.Equal(t, "image/jpeg", p.MIME)
}

func TestPrepare_Errors(t *testing.T) {
	_, err := Prepare([]byte("definitely not an image"), Options{})
	require.Error(t, err)

	_, err = Prepare(make([]byte, 41), Options{MaxBytes: 10})
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestFitWithin(t *testing.T) {
	cases := []struct{ w, h, limit, wantW, wantH int }{
		{2048, 1024, 1024, 1024, 512},
		{1000, 3000, 1024, 341, 1024},
		{800, 600, 1024, 800, 600},
		{5000, 2, 1024, 1024, 1},
	}
	for _, tc := range cases {
		w, h := fitWithin(tc.w, tc.h, tc.limit)
		assert.Equal(t, tc.wantW, w, "%dx%d", tc.w, tc.h)
		assert.Equal(t, tc.wantH, h, "%dx%d", tc.w, tc.h)
	}
}

func TestEstimateTokensAndCost(t *testing.T) {
	assert.Equal(t, 85, EstimateTokens(4000, 4000, DetailLow))
	assert.Equal(t, 2*1*170+85, EstimateTokens(1024, 512, DetailHigh))
	assert.Equal(t, 3*2*170+85, EstimateTokens(1025, 513, DetailHigh))

	assert.InDelta(t, 0.0025, EstimateCostUSD(1000, "gpt-4o"), 1e-12)
	assert.InDelta(t, 0.01, EstimateCostUSD(1000, "mystery-model"), 1e-12)
}

func TestCostNote(t *testing.T) {
	p := &Prepared{Width: 1024, Height: 512, OriginalWidth: 2048, OriginalHeight: 1024, Resized: true, Detail: DetailHigh, EstimatedTokens: 425}
	note := CostNote(p, "gpt-4o-mini")
	assert.Contains(t, note, "Tokens: ~425")
	assert.Contains(t, note, "resized from 2048x1024")
	assert.Contains(t, note, "High detail")
}

func TestSupportsModel(t *testing.T) {
	assert.True(t, SupportsModel("gpt-4o-mini"))
	assert.True(t, SupportsModel("o4-mini"))
	assert.False(t, SupportsModel("gpt-3.5-turbo"))
	assert.False(t, SupportsModel("o3-mini"))
}
