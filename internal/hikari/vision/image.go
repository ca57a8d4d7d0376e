// Package vision prepares user photos for the chat model's image input:
// downscaling, JPEG re-encoding, data-URL packing and token/cost estimates.
package vision

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // decoder registration
	"image/jpeg"
	_ "image/png" // decoder registration
	"math"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // decoder registration
)

// Detail levels accepted by the vision API.
const (
	DetailLow  = "low"
	DetailHigh = "high"
)

// Defaults for Options.
const (
	DefaultMaxBytes      = 10 << 20
	DefaultMaxResolution = 1024
	DefaultJPEGQuality   = 85
)

// ErrTooLarge is returned when the input exceeds the hard byte limit even
// before decoding.
var ErrTooLarge = errors.New("vision: image too large")

// Options controls Prepare.
type Options struct {
	// MaxBytes triggers a resize when the input is larger. Inputs above four
	// times this value are rejected outright.
	MaxBytes int
	// MaxResolution caps the longer edge in pixels.
	MaxResolution int
	// JPEGQuality is used whenever the image is re-encoded.
	JPEGQuality int
	// Detail is DetailLow or DetailHigh.
	Detail string
}

func (o *Options) defaults() {
	if o.MaxBytes <= 0 {
		o.MaxBytes = DefaultMaxBytes
	}
	if o.MaxResolution <= 0 {
		o.MaxResolution = DefaultMaxResolution
	}
	if o.JPEGQuality <= 0 || o.JPEGQuality > 100 {
		o.JPEGQuality = DefaultJPEGQuality
	}
	if o.Detail != DetailHigh {
		o.Detail = DetailLow
	}
}

// Prepared is an image ready for the API.
type Prepared struct {
	DataURL         string
	MIME            string
	OriginalWidth   int
	OriginalHeight  int
	Width           int
	Height          int
	OriginalBytes   int
	Bytes           int
	Resized         bool
	Detail          string
	EstimatedTokens int
}

// Prepare decodes data, downsizes it when it is too large in bytes or
// pixels, and returns a base64 data URL.
func Prepare(data []byte, opts Options) (*Prepared, error) {
	opts.defaults()
	if len(data) > 4*opts.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("vision: decode image: %w", err)
	}
	b := img.Bounds()
	p := &Prepared{
		OriginalWidth:  b.Dx(),
		OriginalHeight: b.Dy(),
		Width:          b.Dx(),
		Height:         b.Dy(),
		OriginalBytes:  len(data),
		Detail:         opts.Detail,
	}

	out := data
	mime := "image/" + format
	needsResize := len(data) > opts.MaxBytes || max(b.Dx(), b.Dy()) > opts.MaxResolution
	// The API accepts png, jpeg, gif and webp as-is; anything re-encoded becomes JPEG.
	if needsResize {
		w, h := fitWithin(b.Dx(), b.Dy(), opts.MaxResolution)
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: opts.JPEGQuality}); err != nil {
			return nil, fmt.Errorf("vision: encode jpeg: %w", err)
		}
		out = buf.Bytes()
		mime = "image/jpeg"
		p.Width, p.Height = w, h
		p.Resized = true
	}

	p.MIME = mime
	p.Bytes = len(out)
	p.DataURL = "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(out)
	p.EstimatedTokens = EstimateTokens(p.Width, p.Height, p.Detail)
	return p, nil
}

// fitWithin scales (w, h) so the longer edge equals limit, keeping the aspect
// ratio. Sizes already within the limit are returned unchanged.
func fitWithin(w, h, limit int) (int, int) {
	if max(w, h) <= limit {
		return w, h
	}
	if w >= h {
		return limit, max(1, h*limit/w)
	}
	return max(1, w*limit/h), limit
}

// EstimateTokens approximates the input tokens an image costs: a flat 85 at
// low detail, otherwise 170 per 512px tile plus 85.
func EstimateTokens(width, height int, detail string) int {
	if detail != DetailHigh {
		return 85
	}
	tiles := int(math.Ceil(float64(width)/512)) * int(math.Ceil(float64(height)/512))
	return tiles*170 + 85
}

// pricePer1K is the USD input price per 1K tokens.
var pricePer1K = map[string]float64{
	"gpt-4o":               0.0025,
	"gpt-4o-mini":          0.00015,
	"gpt-4-vision-preview": 0.01,
	"gpt-4-turbo":          0.01,
}

// EstimateCostUSD prices tokens for model; unknown models use the highest
// listed price.
func EstimateCostUSD(tokens int, model string) float64 {
	price, ok := pricePer1K[model]
	if !ok {
		price = 0.01
	}
	return float64(tokens) / 1000 * price
}

// CostNote renders the estimate shown under an image answer.
func CostNote(p *Prepared, model string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Estimated cost: ~$%.4f\n", EstimateCostUSD(p.EstimatedTokens, model))
	fmt.Fprintf(&b, "Tokens: ~%d\n", p.EstimatedTokens)
	fmt.Fprintf(&b, "Size: %dx%d", p.Width, p.Height)
	if p.Resized {
		fmt.Fprintf(&b, " (resized from %dx%d)", p.OriginalWidth, p.OriginalHeight)
	}
	if p.Detail == DetailHigh {
		b.WriteString("\nHigh detail: may cost more.")
	}
	return b.String()
}

// visionModels lists non-prefix models that accept image input.
var visionModels = []string{"gpt-4-vision-preview", "gpt-4o", "gpt-4o-mini", "gpt-4-turbo", "gpt-4.1"}

// SupportsModel reports whether model accepts image input.
func SupportsModel(model string) bool {
	if strings.HasPrefix(model, "o4-") {
		return true
	}
	for _, m := range visionModels {
		if strings.Contains(model, m) {
			return true
		}
	}
	return false
}
