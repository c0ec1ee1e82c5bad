// Package segment adapts a pluggable segmentation backend into the mask
// contract the compositor consumes: a frame-aligned grayscale mask where 255
// means foreground. Backend failures and timeouts surface as ErrUnavailable
// so the caller can fall back to color-similarity masking.
package segment

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"

	"github.com/menta2k/idphoto/pkg/client"
	"github.com/menta2k/idphoto/pkg/processing"
	"github.com/menta2k/idphoto/pkg/types"
)

// ErrUnavailable reports that no usable mask could be obtained. It is an
// expected condition, not a pipeline failure.
var ErrUnavailable = errors.New("segmentation unavailable")

// DefaultTimeout bounds the wait for a backend answer. The pipeline never
// proceeds with a stale or partial mask, so slow answers count as absent.
const DefaultTimeout = 5 * time.Second

// DefaultMinConfidence rejects backend answers below this confidence.
const DefaultMinConfidence = 0.2

// Config holds adapter tuning.
type Config struct {
	Model         string
	Timeout       time.Duration
	MinConfidence float64

	// SendMaxDim downscales the image before submitting it to the backend;
	// the returned mask is rescaled to the frame. Zero disables.
	SendMaxDim int
}

// DefaultConfig returns the adapter defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:       DefaultTimeout,
		MinConfidence: DefaultMinConfidence,
		SendMaxDim:    768,
	}
}

// Adapter wraps a SegmentClient.
type Adapter struct {
	client    client.SegmentClient
	processor *processing.Processor
	config    Config
}

// New creates an adapter with default configuration.
func New(c client.SegmentClient) *Adapter {
	return NewWithConfig(c, DefaultConfig())
}

// NewWithConfig creates an adapter with custom configuration.
func NewWithConfig(c client.SegmentClient, config Config) *Adapter {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &Adapter{
		client:    c,
		processor: processing.NewProcessor(),
		config:    config,
	}
}

// Segment submits the frame raster to the backend and returns a mask of the
// same dimensions, 255 = keep original pixel. Any backend error, timeout,
// missing client or low-confidence answer yields ErrUnavailable.
func (a *Adapter) Segment(ctx context.Context, frame image.Image) (*image.Gray, error) {
	if a == nil || a.client == nil {
		return nil, ErrUnavailable
	}
	b := frame.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrUnavailable)
	}

	imgB64, err := a.processor.PrepareImageForModel(frame, "jpg", a.config.SendMaxDim, 90)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	result, err := a.client.SegmentSubject(ctx, a.config.Model, imgB64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if result == nil || result.Confidence < a.config.MinConfidence {
		return nil, ErrUnavailable
	}

	switch {
	case len(result.MaskPNG) > 0:
		return a.maskFromPNG(result, w, h)
	case len(result.Outline) >= 3:
		return maskFromOutline(result.Outline, w, h), nil
	default:
		return nil, ErrUnavailable
	}
}

// maskFromPNG decodes a matte and aligns it to the frame resolution.
func (a *Adapter) maskFromPNG(result *types.SegmentResult, w, h int) (*image.Gray, error) {
	img, err := a.processor.DecodeBytes(result.MaskPNG)
	if err != nil {
		return nil, fmt.Errorf("%w: bad matte: %v", ErrUnavailable, err)
	}

	resized := imaging.Resize(img, w, h, imaging.Lanczos)
	mask := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		si := y * resized.Stride
		di := y * mask.Stride
		for x := 0; x < w; x++ {
			v := resized.Pix[si+x*4] // matte is grayscale, take R
			if result.Inverted {
				v = 255 - v
			}
			mask.Pix[di+x] = v
		}
	}
	return mask, nil
}

// maskFromOutline rasterizes a normalized closed polygon with an even-odd
// scanline fill. The hard edge is acceptable: the compositor feathers every
// mask before blending.
func maskFromOutline(outline []types.Point, w, h int) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, w, h))

	n := len(outline)
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, p := range outline {
		xs[i] = types.Clamp(p.X, 0, 1) * float64(w)
		ys[i] = types.Clamp(p.Y, 0, 1) * float64(h)
	}

	for y := 0; y < h; y++ {
		cy := float64(y) + 0.5
		var crossings []float64
		for i := 0; i < n; i++ {
			j := (i + 1) % n
			y0, y1 := ys[i], ys[j]
			if (y0 <= cy && y1 > cy) || (y1 <= cy && y0 > cy) {
				t := (cy - y0) / (y1 - y0)
				crossings = append(crossings, xs[i]+t*(xs[j]-xs[i]))
			}
		}
		if len(crossings) < 2 {
			continue
		}
		sortFloats(crossings)
		row := y * mask.Stride
		for k := 0; k+1 < len(crossings); k += 2 {
			x0 := int(crossings[k] + 0.5)
			x1 := int(crossings[k+1] + 0.5)
			if x0 < 0 {
				x0 = 0
			}
			if x1 > w {
				x1 = w
			}
			for x := x0; x < x1; x++ {
				mask.Pix[row+x] = 255
			}
		}
	}
	return mask
}

// sortFloats is an insertion sort; crossing lists are tiny.
func sortFloats(v []float64) {
	for i := 1; i < len(v); i++ {
		for j := i; j > 0 && v[j] < v[j-1]; j-- {
			v[j], v[j-1] = v[j-1], v[j]
		}
	}
}
