// Package scaler produces the exact physical pixel size of a photo format at
// the print DPI. The frame stage already guaranteed correct composition, so
// aspect-ratio drift is corrected by independent X/Y stretch rather than by
// cropping or letterboxing.
package scaler

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/idphoto/pkg/formats"
)

// AspectEpsilon is the relative aspect drift below which a uniform resize is
// considered exact.
const AspectEpsilon = 0.01

// Scaler rescales composited frames to output dimensions.
type Scaler struct{}

// New creates a scaler.
func New() *Scaler {
	return &Scaler{}
}

// ScaleToFormat rescales the raster to the format's exact printed pixel
// size (widthMM * 300/25.4 per axis, rounded once).
func (s *Scaler) ScaleToFormat(img image.Image, format formats.PhotoFormat) (*image.NRGBA, error) {
	if format.WidthMM <= 0 || format.HeightMM <= 0 {
		return nil, fmt.Errorf("degenerate format dimensions %.1fx%.1fmm", format.WidthMM, format.HeightMM)
	}
	w, h := format.PixelSize()
	return s.Scale(img, w, h)
}

// Scale resizes the raster to exactly targetW x targetH pixels. When the
// input aspect ratio already matches within AspectEpsilon the stretch is
// uniform in effect; otherwise the axes scale independently to force an
// exact match.
func (s *Scaler) Scale(img image.Image, targetW, targetH int) (*image.NRGBA, error) {
	if targetW <= 0 || targetH <= 0 {
		return nil, fmt.Errorf("degenerate target size %dx%d", targetW, targetH)
	}
	b := img.Bounds()
	srcW, srcH := b.Dx(), b.Dy()
	if srcW <= 0 || srcH <= 0 {
		return nil, fmt.Errorf("degenerate source size %dx%d", srcW, srcH)
	}

	if srcW == targetW && srcH == targetH {
		return imaging.Clone(img), nil
	}

	// Setting both dimensions scales the axes independently, so upstream
	// aspect drift beyond AspectEpsilon is stretched out rather than cropped,
	// and the integer target can never be off by one.
	return imaging.Resize(img, targetW, targetH, imaging.Lanczos), nil
}

// AspectDrift returns the relative difference between the raster's aspect
// ratio and the target's. Values above AspectEpsilon mean the scale step
// will stretch non-uniformly.
func AspectDrift(img image.Image, targetW, targetH int) float64 {
	b := img.Bounds()
	if b.Dy() <= 0 || targetH <= 0 || targetW <= 0 {
		return 0
	}
	srcRatio := float64(b.Dx()) / float64(b.Dy())
	dstRatio := float64(targetW) / float64(targetH)
	return math.Abs(srcRatio-dstRatio) / dstRatio
}
