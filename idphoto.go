// Package idphoto produces standardized identification photographs from an
// arbitrary source photo: passport, visa and ID-card formats with a clean
// solid background at exact print dimensions, plus print-sheet layout.
//
// Basic usage:
//
//	package main
//
//	import (
//		"image/color"
//		"log"
//
//		"github.com/menta2k/idphoto"
//		"github.com/menta2k/idphoto/pkg/formats"
//		"github.com/menta2k/idphoto/pkg/types"
//	)
//
//	func main() {
//		studio := idphoto.New()
//
//		src, err := studio.LoadImage("portrait.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		white := color.NRGBA{255, 255, 255, 255}
//		photo, err := studio.Process(src, formats.Passport, types.Identity(), white)
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		if err := studio.SavePhoto(photo, "passport.jpg"); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// The pipeline is a synchronous pure function of its inputs: the edit state
// is rendered into a fixed-aspect frame, the person is segmented from the
// background (falling back to color-similarity masking when no segmentation
// backend is available), the background is replaced with the target color,
// and the composite is rescaled to the format's exact millimeter size at
// 300 DPI. The crop the caller previews is pixel-for-pixel the crop that is
// exported.
package idphoto

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/menta2k/idphoto/pkg/client"
	"github.com/menta2k/idphoto/pkg/compositor"
	"github.com/menta2k/idphoto/pkg/formats"
	"github.com/menta2k/idphoto/pkg/frame"
	"github.com/menta2k/idphoto/pkg/processing"
	"github.com/menta2k/idphoto/pkg/scaler"
	"github.com/menta2k/idphoto/pkg/segment"
	"github.com/menta2k/idphoto/pkg/types"
)

// Version of the idphoto library
const Version = "1.0.0"

// ErrInvalidSource reports a zero-area or undecodable source image.
var ErrInvalidSource = errors.New("invalid source image")

// Studio is the high-level entry point tying the pipeline stages together.
type Studio struct {
	processor  *processing.Processor
	renderer   *frame.Renderer
	compositor *compositor.Compositor
	scaler     *scaler.Scaler
	segmenter  *segment.Adapter
}

// New creates a Studio without a segmentation backend; background
// replacement relies on color-similarity masking.
func New() *Studio {
	return &Studio{
		processor:  processing.NewProcessor(),
		renderer:   frame.NewRenderer(),
		compositor: compositor.New(),
		scaler:     scaler.New(),
	}
}

// NewWithSegmenter creates a Studio backed by a segmentation client.
func NewWithSegmenter(c client.SegmentClient, segConfig segment.Config) *Studio {
	s := New()
	s.segmenter = segment.NewWithConfig(c, segConfig)
	return s
}

// NewWithConfig creates a Studio with custom compositor tuning and an
// optional segmentation adapter (nil disables segmentation).
func NewWithConfig(compositorConfig compositor.Config, segmenter *segment.Adapter) *Studio {
	s := New()
	s.compositor = compositor.NewWithConfig(compositorConfig)
	s.segmenter = segmenter
	return s
}

// LoadImage loads a source image from a file path or URL.
func (s *Studio) LoadImage(source string) (image.Image, error) {
	return s.processor.LoadImageSmart(source)
}

// SavePhoto writes a processed photo as JPEG at print quality.
func (s *Studio) SavePhoto(img image.Image, path string) error {
	return s.processor.SaveImage(img, path, "jpg", 95, false)
}

// Process runs the full pipeline and returns the finished photo at the
// format's exact printed pixel size.
func (s *Studio) Process(source image.Image, format formats.PhotoFormat, edit types.EditState, background color.NRGBA) (*image.NRGBA, error) {
	return s.ProcessContext(context.Background(), source, format, edit, background)
}

// ProcessContext is Process with caller-controlled cancellation, which
// bounds the segmentation wait.
func (s *Studio) ProcessContext(ctx context.Context, source image.Image, format formats.PhotoFormat, edit types.EditState, background color.NRGBA) (*image.NRGBA, error) {
	composited, err := s.ProcessToFrame(ctx, source, format, edit, background)
	if err != nil {
		return nil, err
	}

	out, err := s.scaler.ScaleToFormat(composited, format)
	if err != nil {
		return nil, fmt.Errorf("output scaling failed: %w", err)
	}
	return out, nil
}

// ProcessToFrame runs the pipeline up to and including background
// replacement, returning the composite at frame (preview) resolution.
// Renders from the same edit state at frame and export resolution show the
// identical crop.
func (s *Studio) ProcessToFrame(ctx context.Context, source image.Image, format formats.PhotoFormat, edit types.EditState, background color.NRGBA) (*image.NRGBA, error) {
	if source == nil {
		return nil, ErrInvalidSource
	}
	b := source.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSource, b.Dx(), b.Dy())
	}

	spec := format.Frame()
	framed, err := s.renderer.Render(source, spec, edit, background)
	if err != nil {
		return nil, fmt.Errorf("frame render failed: %w", err)
	}

	// Segmentation is best-effort: unavailable just means the compositor
	// builds its own mask from the border colors.
	var mask *image.Gray
	if s.segmenter != nil {
		m, err := s.segmenter.Segment(ctx, framed)
		if err == nil {
			mask = m
		} else if !errors.Is(err, segment.ErrUnavailable) {
			return nil, fmt.Errorf("segmentation failed: %w", err)
		}
	}

	return s.compositor.Composite(framed, mask, background), nil
}
