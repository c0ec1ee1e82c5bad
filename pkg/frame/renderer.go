// Package frame composites a source image into a fixed-size frame through an
// affine transform, filling uncovered area with a background color. The same
// renderer serves preview and export: given equivalent normalized edit
// parameters it produces the same crop at any frame resolution.
package frame

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/menta2k/idphoto/pkg/formats"
	"github.com/menta2k/idphoto/pkg/geometry"
	"github.com/menta2k/idphoto/pkg/types"
)

// Renderer draws source images into frames.
type Renderer struct{}

// NewRenderer creates a frame renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render composites src into a frame of the given spec using the edit state.
// The frame is filled with the background color first, so every output pixel
// is defined even when the transformed source does not cover the frame.
func (r *Renderer) Render(src image.Image, spec formats.FrameSpec, edit types.EditState, background color.NRGBA) (*image.NRGBA, error) {
	if spec.WidthPx <= 0 || spec.HeightPx <= 0 {
		return nil, fmt.Errorf("invalid frame spec %dx%d", spec.WidthPx, spec.HeightPx)
	}
	bounds := src.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW <= 0 || srcH <= 0 {
		return nil, fmt.Errorf("invalid source dimensions %dx%d", srcW, srcH)
	}

	place := geometry.Place(srcW, srcH, spec, edit)
	return r.RenderWithTransform(src, spec, place.Transform, background)
}

// RenderWithTransform composites src into a frame through an explicit
// source-to-frame transform. Each frame pixel is inverse-mapped into source
// space and bilinearly sampled; pixels that map outside the source keep the
// background color.
func (r *Renderer) RenderWithTransform(src image.Image, spec formats.FrameSpec, t geometry.Affine, background color.NRGBA) (*image.NRGBA, error) {
	inv, ok := t.Invert()
	if !ok {
		return nil, fmt.Errorf("singular frame transform")
	}

	nsrc := imaging.Clone(src)
	srcW := nsrc.Bounds().Dx()
	srcH := nsrc.Bounds().Dy()

	dst := image.NewNRGBA(image.Rect(0, 0, spec.WidthPx, spec.HeightPx))
	fill(dst, background)

	for y := 0; y < spec.HeightPx; y++ {
		row := y * dst.Stride
		for x := 0; x < spec.WidthPx; x++ {
			// Sample at the pixel center to keep half-pixel alignment stable
			// across resolutions.
			sx, sy := inv.TransformPoint(float64(x)+0.5, float64(y)+0.5)
			sx -= 0.5
			sy -= 0.5
			if sx < -0.5 || sy < -0.5 || sx > float64(srcW)-0.5 || sy > float64(srcH)-0.5 {
				continue
			}
			cr, cg, cb, ca := bilinear(nsrc, srcW, srcH, sx, sy)
			i := row + x*4
			dst.Pix[i+0] = cr
			dst.Pix[i+1] = cg
			dst.Pix[i+2] = cb
			dst.Pix[i+3] = ca
		}
	}
	return dst, nil
}

func fill(img *image.NRGBA, c color.NRGBA) {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	for y := 0; y < h; y++ {
		i := y * img.Stride
		for x := 0; x < w; x++ {
			img.Pix[i+0] = c.R
			img.Pix[i+1] = c.G
			img.Pix[i+2] = c.B
			img.Pix[i+3] = c.A
			i += 4
		}
	}
}

// bilinear samples the NRGBA image at fractional coordinates, clamping the
// 2x2 neighborhood to the image edge.
func bilinear(img *image.NRGBA, w, h int, x, y float64) (uint8, uint8, uint8, uint8) {
	x0 := clampInt(floorInt(x), 0, w-1)
	y0 := clampInt(floorInt(y), 0, h-1)
	x1 := clampInt(x0+1, 0, w-1)
	y1 := clampInt(y0+1, 0, h-1)

	fx := x - float64(floorInt(x))
	fy := y - float64(floorInt(y))
	fx = types.Clamp(fx, 0, 1)
	fy = types.Clamp(fy, 0, 1)

	i00 := y0*img.Stride + x0*4
	i10 := y0*img.Stride + x1*4
	i01 := y1*img.Stride + x0*4
	i11 := y1*img.Stride + x1*4

	var out [4]uint8
	for c := 0; c < 4; c++ {
		top := float64(img.Pix[i00+c])*(1-fx) + float64(img.Pix[i10+c])*fx
		bot := float64(img.Pix[i01+c])*(1-fx) + float64(img.Pix[i11+c])*fx
		out[c] = uint8(top*(1-fy) + bot*fy + 0.5)
	}
	return out[0], out[1], out[2], out[3]
}

func floorInt(v float64) int {
	i := int(v)
	if v < 0 && float64(i) != v {
		i--
	}
	return i
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
