// Package compositor replaces the background of a framed photo with a solid
// color. It prefers a segmentation mask, falls back to color-similarity
// masking built from the frame border, and degrades to a flat alpha-over
// blend when both are impossible. It never fails: some composite is always
// returned.
package compositor

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/idphoto/pkg/types"
)

// Config holds compositing tuning. Tolerances are Euclidean distances in
// normalized RGB [0,1]^3.
type Config struct {
	// EdgeBlurSigma feathers the mask edge before blending.
	EdgeBlurSigma float64

	// SharpenLow/SharpenHigh remap the feathered mask through a linear ramp
	// to pull the soft edge back in and avoid a background-colored halo.
	// Equal values disable sharpening.
	SharpenLow  float64
	SharpenHigh float64

	// WhiteTolerance applies to near-white border clusters, where lightness
	// matters more than hue. ColorTolerance applies to everything else.
	WhiteTolerance float64
	ColorTolerance float64

	// BorderSampleStep is the pixel stride of the border ring sampling.
	BorderSampleStep int

	// MaxBorderColors caps the dominant border clusters.
	MaxBorderColors int
}

// DefaultConfig returns the compositor defaults.
func DefaultConfig() Config {
	return Config{
		EdgeBlurSigma:    1.5,
		SharpenLow:       0.35,
		SharpenHigh:      0.65,
		WhiteTolerance:   0.25,
		ColorTolerance:   0.15,
		BorderSampleStep: 8,
		MaxBorderColors:  3,
	}
}

// Compositor performs background replacement.
type Compositor struct {
	config Config
}

// New creates a compositor with default configuration.
func New() *Compositor {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a compositor with custom configuration.
func NewWithConfig(config Config) *Compositor {
	if config.BorderSampleStep <= 0 {
		config.BorderSampleStep = 8
	}
	if config.MaxBorderColors <= 0 {
		config.MaxBorderColors = 3
	}
	return &Compositor{config: config}
}

// Composite replaces the background of the frame with the given color.
// A nil mask triggers the color-similarity fallback; if that cannot produce
// a usable mask either, the frame is alpha-blended flat over the background.
// The returned raster always matches the frame dimensions. Inputs whose
// bounds do not start at the origin, such as sub-image views, are re-based
// before blending.
func (c *Compositor) Composite(frame *image.NRGBA, mask *image.Gray, background color.NRGBA) *image.NRGBA {
	b := frame.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return imaging.Clone(frame)
	}

	// The pixel loops index Pix directly and assume a zero-origin raster.
	if b.Min.X != 0 || b.Min.Y != 0 {
		frame = imaging.Clone(frame)
	}
	if mask != nil {
		mask = zeroOriginGray(mask)
	}

	if mask == nil {
		mask = c.colorSimilarityMask(frame)
	}
	if mask == nil {
		return c.blendOver(frame, background)
	}

	smoothed := c.smoothMask(mask)
	return c.blend(frame, smoothed, background)
}

// smoothMask feathers the mask edge and then sharpens it back through a
// linear ramp so the transition band stays narrow.
func (c *Compositor) smoothMask(mask *image.Gray) *image.Gray {
	w := mask.Bounds().Dx()
	h := mask.Bounds().Dy()

	src := mask
	if c.config.EdgeBlurSigma > 0 {
		blurred := imaging.Blur(mask, c.config.EdgeBlurSigma)
		src = grayFromNRGBA(blurred)
	}

	lo := c.config.SharpenLow
	hi := c.config.SharpenHigh
	if hi <= lo {
		return src
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	scale := 1.0 / (hi - lo)
	for i, v := range src.Pix {
		f := (float64(v)/255 - lo) * scale
		out.Pix[i] = uint8(types.Clamp(f, 0, 1)*255 + 0.5)
	}
	return out
}

// blend computes out = mask*frame + (1-mask)*background per channel.
func (c *Compositor) blend(frame *image.NRGBA, mask *image.Gray, background color.NRGBA) *image.NRGBA {
	b := frame.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))

	br := float64(background.R)
	bg := float64(background.G)
	bb := float64(background.B)

	for y := 0; y < h; y++ {
		fi := y * frame.Stride
		mi := y * mask.Stride
		oi := y * out.Stride
		for x := 0; x < w; x++ {
			a := float64(mask.Pix[mi+x]) / 255
			out.Pix[oi+0] = uint8(float64(frame.Pix[fi+0])*a + br*(1-a) + 0.5)
			out.Pix[oi+1] = uint8(float64(frame.Pix[fi+1])*a + bg*(1-a) + 0.5)
			out.Pix[oi+2] = uint8(float64(frame.Pix[fi+2])*a + bb*(1-a) + 0.5)
			out.Pix[oi+3] = 255
			fi += 4
			oi += 4
		}
	}
	return out
}

// blendOver composites the frame flat over the background using the frame's
// own alpha. The degraded always-available path.
func (c *Compositor) blendOver(frame *image.NRGBA, background color.NRGBA) *image.NRGBA {
	b := frame.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))

	br := float64(background.R)
	bg := float64(background.G)
	bb := float64(background.B)

	for y := 0; y < h; y++ {
		fi := y * frame.Stride
		oi := y * out.Stride
		for x := 0; x < w; x++ {
			a := float64(frame.Pix[fi+3]) / 255
			out.Pix[oi+0] = uint8(float64(frame.Pix[fi+0])*a + br*(1-a) + 0.5)
			out.Pix[oi+1] = uint8(float64(frame.Pix[fi+1])*a + bg*(1-a) + 0.5)
			out.Pix[oi+2] = uint8(float64(frame.Pix[fi+2])*a + bb*(1-a) + 0.5)
			out.Pix[oi+3] = 255
			fi += 4
			oi += 4
		}
	}
	return out
}

// rgb is a color in normalized [0,1] space.
type rgb struct {
	r, g, b float64
}

func (c rgb) distance(o rgb) float64 {
	dr := c.r - o.r
	dg := c.g - o.g
	db := c.b - o.b
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

var white = rgb{1, 1, 1}

// colorSimilarityMask estimates the background from the frame border: sample
// a ring of border pixels, cluster them into at most MaxBorderColors
// dominant colors (white is always a candidate, most ID backgrounds are
// white), then mark every pixel within tolerance of any dominant color as
// background. Returns nil only for degenerate frames.
func (c *Compositor) colorSimilarityMask(frame *image.NRGBA) *image.Gray {
	b := frame.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 4 || h < 4 {
		return nil
	}

	samples := c.sampleBorder(frame, w, h)
	if len(samples) == 0 {
		return nil
	}

	clusters := c.clusterColors(samples)

	mask := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		fi := y * frame.Stride
		mi := y * mask.Stride
		for x := 0; x < w; x++ {
			px := rgb{
				r: float64(frame.Pix[fi+0]) / 255,
				g: float64(frame.Pix[fi+1]) / 255,
				b: float64(frame.Pix[fi+2]) / 255,
			}
			// Max across per-color background masks == min foreground.
			isBackground := false
			for _, cl := range clusters {
				tol := c.config.ColorTolerance
				if cl.distance(white) < c.config.WhiteTolerance {
					tol = c.config.WhiteTolerance
				}
				if px.distance(cl) < tol {
					isBackground = true
					break
				}
			}
			if !isBackground {
				mask.Pix[mi+x] = 255
			}
			fi += 4
		}
	}
	return mask
}

// sampleBorder collects colors along a one-pixel-inset ring of the frame.
func (c *Compositor) sampleBorder(frame *image.NRGBA, w, h int) []rgb {
	step := c.config.BorderSampleStep
	inset := 1

	at := func(x, y int) rgb {
		i := y*frame.Stride + x*4
		return rgb{
			r: float64(frame.Pix[i+0]) / 255,
			g: float64(frame.Pix[i+1]) / 255,
			b: float64(frame.Pix[i+2]) / 255,
		}
	}

	var samples []rgb
	for x := inset; x < w-inset; x += step {
		samples = append(samples, at(x, inset), at(x, h-1-inset))
	}
	for y := inset; y < h-inset; y += step {
		samples = append(samples, at(inset, y), at(w-1-inset, y))
	}
	return samples
}

// clusterColors greedily groups samples into dominant colors. White is
// seeded first so a white-ish background always snaps to pure white.
func (c *Compositor) clusterColors(samples []rgb) []rgb {
	type cluster struct {
		sum   rgb
		count int
		seed  bool
	}
	clusters := []cluster{{sum: white, count: 1, seed: true}}

	for _, s := range samples {
		bestIdx := -1
		bestDist := math.Inf(1)
		for i := range clusters {
			center := clusterCenter(clusters[i].sum, clusters[i].count)
			if d := s.distance(center); d < bestDist {
				bestDist = d
				bestIdx = i
			}
		}
		if bestDist < 0.2 {
			clusters[bestIdx].sum.r += s.r
			clusters[bestIdx].sum.g += s.g
			clusters[bestIdx].sum.b += s.b
			clusters[bestIdx].count++
		} else if len(clusters) < c.config.MaxBorderColors {
			clusters = append(clusters, cluster{sum: s, count: 1})
		}
	}

	out := make([]rgb, 0, len(clusters))
	for _, cl := range clusters {
		if cl.seed {
			// Keep the white candidate at pure white regardless of members.
			out = append(out, white)
			continue
		}
		out = append(out, clusterCenter(cl.sum, cl.count))
	}
	return out
}

func clusterCenter(sum rgb, count int) rgb {
	n := float64(count)
	return rgb{r: sum.r / n, g: sum.g / n, b: sum.b / n}
}

// zeroOriginGray re-bases a mask whose bounds do not start at the origin.
func zeroOriginGray(m *image.Gray) *image.Gray {
	b := m.Bounds()
	if b.Min.X == 0 && b.Min.Y == 0 {
		return m
	}
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		si := m.PixOffset(b.Min.X, b.Min.Y+y)
		copy(out.Pix[y*out.Stride:y*out.Stride+b.Dx()], m.Pix[si:si+b.Dx()])
	}
	return out
}

// grayFromNRGBA extracts the red channel; used on images known grayscale.
func grayFromNRGBA(img *image.NRGBA) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		si := y * img.Stride
		di := y * out.Stride
		for x := 0; x < w; x++ {
			out.Pix[di+x] = img.Pix[si+x*4]
		}
	}
	return out
}
