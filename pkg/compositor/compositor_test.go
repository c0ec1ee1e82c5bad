package compositor

import (
	"image"
	"image/color"
	"testing"
)

func solidFrame(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// portraitFrame builds a white frame with a dark centered subject block
func portraitFrame(w, h int) *image.NRGBA {
	img := solidFrame(w, h, color.NRGBA{R: 250, G: 250, B: 250, A: 255})
	for y := h / 3; y < 2*h/3; y++ {
		for x := w / 3; x < 2*w/3; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 60, G: 40, B: 30, A: 255})
		}
	}
	return img
}

func uniformMask(w, h int, v uint8) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, w, h))
	for i := range mask.Pix {
		mask.Pix[i] = v
	}
	return mask
}

func TestCompositeFullMaskKeepsFrame(t *testing.T) {
	c := New()
	red := color.NRGBA{R: 200, G: 10, B: 10, A: 255}
	frame := solidFrame(64, 64, red)

	out := c.Composite(frame, uniformMask(64, 64, 255), color.NRGBA{B: 255, A: 255})
	if out.Bounds() != frame.Bounds() {
		t.Fatalf("Output bounds %v differ from frame", out.Bounds())
	}

	got := out.NRGBAAt(32, 32)
	if got.R < 190 || got.B > 20 {
		t.Errorf("Expected frame color preserved under full mask, got %+v", got)
	}
}

func TestCompositeZeroMaskIsBackground(t *testing.T) {
	c := New()
	frame := solidFrame(64, 64, color.NRGBA{R: 200, A: 255})
	blue := color.NRGBA{B: 255, A: 255}

	out := c.Composite(frame, uniformMask(64, 64, 0), blue)
	got := out.NRGBAAt(32, 32)
	if got.B < 240 || got.R > 15 {
		t.Errorf("Expected pure background under zero mask, got %+v", got)
	}
	if got.A != 255 {
		t.Errorf("Expected opaque output, got alpha %d", got.A)
	}
}

func TestCompositeSubImageView(t *testing.T) {
	c := New()

	// Left half green, right half red; composite only the right half view.
	parent := image.NewNRGBA(image.Rect(0, 0, 128, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 128; x++ {
			px := color.NRGBA{G: 255, A: 255}
			if x >= 64 {
				px = color.NRGBA{R: 255, A: 255}
			}
			parent.SetNRGBA(x, y, px)
		}
	}
	view := parent.SubImage(image.Rect(64, 0, 128, 64)).(*image.NRGBA)

	maskParent := image.NewGray(image.Rect(0, 0, 128, 64))
	for y := 0; y < 64; y++ {
		for x := 64; x < 128; x++ {
			maskParent.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	maskView := maskParent.SubImage(image.Rect(64, 0, 128, 64)).(*image.Gray)

	out := c.Composite(view, maskView, color.NRGBA{B: 255, A: 255})
	if out.Bounds().Dx() != 64 || out.Bounds().Dy() != 64 {
		t.Fatalf("Expected 64x64 output, got %v", out.Bounds())
	}
	center := out.NRGBAAt(32, 32)
	if center.R < 190 || center.G > 30 {
		t.Errorf("Expected the viewed pixels composited, got %+v", center)
	}
}

func TestCompositeMaskEdgeIsFeathered(t *testing.T) {
	c := New()
	frame := solidFrame(64, 64, color.NRGBA{R: 255, A: 255})
	blue := color.NRGBA{B: 255, A: 255}

	// Left half foreground, right half background
	mask := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 32; x++ {
			mask.SetGray(x, y, color.Gray{Y: 255})
		}
	}

	out := c.Composite(frame, mask, blue)

	// Far from the edge both sides are pure
	if got := out.NRGBAAt(8, 32); got.R < 240 {
		t.Errorf("Expected foreground far left, got %+v", got)
	}
	if got := out.NRGBAAt(56, 32); got.B < 240 {
		t.Errorf("Expected background far right, got %+v", got)
	}
}

func TestCompositeColorSimilarityFallback(t *testing.T) {
	c := New()
	frame := portraitFrame(96, 120)
	blue := color.NRGBA{R: 70, G: 130, B: 220, A: 255}

	// No mask: border sampling detects the near-white backdrop
	out := c.Composite(frame, nil, blue)

	if out.Bounds().Dx() != 96 || out.Bounds().Dy() != 120 {
		t.Fatalf("Output size mismatch: %v", out.Bounds())
	}

	// Corner was near-white backdrop, now background color
	corner := out.NRGBAAt(4, 4)
	if corner.B < 180 || corner.R > 120 {
		t.Errorf("Expected replaced background at corner, got %+v", corner)
	}

	// Subject center survives
	center := out.NRGBAAt(48, 60)
	if center.R > 120 || center.B > 120 {
		t.Errorf("Expected dark subject preserved at center, got %+v", center)
	}
}

func TestCompositeDegradesToBlendOver(t *testing.T) {
	c := New()
	// Frames too small for border sampling fall through to alpha-over
	frame := solidFrame(2, 2, color.NRGBA{R: 100, G: 100, B: 100, A: 128})
	white := color.NRGBA{R: 255, G: 255, B: 255, A: 255}

	out := c.Composite(frame, nil, white)
	if out.Bounds().Dx() != 2 || out.Bounds().Dy() != 2 {
		t.Fatalf("Output size mismatch: %v", out.Bounds())
	}

	// Half-transparent gray over white lands in between
	got := out.NRGBAAt(0, 0)
	if got.R < 150 || got.R > 210 {
		t.Errorf("Expected alpha-over blend, got %+v", got)
	}
	if got.A != 255 {
		t.Errorf("Expected opaque output, got alpha %d", got.A)
	}
}

func TestCompositeNeverReturnsNil(t *testing.T) {
	c := New()
	frames := []*image.NRGBA{
		solidFrame(1, 1, color.NRGBA{A: 255}),
		solidFrame(3, 3, color.NRGBA{R: 128, A: 255}),
		portraitFrame(50, 50),
	}
	for i, frame := range frames {
		out := c.Composite(frame, nil, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		if out == nil {
			t.Fatalf("Composite returned nil for frame %d", i)
		}
		if out.Bounds() != frame.Bounds() {
			t.Errorf("Frame %d: output bounds %v differ from input", i, out.Bounds())
		}
	}
}

func TestNewWithConfigSanitizes(t *testing.T) {
	c := NewWithConfig(Config{})
	if c.config.BorderSampleStep <= 0 || c.config.MaxBorderColors <= 0 {
		t.Error("Expected zero config values replaced with defaults")
	}
}

func BenchmarkComposite(b *testing.B) {
	c := New()
	frame := portraitFrame(467, 600)
	mask := uniformMask(467, 600, 255)
	white := color.NRGBA{R: 255, G: 255, B: 255, A: 255}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Composite(frame, mask, white)
	}
}
