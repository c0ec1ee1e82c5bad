package segment

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/menta2k/idphoto/pkg/types"
)

// fakeClient returns a scripted result or error
type fakeClient struct {
	result *types.SegmentResult
	err    error
	delay  time.Duration
}

func (f *fakeClient) SegmentSubject(ctx context.Context, model, imgB64 string) (*types.SegmentResult, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func testFrame(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 180, G: 180, B: 180, A: 255})
		}
	}
	return img
}

// mattePNG encodes a w x h matte that is white inside the given rect
func mattePNG(t *testing.T, w, h int, fg image.Rectangle) []byte {
	t.Helper()
	m := image.NewGray(image.Rect(0, 0, w, h))
	for y := fg.Min.Y; y < fg.Max.Y; y++ {
		for x := fg.Min.X; x < fg.Max.X; x++ {
			m.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, m); err != nil {
		t.Fatalf("png encode failed: %v", err)
	}
	return buf.Bytes()
}

func TestSegmentFromMatte(t *testing.T) {
	matte := mattePNG(t, 100, 100, image.Rect(25, 25, 75, 75))
	a := New(&fakeClient{result: &types.SegmentResult{MaskPNG: matte, Confidence: 0.9}})

	mask, err := a.Segment(context.Background(), testFrame(100, 100))
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}

	if mask.Bounds().Dx() != 100 || mask.Bounds().Dy() != 100 {
		t.Fatalf("Expected 100x100 mask, got %v", mask.Bounds())
	}
	if v := mask.GrayAt(50, 50).Y; v < 200 {
		t.Errorf("Expected foreground at matte center, got %d", v)
	}
	if v := mask.GrayAt(5, 5).Y; v > 50 {
		t.Errorf("Expected background at matte corner, got %d", v)
	}
}

func TestSegmentMatteRescaled(t *testing.T) {
	// Matte at backend resolution, frame larger
	matte := mattePNG(t, 50, 50, image.Rect(0, 0, 50, 25))
	a := New(&fakeClient{result: &types.SegmentResult{MaskPNG: matte, Confidence: 0.9}})

	mask, err := a.Segment(context.Background(), testFrame(200, 200))
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if mask.Bounds().Dx() != 200 || mask.Bounds().Dy() != 200 {
		t.Fatalf("Expected mask aligned to frame, got %v", mask.Bounds())
	}
	if v := mask.GrayAt(100, 40).Y; v < 200 {
		t.Errorf("Expected foreground in upper half, got %d", v)
	}
	if v := mask.GrayAt(100, 160).Y; v > 50 {
		t.Errorf("Expected background in lower half, got %d", v)
	}
}

func TestSegmentInvertedMatte(t *testing.T) {
	// Inverted polarity: white means background
	matte := mattePNG(t, 100, 100, image.Rect(0, 0, 100, 50))
	a := New(&fakeClient{result: &types.SegmentResult{MaskPNG: matte, Confidence: 0.9, Inverted: true}})

	mask, err := a.Segment(context.Background(), testFrame(100, 100))
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if v := mask.GrayAt(50, 25).Y; v > 50 {
		t.Errorf("Expected inverted top half to be background, got %d", v)
	}
	if v := mask.GrayAt(50, 75).Y; v < 200 {
		t.Errorf("Expected inverted bottom half to be foreground, got %d", v)
	}
}

func TestSegmentFromOutline(t *testing.T) {
	// Centered square polygon
	outline := []types.Point{
		{X: 0.25, Y: 0.25},
		{X: 0.75, Y: 0.25},
		{X: 0.75, Y: 0.75},
		{X: 0.25, Y: 0.75},
	}
	a := New(&fakeClient{result: &types.SegmentResult{Outline: outline, Confidence: 0.8}})

	mask, err := a.Segment(context.Background(), testFrame(120, 120))
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if v := mask.GrayAt(60, 60).Y; v != 255 {
		t.Errorf("Expected polygon interior filled, got %d", v)
	}
	if v := mask.GrayAt(10, 10).Y; v != 0 {
		t.Errorf("Expected polygon exterior empty, got %d", v)
	}
}

func TestSegmentUnavailable(t *testing.T) {
	frame := testFrame(60, 60)

	cases := []struct {
		name   string
		client *fakeClient
	}{
		{"backend error", &fakeClient{err: errors.New("connection refused")}},
		{"nil result", &fakeClient{}},
		{"low confidence", &fakeClient{result: &types.SegmentResult{Outline: []types.Point{{X: 0.1, Y: 0.1}, {X: 0.9, Y: 0.1}, {X: 0.5, Y: 0.9}}, Confidence: 0.05}}},
		{"no mask or outline", &fakeClient{result: &types.SegmentResult{Confidence: 0.9}}},
		{"bad matte bytes", &fakeClient{result: &types.SegmentResult{MaskPNG: []byte("not a png"), Confidence: 0.9}}},
	}

	for _, tc := range cases {
		a := New(tc.client)
		if _, err := a.Segment(context.Background(), frame); !errors.Is(err, ErrUnavailable) {
			t.Errorf("%s: expected ErrUnavailable, got %v", tc.name, err)
		}
	}
}

func TestSegmentTimeout(t *testing.T) {
	slow := &fakeClient{
		result: &types.SegmentResult{Confidence: 0.9},
		delay:  200 * time.Millisecond,
	}
	a := NewWithConfig(slow, Config{Timeout: 20 * time.Millisecond, MinConfidence: 0.2})

	start := time.Now()
	_, err := a.Segment(context.Background(), testFrame(60, 60))
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable on timeout, got %v", err)
	}
	if time.Since(start) > 150*time.Millisecond {
		t.Error("Expected the timeout to cut the wait short")
	}
}

func TestSegmentNilClient(t *testing.T) {
	a := New(nil)
	if _, err := a.Segment(context.Background(), testFrame(10, 10)); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable for nil client, got %v", err)
	}
}
