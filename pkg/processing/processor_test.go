package processing

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/menta2k/idphoto/pkg/types"
)

func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := uint8((x * 255) / width)
			g := uint8((y * 255) / height)
			img.Set(x, y, color.RGBA{r, g, 128, 255})
		}
	}
	return img
}

func TestDecodeBytes(t *testing.T) {
	p := NewProcessor()

	var buf bytes.Buffer
	if err := png.Encode(&buf, createTestImage(40, 30)); err != nil {
		t.Fatal(err)
	}

	img, err := p.DecodeBytes(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeBytes failed: %v", err)
	}
	if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 30 {
		t.Errorf("Expected 40x30, got %v", img.Bounds())
	}

	if _, err := p.DecodeBytes([]byte("garbage")); err == nil {
		t.Error("Expected error for undecodable bytes")
	}
}

func TestPrepareImageForModel(t *testing.T) {
	p := NewProcessor()
	img := createTestImage(1600, 1200)

	b64, err := p.PrepareImageForModel(img, "jpg", 800, 85)
	if err != nil {
		t.Fatalf("PrepareImageForModel failed: %v", err)
	}

	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		t.Fatalf("Expected valid base64: %v", err)
	}

	decoded, err := p.DecodeBytes(data)
	if err != nil {
		t.Fatalf("Expected decodable payload: %v", err)
	}
	if decoded.Bounds().Dx() > 800 || decoded.Bounds().Dy() > 800 {
		t.Errorf("Expected long side capped at 800, got %v", decoded.Bounds())
	}
}

func TestPrepareImageForModelNoResize(t *testing.T) {
	p := NewProcessor()
	img := createTestImage(200, 100)

	b64, err := p.PrepareImageForModel(img, "png", 0, 0)
	if err != nil {
		t.Fatalf("PrepareImageForModel failed: %v", err)
	}
	data, _ := base64.StdEncoding.DecodeString(b64)
	decoded, err := p.DecodeBytes(data)
	if err != nil {
		t.Fatalf("Expected decodable payload: %v", err)
	}
	if decoded.Bounds().Dx() != 200 {
		t.Errorf("Expected original size kept, got %v", decoded.Bounds())
	}
}

func TestSaveAndLoadImage(t *testing.T) {
	p := NewProcessor()
	img := createTestImage(64, 48)
	dir := t.TempDir()

	for _, ext := range []string{"png", "jpg"} {
		path := filepath.Join(dir, "out."+ext)
		if err := p.SaveImage(img, path, ext, 90, false); err != nil {
			t.Fatalf("SaveImage %s failed: %v", ext, err)
		}
		if info, err := os.Stat(path); err != nil || info.Size() == 0 {
			t.Fatalf("Expected non-empty %s file", ext)
		}

		loaded, err := p.LoadImage(path)
		if err != nil {
			t.Fatalf("LoadImage %s failed: %v", ext, err)
		}
		if loaded.Bounds().Dx() != 64 || loaded.Bounds().Dy() != 48 {
			t.Errorf("%s round trip changed size: %v", ext, loaded.Bounds())
		}
	}
}

func TestLoadImageMissing(t *testing.T) {
	p := NewProcessor()
	if _, err := p.LoadImage("/nonexistent/image.jpg"); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestCreateDebugOverlay(t *testing.T) {
	p := NewProcessor()
	img := createTestImage(200, 200)

	mask := image.NewGray(image.Rect(0, 0, 200, 200))
	for y := 50; y < 150; y++ {
		for x := 60; x < 140; x++ {
			mask.SetGray(x, y, color.Gray{Y: 255})
		}
	}

	overlay := p.CreateDebugOverlay(img, types.Box{X: 0.2, Y: 0.2, W: 0.6, H: 0.6}, mask)
	if overlay == nil {
		t.Fatal("Expected overlay image")
	}
	if overlay.Bounds() != img.Bounds() {
		t.Errorf("Expected overlay to match source bounds, got %v", overlay.Bounds())
	}
}
