// Package formats holds the static catalog of ID photo formats and the
// physical-size arithmetic shared by the pipeline: millimeters to pixels at
// the fixed print resolution, frame specs derived from a format's aspect
// ratio, and the paper sheet dimensions used for print layout.
package formats

import (
	"fmt"
	"math"
)

// DPI is the fixed print resolution for all physical-size conversions.
const DPI = 300

// mmPerInch converts between the metric catalog and DPI-based pixel sizes.
const mmPerInch = 25.4

// Custom format dimensions are clamped to this range per axis.
const (
	MinCustomMM = 10.0
	MaxCustomMM = 100.0
)

// FrameReferenceHeight is the fixed pixel height of the compositing frame.
// The frame width follows the format's aspect ratio, so a given EditState
// produces the identical visual crop regardless of the final output size.
const FrameReferenceHeight = 600

// PhotoFormat describes one entry of the format catalog.
type PhotoFormat struct {
	Name        string  `json:"name"`
	WidthMM     float64 `json:"width_mm"`
	HeightMM    float64 `json:"height_mm"`
	Description string  `json:"description"`
}

// Catalog entries. Dimensions follow the common international conventions.
var (
	Passport    = PhotoFormat{"passport", 35, 45, "passport photo (35x45mm)"}
	VisaUS      = PhotoFormat{"visa-us", 51, 51, "US visa photo (2x2in)"}
	VisaCN      = PhotoFormat{"visa-cn", 33, 48, "Chinese visa photo (33x48mm)"}
	IDCard      = PhotoFormat{"id-card", 26, 32, "ID card photo (26x32mm)"}
	OneInch     = PhotoFormat{"one-inch", 25, 35, "one-inch photo (25x35mm)"}
	LargeOne    = PhotoFormat{"large-one-inch", 33, 48, "large one-inch photo (33x48mm)"}
	TwoInch     = PhotoFormat{"two-inch", 35, 49, "two-inch photo (35x49mm)"}
	LargeTwo    = PhotoFormat{"large-two-inch", 35, 53, "large two-inch photo (35x53mm)"}
	DriverLic   = PhotoFormat{"driver-license", 22, 32, "driver license photo (22x32mm)"}
	GraduateExm = PhotoFormat{"exam-photo", 41, 54, "examination registration photo (41x54mm)"}
)

// Catalog returns the predefined photo formats in display order.
func Catalog() []PhotoFormat {
	return []PhotoFormat{
		Passport, VisaUS, VisaCN, IDCard, OneInch,
		LargeOne, TwoInch, LargeTwo, DriverLic, GraduateExm,
	}
}

// ByName looks up a catalog format by its name.
func ByName(name string) (PhotoFormat, error) {
	for _, f := range Catalog() {
		if f.Name == name {
			return f, nil
		}
	}
	return PhotoFormat{}, fmt.Errorf("unknown photo format: %q", name)
}

// Custom builds a user-sized format, clamping each axis into [10,100]mm.
func Custom(widthMM, heightMM float64) PhotoFormat {
	w := clampMM(widthMM)
	h := clampMM(heightMM)
	return PhotoFormat{
		Name:        fmt.Sprintf("custom-%.0fx%.0f", w, h),
		WidthMM:     w,
		HeightMM:    h,
		Description: fmt.Sprintf("custom photo (%.0fx%.0fmm)", w, h),
	}
}

func clampMM(v float64) float64 {
	if math.IsNaN(v) || v < MinCustomMM {
		return MinCustomMM
	}
	if v > MaxCustomMM {
		return MaxCustomMM
	}
	return v
}

// AspectRatio returns widthMM/heightMM.
func (f PhotoFormat) AspectRatio() float64 {
	if f.HeightMM <= 0 {
		return 1
	}
	return f.WidthMM / f.HeightMM
}

// PixelSize returns the exact output dimensions at 300 DPI, rounded to the
// nearest integer once so no drift accumulates (35x45mm -> 413x531).
func (f PhotoFormat) PixelSize() (int, int) {
	return MMToPixels(f.WidthMM), MMToPixels(f.HeightMM)
}

// MMToPixels converts a millimeter length to pixels at the print DPI.
func MMToPixels(mm float64) int {
	return int(math.Round(mm * DPI / mmPerInch))
}

// PixelsToMM converts a pixel length back to millimeters at the print DPI.
func PixelsToMM(px int) float64 {
	return float64(px) * mmPerInch / DPI
}

// FrameSpec is the fixed-size compositing frame a source image is rendered
// into. It is preview-resolution: decoupled from the DPI-scaled output.
type FrameSpec struct {
	WidthPx  int `json:"width_px"`
	HeightPx int `json:"height_px"`
}

// Frame derives the compositing frame for this format: reference height,
// width from the aspect ratio. WidthPx/HeightPx matches WidthMM/HeightMM
// within rounding tolerance.
func (f PhotoFormat) Frame() FrameSpec {
	h := FrameReferenceHeight
	w := int(math.Round(float64(h) * f.AspectRatio()))
	if w < 1 {
		w = 1
	}
	return FrameSpec{WidthPx: w, HeightPx: h}
}

// AspectRatio returns the frame's width/height ratio.
func (s FrameSpec) AspectRatio() float64 {
	if s.HeightPx <= 0 {
		return 1
	}
	return float64(s.WidthPx) / float64(s.HeightPx)
}

// PaperSpec is a fixed photo-paper size at the print DPI.
type PaperSpec struct {
	Name     string `json:"name"`
	WidthPx  int    `json:"width_px"`
	HeightPx int    `json:"height_px"`
}

// Standard print papers.
var (
	Paper6x4 = PaperSpec{"6x4in", 1800, 1200}
	Paper5x7 = PaperSpec{"5x7in", 2100, 1500}
	PaperA6  = PaperSpec{"a6", 1748, 1240}
)

// Papers returns the supported paper sizes.
func Papers() []PaperSpec {
	return []PaperSpec{Paper6x4, Paper5x7, PaperA6}
}

// PaperByName looks up a paper spec by name.
func PaperByName(name string) (PaperSpec, error) {
	for _, p := range Papers() {
		if p.Name == name {
			return p, nil
		}
	}
	return PaperSpec{}, fmt.Errorf("unknown paper size: %q", name)
}
