package types

import "math"

// EditState bounds. Zoom requests outside this range are clamped, never rejected.
const (
	MinZoom = 0.1
	MaxZoom = 3.0
)

// Point is a 2D offset or position in frame-local pixel units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Clamped returns the box with all coordinates forced into [0,1].
func (b Box) Clamped() Box {
	return Box{
		X: Clamp(b.X, 0, 1),
		Y: Clamp(b.Y, 0, 1),
		W: Clamp(b.W, 0, 1),
		H: Clamp(b.H, 0, 1),
	}
}

// EditState holds the user-controlled view parameters for a single photo.
// Positive PanOffset.Y moves the image content downward in the frame; this
// convention is shared by preview and export renders.
type EditState struct {
	ZoomScale       float64 `json:"zoom_scale"`
	RotationDegrees float64 `json:"rotation_degrees"`
	PanOffset       Point   `json:"pan_offset"`
}

// Identity returns the neutral edit state: no zoom, rotation or pan.
func Identity() EditState {
	return EditState{ZoomScale: 1.0}
}

// Clamped returns a copy with the zoom forced into [MinZoom, MaxZoom] and the
// rotation normalized into (-180, 180]. Malformed values (NaN, Inf) collapse
// to the identity so a bad slider state can never break a render.
func (e EditState) Clamped() EditState {
	out := e
	if math.IsNaN(out.ZoomScale) || math.IsInf(out.ZoomScale, 0) {
		out.ZoomScale = 1.0
	}
	out.ZoomScale = Clamp(out.ZoomScale, MinZoom, MaxZoom)
	if math.IsNaN(out.RotationDegrees) || math.IsInf(out.RotationDegrees, 0) {
		out.RotationDegrees = 0
	}
	out.RotationDegrees = math.Mod(out.RotationDegrees, 360)
	if out.RotationDegrees > 180 {
		out.RotationDegrees -= 360
	} else if out.RotationDegrees <= -180 {
		out.RotationDegrees += 360
	}
	if math.IsNaN(out.PanOffset.X) || math.IsInf(out.PanOffset.X, 0) {
		out.PanOffset.X = 0
	}
	if math.IsNaN(out.PanOffset.Y) || math.IsInf(out.PanOffset.Y, 0) {
		out.PanOffset.Y = 0
	}
	return out
}

// SegmentResult is a segmentation backend's raw answer, before the adapter
// normalizes it into a frame-aligned mask.
type SegmentResult struct {
	// MaskPNG holds a grayscale PNG matte aligned to the submitted image.
	// Empty when the backend answers with geometry instead of pixels.
	MaskPNG []byte `json:"mask_png,omitempty"`

	// Outline is a normalized subject polygon, used when the backend cannot
	// produce a per-pixel matte.
	Outline []Point `json:"outline,omitempty"`

	Box        Box     `json:"box"`
	Confidence float64 `json:"confidence"`

	// Inverted reports that high matte values mean background. The adapter
	// flips the mask so consumers always receive 1 = foreground.
	Inverted bool `json:"inverted,omitempty"`
}

// Clamp ensures a value is within the given bounds
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
