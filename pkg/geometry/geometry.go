// Package geometry is the pure transform math of the pipeline: it maps an
// EditState (zoom, rotation, pan) and a source/frame size pair to the affine
// transform used by the frame renderer. No I/O, no image data.
package geometry

import (
	"math"

	"github.com/menta2k/idphoto/pkg/formats"
	"github.com/menta2k/idphoto/pkg/types"
)

// Affine represents a 2D affine transformation matrix.
//
// The transformation is represented as a 3x3 matrix:
//
//	| a  b  c |
//	| d  e  f |
//	| 0  0  1 |
type Affine struct {
	a, b, c float64 // x' = ax + by + c
	d, e, f float64 // y' = dx + ey + f
}

// Identity returns the identity transformation.
func Identity() Affine {
	return Affine{a: 1, e: 1}
}

// Translate returns a translation by (tx, ty).
func Translate(tx, ty float64) Affine {
	return Affine{a: 1, c: tx, e: 1, f: ty}
}

// Scale returns a scaling by (sx, sy) around the origin.
func Scale(sx, sy float64) Affine {
	return Affine{a: sx, e: sy}
}

// Rotate returns a rotation by angle (radians) around the origin.
// Positive angles rotate counter-clockwise.
func Rotate(angle float64) Affine {
	cos := math.Cos(angle)
	sin := math.Sin(angle)
	return Affine{a: cos, b: -sin, d: sin, e: cos}
}

// RotateAt returns a rotation by angle (radians) around the point (cx, cy).
func RotateAt(angle, cx, cy float64) Affine {
	return Translate(cx, cy).Multiply(Rotate(angle)).Multiply(Translate(-cx, -cy))
}

// Multiply returns this transform composed with other; other applies first.
func (a Affine) Multiply(other Affine) Affine {
	return Affine{
		a: a.a*other.a + a.b*other.d,
		b: a.a*other.b + a.b*other.e,
		c: a.a*other.c + a.b*other.f + a.c,
		d: a.d*other.a + a.e*other.d,
		e: a.d*other.b + a.e*other.e,
		f: a.d*other.c + a.e*other.f + a.f,
	}
}

// Invert returns the inverse transformation. The second return value is
// false when the matrix is singular.
func (a Affine) Invert() (Affine, bool) {
	det := a.a*a.e - a.b*a.d
	if math.Abs(det) < 1e-10 {
		return Affine{}, false
	}
	inv := 1.0 / det
	return Affine{
		a: a.e * inv,
		b: -a.b * inv,
		c: (a.b*a.f - a.c*a.e) * inv,
		d: -a.d * inv,
		e: a.a * inv,
		f: (a.c*a.d - a.a*a.f) * inv,
	}, true
}

// TransformPoint applies the transformation to point (x, y).
func (a Affine) TransformPoint(x, y float64) (float64, float64) {
	return a.a*x + a.b*y + a.c, a.d*x + a.e*y + a.f
}

// Placement is the computed mapping from source pixel space into a frame.
type Placement struct {
	// Transform maps source pixel coordinates to frame pixel coordinates.
	Transform Affine

	// EffectiveZoom is the fit scale multiplied by the user zoom.
	EffectiveZoom float64

	// ScaledW/ScaledH is the source footprint in frame pixels before rotation.
	ScaledW float64
	ScaledH float64

	// Origin is the top-left placement of the scaled source inside the frame.
	Origin types.Point
}

// FitScale returns the uniform scale that makes a srcW x srcH image fully
// visible inside the frame (contain fit, relative to the frame's own
// dimensions so the same zoom value crops identically at any resolution).
// Degenerate source sizes yield 1.0 rather than a crash.
func FitScale(srcW, srcH int, spec formats.FrameSpec) float64 {
	if srcW <= 0 || srcH <= 0 {
		return 1.0
	}
	sx := float64(spec.WidthPx) / float64(srcW)
	sy := float64(spec.HeightPx) / float64(srcH)
	return math.Min(sx, sy)
}

// Place computes the full placement of a source image inside a frame for a
// given edit state. The pan offset is expressed in frame pixels of the given
// spec; positive Y moves the content downward regardless of rotation.
// Rotation is applied about the frame center and the pan is added in frame
// space afterwards, so the two compose independently: rotating never changes
// what direction a pan drags the content.
//
// The edit state is clamped here so malformed values can never reach the
// renderer.
func Place(srcW, srcH int, spec formats.FrameSpec, edit types.EditState) Placement {
	edit = edit.Clamped()

	zoom := FitScale(srcW, srcH, spec) * edit.ZoomScale
	scaledW := float64(srcW) * zoom
	scaledH := float64(srcH) * zoom

	centerX := (float64(spec.WidthPx) - scaledW) / 2
	centerY := (float64(spec.HeightPx) - scaledH) / 2

	t := Translate(centerX, centerY).Multiply(Scale(zoom, zoom))
	if edit.RotationDegrees != 0 {
		theta := edit.RotationDegrees * math.Pi / 180
		cx := float64(spec.WidthPx) / 2
		cy := float64(spec.HeightPx) / 2
		t = RotateAt(theta, cx, cy).Multiply(t)
	}
	if edit.PanOffset.X != 0 || edit.PanOffset.Y != 0 {
		t = Translate(edit.PanOffset.X, edit.PanOffset.Y).Multiply(t)
	}

	return Placement{
		Transform:     t,
		EffectiveZoom: zoom,
		ScaledW:       scaledW,
		ScaledH:       scaledH,
		Origin: types.Point{
			X: centerX + edit.PanOffset.X,
			Y: centerY + edit.PanOffset.Y,
		},
	}
}

// NormalizePan rescales a pan offset expressed in pixels of one frame spec
// into another, so an edit made against the preview frame can be replayed
// against an export-resolution frame.
func NormalizePan(edit types.EditState, from, to formats.FrameSpec) types.EditState {
	if from.WidthPx <= 0 || from.HeightPx <= 0 {
		return edit
	}
	out := edit
	out.PanOffset.X = edit.PanOffset.X * float64(to.WidthPx) / float64(from.WidthPx)
	out.PanOffset.Y = edit.PanOffset.Y * float64(to.HeightPx) / float64(from.HeightPx)
	return out
}
