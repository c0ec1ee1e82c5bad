// Package layout arranges finished ID photos on a photo-paper canvas and
// renders the print-ready sheet. Automatic placement uses a maximal-
// rectangles bin packer with 90-degree rotation; manual operations move,
// duplicate, rotate and delete individual photos.
package layout

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sort"
	"time"

	"github.com/disintegration/imaging"

	"github.com/menta2k/idphoto/pkg/formats"
	"github.com/menta2k/idphoto/pkg/types"
)

// DefaultSpacing is the inter-photo gap in paper pixels (~0.34mm at 300 DPI
// per pixel; 4px leaves a cuttable margin).
const DefaultSpacing = 4

// SavedPhoto is one committed photo on the sheet. Position is the photo
// center in normalized paper coordinates.
type SavedPhoto struct {
	Image           image.Image
	Format          formats.PhotoFormat
	Position        types.Point
	RotationDegrees float64
	Scale           float64
	CreatedAt       time.Time
}

// PixelSize returns the photo's placed dimensions before rotation.
func (p *SavedPhoto) PixelSize() (int, int) {
	b := p.Image.Bounds()
	return b.Dx(), b.Dy()
}

// placedRect returns the photo's axis-aligned paper rect in pixels,
// accounting for rotation and scale.
func (p *SavedPhoto) placedRect(paper formats.PaperSpec) pxRect {
	w, h := p.PixelSize()
	if math.Mod(p.RotationDegrees, 180) != 0 {
		w, h = h, w
	}
	scale := p.Scale
	if scale <= 0 {
		scale = 1
	}
	w = int(float64(w)*scale + 0.5)
	h = int(float64(h)*scale + 0.5)
	cx := p.Position.X * float64(paper.WidthPx)
	cy := p.Position.Y * float64(paper.HeightPx)
	return pxRect{
		x: int(cx - float64(w)/2 + 0.5),
		y: int(cy - float64(h)/2 + 0.5),
		w: w,
		h: h,
	}
}

// Sheet is an ordered photo collection on a fixed paper.
type Sheet struct {
	paper   formats.PaperSpec
	spacing int
	photos  []*SavedPhoto
}

// NewSheet creates an empty sheet for the given paper.
func NewSheet(paper formats.PaperSpec) *Sheet {
	return NewSheetWithSpacing(paper, DefaultSpacing)
}

// NewSheetWithSpacing creates a sheet with a custom inter-photo gap.
func NewSheetWithSpacing(paper formats.PaperSpec, spacing int) *Sheet {
	if spacing < 0 {
		spacing = 0
	}
	return &Sheet{paper: paper, spacing: spacing}
}

// Paper returns the sheet's paper spec.
func (s *Sheet) Paper() formats.PaperSpec { return s.paper }

// Photos returns the collection in draw order.
func (s *Sheet) Photos() []*SavedPhoto { return s.photos }

// Len returns the number of photos on the sheet.
func (s *Sheet) Len() int { return len(s.photos) }

// Add commits a finished photo to the sheet, initially centered.
func (s *Sheet) Add(img image.Image, format formats.PhotoFormat) *SavedPhoto {
	p := &SavedPhoto{
		Image:     img,
		Format:    format,
		Position:  types.Point{X: 0.5, Y: 0.5},
		Scale:     1.0,
		CreatedAt: time.Now(),
	}
	s.photos = append(s.photos, p)
	return p
}

// Duplicate copies the photo at index, nudging the copy so both stay visible.
func (s *Sheet) Duplicate(index int) (*SavedPhoto, error) {
	if index < 0 || index >= len(s.photos) {
		return nil, fmt.Errorf("photo index %d out of range", index)
	}
	src := s.photos[index]
	dup := *src
	dup.CreatedAt = time.Now()
	dup.Position.X = types.Clamp(src.Position.X+0.05, 0, 1)
	dup.Position.Y = types.Clamp(src.Position.Y+0.05, 0, 1)
	s.photos = append(s.photos, &dup)
	return &dup, nil
}

// Rotate90 rotates the photo at index by a further 90 degrees.
func (s *Sheet) Rotate90(index int) error {
	if index < 0 || index >= len(s.photos) {
		return fmt.Errorf("photo index %d out of range", index)
	}
	p := s.photos[index]
	p.RotationDegrees = math.Mod(p.RotationDegrees+90, 360)
	return nil
}

// Delete removes the photo at index.
func (s *Sheet) Delete(index int) error {
	if index < 0 || index >= len(s.photos) {
		return fmt.Errorf("photo index %d out of range", index)
	}
	s.photos = append(s.photos[:index], s.photos[index+1:]...)
	return nil
}

// Clear removes every photo.
func (s *Sheet) Clear() {
	s.photos = nil
}

// MoveTo drags the photo at index to a normalized paper position, clamped
// into [0,1] on both axes.
func (s *Sheet) MoveTo(index int, x, y float64) error {
	if index < 0 || index >= len(s.photos) {
		return fmt.Errorf("photo index %d out of range", index)
	}
	s.photos[index].Position = types.Point{
		X: types.Clamp(x, 0, 1),
		Y: types.Clamp(y, 0, 1),
	}
	return nil
}

// AutoArrange packs the collection onto the paper. Rotation and scale are
// reset first, photos are placed tallest-first (stable on insertion order),
// and each placement may use the 90-degree orientation when it scores
// better. Photos that no longer fit keep their previous position; the
// method reports how many were placed and never fails.
func (s *Sheet) AutoArrange() int {
	for _, p := range s.photos {
		p.RotationDegrees = 0
		p.Scale = 1.0
	}

	order := make([]int, len(s.photos))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		_, ha := s.photos[order[a]].PixelSize()
		_, hb := s.photos[order[b]].PixelSize()
		return ha > hb
	})

	packer := newMaxRectsPacker(s.paper.WidthPx, s.paper.HeightPx, s.spacing)

	placed := 0
	for _, idx := range order {
		p := s.photos[idx]
		w, h := p.PixelSize()
		if w <= 0 || h <= 0 {
			continue
		}
		pl, ok := packer.insert(w, h)
		if !ok {
			continue // left at its previous position, never dropped
		}
		pw, ph := w, h
		if pl.rotated {
			p.RotationDegrees = 90
			pw, ph = h, w
		}
		p.Position = types.Point{
			X: (float64(pl.x) + float64(pw)/2) / float64(s.paper.WidthPx),
			Y: (float64(pl.y) + float64(ph)/2) / float64(s.paper.HeightPx),
		}
		placed++
	}
	return placed
}

// ArrangeGrid lays the photos out in uniform rows and columns sized from
// the first photo, the classic passport-sheet arrangement. Photos beyond
// the grid capacity keep their positions. Returns the number placed.
func (s *Sheet) ArrangeGrid() int {
	if len(s.photos) == 0 {
		return 0
	}
	for _, p := range s.photos {
		p.RotationDegrees = 0
		p.Scale = 1.0
	}

	w, h := s.photos[0].PixelSize()
	if w <= 0 || h <= 0 {
		return 0
	}

	cols := (s.paper.WidthPx - s.spacing) / (w + s.spacing)
	rows := (s.paper.HeightPx - s.spacing) / (h + s.spacing)
	if cols < 1 || rows < 1 {
		return 0
	}

	// Distribute the leftover space evenly as outer margins.
	marginX := (s.paper.WidthPx - cols*w - (cols-1)*s.spacing) / 2
	marginY := (s.paper.HeightPx - rows*h - (rows-1)*s.spacing) / 2

	placed := 0
	for i, p := range s.photos {
		if i >= cols*rows {
			break
		}
		col := i % cols
		row := i / cols
		x := marginX + col*(w+s.spacing)
		y := marginY + row*(h+s.spacing)
		p.Position = types.Point{
			X: (float64(x) + float64(w)/2) / float64(s.paper.WidthPx),
			Y: (float64(y) + float64(h)/2) / float64(s.paper.HeightPx),
		}
		placed++
	}
	return placed
}

// Render rasterizes the sheet at the exact paper pixel size. Photos draw in
// collection order, so where manual dragging reintroduced overlap, later
// photos cover earlier ones. Grid guides are preview decoration; pass
// drawGrid=false for export.
func (s *Sheet) Render(drawGrid bool) *image.NRGBA {
	canvas := image.NewNRGBA(image.Rect(0, 0, s.paper.WidthPx, s.paper.HeightPx))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.NRGBA{255, 255, 255, 255}), image.Point{}, draw.Src)

	if drawGrid {
		s.drawGridGuides(canvas)
	}

	for _, p := range s.photos {
		img := p.Image
		switch math.Mod(p.RotationDegrees+360, 360) {
		case 90:
			img = imaging.Rotate90(img)
		case 180:
			img = imaging.Rotate180(img)
		case 270:
			img = imaging.Rotate270(img)
		}
		if p.Scale > 0 && p.Scale != 1.0 {
			b := img.Bounds()
			img = imaging.Resize(img,
				int(float64(b.Dx())*p.Scale+0.5),
				int(float64(b.Dy())*p.Scale+0.5),
				imaging.Lanczos)
		}
		r := img.Bounds()
		x := int(p.Position.X*float64(s.paper.WidthPx) - float64(r.Dx())/2 + 0.5)
		y := int(p.Position.Y*float64(s.paper.HeightPx) - float64(r.Dy())/2 + 0.5)
		dst := image.Rect(x, y, x+r.Dx(), y+r.Dy())
		draw.Draw(canvas, dst, img, r.Min, draw.Over)
	}
	return canvas
}

// drawGridGuides paints a light 150px alignment grid.
func (s *Sheet) drawGridGuides(canvas *image.NRGBA) {
	guide := color.NRGBA{225, 225, 225, 255}
	const cell = 150
	w := canvas.Bounds().Dx()
	h := canvas.Bounds().Dy()
	for x := cell; x < w; x += cell {
		for y := 0; y < h; y++ {
			canvas.SetNRGBA(x, y, guide)
		}
	}
	for y := cell; y < h; y += cell {
		for x := 0; x < w; x++ {
			canvas.SetNRGBA(x, y, guide)
		}
	}
}

// Overlapping reports index pairs of photos whose placed rectangles overlap.
// AutoArrange never produces any; manual dragging can.
func (s *Sheet) Overlapping() [][2]int {
	var out [][2]int
	for i := 0; i < len(s.photos); i++ {
		ri := s.photos[i].placedRect(s.paper)
		for j := i + 1; j < len(s.photos); j++ {
			if overlaps(ri, s.photos[j].placedRect(s.paper)) {
				out = append(out, [2]int{i, j})
			}
		}
	}
	return out
}
