package layout

// maxRectsPacker places axis-aligned rectangles on the paper using the
// maximal-rectangles free-space method: every placement splits all
// overlapping free rectangles into their maximal residuals, and contained
// residuals are pruned to keep the free list compact.
type maxRectsPacker struct {
	freeRects []pxRect
	spacing   int
}

type pxRect struct {
	x, y, w, h int
}

func (r pxRect) right() int  { return r.x + r.w }
func (r pxRect) bottom() int { return r.y + r.h }

func newMaxRectsPacker(paperW, paperH, spacing int) *maxRectsPacker {
	initial := pxRect{
		x: spacing,
		y: spacing,
		w: paperW - 2*spacing,
		h: paperH - 2*spacing,
	}
	p := &maxRectsPacker{spacing: spacing}
	if initial.w > 0 && initial.h > 0 {
		p.freeRects = []pxRect{initial}
	}
	return p
}

// placement is a successful insert: position plus whether the 90-degree
// orientation won.
type placement struct {
	x, y    int
	rotated bool
}

// candidate scoring weights: wasted area dominates, then the tighter
// leftover side, then the looser one (Best-Area-Fit / Best-Short-Side-Fit
// hybrid, lower score wins).
const (
	weightWaste = 0.50
	weightShort = 0.30
	weightLong  = 0.20
)

// insert places a w x h rectangle, trying both orientations in every free
// rectangle and keeping the minimum-score candidate. Returns false when
// nothing fits.
func (p *maxRectsPacker) insert(w, h int) (placement, bool) {
	type cand struct {
		placement
		score float64
	}
	best := cand{score: -1}

	for _, fr := range p.freeRects {
		for _, rot := range []bool{false, true} {
			cw, ch := w, h
			if rot {
				if w == h {
					continue
				}
				cw, ch = h, w
			}
			if cw > fr.w || ch > fr.h {
				continue
			}
			score := p.score(fr, cw, ch)
			if best.score < 0 || score < best.score {
				best = cand{placement{x: fr.x, y: fr.y, rotated: rot}, score}
			}
		}
	}

	if best.score < 0 {
		return placement{}, false
	}

	cw, ch := w, h
	if best.rotated {
		cw, ch = h, w
	}
	// Buffer the used rect by the spacing so neighbors keep their distance.
	used := pxRect{
		x: best.x - p.spacing,
		y: best.y - p.spacing,
		w: cw + 2*p.spacing,
		h: ch + 2*p.spacing,
	}
	p.splitAroundPlacement(used)

	return best.placement, true
}

func (p *maxRectsPacker) score(fr pxRect, w, h int) float64 {
	waste := float64(fr.w*fr.h - w*h)
	dw := float64(fr.w - w)
	dh := float64(fr.h - h)
	short, long := dw, dh
	if short > long {
		short, long = long, short
	}
	// Normalize so the area and side terms are comparable.
	area := float64(fr.w * fr.h)
	side := float64(maxInt(fr.w, fr.h))
	if area <= 0 || side <= 0 {
		return 0
	}
	return weightWaste*(waste/area) + weightShort*(short/side) + weightLong*(long/side)
}

// splitAroundPlacement removes all free rects that overlap the used rect and
// replaces each with up to four maximal residual strips, then prunes
// residuals smaller than the spacing and rects contained in another.
func (p *maxRectsPacker) splitAroundPlacement(used pxRect) {
	var next []pxRect

	for _, fr := range p.freeRects {
		if !overlaps(fr, used) {
			next = append(next, fr)
			continue
		}
		// Left strip
		if used.x > fr.x {
			next = append(next, pxRect{fr.x, fr.y, used.x - fr.x, fr.h})
		}
		// Right strip
		if used.right() < fr.right() {
			next = append(next, pxRect{used.right(), fr.y, fr.right() - used.right(), fr.h})
		}
		// Top strip
		if used.y > fr.y {
			next = append(next, pxRect{fr.x, fr.y, fr.w, used.y - fr.y})
		}
		// Bottom strip
		if used.bottom() < fr.bottom() {
			next = append(next, pxRect{fr.x, used.bottom(), fr.w, fr.bottom() - used.bottom()})
		}
	}

	kept := next[:0]
	for _, r := range next {
		if r.w >= p.spacing && r.h >= p.spacing {
			kept = append(kept, r)
		}
	}
	p.freeRects = pruneContained(kept)
}

func overlaps(a, b pxRect) bool {
	return a.x < b.right() && a.right() > b.x &&
		a.y < b.bottom() && a.bottom() > b.y
}

func contains(outer, inner pxRect) bool {
	return outer.x <= inner.x && outer.y <= inner.y &&
		outer.right() >= inner.right() && outer.bottom() >= inner.bottom()
}

// pruneContained removes any rect fully contained within another.
func pruneContained(rects []pxRect) []pxRect {
	if len(rects) <= 1 {
		return rects
	}
	kept := make([]pxRect, 0, len(rects))
	for i, a := range rects {
		contained := false
		for j, b := range rects {
			if i == j {
				continue
			}
			if contains(b, a) && (b != a || j < i) {
				contained = true
				break
			}
		}
		if !contained {
			kept = append(kept, a)
		}
	}
	return kept
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
