// Package narrative turns scroll positions of the narrative text blocks into
// segment changes.
package narrative

import "math"

// Band is the activation band of the scroll container, given as fractions of
// its height cut off at the top and at the bottom.
type Band struct {
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

// DefaultBand keeps the middle 20% of the container.
var DefaultBand = Band{Top: 0.40, Bottom: 0.40}

// Range returns the band's top and bottom offsets for a container of the given height.
func (b Band) Range(height float64) (lo, hi float64) {
	return height * b.Top, height * (1 - b.Bottom)
}

// Overlap returns how many pixels of the block [top, bottom) lie inside the band.
// Block offsets are relative to the container's top edge.
func (b Band) Overlap(top, bottom, height float64) float64 {
	if height <= 0 || bottom <= top {
		return 0
	}
	lo, hi := b.Range(height)
	return math.Max(0, math.Min(bottom, hi)-math.Max(top, lo))
}

// Intersects reports whether any part of the block lies inside the band.
func (b Band) Intersects(top, bottom, height float64) bool {
	return b.Overlap(top, bottom, height) > 0
}

// Rect is the position of one narrative block relative to the scroll container.
type Rect struct {
	SegmentID int     `json:"segment"`
	Top       float64 `json:"top"`
	Bottom    float64 `json:"bottom"`
}

// Pick returns the block with the largest share of the band. ok is false when
// no block reaches the band.
func (b Band) Pick(blocks []Rect, height float64) (id int, ok bool) {
	best := 0.0
	for _, r := range blocks {
		if o := b.Overlap(r.Top, r.Bottom, height); o > best {
			best, id, ok = o, r.SegmentID, true
		}
	}
	return id, ok
}
