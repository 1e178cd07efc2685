// Package route partitions a driving polyline into the four narrative
// segments and describes how each segment is drawn.
package route

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// Count is the number of narrative segments.
const Count = 4

// Proportional breakpoints of the default itinerary, as fractions of the point count.
const (
	BreakCoastNorth = 0.28 // airport to Le Port ends here
	BreakCoastWest  = 0.43 // Le Port to Saint-Leu ends here
	BreakApproach   = 0.52 // Saint-Leu to Saint-Louis ends here; the mountain road follows
)

// Breakpoints are the three interior boundaries of the partition.
type Breakpoints [Count - 1]float64

// DefaultBreakpoints is the split used by the coastal + mountain road itinerary.
var DefaultBreakpoints = Breakpoints{BreakCoastNorth, BreakCoastWest, BreakApproach}

// BreakpointsFrom converts a configured slice.
func BreakpointsFrom(v []float64) (Breakpoints, error) {
	var bp Breakpoints
	if len(v) != len(bp) {
		return bp, fmt.Errorf("need %d breakpoints, got %d", len(bp), len(v))
	}
	copy(bp[:], v)
	return bp, bp.Validate()
}

// Validate checks the breakpoints are strictly increasing inside (0,1).
func (bp Breakpoints) Validate() error {
	prev := 0.0
	for i, f := range bp {
		if f <= prev || f >= 1 {
			return fmt.Errorf("breakpoint %d (%v) must be strictly increasing in (0,1)", i, f)
		}
		prev = f
	}
	return nil
}

// Bounds returns the start index of segments 2..4 for n points: floor(f*n),
// clamped so the boundaries never decrease or exceed n. With at least Count
// points every segment keeps one point, nudging a boundary up where the
// floor would leave a segment empty.
func (bp Breakpoints) Bounds(n int) [Count - 1]int {
	var b [Count - 1]int
	prev := 0
	for i, f := range bp {
		v := int(math.Floor(f * float64(n)))
		if v < prev {
			v = prev
		}
		if n >= Count && v < prev+1 {
			v = prev + 1
		}
		if v > n {
			v = n
		}
		b[i] = v
		prev = v
	}
	return b
}

// Segment is one contiguous slice of the route polyline.
// Path is what gets drawn: Points plus the first point of the next non-empty
// segment, so consecutive segments join without a visual gap.
type Segment struct {
	Index  int            `json:"index"`
	Points orb.LineString `json:"points"`
	Path   orb.LineString `json:"path"`
}

// Empty reports whether the segment holds no points at all.
func (s Segment) Empty() bool {
	return len(s.Points) == 0
}

// Drawable reports whether the segment can be rendered as a line.
// Undrawable segments are skipped by renderers, never treated as errors.
func (s Segment) Drawable() bool {
	return !s.Empty() && len(s.Path) >= 2
}

// LengthMeters is the geodesic length of the segment.
func (s Segment) LengthMeters() float64 {
	if !s.Drawable() {
		return 0
	}
	return orbgeo.Length(s.Path)
}

// Split partitions line into Count contiguous, non-overlapping segments:
// [0,b1), [b1,b2), [b2,b3), [b3,n). The last segment always takes the tail.
// Short input is not an error; some segments are then empty.
func Split(line orb.LineString, bp Breakpoints) [Count]Segment {
	n := len(line)
	b := bp.Bounds(n)
	starts := [Count + 1]int{0, b[0], b[1], b[2], n}

	var segs [Count]Segment
	for i := 0; i < Count; i++ {
		pts := make(orb.LineString, starts[i+1]-starts[i])
		copy(pts, line[starts[i]:starts[i+1]])
		segs[i] = Segment{Index: i + 1, Points: pts}
	}

	for i := range segs {
		path := append(orb.LineString{}, segs[i].Points...)
		if !segs[i].Empty() {
			for j := i + 1; j < Count; j++ {
				if !segs[j].Empty() {
					path = append(path, segs[j].Points[0])
					break
				}
			}
		}
		segs[i].Path = path
	}
	return segs
}

// Fallback draws straight lines through the waypoints in the given order.
func Fallback(waypoints []orb.Point) orb.LineString {
	line := make(orb.LineString, len(waypoints))
	copy(line, waypoints)
	return line
}
