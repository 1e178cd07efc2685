package route

// Style is the visual state of a drawn segment.
type Style struct {
	Color   string  `json:"color"`
	Weight  float64 `json:"weight"`
	Opacity float64 `json:"opacity"`
	Dash    string  `json:"dash,omitempty"`
}

// RouteColor is the stroke color of every segment.
const RouteColor = "#D21F3C"

const (
	dimOpacity      = 0.3
	fullOpacity     = 1.0
	baseWeight      = 4
	mountainWeight  = 5 // segment 4 keeps a heavier stroke even when dim
	emphasisBonus   = 1
	mountainDash    = "10, 5"
	mountainSegment = Count
)

// Dim is the resting style of segment i.
func Dim(i int) Style {
	s := Style{Color: RouteColor, Weight: baseWeight, Opacity: dimOpacity}
	if i == mountainSegment {
		s.Weight = mountainWeight
		s.Dash = mountainDash
	}
	return s
}

// Emphasized is the style of the segment the narrative is currently on.
func Emphasized(i int) Style {
	s := Dim(i)
	s.Weight += emphasisBonus
	s.Opacity = fullOpacity
	return s
}
