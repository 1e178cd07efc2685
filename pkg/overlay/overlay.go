// Package overlay keeps track of the markers and route lines the narrative
// attaches to the map, and makes attach/detach idempotent.
package overlay

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"

	"cilaosgo/pkg/geo"
	"cilaosgo/pkg/route"
)

// Kind classifies an overlay for the renderer.
type Kind string

const (
	KindCity    Kind = "city"
	KindPOI     Kind = "poi"
	KindOffice  Kind = "office"
	KindSegment Kind = "segment"
)

// OfficeKey is the key of the tourist office marker.
const OfficeKey = "office"

// CityKey returns the key of a waypoint marker.
func CityKey(waypoint string) string {
	return "city:" + strings.ToLower(waypoint)
}

// POIKey returns the key of the n-th point of interest (1-based).
func POIKey(n int) string {
	return fmt.Sprintf("poi:%d", n)
}

// SegmentKey returns the key of route segment n (1-based).
func SegmentKey(n int) string {
	return fmt.Sprintf("segment:%d", n)
}

// Overlay is a marker or polyline that can be attached to the map.
type Overlay struct {
	Key     string         `json:"key"`
	Kind    Kind           `json:"kind"`
	Label   string         `json:"label,omitempty"`
	Tooltip string         `json:"tooltip,omitempty"`
	Lat     float64        `json:"lat,omitempty"`
	Lon     float64        `json:"lon,omitempty"`
	Line    orb.LineString `json:"line,omitempty"`
	Style   *route.Style   `json:"style,omitempty"`
}

// View is the part of the map that overlays are attached to.
type View interface {
	Attach(o Overlay)
	Detach(key string)
	HasOverlay(key string) bool
}

// CityMarker builds the permanent marker of a waypoint.
func CityMarker(w geo.Waypoint) Overlay {
	return Overlay{Key: CityKey(w.Key), Kind: KindCity, Tooltip: w.Name, Lat: w.Lat, Lon: w.Lon}
}

// POIMarker builds the numbered marker of the n-th point of interest.
func POIMarker(n int, p geo.PointOfInterest) Overlay {
	return Overlay{Key: POIKey(n), Kind: KindPOI, Label: p.ShortLabel, Tooltip: p.FullLabel, Lat: p.Lat, Lon: p.Lon}
}

// OfficeMarker builds the tourist office marker.
func OfficeMarker(w geo.Waypoint) Overlay {
	return Overlay{Key: OfficeKey, Kind: KindOffice, Tooltip: w.Name, Lat: w.Lat, Lon: w.Lon}
}

// SegmentLine builds the drawn line of a route segment in its resting style.
// ok is false when the segment cannot be drawn.
func SegmentLine(s route.Segment) (o Overlay, ok bool) {
	if !s.Drawable() {
		return Overlay{}, false
	}
	st := route.Dim(s.Index)
	return Overlay{Key: SegmentKey(s.Index), Kind: KindSegment, Line: s.Path, Style: &st}, true
}
