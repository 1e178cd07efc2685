// Package geo holds the fixed itinerary of the Cilaos map narrative:
// the route waypoints, the destination's points of interest and the tourist office.
package geo

import (
	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// Waypoint is a named geographic anchor used for route construction and as a permanent marker.
type Waypoint struct {
	Key  string  `json:"key" yaml:"key"`
	Name string  `json:"name" yaml:"name"`
	Lat  float64 `json:"lat" yaml:"lat"`
	Lon  float64 `json:"lon" yaml:"lon"`
}

// Point returns the waypoint as an orb point (lon, lat).
func (w Waypoint) Point() orb.Point {
	return orb.Point{w.Lon, w.Lat}
}

// PointOfInterest is a local attraction shown during the arrival phase.
type PointOfInterest struct {
	ShortLabel string  `json:"short_label" yaml:"short_label"`
	FullLabel  string  `json:"full_label" yaml:"full_label"`
	Lat        float64 `json:"lat" yaml:"lat"`
	Lon        float64 `json:"lon" yaml:"lon"`
}

// Point returns the POI as an orb point (lon, lat).
func (p PointOfInterest) Point() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// Itinerary is the ordered route plus what is revealed at its end.
// The last waypoint is the destination.
type Itinerary struct {
	Waypoints []Waypoint        `json:"waypoints"`
	POIs      []PointOfInterest `json:"pois"`
	Office    Waypoint          `json:"office"`
}

// Destination returns the final waypoint. ok is false for an empty itinerary.
func (it *Itinerary) Destination() (w Waypoint, ok bool) {
	if len(it.Waypoints) == 0 {
		return Waypoint{}, false
	}
	return it.Waypoints[len(it.Waypoints)-1], true
}

// Points returns the waypoints in order as orb points.
func (it *Itinerary) Points() []orb.Point {
	pts := make([]orb.Point, len(it.Waypoints))
	for i, w := range it.Waypoints {
		pts[i] = w.Point()
	}
	return pts
}

// DefaultItinerary is the airport to Cilaos drive.
func DefaultItinerary() *Itinerary {
	return &Itinerary{
		Waypoints: []Waypoint{
			{Key: "airport", Name: "Aéroport Roland Garros", Lat: -20.8900, Lon: 55.5164},
			{Key: "port", Name: "Le Port", Lat: -20.9396, Lon: 55.2906},
			{Key: "stleu", Name: "Saint-Leu", Lat: -21.1708, Lon: 55.2885},
			{Key: "stlouis", Name: "Saint-Louis", Lat: -21.2808, Lon: 55.4119},
			{Key: "cilaos", Name: "Cilaos", Lat: -21.1339, Lon: 55.4708},
		},
		POIs: []PointOfInterest{
			{ShortLabel: "1", FullLabel: "Roche Merveilleuse", Lat: -21.1339, Lon: 55.4556},
			{ShortLabel: "2", FullLabel: "Col du Taïbit", Lat: -21.1208, Lon: 55.4878},
			{ShortLabel: "3", FullLabel: "Cascade Bras Rouge", Lat: -21.1450, Lon: 55.4750},
			{ShortLabel: "4", FullLabel: "Thermes de Cilaos", Lat: -21.1333, Lon: 55.4708},
		},
		Office: Waypoint{Key: "office", Name: "Office de Tourisme", Lat: -21.1339, Lon: 55.4708},
	}
}

// Distance returns the haversine distance in meters between two lat/lon pairs.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	return orbgeo.DistanceHaversine(orb.Point{lon1, lat1}, orb.Point{lon2, lat2})
}
