package choreo

import (
	"time"

	"cilaosgo/pkg/config"
)

// Reveal names what a stage shows once the camera has settled.
type Reveal string

const (
	RevealNone   Reveal = "none"
	RevealPOIs   Reveal = "pois"
	RevealOffice Reveal = "office"
)

// Camera is a fly-to target.
type Camera struct {
	Lat      float64       `json:"lat"`
	Lon      float64       `json:"lon"`
	Zoom     float64       `json:"zoom"`
	Duration time.Duration `json:"duration"`
}

// Info is the text of the info panel for a stage.
type Info struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Stage is the scripted choreography of one narrative segment.
type Stage struct {
	ID          int
	Camera      Camera
	Reveal      Reveal
	RevealDelay time.Duration
	Info        Info
}

// Options configures a Choreographer.
type Options struct {
	Stages      []Stage
	Initial     Camera
	SettleDelay time.Duration
	POIStagger  time.Duration
	// DestinationKey is the overlay key of the generic destination-city marker.
	DestinationKey string
}

// OptionsFromConfig builds choreography options from the narrative config.
func OptionsFromConfig(n *config.NarrativeConfig, destinationKey string) Options {
	opts := Options{
		Initial:        cameraFrom(n.Initial),
		SettleDelay:    time.Duration(n.SettleDelay),
		POIStagger:     time.Duration(n.POIStagger),
		DestinationKey: destinationKey,
	}
	for _, s := range n.Segments {
		reveal := Reveal(s.Reveal)
		if reveal == "" {
			reveal = RevealNone
		}
		opts.Stages = append(opts.Stages, Stage{
			ID:          s.ID,
			Camera:      cameraFrom(s.Camera),
			Reveal:      reveal,
			RevealDelay: time.Duration(s.RevealDelay),
			Info:        Info{Title: s.Title, Body: s.Body},
		})
	}
	return opts
}

func cameraFrom(c config.CameraSettings) Camera {
	return Camera{Lat: c.Lat, Lon: c.Lon, Zoom: c.Zoom, Duration: time.Duration(c.Duration)}
}
