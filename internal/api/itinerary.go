package api

import (
	"net/http"

	"cilaosgo/pkg/config"
	"cilaosgo/pkg/geo"
	"cilaosgo/pkg/route"
)

// RouteHandler serves the resolved route and the fixed itinerary.
type RouteHandler struct {
	itinerary *geo.Itinerary
	segments  [route.Count]route.Segment
	source    string
	narrative *config.NarrativeConfig
}

// NewRouteHandler creates a RouteHandler. source tells where the polyline came from.
func NewRouteHandler(it *geo.Itinerary, segs [route.Count]route.Segment, source string, n *config.NarrativeConfig) *RouteHandler {
	return &RouteHandler{itinerary: it, segments: segs, source: source, narrative: n}
}

// HandleRoute returns the drawable segments as GeoJSON.
// GET /api/route
func (h *RouteHandler) HandleRoute(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, route.FeatureCollection(h.segments, h.source))
}

// HandleItinerary returns the waypoints, POIs and office.
// GET /api/itinerary
func (h *RouteHandler) HandleItinerary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.itinerary)
}

// NarrativeLayout tells the page how to report scroll positions.
type NarrativeLayout struct {
	Band     config.BandConfig `json:"band"`
	Segments []SegmentLayout   `json:"segments"`
}

// SegmentLayout names one narrative block.
type SegmentLayout struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// HandleNarrative returns the activation band and the narrative blocks.
// GET /api/narrative
func (h *RouteHandler) HandleNarrative(w http.ResponseWriter, r *http.Request) {
	resp := NarrativeLayout{Band: h.narrative.Band, Segments: make([]SegmentLayout, 0, len(h.narrative.Segments))}
	for _, s := range h.narrative.Segments {
		resp.Segments = append(resp.Segments, SegmentLayout{ID: s.ID, Title: s.Title, Body: s.Body})
	}
	writeJSON(w, http.StatusOK, resp)
}
