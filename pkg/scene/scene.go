// Package scene assembles one client's narrative: its map view, overlay
// registry, scroll observer and choreographer, wired together and torn down as a unit.
package scene

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"cilaosgo/pkg/choreo"
	"cilaosgo/pkg/clock"
	"cilaosgo/pkg/config"
	"cilaosgo/pkg/geo"
	"cilaosgo/pkg/logging"
	"cilaosgo/pkg/mapview"
	"cilaosgo/pkg/narrative"
	"cilaosgo/pkg/overlay"
	"cilaosgo/pkg/route"
	"cilaosgo/pkg/store"
)

const journalTimeout = 2 * time.Second

// Params describes what a scene is built from.
type Params struct {
	Itinerary *geo.Itinerary
	Segments  [route.Count]route.Segment
	Narrative *config.NarrativeConfig
	Scheduler clock.Scheduler
	Sink      mapview.Sink
	// Events journals segment changes. Optional.
	Events store.EventStore
	// ID names the scene in logs and the journal. Generated when empty.
	ID string
}

// Scene is the narrative of one client.
type Scene struct {
	ID       string
	View     *mapview.View
	Registry *overlay.Registry
	Observer *narrative.Observer
	Choreo   *choreo.Choreographer

	events    store.EventStore
	logger    *slog.Logger
	closeOnce sync.Once
}

// New builds a scene. Overlays are registered and the permanent ones
// (waypoint markers and drawable segments) attached, but the choreography
// only acts once Start is called.
func New(p Params) *Scene {
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	n := p.Narrative
	if n == nil {
		def := config.DefaultNarrative()
		n = &def
	}
	it := p.Itinerary
	if it == nil {
		it = geo.DefaultItinerary()
	}

	s := &Scene{
		ID:     id,
		View:   mapview.New(p.Sink),
		events: p.Events,
		logger: slog.With("component", "scene", "session", id),
	}
	s.Registry = overlay.NewRegistry(s.View, p.Scheduler)

	destKey := s.populate(it, p.Segments)

	opts := choreo.OptionsFromConfig(n, destKey)
	s.Choreo = choreo.New(s.View, s.View, s.Registry, p.Scheduler, opts)
	s.Choreo.OnTransition(s.journal)

	ids := make([]int, 0, len(opts.Stages))
	for _, st := range opts.Stages {
		ids = append(ids, st.ID)
	}
	s.Observer = narrative.NewObserver(ids, narrative.Band{Top: n.Band.Top, Bottom: n.Band.Bottom})
	s.Observer.OnChange(s.Choreo.OnSegmentChanged)

	return s
}

func (s *Scene) populate(it *geo.Itinerary, segs [route.Count]route.Segment) (destKey string) {
	for _, w := range it.Waypoints {
		m := overlay.CityMarker(w)
		s.Registry.Register(m)
		s.Registry.Show(m.Key)
	}
	if dest, ok := it.Destination(); ok {
		destKey = overlay.CityKey(dest.Key)
	}
	for i, p := range it.POIs {
		s.Registry.Register(overlay.POIMarker(i+1, p))
	}
	s.Registry.Register(overlay.OfficeMarker(it.Office))

	drawn := 0
	for _, seg := range segs {
		o, ok := overlay.SegmentLine(seg)
		if !ok {
			s.logger.Debug("Segment not drawn", "segment", seg.Index, "points", len(seg.Points))
			continue
		}
		s.Registry.Register(o)
		s.Registry.Show(o.Key)
		drawn++
	}
	s.logger.Debug("Scene populated", "waypoints", len(it.Waypoints), "pois", len(it.POIs), "segments", drawn)
	return destKey
}

// Start marks the view ready and lets the choreography run.
func (s *Scene) Start() {
	s.View.MarkReady()
	s.Choreo.Start()
	s.logger.Info("Narrative session started")
}

// Close cancels every pending step. The view keeps its last state.
func (s *Scene) Close() {
	s.closeOnce.Do(func() {
		s.Choreo.Stop()
		s.Registry.CancelPending()
		s.logger.Info("Narrative session closed")
	})
}

func (s *Scene) journal(st choreo.Stage) {
	logging.LogEvent(&logging.Event{
		Timestamp: time.Now(),
		Session:   s.ID,
		Type:      "segment",
		Title:     st.Info.Title,
		Summary:   fmt.Sprintf("segment %d, reveal %s", st.ID, st.Reveal),
	})
	if s.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if err := s.events.RecordSegment(ctx, s.ID, st.ID); err != nil {
		s.logger.Warn("Failed to journal segment", "segment", st.ID, "error", err)
	}
}
