package scene

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cilaosgo/pkg/clock"
	"cilaosgo/pkg/geo"
	"cilaosgo/pkg/mapview"
	"cilaosgo/pkg/narrative"
	"cilaosgo/pkg/overlay"
	"cilaosgo/pkg/route"
	"cilaosgo/pkg/routing"
)

type memEvents struct {
	mu   sync.Mutex
	segs []int
	err  error
}

func (m *memEvents) RecordSegment(_ context.Context, _ string, segment int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.segs = append(m.segs, segment)
	return m.err
}

func (m *memEvents) SegmentCounts(context.Context) (map[int]int, error) {
	return nil, nil
}

func straightLine(n int) orb.LineString {
	ls := make(orb.LineString, n)
	for i := range ls {
		ls[i] = orb.Point{55.3 + float64(i)*0.002, -20.9 - float64(i)*0.002}
	}
	return ls
}

func newScene(t *testing.T, line orb.LineString, ev *memEvents) (*Scene, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual()
	p := Params{
		Itinerary: geo.DefaultItinerary(),
		Segments:  route.Split(line, route.DefaultBreakpoints),
		Scheduler: clk,
		ID:        "test-session",
	}
	if ev != nil {
		p.Events = ev
	}
	s := New(p)
	t.Cleanup(s.Close)
	return s, clk
}

func visiblePOIs(s *Scene) int {
	n := 0
	for _, k := range s.Registry.POIKeys() {
		if s.View.HasOverlay(k) {
			n++
		}
	}
	return n
}

func TestNew_AttachesPermanentOverlays(t *testing.T) {
	s, _ := newScene(t, straightLine(100), nil)

	snap := s.View.Snapshot()
	assert.False(t, snap.Ready)
	assert.Len(t, snap.Overlays, 5+route.Count)
	for i := 1; i <= route.Count; i++ {
		assert.True(t, s.View.HasOverlay(overlay.SegmentKey(i)))
	}
	assert.True(t, s.View.HasOverlay(overlay.CityKey("cilaos")))
	assert.False(t, s.View.HasOverlay(overlay.OfficeKey))
	assert.Zero(t, visiblePOIs(s))
	assert.Len(t, s.Registry.POIKeys(), 4)
}

func TestNew_GeneratesID(t *testing.T) {
	s := New(Params{Scheduler: clock.NewManual()})
	defer s.Close()
	assert.Len(t, s.ID, 36)
}

func TestSignalsBeforeStartAreIgnored(t *testing.T) {
	s, clk := newScene(t, straightLine(100), nil)

	s.Observer.Observe(narrative.Signal{SegmentID: 4, Intersecting: true})
	clk.Advance(5 * time.Second)
	assert.False(t, s.View.HasOverlay(overlay.OfficeKey))
	_, ok := s.Choreo.Current()
	assert.False(t, ok)
}

func TestScrollSkip_OneToFour(t *testing.T) {
	ev := &memEvents{}
	s, clk := newScene(t, straightLine(100), ev)
	s.Start()

	s.Observer.Observe(narrative.Signal{SegmentID: 1, Intersecting: true})
	s.Observer.Observe(narrative.Signal{SegmentID: 1, Intersecting: true})
	clk.Advance(300 * time.Millisecond)
	s.Observer.Observe(narrative.Signal{SegmentID: 4, Intersecting: true})
	clk.Advance(5 * time.Second)

	assert.True(t, s.View.HasOverlay(overlay.OfficeKey))
	assert.False(t, s.View.HasOverlay(overlay.CityKey("cilaos")))
	assert.Zero(t, visiblePOIs(s))

	snap := s.View.Snapshot()
	for _, o := range snap.Overlays {
		if o.Kind != overlay.KindSegment {
			continue
		}
		if o.Key == overlay.SegmentKey(4) {
			assert.Equal(t, route.Emphasized(4), *o.Style)
		} else {
			assert.Equal(t, 0.3, o.Style.Opacity, o.Key)
		}
	}
	assert.Equal(t, 15.0, snap.Camera.Zoom)
	assert.Equal(t, []int{1, 4}, ev.segs)
}

func TestMutualExclusion_BackToOne(t *testing.T) {
	s, clk := newScene(t, straightLine(100), nil)
	s.Start()

	s.Observer.Observe(narrative.Signal{SegmentID: 3, Intersecting: true})
	clk.Advance(3 * time.Second)
	require.Equal(t, 4, visiblePOIs(s))

	s.Observer.Observe(narrative.Signal{SegmentID: 4, Intersecting: true})
	clk.Advance(3 * time.Second)
	require.True(t, s.View.HasOverlay(overlay.OfficeKey))

	s.Observer.Observe(narrative.Signal{SegmentID: 2, Intersecting: true})
	clk.Advance(3 * time.Second)
	assert.Zero(t, visiblePOIs(s))
	assert.False(t, s.View.HasOverlay(overlay.OfficeKey))
	assert.True(t, s.View.HasOverlay(overlay.CityKey("cilaos")))
	assert.False(t, s.View.Snapshot().Legend)
}

func TestFallbackScenario(t *testing.T) {
	wps := []orb.Point{{0, 0}, {1, 1}, {2, 2}}
	res := routing.Resolve(context.Background(), failingProvider{}, wps)
	require.Equal(t, routing.SourceFallback, res.Source)

	s, clk := newScene(t, res.Line, nil)
	s.Start()

	assert.False(t, s.View.HasOverlay(overlay.SegmentKey(1)))
	assert.True(t, s.View.HasOverlay(overlay.SegmentKey(2)))
	assert.False(t, s.View.HasOverlay(overlay.SegmentKey(3)))
	assert.True(t, s.View.HasOverlay(overlay.SegmentKey(4)))

	for id := 1; id <= route.Count; id++ {
		s.Observer.Observe(narrative.Signal{SegmentID: id, Intersecting: true})
		clk.Advance(time.Second)
	}
	clk.Advance(5 * time.Second)

	cur, ok := s.Choreo.Current()
	assert.True(t, ok)
	assert.Equal(t, 4, cur)
	assert.True(t, s.View.HasOverlay(overlay.OfficeKey))
}

func TestSettleThenLayout(t *testing.T) {
	s, clk := newScene(t, straightLine(100), nil)
	s.Start()
	clk.Advance(time.Second)

	cur, ok := s.Choreo.Current()
	require.True(t, ok)
	assert.Equal(t, 1, cur)
	_, observed := s.Observer.Current()
	assert.False(t, observed, "settling does not touch the observer")

	s.Observer.ObserveLayout([]narrative.Rect{
		{SegmentID: 2, Top: -500, Bottom: 100},
		{SegmentID: 3, Top: 350, Bottom: 900},
	}, 1000)
	cur, _ = s.Choreo.Current()
	assert.Equal(t, 3, cur)
}

func TestJournalFailureIsLogged(t *testing.T) {
	ev := &memEvents{err: errors.New("disk full")}
	s, _ := newScene(t, straightLine(100), ev)
	s.Start()

	assert.NotPanics(t, func() {
		s.Observer.Observe(narrative.Signal{SegmentID: 2, Intersecting: true})
	})
	assert.Equal(t, []int{2}, ev.segs)
}

func TestClose_StopsPendingReveals(t *testing.T) {
	var cmds []mapview.Command
	clk := clock.NewManual()
	s := New(Params{
		Segments:  route.Split(straightLine(100), route.DefaultBreakpoints),
		Scheduler: clk,
		Sink:      mapview.SinkFunc(func(c mapview.Command) { cmds = append(cmds, c) }),
	})
	s.Start()

	s.Observer.Observe(narrative.Signal{SegmentID: 3, Intersecting: true})
	s.Close()
	s.Close()
	n := len(cmds)
	clk.Advance(10 * time.Second)
	assert.Len(t, cmds, n, "nothing published after close")
}

type failingProvider struct{}

func (failingProvider) Route(context.Context, []orb.Point) (orb.LineString, error) {
	return nil, routing.ErrNoRoute
}
