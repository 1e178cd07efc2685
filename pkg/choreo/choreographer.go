// Package choreo drives the map through the scripted stages of the narrative:
// which route segment is emphasized, where the camera flies, and which
// markers appear once it has settled.
package choreo

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"cilaosgo/pkg/clock"
	"cilaosgo/pkg/overlay"
	"cilaosgo/pkg/route"
)

// MapView is the map the choreography acts on.
type MapView interface {
	overlay.View
	SetCenterZoom(lat, lon, zoom float64)
	AnimateTo(lat, lon, zoom float64, d time.Duration)
	SetStyle(key string, st route.Style)
}

// InfoPanel shows the text of the current stage.
type InfoPanel interface {
	SetInfo(title, body string)
	SetLegend(visible bool)
}

// readiness is implemented by views that finish initialising asynchronously.
type readiness interface {
	Ready() bool
}

type noInfo struct{}

func (noInfo) SetInfo(string, string) {}
func (noInfo) SetLegend(bool)         {}

// Choreographer applies a stage on every segment change. Each transition
// cancels the delayed reveals of the ones before it, so the map always ends
// in the state of the last segment entered.
type Choreographer struct {
	mu      sync.Mutex
	view    MapView
	info    InfoPanel
	reg     *overlay.Registry
	opts    Options
	stages  map[int]Stage
	first   int
	pending *clock.Group
	epoch   uint64
	current int
	entered bool
	stopped bool

	onTransition func(Stage)
	logger       *slog.Logger
}

// New creates a choreographer. A nil view yields a disabled choreographer;
// a nil info panel discards texts; a nil registry gets one built on view.
func New(view MapView, info InfoPanel, reg *overlay.Registry, sched clock.Scheduler, opts Options) *Choreographer {
	if sched == nil {
		sched = clock.Real{}
	}
	if info == nil {
		info = noInfo{}
	}
	if reg == nil {
		reg = overlay.NewRegistry(view, sched)
	}

	c := &Choreographer{
		view:    view,
		info:    info,
		reg:     reg,
		opts:    opts,
		stages:  make(map[int]Stage, len(opts.Stages)),
		pending: clock.NewGroup(sched),
		logger:  slog.With("component", "choreo"),
	}
	ids := make([]int, 0, len(opts.Stages))
	for _, s := range opts.Stages {
		c.stages[s.ID] = s
		ids = append(ids, s.ID)
	}
	sort.Ints(ids)
	if len(ids) > 0 {
		c.first = ids[0]
	}
	return c
}

// Enabled reports whether the choreographer has a view to act on.
func (c *Choreographer) Enabled() bool {
	return c.view != nil
}

// OnTransition registers a hook called after each applied transition.
func (c *Choreographer) OnTransition(fn func(Stage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTransition = fn
}

// Start puts the camera on its initial view and, after the settle delay,
// emphasizes the first segment unless a transition happened meanwhile.
func (c *Choreographer) Start() {
	if c.view == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}

	start := c.opts.Initial
	if start.Zoom > 0 {
		c.view.SetCenterZoom(start.Lat, start.Lon, start.Zoom)
	}

	st, ok := c.stages[c.first]
	if !ok {
		return
	}
	c.scheduleLocked(c.opts.SettleDelay, func() {
		if c.entered || !c.ready() {
			return
		}
		c.emphasizeLocked(st.ID)
		c.info.SetInfo(st.Info.Title, st.Info.Body)
		c.current, c.entered = st.ID, true
		c.logger.Debug("Initial segment settled", "segment", st.ID)
	})
}

// OnSegmentChanged moves the map to the stage of segment id. Unknown ids and
// calls made before the view is ready are ignored.
func (c *Choreographer) OnSegmentChanged(id int) {
	if c.view == nil {
		return
	}
	if !c.ready() {
		c.logger.Debug("View not ready, transition skipped", "segment", id)
		return
	}
	st, ok := c.stages[id]
	if !ok {
		c.logger.Warn("Ignoring transition to unknown segment", "segment", id)
		return
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.cancelLocked()
	c.current, c.entered = id, true

	c.emphasizeLocked(id)
	cam := st.Camera
	c.view.AnimateTo(cam.Lat, cam.Lon, cam.Zoom, cam.Duration)
	c.info.SetInfo(st.Info.Title, st.Info.Body)

	switch st.Reveal {
	case RevealPOIs:
		c.hideOfficeLocked()
		c.scheduleLocked(st.RevealDelay, func() {
			c.reg.ShowAllPOIs(c.opts.POIStagger)
			c.info.SetLegend(true)
		})
	case RevealOffice:
		c.hidePOIsLocked()
		c.scheduleLocked(st.RevealDelay, c.showOfficeLocked)
	default:
		c.hidePOIsLocked()
		c.hideOfficeLocked()
	}
	hook := c.onTransition
	c.mu.Unlock()

	c.logger.Debug("Transition applied", "segment", id, "reveal", st.Reveal)
	if hook != nil {
		hook(st)
	}
}

// Current returns the segment the map was last moved to.
func (c *Choreographer) Current() (id int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.entered
}

// Stop cancels every pending step. Later calls are no-ops.
func (c *Choreographer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	c.cancelLocked()
}

func (c *Choreographer) ready() bool {
	if r, ok := c.view.(readiness); ok {
		return r.Ready()
	}
	return true
}

// scheduleLocked runs fn after d under the lock, unless a later transition or Stop came first.
func (c *Choreographer) scheduleLocked(d time.Duration, fn func()) {
	epoch := c.epoch
	c.pending.Schedule(d, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.stopped || c.epoch != epoch {
			return
		}
		fn()
	})
}

func (c *Choreographer) cancelLocked() {
	c.epoch++
	c.pending.Cancel()
	c.reg.CancelPending()
}

func (c *Choreographer) emphasizeLocked(id int) {
	for i := 1; i <= route.Count; i++ {
		key := overlay.SegmentKey(i)
		if !c.view.HasOverlay(key) {
			continue
		}
		if i == id {
			c.view.SetStyle(key, route.Emphasized(i))
		} else {
			c.view.SetStyle(key, route.Dim(i))
		}
	}
}

func (c *Choreographer) hidePOIsLocked() {
	c.reg.HideAllPOIs()
	c.info.SetLegend(false)
	c.restoreDestinationLocked()
}

func (c *Choreographer) hideOfficeLocked() {
	c.reg.Hide(overlay.OfficeKey)
	c.restoreDestinationLocked()
}

func (c *Choreographer) showOfficeLocked() {
	if c.opts.DestinationKey != "" {
		c.reg.Hide(c.opts.DestinationKey)
	}
	c.reg.Show(overlay.OfficeKey)
}

// restoreDestinationLocked puts the generic city marker back while the office is hidden.
func (c *Choreographer) restoreDestinationLocked() {
	if c.opts.DestinationKey == "" || c.reg.IsVisible(overlay.OfficeKey) {
		return
	}
	c.reg.Show(c.opts.DestinationKey)
}
