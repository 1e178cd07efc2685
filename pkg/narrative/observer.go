package narrative

import (
	"log/slog"
	"sync"

	"cilaosgo/pkg/logging"
)

// Signal is one visibility report for a narrative block.
type Signal struct {
	SegmentID    int  `json:"segment"`
	Intersecting bool `json:"intersecting"`
}

// Observer reports which narrative block currently sits in the activation band.
// Listeners are called once per change of block, never twice in a row with the same id.
type Observer struct {
	mu        sync.Mutex
	band      Band
	ids       map[int]bool
	current   int
	active    bool
	listeners []func(id int)
	logger    *slog.Logger
}

// NewObserver observes the blocks tagged with ids. Without ids the observer is
// disabled: every signal is ignored.
func NewObserver(ids []int, band Band) *Observer {
	o := &Observer{
		band:   band,
		ids:    make(map[int]bool, len(ids)),
		logger: slog.With("component", "narrative"),
	}
	for _, id := range ids {
		o.ids[id] = true
	}
	return o
}

// Disabled returns an observer that ignores every signal.
func Disabled() *Observer {
	return NewObserver(nil, DefaultBand)
}

// Enabled reports whether any block is observed.
func (o *Observer) Enabled() bool {
	return len(o.ids) > 0
}

// Band returns the activation band.
func (o *Observer) Band() Band {
	return o.band
}

// OnChange registers a listener for segment changes.
func (o *Observer) OnChange(fn func(id int)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, fn)
}

// Observe handles a visibility report. Only blocks entering the band change
// the current segment; a block leaving it does not.
func (o *Observer) Observe(s Signal) {
	logging.Trace(o.logger, "Intersection signal", "segment", s.SegmentID, "intersecting", s.Intersecting)
	if !s.Intersecting {
		return
	}
	o.change(s.SegmentID)
}

// ObserveRect handles the geometric form of a visibility report.
func (o *Observer) ObserveRect(r Rect, height float64) {
	o.Observe(Signal{SegmentID: r.SegmentID, Intersecting: o.band.Intersects(r.Top, r.Bottom, height)})
}

// ObserveLayout handles the positions of all blocks at once and activates the
// one holding the largest share of the band.
func (o *Observer) ObserveLayout(blocks []Rect, height float64) {
	if id, ok := o.band.Pick(blocks, height); ok {
		o.change(id)
	}
}

// Current returns the active segment. ok is false before any block entered the band.
func (o *Observer) Current() (id int, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current, o.active
}

// Reset forgets the active segment, so the next block entering the band is reported again.
func (o *Observer) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.current, o.active = 0, false
}

func (o *Observer) change(id int) {
	if !o.Enabled() {
		return
	}
	if !o.ids[id] {
		o.logger.Warn("Ignoring signal for unknown segment", "segment", id)
		return
	}

	o.mu.Lock()
	if o.active && o.current == id {
		o.mu.Unlock()
		return
	}
	o.current, o.active = id, true
	listeners := make([]func(int), len(o.listeners))
	copy(listeners, o.listeners)
	o.mu.Unlock()

	o.logger.Debug("Segment changed", "segment", id)
	for _, fn := range listeners {
		fn(id)
	}
}
