package overlay

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"cilaosgo/pkg/clock"
)

// Registry owns the overlays of one map and guards every attach/detach.
// A registry without a view is disabled and all its operations are no-ops.
type Registry struct {
	mu       sync.Mutex
	view     View
	overlays map[string]Overlay
	pois     []string
	pending  *clock.Group
	epoch    uint64
	logger   *slog.Logger
}

// NewRegistry creates a registry attached to view. view may be nil.
func NewRegistry(view View, sched clock.Scheduler) *Registry {
	if sched == nil {
		sched = clock.Real{}
	}
	return &Registry{
		view:     view,
		overlays: make(map[string]Overlay),
		pending:  clock.NewGroup(sched),
		logger:   slog.With("component", "overlay"),
	}
}

// Enabled reports whether the registry has a view to act on.
func (r *Registry) Enabled() bool {
	return r.view != nil
}

// Register makes an overlay known without attaching it.
// Registering a key again replaces the stored overlay.
func (r *Registry) Register(o Overlay) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.overlays[o.Key]; !exists && o.Kind == KindPOI {
		r.pois = append(r.pois, o.Key)
	}
	r.overlays[o.Key] = o
}

// IsRegistered reports whether key was registered.
func (r *Registry) IsRegistered(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.overlays[key]
	return ok
}

// Show attaches the overlay unless it is already attached.
func (r *Registry) Show(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.showLocked(key)
}

// Hide detaches the overlay unless it is already detached.
func (r *Registry) Hide(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hideLocked(key)
}

// IsVisible reports whether the overlay is attached to the view.
func (r *Registry) IsVisible(key string) bool {
	if r.view == nil {
		return false
	}
	return r.view.HasOverlay(key)
}

// ShowAllPOIs attaches the points of interest one after another, stagger apart.
// The first one is attached immediately. A later HideAllPOIs, ShowAllPOIs or
// CancelPending drops attaches that have not happened yet.
func (r *Registry) ShowAllPOIs(stagger time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.view == nil {
		return
	}

	r.cancelLocked()
	epoch := r.epoch
	for i, key := range r.pois {
		if i == 0 || stagger <= 0 {
			r.showLocked(key)
			continue
		}
		key := key
		r.pending.Schedule(time.Duration(i)*stagger, func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if r.epoch != epoch {
				return
			}
			r.showLocked(key)
		})
	}
}

// HideAllPOIs detaches every point of interest and drops pending staggered attaches.
func (r *Registry) HideAllPOIs() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.view == nil {
		return
	}

	r.cancelLocked()
	for _, key := range r.pois {
		r.hideLocked(key)
	}
}

// CancelPending drops staggered attaches that have not happened yet.
func (r *Registry) CancelPending() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelLocked()
}

// POIKeys returns the point of interest keys in reveal order.
func (r *Registry) POIKeys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.pois))
	copy(out, r.pois)
	return out
}

// Keys returns every registered key, sorted.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.overlays))
	for k := range r.overlays {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) showLocked(key string) {
	if r.view == nil {
		return
	}
	o, ok := r.overlays[key]
	if !ok {
		r.logger.Debug("Show of unregistered overlay ignored", "key", key)
		return
	}
	if r.view.HasOverlay(key) {
		return
	}
	r.view.Attach(o)
}

func (r *Registry) hideLocked(key string) {
	if r.view == nil {
		return
	}
	if !r.view.HasOverlay(key) {
		return
	}
	r.view.Detach(key)
}

func (r *Registry) cancelLocked() {
	r.epoch++
	if n := r.pending.Cancel(); n > 0 {
		r.logger.Debug("Cancelled pending overlay attaches", "count", n)
	}
}
