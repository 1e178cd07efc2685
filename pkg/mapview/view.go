// Package mapview holds the server-side state of one client's map and
// publishes every change as a command for the browser to replay.
package mapview

import (
	"sync"
	"time"

	"cilaosgo/pkg/overlay"
	"cilaosgo/pkg/route"
)

// CommandType identifies a view mutation.
type CommandType string

const (
	CmdCamera CommandType = "camera"
	CmdAttach CommandType = "attach"
	CmdDetach CommandType = "detach"
	CmdStyle  CommandType = "style"
	CmdInfo   CommandType = "info"
	CmdLegend CommandType = "legend"
)

// Camera is where the map looks. Animated moves carry their duration.
type Camera struct {
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Zoom       float64 `json:"zoom"`
	Animate    bool    `json:"animate"`
	DurationMS int64   `json:"duration_ms,omitempty"`
}

// Info is the content of the info panel.
type Info struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Command is one change of the view, in the order it happened.
type Command struct {
	Seq     uint64           `json:"seq"`
	Type    CommandType      `json:"type"`
	Key     string           `json:"key,omitempty"`
	Overlay *overlay.Overlay `json:"overlay,omitempty"`
	Camera  *Camera          `json:"camera,omitempty"`
	Style   *route.Style     `json:"style,omitempty"`
	Info    *Info            `json:"info,omitempty"`
	Legend  *bool            `json:"legend,omitempty"`
}

// Sink receives the commands of a view. Publish is called with the view
// locked and must not call back into it.
type Sink interface {
	Publish(cmd Command)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(cmd Command)

// Publish implements Sink.
func (f SinkFunc) Publish(cmd Command) { f(cmd) }

// Snapshot is the full state of a view.
type Snapshot struct {
	Seq      uint64            `json:"seq"`
	Ready    bool              `json:"ready"`
	Camera   Camera            `json:"camera"`
	Overlays []overlay.Overlay `json:"overlays"`
	Info     Info              `json:"info"`
	Legend   bool              `json:"legend"`
}

// View is the map of one client. It implements the map view and info panel
// the choreography acts on.
type View struct {
	mu       sync.Mutex
	sink     Sink
	ready    bool
	overlays map[string]overlay.Overlay
	order    []string
	camera   Camera
	info     Info
	legend   bool
	seq      uint64
}

// New creates an empty view publishing to sink. sink may be nil.
func New(sink Sink) *View {
	return &View{
		sink:     sink,
		overlays: make(map[string]overlay.Overlay),
	}
}

// MarkReady flags the view as initialised. Until then the choreography leaves it alone.
func (v *View) MarkReady() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ready = true
}

// Ready reports whether MarkReady was called.
func (v *View) Ready() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ready
}

// Attach adds an overlay. Attaching a key twice is a no-op.
func (v *View) Attach(o overlay.Overlay) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.overlays[o.Key]; ok {
		return
	}
	if o.Style != nil {
		st := *o.Style
		o.Style = &st
	}
	v.overlays[o.Key] = o
	v.order = append(v.order, o.Key)
	v.publish(Command{Type: CmdAttach, Key: o.Key, Overlay: &o})
}

// Detach removes an overlay. Detaching a missing key is a no-op.
func (v *View) Detach(key string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.overlays[key]; !ok {
		return
	}
	delete(v.overlays, key)
	for i, k := range v.order {
		if k == key {
			v.order = append(v.order[:i], v.order[i+1:]...)
			break
		}
	}
	v.publish(Command{Type: CmdDetach, Key: key})
}

// HasOverlay reports whether key is attached.
func (v *View) HasOverlay(key string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.overlays[key]
	return ok
}

// SetCenterZoom moves the camera without animation.
func (v *View) SetCenterZoom(lat, lon, zoom float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.camera = Camera{Lat: lat, Lon: lon, Zoom: zoom}
	cam := v.camera
	v.publish(Command{Type: CmdCamera, Camera: &cam})
}

// AnimateTo flies the camera to the target over d.
func (v *View) AnimateTo(lat, lon, zoom float64, d time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.camera = Camera{Lat: lat, Lon: lon, Zoom: zoom, Animate: true, DurationMS: d.Milliseconds()}
	cam := v.camera
	v.publish(Command{Type: CmdCamera, Camera: &cam})
}

// SetStyle restyles an attached line. Unknown keys and unchanged styles are ignored.
func (v *View) SetStyle(key string, st route.Style) {
	v.mu.Lock()
	defer v.mu.Unlock()
	o, ok := v.overlays[key]
	if !ok {
		return
	}
	if o.Style != nil && *o.Style == st {
		return
	}
	o.Style = &st
	v.overlays[key] = o
	out := st
	v.publish(Command{Type: CmdStyle, Key: key, Style: &out})
}

// SetInfo writes the info panel.
func (v *View) SetInfo(title, body string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	next := Info{Title: title, Body: body}
	if next == v.info {
		return
	}
	v.info = next
	v.publish(Command{Type: CmdInfo, Info: &next})
}

// SetLegend shows or hides the POI legend.
func (v *View) SetLegend(visible bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.legend == visible {
		return
	}
	v.legend = visible
	v.publish(Command{Type: CmdLegend, Legend: &visible})
}

// Snapshot returns a copy of the current state. Overlays are in attach order.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := Snapshot{
		Seq:      v.seq,
		Ready:    v.ready,
		Camera:   v.camera,
		Overlays: make([]overlay.Overlay, 0, len(v.order)),
		Info:     v.info,
		Legend:   v.legend,
	}
	for _, k := range v.order {
		o := v.overlays[k]
		if o.Style != nil {
			st := *o.Style
			o.Style = &st
		}
		s.Overlays = append(s.Overlays, o)
	}
	return s
}

func (v *View) publish(cmd Command) {
	v.seq++
	cmd.Seq = v.seq
	if v.sink != nil {
		v.sink.Publish(cmd)
	}
}
