package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"cilaosgo/pkg/clock"
	"cilaosgo/pkg/config"
	"cilaosgo/pkg/geo"
	"cilaosgo/pkg/logging"
	"cilaosgo/pkg/mapview"
	"cilaosgo/pkg/narrative"
	"cilaosgo/pkg/route"
	"cilaosgo/pkg/scene"
	"cilaosgo/pkg/store"
)

// Websocket message types.
const (
	// Client -> server
	MsgIntersection = "intersection"
	MsgRect         = "rect"
	MsgLayout       = "layout"
	MsgPing         = "ping"

	// Server -> client. View commands keep their own type (camera, attach, ...).
	MsgSnapshot = "snapshot"
	MsgPong     = "pong"
	MsgError    = "error"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 64 * 1024
)

// ClientMessage is a scroll report sent by the page.
type ClientMessage struct {
	Type         string           `json:"type"`
	Segment      int              `json:"segment,omitempty"`
	Intersecting bool             `json:"intersecting,omitempty"`
	Top          float64          `json:"top,omitempty"`
	Bottom       float64          `json:"bottom,omitempty"`
	Height       float64          `json:"height,omitempty"`
	Blocks       []narrative.Rect `json:"blocks,omitempty"`
}

// SnapshotMessage is the first message of every session.
type SnapshotMessage struct {
	Type     string           `json:"type"`
	Session  string           `json:"session"`
	Snapshot mapview.Snapshot `json:"snapshot"`
}

// StatusMessage carries pong and error replies.
type StatusMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// NarrativeHandler serves the live map narrative. Every connection owns its
// own scene, built on connect and closed on disconnect.
type NarrativeHandler struct {
	itinerary *geo.Itinerary
	segments  [route.Count]route.Segment
	narrative *config.NarrativeConfig
	events    store.EventStore
	sched     clock.Scheduler
	upgrader  websocket.Upgrader
	active    atomic.Int64
	logger    *slog.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewNarrativeHandler creates the handler. A nil scheduler uses real timers.
func NewNarrativeHandler(it *geo.Itinerary, segs [route.Count]route.Segment, n *config.NarrativeConfig, events store.EventStore, sched clock.Scheduler, origins []string) *NarrativeHandler {
	if sched == nil {
		sched = clock.Real{}
	}
	return &NarrativeHandler{
		itinerary: it,
		segments:  segs,
		narrative: n,
		events:    events,
		sched:     sched,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: writeWait,
			CheckOrigin:      checkOrigin(origins),
		},
		logger: slog.With("component", "narrative_ws"),
		conns:  make(map[*websocket.Conn]struct{}),
	}
}

// Active returns the number of connected sessions.
func (h *NarrativeHandler) Active() int64 {
	return h.active.Load()
}

// CloseAll drops every live connection. Registered as a server shutdown hook,
// since hijacked connections outlive http.Server.Shutdown.
func (h *NarrativeHandler) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ws := range h.conns {
		_ = ws.Close()
	}
	if n := len(h.conns); n > 0 {
		h.logger.Info("Closed narrative sessions", "count", n)
	}
}

func (h *NarrativeHandler) track(ws *websocket.Conn, live bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if live {
		h.conns[ws] = struct{}{}
	} else {
		delete(h.conns, ws)
	}
}

// checkOrigin accepts same-host pages and the configured origins.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err == nil && strings.EqualFold(u.Host, r.Host) {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

func (h *NarrativeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		h.logger.Warn("Websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	out := newOutbox()
	sc := scene.New(scene.Params{
		Itinerary: h.itinerary,
		Segments:  h.segments,
		Narrative: h.narrative,
		Scheduler: h.sched,
		Sink:      out,
		Events:    h.events,
	})
	defer sc.Close()

	h.active.Add(1)
	defer h.active.Add(-1)
	h.track(ws, true)
	defer h.track(ws, false)

	// Commands up to the snapshot's sequence are already part of it.
	snap := sc.View.Snapshot()
	out.skipThrough(snap.Seq)
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteJSON(SnapshotMessage{Type: MsgSnapshot, Session: sc.ID, Snapshot: snap}); err != nil {
		h.logger.Warn("Failed to send snapshot", "session", sc.ID, "error", err)
		return
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.writeLoop(ws, out, done)
	}()

	sc.Start()
	h.readLoop(ws, sc, out)

	close(done)
	wg.Wait()
}

func (h *NarrativeHandler) readLoop(ws *websocket.Conn, sc *scene.Scene, out *outbox) {
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("Websocket read failed", "session", sc.ID, "error", err)
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		h.dispatch(sc, out, &msg)
	}
}

func (h *NarrativeHandler) dispatch(sc *scene.Scene, out *outbox, msg *ClientMessage) {
	logging.Trace(h.logger, "Client message", "session", sc.ID, "type", msg.Type, "segment", msg.Segment)
	switch msg.Type {
	case MsgIntersection:
		sc.Observer.Observe(narrative.Signal{SegmentID: msg.Segment, Intersecting: msg.Intersecting})
	case MsgRect:
		sc.Observer.ObserveRect(narrative.Rect{SegmentID: msg.Segment, Top: msg.Top, Bottom: msg.Bottom}, msg.Height)
	case MsgLayout:
		sc.Observer.ObserveLayout(msg.Blocks, msg.Height)
	case MsgPing:
		out.push(StatusMessage{Type: MsgPong})
	default:
		out.push(StatusMessage{Type: MsgError, Message: "unknown message type: " + msg.Type})
	}
}

func (h *NarrativeHandler) writeLoop(ws *websocket.Conn, out *outbox, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-out.ready:
			for _, m := range out.drain() {
				_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
				if err := ws.WriteJSON(m); err != nil {
					h.logger.Debug("Websocket write failed", "error", err)
					// Unblock the reader so the session ends.
					_ = ws.Close()
					return
				}
			}
		}
	}
}

// outbox queues messages for the writer. Publish is called with the view
// locked, so it only appends and signals.
type outbox struct {
	mu    sync.Mutex
	queue []any
	skip  uint64
	ready chan struct{}
}

func newOutbox() *outbox {
	return &outbox{ready: make(chan struct{}, 1)}
}

// Publish implements mapview.Sink.
func (o *outbox) Publish(cmd mapview.Command) {
	o.mu.Lock()
	if cmd.Seq <= o.skip {
		o.mu.Unlock()
		return
	}
	o.queue = append(o.queue, cmd)
	o.mu.Unlock()
	o.signal()
}

func (o *outbox) push(m any) {
	o.mu.Lock()
	o.queue = append(o.queue, m)
	o.mu.Unlock()
	o.signal()
}

func (o *outbox) signal() {
	select {
	case o.ready <- struct{}{}:
	default:
	}
}

// skipThrough drops queued commands up to seq and ignores later ones at or below it.
func (o *outbox) skipThrough(seq uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.skip = seq
	kept := o.queue[:0]
	for _, m := range o.queue {
		if cmd, ok := m.(mapview.Command); ok && cmd.Seq <= seq {
			continue
		}
		kept = append(kept, m)
	}
	o.queue = kept
}

func (o *outbox) drain() []any {
	o.mu.Lock()
	defer o.mu.Unlock()
	q := o.queue
	o.queue = nil
	return q
}

var _ mapview.Sink = (*outbox)(nil)
