package api

import (
	"log/slog"
	"net/http"
	"runtime"
	"sync"
	"time"

	"cilaosgo/pkg/store"
	"cilaosgo/pkg/tracker"
)

// SessionCounter reports how many narrative sessions are connected.
type SessionCounter interface {
	Active() int64
}

// StatsHandler reports provider usage, narrative activity and process health.
type StatsHandler struct {
	tracker  *tracker.Tracker
	events   store.EventStore
	sessions SessionCounter
	started  time.Time

	mu     sync.Mutex
	maxMem uint64
}

// NewStatsHandler creates a StatsHandler. events and sessions may be nil.
func NewStatsHandler(t *tracker.Tracker, events store.EventStore, sessions SessionCounter) *StatsHandler {
	return &StatsHandler{
		tracker:  t,
		events:   events,
		sessions: sessions,
		started:  time.Now(),
	}
}

type ProviderStatsDTO struct {
	CacheHits     int64 `json:"cache_hits"`
	CacheMisses   int64 `json:"cache_misses"`
	APISuccess    int64 `json:"api_success"`
	APIZeroResult int64 `json:"api_zero"`
	APIFailures   int64 `json:"api_errors"`
	Fallbacks     int64 `json:"fallbacks"`
	HitRate       int64 `json:"hit_rate"`
}

type ProcessStats struct {
	MemoryMB    uint64 `json:"memory_mb"`
	MemoryMaxMB uint64 `json:"memory_max_mb"`
	Goroutines  int    `json:"goroutines"`
	UptimeSec   int64  `json:"uptime_sec"`
}

type NarrativeStats struct {
	ActiveSessions int64 `json:"active_sessions"`
	// SegmentViews counts journaled transitions per segment.
	SegmentViews map[int]int `json:"segment_views"`
}

type StatsResponse struct {
	Admin     string                      `json:"admin,omitempty"`
	Process   ProcessStats                `json:"process"`
	Narrative NarrativeStats              `json:"narrative"`
	Providers map[string]ProviderStatsDTO `json:"providers"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Process:   h.process(),
		Narrative: NarrativeStats{SegmentViews: map[int]int{}},
		Providers: make(map[string]ProviderStatsDTO),
	}
	if s, ok := SessionFrom(r.Context()); ok {
		resp.Admin = s.User
	}
	if h.sessions != nil {
		resp.Narrative.ActiveSessions = h.sessions.Active()
	}
	if h.events != nil {
		counts, err := h.events.SegmentCounts(r.Context())
		if err != nil {
			slog.Warn("Failed to read segment counts", "error", err)
		} else {
			resp.Narrative.SegmentViews = counts
		}
	}

	if h.tracker != nil {
		for provider, stats := range h.tracker.Snapshot() {
			totalCache := stats.CacheHits + stats.CacheMisses
			hitRate := int64(0)
			if totalCache > 0 {
				hitRate = (stats.CacheHits * 100) / totalCache
			}
			resp.Providers[provider] = ProviderStatsDTO{
				CacheHits:     stats.CacheHits,
				CacheMisses:   stats.CacheMisses,
				APISuccess:    stats.APISuccess,
				APIZeroResult: stats.APIZeroResult,
				APIFailures:   stats.APIFailures,
				Fallbacks:     stats.Fallbacks,
				HitRate:       hitRate,
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *StatsHandler) process() ProcessStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	h.mu.Lock()
	if m.Sys > h.maxMem {
		h.maxMem = m.Sys
	}
	maxMem := h.maxMem
	h.mu.Unlock()

	return ProcessStats{
		MemoryMB:    bToMb(m.Sys),
		MemoryMaxMB: bToMb(maxMem),
		Goroutines:  runtime.NumGoroutine(),
		UptimeSec:   int64(time.Since(h.started).Seconds()),
	}
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
