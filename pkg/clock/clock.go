// Package clock schedules delayed callbacks behind an interface so that
// timer-driven choreography can be replayed deterministically in tests.
package clock

import (
	"sync"
	"time"
)

// Timer is a scheduled callback that can be stopped.
type Timer interface {
	// Stop prevents the callback from firing. It reports whether the call stopped the timer.
	Stop() bool
}

// Scheduler runs f after d has elapsed.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Real schedules on the runtime timer wheel.
type Real struct{}

// AfterFunc implements Scheduler.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Group tracks timers scheduled together so they can be cancelled as one.
// A cancelled group stays usable: the next Schedule starts a new batch.
type Group struct {
	mu     sync.Mutex
	sched  Scheduler
	timers []Timer
}

// NewGroup creates a group on top of s.
func NewGroup(s Scheduler) *Group {
	return &Group{sched: s}
}

// Schedule adds a timer to the group.
func (g *Group) Schedule(d time.Duration, f func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.timers = append(g.timers, g.sched.AfterFunc(d, f))
}

// Cancel stops every timer in the group and returns how many were still pending.
func (g *Group) Cancel() int {
	g.mu.Lock()
	timers := g.timers
	g.timers = nil
	g.mu.Unlock()

	stopped := 0
	for _, t := range timers {
		if t.Stop() {
			stopped++
		}
	}
	return stopped
}
