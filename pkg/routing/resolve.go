package routing

import (
	"context"
	"log/slog"

	"github.com/paulmach/orb"

	"cilaosgo/pkg/route"
)

// Source tells where a resolved polyline came from.
type Source string

const (
	SourceProvider Source = "osrm"
	SourceFallback Source = "fallback"
)

// Result is a resolved route polyline.
type Result struct {
	Line   orb.LineString
	Source Source
	// Err is the provider failure that caused a fallback, if any.
	Err error
}

type fallbackRecorder interface {
	RecordFallback()
}

// Resolve asks p for a route through waypoints once. Any failure, or a nil
// provider, yields the straight-line fallback through the waypoints in order.
// The failure is logged, never returned.
func Resolve(ctx context.Context, p Provider, waypoints []orb.Point) Result {
	if p == nil {
		slog.Info("Routing disabled, drawing straight lines", "waypoints", len(waypoints))
		return Result{Line: route.Fallback(waypoints), Source: SourceFallback}
	}

	line, err := p.Route(ctx, waypoints)
	if err == nil {
		return Result{Line: line, Source: SourceProvider}
	}

	slog.Warn("Route unavailable, using straight-line fallback", "error", err, "waypoints", len(waypoints))
	if r, ok := p.(fallbackRecorder); ok {
		r.RecordFallback()
	}
	return Result{Line: route.Fallback(waypoints), Source: SourceFallback, Err: err}
}
