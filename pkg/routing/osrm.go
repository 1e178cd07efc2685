// Package routing fetches the driving polyline through the itinerary's
// waypoints and degrades to straight lines when no route is available.
package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"cilaosgo/pkg/request"
)

// ErrNoRoute is returned when the provider answers without a usable route.
var ErrNoRoute = errors.New("no route")

// Provider computes a driving route through ordered waypoints (lon, lat).
type Provider interface {
	Route(ctx context.Context, waypoints []orb.Point) (orb.LineString, error)
}

const osrmProvider = "osrm"

// OSRM queries an OSRM server's route service.
type OSRM struct {
	client  *request.Client
	baseURL string
	profile string
	timeout time.Duration
}

// NewOSRM creates an OSRM provider. An empty profile means "driving".
func NewOSRM(client *request.Client, baseURL, profile string, timeout time.Duration) *OSRM {
	if profile == "" {
		profile = "driving"
	}
	return &OSRM{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		profile: profile,
		timeout: timeout,
	}
}

type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Geometry geojson.Geometry `json:"geometry"`
		Distance float64          `json:"distance"`
		Duration float64          `json:"duration"`
	} `json:"routes"`
}

// Route implements Provider. Responses are cached only once they parsed into a route.
func (o *OSRM) Route(ctx context.Context, waypoints []orb.Point) (orb.LineString, error) {
	if len(waypoints) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 waypoints, got %d", ErrNoRoute, len(waypoints))
	}

	coords := make([]string, len(waypoints))
	for i, p := range waypoints {
		coords[i] = fmt.Sprintf("%.6f,%.6f", p.Lon(), p.Lat())
	}
	path := strings.Join(coords, ";")
	cacheKey := fmt.Sprintf("osrm:%s:%s", o.profile, path)

	if body, hit := o.client.Cached(ctx, osrmProvider, cacheKey); hit {
		if line, err := decodeRoute(body); err == nil {
			return line, nil
		}
		slog.Warn("Discarding unreadable cached route", "key", cacheKey)
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	u := fmt.Sprintf("%s/route/v1/%s/%s?overview=full&geometries=geojson", o.baseURL, o.profile, path)
	body, err := o.client.Get(ctx, u, "")
	if err != nil {
		return nil, fmt.Errorf("osrm request: %w", err)
	}

	line, err := decodeRoute(body)
	if err != nil {
		if errors.Is(err, ErrNoRoute) {
			o.client.Tracker().TrackAPIZero(osrmProvider)
		}
		return nil, err
	}

	o.client.Store(ctx, cacheKey, body)
	slog.Debug("OSRM route received", "points", len(line))
	return line, nil
}

// RecordFallback counts a resolution that fell back to straight lines.
func (o *OSRM) RecordFallback() {
	o.client.Tracker().TrackFallback(osrmProvider)
}

func decodeRoute(body []byte) (orb.LineString, error) {
	var resp osrmResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode osrm response: %w", err)
	}
	if resp.Code != "Ok" {
		return nil, fmt.Errorf("%w: osrm code %q %s", ErrNoRoute, resp.Code, resp.Message)
	}
	if len(resp.Routes) == 0 || resp.Routes[0].Geometry.Coordinates == nil {
		return nil, fmt.Errorf("%w: empty routes", ErrNoRoute)
	}
	line, ok := resp.Routes[0].Geometry.Coordinates.(orb.LineString)
	if !ok {
		return nil, fmt.Errorf("%w: geometry is %s, not LineString", ErrNoRoute, resp.Routes[0].Geometry.Coordinates.GeoJSONType())
	}
	if len(line) < 2 {
		return nil, fmt.Errorf("%w: %d point(s)", ErrNoRoute, len(line))
	}
	return line, nil
}
