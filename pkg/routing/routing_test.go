package routing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cilaosgo/pkg/cache"
	"cilaosgo/pkg/request"
	"cilaosgo/pkg/route"
	"cilaosgo/pkg/tracker"
)

const okRoute = `{"code":"Ok","routes":[{"distance":1234.5,"duration":99,
 "geometry":{"type":"LineString","coordinates":[[55.5164,-20.89],[55.40,-20.93],[55.2906,-20.9396]]}}]}`

func osrmServer(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.True(t, strings.HasPrefix(r.URL.Path, "/route/v1/driving/"), r.URL.Path)
		assert.Equal(t, "full", r.URL.Query().Get("overview"))
		assert.Equal(t, "geojson", r.URL.Query().Get("geometries"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(svr.Close)
	return svr, &calls
}

func newOSRM(url string, c cache.Cacher) (*OSRM, *tracker.Tracker) {
	tr := tracker.New()
	client := request.New(c, tr, request.ClientConfig{Retries: 1, Timeout: 2 * time.Second, BaseDelay: time.Millisecond})
	return NewOSRM(client, url, "", time.Second), tr
}

var twoPoints = []orb.Point{{55.5164, -20.89}, {55.2906, -20.9396}}

func TestOSRM_Route(t *testing.T) {
	svr, calls := osrmServer(t, http.StatusOK, okRoute)
	o, _ := newOSRM(svr.URL, cache.NewMemory(0))

	line, err := o.Route(context.Background(), twoPoints)
	require.NoError(t, err)
	assert.Len(t, line, 3)
	assert.Equal(t, orb.Point{55.5164, -20.89}, line[0])

	_, err = o.Route(context.Background(), twoPoints)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls), "second lookup is served from cache")
}

func TestOSRM_Failures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantNoRte bool
	}{
		{"no route code", http.StatusOK, `{"code":"NoRoute","message":"Impossible route","routes":[]}`, true},
		{"empty routes", http.StatusOK, `{"code":"Ok","routes":[]}`, true},
		{"point geometry", http.StatusOK, `{"code":"Ok","routes":[{"geometry":{"type":"Point","coordinates":[55.5,-21.1]}}]}`, true},
		{"single point", http.StatusOK, `{"code":"Ok","routes":[{"geometry":{"type":"LineString","coordinates":[[55.5,-21.1]]}}]}`, true},
		{"malformed json", http.StatusOK, `{"code":`, false},
		{"server error", http.StatusInternalServerError, `oops`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svr, calls := osrmServer(t, tt.status, tt.body)
			c := cache.NewMemory(0)
			o, _ := newOSRM(svr.URL, c)

			_, err := o.Route(context.Background(), twoPoints)
			require.Error(t, err)
			assert.Equal(t, tt.wantNoRte, errors.Is(err, ErrNoRoute), "err = %v", err)
			assert.Zero(t, c.Len(), "failed responses are never cached")
			assert.Equal(t, int32(1), atomic.LoadInt32(calls), "single attempt")
		})
	}
}

func TestOSRM_TooFewWaypoints(t *testing.T) {
	o, _ := newOSRM("http://127.0.0.1:1", nil)
	_, err := o.Route(context.Background(), twoPoints[:1])
	assert.ErrorIs(t, err, ErrNoRoute)
}

type failing struct{ calls int }

func (f *failing) Route(context.Context, []orb.Point) (orb.LineString, error) {
	f.calls++
	return nil, errors.New("network down")
}

func TestResolve_Fallback(t *testing.T) {
	wps := []orb.Point{{0, 0}, {1, 1}, {2, 2}}
	p := &failing{}

	res := Resolve(context.Background(), p, wps)
	assert.Equal(t, SourceFallback, res.Source)
	assert.Equal(t, orb.LineString{{0, 0}, {1, 1}, {2, 2}}, res.Line, "waypoint order is preserved")
	assert.Error(t, res.Err)
	assert.Equal(t, 1, p.calls, "no retry")

	segs := route.Split(res.Line, route.DefaultBreakpoints)
	assert.Empty(t, segs[0].Points)
	assert.Equal(t, orb.LineString{{0, 0}}, segs[1].Points)
	assert.Empty(t, segs[2].Points)
	assert.Equal(t, orb.LineString{{1, 1}, {2, 2}}, segs[3].Points)
}

func TestResolve_Provider(t *testing.T) {
	svr, _ := osrmServer(t, http.StatusOK, okRoute)
	o, _ := newOSRM(svr.URL, nil)

	res := Resolve(context.Background(), o, twoPoints)
	assert.Equal(t, SourceProvider, res.Source)
	assert.Len(t, res.Line, 3)
	assert.NoError(t, res.Err)
}

func TestResolve_CountsFallback(t *testing.T) {
	svr, _ := osrmServer(t, http.StatusOK, `{"code":"NoRoute"}`)
	o, tr := newOSRM(svr.URL, nil)

	res := Resolve(context.Background(), o, twoPoints)
	assert.Equal(t, SourceFallback, res.Source)

	stats := tr.Snapshot()["osrm"]
	assert.Equal(t, int64(1), stats.Fallbacks)
	assert.Equal(t, int64(1), stats.APIZeroResult)
}

func TestResolve_NilProvider(t *testing.T) {
	res := Resolve(context.Background(), nil, twoPoints)
	assert.Equal(t, SourceFallback, res.Source)
	assert.Equal(t, orb.LineString(twoPoints), res.Line)
	assert.NoError(t, res.Err)
}
