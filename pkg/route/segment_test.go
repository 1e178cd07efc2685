package route

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(n int) orb.LineString {
	ls := make(orb.LineString, n)
	for i := range ls {
		ls[i] = orb.Point{float64(i), float64(i)}
	}
	return ls
}

func concat(segs [Count]Segment) orb.LineString {
	var out orb.LineString
	for _, s := range segs {
		out = append(out, s.Points...)
	}
	return out
}

func TestSplit_Boundaries100(t *testing.T) {
	segs := Split(line(100), DefaultBreakpoints)

	want := [][2]int{{0, 28}, {28, 43}, {43, 52}, {52, 100}}
	for i, s := range segs {
		assert.Equal(t, i+1, s.Index)
		require.Len(t, s.Points, want[i][1]-want[i][0], "segment %d", i+1)
		assert.Equal(t, orb.Point{float64(want[i][0]), float64(want[i][0])}, s.Points[0], "segment %d start", i+1)
	}
}

func TestSplit_Coverage(t *testing.T) {
	for n := 4; n <= 300; n++ {
		in := line(n)
		segs := Split(in, DefaultBreakpoints)

		assert.Equal(t, in, concat(segs), "n=%d: concatenation must rebuild the input", n)
		for _, s := range segs {
			assert.False(t, s.Empty(), "n=%d: segment %d empty", n, s.Index)
		}
	}
}

func TestSplit_ShortInput(t *testing.T) {
	// Fallback through three waypoints after a routing failure.
	in := Fallback([]orb.Point{{0, 0}, {1, 1}, {2, 2}})
	segs := Split(in, DefaultBreakpoints)

	assert.Empty(t, segs[0].Points, "floor(0.28*3)=0")
	assert.Equal(t, orb.LineString{{0, 0}}, segs[1].Points)
	assert.Empty(t, segs[2].Points)
	assert.Equal(t, orb.LineString{{1, 1}, {2, 2}}, segs[3].Points)

	// The lone point of segment 2 is drawn as an edge to segment 4.
	assert.Equal(t, orb.LineString{{0, 0}, {1, 1}}, segs[1].Path)
	assert.True(t, segs[1].Drawable())
	assert.False(t, segs[0].Drawable())
	assert.False(t, segs[2].Drawable())
	assert.Equal(t, orb.LineString{{1, 1}, {2, 2}}, segs[3].Path)
	assert.Equal(t, in, concat(segs))
}

func TestSplit_TwoPoints(t *testing.T) {
	// floor(0.52*2)=1 splits the two points between segments 3 and 4.
	segs := Split(line(2), DefaultBreakpoints)
	assert.True(t, segs[0].Empty())
	assert.True(t, segs[1].Empty())
	assert.Equal(t, orb.LineString{{0, 0}}, segs[2].Points)
	assert.Equal(t, orb.LineString{{1, 1}}, segs[3].Points)

	assert.True(t, segs[2].Drawable())
	assert.Equal(t, orb.LineString{{0, 0}, {1, 1}}, segs[2].Path)
	assert.False(t, segs[3].Drawable())
	assert.Equal(t, line(2), concat(segs))
}

func TestSplit_DoesNotAlias(t *testing.T) {
	in := line(10)
	segs := Split(in, DefaultBreakpoints)
	segs[3].Points[0] = orb.Point{-1, -1}
	assert.Equal(t, orb.Point{5, 5}, in[5])
}

func TestFallback_PreservesOrder(t *testing.T) {
	wps := []orb.Point{{55.5164, -20.89}, {55.2906, -20.9396}, {55.2885, -21.1708}, {55.4119, -21.2808}, {55.4708, -21.1339}}
	fb := Fallback(wps)
	assert.Equal(t, orb.LineString(wps), fb)

	segs := Split(fb, DefaultBreakpoints)
	assert.Equal(t, orb.LineString(wps), concat(segs))
	// Five waypoints: every segment is a single edge.
	for i, s := range segs {
		assert.Equal(t, orb.LineString{wps[i], wps[i+1]}, s.Path, "segment %d", i+1)
	}
}

func TestBreakpoints(t *testing.T) {
	bp, err := BreakpointsFrom([]float64{0.28, 0.43, 0.52})
	require.NoError(t, err)
	assert.Equal(t, DefaultBreakpoints, bp)

	_, err = BreakpointsFrom([]float64{0.5, 0.4, 0.6})
	assert.Error(t, err)

	_, err = BreakpointsFrom([]float64{0.5})
	assert.Error(t, err)

	assert.Equal(t, [3]int{28, 43, 52}, DefaultBreakpoints.Bounds(100))
	// floor gives {1,2,2}; the third boundary is nudged so segment 3 keeps a point
	assert.Equal(t, [3]int{1, 2, 3}, DefaultBreakpoints.Bounds(5))
	assert.Equal(t, [3]int{0, 1, 1}, DefaultBreakpoints.Bounds(3))
}

func TestStyles(t *testing.T) {
	assert.Equal(t, Style{Color: RouteColor, Weight: 4, Opacity: 0.3}, Dim(1))
	assert.Equal(t, Style{Color: RouteColor, Weight: 5, Opacity: 1}, Emphasized(2))

	dim4 := Dim(4)
	assert.Equal(t, 5.0, dim4.Weight, "mountain road keeps its heavier stroke when dim")
	assert.NotEmpty(t, dim4.Dash)
	assert.Equal(t, 6.0, Emphasized(4).Weight)
}

func TestFeatureCollection(t *testing.T) {
	segs := Split(line(3), DefaultBreakpoints)
	fc := FeatureCollection(segs, "fallback")

	require.Len(t, fc.Features, 2, "only drawable segments are exported")
	assert.Equal(t, 2, fc.Features[0].Properties["segment"])
	assert.Equal(t, 4, fc.Features[1].Properties["segment"])
	assert.Equal(t, "fallback", fc.ExtraMembers["source"])
}
