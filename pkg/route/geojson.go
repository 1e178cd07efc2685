package route

import (
	"github.com/paulmach/orb/geojson"
)

// FeatureCollection exports the drawable segments with their resting style.
// Segments that cannot be drawn are skipped.
func FeatureCollection(segs [Count]Segment, source string) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, s := range segs {
		if !s.Drawable() {
			continue
		}
		f := geojson.NewFeature(s.Path)
		st := Dim(s.Index)
		f.Properties["segment"] = s.Index
		f.Properties["color"] = st.Color
		f.Properties["weight"] = st.Weight
		f.Properties["opacity"] = st.Opacity
		if st.Dash != "" {
			f.Properties["dash"] = st.Dash
		}
		f.Properties["length_m"] = s.LengthMeters()
		fc.Append(f)
	}
	fc.ExtraMembers = geojson.Properties{"source": source}
	return fc
}
