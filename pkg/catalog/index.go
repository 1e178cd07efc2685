package catalog

import (
	"math"

	"github.com/uber/h3-go/v4"
)

// indexResolution buckets listings into cells of roughly 0.1 km².
const indexResolution = 9

// minRingSpacing is the smallest distance gained per grid ring at
// indexResolution: the inradius step of a hexagon with a ~174 m edge.
const minRingSpacing = 250.0

func (c *Catalog) index(r ref, loc *Location) error {
	if loc == nil {
		return nil
	}
	cell, err := h3.LatLngToCell(h3.NewLatLng(loc.Lat, loc.Lon), indexResolution)
	if err != nil {
		return err
	}
	c.cells[cell] = append(c.cells[cell], r)
	return nil
}

// ringsFor returns how many grid rings around a cell cover radius meters.
func ringsFor(radius float64) int {
	return int(math.Ceil(radius/minRingSpacing)) + 1
}
