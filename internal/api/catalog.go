package api

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"cilaosgo/pkg/catalog"
	"cilaosgo/pkg/config"
)

// maxNearbyRadius caps /api/catalog/nearby; the whole cirque fits well inside it.
const maxNearbyRadius = 20000.0

// CatalogHandler serves the lodging, restaurant, activity and event catalogs.
type CatalogHandler struct {
	cat           *catalog.Catalog
	defaultRadius float64
}

// NewCatalogHandler creates a CatalogHandler. radius is the default nearby radius in meters.
func NewCatalogHandler(cat *catalog.Catalog, radius config.Distance) *CatalogHandler {
	r := float64(radius)
	if r <= 0 {
		r = 1500
	}
	return &CatalogHandler{cat: cat, defaultRadius: r}
}

// HandleList searches one catalog.
// GET /api/catalog/{kind}?subkind=&q=&min_price=&max_price=&min_capacity=&min_rating=&sort=
func (h *CatalogHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	kind, err := catalog.ParseKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	q, err := parseQuery(kind, r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := h.cat.Search(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if items == nil {
		items = []catalog.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

func parseQuery(kind catalog.Kind, v url.Values) (catalog.Query, error) {
	q := catalog.Query{
		Kind:    kind,
		Subkind: v.Get("subkind"),
		Text:    v.Get("q"),
		Sort:    catalog.Sort(v.Get("sort")),
	}
	var err error
	if q.MinPrice, err = floatParam(v, "min_price"); err != nil {
		return q, err
	}
	if q.MaxPrice, err = floatParam(v, "max_price"); err != nil {
		return q, err
	}
	if q.MinRating, err = floatParam(v, "min_rating"); err != nil {
		return q, err
	}
	if s := v.Get("min_capacity"); s != "" {
		if q.MinCapacity, err = strconv.Atoi(s); err != nil {
			return q, fmt.Errorf("invalid min_capacity %q", s)
		}
	}
	return q, nil
}

func floatParam(v url.Values, name string) (float64, error) {
	s := v.Get(name)
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return f, nil
}

// HandleGet returns one listing.
// GET /api/catalog/{kind}/{id}
func (h *CatalogHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	kind, err := catalog.ParseKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	it, err := h.cat.Get(kind, id)
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		slog.Error("Catalog lookup failed", "kind", kind, "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// HandleNearby returns listings around a point, nearest first.
// GET /api/catalog/nearby?lat=&lon=&radius=1.5km&kind=lodging,restaurant
func (h *CatalogHandler) HandleNearby(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	lat, errLat := strconv.ParseFloat(v.Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(v.Get("lon"), 64)
	if errLat != nil || errLon != nil || !(lat >= -90 && lat <= 90) || !(lon >= -180 && lon <= 180) {
		writeError(w, http.StatusBadRequest, "lat and lon are required")
		return
	}

	radius := h.defaultRadius
	if s := v.Get("radius"); s != "" {
		d, err := config.ParseDistance(s)
		if err != nil || !(d >= 0) || math.IsInf(d, 0) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid radius %q", s))
			return
		}
		radius = d
	}
	if radius > maxNearbyRadius {
		radius = maxNearbyRadius
	}

	var kinds []catalog.Kind
	for _, raw := range v["kind"] {
		for _, s := range strings.Split(raw, ",") {
			if strings.TrimSpace(s) == "" {
				continue
			}
			k, err := catalog.ParseKind(s)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			kinds = append(kinds, k)
		}
	}

	hits, err := h.cat.Nearby(lat, lon, radius, kinds...)
	if err != nil {
		slog.Error("Nearby search failed", "lat", lat, "lon", lon, "error", err)
		writeError(w, http.StatusInternalServerError, "nearby search failed")
		return
	}
	if hits == nil {
		hits = []catalog.Hit{}
	}
	writeJSON(w, http.StatusOK, hits)
}

// HandleStats returns counts and average ratings per catalog.
// GET /api/catalog/stats
func (h *CatalogHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cat.Stats())
}
