// Package catalog serves the lodging, restaurant, activity and event listings
// shown on the site, with text search and a spatial index for nearby lookups.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/uber/h3-go/v4"
	"gopkg.in/yaml.v3"

	"cilaosgo/pkg/geo"
)

//go:embed data/catalog.yaml
var embedded []byte

var (
	ErrUnknownKind = errors.New("unknown catalog kind")
	ErrNotFound    = errors.New("catalog item not found")
)

// Kind is a catalog section.
type Kind string

const (
	KindLodging    Kind = "lodging"
	KindRestaurant Kind = "restaurant"
	KindActivity   Kind = "activity"
	KindEvent      Kind = "event"
)

// Kinds lists every section in display order.
var Kinds = []Kind{KindLodging, KindRestaurant, KindActivity, KindEvent}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Location is a point on the map.
type Location struct {
	Lat float64 `yaml:"lat" json:"lat"`
	Lon float64 `yaml:"lon" json:"lon"`
}

// Contact holds the ways to reach a listing.
type Contact struct {
	Phone   string `yaml:"phone,omitempty" json:"phone,omitempty"`
	Email   string `yaml:"email,omitempty" json:"email,omitempty"`
	Website string `yaml:"website,omitempty" json:"website,omitempty"`
}

// Item is one listing. Which fields are set depends on the kind: lodging
// subkinds are hotel, gite, chambre and camping; restaurants use Subkind for
// the cuisine and Price/PriceMax for the menu range; events carry a Date and Venue.
type Item struct {
	ID          int       `yaml:"id" json:"id"`
	Kind        Kind      `yaml:"-" json:"kind"`
	Name        string    `yaml:"name" json:"name"`
	Subkind     string    `yaml:"subkind,omitempty" json:"subkind,omitempty"`
	Category    string    `yaml:"category,omitempty" json:"category,omitempty"`
	Price       float64   `yaml:"price,omitempty" json:"price,omitempty"`
	PriceMax    float64   `yaml:"price_max,omitempty" json:"price_max,omitempty"`
	Capacity    int       `yaml:"capacity,omitempty" json:"capacity,omitempty"`
	Rating      float64   `yaml:"rating,omitempty" json:"rating,omitempty"`
	Reviews     int       `yaml:"reviews,omitempty" json:"reviews,omitempty"`
	Location    *Location `yaml:"location,omitempty" json:"location,omitempty"`
	Features    []string  `yaml:"features,omitempty" json:"features,omitempty"`
	Description string    `yaml:"description" json:"description"`
	Details     string    `yaml:"details,omitempty" json:"details,omitempty"`
	Hours       string    `yaml:"hours,omitempty" json:"hours,omitempty"`
	Duration    string    `yaml:"duration,omitempty" json:"duration,omitempty"`
	Date        string    `yaml:"date,omitempty" json:"date,omitempty"`
	Venue       string    `yaml:"venue,omitempty" json:"venue,omitempty"`
	Contact     *Contact  `yaml:"contact,omitempty" json:"contact,omitempty"`
	// Summary is the plain-text description, filled on load.
	Summary string `yaml:"-" json:"summary"`
}

type ref struct {
	kind Kind
	idx  int
}

// Catalog is an immutable, indexed set of listings. It is safe for concurrent reads.
type Catalog struct {
	items map[Kind][]Item
	text  map[ref]string
	cells map[h3.Cell][]ref
}

// Load reads a catalog file. An empty path loads the embedded dataset.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(embedded)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Parse builds a catalog from YAML keyed by kind.
func Parse(data []byte) (*Catalog, error) {
	var raw map[string][]Item
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	c := &Catalog{
		items: make(map[Kind][]Item, len(Kinds)),
		text:  make(map[ref]string),
		cells: make(map[h3.Cell][]ref),
	}
	for name, items := range raw {
		kind, err := ParseKind(name)
		if err != nil {
			return nil, err
		}
		seen := make(map[int]bool, len(items))
		for i := range items {
			it := &items[i]
			if seen[it.ID] {
				return nil, fmt.Errorf("catalog %s: duplicate id %d", kind, it.ID)
			}
			seen[it.ID] = true
			it.Kind = kind
			it.Summary = PlainText(it.Description)
		}
		sort.Slice(items, func(a, b int) bool { return items[a].ID < items[b].ID })
		c.items[kind] = items
	}

	for kind, items := range c.items {
		for i := range items {
			r := ref{kind: kind, idx: i}
			c.text[r] = searchText(&items[i])
			if err := c.index(r, items[i].Location); err != nil {
				return nil, fmt.Errorf("catalog %s/%d: %w", kind, items[i].ID, err)
			}
		}
	}
	return c, nil
}

func searchText(it *Item) string {
	parts := []string{it.Name, it.Subkind, it.Category, it.Summary, PlainText(it.Details)}
	parts = append(parts, it.Features...)
	return strings.ToLower(strings.Join(parts, " "))
}

// Items returns the listings of a kind ordered by id.
func (c *Catalog) Items(kind Kind) ([]Item, error) {
	items, ok := c.items[kind]
	if !ok {
		if _, err := ParseKind(string(kind)); err != nil {
			return nil, err
		}
		return nil, nil
	}
	out := make([]Item, len(items))
	copy(out, items)
	return out, nil
}

// Get returns one listing.
func (c *Catalog) Get(kind Kind, id int) (Item, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return Item{}, err
	}
	items := c.items[kind]
	i := sort.Search(len(items), func(i int) bool { return items[i].ID >= id })
	if i < len(items) && items[i].ID == id {
		return items[i], nil
	}
	return Item{}, fmt.Errorf("%w: %s/%d", ErrNotFound, kind, id)
}

// KindStats summarises one section.
type KindStats struct {
	Count         int            `json:"count"`
	AverageRating float64        `json:"average_rating,omitempty"`
	Subkinds      map[string]int `json:"subkinds,omitempty"`
}

// Stats returns counts per kind and subkind, and the mean rating of rated listings.
func (c *Catalog) Stats() map[Kind]KindStats {
	out := make(map[Kind]KindStats, len(Kinds))
	for _, kind := range Kinds {
		items := c.items[kind]
		st := KindStats{Count: len(items)}
		var sum float64
		rated := 0
		for _, it := range items {
			if it.Rating > 0 {
				sum += it.Rating
				rated++
			}
			if it.Subkind != "" {
				if st.Subkinds == nil {
					st.Subkinds = make(map[string]int)
				}
				st.Subkinds[it.Subkind]++
			}
		}
		if rated > 0 {
			st.AverageRating = math.Round(sum/float64(rated)*100) / 100
		}
		out[kind] = st
	}
	return out
}

// Hit is a listing found near a point.
type Hit struct {
	Item
	DistanceM float64 `json:"distance_m"`
}

// Nearby returns the located listings within radius meters of (lat, lon),
// nearest first. An empty kinds list searches every kind.
func (c *Catalog) Nearby(lat, lon, radius float64, kinds ...Kind) ([]Hit, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) || math.IsInf(radius, 0) {
		return nil, fmt.Errorf("nearby: invalid point (%v, %v) or radius %v", lat, lon, radius)
	}
	if !(radius > 0) {
		return nil, nil
	}
	origin, err := h3.LatLngToCell(h3.NewLatLng(lat, lon), indexResolution)
	if err != nil {
		return nil, fmt.Errorf("nearby: %w", err)
	}
	disk, err := h3.GridDisk(origin, ringsFor(radius))
	if err != nil {
		return nil, fmt.Errorf("nearby: %w", err)
	}

	want := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}

	var hits []Hit
	for _, cell := range disk {
		for _, r := range c.cells[cell] {
			if len(want) > 0 && !want[r.kind] {
				continue
			}
			it := c.items[r.kind][r.idx]
			d := geo.Distance(lat, lon, it.Location.Lat, it.Location.Lon)
			if d <= radius {
				hits = append(hits, Hit{Item: it, DistanceM: d})
			}
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].DistanceM != hits[j].DistanceM {
			return hits[i].DistanceM < hits[j].DistanceM
		}
		if hits[i].Kind != hits[j].Kind {
			return hits[i].Kind < hits[j].Kind
		}
		return hits[i].ID < hits[j].ID
	})
	return hits, nil
}
