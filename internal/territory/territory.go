// Package territory defines the bounded geographic/market scope of a
// discovery run: a named bounding box plus the city and keyword lists that
// drive the search matrix.
package territory

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"gopkg.in/yaml.v3"
)

// Territory is one discovery scope. Discovery tags every record it touches
// with the territory name.
type Territory struct {
	Name     string   `yaml:"name"`
	Bounds   Bounds   `yaml:"bounds"`
	Cities   []string `yaml:"cities"`
	Keywords []string `yaml:"keywords"`
}

// Bounds is a lat/lng rectangle used both for Places location bias and for
// tagging discovered points.
type Bounds struct {
	MinLat float64 `yaml:"min_lat"`
	MinLng float64 `yaml:"min_lng"`
	MaxLat float64 `yaml:"max_lat"`
	MaxLng float64 `yaml:"max_lng"`
}

// Geom returns the rectangle as a go-geom bounds (x=lng, y=lat).
func (b Bounds) Geom() *geom.Bounds {
	return geom.NewBounds(geom.XY).Set(b.MinLng, b.MinLat, b.MaxLng, b.MaxLat)
}

// Contains reports whether a point falls inside the territory rectangle.
func (t *Territory) Contains(lat, lng float64) bool {
	return t.Bounds.Geom().OverlapsPoint(geom.XY, geom.Coord{lng, lat})
}

// Queries expands the keyword x city matrix into Places text-search queries.
func (t *Territory) Queries() []string {
	out := make([]string, 0, len(t.Cities)*len(t.Keywords))
	for _, city := range t.Cities {
		for _, kw := range t.Keywords {
			out = append(out, fmt.Sprintf("%s in %s", kw, city))
		}
	}
	return out
}

// Validate checks the definition is usable for a discovery run.
func (t *Territory) Validate() error {
	if t.Name == "" {
		return eris.New("territory: name is required")
	}
	if t.Bounds.MinLat >= t.Bounds.MaxLat || t.Bounds.MinLng >= t.Bounds.MaxLng {
		return eris.Errorf("territory %s: degenerate bounds", t.Name)
	}
	if len(t.Cities) == 0 || len(t.Keywords) == 0 {
		return eris.Errorf("territory %s: cities and keywords must be non-empty", t.Name)
	}
	return nil
}

// LoadFile reads a territory definition from a YAML file.
func LoadFile(path string) (*Territory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "territory: read %s", path)
	}
	var t Territory
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, eris.Wrapf(err, "territory: parse %s", path)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Load returns the territory from path, or the built-in default when path
// is empty.
func Load(path string) (*Territory, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// Default is the built-in Newfoundland & Labrador territory.
func Default() *Territory {
	return &Territory{
		Name: "NL",
		Bounds: Bounds{
			MinLat: 46.5, MinLng: -59.5,
			MaxLat: 54.9, MaxLng: -52.0,
		},
		Cities: []string{
			"St. John's NL",
			"Mount Pearl NL",
			"Paradise NL",
			"Conception Bay South NL",
			"Gander NL",
			"Grand Falls-Windsor NL",
			"Corner Brook NL",
			"Stephenville NL",
			"Deer Lake NL",
			"Labrador City NL",
			"Happy Valley-Goose Bay NL",
			"Channel-Port aux Basques NL",
			"Clarenville NL",
			"Bay Roberts NL",
		},
		Keywords: []string{
			"plumber",
			"electrician",
			"hvac",
			"industrial services",
			"property maintenance",
			"logistics",
			"warehouse",
			"construction company",
			"towing service",
			"locksmith",
			"security system supplier",
			"marine services",
			"fisheries",
		},
	}
}
