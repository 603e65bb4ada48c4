// Package landmask classifies coordinates as land or ocean against a set of
// land polygons. A coarse world outline is embedded; a higher resolution
// mask such as Natural Earth's ne_110m_land can be loaded from disk instead.
package landmask

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// PolygonOracle implements domain.LandOracle over land polygons.
type PolygonOracle struct {
	polygons []orb.Polygon
	bounds   []orb.Bound
}

// New builds an oracle from polygon and multipolygon geometries. Other
// geometry types are ignored.
func New(geoms ...orb.Geometry) *PolygonOracle {
	o := &PolygonOracle{}
	for _, g := range geoms {
		switch g := g.(type) {
		case orb.Polygon:
			o.add(g)
		case orb.MultiPolygon:
			for _, p := range g {
				o.add(p)
			}
		}
	}
	return o
}

//go:embed land.geojson
var worldLand []byte

// DefaultSource names the embedded mask in logs and errors.
const DefaultSource = "embedded"

// Default returns an oracle over the embedded coarse world outline: the
// continents, Antarctica and the larger islands.
func Default() (*PolygonOracle, error) {
	return parse(worldLand, DefaultSource)
}

// Load reads land polygons from a GeoJSON FeatureCollection file.
func Load(path string) (*PolygonOracle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read land mask: %w", err)
	}
	return parse(data, path)
}

// LoadOrDefault loads path, or the embedded mask when path is empty.
func LoadOrDefault(path string) (*PolygonOracle, error) {
	if path == "" {
		return Default()
	}
	return Load(path)
}

func parse(data []byte, source string) (*PolygonOracle, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode land mask %s: %w", source, err)
	}
	geoms := make([]orb.Geometry, 0, len(fc.Features))
	for _, f := range fc.Features {
		geoms = append(geoms, f.Geometry)
	}
	o := New(geoms...)
	if len(o.polygons) == 0 {
		return nil, fmt.Errorf("land mask %s has no polygons", source)
	}
	return o, nil
}

func (o *PolygonOracle) add(p orb.Polygon) {
	if len(p) == 0 {
		return
	}
	o.polygons = append(o.polygons, p)
	o.bounds = append(o.bounds, p.Bound())
}

// Polygons returns the number of land polygons loaded.
func (o *PolygonOracle) Polygons() int { return len(o.polygons) }

// IsLand reports whether (lat, lon) lies inside any land polygon.
func (o *PolygonOracle) IsLand(lat, lon float64) bool {
	pt := orb.Point{NormalizeLon(lon), lat}
	for i, p := range o.polygons {
		if !o.bounds[i].Contains(pt) {
			continue
		}
		if planar.PolygonContains(p, pt) {
			return true
		}
	}
	return false
}

// NormalizeLon wraps a longitude into [-180, 180).
func NormalizeLon(lon float64) float64 {
	for lon >= 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}
