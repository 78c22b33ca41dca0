// Package geo loads country boundaries (Natural Earth admin-0) for the
// choropleth maps.
package geo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/co2atlas/internal/countries"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Country is one boundary feature.
type Country struct {
	Name      string
	Admin     string
	Continent string
	ISO3      string
	Shape     orb.MultiPolygon
}

// Key returns the canonical name used to join data onto the feature.
func (c Country) Key() string {
	if c.Admin != "" {
		return countries.Canonical(c.Admin)
	}
	return countries.Canonical(c.Name)
}

// Matches reports whether name refers to this feature by NAME or ADMIN.
func (c Country) Matches(name string) bool {
	n := countries.Canonical(name)
	return n == countries.Canonical(c.Name) || (c.Admin != "" && n == countries.Canonical(c.Admin))
}

// Centroid returns the area-weighted centroid of the shape.
func (c Country) Centroid() orb.Point {
	p, _ := planar.CentroidArea(c.Shape)
	return p
}

// Atlas is a set of boundary features.
type Atlas struct {
	Countries []Country
}

var ErrNoGeometry = errors.New("no polygon features")

// Load reads a GeoJSON FeatureCollection. When path is a .dbf or .shp file the
// sibling .geojson provides geometry and the .dbf provides attributes.
// A sibling .dbf next to a .geojson is also used to fill missing attributes.
func Load(path string) (*Atlas, error) {
	ext := strings.ToLower(filepath.Ext(path))
	base := strings.TrimSuffix(path, filepath.Ext(path))
	geoPath, dbfPath := path, base+".dbf"
	if ext == ".dbf" || ext == ".shp" {
		geoPath = base + ".geojson"
	}
	data, err := os.ReadFile(geoPath)
	if err != nil {
		return nil, fmt.Errorf("read boundaries: %w", err)
	}
	a, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dbfPath); err == nil {
		attrs, err := ReadAttributes(dbfPath)
		if err != nil {
			return nil, err
		}
		a.mergeAttributes(attrs)
	}
	return a, nil
}

// Parse decodes a GeoJSON FeatureCollection keeping polygon features.
func Parse(data []byte) (*Atlas, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}
	a := &Atlas{}
	for _, f := range fc.Features {
		var mp orb.MultiPolygon
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			mp = orb.MultiPolygon{g}
		case orb.MultiPolygon:
			mp = g
		default:
			continue
		}
		a.Countries = append(a.Countries, Country{
			Name:      f.Properties.MustString("NAME", ""),
			Admin:     f.Properties.MustString("ADMIN", ""),
			Continent: f.Properties.MustString("CONTINENT", ""),
			ISO3:      f.Properties.MustString("ISO_A3", ""),
			Shape:     mp,
		})
	}
	if len(a.Countries) == 0 {
		return nil, ErrNoGeometry
	}
	return a, nil
}

// mergeAttributes fills empty attributes by feature order; shapefile exports
// keep .dbf records and features in the same order.
func (a *Atlas) mergeAttributes(attrs []Attributes) {
	for i := range a.Countries {
		if i >= len(attrs) {
			return
		}
		c := &a.Countries[i]
		at := attrs[i]
		if c.Name == "" {
			c.Name = at.Name
		}
		if c.Admin == "" {
			c.Admin = at.Admin
		}
		if c.Continent == "" {
			c.Continent = at.Continent
		}
		if c.ISO3 == "" {
			c.ISO3 = at.ISO3
		}
	}
}

// Continent returns the features on the named continent.
func (a *Atlas) Continent(name string) *Atlas {
	out := &Atlas{}
	for _, c := range a.Countries {
		if strings.EqualFold(c.Continent, name) {
			out.Countries = append(out.Countries, c)
		}
	}
	return out
}

// Lookup finds the feature for a country name in any known spelling.
func (a *Atlas) Lookup(name string) (Country, bool) {
	for _, c := range a.Countries {
		if c.Matches(name) {
			return c, true
		}
	}
	return Country{}, false
}

// Clip cuts every shape to the bound and drops features left empty.
func (a *Atlas) Clip(b orb.Bound) *Atlas {
	out := &Atlas{}
	for _, c := range a.Countries {
		if !c.Shape.Bound().Intersects(b) {
			continue
		}
		mp := clip.MultiPolygon(b, c.Shape)
		if len(mp) == 0 {
			continue
		}
		c.Shape = mp
		out.Countries = append(out.Countries, c)
	}
	return out
}

// Bound returns the extent of every shape.
func (a *Atlas) Bound() orb.Bound {
	var b orb.Bound
	for i, c := range a.Countries {
		if i == 0 {
			b = c.Shape.Bound()
			continue
		}
		b = b.Union(c.Shape.Bound())
	}
	return b
}

// EuropeBound is the map window of the single-year Europe maps.
var EuropeBound = orb.Bound{Min: orb.Point{-25, 34}, Max: orb.Point{45, 72}}

// WideEuropeBound also covers Russia and Kazakhstan for the year maps.
var WideEuropeBound = orb.Bound{Min: orb.Point{-10, 20}, Max: orb.Point{170, 90}}
