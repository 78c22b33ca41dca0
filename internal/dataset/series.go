package dataset

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/KaramelBytes/co2atlas/internal/geo"
)

// Point is one (year, value) observation.
type Point struct {
	Year  int
	Value float64
}

// Series is an ordered list of observations; years may repeat before Totals.
type Series []Point

// Totals sums values per year and returns them sorted by year.
func (s Series) Totals() Series {
	sums := map[int]float64{}
	for _, p := range s {
		sums[p.Year] += p.Value
	}
	out := make(Series, 0, len(sums))
	for y, v := range sums {
		out = append(out, Point{Year: y, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// seriesLoader reads the ';'-separated history and forecast files. Both carry
// a year column and a CO2_emissions column whose header case varies.
type seriesLoader struct{ kind Kind }

func (l seriesLoader) Kind() Kind { return l.kind }

func (l seriesLoader) Detect(filename string, header []string) bool {
	if len(header) < 2 {
		return false
	}
	_, okY := findColumn(header, "year")
	_, okV := findColumn(header, "co2")
	if !okY || !okV || len(header) > 4 {
		return false
	}
	isForecast := strings.Contains(strings.ToLower(filename), "forecast") || strings.Contains(strings.ToLower(filename), "sarima")
	return isForecast == (l.kind == KindForecast)
}

func (l seriesLoader) Load(path string, into *Set) error {
	df, err := readStringFrame(path)
	if err != nil {
		return err
	}
	yc, ok := findColumn(df.Names(), "year")
	if !ok {
		return fmt.Errorf("%w: year", ErrMissingColumn)
	}
	vc, ok := findColumn(df.Names(), "co2")
	if !ok {
		return fmt.Errorf("%w: CO2_emissions", ErrMissingColumn)
	}
	years, vals := Strings(df, yc), Strings(df, vc)
	var s Series
	for i := range years {
		y, ok := ParseYear(years[i])
		if !ok {
			continue
		}
		v, ok := ParseNumber(vals[i])
		if !ok {
			continue
		}
		s = append(s, Point{Year: y, Value: v})
	}
	if l.kind == KindForecast {
		into.Forecast = s
	} else {
		into.History = s
	}
	return nil
}

type boundariesLoader struct{}

func (boundariesLoader) Kind() Kind { return KindBoundaries }

func (boundariesLoader) Detect(filename string, _ []string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".geojson", ".json", ".dbf", ".shp":
		return true
	}
	return false
}

func (boundariesLoader) Load(path string, into *Set) error {
	a, err := geo.Load(path)
	if err != nil {
		return err
	}
	into.Boundaries = a
	return nil
}
