package dataset

import (
	"math"
	"slices"
)

// GDP is the long-format GDP per capita table (one row per entity and year).
type GDP struct {
	Rows []GDPRow
	// PerCapitaColumn is the header the per-capita emissions were read from.
	PerCapitaColumn string
}

// GDPRow is one entity-year observation. Missing values are NaN.
type GDPRow struct {
	Entity             string
	Code               string
	Year               int
	GDPPerCapita       float64
	Population         float64
	EmissionsPerCapita float64
}

const (
	colGDPEntity    = "Entity"
	colGDPCode      = "Code"
	colGDPYear      = "Year"
	colGDPPerCapita = "GDP per capita"
	colGDPPop       = "Population (historical)"
)

// Year returns the rows observed in year.
func (g *GDP) Year(y int) []GDPRow {
	var out []GDPRow
	for _, r := range g.Rows {
		if r.Year == y {
			out = append(out, r)
		}
	}
	return out
}

type gdpLoader struct{}

func (gdpLoader) Kind() Kind { return KindGDP }

func (gdpLoader) Detect(_ string, header []string) bool {
	return slices.Contains(header, colGDPEntity) && slices.Contains(header, colGDPYear) &&
		slices.Contains(header, colGDPPerCapita)
}

func (gdpLoader) Load(path string, into *Set) error {
	df, err := readFrame(path, colGDPEntity, colGDPCode, "Continent")
	if err != nil {
		return err
	}
	if err := requireColumns(df, colGDPEntity, colGDPCode, colGDPYear, colGDPPerCapita); err != nil {
		return err
	}
	g := &GDP{Rows: make([]GDPRow, df.Nrow())}
	entities, codes := Strings(df, colGDPEntity), Strings(df, colGDPCode)
	years, gdppc := Floats(df, colGDPYear), Floats(df, colGDPPerCapita)
	pop := nanColumn(df.Nrow())
	if slices.Contains(df.Names(), colGDPPop) {
		pop = Floats(df, colGDPPop)
	} else if c, ok := findColumn(df.Names(), "population"); ok {
		pop = Floats(df, c)
	}
	perCap := nanColumn(df.Nrow())
	if c, ok := findColumn(df.Names(), "emissions", "per capita"); ok {
		perCap = Floats(df, c)
		g.PerCapitaColumn = c
	}
	for i := range g.Rows {
		y := -1
		if !math.IsNaN(years[i]) {
			y = int(years[i])
		}
		g.Rows[i] = GDPRow{
			Entity:             entities[i],
			Code:               codes[i],
			Year:               y,
			GDPPerCapita:       gdppc[i],
			Population:         pop[i],
			EmissionsPerCapita: perCap[i],
		}
	}
	into.GDP = g
	return nil
}

func nanColumn(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
