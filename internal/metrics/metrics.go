// Package metrics joins the prepared emissions with population and GDP and
// derives the normalized indicators shown on the dashboard.
package metrics

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/KaramelBytes/co2atlas/internal/countries"
	"github.com/KaramelBytes/co2atlas/internal/dataset"
	"github.com/KaramelBytes/co2atlas/internal/emissions"
)

// Europe is the continent label of the population dataset.
const Europe = "Europe"

// Options carries the unit and membership settings shared by the joins.
type Options struct {
	// UnitTonnes converts one emissions unit to tonnes (EDGAR reports kt).
	UnitTonnes float64
	// Catalog decides GDP membership by entity name.
	Catalog   *countries.Catalog
	FirstYear int
	// Logger receives join match counts at debug level.
	Logger *zap.Logger
}

// DefaultOptions matches the dashboard configuration defaults.
func DefaultOptions() Options {
	return Options{UnitTonnes: 1000, Catalog: countries.Europe(), FirstYear: 1970}
}

// Log returns the configured logger or a no-op one.
func (o Options) Log() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func (o Options) unit() float64 {
	if o.UnitTonnes <= 0 {
		return 1
	}
	return o.UnitTonnes
}

// PerCapita returns tonnes per person in year for countries present in both
// tables (inner join on canonical name), highest first.
func PerCapita(t *emissions.Table, pop *dataset.Population, year int, opt Options) []emissions.Ranked {
	if t == nil || pop == nil {
		return nil
	}
	left := emissionObservations(t, year)
	var right []populationObs
	for name, v := range populationByName(pop, year) {
		if !math.IsNaN(v) && v > 0 {
			right = append(right, populationObs{Name: name, Population: v})
		}
	}
	j, err := InnerJoin(left, right, "Name")
	if err != nil {
		opt.Log().Warn("per-capita join failed", zap.Int("year", year), zap.Error(err))
		return nil
	}
	LogJoin(opt.Log(), "per-capita", len(left), j.Nrow(), zap.Int("year", year))
	if j.Nrow() == 0 {
		return nil
	}
	names := j.Col("Name").Records()
	codes := j.Col("Code").Records()
	em := j.Col("Emissions").Float()
	people := j.Col("Population").Float()
	out := make([]emissions.Ranked, 0, len(names))
	for i := range names {
		out = append(out, emissions.Ranked{Name: names[i], Code: codes[i], Value: em[i] * opt.unit() / people[i]})
	}
	emissions.SortDesc(out)
	return out
}

// PerCapitaByYear computes PerCapita for each year.
func PerCapitaByYear(t *emissions.Table, pop *dataset.Population, years []int, opt Options) map[int][]emissions.Ranked {
	out := make(map[int][]emissions.Ranked, len(years))
	for _, y := range years {
		out[y] = PerCapita(t, pop, y, opt)
	}
	return out
}

func populationByName(pop *dataset.Population, year int) map[string]float64 {
	m := make(map[string]float64, len(pop.Rows))
	for _, r := range pop.Rows {
		v, ok := r.ByYear[year]
		if !ok {
			continue
		}
		m[countries.Canonical(r.Name)] = v
	}
	return m
}

// PopulationTotals sums the population of one continent per year.
func PopulationTotals(pop *dataset.Population, continent string, years []int) dataset.Series {
	rows := pop.Continent(continent)
	out := make(dataset.Series, 0, len(years))
	for _, y := range years {
		var s float64
		for _, r := range rows {
			if v, ok := r.ByYear[y]; ok && !math.IsNaN(v) {
				s += v
			}
		}
		out = append(out, dataset.Point{Year: y, Value: s})
	}
	return out
}

// EuropeanCodes returns the ISO3 codes of the population rows on the continent.
func EuropeanCodes(pop *dataset.Population) map[string]bool {
	out := map[string]bool{}
	if pop == nil {
		return out
	}
	for _, r := range pop.Continent(Europe) {
		if r.Code != "" {
			out[r.Code] = true
		}
	}
	return out
}

// EuropeanGDP keeps GDP rows whose code is a European population code or whose
// entity is in the catalog.
func EuropeanGDP(g *dataset.GDP, pop *dataset.Population, opt Options) []dataset.GDPRow {
	if g == nil {
		return nil
	}
	codes := EuropeanCodes(pop)
	var out []dataset.GDPRow
	for _, r := range g.Rows {
		if (r.Code != "" && codes[r.Code]) || opt.Catalog.Contains(r.Entity) {
			out = append(out, r)
		}
	}
	return out
}

// GDPPerCapitaAt returns European GDP per capita for one year, highest first.
func GDPPerCapitaAt(g *dataset.GDP, pop *dataset.Population, year int, opt Options) []emissions.Ranked {
	var out []emissions.Ranked
	for _, r := range EuropeanGDP(g, pop, opt) {
		if r.Year != year || math.IsNaN(r.GDPPerCapita) {
			continue
		}
		out = append(out, emissions.Ranked{Name: countries.Canonical(r.Entity), Code: r.Code, Value: r.GDPPerCapita})
	}
	emissions.SortDesc(out)
	return out
}

// GDPPerCapitaByYear computes GDPPerCapitaAt for each year.
func GDPPerCapitaByYear(g *dataset.GDP, pop *dataset.Population, years []int, opt Options) map[int][]emissions.Ranked {
	out := make(map[int][]emissions.Ranked, len(years))
	for _, y := range years {
		out[y] = GDPPerCapitaAt(g, pop, y, opt)
	}
	return out
}

// Intensity is a country's average emissions relative to its average GDP.
type Intensity struct {
	Name         string
	Code         string
	GDPPerCapita float64
	Population   float64
	TotalGDP     float64
	CO2          float64
	// CO2PerDollar is tonnes per USD; CO2PerMillion is tonnes per million USD.
	CO2PerDollar  float64
	CO2PerMillion float64
}

// GDPIntensity averages GDP per capita and population over the years since
// FirstYear per (code, entity), multiplies them into an average total GDP and
// joins the average emissions on code. Countries with incomplete data are dropped.
// Result is ordered by CO2PerMillion, highest first.
func GDPIntensity(t *emissions.Table, g *dataset.GDP, pop *dataset.Population, opt Options) []Intensity {
	if t == nil || g == nil {
		return nil
	}
	log := opt.Log()
	var gdps []gdpObs
	var pops []gdpPopulationObs
	for _, r := range EuropeanGDP(g, pop, opt) {
		if r.Year < opt.FirstYear || r.Code == "" {
			continue
		}
		if !math.IsNaN(r.GDPPerCapita) {
			gdps = append(gdps, gdpObs{Code: r.Code, Entity: r.Entity, GDPPerCapita: r.GDPPerCapita})
		}
		if !math.IsNaN(r.Population) {
			pops = append(pops, gdpPopulationObs{Code: r.Code, Entity: r.Entity, Population: r.Population})
		}
	}
	keys := []string{"Code", "Entity"}
	gdpMeans, err := GroupMean(gdps, keys, "GDPPerCapita")
	if err != nil {
		log.Warn("gdp means failed", zap.Error(err))
		return nil
	}
	popMeans, err := GroupMean(pops, keys, "Population")
	if err != nil {
		log.Warn("population means failed", zap.Error(err))
		return nil
	}
	// Groups lacking either mean are incomplete and fall out of the join.
	means, err := joinFrames(gdpMeans, popMeans, keys...)
	if err != nil {
		log.Warn("gdp intensity join failed", zap.Error(err))
		return nil
	}

	seen := map[string]bool{}
	var co2 []emissionObs
	for _, r := range t.Rows {
		v := r.Average(t.Years)
		if r.Code == "" || seen[r.Code] || math.IsNaN(v) {
			continue
		}
		seen[r.Code] = true
		co2 = append(co2, emissionObs{Name: r.Name, Code: r.Code, Emissions: v})
	}
	j, err := JoinFrame(means, co2, "Code")
	if err != nil {
		log.Warn("gdp intensity join failed", zap.Error(err))
		return nil
	}
	LogJoin(log, "gdp-intensity", means.Nrow(), j.Nrow(),
		zap.Int("gdp_groups", gdpMeans.Nrow()), zap.Int("population_groups", popMeans.Nrow()))
	if j.Nrow() == 0 {
		return nil
	}

	names := j.Col("Name").Records()
	codes := j.Col("Code").Records()
	gdppc := j.Col(colMeanGDP).Float()
	people := j.Col(colMeanPop).Float()
	avg := j.Col("Emissions").Float()
	var out []Intensity
	for i := range names {
		in := Intensity{
			Name:         names[i],
			Code:         codes[i],
			GDPPerCapita: gdppc[i],
			Population:   people[i],
			CO2:          avg[i] * opt.unit(),
		}
		in.TotalGDP = in.GDPPerCapita * in.Population
		if in.TotalGDP <= 0 {
			continue
		}
		in.CO2PerDollar = in.CO2 / in.TotalGDP
		in.CO2PerMillion = in.CO2PerDollar * 1e6
		out = append(out, in)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CO2PerMillion == out[j].CO2PerMillion {
			return out[i].Name < out[j].Name
		}
		return out[i].CO2PerMillion > out[j].CO2PerMillion
	})
	return out
}

// Worst returns the n most carbon-intensive economies.
// n < 0 returns all of them.
func Worst(in []Intensity, n int) []Intensity {
	if n >= 0 && n < len(in) {
		return in[:n]
	}
	return in
}

// Best returns the n least carbon-intensive economies, least intensive first.
// n < 0 returns all of them.
func Best(in []Intensity, n int) []Intensity {
	if n < 0 || n > len(in) {
		n = len(in)
	}
	out := make([]Intensity, 0, n)
	for i := len(in) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, in[i])
	}
	return out
}
