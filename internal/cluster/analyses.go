package cluster

import (
	"fmt"
	"math"
	"sort"

	"github.com/KaramelBytes/co2atlas/internal/countries"
	"github.com/KaramelBytes/co2atlas/internal/dataset"
	"github.com/KaramelBytes/co2atlas/internal/emissions"
	"github.com/KaramelBytes/co2atlas/internal/metrics"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// Point is one clustered country.
type Point struct {
	Name    string
	Code    string
	X, Y    float64
	Cluster int
	// Values holds the table columns of the analysis, keyed by Analysis.Columns.
	Values map[string]float64
}

// Analysis is a clustering of countries on two plotted dimensions.
type Analysis struct {
	ID      string
	Title   string
	XLabel  string
	YLabel  string
	Columns []string
	Scaled  bool
	K       int
	Inertia float64
	Elbow   []float64
	Points  []Point
}

// Members returns the points of cluster c ordered by the first column, highest first.
func (a *Analysis) Members(c int) []Point {
	var out []Point
	for _, p := range a.Points {
		if p.Cluster == c {
			out = append(out, p)
		}
	}
	key := ""
	if len(a.Columns) > 0 {
		key = a.Columns[0]
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Values[key] == out[j].Values[key] {
			return out[i].Name < out[j].Name
		}
		return out[i].Values[key] > out[j].Values[key]
	})
	return out
}

// Clusters returns the number of distinct clusters found.
func (a *Analysis) Clusters() int {
	seen := map[int]bool{}
	for _, p := range a.Points {
		seen[p.Cluster] = true
	}
	return len(seen)
}

// Options configures the country analyses.
type Options struct {
	KMeans    KMeans
	ElbowMaxK int
	Metrics   metrics.Options
}

// DefaultOptions uses k=3, seed 42 and an elbow up to k=10.
func DefaultOptions() Options {
	return Options{KMeans: DefaultKMeans(), ElbowMaxK: 10, Metrics: metrics.DefaultOptions()}
}

// fit clusters the feature rows and fills a's points, elbow and inertia.
func (a *Analysis) fit(features [][]float64, opt Options) error {
	if len(features) == 0 {
		return fmt.Errorf("%s: %w", a.ID, ErrNoData)
	}
	X := mat.NewDense(len(features), len(features[0]), nil)
	for i, f := range features {
		X.SetRow(i, f)
	}
	var in mat.Matrix = X
	if a.Scaled {
		in = StandardScale(X)
	}
	res, err := opt.KMeans.Fit(in)
	if err != nil {
		return fmt.Errorf("%s: %w", a.ID, err)
	}
	a.K, _ = res.Centroids.Dims()
	a.Inertia = res.Inertia
	for i := range a.Points {
		a.Points[i].Cluster = res.Labels[i]
	}
	if opt.ElbowMaxK > 0 {
		elbow, err := Elbow(in, opt.ElbowMaxK, opt.KMeans)
		if err != nil {
			return fmt.Errorf("%s elbow: %w", a.ID, err)
		}
		a.Elbow = elbow
	}
	return nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Frame rows for the joins below. Field names become column names.
type (
	gdpObs struct {
		Code               string
		GDPPerCapita       float64
		EmissionsPerCapita float64
	}
	co2Obs struct {
		Code      string
		Name      string
		Emissions float64
	}
	totalObs struct {
		Name  string
		Code  string
		Total float64
	}
	nameGDPObs struct {
		Name         string
		GDPPerCapita float64
	}
	namePopObs struct {
		Name       string
		Population float64
	}
	changeObs struct {
		Code string
		Name string
		Pct  float64
	}
	gdpChangeObs struct {
		Code      string
		GDPChange float64
	}
)

// EmissionsVsGDP clusters countries on raw emissions and GDP per capita in
// year, joining on ISO code. Emissions are clustered in source units and
// plotted in tonnes.
func EmissionsVsGDP(t *emissions.Table, g *dataset.GDP, pop *dataset.Population, year int, opt Options) (*Analysis, error) {
	a := &Analysis{
		ID:      "emissions-gdp",
		Title:   fmt.Sprintf("CO₂ emissions vs GDP per capita (%d)", year),
		XLabel:  "CO₂ emissions (t)",
		YLabel:  "GDP per capita (USD)",
		Columns: []string{"gdp_per_emission", "emissions_per_capita"},
	}
	unit := opt.Metrics.UnitTonnes
	if unit <= 0 {
		unit = 1
	}
	var gdps []gdpObs
	seen := map[string]bool{}
	for _, r := range metrics.EuropeanGDP(g, pop, opt.Metrics) {
		if r.Year != year || r.Code == "" || seen[r.Code] || !finite(r.GDPPerCapita) {
			continue
		}
		seen[r.Code] = true
		gdps = append(gdps, gdpObs{Code: r.Code, GDPPerCapita: r.GDPPerCapita, EmissionsPerCapita: r.EmissionsPerCapita})
	}
	var co2 []co2Obs
	seen = map[string]bool{}
	for _, r := range t.Rows {
		v := r.At(year)
		if r.Code == "" || seen[r.Code] || !finite(v) || v <= 0 {
			continue
		}
		seen[r.Code] = true
		co2 = append(co2, co2Obs{Code: r.Code, Name: r.Name, Emissions: v})
	}
	j, err := metrics.InnerJoin(gdps, co2, "Code")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.ID, err)
	}
	metrics.LogJoin(opt.Metrics.Log(), a.ID, len(gdps), j.Nrow(), zap.Int("year", year))

	var feats [][]float64
	if j.Nrow() > 0 {
		names, codes := j.Col("Name").Records(), j.Col("Code").Records()
		raw, gdppc, perCapita := j.Col("Emissions").Float(), j.Col("GDPPerCapita").Float(), j.Col("EmissionsPerCapita").Float()
		for i := range names {
			tonnes := raw[i] * unit
			feats = append(feats, []float64{raw[i], gdppc[i]})
			a.Points = append(a.Points, Point{
				Name: names[i], Code: codes[i], X: tonnes, Y: gdppc[i],
				Values: map[string]float64{
					"gdp_per_emission":     gdppc[i] / tonnes,
					"emissions_per_capita": perCapita[i],
				},
			})
		}
	}
	if err := a.fit(feats, opt); err != nil {
		return nil, err
	}
	return a, nil
}

// Efficiency clusters countries on scaled GDP per tonne emitted and tonnes
// per person, using total emissions from firstYear to year and GDP and
// population in year.
func Efficiency(t *emissions.Table, g *dataset.GDP, pop *dataset.Population, firstYear, year int, opt Options) (*Analysis, error) {
	a := &Analysis{
		ID:      "efficiency",
		Title:   fmt.Sprintf("GDP efficiency vs emissions per capita (%d–%d)", firstYear, year),
		XLabel:  "GDP per tonne CO₂ (USD/t)",
		YLabel:  "Cumulative CO₂ per capita (t)",
		Columns: []string{"gdp_per_emission", "emissions_per_capita"},
		Scaled:  true,
	}
	unit := opt.Metrics.UnitTonnes
	if unit <= 0 {
		unit = 1
	}
	var totals []totalObs
	for _, row := range t.Rows {
		if total := row.Sum(firstYear, year) * unit; total > 0 {
			totals = append(totals, totalObs{Name: row.Name, Code: row.Code, Total: total})
		}
	}
	var gdps []nameGDPObs
	seen := map[string]bool{}
	for _, r := range g.Year(year) {
		name := countries.Canonical(r.Entity)
		if finite(r.GDPPerCapita) && !seen[name] {
			seen[name] = true
			gdps = append(gdps, nameGDPObs{Name: name, GDPPerCapita: r.GDPPerCapita})
		}
	}
	var people []namePopObs
	seen = map[string]bool{}
	for _, r := range pop.Rows {
		name := countries.Canonical(r.Name)
		if v, ok := r.ByYear[year]; ok && finite(v) && v > 0 && !seen[name] {
			seen[name] = true
			people = append(people, namePopObs{Name: name, Population: v})
		}
	}
	withGDP, err := metrics.InnerJoin(totals, gdps, "Name")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.ID, err)
	}
	j, err := metrics.JoinFrame(withGDP, people, "Name")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.ID, err)
	}
	metrics.LogJoin(opt.Metrics.Log(), a.ID, len(totals), j.Nrow(),
		zap.Int("with_gdp", withGDP.Nrow()), zap.Int("first_year", firstYear), zap.Int("year", year))

	var feats [][]float64
	if j.Nrow() > 0 {
		names, codes := j.Col("Name").Records(), j.Col("Code").Records()
		totalCol, gdppc, pops := j.Col("Total").Float(), j.Col("GDPPerCapita").Float(), j.Col("Population").Float()
		for i := range names {
			total, p := totalCol[i], pops[i]
			totalGDP := gdppc[i] * p
			perEmission := totalGDP / total
			perCapita := total / p
			feats = append(feats, []float64{perEmission, perCapita})
			a.Points = append(a.Points, Point{
				Name: names[i], Code: codes[i], X: perEmission, Y: perCapita,
				Values: map[string]float64{
					"gdp_per_emission":     perEmission,
					"emissions_per_capita": perCapita,
					"total_emissions":      total,
					"total_gdp":            totalGDP,
				},
			})
		}
	}
	if err := a.fit(feats, opt); err != nil {
		return nil, err
	}
	return a, nil
}

// EmissionChange clusters countries on their scaled percent change between
// two years. The plot shows the base-year emissions against current/base.
func EmissionChange(t *emissions.Table, from, to int, opt Options) (*Analysis, error) {
	a := &Analysis{
		ID:      "emission-change",
		Title:   fmt.Sprintf("Change in CO₂ emissions %d→%d", from, to),
		XLabel:  fmt.Sprintf("CO₂ emissions %d", from),
		YLabel:  fmt.Sprintf("Ratio %d / %d", to, from),
		Columns: []string{"pct_change", "base"},
		Scaled:  true,
	}
	var feats [][]float64
	for _, c := range t.PctChange(from, to) {
		feats = append(feats, []float64{c.Pct})
		a.Points = append(a.Points, Point{
			Name: c.Name, Code: c.Code, X: c.Base, Y: c.Ratio,
			Values: map[string]float64{"pct_change": c.Pct, "base": c.Base, "current": c.Current},
		})
	}
	if err := a.fit(feats, opt); err != nil {
		return nil, err
	}
	return a, nil
}

// GDPvsEmissionChange clusters countries on the percent change of GDP per
// capita and of emissions between two years, joining on ISO code.
func GDPvsEmissionChange(t *emissions.Table, g *dataset.GDP, pop *dataset.Population, from, to int, opt Options) (*Analysis, error) {
	a := &Analysis{
		ID:      "gdp-emission-change",
		Title:   fmt.Sprintf("GDP growth vs CO₂ change %d→%d", from, to),
		XLabel:  "GDP per capita change (%)",
		YLabel:  "CO₂ emissions change (%)",
		Columns: []string{"gdp_change", "co2_change"},
	}
	type pair struct{ from, to float64 }
	byCode := map[string]*pair{}
	var order []string
	for _, r := range metrics.EuropeanGDP(g, pop, opt.Metrics) {
		if r.Code == "" || (r.Year != from && r.Year != to) || !finite(r.GDPPerCapita) {
			continue
		}
		p := byCode[r.Code]
		if p == nil {
			p = &pair{from: math.NaN(), to: math.NaN()}
			byCode[r.Code] = p
			order = append(order, r.Code)
		}
		if r.Year == from {
			p.from = r.GDPPerCapita
		} else {
			p.to = r.GDPPerCapita
		}
	}
	var gdpChanges []gdpChangeObs
	for _, code := range order {
		p := byCode[code]
		if finite(p.from, p.to) && p.from != 0 {
			gdpChanges = append(gdpChanges, gdpChangeObs{Code: code, GDPChange: (p.to - p.from) / p.from * 100})
		}
	}
	var changes []changeObs
	for _, c := range t.PctChange(from, to) {
		if c.Code != "" {
			changes = append(changes, changeObs{Code: c.Code, Name: c.Name, Pct: c.Pct})
		}
	}
	j, err := metrics.InnerJoin(changes, gdpChanges, "Code")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.ID, err)
	}
	metrics.LogJoin(opt.Metrics.Log(), a.ID, len(changes), j.Nrow(), zap.Int("from", from), zap.Int("to", to))

	var feats [][]float64
	if j.Nrow() > 0 {
		names, codes := j.Col("Name").Records(), j.Col("Code").Records()
		pct, gdpChange := j.Col("Pct").Float(), j.Col("GDPChange").Float()
		for i := range names {
			feats = append(feats, []float64{gdpChange[i], pct[i]})
			a.Points = append(a.Points, Point{
				Name: names[i], Code: codes[i], X: gdpChange[i], Y: pct[i],
				Values: map[string]float64{"gdp_change": gdpChange[i], "co2_change": pct[i]},
			})
		}
	}
	if err := a.fit(feats, opt); err != nil {
		return nil, err
	}
	return a, nil
}
