package dashboard

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/KaramelBytes/co2atlas/internal/chart"
	"github.com/KaramelBytes/co2atlas/internal/cluster"
	"github.com/KaramelBytes/co2atlas/internal/countries"
	"github.com/KaramelBytes/co2atlas/internal/dataset"
	"github.com/KaramelBytes/co2atlas/internal/emissions"
	"github.com/KaramelBytes/co2atlas/internal/forecast"
	"github.com/KaramelBytes/co2atlas/internal/geo"
	"github.com/KaramelBytes/co2atlas/internal/metrics"
	"github.com/KaramelBytes/co2atlas/internal/sectors"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

var (
	seaGreen = color.RGBA{R: 60, G: 179, B: 113, A: 255}
	purple   = color.RGBA{R: 128, G: 0, B: 128, A: 255}
	red      = color.RGBA{R: 220, G: 0, B: 0, A: 255}
	green    = color.RGBA{R: 0, G: 128, B: 0, A: 255}
)

func (b *Builder) overview(int) (*Page, error) {
	t := b.bundle.Emissions
	first, last := t.Years[0], t.Years[len(t.Years)-1]
	p := &Page{
		Title: "CO₂ and Harmful Gas Emissions in Europe",
		Intro: "How much CO₂ do European countries emit, how has it changed since " + strconv.Itoa(first) +
			", and how does it relate to population, GDP and economic sectors?",
	}
	totals := t.Totals(t.Years)
	latest := totals[len(totals)-1]
	p.add(
		heading(2, "Overview"),
		text(fmt.Sprintf("The prepared table covers **%d** countries and **%d** years (%d–%d) of %s emissions. "+
			"In %d the countries together emitted **%s kt**.",
			len(t.Rows), len(t.Years), first, last, substance(b.bundle), latest.Year, chart.FormatNumber(latest.Value))),
	)
	xs, ys := points(totals)
	f, err := chart.Lines(chart.LineSpec{
		Labels: chart.Labels{Title: fmt.Sprintf("Total emissions in Europe (%d–%d)", first, last), XLabel: "Year", YLabel: "Emissions (kt)"},
		Series: []chart.Series{{Name: "Total", X: xs, Y: ys, Color: chart.Crimson}},
	})
	p.add(b.fig("totals", "Sum over every prepared country", f, err))

	var rows [][]string
	for _, k := range dataset.Kinds() {
		state := "not loaded"
		if b.bundle.Has(k) {
			state = "loaded"
		}
		rows = append(rows, []string{string(k), state})
	}
	p.add(
		heading(3, "Data"),
		text("Emissions and sector breakdown come from **EDGAR**, population from **Kaggle** world population, "+
			"GDP from **Our World in Data** and boundaries from **Natural Earth**. Former territories are "+
			"apportioned to their successor states and country names are normalized before any join."),
		table("Datasets", []string{"Dataset", "Status"}, rows),
	)
	return p, nil
}

func (b *Builder) byCountry(int) (*Page, error) {
	t := b.bundle.Emissions
	n := b.opt.TopN
	first, last := t.Years[0], t.Years[len(t.Years)-1]
	period := fmt.Sprintf("%d–%d", first, last)
	p := &Page{
		Title: "CO₂ emissions in European countries",
		Intro: "Average yearly emissions per country and the trends of the largest and smallest emitters.",
	}
	all := t.Top(-1)
	if len(all) == 0 {
		return nil, emissions.ErrNoData
	}
	p.add(heading(2, "Average emissions ("+period+")"))
	p.add(b.rankedBar("average-all", "Average CO₂ emissions ("+period+")", "Emissions (kt)", all, chart.Crimson))

	top := t.Top(n)
	p.add(b.rankedBar("average-top", fmt.Sprintf("Top %d emitters (%s)", len(top), period), "Emissions (kt)", top, seaGreen))
	p.add(text(fmt.Sprintf("The largest average emitters are %s.", listNames(top))))
	p.add(rankedTable(fmt.Sprintf("Top %d average emitters", len(top)), "Average (kt)", top))

	p.add(heading(2, "Emission trends"))
	f, err := chart.Lines(chart.LineSpec{
		Labels: chart.Labels{Title: fmt.Sprintf("Emission trends: top %d polluting countries (%s)", len(top), period), XLabel: "Year", YLabel: "Emissions (kt)"},
		Series: b.rowSeries(top),
	})
	p.add(b.fig("trend-top", "", f, err))

	bottom := t.Bottom(n)
	f, err = chart.Lines(chart.LineSpec{
		Labels: chart.Labels{Title: fmt.Sprintf("Emission trends: %d least polluting countries (%s)", len(bottom), period), XLabel: "Year", YLabel: "Emissions (kt)"},
		Series: b.rowSeries(bottom),
	})
	p.add(b.fig("trend-bottom", "", f, err))
	p.add(text(fmt.Sprintf("The smallest average emitters are %s.", listNames(bottom))))
	return p, nil
}

func (b *Builder) byPopulation(int) (*Page, error) {
	t := b.bundle.Emissions
	pop := b.bundle.Data.Population
	years := b.snapshotYears()
	if len(years) == 0 {
		return nil, fmt.Errorf("no snapshot years in %d–%d: %w", t.Years[0], t.Years[len(t.Years)-1], ErrYear)
	}
	p := &Page{
		Title: "CO₂ emissions in relation to population",
		Intro: "Total emissions against total population, and emissions per person.",
	}
	cx, cy := points(t.Totals(years))
	px, py := points(metrics.PopulationTotals(pop, metrics.Europe, years))
	f, err := chart.DualSeries(
		chart.LineSpec{
			Labels:  chart.Labels{Title: fmt.Sprintf("CO₂ emissions and population growth in Europe (%d–%d)", years[0], years[len(years)-1]), YLabel: "Emissions (kt)"},
			Series:  []chart.Series{{Name: "CO₂", X: cx, Y: cy, Color: chart.Crimson}},
			Markers: true,
		},
		chart.LineSpec{
			Labels:  chart.Labels{XLabel: "Year", YLabel: "Population"},
			Series:  []chart.Series{{Name: "Population", X: px, Y: py, Color: chart.DodgerBlue}},
			Markers: true,
		},
	)
	p.add(heading(2, "Emissions and population"), b.fig("totals", "", f, err))

	year := years[len(years)-1]
	pc := metrics.PerCapita(t, pop, year, b.opt.Metrics)
	top := head(pc, b.opt.TopN)
	p.add(heading(2, fmt.Sprintf("Emissions per capita (%d)", year)))
	p.add(b.rankedBar("per-capita-top", fmt.Sprintf("Top %d European countries by CO₂ per capita (%d)", len(top), year), "Tonnes per person", top, purple))
	if len(top) > 0 {
		p.add(text(fmt.Sprintf("The highest emissions per person in %d are in %s.", year, listNames(top))))
	}
	p.add(rankedTable("Emissions per capita", "t/person", top))
	if b.bundle.Has(dataset.KindBoundaries) && len(pc) > 0 {
		vals := rankedValues(pc)
		lo, hi := valueRange(vals)
		f, err := chart.Choropleth(chart.ChoroplethSpec{
			Title:   fmt.Sprintf("European CO₂ emissions per capita (%d)", year),
			Regions: b.regions(vals, geo.EuropeBound),
			Min:     lo,
			Max:     hi,
			Scheme:  "OrRd",
			Bound:   geo.EuropeBound,
			Legend:  "t CO₂ per person",
		})
		p.add(b.fig("per-capita-map", "", f, err))
	}
	return p, nil
}

func (b *Builder) gdp(int) (*Page, error) {
	t := b.bundle.Emissions
	in := metrics.GDPIntensity(t, b.bundle.Data.GDP, b.bundle.Data.Population, b.opt.Metrics)
	if len(in) == 0 {
		return nil, fmt.Errorf("no country has both emissions and GDP: %w", emissions.ErrNoData)
	}
	p := &Page{
		Title: "CO₂ emissions in relation to GDP",
		Intro: "Average emissions per million USD of GDP since " + strconv.Itoa(b.opt.Metrics.FirstYear) + ".",
	}
	n := b.opt.TopN
	worst, best := metrics.Worst(in, n), metrics.Best(in, n)
	p.add(heading(2, "Most carbon-intensive economies"))
	p.add(b.intensityBar("worst", fmt.Sprintf("Top %d worst countries (highest CO₂ per million USD GDP)", len(worst)), worst, red))
	p.add(intensityTable(worst))
	p.add(heading(2, "Least carbon-intensive economies"))
	p.add(b.intensityBar("best", fmt.Sprintf("Top %d best countries (lowest CO₂ per million USD GDP)", len(best)), best, green))
	p.add(intensityTable(best))
	p.add(text(fmt.Sprintf("%s emits the most CO₂ per unit of GDP, %s the least.", worst[0].Name, best[0].Name)))
	if b.bundle.Has(dataset.KindBoundaries) {
		vals := make(map[string]float64, len(in))
		for _, i := range in {
			vals[i.Name] = i.CO2PerMillion
		}
		lo, hi := valueRange(vals)
		f, err := chart.Choropleth(chart.ChoroplethSpec{
			Title:   "CO₂ emissions per million USD GDP by European country",
			Regions: b.regions(vals, geo.EuropeBound),
			Min:     lo,
			Max:     hi,
			Scheme:  "YlGnBu",
			Bound:   geo.EuropeBound,
			Legend:  "t CO₂ per million USD",
		})
		p.add(b.fig("intensity-map", "", f, err))
	}
	return p, nil
}

func (b *Builder) clustering(int) (*Page, error) {
	t := b.bundle.Emissions
	g, pop := b.bundle.Data.GDP, b.bundle.Data.Population
	y, copt := b.opt.ClusterYears, b.opt.Cluster
	p := &Page{
		Title: "CO₂ emission clustering",
		Intro: fmt.Sprintf("k-means with k=%d (seed %d) groups countries with similar emission profiles. "+
			"The elbow chart shows the within-cluster sum of squares for other choices of k.", copt.KMeans.K, copt.KMeans.Seed),
	}
	runs := []struct {
		title string
		run   func() (*cluster.Analysis, error)
	}{
		{"emissions vs GDP", func() (*cluster.Analysis, error) { return cluster.EmissionsVsGDP(t, g, pop, y.EmissionsGDP, copt) }},
		{"GDP efficiency", func() (*cluster.Analysis, error) {
			return cluster.Efficiency(t, g, pop, b.opt.Metrics.FirstYear, y.EfficiencyTo, copt)
		}},
		{"emission change", func() (*cluster.Analysis, error) { return cluster.EmissionChange(t, y.ChangeFrom, y.ChangeTo, copt) }},
		{"GDP vs emission change", func() (*cluster.Analysis, error) {
			return cluster.GDPvsEmissionChange(t, g, pop, y.GDPChangeFrom, y.ChangeTo, copt)
		}},
	}
	done := 0
	for _, r := range runs {
		a, err := r.run()
		if err != nil {
			b.log.Warn("clustering skipped", zap.String("analysis", r.title), zap.Error(err))
			p.add(heading(2, capitalize(r.title)), text("_Not enough data for this analysis._"))
			continue
		}
		done++
		p.add(b.analysisBlocks(a)...)
	}
	if done == 0 {
		return nil, fmt.Errorf("clustering: %w", cluster.ErrNoData)
	}
	return p, nil
}

func (b *Builder) analysisBlocks(a *cluster.Analysis) []Block {
	pts := make([]chart.Point, len(a.Points))
	for i, pt := range a.Points {
		pts[i] = chart.Point{X: pt.X, Y: pt.Y, Group: pt.Cluster, Label: pt.Name}
	}
	sc, err := chart.Scatter(chart.ScatterSpec{
		Labels:      chart.Labels{Title: a.Title, XLabel: a.XLabel, YLabel: a.YLabel},
		Points:      pts,
		PointLabels: true,
	})
	out := []Block{heading(2, a.Title), b.fig(a.ID, "", sc, err)}
	if a.Scaled {
		out = append(out, text("Features are standardized before clustering."))
	}
	el, err := chart.Elbow("Elbow method: "+a.Title, a.Elbow)
	out = append(out, b.fig(a.ID+"-elbow", fmt.Sprintf("Inertia at k=%d: %s", a.K, chart.FormatNumber(a.Inertia)), el, err))
	header := append([]string{"Country"}, a.Columns...)
	for c := 0; c < a.Clusters(); c++ {
		members := a.Members(c)
		rows := make([][]string, len(members))
		for i, m := range members {
			row := []string{m.Name}
			for _, col := range a.Columns {
				row = append(row, formatValue(m.Values[col]))
			}
			rows[i] = row
		}
		out = append(out, table(fmt.Sprintf("Cluster %d", c), header, rows))
	}
	return out
}

func (b *Builder) leadingSectors(int) (*Page, error) {
	t := b.bundle.Emissions
	sopt := b.opt.Sectors
	sopt.Logger = b.log
	bs, err := sectors.Analyze(t, b.bundle.Data.Sectors, sopt)
	if err != nil {
		return nil, err
	}
	n := sopt.TopSectors
	if n <= 0 {
		n = 10
	}
	p := &Page{
		Title: "Leading sectors of CO₂ emissions",
		Intro: fmt.Sprintf("Sector breakdown of the %d largest emitters.", len(bs)),
	}
	for _, bd := range bs {
		names, vals := bd.Stack(n)
		xs := make([]float64, len(bd.Years))
		for i, y := range bd.Years {
			xs[i] = float64(y)
		}
		period := fmt.Sprintf("%d–%d", bd.Years[0], bd.Years[len(bd.Years)-1])
		f, err := chart.StackedArea(chart.StackSpec{
			Labels: chart.Labels{Title: fmt.Sprintf("%s CO₂ emissions by sector (%s)", bd.Country, period), XLabel: "Year", YLabel: "Emissions (kt)"},
			X:      xs,
			Names:  names,
			Values: vals,
		})
		p.add(
			heading(2, fmt.Sprintf("Top %d sectors in %s (%s)", len(names), bd.Country, period)),
			b.fig("sectors-"+slug(bd.Country), "", f, err),
		)
		var rows [][]string
		for _, s := range bd.Top(n) {
			rows = append(rows, []string{s.Name, chart.FormatNumber(s.Total)})
		}
		p.add(table("", []string{"Sector", "Total CO₂ emissions (kt)"}, rows))
	}
	factors := sectors.LeadingFactors(bs, n)
	var list strings.Builder
	for _, f := range factors {
		fmt.Fprintf(&list, "- %s\n", f.Sector)
	}
	p.add(
		heading(2, "Leading factors in CO₂ emissions"),
		text("Sectors ranked by how many of the top emitters count them among their largest sources:\n\n"+list.String()),
	)
	var rows [][]string
	for _, f := range factors {
		rows = append(rows, []string{f.Sector, strconv.Itoa(f.Countries), chart.FormatNumber(f.Total)})
	}
	p.add(table("Leading factors", []string{"Sector", "Countries", "Total (kt)"}, rows))
	return p, nil
}

func (b *Builder) visualization(year int) (*Page, error) {
	t := b.bundle.Emissions
	years := b.snapshotYears()
	p := &Page{
		Title: "CO₂ emissions maps",
		Intro: "Maps share one colour scale across all years so they can be compared.",
	}
	p.add(selector(years, year))
	bound := geo.WideEuropeBound

	if b.bundle.Has(dataset.KindPopulation) {
		byYear := metrics.PerCapitaByYear(t, b.bundle.Data.Population, years, b.opt.Metrics)
		lo, hi := rangeByYear(byYear)
		f, err := chart.Choropleth(chart.ChoroplethSpec{
			Title:   fmt.Sprintf("CO₂ emissions per capita in Europe (%d)", year),
			Regions: b.regions(rankedValues(byYear[year]), bound),
			Min:     lo,
			Max:     hi,
			Scheme:  "Reds",
			Bound:   bound,
			Legend:  "t CO₂ per person",
		})
		p.add(heading(2, "Emissions per capita"), b.fig("per-capita-map", "", f, err))
	}

	totals := make(map[int][]emissions.Ranked, len(years))
	for _, y := range years {
		totals[y] = t.At(y)
	}
	lo, hi := rangeByYear(totals)
	f, err := chart.Choropleth(chart.ChoroplethSpec{
		Title:   fmt.Sprintf("Total CO₂ emissions in Europe (%d)", year),
		Regions: b.regions(rankedValues(totals[year]), bound),
		Min:     lo,
		Max:     hi,
		Scheme:  "Reds",
		Bound:   bound,
		Legend:  "Emissions (kt)",
	})
	p.add(heading(2, "Total emissions"), b.fig("total-map", "", f, err))

	if b.bundle.Has(dataset.KindGDP) {
		byYear := metrics.GDPPerCapitaByYear(b.bundle.Data.GDP, b.bundle.Data.Population, years, b.opt.Metrics)
		lo, hi := rangeByYear(byYear)
		f, err := chart.Choropleth(chart.ChoroplethSpec{
			Title:   fmt.Sprintf("GDP per capita in Europe (%d)", year),
			Regions: b.regions(rankedValues(byYear[year]), bound),
			Min:     lo,
			Max:     hi,
			Scheme:  "YlGnBu",
			Bound:   bound,
			Legend:  "GDP per capita (USD)",
		})
		p.add(heading(2, "GDP per capita"), b.fig("gdp-map", "", f, err))
	}
	return p, nil
}

func (b *Builder) forecasts(int) (*Page, error) {
	s, err := forecast.Build(b.bundle.Data.History, b.bundle.Data.Forecast)
	if err != nil {
		return nil, err
	}
	p := &Page{
		Title: "Forecasts for CO₂ emissions in Europe",
		Intro: "Observed totals next to pre-computed SARIMA predictions, summed over every country.",
	}
	f, err := chart.YearBars(chart.YearBarsSpec{
		Labels:    chart.Labels{Title: "Forecasts for total CO₂ emissions in Europe", XLabel: "Year", YLabel: "CO₂ emissions"},
		Actual:    yearValues(s.Actual),
		Predicted: yearValues(s.Predicted),
	})
	p.add(b.fig("forecast", "", f, err))
	sum := s.Summarize()
	if !math.IsNaN(sum.ChangePct) {
		trend := "an increase"
		if sum.Declining {
			trend = "a decline"
		}
		p.add(text(fmt.Sprintf("The last observed total (%d) is **%s**; the prediction for %d is **%s**, %s of %.1f%%.",
			sum.LastActualYear, chart.FormatNumber(sum.LastActual), sum.LastPredictedYear,
			chart.FormatNumber(sum.LastPredicted), trend, math.Abs(sum.ChangePct))))
	}
	if sum.OverlapYears > 0 {
		p.add(text(fmt.Sprintf("Predictions overlap %d observed years; the chart shows the prediction there.", sum.OverlapYears)))
	}
	return p, nil
}

// regions joins values onto the boundary features inside bound. European
// features without a value are kept and drawn as missing.
func (b *Builder) regions(vals map[string]float64, bound orb.Bound) []chart.Region {
	atlas := b.bundle.Data.Boundaries
	if atlas == nil {
		return nil
	}
	var out []chart.Region
	for _, c := range atlas.Clip(bound).Countries {
		v, ok := vals[c.Key()]
		if !ok {
			v, ok = vals[countries.Canonical(c.Name)]
		}
		if !ok {
			if !strings.EqualFold(c.Continent, metrics.Europe) {
				continue
			}
			v = math.NaN()
		}
		out = append(out, chart.Region{Name: c.Key(), Shape: c.Shape, Value: v})
	}
	return out
}

func (b *Builder) rankedBar(id, title, ylabel string, rs []emissions.Ranked, col color.Color) Block {
	names := make([]string, len(rs))
	vals := make([]float64, len(rs))
	for i, r := range rs {
		names[i], vals[i] = r.Name, r.Value
	}
	f, err := chart.Bar(chart.BarSpec{
		Labels: chart.Labels{Title: title, YLabel: ylabel},
		Names:  names,
		Values: vals,
		Color:  col,
		Rotate: true,
	})
	return b.fig(id, "", f, err)
}

func (b *Builder) intensityBar(id, title string, in []metrics.Intensity, col color.Color) Block {
	names := make([]string, len(in))
	vals := make([]float64, len(in))
	for i, r := range in {
		names[i], vals[i] = r.Name, r.CO2PerMillion
	}
	f, err := chart.Bar(chart.BarSpec{
		Labels:     chart.Labels{Title: title, YLabel: "t CO₂ per million USD"},
		Names:      names,
		Values:     vals,
		Color:      col,
		Rotate:     true,
		ShowValues: true,
	})
	return b.fig(id, "", f, err)
}

func (b *Builder) rowSeries(rs []emissions.Ranked) []chart.Series {
	t := b.bundle.Emissions
	out := make([]chart.Series, 0, len(rs))
	for _, r := range rs {
		row, ok := t.Lookup(r.Name)
		if !ok {
			continue
		}
		xs, ys := points(row.Series(t.Years))
		out = append(out, chart.Series{Name: r.Name, X: xs, Y: ys})
	}
	return out
}

func intensityTable(in []metrics.Intensity) Block {
	rows := make([][]string, len(in))
	for i, r := range in {
		rows[i] = []string{r.Name, r.Code, chart.FormatNumber(r.GDPPerCapita), chart.FormatNumber(r.Population),
			chart.FormatNumber(r.CO2), formatValue(r.CO2PerMillion)}
	}
	return table("", []string{"Country", "Code", "GDP per capita", "Population", "CO₂ (t)", "t per million USD"}, rows)
}

func rankedTable(caption, valueHeader string, rs []emissions.Ranked) Block {
	rows := make([][]string, len(rs))
	for i, r := range rs {
		rows[i] = []string{strconv.Itoa(i + 1), r.Name, formatValue(r.Value)}
	}
	return table(caption, []string{"#", "Country", valueHeader}, rows)
}

func substance(b *emissions.Bundle) string {
	s := b.Options.Substance
	switch {
	case s == "":
		return "all greenhouse gas"
	case strings.EqualFold(s, "CO2"):
		return "CO₂"
	}
	return s
}
