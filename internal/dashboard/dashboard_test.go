package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/co2atlas/internal/chart"
	"github.com/KaramelBytes/co2atlas/internal/dataset"
	"github.com/KaramelBytes/co2atlas/internal/emissions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture(t *testing.T, kinds ...dataset.Kind) *emissions.Bundle {
	t.Helper()
	files := map[dataset.Kind]string{
		dataset.KindEmissions:  "emissions.csv",
		dataset.KindSectors:    "sectors.csv",
		dataset.KindPopulation: "population.csv",
		dataset.KindGDP:        "gdp.csv",
		dataset.KindHistory:    "co2_emissions_transformed.csv",
		dataset.KindForecast:   "forecasts_sarima.csv",
		dataset.KindBoundaries: "countries.geojson",
	}
	paths := map[dataset.Kind]string{dataset.KindEmissions: filepath.Join("..", "..", "testdata", files[dataset.KindEmissions])}
	for _, k := range kinds {
		paths[k] = filepath.Join("..", "..", "testdata", files[k])
	}
	set, err := dataset.LoadAll(context.Background(), paths, nil)
	require.NoError(t, err)
	b, err := emissions.BuildBundle(set, emissions.DefaultOptions())
	require.NoError(t, err)
	return b
}

func fullFixture(t *testing.T) *emissions.Bundle {
	return fixture(t, dataset.KindSectors, dataset.KindPopulation, dataset.KindGDP,
		dataset.KindHistory, dataset.KindForecast, dataset.KindBoundaries)
}

func testOptions() Options {
	opt := DefaultOptions()
	opt.TopN = 3
	opt.Sectors.Countries = 2
	return opt
}

func TestPagesAvailability(t *testing.T) {
	b := NewBuilder(fixture(t), testOptions(), nil)
	avail := map[string]bool{}
	for _, p := range b.Pages() {
		avail[p.Slug] = p.Available
	}
	assert.True(t, avail["overview"])
	assert.True(t, avail["by-country"])
	assert.False(t, avail["gdp"])
	assert.False(t, avail["visualization"])

	_, err := b.Page("gdp", 0)
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = b.Page("nope", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEveryPageBuilds(t *testing.T) {
	b := NewBuilder(fullFixture(t), testOptions(), nil)
	for _, info := range b.Pages() {
		require.True(t, info.Available, info.Slug)
		p, err := b.Page(info.Slug, 0)
		require.NoError(t, err, info.Slug)
		assert.Equal(t, info.Slug, p.Slug)
		assert.NotEmpty(t, p.Figures(), info.Slug)
	}
}

func TestOverviewFigures(t *testing.T) {
	b := NewBuilder(fixture(t), testOptions(), nil)
	p, err := b.Page("by-country", 0)
	require.NoError(t, err)
	for _, id := range []string{"average-all", "average-top", "trend-top", "trend-bottom"} {
		_, ok := p.Figure(id)
		assert.True(t, ok, id)
	}
}

func TestSelectorYears(t *testing.T) {
	b := NewBuilder(fullFixture(t), testOptions(), nil)
	var years []int
	for _, info := range b.Pages() {
		if info.Slug == "visualization" {
			years = info.Years
		}
	}
	assert.Equal(t, []int{2010, 2015, 2020, 2022}, years)

	p, err := b.Page("visualization", 0)
	require.NoError(t, err)
	assert.Equal(t, 2010, p.Year)

	p, err = b.Page("visualization", 2020)
	require.NoError(t, err)
	assert.Equal(t, 2020, p.Year)
	for _, id := range []string{"per-capita-map", "total-map", "gdp-map"} {
		_, ok := p.Figure(id)
		assert.True(t, ok, id)
	}

	_, err = b.Page("visualization", 1999)
	assert.ErrorIs(t, err, ErrYear)

	again, err := b.Page("visualization", 2020)
	require.NoError(t, err)
	assert.Same(t, p, again)
}

func TestVisualizationMapsShareScaleAcrossYears(t *testing.T) {
	b := NewBuilder(fullFixture(t), testOptions(), nil)
	first, err := b.Page("visualization", 2010)
	require.NoError(t, err)
	last, err := b.Page("visualization", 2022)
	require.NoError(t, err)

	for _, id := range []string{"per-capita-map", "total-map", "gdp-map"} {
		a, ok := first.Figure(id)
		require.True(t, ok, id)
		z, ok := last.Figure(id)
		require.True(t, ok, id)
		ra, ok := a.Fig.(chart.Ranged)
		require.True(t, ok, id)
		rz, ok := z.Fig.(chart.Ranged)
		require.True(t, ok, id)

		lo1, hi1 := ra.Range()
		lo2, hi2 := rz.Range()
		assert.Equal(t, lo1, lo2, id)
		assert.Equal(t, hi1, hi2, id)
		assert.Less(t, lo1, hi1, id)
	}
}

func TestRangeByYearSpansEveryYear(t *testing.T) {
	lo, hi := rangeByYear(map[int][]emissions.Ranked{
		2010: {{Name: "A", Value: 5}, {Name: "B", Value: 9}},
		2022: {{Name: "A", Value: 2}, {Name: "B", Value: math.NaN()}},
	})
	assert.Equal(t, 2.0, lo)
	assert.Equal(t, 9.0, hi)
}

func TestClusteringPage(t *testing.T) {
	b := NewBuilder(fullFixture(t), testOptions(), nil)
	p, err := b.Page("clustering", 0)
	require.NoError(t, err)
	for _, id := range []string{"emissions-gdp", "emissions-gdp-elbow", "efficiency", "emission-change", "gdp-emission-change"} {
		_, ok := p.Figure(id)
		assert.True(t, ok, id)
	}
}

func TestLeadingSectorsPage(t *testing.T) {
	b := NewBuilder(fullFixture(t), testOptions(), nil)
	p, err := b.Page("leading-sectors", 0)
	require.NoError(t, err)
	_, ok := p.Figure("sectors-germany")
	assert.True(t, ok)
	var found bool
	for _, bl := range p.Blocks {
		if bl.Kind == KindText && strings.Contains(bl.Text, "Power Industry") {
			found = true
		}
	}
	assert.True(t, found, "leading factors mention the largest sector")
}

func TestRenderHTML(t *testing.T) {
	b := NewBuilder(fullFixture(t), testOptions(), nil)
	p, err := b.Page("visualization", 2015)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, p, b.Pages(), ServerLinks{Format: "svg"}))
	out := buf.String()
	assert.Contains(t, out, "<h1>CO₂ emissions maps</h1>")
	assert.Contains(t, out, `src="/charts/visualization/total-map.svg?year=2015"`)
	assert.Contains(t, out, `href="/pages/visualization?year=2022"`)
	assert.Contains(t, out, `class="active">2015</a>`)
}

func TestRenderHTMLEscapes(t *testing.T) {
	p := &Page{Slug: "x", Title: "<b>bold</b>", Blocks: []Block{
		table("", []string{"<script>"}, [][]string{{"a&b"}}),
	}}
	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, p, nil, StaticLinks{Format: "png"}))
	out := buf.String()
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "&lt;b&gt;bold&lt;/b&gt;")
	assert.Contains(t, out, "a&amp;b")
}

func TestRenderMarkdown(t *testing.T) {
	p := &Page{Slug: "s", Title: "Sample", Year: 2020, Blocks: []Block{
		heading(2, "Part"),
		text("Some *text*."),
		figure("fig", "A caption", nil),
		table("Caption", []string{"Country", "Value"}, [][]string{{"A|B", "1"}}),
	}}
	var buf bytes.Buffer
	require.NoError(t, RenderMarkdown(&buf, []*Page{p}, func(p *Page, id string) string { return ChartFile(p.Slug, id, p.Year, "png") }))
	out := buf.String()
	assert.Contains(t, out, "## Sample")
	assert.Contains(t, out, "### Part")
	assert.Contains(t, out, "![fig](charts/s/2020/fig.png)")
	assert.Contains(t, out, "| A\\|B | 1 |")
}

func TestLinks(t *testing.T) {
	s := StaticLinks{Format: "png"}
	assert.Equal(t, "gdp.html", s.Page("gdp", 0))
	assert.Equal(t, "visualization-2020.html", s.Page("visualization", 2020))
	assert.Equal(t, "charts/gdp/worst.png", s.Chart("gdp", "worst", 0))
	srv := ServerLinks{Format: "svg"}
	assert.Equal(t, "/pages/gdp", srv.Page("gdp", 0))
	assert.Equal(t, "/charts/visualization/gdp-map.svg?year=2010", srv.Chart("visualization", "gdp-map", 2010))
}

func TestRenderSite(t *testing.T) {
	dir := t.TempDir()
	b := NewBuilder(fixture(t, dataset.KindPopulation, dataset.KindBoundaries), testOptions(), nil)
	res, err := RenderSite(context.Background(), b, SiteOptions{Dir: dir, Format: "svg", Workers: 2})
	require.NoError(t, err)
	assert.Contains(t, res.Skipped, "gdp")
	assert.Contains(t, res.Skipped, "forecasts")
	assert.Positive(t, res.Charts)

	for _, name := range []string{"index.html", "overview.html", "visualization.html", "visualization-2022.html", "report.md", "pages.json"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
	_, err = os.Stat(filepath.Join(dir, "charts", "visualization", "2015", "total-map.svg"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "charts", "by-country", "trend-top.svg"))
	assert.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "pages.json"))
	require.NoError(t, err)
	var pages []Page
	require.NoError(t, json.Unmarshal(data, &pages))
	assert.Equal(t, res.Pages, len(pages))
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "bosnia-and-herzegovina", slug("Bosnia and Herzegovina"))
	assert.Equal(t, "türkiye", slug("Türkiye"))
	assert.Equal(t, "Émissions", capitalize("émissions"))
	assert.Equal(t, "A, B and C", listNames([]emissions.Ranked{{Name: "A"}, {Name: "B"}, {Name: "C"}}))
	lo, hi := valueRange(map[string]float64{"a": 2, "b": 2})
	assert.Equal(t, 2.0, lo)
	assert.Equal(t, 3.0, hi)
}
