package chart

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(x, y float64) orb.MultiPolygon {
	return orb.MultiPolygon{{{{x, y}, {x + 1, y}, {x + 1, y + 1}, {x, y + 1}, {x, y}}}}
}

func render(t *testing.T, fig Figure, format string) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, fig, format, 72))
	return buf.Bytes()
}

func TestBarWritesPNGAndSVG(t *testing.T) {
	fig, err := Bar(BarSpec{
		Labels:     Labels{Title: "Average emissions", YLabel: "kt"},
		Names:      []string{"Germany", "France", "Luxembourg"},
		Values:     []float64{800, 300, math.NaN()},
		Rotate:     true,
		ShowValues: true,
	})
	require.NoError(t, err)
	png := render(t, fig, "png")
	assert.Equal(t, []byte("\x89PNG"), png[:4])
	svg := render(t, fig, "svg")
	assert.Contains(t, string(svg), "<svg")

	_, err = Bar(BarSpec{Names: []string{"a"}, Values: []float64{1, 2}})
	assert.Error(t, err)
	_, err = Bar(BarSpec{})
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestWriteRejectsUnknownFormat(t *testing.T) {
	fig, err := Elbow("elbow", []float64{10, 4, 2})
	require.NoError(t, err)
	err = Write(&bytes.Buffer{}, fig, "gif", 0)
	assert.ErrorIs(t, err, ErrFormat)
}

func TestSaveByExtension(t *testing.T) {
	fig, err := Lines(LineSpec{
		Labels: Labels{Title: "Totals"},
		Series: []Series{
			{Name: "Emissions", X: []float64{2000, 2001, 2002}, Y: []float64{1, math.NaN(), 3}},
			{Name: "Population", X: []float64{2000, 2001, 2002}, Y: []float64{2, 2, 2}},
		},
	})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "nested", "totals.svg")
	require.NoError(t, Save(path, fig, 0))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<svg")

	_, err = Lines(LineSpec{Series: []Series{{Name: "empty"}}})
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestDualAndStacked(t *testing.T) {
	years := []float64{2000, 2001, 2002}
	fig, err := DualSeries(
		LineSpec{Series: []Series{{Name: "CO2", X: years, Y: []float64{3, 2, 1}}}},
		LineSpec{Series: []Series{{Name: "Population", X: years[1:], Y: []float64{5, 6}}}},
	)
	require.NoError(t, err)
	w, h := fig.Size()
	assert.Greater(t, h, w/2)
	render(t, fig, "png")

	st, err := StackedArea(StackSpec{X: years, Names: []string{"Power", "Road"}, Values: [][]float64{{1, 2, 3}, {1, math.NaN(), 1}}})
	require.NoError(t, err)
	render(t, st, "svg")

	_, err = StackedArea(StackSpec{X: years, Names: []string{"Power"}, Values: [][]float64{{1}}})
	assert.Error(t, err)
}

func TestScatterAndYearBars(t *testing.T) {
	fig, err := Scatter(ScatterSpec{
		Points: []Point{
			{X: 1, Y: 2, Group: 0, Label: "France"},
			{X: 3, Y: 1, Group: 1, Label: "Germany"},
			{X: math.NaN(), Y: 1, Group: 2},
		},
		PointLabels: true,
	})
	require.NoError(t, err)
	assert.Contains(t, string(render(t, fig, "svg")), "Cluster 1")

	yb, err := YearBars(YearBarsSpec{
		Actual:    []YearValue{{2020, 10}, {2021, 11}},
		Predicted: []YearValue{{2022, 9}, {2023, 8}},
	})
	require.NoError(t, err)
	render(t, yb, "png")

	_, err = YearBars(YearBarsSpec{})
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestChoropleth(t *testing.T) {
	spec := ChoroplethSpec{
		Title: "Per capita",
		Regions: []Region{
			{Name: "A", Shape: square(0, 0), Value: 1},
			{Name: "B", Shape: square(2, 0), Value: math.NaN()},
		},
		Min: 0, Max: 2,
		Bound:  orb.Bound{Min: orb.Point{-1, -1}, Max: orb.Point{4, 2}},
		Legend: "t per person",
	}
	fig, err := Choropleth(spec)
	require.NoError(t, err)
	render(t, fig, "png")
	r, ok := fig.(Ranged)
	require.True(t, ok)
	lo, hi := r.Range()
	assert.Equal(t, []float64{0, 2}, []float64{lo, hi})

	spec.Max = spec.Min
	_, err = Choropleth(spec)
	assert.Error(t, err)
}

func TestColormap(t *testing.T) {
	cm, err := Colormap("Reds", 0, 10)
	require.NoError(t, err)
	lo, hi := colorAt(cm, 0), colorAt(cm, 10)
	lr, lg, lb, _ := lo.RGBA()
	hr, hg, hb, _ := hi.RGBA()
	assert.Greater(t, lr+lg+lb, hr+hg+hb, "low values are lighter")
	assert.Equal(t, colorAt(cm, 10), colorAt(cm, 50), "values are clamped")
	assert.Equal(t, Missing, colorAt(cm, math.NaN()))

	_, err = Colormap("Rainbow", 0, 1)
	assert.Error(t, err)
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "1,234,568", FormatNumber(1234567.8))
	assert.Equal(t, "-4,500", FormatNumber(-4500))
	assert.Equal(t, "0.25", FormatNumber(0.25))
	assert.Equal(t, "12", FormatNumber(12))
	assert.Equal(t, "n/a", FormatNumber(math.NaN()))
}
