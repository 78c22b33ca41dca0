package cluster

import (
	"math"
	"testing"

	"github.com/KaramelBytes/co2atlas/internal/dataset"
	"github.com/KaramelBytes/co2atlas/internal/emissions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/mat"
)

func blobs() *mat.Dense {
	return mat.NewDense(9, 2, []float64{
		10, 10, 10.5, 9.5, 9.5, 10.2,
		0, 0, 0.3, -0.2, -0.1, 0.4,
		-10, 5, -9.6, 5.3, -10.4, 4.8,
	})
}

func TestFitSeparatesBlobs(t *testing.T) {
	res, err := DefaultKMeans().Fit(blobs())
	require.NoError(t, err)
	// Clusters are ordered by first centroid coordinate.
	assert.Equal(t, []int{2, 2, 2, 1, 1, 1, 0, 0, 0}, res.Labels)
	assert.InDelta(t, -10.0, res.Centroids.At(0, 0), 0.5)
	assert.Less(t, res.Inertia, 3.0)
}

func TestFitDeterministic(t *testing.T) {
	a, err := DefaultKMeans().Fit(blobs())
	require.NoError(t, err)
	b, err := DefaultKMeans().Fit(blobs())
	require.NoError(t, err)
	assert.Equal(t, a.Labels, b.Labels)
	assert.Equal(t, a.Inertia, b.Inertia)
}

func TestFitClampsAndRejects(t *testing.T) {
	km := DefaultKMeans()
	km.K = 5
	res, err := km.Fit(mat.NewDense(2, 1, []float64{1, 2}))
	require.NoError(t, err)
	r, _ := res.Centroids.Dims()
	assert.Equal(t, 2, r)
	assert.InDelta(t, 0, res.Inertia, 1e-12)

	_, err = km.Fit(&mat.Dense{})
	assert.ErrorIs(t, err, ErrNoData)

	_, err = km.Fit(mat.NewDense(1, 1, []float64{math.NaN()}))
	assert.Error(t, err)

	km.K = 0
	_, err = km.Fit(blobs())
	assert.Error(t, err)
}

func TestElbowDecreases(t *testing.T) {
	wss, err := Elbow(blobs(), 10, DefaultKMeans())
	require.NoError(t, err)
	require.Len(t, wss, 9)
	for i := 1; i < len(wss); i++ {
		assert.LessOrEqual(t, wss[i], wss[i-1]+1e-9)
	}
	assert.InDelta(t, 0, wss[len(wss)-1], 1e-9)
}

func TestStandardScale(t *testing.T) {
	s := StandardScale(mat.NewDense(3, 2, []float64{1, 5, 2, 5, 3, 5}))
	assert.InDelta(t, -math.Sqrt(1.5), s.At(0, 0), 1e-9)
	assert.InDelta(t, 0, s.At(1, 0), 1e-9)
	assert.Equal(t, 0.0, s.At(2, 1), "constant column")
}

func fixture() (*emissions.Table, *dataset.GDP, *dataset.Population) {
	names := []string{"France", "Germany", "Poland", "Spain", "Italy", "Czechia"}
	codes := []string{"FRA", "DEU", "POL", "ESP", "ITA", "CZE"}
	co2 := [][2]float64{{300, 250}, {800, 650}, {300, 310}, {250, 220}, {350, 300}, {100, 95}}
	gdpVals := [][2]float64{{40000, 44000}, {45000, 50000}, {15000, 19000}, {28000, 30000}, {33000, 35000}, {20000, 27000}}
	tab := &emissions.Table{Years: []int{2010, 2012, 2020, 2022}}
	g := &dataset.GDP{}
	pop := &dataset.Population{Years: []int{2022}}
	for i, n := range names {
		tab.Rows = append(tab.Rows, emissions.Row{Name: n, Code: codes[i], Values: map[int]float64{
			2010: co2[i][0], 2012: co2[i][0], 2020: (co2[i][0] + co2[i][1]) / 2, 2022: co2[i][1],
		}})
		g.Rows = append(g.Rows,
			dataset.GDPRow{Entity: n, Code: codes[i], Year: 2010, GDPPerCapita: gdpVals[i][0], Population: 1e7, EmissionsPerCapita: 5},
			dataset.GDPRow{Entity: n, Code: codes[i], Year: 2020, GDPPerCapita: (gdpVals[i][0] + gdpVals[i][1]) / 2, Population: 1e7, EmissionsPerCapita: 5},
			dataset.GDPRow{Entity: n, Code: codes[i], Year: 2022, GDPPerCapita: gdpVals[i][1], Population: 1e7, EmissionsPerCapita: 5},
		)
		pop.Rows = append(pop.Rows, dataset.PopulationRow{Code: codes[i], Name: n, Continent: "Europe", ByYear: map[int]float64{2022: float64(10+i) * 1e6}})
	}
	return tab, g, pop
}

func TestAnalyses(t *testing.T) {
	tab, g, pop := fixture()
	opt := DefaultOptions()

	a, err := EmissionsVsGDP(tab, g, pop, 2020, opt)
	require.NoError(t, err)
	assert.Len(t, a.Points, 6)
	assert.Equal(t, 3, a.Clusters())
	assert.Len(t, a.Elbow, 6)
	for c := 0; c < 3; c++ {
		m := a.Members(c)
		for i := 1; i < len(m); i++ {
			assert.GreaterOrEqual(t, m[i-1].Values["gdp_per_emission"], m[i].Values["gdp_per_emission"])
		}
	}

	eff, err := Efficiency(tab, g, pop, 2010, 2022, opt)
	require.NoError(t, err)
	require.Len(t, eff.Points, 6)
	assert.True(t, eff.Scaled)
	fr := eff.Points[0]
	assert.InDelta(t, (300+300+275+250)*1000.0, fr.Values["total_emissions"], 1e-6)
	assert.InDelta(t, 44000*10e6/fr.Values["total_emissions"], fr.X, 1e-6)

	ch, err := EmissionChange(tab, 2012, 2022, opt)
	require.NoError(t, err)
	assert.Len(t, ch.Points, 6)
	assert.InDelta(t, 250.0/300.0, ch.Points[0].Y, 1e-12)

	gc, err := GDPvsEmissionChange(tab, g, pop, 2010, 2022, opt)
	require.NoError(t, err)
	assert.Len(t, gc.Points, 6)
	assert.InDelta(t, 10.0, gc.Points[0].X, 1e-9)

	_, err = EmissionChange(&emissions.Table{}, 2012, 2022, opt)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestLloydRefillsEmptyClustersWithDistinctPoints(t *testing.T) {
	rows := [][]float64{{0}, {0.1}, {10}, {10.1}}
	// Both far centers start empty and must take different points.
	res := lloyd(rows, [][]float64{{0}, {100}, {200}}, 50, 0)

	seen := map[int]bool{}
	for _, l := range res.Labels {
		seen[l] = true
	}
	assert.Len(t, seen, 3)
	assert.InDelta(t, 0.005, res.Inertia, 1e-9)
	assert.InDelta(t, 0.05, res.Centroids.At(0, 0), 1e-9)
	assert.NotEqual(t, res.Centroids.At(1, 0), res.Centroids.At(2, 0))
}

func TestAnalysisReportsClampedK(t *testing.T) {
	tab, g, pop := fixture()
	opt := DefaultOptions()
	opt.KMeans.K = 10
	a, err := EmissionsVsGDP(tab, g, pop, 2020, opt)
	require.NoError(t, err)
	assert.Equal(t, 6, a.K)
}

func TestEmissionsVsGDPClustersInSourceUnits(t *testing.T) {
	tab, g, pop := fixture()
	kt := DefaultOptions()
	tonnes := DefaultOptions()
	tonnes.Metrics.UnitTonnes = 1

	a, err := EmissionsVsGDP(tab, g, pop, 2020, kt)
	require.NoError(t, err)
	b, err := EmissionsVsGDP(tab, g, pop, 2020, tonnes)
	require.NoError(t, err)
	require.Len(t, a.Points, len(b.Points))
	assert.Equal(t, b.Inertia, a.Inertia, "features do not depend on the display unit")
	for i := range a.Points {
		assert.Equal(t, b.Points[i].Cluster, a.Points[i].Cluster)
		assert.InDelta(t, b.Points[i].X*1000, a.Points[i].X, 1e-6)
	}
	fr := a.Points[0]
	assert.Equal(t, "FRA", fr.Code)
	assert.InDelta(t, 275e3, fr.X, 1e-6)
	assert.InDelta(t, 42000/275e3, fr.Values["gdp_per_emission"], 1e-12)
}

func TestAnalysesLogJoinCounts(t *testing.T) {
	tab, g, pop := fixture()
	tab.Rows = append(tab.Rows, emissions.Row{Name: "Japan", Code: "JPN", Values: map[int]float64{2010: 1000, 2012: 1000, 2020: 1000, 2022: 1000}})
	core, logs := observer.New(zap.DebugLevel)
	opt := DefaultOptions()
	opt.Metrics.Logger = zap.New(core)

	_, err := EmissionsVsGDP(tab, g, pop, 2020, opt)
	require.NoError(t, err)
	_, err = Efficiency(tab, g, pop, 2010, 2022, opt)
	require.NoError(t, err)
	_, err = GDPvsEmissionChange(tab, g, pop, 2010, 2022, opt)
	require.NoError(t, err)

	want := map[string][2]int64{
		"emissions-gdp":       {6, 6},
		"efficiency":          {7, 6},
		"gdp-emission-change": {7, 6},
	}
	for join, counts := range want {
		entries := logs.FilterMessage("join").FilterField(zap.String("join", join)).All()
		require.Len(t, entries, 1, join)
		f := entries[0].ContextMap()
		assert.Equal(t, counts[0], f["rows"], join)
		assert.Equal(t, counts[1], f["matched"], join)
		assert.Equal(t, counts[0]-counts[1], f["unmatched"], join)
	}
}
