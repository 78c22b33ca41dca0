package metrics

import (
	"math"
	"testing"

	"github.com/KaramelBytes/co2atlas/internal/dataset"
	"github.com/KaramelBytes/co2atlas/internal/emissions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func table() *emissions.Table {
	return &emissions.Table{
		Years: []int{2020, 2022},
		Rows: []emissions.Row{
			{Code: "FRA", Name: "France", Values: map[int]float64{2020: 300, 2022: 280}},
			{Code: "CZE", Name: "Czechia", Values: map[int]float64{2020: 100, 2022: 90}},
			{Code: "LUX", Name: "Luxembourg", Values: map[int]float64{2020: 10, 2022: math.NaN()}},
		},
	}
}

func population() *dataset.Population {
	return &dataset.Population{
		Years: []int{2020, 2022},
		Rows: []dataset.PopulationRow{
			{Code: "FRA", Name: "France", Continent: "Europe", ByYear: map[int]float64{2020: 60e6, 2022: 70e6}},
			{Code: "CZE", Name: "Czech Republic", Continent: "Europe", ByYear: map[int]float64{2020: 10e6, 2022: 10e6}},
			{Code: "JPN", Name: "Japan", Continent: "Asia", ByYear: map[int]float64{2020: 120e6, 2022: 125e6}},
		},
	}
}

func gdp() *dataset.GDP {
	return &dataset.GDP{Rows: []dataset.GDPRow{
		{Entity: "France", Code: "FRA", Year: 1960, GDPPerCapita: 1, Population: 1},
		{Entity: "France", Code: "FRA", Year: 2020, GDPPerCapita: 40000, Population: 60e6},
		{Entity: "France", Code: "FRA", Year: 2022, GDPPerCapita: 44000, Population: 70e6},
		{Entity: "Czechia", Code: "CZE", Year: 2020, GDPPerCapita: 20000, Population: 10e6},
		{Entity: "Czechia", Code: "CZE", Year: 2022, GDPPerCapita: math.NaN(), Population: 10e6},
		{Entity: "Luxembourg", Code: "LUX", Year: 2020, GDPPerCapita: 100000, Population: math.NaN()},
		{Entity: "Japan", Code: "JPN", Year: 2020, GDPPerCapita: 35000, Population: 120e6},
	}}
}

func TestPerCapitaJoinsCanonicalNames(t *testing.T) {
	pc := PerCapita(table(), population(), 2022, DefaultOptions())
	require.Len(t, pc, 2)
	assert.Equal(t, "Czechia", pc[0].Name)
	assert.InDelta(t, 0.009, pc[0].Value, 1e-12)
	assert.InDelta(t, 0.004, pc[1].Value, 1e-12)

	byYear := PerCapitaByYear(table(), population(), []int{2020, 2022}, DefaultOptions())
	assert.Len(t, byYear[2020], 2)
	assert.Nil(t, PerCapita(nil, population(), 2022, DefaultOptions()))
}

func TestPopulationTotals(t *testing.T) {
	s := PopulationTotals(population(), Europe, []int{2020, 2022})
	assert.Equal(t, dataset.Series{{2020, 70e6}, {2022, 80e6}}, s)
}

func TestGDPIntensity(t *testing.T) {
	in := GDPIntensity(table(), gdp(), population(), DefaultOptions())
	require.Len(t, in, 2, "Luxembourg has no population and Japan is not European")

	byCode := map[string]Intensity{}
	for _, i := range in {
		byCode[i.Code] = i
	}
	fra := byCode["FRA"]
	assert.InDelta(t, 42000.0, fra.GDPPerCapita, 1e-9)
	assert.InDelta(t, 65e6, fra.Population, 1e-3)
	assert.InDelta(t, 290e3, fra.CO2, 1e-9)
	assert.InDelta(t, 290e3/(42000*65e6)*1e6, fra.CO2PerMillion, 1e-9)

	cze := byCode["CZE"]
	assert.InDelta(t, 20000.0, cze.GDPPerCapita, 1e-9)

	assert.Equal(t, "CZE", in[0].Code)
	assert.Equal(t, "CZE", Worst(in, 1)[0].Code)
	assert.Equal(t, "FRA", Best(in, 1)[0].Code)
	assert.Len(t, Best(in, 5), 2)
	assert.Equal(t, in, Worst(in, -1), "negative n returns all")
	best := Best(in, -1)
	require.Len(t, best, 2)
	assert.Equal(t, "FRA", best[0].Code)
}

// joinCounts returns the rows, matched and unmatched counts logged for join.
func joinCounts(t *testing.T, logs *observer.ObservedLogs, join string) (rows, matched, unmatched int64) {
	t.Helper()
	entries := logs.FilterMessage("join").FilterField(zap.String("join", join)).All()
	require.Len(t, entries, 1, join)
	f := entries[0].ContextMap()
	return f["rows"].(int64), f["matched"].(int64), f["unmatched"].(int64)
}

func TestJoinsLogMatchCounts(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	opt := DefaultOptions()
	opt.Logger = zap.New(core)

	require.Len(t, PerCapita(table(), population(), 2020, opt), 2)
	rows, matched, unmatched := joinCounts(t, logs, "per-capita")
	assert.Equal(t, []int64{3, 2, 1}, []int64{rows, matched, unmatched}, "Luxembourg has no population")

	require.Len(t, GDPIntensity(table(), gdp(), population(), opt), 2)
	rows, matched, unmatched = joinCounts(t, logs, "gdp-intensity")
	assert.Equal(t, []int64{2, 2, 0}, []int64{rows, matched, unmatched})
	f := logs.FilterField(zap.String("join", "gdp-intensity")).All()[0].ContextMap()
	assert.Equal(t, int64(3), f["gdp_groups"])
	assert.Equal(t, int64(2), f["population_groups"])
}

func TestJoinHelpersHandleEmptyInput(t *testing.T) {
	j, err := InnerJoin([]emissionObs(nil), []populationObs{{Name: "France", Population: 1}}, "Name")
	require.NoError(t, err)
	assert.Equal(t, 0, j.Nrow())

	means, err := GroupMean([]gdpObs{
		{Code: "FRA", Entity: "France", GDPPerCapita: 2},
		{Code: "FRA", Entity: "France", GDPPerCapita: 4},
	}, []string{"Code", "Entity"}, "GDPPerCapita")
	require.NoError(t, err)
	require.Equal(t, 1, means.Nrow())
	assert.Equal(t, []float64{3}, means.Col(colMeanGDP).Float())

	j, err = JoinFrame(means, []emissionObs{{Name: "France", Code: "FRA", Emissions: 9}}, "Code")
	require.NoError(t, err)
	assert.Equal(t, 1, j.Nrow())
	assert.Equal(t, []string{"France"}, j.Col("Name").Records())
}

func TestGDPPerCapitaAt(t *testing.T) {
	got := GDPPerCapitaAt(gdp(), population(), 2020, DefaultOptions())
	names := []string{}
	for _, r := range got {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"Luxembourg", "France", "Czechia"}, names)
}
