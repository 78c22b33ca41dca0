package export

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/co2atlas/internal/dataset"
	"github.com/KaramelBytes/co2atlas/internal/emissions"
)

func bundle(t *testing.T, files map[dataset.Kind]string) *emissions.Bundle {
	t.Helper()
	paths := map[dataset.Kind]string{}
	for k, f := range files {
		paths[k] = filepath.Join("..", "..", "testdata", f)
	}
	set, err := dataset.LoadAll(context.Background(), paths, nil)
	require.NoError(t, err)
	b, err := emissions.BuildBundle(set, emissions.DefaultOptions())
	require.NoError(t, err)
	return b
}

func TestWorkbookAllSheets(t *testing.T) {
	b := bundle(t, map[dataset.Kind]string{
		dataset.KindEmissions:  "emissions.csv",
		dataset.KindSectors:    "sectors.csv",
		dataset.KindPopulation: "population.csv",
		dataset.KindGDP:        "gdp.csv",
		dataset.KindHistory:    "co2_emissions_transformed.csv",
		dataset.KindForecast:   "forecasts_sarima.csv",
	})
	path := filepath.Join(t.TempDir(), "atlas.xlsx")
	res, err := Workbook(b, path, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"Averages", "PerCapita2022", "GDPIntensity", "Clusters", "Sectors", "Forecast"}, res.Sheets)
	assert.Empty(t, res.Skipped)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, res.Sheets, f.GetSheetList())

	v, err := f.GetCellValue("Averages", "A2")
	require.NoError(t, err)
	assert.Equal(t, "Germany", v)

	v, err = f.GetCellValue("PerCapita2022", "A2")
	require.NoError(t, err)
	assert.Equal(t, "Germany", v)
	v, err = f.GetCellValue("PerCapita2022", "C2")
	require.NoError(t, err)
	pc, err := strconv.ParseFloat(v, 64)
	require.NoError(t, err)
	assert.InDelta(t, 656000*1000.0/84000000, pc, 1e-6)

	rows, err := f.GetRows("Forecast")
	require.NoError(t, err)
	assert.Equal(t, []string{"Year", "Actual", "Predicted"}, rows[0])
	last := rows[len(rows)-1]
	assert.Len(t, last, 3)
	assert.Empty(t, last[1])

	rows, err = f.GetRows("Clusters")
	require.NoError(t, err)
	assert.Greater(t, len(rows), 3)
	assert.Equal(t, "Cluster", rows[0][2])
}

func TestWorkbookSkipsMissingDatasets(t *testing.T) {
	b := bundle(t, map[dataset.Kind]string{dataset.KindEmissions: "emissions.csv"})
	path := filepath.Join(t.TempDir(), "atlas.xlsx")
	res, err := Workbook(b, path, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"Averages"}, res.Sheets)
	assert.ElementsMatch(t, []string{"PerCapita2022", "GDPIntensity", "Clusters", "Sectors", "Forecast"}, res.Skipped)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	header, err := f.GetRows("Averages")
	require.NoError(t, err)
	assert.Equal(t, []string{"Country", "Code", "Region", "Average (kt)"}, header[0])
}

func TestWorkbookRequiresEmissions(t *testing.T) {
	_, err := Workbook(nil, filepath.Join(t.TempDir(), "x.xlsx"), DefaultOptions())
	assert.ErrorIs(t, err, emissions.ErrNoData)
}
