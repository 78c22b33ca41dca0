package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/co2atlas/internal/dataset"
	"github.com/KaramelBytes/co2atlas/internal/emissions"
)

func bundle(t *testing.T, kinds ...dataset.Kind) *emissions.Bundle {
	t.Helper()
	files := map[dataset.Kind]string{
		dataset.KindEmissions:  "emissions.csv",
		dataset.KindPopulation: "population.csv",
		dataset.KindGDP:        "gdp.csv",
	}
	paths := map[dataset.Kind]string{}
	for _, k := range append(kinds, dataset.KindEmissions) {
		paths[k] = filepath.Join("..", "..", "testdata", files[k])
	}
	set, err := dataset.LoadAll(context.Background(), paths, nil)
	require.NoError(t, err)
	b, err := emissions.BuildBundle(set, emissions.DefaultOptions())
	require.NoError(t, err)
	return b
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "atlas.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestIngestAndQuery(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	_, _, err := s.LastIngest(ctx)
	assert.ErrorIs(t, err, ErrNoIngest)

	b := bundle(t, dataset.KindPopulation, dataset.KindGDP)
	st, err := s.Ingest(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, len(b.Emissions.Long()), st.Emissions)
	assert.Positive(t, st.Population)
	assert.Equal(t, len(b.Data.GDP.Rows), st.GDP)

	name, series, err := s.Series(ctx, "deu")
	require.NoError(t, err)
	assert.Equal(t, "Germany", name)
	require.NotEmpty(t, series)
	assert.Equal(t, 2010, series[0].Year)
	assert.Equal(t, 800000.0, series[0].Value)
	assert.Equal(t, 81480000.0, series[0].Population)
	assert.Equal(t, 38400.0, series[0].GDPPerCapita)
	// no population snapshot for 2011
	assert.True(t, math.IsNaN(series[1].Population))

	rank, err := s.Ranking(ctx, 2022, 2, 1000)
	require.NoError(t, err)
	require.Len(t, rank, 2)
	assert.Equal(t, "Germany", rank[0].Country)
	assert.Equal(t, 1, rank[0].Rank)
	assert.InDelta(t, 656000*1000.0/84000000, rank[0].PerCapita, 1e-9)
	assert.GreaterOrEqual(t, rank[0].Value, rank[1].Value)

	years, err := s.Years(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2010, years[0])
	assert.Equal(t, 2022, years[len(years)-1])

	last, _, err := s.LastIngest(ctx)
	require.NoError(t, err)
	assert.Equal(t, st, last)
}

func TestIngestReplacesPreviousRows(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	_, err := s.Ingest(ctx, bundle(t, dataset.KindPopulation))
	require.NoError(t, err)
	st, err := s.Ingest(ctx, bundle(t))
	require.NoError(t, err)
	assert.Zero(t, st.Population)

	rank, err := s.Ranking(ctx, 2022, 0, 1000)
	require.NoError(t, err)
	require.NotEmpty(t, rank)
	assert.True(t, math.IsNaN(rank[0].PerCapita))
}

func TestSeriesUnknownCountry(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	_, err := s.Ingest(ctx, bundle(t))
	require.NoError(t, err)
	_, _, err = s.Series(ctx, "Atlantis")
	assert.ErrorIs(t, err, ErrNotFound)
}
