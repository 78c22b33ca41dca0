package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "CO2", c.Substance)
	assert.Equal(t, 3, c.KMeansK)
	assert.Equal(t, int64(42), c.KMeansSeed)
	assert.Equal(t, DefaultSnapshotYears(), c.SnapshotYears)
	assert.Equal(t, "co2_emmisions_complicated.csv", c.Files["emissions"])
	assert.Equal(t, filepath.Join("data", "world_population.csv"), c.DatasetPath("population"))
	assert.Contains(t, c.ProjectsDir, ".co2atlas")
}

func TestSaveAndReloadKeepsOtherFiles(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")

	c, err := Load(path)
	require.NoError(t, err)
	c.KMeansK = 4
	c.Files = map[string]string{"gdp": "/abs/gdp.csv"}
	require.NoError(t, Save(c, path))

	_, err = os.Stat(path)
	require.NoError(t, err)

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, again.KMeansK)
	assert.Equal(t, "/abs/gdp.csv", again.DatasetPath("gdp"))
	assert.Equal(t, "world_population.csv", again.Files["population"])
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CO2ATLAS_TOP_N", "5")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5, c.TopN)
}
