package sectors

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/KaramelBytes/co2atlas/internal/dataset"
	"github.com/KaramelBytes/co2atlas/internal/emissions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sectorCSV = `Name,Substance,Sector,2000,2001
Germany,CO2,Power,100,90
Germany,CO2,Power,10,10
Germany,CO2,Road,50,55
Germany,CO2,Cement,5,
Germany,CH4,Agriculture,500,500
Russian Federation,CO2,Power,300,310
Russian Federation,CO2,Fugitive,40,45
France,CO2,Road,60,60
`

func load(t *testing.T) *dataset.Wide {
	t.Helper()
	p := filepath.Join(t.TempDir(), "sectors.csv")
	require.NoError(t, os.WriteFile(p, []byte(sectorCSV), 0o644))
	set, err := dataset.LoadFile(dataset.KindSectors, p)
	require.NoError(t, err)
	return set.Sectors
}

func TestForCountry(t *testing.T) {
	b, err := ForCountry(load(t), "Germany", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, b.Dropped, "cement row has a gap")
	require.Len(t, b.Sectors, 2)
	assert.Equal(t, "Power", b.Sectors[0].Name)
	assert.Equal(t, 110.0, b.Sectors[0].Values[2000])
	assert.Equal(t, 210.0, b.Sectors[0].Total)
	assert.Equal(t, 315.0, b.Total())

	names, stack := b.Stack(0)
	assert.Equal(t, []string{"Power", "Road"}, names)
	assert.Equal(t, []float64{50, 55}, stack[1])
	assert.Len(t, b.Top(1), 1)
	names, _ = b.Stack(1)
	assert.Equal(t, []string{"Power"}, names)
}

func TestForCountryCanonicalName(t *testing.T) {
	b, err := ForCountry(load(t), "Russia", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "Russia", b.Country)
	assert.Len(t, b.Sectors, 2)

	_, err = ForCountry(load(t), "Spain", DefaultOptions())
	assert.ErrorIs(t, err, ErrNoSectors)
}

func TestAnalyzeAndLeadingFactors(t *testing.T) {
	tab := &emissions.Table{Years: []int{2000, 2001}, Rows: []emissions.Row{
		{Name: "Russia", Code: "RUS", Values: map[int]float64{2000: 400, 2001: 410}},
		{Name: "Germany", Code: "DEU", Values: map[int]float64{2000: 170, 2001: 160}},
		{Name: "Spain", Code: "ESP", Values: map[int]float64{2000: 90, 2001: 90}},
		{Name: "France", Code: "FRA", Values: map[int]float64{2000: 60, 2001: 60}},
	}}
	opt := DefaultOptions()
	opt.Countries = 3
	bs, err := Analyze(tab, load(t), opt)
	require.NoError(t, err)
	require.Len(t, bs, 2, "Spain has no sector rows")
	assert.Equal(t, "RUS", bs[0].Code)

	f := LeadingFactors(bs, 10)
	require.Len(t, f, 3)
	assert.Equal(t, Factor{Sector: "Power", Countries: 2, Total: 820}, f[0])
	assert.Equal(t, "Road", f[1].Sector)

	_, err = Analyze(nil, load(t), opt)
	assert.ErrorIs(t, err, ErrNoSectors)
}

func TestForCountryOnlyIncompleteRows(t *testing.T) {
	p := filepath.Join(t.TempDir(), "sectors.csv")
	require.NoError(t, os.WriteFile(p, []byte("Name,Substance,Sector,2000,2001\nItaly,CO2,Power,,7\nItaly,CO2,,5,5\n"), 0o644))
	set, err := dataset.LoadFile(dataset.KindSectors, p)
	require.NoError(t, err)

	_, err = ForCountry(set.Sectors, "Italy", DefaultOptions())
	assert.ErrorIs(t, err, ErrNoSectors)
}
