// Package sectors breaks the top emitters' CO₂ down by emission sector.
package sectors

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/KaramelBytes/co2atlas/internal/countries"
	"github.com/KaramelBytes/co2atlas/internal/dataset"
	"github.com/KaramelBytes/co2atlas/internal/emissions"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"go.uber.org/zap"
)

// ErrNoSectors is returned when a country has no complete sector rows.
var ErrNoSectors = errors.New("no sector rows")

// Options controls the breakdown.
type Options struct {
	Substance  string
	Countries  int
	TopSectors int
	Logger     *zap.Logger
}

// DefaultOptions breaks down the 5 largest emitters into their 10 largest sectors.
func DefaultOptions() Options {
	return Options{Substance: "CO2", Countries: 5, TopSectors: 10}
}

// Sector is one sector's emissions over the years.
type Sector struct {
	Name   string
	Values map[int]float64
	Total  float64
}

// Breakdown is the sector decomposition of one country, sectors ordered by
// total emissions, highest first.
type Breakdown struct {
	Country string
	Code    string
	Years   []int
	Sectors []Sector
	// Dropped counts sector rows discarded for missing values.
	Dropped int
}

// Top returns the n largest sectors.
func (b *Breakdown) Top(n int) []Sector {
	if n >= 0 && n < len(b.Sectors) {
		return b.Sectors[:n]
	}
	return b.Sectors
}

// Stack returns the n largest sectors as value slices aligned with Years, for
// stacked plots. n <= 0 returns every sector.
func (b *Breakdown) Stack(n int) ([]string, [][]float64) {
	secs := b.Sectors
	if n > 0 {
		secs = b.Top(n)
	}
	names := make([]string, len(secs))
	vals := make([][]float64, len(secs))
	for i, s := range secs {
		names[i] = s.Name
		vals[i] = make([]float64, len(b.Years))
		for j, y := range b.Years {
			vals[i][j] = s.Values[y]
		}
	}
	return names, vals
}

// Total returns the summed emissions of all sectors.
func (b *Breakdown) Total() float64 {
	var s float64
	for _, sec := range b.Sectors {
		s += sec.Total
	}
	return s
}

// Analyze breaks down the top emitters of t. Countries without complete
// sector rows are skipped and logged.
func Analyze(t *emissions.Table, w *dataset.Wide, opt Options) ([]Breakdown, error) {
	log := opt.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if t == nil || w == nil {
		return nil, fmt.Errorf("sectors: %w", ErrNoSectors)
	}
	n := opt.Countries
	if n <= 0 {
		n = 5
	}
	var out []Breakdown
	for _, r := range t.Top(n) {
		b, err := ForCountry(w, r.Name, opt)
		if errors.Is(err, ErrNoSectors) {
			log.Debug("no sector data", zap.String("country", r.Name))
			continue
		}
		if err != nil {
			return nil, err
		}
		b.Code = r.Code
		out = append(out, *b)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("sectors: %w", ErrNoSectors)
	}
	return out, nil
}

// ForCountry groups the country's rows of the substance by Sector, summing per
// year. Rows with any missing year are dropped first.
func ForCountry(w *dataset.Wide, country string, opt Options) (*Breakdown, error) {
	name := countries.Canonical(country)
	df := w.Frame.Filter(dataframe.F{
		Colname:    dataset.ColName,
		Comparator: series.CompFunc,
		Comparando: func(el series.Element) bool { return !el.IsNA() && countries.Canonical(el.String()) == name },
	})
	if opt.Substance != "" && w.Has(dataset.ColSubstance) {
		df = df.Filter(dataframe.F{
			Colname:    dataset.ColSubstance,
			Comparator: series.CompFunc,
			Comparando: func(el series.Element) bool { return !el.IsNA() && dataset.EqualFold(el.String(), opt.Substance) },
		})
	}
	if df.Err != nil {
		return nil, fmt.Errorf("filter sectors for %s: %w", name, df.Err)
	}
	b := &Breakdown{Country: name, Years: w.Years}
	cols := w.YearColumns()
	before := df.Nrow()
	if before > 0 {
		df = df.FilterAggregation(dataframe.And, completeFilters(cols)...)
		if df.Err != nil {
			return nil, fmt.Errorf("drop incomplete sectors for %s: %w", name, df.Err)
		}
	}
	b.Dropped = before - df.Nrow()
	if df.Nrow() == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrNoSectors)
	}

	g := df.Select(append([]string{dataset.ColSector}, cols...)).GroupBy(dataset.ColSector)
	if g.Err != nil {
		return nil, fmt.Errorf("group sectors for %s: %w", name, g.Err)
	}
	typs := make([]dataframe.AggregationType, len(cols))
	for i := range typs {
		typs[i] = dataframe.Aggregation_SUM
	}
	sums := g.Aggregation(typs, cols)
	if sums.Err != nil {
		return nil, fmt.Errorf("sum sectors for %s: %w", name, sums.Err)
	}
	names := dataset.Strings(sums, dataset.ColSector)
	b.Sectors = make([]Sector, len(names))
	for i, n := range names {
		b.Sectors[i] = Sector{Name: n, Values: make(map[int]float64, len(cols))}
	}
	for j, col := range cols {
		vals := dataset.Floats(sums, col+"_"+dataframe.Aggregation_SUM.String())
		for i := range b.Sectors {
			b.Sectors[i].Values[w.Years[j]] = vals[i]
			b.Sectors[i].Total += vals[i]
		}
	}
	sort.SliceStable(b.Sectors, func(i, j int) bool {
		if b.Sectors[i].Total == b.Sectors[j].Total {
			return b.Sectors[i].Name < b.Sectors[j].Name
		}
		return b.Sectors[i].Total > b.Sectors[j].Total
	})
	return b, nil
}

// completeFilters keeps rows with a sector and a value in every year column.
func completeFilters(cols []string) []dataframe.F {
	present := func(el series.Element) bool { return !el.IsNA() && !math.IsNaN(el.Float()) }
	fs := []dataframe.F{{
		Colname:    dataset.ColSector,
		Comparator: series.CompFunc,
		Comparando: func(el series.Element) bool { return !el.IsNA() && el.String() != "" },
	}}
	for _, c := range cols {
		fs = append(fs, dataframe.F{Colname: c, Comparator: series.CompFunc, Comparando: present})
	}
	return fs
}

// Factor is a sector ranked across the top emitters.
type Factor struct {
	Sector string
	// Countries is how many breakdowns list the sector among their top sectors.
	Countries int
	Total     float64
}

// LeadingFactors ranks sectors by how many countries have them in their top
// sectors, then by summed emissions.
func LeadingFactors(bs []Breakdown, top int) []Factor {
	if top <= 0 {
		top = 10
	}
	acc := map[string]*Factor{}
	for _, b := range bs {
		for _, s := range b.Top(top) {
			f := acc[s.Name]
			if f == nil {
				f = &Factor{Sector: s.Name}
				acc[s.Name] = f
			}
			f.Countries++
			f.Total += s.Total
		}
	}
	out := make([]Factor, 0, len(acc))
	for _, f := range acc {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Countries != out[j].Countries {
			return out[i].Countries > out[j].Countries
		}
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Sector < out[j].Sector
	})
	return out
}
