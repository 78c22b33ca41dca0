// Package emissions turns the raw wide emissions table into the prepared
// European table every dashboard view reads from.
package emissions

import (
	"errors"
	"fmt"
	"math"

	"github.com/KaramelBytes/co2atlas/internal/countries"
	"github.com/KaramelBytes/co2atlas/internal/dataset"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"go.uber.org/zap"
)

// ErrNoData is returned when preparation leaves no rows.
var ErrNoData = errors.New("no rows left after preparation")

// Options controls preparation.
type Options struct {
	// Substance keeps only rows of this substance; empty keeps every substance.
	Substance string
	FirstYear int
	LastYear  int
	Splits    []countries.Split
	Logger    *zap.Logger
}

// DefaultOptions returns the settings the dashboard uses.
func DefaultOptions() Options {
	return Options{
		Substance: "CO2",
		FirstYear: 1970,
		LastYear:  2023,
		Splits:    countries.DefaultSplits(),
	}
}

// Prepare filters the raw table to Europe and normalizes it:
//  1. keep rows of the configured substance
//  2. keep Europe-region rows and the listed additions
//  3. canonicalize names and drop duplicates
//  4. apportion dissolved territories to their successors
//  5. restrict to [FirstYear, LastYear]
func Prepare(w *dataset.Wide, opt Options) (*Table, error) {
	log := opt.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if w == nil {
		return nil, fmt.Errorf("prepare: %w", ErrNoData)
	}
	df := w.Frame
	raw := df.Nrow()
	if opt.Substance != "" && w.Has(dataset.ColSubstance) {
		df = df.Filter(dataframe.F{
			Colname:    dataset.ColSubstance,
			Comparator: series.CompFunc,
			Comparando: func(el series.Element) bool {
				return !el.IsNA() && dataset.EqualFold(el.String(), opt.Substance)
			},
		})
		if df.Err != nil {
			return nil, fmt.Errorf("filter substance: %w", df.Err)
		}
	}
	if w.Has(dataset.ColRegion) {
		// Multiple filters in one Filter call are OR-ed.
		df = df.Filter(
			dataframe.F{
				Colname:    dataset.ColRegion,
				Comparator: series.CompFunc,
				Comparando: func(el series.Element) bool { return !el.IsNA() && countries.InEuropeRegion(el.String()) },
			},
			dataframe.F{
				Colname:    dataset.ColName,
				Comparator: series.CompFunc,
				Comparando: func(el series.Element) bool { return !el.IsNA() && countries.IsAddition(el.String()) },
			},
		)
		if df.Err != nil {
			return nil, fmt.Errorf("filter region: %w", df.Err)
		}
	}
	selected := w.WithFrame(df).Rows()
	log.Debug("emissions selected", zap.Int("raw", raw), zap.Int("europe", len(selected)))

	years := clampYears(w.Years, opt.FirstYear, opt.LastYear)
	seen := map[string]bool{}
	t := &Table{Years: years}
	for _, r := range selected {
		r.Name = countries.Canonical(r.Name)
		key := r.Code + "|" + r.Name + "|" + r.Substance
		if seen[key] {
			continue
		}
		seen[key] = true
		t.Rows = append(t.Rows, Row{
			Region:    r.Region,
			Code:      r.Code,
			Name:      r.Name,
			Substance: r.Substance,
			Values:    restrict(r.Values, years),
		})
	}
	dups := len(selected) - len(t.Rows)

	for _, s := range opt.Splits {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		t.applySplit(s)
	}
	if len(t.Rows) == 0 {
		return nil, ErrNoData
	}
	log.Debug("emissions prepared", zap.Int("rows", len(t.Rows)), zap.Int("duplicates", dups), zap.Int("years", len(years)))
	return t, nil
}

// applySplit replaces the source row with one row per part. A successor that
// already has its own row keeps its values; the share only fills its gaps.
func (t *Table) applySplit(s countries.Split) {
	src := countries.Canonical(s.Source)
	out := t.Rows[:0:0]
	var sources []Row
	for _, r := range t.Rows {
		if r.Name == src {
			sources = append(sources, r)
			continue
		}
		out = append(out, r)
	}
	for _, r := range sources {
		for _, p := range s.Parts {
			name := countries.Canonical(p.Name)
			idx := -1
			for i := range out {
				if out[i].Name == name && out[i].Substance == r.Substance {
					idx = i
					break
				}
			}
			if idx < 0 {
				vals := make(map[int]float64, len(r.Values))
				for y, v := range r.Values {
					vals[y] = v * p.Share
				}
				out = append(out, Row{Region: r.Region, Code: p.Code, Name: name, Substance: r.Substance, Values: vals})
				continue
			}
			for y, v := range r.Values {
				if cur, ok := out[idx].Values[y]; !ok || math.IsNaN(cur) {
					out[idx].Values[y] = v * p.Share
				}
			}
		}
	}
	t.Rows = out
}

func clampYears(years []int, first, last int) []int {
	var out []int
	for _, y := range years {
		if (first > 0 && y < first) || (last > 0 && y > last) {
			continue
		}
		out = append(out, y)
	}
	return out
}

func restrict(vals map[int]float64, years []int) map[int]float64 {
	out := make(map[int]float64, len(years))
	for _, y := range years {
		v, ok := vals[y]
		if !ok {
			v = math.NaN()
		}
		out[y] = v
	}
	return out
}
