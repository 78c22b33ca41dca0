package dataset

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/go-gota/gota/dataframe"
)

// Wide is a country-by-year table: one row per country (and substance, and
// sector for the sector breakdown), one column per year.
type Wide struct {
	Frame dataframe.DataFrame
	Years []int

	yearCols []string
}

// WideRow is a typed row of a Wide table. Missing years hold NaN.
type WideRow struct {
	Region    string
	Code      string
	Name      string
	Substance string
	Sector    string
	Values    map[int]float64
}

// Column names used by the wide emission files.
const (
	ColRegion    = "Region"
	ColCode      = "Country_code"
	ColName      = "Name"
	ColSubstance = "Substance"
	ColSector    = "Sector"
)

var wideStringCols = []string{ColRegion, ColCode, ColName, ColSubstance, ColSector, "Country_code_A3", "EDGAR Country Code", "ipcc_code_2006_for_standard_report", "fossil_bio"}

// NewWide wraps a DataFrame with at least a Name column and year columns.
func NewWide(df dataframe.DataFrame) (*Wide, error) {
	if err := requireColumns(df, ColName); err != nil {
		return nil, err
	}
	cols, years := yearColumns(df.Names())
	if len(years) == 0 {
		return nil, fmt.Errorf("%w: no year columns", ErrMissingColumn)
	}
	return &Wide{Frame: df, Years: years, yearCols: cols}, nil
}

// Has reports whether the table carries the named column.
func (w *Wide) Has(col string) bool { return slices.Contains(w.Frame.Names(), col) }

// WithFrame returns a Wide sharing the year layout over a filtered frame.
func (w *Wide) WithFrame(df dataframe.DataFrame) *Wide {
	return &Wide{Frame: df, Years: w.Years, yearCols: w.yearCols}
}

// YearColumns returns the frame's year column names, aligned with Years.
func (w *Wide) YearColumns() []string { return slices.Clone(w.yearCols) }

// Rows converts the frame into typed rows.
func (w *Wide) Rows() []WideRow {
	n := w.Frame.Nrow()
	text := func(col string) []string {
		if !w.Has(col) {
			return make([]string, n)
		}
		return Strings(w.Frame, col)
	}
	regions, codes, names := text(ColRegion), text(ColCode), text(ColName)
	subs, sectors := text(ColSubstance), text(ColSector)
	rows := make([]WideRow, n)
	for i := range rows {
		rows[i] = WideRow{
			Region:    regions[i],
			Code:      codes[i],
			Name:      names[i],
			Substance: subs[i],
			Sector:    sectors[i],
			Values:    make(map[int]float64, len(w.Years)),
		}
	}
	for j, col := range w.yearCols {
		vals := Floats(w.Frame, col)
		for i := range rows {
			rows[i].Values[w.Years[j]] = vals[i]
		}
	}
	return rows
}

type wideLoader struct{ kind Kind }

func (l wideLoader) Kind() Kind { return l.kind }

func (l wideLoader) Detect(_ string, header []string) bool {
	_, years := yearColumns(header)
	if len(years) == 0 || !slices.Contains(header, ColName) {
		return false
	}
	hasSector := slices.Contains(header, ColSector)
	if l.kind == KindSectors {
		return hasSector
	}
	return !hasSector
}

func (l wideLoader) Load(path string, into *Set) error {
	df, err := readFrame(path, wideStringCols...)
	if err != nil {
		return err
	}
	w, err := NewWide(df)
	if err != nil {
		return err
	}
	if l.kind == KindSectors {
		if !w.Has(ColSector) {
			return fmt.Errorf("%w: %q", ErrMissingColumn, ColSector)
		}
		into.Sectors = w
		return nil
	}
	into.Emissions = w
	return nil
}

// EqualFold compares substance labels such as "CO2" and "co2".
func EqualFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Mean averages the non-NaN values of a row over years; NaN when none.
func (r WideRow) Mean(years []int) float64 {
	var sum float64
	var n int
	for _, y := range years {
		v, ok := r.Values[y]
		if !ok || math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
