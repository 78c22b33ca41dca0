package emissions

import (
	"math"
	"sort"

	"github.com/KaramelBytes/co2atlas/internal/countries"
	"github.com/KaramelBytes/co2atlas/internal/dataset"
)

// Row is one prepared country row. Missing years hold NaN.
type Row struct {
	Region    string
	Code      string
	Name      string
	Substance string
	Values    map[int]float64
}

// Table is the prepared European emissions table.
type Table struct {
	Years []int
	Rows  []Row
}

// Ranked is a country with a single aggregated value.
type Ranked struct {
	Name  string
	Code  string
	Value float64
}

// Average returns the mean of the row's non-missing years.
func (r Row) Average(years []int) float64 {
	var sum float64
	var n int
	for _, y := range years {
		v := r.At(y)
		if math.IsNaN(v) {
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

// At returns the value for year, NaN when absent.
func (r Row) At(year int) float64 {
	v, ok := r.Values[year]
	if !ok {
		return math.NaN()
	}
	return v
}

// Sum adds the row's non-missing values for years in [from, to].
func (r Row) Sum(from, to int) float64 {
	var s float64
	for y, v := range r.Values {
		if y < from || y > to || math.IsNaN(v) {
			continue
		}
		s += v
	}
	return s
}

// Series returns the row as ordered (year, value) points, skipping NaN.
func (r Row) Series(years []int) dataset.Series {
	var out dataset.Series
	for _, y := range years {
		if v := r.At(y); !math.IsNaN(v) {
			out = append(out, dataset.Point{Year: y, Value: v})
		}
	}
	return out
}

// Ranked returns countries by average emissions, highest first; countries
// without data sort last.
func (t *Table) Ranked() []Ranked {
	out := make([]Ranked, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = Ranked{Name: r.Name, Code: r.Code, Value: r.Average(t.Years)}
	}
	SortDesc(out)
	return out
}

// SortDesc orders by value descending with NaN last and ties by name.
func SortDesc(rs []Ranked) {
	sort.SliceStable(rs, func(i, j int) bool {
		a, b := rs[i].Value, rs[j].Value
		if math.IsNaN(a) != math.IsNaN(b) {
			return !math.IsNaN(a)
		}
		if a == b || (math.IsNaN(a) && math.IsNaN(b)) {
			return rs[i].Name < rs[j].Name
		}
		return a > b
	})
}

// Top returns the n highest average emitters.
func (t *Table) Top(n int) []Ranked {
	return head(t.withData(), n)
}

// Bottom returns the n lowest average emitters, still ordered highest first.
// n < 0 returns all of them.
func (t *Table) Bottom(n int) []Ranked {
	r := t.withData()
	if n >= 0 && n < len(r) {
		r = r[len(r)-n:]
	}
	return r
}

func (t *Table) withData() []Ranked {
	var out []Ranked
	for _, r := range t.Ranked() {
		if !math.IsNaN(r.Value) {
			out = append(out, r)
		}
	}
	return out
}

func head(r []Ranked, n int) []Ranked {
	if n >= 0 && n < len(r) {
		return r[:n]
	}
	return r
}

// Lookup finds a row by country name in any known spelling.
func (t *Table) Lookup(name string) (Row, bool) {
	n := countries.Canonical(name)
	for _, r := range t.Rows {
		if r.Name == n {
			return r, true
		}
	}
	return Row{}, false
}

// ByCode finds a row by ISO code.
func (t *Table) ByCode(code string) (Row, bool) {
	for _, r := range t.Rows {
		if r.Code == code && code != "" {
			return r, true
		}
	}
	return Row{}, false
}

// Value returns the emissions of a country in a year, NaN when unknown.
func (t *Table) Value(name string, year int) float64 {
	r, ok := t.Lookup(name)
	if !ok {
		return math.NaN()
	}
	return r.At(year)
}

// At returns every country's value for one year, skipping missing values.
func (t *Table) At(year int) []Ranked {
	var out []Ranked
	for _, r := range t.Rows {
		if v, ok := r.Values[year]; ok && !math.IsNaN(v) {
			out = append(out, Ranked{Name: r.Name, Code: r.Code, Value: v})
		}
	}
	SortDesc(out)
	return out
}

// Totals sums all countries per year, ignoring missing values.
func (t *Table) Totals(years []int) dataset.Series {
	out := make(dataset.Series, 0, len(years))
	for _, y := range years {
		var s float64
		for _, r := range t.Rows {
			if v := r.At(y); !math.IsNaN(v) {
				s += v
			}
		}
		out = append(out, dataset.Point{Year: y, Value: s})
	}
	return out
}

// LongRow is one melted (country, year, value) observation.
type LongRow struct {
	Name  string
	Code  string
	Year  int
	Value float64
}

// Long melts the table into one row per country and year with data.
func (t *Table) Long() []LongRow {
	var out []LongRow
	for _, r := range t.Rows {
		for _, y := range t.Years {
			if v := r.At(y); !math.IsNaN(v) {
				out = append(out, LongRow{Name: r.Name, Code: r.Code, Year: y, Value: v})
			}
		}
	}
	return out
}

// Change is a country's relative change between two years.
type Change struct {
	Name    string
	Code    string
	Base    float64
	Current float64
	// Pct is the percent change; Ratio is Current/Base.
	Pct   float64
	Ratio float64
}

// PctChange computes the change from one year to another. Countries with a
// zero or missing base, or a missing current value, are dropped.
func (t *Table) PctChange(from, to int) []Change {
	var out []Change
	for _, r := range t.Rows {
		b, c := r.At(from), r.At(to)
		if math.IsNaN(b) || math.IsNaN(c) || b == 0 {
			continue
		}
		out = append(out, Change{Name: r.Name, Code: r.Code, Base: b, Current: c, Pct: (c - b) / b * 100, Ratio: c / b})
	}
	return out
}

// Names returns every country name in table order.
func (t *Table) Names() []string {
	out := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Name
	}
	return out
}

// Restrict returns the years of t within [from, to].
func (t *Table) Restrict(from, to int) []int {
	return clampYears(t.Years, from, to)
}
