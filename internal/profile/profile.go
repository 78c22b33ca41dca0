// Package profile summarizes raw dataset files before they are loaded: column
// kinds, numeric statistics, year-column coverage and sample rows.
package profile

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/KaramelBytes/co2atlas/internal/dataset"
)

// Options controls profiling.
type Options struct {
	// MaxRows limits rows processed; 0 means unlimited.
	MaxRows int
	// SampleRows determines how many example rows to include in the report.
	SampleRows int
	// Delimiter for CSV. If 0, auto-detects among ',', ';', '\t'.
	Delimiter rune
	// OutlierThreshold is the robust |z| (MAD) above which a value counts as an outlier.
	OutlierThreshold float64
	// Sheet selects the XLSX sheet by name; empty picks the first sheet.
	Sheet string
	// TopValues is the number of categorical values listed per column.
	TopValues int
}

// DefaultOptions returns reasonable defaults for dataset profiling.
func DefaultOptions() Options {
	return Options{MaxRows: 200000, SampleRows: 5, OutlierThreshold: 3.5, TopValues: 8}
}

// Column kinds.
const (
	KindNumeric     = "numeric"
	KindCategorical = "categorical"
	KindText        = "text"
	KindEmpty       = "empty"
)

// Report is a Markdown-friendly profile of a tabular dataset.
type Report struct {
	Name      string
	Detected  dataset.Kind
	Rows      int
	Processed int
	Cols      []ColumnSummary
	Years     *YearCoverage
	Samples   [][]string
	Warnings  []string
}

// ColumnSummary captures inferred type and statistics per column.
type ColumnSummary struct {
	Name    string
	Kind    string
	NonNull int
	Missing int
	Unique  int
	// Numeric stats
	Min, Max, Mean, Std float64
	// Outliers (robust Z via MAD)
	Outliers        int
	OutliersMaxAbsZ float64
	TopValues       []CategoryCount
}

// CategoryCount is one categorical value and its frequency.
type CategoryCount struct {
	Value string
	Count int
}

// YearCoverage describes the year columns of a wide table.
type YearCoverage struct {
	Columns   int
	FirstYear int
	LastYear  int
	// FirstWithData and LastWithData bound the years holding any value.
	FirstWithData int
	LastWithData  int
	// MissingShare is the share of empty year cells.
	MissingShare float64
	// Sparse lists years with more than half of the cells empty.
	Sparse []int
}

// accumulator folds records into column statistics.
type accumulator struct {
	opt  Options
	cols []*colAcc
	rep  *Report
}

type colAcc struct {
	name   string
	year   int
	nonNil int
	miss   int
	// Welford
	n        int
	mean, m2 float64
	min, max float64
	txt      int
	values   []float64
	cats     map[string]int
}

func newAccumulator(name string, header []string, opt Options) *accumulator {
	if opt.SampleRows <= 0 {
		opt.SampleRows = 5
	}
	if opt.MaxRows <= 0 {
		opt.MaxRows = math.MaxInt
	}
	if opt.OutlierThreshold <= 0 {
		opt.OutlierThreshold = 3.5
	}
	if opt.TopValues <= 0 {
		opt.TopValues = 8
	}
	a := &accumulator{opt: opt, rep: &Report{Name: name}}
	for _, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		c := &colAcc{name: h, min: math.Inf(1), max: math.Inf(-1), cats: map[string]int{}}
		if y, ok := dataset.YearColumn(h); ok {
			c.year = y
		}
		a.cols = append(a.cols, c)
	}
	return a
}

func (a *accumulator) add(rec []string) {
	a.rep.Rows++
	if a.rep.Processed >= a.opt.MaxRows {
		return
	}
	a.rep.Processed++
	if len(a.rep.Samples) < a.opt.SampleRows {
		row := make([]string, len(a.cols))
		copy(row, rec)
		a.rep.Samples = append(a.rep.Samples, row)
	}
	for j, c := range a.cols {
		v := ""
		if j < len(rec) {
			v = strings.TrimSpace(rec[j])
		}
		if v == "" {
			c.miss++
			continue
		}
		c.nonNil++
		if x, ok := dataset.ParseNumber(v); ok {
			c.n++
			c.min = math.Min(c.min, x)
			c.max = math.Max(c.max, x)
			delta := x - c.mean
			c.mean += delta / float64(c.n)
			c.m2 += delta * (x - c.mean)
			c.values = append(c.values, x)
			continue
		}
		c.txt++
		if len(c.cats) <= 10000 && len(v) <= 64 {
			c.cats[v]++
		}
	}
}

func (a *accumulator) report() *Report {
	rep := a.rep
	var years []*colAcc
	for _, c := range a.cols {
		s := ColumnSummary{Name: c.name, NonNull: c.nonNil, Missing: c.miss}
		switch {
		case c.nonNil == 0:
			s.Kind = KindEmpty
		case c.n >= c.txt:
			s.Kind = KindNumeric
			s.Min, s.Max, s.Mean = c.min, c.max, c.mean
			if c.n > 1 {
				s.Std = math.Sqrt(c.m2 / float64(c.n-1))
			}
			if len(c.values) >= 8 {
				s.Outliers, s.OutliersMaxAbsZ = outliers(c.values, a.opt.OutlierThreshold)
			}
		case len(c.cats) > 0 && len(c.cats) <= max(50, c.nonNil/2):
			s.Kind = KindCategorical
			s.Unique = len(c.cats)
			s.TopValues = topValues(c.cats, a.opt.TopValues)
		default:
			s.Kind = KindText
			s.Unique = len(c.cats)
		}
		rep.Cols = append(rep.Cols, s)
		if c.year != 0 {
			years = append(years, c)
		}
	}
	if len(years) > 0 {
		rep.Years = coverage(years)
	}
	if rep.Processed < rep.Rows {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("processed only %d/%d rows due to MaxRows", rep.Processed, rep.Rows))
	}
	return rep
}

func coverage(cols []*colAcc) *YearCoverage {
	sort.Slice(cols, func(i, j int) bool { return cols[i].year < cols[j].year })
	yc := &YearCoverage{Columns: len(cols), FirstYear: cols[0].year, LastYear: cols[len(cols)-1].year}
	var cells, missing int
	for _, c := range cols {
		total := c.nonNil + c.miss
		cells += total
		missing += c.miss
		if c.nonNil > 0 {
			if yc.FirstWithData == 0 {
				yc.FirstWithData = c.year
			}
			yc.LastWithData = c.year
		}
		if total > 0 && float64(c.miss)/float64(total) > 0.5 {
			yc.Sparse = append(yc.Sparse, c.year)
		}
	}
	if cells > 0 {
		yc.MissingShare = float64(missing) / float64(cells)
	}
	return yc
}

func topValues(cats map[string]int, n int) []CategoryCount {
	tops := make([]CategoryCount, 0, len(cats))
	for k, v := range cats {
		tops = append(tops, CategoryCount{Value: k, Count: v})
	}
	sort.Slice(tops, func(i, j int) bool {
		if tops[i].Count == tops[j].Count {
			return tops[i].Value < tops[j].Value
		}
		return tops[i].Count > tops[j].Count
	})
	if len(tops) > n {
		tops = tops[:n]
	}
	return tops
}

// outliers counts values whose robust z-score 0.6745·(x−median)/MAD exceeds thr.
func outliers(vals []float64, thr float64) (int, float64) {
	median, mad := medianMAD(vals)
	if mad == 0 {
		return 0, 0
	}
	var cnt int
	var maxZ float64
	for _, v := range vals {
		z := math.Abs(0.6745 * (v - median) / mad)
		if z > thr {
			cnt++
		}
		maxZ = math.Max(maxZ, z)
	}
	return cnt, maxZ
}

// medianMAD computes median and MAD (median absolute deviation) of values.
func medianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	cp := append([]float64(nil), vals...)
	sort.Float64s(cp)
	median = quantile(cp, 0.5)
	dev := make([]float64, len(cp))
	for i, v := range cp {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = quantile(dev, 0.5)
	return median, mad
}

// quantile interpolates linearly between the closest ranks of sorted.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := q * float64(len(sorted)-1)
	lo, hi := int(math.Floor(pos)), int(math.Ceil(pos))
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

// File profiles a CSV or XLSX file, picking the reader from the extension.
func File(path string, opt Options) (*Report, error) {
	var (
		rep *Report
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		rep, err = XLSX(path, opt)
	default:
		rep, err = CSV(path, opt)
	}
	if err != nil {
		return nil, err
	}
	if k, err := dataset.Detect(path); err == nil {
		rep.Detected = k
	}
	return rep, nil
}

// CSV streams a delimited file into a Report.
func CSV(path string, opt Options) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	br := bufio.NewReader(f)
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(br)
	}
	r := csv.NewReader(br)
	r.ReuseRecord = true
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.Comma = delim

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &Report{Name: filepath.Base(path)}, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	acc := newAccumulator(filepath.Base(path), header, opt)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", acc.rep.Rows+1, err)
		}
		acc.add(rec)
	}
	return acc.report(), nil
}

// sniffDelimiter peeks at the first line without consuming it.
func sniffDelimiter(br *bufio.Reader) rune {
	line, _ := br.Peek(4096)
	first := string(line)
	if i := strings.IndexByte(first, '\n'); i >= 0 {
		first = first[:i]
	}
	best, bestN := ',', strings.Count(first, ",")
	for _, d := range []rune{';', '\t'} {
		if n := strings.Count(first, string(d)); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

// Markdown renders the report for the terminal or a project attachment.
func (r *Report) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Profile: %s\n\n", r.Name)
	if r.Detected != "" {
		fmt.Fprintf(&b, "Detected dataset: **%s**\n\n", r.Detected)
	}
	if r.Processed > 0 && r.Processed < r.Rows {
		fmt.Fprintf(&b, "Rows: ~%d (processed %d)  \n", r.Rows, r.Processed)
	} else {
		fmt.Fprintf(&b, "Rows: %d  \n", r.Rows)
	}
	fmt.Fprintf(&b, "Columns: %d\n\n", len(r.Cols))

	if y := r.Years; y != nil {
		b.WriteString("## Year coverage\n\n")
		fmt.Fprintf(&b, "- %d year columns, %d–%d\n", y.Columns, y.FirstYear, y.LastYear)
		if y.FirstWithData != 0 {
			fmt.Fprintf(&b, "- data from %d to %d\n", y.FirstWithData, y.LastWithData)
		}
		fmt.Fprintf(&b, "- %.1f%% of year cells are empty\n", y.MissingShare*100)
		if len(y.Sparse) > 0 {
			fmt.Fprintf(&b, "- mostly empty: %s\n", joinInts(y.Sparse))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Columns\n\n")
	for _, c := range r.Cols {
		if _, ok := dataset.YearColumn(c.Name); ok && r.Years != nil {
			continue
		}
		total := c.NonNull + c.Missing
		missPct := 0.0
		if total > 0 {
			missPct = float64(c.Missing) * 100 / float64(total)
		}
		fmt.Fprintf(&b, "- %s: %s (non-null %d, missing %.1f%%)", safeName(c.Name), c.Kind, c.NonNull, missPct)
		switch c.Kind {
		case KindNumeric:
			fmt.Fprintf(&b, ": min %.4g, max %.4g, mean %.4g, std %.4g", c.Min, c.Max, c.Mean, c.Std)
			if c.Outliers > 0 {
				fmt.Fprintf(&b, "; %d outliers (max |z|≈%.2f)", c.Outliers, c.OutliersMaxAbsZ)
			}
		case KindCategorical:
			b.WriteString(": top ")
			for i, kv := range c.TopValues {
				if i > 0 {
					b.WriteString(", ")
				}
				fmt.Fprintf(&b, "%s(%d)", safeVal(kv.Value), kv.Count)
			}
			if c.Unique > len(c.TopValues) {
				fmt.Fprintf(&b, "; unique=%d", c.Unique)
			}
		}
		b.WriteString("\n")
	}

	if len(r.Samples) > 0 {
		shown := sampleColumns(r)
		b.WriteString("\n## Sample rows\n\n|")
		for _, i := range shown {
			b.WriteString(" " + safeVal(safeName(r.Cols[i].Name)) + " |")
		}
		b.WriteString("\n|")
		for range shown {
			b.WriteString(" --- |")
		}
		b.WriteString("\n")
		for _, row := range r.Samples {
			b.WriteString("|")
			for _, i := range shown {
				val := ""
				if i < len(row) {
					val = row[i]
				}
				if len(val) > 40 {
					val = val[:37] + "..."
				}
				b.WriteString(" " + safeVal(val) + " |")
			}
			b.WriteString("\n")
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n## Notes\n\n")
		for _, w := range r.Warnings {
			b.WriteString("- " + w + "\n")
		}
	}
	return b.String()
}

// sampleColumns keeps the non-year columns plus the first and last year column.
func sampleColumns(r *Report) []int {
	var out, years []int
	for i, c := range r.Cols {
		if _, ok := dataset.YearColumn(c.Name); ok {
			years = append(years, i)
			continue
		}
		out = append(out, i)
	}
	switch len(years) {
	case 0:
	case 1:
		out = append(out, years[0])
	default:
		out = append(out, years[0], years[len(years)-1])
	}
	return out
}

func joinInts(vs []int) string {
	s := make([]string, len(vs))
	for i, v := range vs {
		s[i] = fmt.Sprint(v)
	}
	return strings.Join(s, ", ")
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
