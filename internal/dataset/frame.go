package dataset

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

var naValues = []string{"", "NA", "N/A", "NaN", "nan", "null", "-", ".."}

// readFrame loads a delimited file into a DataFrame. Columns named in strs are
// strings; every other column is parsed as float with NaN for missing cells.
func readFrame(path string, strs ...string) (dataframe.DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	delim := sniffDelimiter(f)
	types := make(map[string]series.Type, len(strs))
	for _, s := range strs {
		types[s] = series.String
	}
	df := dataframe.ReadCSV(bufio.NewReader(f),
		dataframe.WithDelimiter(delim),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.Float),
		dataframe.WithTypes(types),
		dataframe.WithLazyQuotes(true),
		dataframe.NaNValues(naValues),
	)
	if df.Err != nil {
		return df, fmt.Errorf("read csv: %w", df.Err)
	}
	// A UTF-8 BOM sticks to the first header; gota keeps it verbatim.
	if names := df.Names(); len(names) > 0 && names[0] != cleanHeader(names[0]) {
		df = df.Rename(cleanHeader(names[0]), names[0])
	}
	return df, nil
}

// readStringFrame loads a delimited file keeping every column as text.
func readStringFrame(path string) (dataframe.DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	delim := sniffDelimiter(f)
	df := dataframe.ReadCSV(bufio.NewReader(f),
		dataframe.WithDelimiter(delim),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.WithLazyQuotes(true),
	)
	if df.Err != nil {
		return df, fmt.Errorf("read csv: %w", df.Err)
	}
	if names := df.Names(); len(names) > 0 && names[0] != cleanHeader(names[0]) {
		df = df.Rename(cleanHeader(names[0]), names[0])
	}
	return df, nil
}

func cleanHeader(s string) string {
	return strings.TrimSpace(strings.TrimPrefix(s, "\ufeff"))
}

// sniffDelimiter inspects the first line and rewinds the file.
func sniffDelimiter(f *os.File) rune {
	defer f.Seek(0, io.SeekStart)
	line, _ := bufio.NewReader(f).ReadString('\n')
	best, bestN := ',', strings.Count(line, ",")
	for _, d := range []rune{';', '\t'} {
		if n := strings.Count(line, string(d)); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

// requireColumns returns ErrMissingColumn naming the first absent column.
func requireColumns(df dataframe.DataFrame, cols ...string) error {
	names := df.Names()
	for _, c := range cols {
		if !slices.Contains(names, c) {
			return fmt.Errorf("%w: %q", ErrMissingColumn, c)
		}
	}
	return nil
}

// findColumn returns the first column whose lower-cased name contains all parts.
func findColumn(names []string, parts ...string) (string, bool) {
	for _, n := range names {
		l := strings.ToLower(n)
		ok := true
		for _, p := range parts {
			if !strings.Contains(l, p) {
				ok = false
				break
			}
		}
		if ok {
			return n, true
		}
	}
	return "", false
}

// Strings returns a column as text, mapping missing cells to "".
func Strings(df dataframe.DataFrame, col string) []string {
	s := df.Col(col)
	out := make([]string, s.Len())
	for i := range out {
		e := s.Elem(i)
		if e.IsNA() {
			continue
		}
		out[i] = strings.TrimSpace(e.String())
	}
	return out
}

// Floats returns a column as float64 with NaN for missing cells.
func Floats(df dataframe.DataFrame, col string) []float64 {
	s := df.Col(col)
	out := make([]float64, s.Len())
	for i := range out {
		e := s.Elem(i)
		if e.IsNA() {
			out[i] = math.NaN()
			continue
		}
		out[i] = e.Float()
	}
	return out
}

// yearColumns returns the all-digit column names and their parsed years.
func yearColumns(names []string) ([]string, []int) {
	var cols []string
	var years []int
	for _, n := range names {
		if y, ok := YearColumn(n); ok {
			cols = append(cols, n)
			years = append(years, y)
		}
	}
	return cols, years
}

// YearColumn reports whether a header names a year column ("1970").
func YearColumn(name string) (int, bool) {
	if len(name) != 4 {
		return 0, false
	}
	y, err := strconv.Atoi(name)
	if err != nil || y < 1000 {
		return 0, false
	}
	return y, true
}

// ParseNumber parses a locale-formatted number. It accepts ',' or '.' as the
// decimal separator and strips thousands separators and percent signs.
func ParseNumber(s string) (float64, bool) {
	raw := strings.TrimSpace(s)
	raw = strings.ReplaceAll(raw, "%", "")
	raw = strings.ReplaceAll(raw, "\u00A0", " ")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	dec := '.'
	cpos := strings.LastIndex(raw, ",")
	dpos := strings.LastIndex(raw, ".")
	switch {
	case cpos >= 0 && dpos >= 0 && cpos > dpos:
		dec = ','
	case cpos >= 0 && dpos < 0:
		// "1,5" is a decimal comma; "1,500" and "1,500,000" are thousands.
		if strings.Count(raw, ",") == 1 && len(raw)-cpos-1 != 3 {
			dec = ','
		}
	}
	for _, sep := range []rune{',', '.', ' '} {
		if sep != dec {
			raw = strings.ReplaceAll(raw, string(sep), "")
		}
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseYear reads a leading four-digit year from values like "2021",
// "2021.0" or "2021-01-01".
func ParseYear(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 4 {
		return 0, false
	}
	y, err := strconv.Atoi(s[:4])
	if err != nil {
		return 0, false
	}
	if len(s) > 4 && s[4] >= '0' && s[4] <= '9' {
		return 0, false
	}
	return y, true
}
