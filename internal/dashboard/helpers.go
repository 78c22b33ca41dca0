package dashboard

import (
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/KaramelBytes/co2atlas/internal/chart"
	"github.com/KaramelBytes/co2atlas/internal/dataset"
	"github.com/KaramelBytes/co2atlas/internal/emissions"
)

func points(s dataset.Series) (xs, ys []float64) {
	xs = make([]float64, len(s))
	ys = make([]float64, len(s))
	for i, p := range s {
		xs[i], ys[i] = float64(p.Year), p.Value
	}
	return xs, ys
}

func yearValues(s dataset.Series) []chart.YearValue {
	out := make([]chart.YearValue, len(s))
	for i, p := range s {
		out[i] = chart.YearValue{Year: p.Year, Value: p.Value}
	}
	return out
}

func head(rs []emissions.Ranked, n int) []emissions.Ranked {
	if n >= 0 && n < len(rs) {
		return rs[:n]
	}
	return rs
}

// listNames joins names as "A, B and C".
func listNames(rs []emissions.Ranked) string {
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = r.Name
	}
	switch len(names) {
	case 0:
		return "none"
	case 1:
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
}

func rankedValues(rs []emissions.Ranked) map[string]float64 {
	out := make(map[string]float64, len(rs))
	for _, r := range rs {
		out[r.Name] = r.Value
	}
	return out
}

// valueRange returns the finite min and max of vals, widened when they are equal.
func valueRange(vals map[string]float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if math.IsInf(lo, 1) {
		return 0, 1
	}
	if lo == hi {
		hi = lo + 1
	}
	return lo, hi
}

// rangeByYear is valueRange over every year, so maps share one scale.
func rangeByYear(byYear map[int][]emissions.Ranked) (lo, hi float64) {
	all := map[string]float64{}
	for y, rs := range byYear {
		for _, r := range rs {
			all[strconv.Itoa(y)+"|"+r.Name] = r.Value
		}
	}
	return valueRange(all)
}

func formatValue(v float64) string {
	switch {
	case math.IsNaN(v):
		return "n/a"
	case math.Abs(v) >= 1000:
		return chart.FormatNumber(v)
	case math.Abs(v) >= 1:
		return strconv.FormatFloat(v, 'f', 2, 64)
	}
	return strconv.FormatFloat(v, 'g', 4, 64)
}

func capitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}

// slug lower-cases s and replaces runs of other characters with '-'.
func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
