// Package forecast combines historical emissions totals with pre-computed
// SARIMA predictions.
package forecast

import (
	"errors"
	"math"

	"github.com/KaramelBytes/co2atlas/internal/dataset"
)

// ErrNoForecast is returned when neither history nor predictions are available.
var ErrNoForecast = errors.New("no history or forecast data")

// Series is the European total per year, split into what was observed and
// what was predicted.
type Series struct {
	Actual    dataset.Series
	Predicted dataset.Series
}

// Build groups both inputs by year and sums them.
func Build(history, predicted dataset.Series) (*Series, error) {
	if len(history) == 0 && len(predicted) == 0 {
		return nil, ErrNoForecast
	}
	return &Series{Actual: history.Totals(), Predicted: predicted.Totals()}, nil
}

// Overlap returns the years present in both the actual and predicted series.
func (s *Series) Overlap() []int {
	seen := make(map[int]bool, len(s.Actual))
	for _, p := range s.Actual {
		seen[p.Year] = true
	}
	var out []int
	for _, p := range s.Predicted {
		if seen[p.Year] {
			out = append(out, p.Year)
		}
	}
	return out
}

// Years returns the sorted union of actual and predicted years.
func (s *Series) Years() []int {
	var out []int
	i, j := 0, 0
	for i < len(s.Actual) || j < len(s.Predicted) {
		switch {
		case j >= len(s.Predicted) || (i < len(s.Actual) && s.Actual[i].Year < s.Predicted[j].Year):
			out = append(out, s.Actual[i].Year)
			i++
		case i >= len(s.Actual) || s.Predicted[j].Year < s.Actual[i].Year:
			out = append(out, s.Predicted[j].Year)
			j++
		default:
			out = append(out, s.Actual[i].Year)
			i++
			j++
		}
	}
	return out
}

// Summary describes where the prediction ends relative to the last observation.
type Summary struct {
	LastActualYear     int
	LastActual         float64
	FirstPredictedYear int
	LastPredictedYear  int
	LastPredicted      float64
	ChangePct          float64
	OverlapYears       int
	Declining          bool
}

// Summarize compares the last actual total with the last predicted total.
// ChangePct is NaN when either side is missing or the actual total is zero.
func (s *Series) Summarize() Summary {
	sum := Summary{ChangePct: math.NaN(), OverlapYears: len(s.Overlap())}
	if n := len(s.Actual); n > 0 {
		sum.LastActualYear, sum.LastActual = s.Actual[n-1].Year, s.Actual[n-1].Value
	}
	if n := len(s.Predicted); n > 0 {
		sum.FirstPredictedYear = s.Predicted[0].Year
		sum.LastPredictedYear, sum.LastPredicted = s.Predicted[n-1].Year, s.Predicted[n-1].Value
	}
	if len(s.Actual) > 0 && len(s.Predicted) > 0 && sum.LastActual != 0 {
		sum.ChangePct = (sum.LastPredicted - sum.LastActual) / sum.LastActual * 100
		sum.Declining = sum.LastPredicted < sum.LastActual
	}
	return sum
}
