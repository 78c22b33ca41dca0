package chart

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// YearValue is one bar of a year bar chart.
type YearValue struct {
	Year  int
	Value float64
}

// YearBarsSpec draws observed and predicted totals as bars on a shared year axis.
type YearBarsSpec struct {
	Labels
	Actual    []YearValue
	Predicted []YearValue
	Width     vg.Length
	Height    vg.Length
}

// YearBars places both series on a numeric year axis. Predicted bars are drawn
// after actual ones, so overlapping years show the prediction.
func YearBars(s YearBarsSpec) (Figure, error) {
	if len(s.Actual) == 0 && len(s.Predicted) == 0 {
		return nil, ErrEmpty
	}
	lo, hi := math.MaxInt, math.MinInt
	for _, set := range [][]YearValue{s.Actual, s.Predicted} {
		for _, v := range set {
			lo, hi = min(lo, v.Year), max(hi, v.Year)
		}
	}
	p := newPlot(s.Labels)
	p.X.Tick.Marker = yearTicks{}
	p.Add(grid())
	w := yearBarWidth(hi - lo + 1)
	for _, layer := range []struct {
		name string
		vals []YearValue
		col  color.Color
	}{
		{"Actual", s.Actual, DodgerBlue},
		{"Prediction", s.Predicted, Orange},
	} {
		if len(layer.vals) == 0 {
			continue
		}
		vals := make(plotter.Values, hi-lo+1)
		for _, v := range layer.vals {
			if finite(v.Value) {
				vals[v.Year-lo] += v.Value
			}
		}
		bars, err := plotter.NewBarChart(vals, w)
		if err != nil {
			return nil, fmt.Errorf("%s bars: %w", layer.name, err)
		}
		bars.XMin = float64(lo)
		bars.LineStyle.Width = 0
		bars.Color = layer.col
		p.Add(bars)
		p.Legend.Add(layer.name, bars)
	}
	p.Legend.Top = true
	p.Legend.Left = true
	return sized(p, s.Width, s.Height), nil
}

func yearBarWidth(n int) vg.Length {
	if n <= 0 {
		n = 1
	}
	return vg.Length(math.Max(2, math.Min(24, 700/float64(n))))
}
