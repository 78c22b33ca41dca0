package chart

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// BarSpec is a bar chart over nominal categories.
type BarSpec struct {
	Labels
	Names  []string
	Values []float64
	Color  color.Color
	// Rotate tilts the category labels by 45°.
	Rotate bool
	// ShowValues prints each value above its bar.
	ShowValues bool
	Width      vg.Length
	Height     vg.Length
}

// Bar builds a single-series bar chart. NaN values draw as empty bars.
func Bar(s BarSpec) (Figure, error) {
	if len(s.Values) == 0 {
		return nil, ErrEmpty
	}
	if len(s.Names) != len(s.Values) {
		return nil, fmt.Errorf("bar chart: %d names for %d values", len(s.Names), len(s.Values))
	}
	p := newPlot(s.Labels)
	p.Add(grid())
	vals := make(plotter.Values, len(s.Values))
	for i, v := range s.Values {
		if finite(v) {
			vals[i] = v
		}
	}
	bars, err := plotter.NewBarChart(vals, barWidth(len(vals)))
	if err != nil {
		return nil, fmt.Errorf("bar chart: %w", err)
	}
	bars.Color = s.Color
	if bars.Color == nil {
		bars.Color = Crimson
	}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(s.Names...)
	if s.Rotate {
		p.X.Tick.Label.Rotation = math.Pi / 4
		p.X.Tick.Label.XAlign = draw.XRight
		p.X.Tick.Label.YAlign = draw.YCenter
	}
	if s.ShowValues {
		labels, err := valueLabels(s.Values)
		if err != nil {
			return nil, err
		}
		p.Add(labels)
	}
	return sized(p, s.Width, s.Height), nil
}

func valueLabels(values []float64) (*plotter.Labels, error) {
	xy := plotter.XYLabels{}
	for i, v := range values {
		if !finite(v) {
			continue
		}
		xy.XYs = append(xy.XYs, plotter.XY{X: float64(i), Y: v})
		xy.Labels = append(xy.Labels, FormatNumber(v))
	}
	l, err := plotter.NewLabels(xy)
	if err != nil {
		return nil, fmt.Errorf("value labels: %w", err)
	}
	for i := range l.TextStyle {
		l.TextStyle[i].XAlign = text.XCenter
		l.TextStyle[i].Font.Size = vg.Points(8)
	}
	l.Offset = vg.Point{Y: vg.Points(3)}
	return l, nil
}

func barWidth(n int) vg.Length {
	switch {
	case n <= 10:
		return vg.Points(28)
	case n <= 30:
		return vg.Points(14)
	default:
		return vg.Points(6)
	}
}

func sized(p interface{ Draw(draw.Canvas) }, w, h vg.Length) Figure {
	if w <= 0 {
		w = DefaultWidth
	}
	if h <= 0 {
		h = DefaultHeight
	}
	return drawer{d: p, w: w, h: h}
}

type drawer struct {
	d    interface{ Draw(draw.Canvas) }
	w, h vg.Length
}

func (d drawer) Size() (vg.Length, vg.Length) { return d.w, d.h }

func (d drawer) Draw(c draw.Canvas) error {
	d.d.Draw(c)
	return nil
}
