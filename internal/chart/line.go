package chart

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Series is one named line. Points with a NaN Y are skipped.
type Series struct {
	Name  string
	X, Y  []float64
	Color color.Color
}

func (s Series) xys() plotter.XYs {
	out := make(plotter.XYs, 0, len(s.X))
	for i := range s.X {
		if i < len(s.Y) && finite(s.X[i]) && finite(s.Y[i]) {
			out = append(out, plotter.XY{X: s.X[i], Y: s.Y[i]})
		}
	}
	return out
}

// LineSpec is a multi-series line chart over years.
type LineSpec struct {
	Labels
	Series []Series
	// Markers draws a glyph on every point.
	Markers bool
	Width   vg.Length
	Height  vg.Length
}

// Lines builds a line chart with a legend when there is more than one series.
func Lines(s LineSpec) (Figure, error) {
	p, err := linePlot(s)
	if err != nil {
		return nil, err
	}
	return sized(p, s.Width, s.Height), nil
}

func linePlot(s LineSpec) (*plot.Plot, error) {
	p := newPlot(s.Labels)
	p.X.Tick.Marker = yearTicks{}
	p.Add(grid())
	drawn := 0
	for i, ser := range s.Series {
		xy := ser.xys()
		if len(xy) == 0 {
			continue
		}
		line, err := plotter.NewLine(xy)
		if err != nil {
			return nil, fmt.Errorf("line %q: %w", ser.Name, err)
		}
		line.Color = ser.Color
		if line.Color == nil {
			line.Color = GroupColor(i)
		}
		line.Width = vg.Points(1.5)
		p.Add(line)
		if s.Markers {
			pts, err := plotter.NewScatter(xy)
			if err != nil {
				return nil, fmt.Errorf("markers %q: %w", ser.Name, err)
			}
			pts.GlyphStyle.Color = line.Color
			pts.GlyphStyle.Shape = draw.CircleGlyph{}
			pts.GlyphStyle.Radius = vg.Points(2.5)
			p.Add(pts)
		}
		if len(s.Series) > 1 {
			p.Legend.Add(ser.Name, line)
		}
		drawn++
	}
	if drawn == 0 {
		return nil, ErrEmpty
	}
	p.Legend.Top = true
	return p, nil
}

// dual stacks two plots vertically with aligned data areas.
type dual struct {
	top, bottom *plot.Plot
	w, h        vg.Length
}

func (d dual) Size() (vg.Length, vg.Length) { return d.w, d.h }

func (d dual) Draw(c draw.Canvas) error {
	plots := [][]*plot.Plot{{d.top}, {d.bottom}}
	canvases := plot.Align(plots, draw.Tiles{Rows: 2, Cols: 1, PadY: vg.Points(12)}, c)
	d.top.Draw(canvases[0][0])
	d.bottom.Draw(canvases[1][0])
	return nil
}

// DualSeries draws two line charts over the same years, one above the other,
// with a shared X range.
func DualSeries(top, bottom LineSpec) (Figure, error) {
	pt, err := linePlot(top)
	if err != nil {
		return nil, fmt.Errorf("top panel: %w", err)
	}
	pb, err := linePlot(bottom)
	if err != nil {
		return nil, fmt.Errorf("bottom panel: %w", err)
	}
	lo, hi := min(pt.X.Min, pb.X.Min), max(pt.X.Max, pb.X.Max)
	pt.X.Min, pb.X.Min = lo, lo
	pt.X.Max, pb.X.Max = hi, hi
	w, h := top.Width, top.Height
	if w <= 0 {
		w = DefaultWidth
	}
	if h <= 0 {
		h = 2 * DefaultHeight
	}
	return dual{top: pt, bottom: pb, w: w, h: h}, nil
}

// StackSpec is a stacked area chart, one layer per name.
type StackSpec struct {
	Labels
	X      []float64
	Names  []string
	Values [][]float64
	Width  vg.Length
	Height vg.Length
}

// StackedArea fills each layer between the running total below it and the
// running total including it. Missing values count as zero.
func StackedArea(s StackSpec) (Figure, error) {
	if len(s.Values) == 0 || len(s.X) == 0 {
		return nil, ErrEmpty
	}
	if len(s.Names) != len(s.Values) {
		return nil, fmt.Errorf("stacked area: %d names for %d layers", len(s.Names), len(s.Values))
	}
	p := newPlot(s.Labels)
	p.X.Tick.Marker = yearTicks{}
	p.Add(grid())
	lower := make([]float64, len(s.X))
	for i, layer := range s.Values {
		if len(layer) != len(s.X) {
			return nil, fmt.Errorf("stacked area: layer %q has %d points, want %d", s.Names[i], len(layer), len(s.X))
		}
		upper := make([]float64, len(s.X))
		ring := make(plotter.XYs, 0, 2*len(s.X))
		for j, x := range s.X {
			v := layer[j]
			if !finite(v) {
				v = 0
			}
			upper[j] = lower[j] + v
			ring = append(ring, plotter.XY{X: x, Y: upper[j]})
		}
		for j := len(s.X) - 1; j >= 0; j-- {
			ring = append(ring, plotter.XY{X: s.X[j], Y: lower[j]})
		}
		poly, err := plotter.NewPolygon(ring)
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", s.Names[i], err)
		}
		poly.Color = GroupColor(i)
		poly.LineStyle.Width = 0
		p.Add(poly)
		p.Legend.Add(s.Names[i], poly)
		lower = upper
	}
	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.TextStyle.Font.Size = vg.Points(8)
	return sized(p, s.Width, s.Height), nil
}

// Elbow plots within-cluster sum of squares against k = 1..len(wss).
func Elbow(title string, wss []float64) (Figure, error) {
	if len(wss) == 0 {
		return nil, ErrEmpty
	}
	ks := make([]float64, len(wss))
	for i := range ks {
		ks[i] = float64(i + 1)
	}
	p, err := linePlot(LineSpec{
		Labels:  Labels{Title: title, XLabel: "Number of clusters k", YLabel: "Within-cluster sum of squares"},
		Series:  []Series{{Name: "WSS", X: ks, Y: wss, Color: Teal}},
		Markers: true,
	})
	if err != nil {
		return nil, err
	}
	return sized(p, 8*vg.Inch, 5*vg.Inch), nil
}
