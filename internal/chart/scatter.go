package chart

import (
	"fmt"
	"sort"

	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Point is one labelled observation of a scatter chart.
type Point struct {
	X, Y  float64
	Group int
	Label string
}

// ScatterSpec is a scatter chart coloured by group.
type ScatterSpec struct {
	Labels
	Points []Point
	// GroupName names each group in the legend; defaults to "Cluster N".
	GroupName func(g int) string
	// PointLabels prints Point.Label next to each marker.
	PointLabels bool
	Width       vg.Length
	Height      vg.Length
}

// Scatter builds a scatter chart with one coloured layer per group.
func Scatter(s ScatterSpec) (Figure, error) {
	groups := map[int]plotter.XYs{}
	labels := plotter.XYLabels{}
	for _, pt := range s.Points {
		if !finite(pt.X) || !finite(pt.Y) {
			continue
		}
		groups[pt.Group] = append(groups[pt.Group], plotter.XY{X: pt.X, Y: pt.Y})
		if s.PointLabels && pt.Label != "" {
			labels.XYs = append(labels.XYs, plotter.XY{X: pt.X, Y: pt.Y})
			labels.Labels = append(labels.Labels, pt.Label)
		}
	}
	if len(groups) == 0 {
		return nil, ErrEmpty
	}
	ids := make([]int, 0, len(groups))
	for g := range groups {
		ids = append(ids, g)
	}
	sort.Ints(ids)

	p := newPlot(s.Labels)
	p.X.Tick.Marker = thousands{}
	p.Add(plotter.NewGrid())
	name := s.GroupName
	if name == nil {
		name = func(g int) string { return fmt.Sprintf("Cluster %d", g) }
	}
	for _, g := range ids {
		sc, err := plotter.NewScatter(groups[g])
		if err != nil {
			return nil, fmt.Errorf("scatter group %d: %w", g, err)
		}
		sc.GlyphStyle.Color = GroupColor(g)
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Radius = vg.Points(5)
		p.Add(sc)
		p.Legend.Add(name(g), sc)
	}
	if len(labels.XYs) > 0 {
		l, err := plotter.NewLabels(labels)
		if err != nil {
			return nil, fmt.Errorf("point labels: %w", err)
		}
		for i := range l.TextStyle {
			l.TextStyle[i].Font.Size = vg.Points(7)
		}
		l.Offset = vg.Point{X: vg.Points(6), Y: vg.Points(-3)}
		p.Add(l)
	}
	p.Legend.Top = true
	return sized(p, s.Width, s.Height), nil
}
