package chart

import (
	"fmt"
	"image/color"

	"github.com/paulmach/orb"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Region is one shape of a choropleth with its value; NaN means no data.
type Region struct {
	Name  string
	Shape orb.MultiPolygon
	Value float64
}

// ChoroplethSpec colours regions on a fixed value range so maps of different
// years share one scale.
type ChoroplethSpec struct {
	Title    string
	Regions  []Region
	Min, Max float64
	Scheme   string
	// Bound crops the map; the zero bound shows every region.
	Bound orb.Bound
	// Legend captions the colour bar.
	Legend string
	Width  vg.Length
	Height vg.Length
}

type choropleth struct {
	m, bar *plot.Plot
	w, h   vg.Length
	lo, hi float64
}

// Ranged is a figure drawn on a fixed colour scale.
type Ranged interface {
	Figure
	Range() (lo, hi float64)
}

const colorBarWidth = 1.1 * vg.Inch

func (c choropleth) Size() (vg.Length, vg.Length) { return c.w, c.h }

// Range returns the bounds of the colour scale.
func (c choropleth) Range() (lo, hi float64) { return c.lo, c.hi }

func (c choropleth) Draw(dc draw.Canvas) error {
	width := dc.Max.X - dc.Min.X
	c.m.Draw(draw.Crop(dc, 0, -colorBarWidth, 0, 0))
	c.bar.Draw(draw.Crop(dc, width-colorBarWidth, 0, 0, 0))
	return nil
}

// Choropleth draws each region filled by its value. Regions without data are
// light grey.
func Choropleth(s ChoroplethSpec) (Figure, error) {
	if len(s.Regions) == 0 {
		return nil, ErrEmpty
	}
	scheme := s.Scheme
	if scheme == "" {
		scheme = "Reds"
	}
	cm, err := Colormap(scheme, s.Min, s.Max)
	if err != nil {
		return nil, err
	}
	p := plot.New()
	p.Title.Text = s.Title
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.HideAxes()
	drawn := 0
	for _, r := range s.Regions {
		fill := colorAt(cm, r.Value)
		for _, poly := range r.Shape {
			pg, err := polygon(poly, fill)
			if err != nil {
				return nil, fmt.Errorf("region %s: %w", r.Name, err)
			}
			if pg == nil {
				continue
			}
			p.Add(pg)
			drawn++
		}
	}
	if drawn == 0 {
		return nil, ErrEmpty
	}
	if !s.Bound.IsZero() && !s.Bound.IsEmpty() {
		p.X.Min, p.X.Max = s.Bound.Min.X(), s.Bound.Max.X()
		p.Y.Min, p.Y.Max = s.Bound.Min.Y(), s.Bound.Max.Y()
	}
	w, h := s.Width, s.Height
	if w <= 0 {
		w = 10 * vg.Inch
	}
	if h <= 0 {
		h = 8 * vg.Inch
	}
	return choropleth{m: p, bar: colorBar(cm, s.Legend), w: w, h: h, lo: s.Min, hi: s.Max}, nil
}

func polygon(poly orb.Polygon, fill color.Color) (*plotter.Polygon, error) {
	var rings []plotter.XYer
	for _, ring := range poly {
		if len(ring) < 3 {
			continue
		}
		xy := make(plotter.XYs, len(ring))
		for i, pt := range ring {
			xy[i] = plotter.XY{X: pt.X(), Y: pt.Y()}
		}
		rings = append(rings, xy)
	}
	if len(rings) == 0 {
		return nil, nil
	}
	pg, err := plotter.NewPolygon(rings...)
	if err != nil {
		return nil, err
	}
	pg.Color = fill
	pg.LineStyle.Color = color.White
	pg.LineStyle.Width = vg.Points(0.4)
	return pg, nil
}

func colorBar(cm palette.ColorMap, caption string) *plot.Plot {
	p := plot.New()
	p.Add(&plotter.ColorBar{ColorMap: cm, Vertical: true})
	p.HideX()
	p.Y.Padding = 0
	p.Y.Label.Text = caption
	p.Y.Tick.Marker = thousands{}
	return p
}
