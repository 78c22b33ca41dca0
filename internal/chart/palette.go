package chart

import (
	"fmt"
	"image/color"
	"math"
	"slices"

	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/brewer"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotutil"
)

// Named colours used across the dashboard.
var (
	Crimson    = color.RGBA{R: 220, G: 20, B: 60, A: 255}
	Teal       = color.RGBA{R: 0, G: 128, B: 128, A: 255}
	DodgerBlue = color.RGBA{R: 30, G: 144, B: 255, A: 255}
	Orange     = color.RGBA{R: 255, G: 165, B: 0, A: 255}
	Missing    = color.RGBA{R: 211, G: 211, B: 211, A: 255}
)

// Sequential names the brewer schemes available for choropleths.
var Sequential = []string{"Reds", "OrRd", "YlGnBu", "Blues", "Greens", "Purples"}

// Colormap returns a continuous light-to-dark map over [min, max] interpolated
// through the named brewer scheme.
func Colormap(scheme string, min, max float64) (palette.ColorMap, error) {
	if !finite(min) || !finite(max) || max <= min {
		return nil, fmt.Errorf("colormap range [%v, %v] is empty", min, max)
	}
	if !slices.Contains(Sequential, scheme) {
		return nil, fmt.Errorf("unknown colour scheme %q", scheme)
	}
	pal, err := brewer.GetPalette(brewer.TypeSequential, scheme, 9)
	if err != nil {
		return nil, fmt.Errorf("colour scheme %s: %w", scheme, err)
	}
	// Luminance maps want dark-to-light control points.
	cs := slices.Clone(pal.Colors())
	slices.Reverse(cs)
	lum, err := moreland.NewLuminance(cs)
	if err != nil {
		return nil, fmt.Errorf("colour scheme %s: %w", scheme, err)
	}
	cm := palette.Reverse(lum)
	cm.SetMin(min)
	cm.SetMax(max)
	return cm, nil
}

// colorAt clamps v into the map's range; NaN maps to the missing colour.
func colorAt(cm palette.ColorMap, v float64) color.Color {
	if math.IsNaN(v) {
		return Missing
	}
	v = math.Max(cm.Min(), math.Min(cm.Max(), v))
	c, err := cm.At(v)
	if err != nil {
		return Missing
	}
	return c
}

// GroupColor returns the colour of the i-th group or series.
func GroupColor(i int) color.Color { return plotutil.Color(i) }
