// Package chart renders the dashboard figures with gonum/plot.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/KaramelBytes/co2atlas/internal/utils"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

var (
	// ErrEmpty is returned when a figure has nothing to draw.
	ErrEmpty = errors.New("chart has no data")
	// ErrFormat is returned for an unsupported output format.
	ErrFormat = errors.New("unsupported chart format")
)

// Figure is anything that can be drawn onto a canvas of its preferred size.
type Figure interface {
	Size() (w, h vg.Length)
	Draw(c draw.Canvas) error
}

// Formats lists the supported output formats.
func Formats() []string { return []string{"png", "svg", "pdf", "jpg"} }

// Default figure size.
var (
	DefaultWidth  = 12 * vg.Inch
	DefaultHeight = 6 * vg.Inch
)

// Write renders fig in format to w. dpi only applies to raster formats.
func Write(w io.Writer, fig Figure, format string, dpi int) error {
	width, height := fig.Size()
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	var cw vg.CanvasWriterTo
	switch format {
	case "png", "jpg", "jpeg":
		if dpi <= 0 {
			dpi = vgimg.DefaultDPI
		}
		c := vgimg.NewWith(vgimg.UseWH(width, height), vgimg.UseDPI(dpi), vgimg.UseBackgroundColor(color.White))
		if format == "png" {
			cw = vgimg.PngCanvas{Canvas: c}
		} else {
			cw = vgimg.JpegCanvas{Canvas: c}
		}
	case "svg", "pdf", "eps":
		c, err := draw.NewFormattedCanvas(width, height, format)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrFormat, format)
		}
		cw = c
	default:
		return fmt.Errorf("%w: %q", ErrFormat, format)
	}
	if err := fig.Draw(draw.New(cw)); err != nil {
		return err
	}
	if _, err := cw.WriteTo(w); err != nil {
		return fmt.Errorf("write %s: %w", format, err)
	}
	return nil
}

// Save renders fig to path, picking the format from the extension.
func Save(path string, fig Figure, dpi int) error {
	var buf bytes.Buffer
	if err := Write(&buf, fig, filepath.Ext(path), dpi); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create chart dir: %w", err)
	}
	return utils.SafeWriteFile(path, buf.Bytes())
}

// ContentType returns the MIME type of a chart format.
func ContentType(format string) string {
	switch strings.ToLower(format) {
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "svg":
		return "image/svg+xml"
	case "pdf":
		return "application/pdf"
	}
	return "application/octet-stream"
}

// Labels are the shared title and axis captions of a chart.
type Labels struct {
	Title  string
	XLabel string
	YLabel string
}

func newPlot(l Labels) *plot.Plot {
	p := plot.New()
	p.Title.Text = l.Title
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = l.XLabel
	p.Y.Label.Text = l.YLabel
	p.Y.Tick.Marker = thousands{}
	return p
}

func grid() *plotter.Grid {
	g := plotter.NewGrid()
	g.Vertical.Color = nil
	g.Horizontal.Color = color.Gray{Y: 210}
	g.Horizontal.Dashes = []vg.Length{vg.Points(3), vg.Points(3)}
	return g
}

// thousands wraps the default ticker and groups digits of large labels.
type thousands struct{}

func (thousands) Ticks(min, max float64) []plot.Tick {
	ticks := plot.DefaultTicks{}.Ticks(min, max)
	for i := range ticks {
		if ticks[i].Label == "" {
			continue
		}
		ticks[i].Label = FormatNumber(ticks[i].Value)
	}
	return ticks
}

// yearTicks labels integer years without grouping.
type yearTicks struct{}

func (yearTicks) Ticks(min, max float64) []plot.Tick {
	ticks := plot.DefaultTicks{}.Ticks(min, max)
	out := ticks[:0]
	for _, t := range ticks {
		if t.Label != "" && t.Value != math.Trunc(t.Value) {
			continue
		}
		if t.Label != "" {
			t.Label = strconv.Itoa(int(t.Value))
		}
		out = append(out, t)
	}
	return out
}

// FormatNumber renders v with thousands separators; values below 100 keep
// up to two decimals.
func FormatNumber(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	if math.Abs(v) < 100 && v != math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 2, 64)
	}
	s := strconv.FormatInt(int64(math.Round(math.Abs(v))), 10)
	var b strings.Builder
	if v < 0 && s != "0" {
		b.WriteByte('-')
	}
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
