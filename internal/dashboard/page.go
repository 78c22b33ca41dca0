// Package dashboard assembles the dashboard pages from the prepared data and
// renders them as HTML, Markdown and chart files.
package dashboard

import (
	"github.com/KaramelBytes/co2atlas/internal/chart"
)

// BlockKind selects how a block is rendered.
type BlockKind string

const (
	KindHeading  BlockKind = "heading"
	KindText     BlockKind = "text"
	KindFigure   BlockKind = "figure"
	KindTable    BlockKind = "table"
	KindSelector BlockKind = "selector"
)

// Page is one dashboard page. Pages with a year selector are built once per
// selectable year.
type Page struct {
	Slug   string  `json:"slug"`
	Title  string  `json:"title"`
	Intro  string  `json:"intro,omitempty"`
	Year   int     `json:"year,omitempty"`
	Blocks []Block `json:"blocks"`
}

// Block is one element of a page. Exactly one payload field is set, matching Kind.
type Block struct {
	Kind     BlockKind     `json:"kind"`
	Text     string        `json:"text,omitempty"`
	Level    int           `json:"level,omitempty"`
	Figure   *FigureRef    `json:"figure,omitempty"`
	Table    *Table        `json:"table,omitempty"`
	Selector *YearSelector `json:"selector,omitempty"`
}

// FigureRef names a figure within its page.
type FigureRef struct {
	ID      string       `json:"id"`
	Caption string       `json:"caption,omitempty"`
	Fig     chart.Figure `json:"-"`
}

// Table is a small rendered data table.
type Table struct {
	Caption string     `json:"caption,omitempty"`
	Header  []string   `json:"header"`
	Rows    [][]string `json:"rows"`
}

// YearSelector lets the reader switch the page between years.
type YearSelector struct {
	Years    []int `json:"years"`
	Selected int   `json:"selected"`
}

func heading(level int, text string) Block {
	return Block{Kind: KindHeading, Level: level, Text: text}
}

func text(md string) Block { return Block{Kind: KindText, Text: md} }

func figure(id, caption string, fig chart.Figure) Block {
	return Block{Kind: KindFigure, Figure: &FigureRef{ID: id, Caption: caption, Fig: fig}}
}

func table(caption string, header []string, rows [][]string) Block {
	return Block{Kind: KindTable, Table: &Table{Caption: caption, Header: header, Rows: rows}}
}

func selector(years []int, selected int) Block {
	return Block{Kind: KindSelector, Selector: &YearSelector{Years: years, Selected: selected}}
}

// Figure returns the figure with the given id.
func (p *Page) Figure(id string) (*FigureRef, bool) {
	for _, b := range p.Blocks {
		if b.Kind == KindFigure && b.Figure.ID == id {
			return b.Figure, true
		}
	}
	return nil, false
}

// Figures returns every figure of the page in order.
func (p *Page) Figures() []*FigureRef {
	var out []*FigureRef
	for _, b := range p.Blocks {
		if b.Kind == KindFigure {
			out = append(out, b.Figure)
		}
	}
	return out
}

// add appends blocks, skipping figures that failed to build.
func (p *Page) add(bs ...Block) {
	for _, b := range bs {
		if b.Kind == KindFigure && (b.Figure == nil || b.Figure.Fig == nil) {
			continue
		}
		p.Blocks = append(p.Blocks, b)
	}
}
