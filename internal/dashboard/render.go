package dashboard

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Links resolves page and chart URLs for a renderer.
type Links interface {
	Index() string
	Page(slug string, year int) string
	Chart(slug, id string, year int) string
}

// StaticLinks addresses the files written by RenderSite, relative to the site root.
type StaticLinks struct {
	Format string
}

func (StaticLinks) Index() string { return "index.html" }

func (StaticLinks) Page(slug string, year int) string {
	if year == 0 {
		return slug + ".html"
	}
	return slug + "-" + strconv.Itoa(year) + ".html"
}

func (l StaticLinks) Chart(slug, id string, year int) string {
	return ChartFile(slug, id, year, l.Format)
}

// ChartFile is the site-relative path of a chart file.
func ChartFile(slug, id string, year int, format string) string {
	if year == 0 {
		return "charts/" + slug + "/" + id + "." + format
	}
	return "charts/" + slug + "/" + strconv.Itoa(year) + "/" + id + "." + format
}

// ServerLinks addresses the HTTP routes of the dashboard server.
type ServerLinks struct {
	Format string
}

func (ServerLinks) Index() string { return "/" }

func (ServerLinks) Page(slug string, year int) string {
	if year == 0 {
		return "/pages/" + slug
	}
	return "/pages/" + slug + "?year=" + strconv.Itoa(year)
}

func (l ServerLinks) Chart(slug, id string, year int) string {
	u := "/charts/" + slug + "/" + id + "." + l.Format
	if year != 0 {
		u += "?year=" + strconv.Itoa(year)
	}
	return u
}

var md = goldmark.New(goldmark.WithExtensions(extension.Table, extension.Typographer))

func markdown(s string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(s), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}

const layout = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}} · CO₂ Atlas</title>
<style>
body{font-family:system-ui,sans-serif;margin:0;display:flex;color:#222}
nav{width:15rem;min-height:100vh;background:#f4f4f6;padding:1rem;box-sizing:border-box}
nav a{display:block;padding:.3rem 0;color:#333;text-decoration:none}
nav a.active{font-weight:bold;color:#b0123a}
nav span.off{display:block;padding:.3rem 0;color:#aaa}
main{flex:1;padding:1.5rem 2.5rem;max-width:72rem}
figure{margin:1.5rem 0}
figure img{max-width:100%;height:auto;border:1px solid #eee}
figcaption{color:#666;font-size:.9rem}
table{border-collapse:collapse;margin:1rem 0;font-size:.9rem}
th,td{border:1px solid #ddd;padding:.3rem .6rem;text-align:left}
th{background:#fafafa}
.years a{margin-right:.6rem}
.years a.active{font-weight:bold}
</style>
</head>
<body>
<nav>
<a href="{{.Links.Index}}"><strong>CO₂ Atlas</strong></a>
{{range .Nav}}{{if .Available}}<a href="{{$.Links.Page .Slug 0}}"{{if eq .Slug $.Slug}} class="active"{{end}}>{{.Title}}</a>{{else}}<span class="off">{{.Title}}</span>{{end}}
{{end}}</nav>
<main>
<h1>{{.Title}}</h1>
{{if .Intro}}{{.Intro}}{{end}}
{{range .Blocks}}{{.}}
{{end}}</main>
</body>
</html>
`

var pageTmpl = template.Must(template.New("page").Parse(layout))

var blockTmpl = template.Must(template.New("block").Funcs(template.FuncMap{
	"h": func(level int) string { return "h" + strconv.Itoa(min(max(level, 2), 6)) },
}).Parse(`{{define "heading"}}<{{h .Level}}>{{.Text}}</{{h .Level}}>{{end}}
{{define "figure"}}<figure><img src="{{.Src}}" alt="{{.Alt}}">{{if .Caption}}<figcaption>{{.Caption}}</figcaption>{{end}}</figure>{{end}}
{{define "table"}}<table>{{if .Caption}}<caption>{{.Caption}}</caption>{{end}}<thead><tr>{{range .Header}}<th>{{.}}</th>{{end}}</tr></thead><tbody>{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>{{end}}</tbody></table>{{end}}
{{define "selector"}}<p class="years">Year: {{range .}}<a href="{{.Href}}"{{if .Active}} class="active"{{end}}>{{.Year}}</a>{{end}}</p>{{end}}`))

type yearLink struct {
	Year   int
	Href   string
	Active bool
}

// RenderHTML writes p as a standalone HTML document with navigation.
func RenderHTML(w io.Writer, p *Page, nav []Info, links Links) error {
	intro, err := markdown(p.Intro)
	if err != nil {
		return err
	}
	blocks := make([]template.HTML, 0, len(p.Blocks))
	for _, b := range p.Blocks {
		h, err := renderBlock(p, b, links)
		if err != nil {
			return fmt.Errorf("%s: %w", p.Slug, err)
		}
		blocks = append(blocks, h)
	}
	return pageTmpl.Execute(w, map[string]any{
		"Title":  p.Title,
		"Slug":   p.Slug,
		"Intro":  intro,
		"Blocks": blocks,
		"Nav":    nav,
		"Links":  links,
	})
}

func renderBlock(p *Page, b Block, links Links) (template.HTML, error) {
	var buf bytes.Buffer
	var err error
	switch b.Kind {
	case KindHeading:
		err = blockTmpl.ExecuteTemplate(&buf, "heading", b)
	case KindText:
		return markdown(b.Text)
	case KindFigure:
		err = blockTmpl.ExecuteTemplate(&buf, "figure", map[string]string{
			"Src":     links.Chart(p.Slug, b.Figure.ID, p.Year),
			"Alt":     b.Figure.ID,
			"Caption": b.Figure.Caption,
		})
	case KindTable:
		err = blockTmpl.ExecuteTemplate(&buf, "table", b.Table)
	case KindSelector:
		var ys []yearLink
		for _, y := range b.Selector.Years {
			ys = append(ys, yearLink{Year: y, Href: links.Page(p.Slug, y), Active: y == b.Selector.Selected})
		}
		err = blockTmpl.ExecuteTemplate(&buf, "selector", ys)
	default:
		return "", fmt.Errorf("unknown block kind %q", b.Kind)
	}
	if err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// RenderIndex writes the landing page listing every dashboard page.
func RenderIndex(w io.Writer, nav []Info, links Links) error {
	var list strings.Builder
	list.WriteString("Pages of this dashboard:\n\n")
	for _, n := range nav {
		if !n.Available {
			fmt.Fprintf(&list, "- %s _(data not loaded)_\n", n.Title)
			continue
		}
		fmt.Fprintf(&list, "- [%s](%s)\n", n.Title, links.Page(n.Slug, 0))
	}
	return RenderHTML(w, &Page{Title: "CO₂ and Harmful Gas Emissions in Europe", Blocks: []Block{text(list.String())}}, nav, links)
}

// RenderMarkdown writes pages as one Markdown report. chartPath returns the
// image reference of a figure.
func RenderMarkdown(w io.Writer, pages []*Page, chartPath func(p *Page, id string) string) error {
	var b strings.Builder
	b.WriteString("# CO₂ and Harmful Gas Emissions in Europe\n\n")
	for _, p := range pages {
		fmt.Fprintf(&b, "## %s\n\n", p.Title)
		if p.Year != 0 {
			fmt.Fprintf(&b, "_Year: %d_\n\n", p.Year)
		}
		if p.Intro != "" {
			b.WriteString(p.Intro + "\n\n")
		}
		for _, bl := range p.Blocks {
			switch bl.Kind {
			case KindHeading:
				fmt.Fprintf(&b, "%s %s\n\n", strings.Repeat("#", min(bl.Level+1, 6)), bl.Text)
			case KindText:
				b.WriteString(strings.TrimSpace(bl.Text) + "\n\n")
			case KindFigure:
				fmt.Fprintf(&b, "![%s](%s)\n\n", bl.Figure.ID, chartPath(p, bl.Figure.ID))
				if bl.Figure.Caption != "" {
					fmt.Fprintf(&b, "_%s_\n\n", bl.Figure.Caption)
				}
			case KindTable:
				writeMarkdownTable(&b, bl.Table)
			}
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeMarkdownTable(b *strings.Builder, t *Table) {
	if len(t.Header) == 0 {
		return
	}
	if t.Caption != "" {
		fmt.Fprintf(b, "**%s**\n\n", t.Caption)
	}
	cell := func(s string) string { return strings.ReplaceAll(s, "|", "\\|") }
	b.WriteString("|")
	for _, h := range t.Header {
		b.WriteString(" " + cell(h) + " |")
	}
	b.WriteString("\n|")
	for range t.Header {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, r := range t.Rows {
		b.WriteString("|")
		for _, c := range r {
			b.WriteString(" " + cell(c) + " |")
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}
