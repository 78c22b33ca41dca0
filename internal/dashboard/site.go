package dashboard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/KaramelBytes/co2atlas/internal/chart"
	"github.com/KaramelBytes/co2atlas/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SiteOptions configures RenderSite.
type SiteOptions struct {
	Dir     string
	Format  string
	DPI     int
	Workers int
}

// SiteResult summarizes a rendered site.
type SiteResult struct {
	Pages   int
	Charts  int
	Skipped []string
}

// BuildAll builds every available page, including one variant per selectable
// year. Unavailable pages are skipped.
func (b *Builder) BuildAll() ([]*Page, error) {
	var out []*Page
	for _, info := range b.Pages() {
		if !info.Available {
			continue
		}
		years := info.Years
		if len(years) == 0 {
			years = []int{0}
		}
		for _, y := range years {
			p, err := b.Page(info.Slug, y)
			if errors.Is(err, ErrYear) {
				continue
			}
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
	}
	return out, nil
}

// RenderSite writes the static dashboard into opt.Dir: one HTML file per page
// and year, every chart, report.md and pages.json.
func RenderSite(ctx context.Context, b *Builder, opt SiteOptions) (*SiteResult, error) {
	if opt.Format == "" {
		opt.Format = "png"
	}
	if opt.Workers <= 0 {
		opt.Workers = 4
	}
	if err := os.MkdirAll(opt.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create site dir: %w", err)
	}
	pages, err := b.BuildAll()
	if err != nil {
		return nil, err
	}
	nav := b.Pages()
	links := StaticLinks{Format: opt.Format}
	res := &SiteResult{Pages: len(pages)}
	for _, info := range nav {
		if !info.Available {
			res.Skipped = append(res.Skipped, info.Slug)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opt.Workers)
	for _, p := range pages {
		for _, f := range p.Figures() {
			res.Charts++
			path := filepath.Join(opt.Dir, filepath.FromSlash(ChartFile(p.Slug, f.ID, p.Year, opt.Format)))
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := chart.Save(path, f.Fig, opt.DPI); err != nil {
					return fmt.Errorf("%s/%s: %w", p.Slug, f.ID, err)
				}
				b.log.Debug("chart written", zap.String("path", path))
				return nil
			})
		}
	}

	write := func(name string, render func(*bytes.Buffer) error) error {
		var buf bytes.Buffer
		if err := render(&buf); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return utils.SafeWriteFile(filepath.Join(opt.Dir, name), buf.Bytes())
	}
	if err := write("index.html", func(w *bytes.Buffer) error { return RenderIndex(w, nav, links) }); err != nil {
		_ = g.Wait()
		return nil, err
	}
	for _, p := range pages {
		name := links.Page(p.Slug, p.Year)
		if err := write(name, func(w *bytes.Buffer) error { return RenderHTML(w, p, nav, links) }); err != nil {
			_ = g.Wait()
			return nil, err
		}
		// The first year of a selector page doubles as its yearless page.
		if ys := navYears(nav, p.Slug); p.Year != 0 && len(ys) > 0 && ys[0] == p.Year {
			if err := write(links.Page(p.Slug, 0), func(w *bytes.Buffer) error { return RenderHTML(w, p, nav, links) }); err != nil {
				_ = g.Wait()
				return nil, err
			}
		}
	}
	chartRef := func(p *Page, id string) string { return ChartFile(p.Slug, id, p.Year, opt.Format) }
	if err := write("report.md", func(w *bytes.Buffer) error { return RenderMarkdown(w, pages, chartRef) }); err != nil {
		_ = g.Wait()
		return nil, err
	}
	if err := write("pages.json", func(w *bytes.Buffer) error {
		data, err := utils.PrettyJSON(pages)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}); err != nil {
		_ = g.Wait()
		return nil, err
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	b.log.Info("site rendered", zap.String("dir", opt.Dir), zap.Int("pages", res.Pages), zap.Int("charts", res.Charts))
	return res, nil
}

func navYears(nav []Info, slug string) []int {
	for _, n := range nav {
		if n.Slug == slug {
			return n.Years
		}
	}
	return nil
}
